package main

import "github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd"

func main() {
	cmd.Execute()
}
