package principals

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
	"github.com/terraconstructs/pluggableauth/internal/password"
)

// PrincipalsCmd is the parent command for principal folder operations
var PrincipalsCmd = &cobra.Command{
	Use:   "principals",
	Short: "Manage principals in the configured principal folders",
	Long: `Commands for managing internal principals directly from the server. Folders
are named after the principal_folder plugin that holds them.`,
}

var (
	loginFlag       string
	passwordFlag    string
	managerFlag     string
	titleFlag       string
	descriptionFlag string
	stdinFlag       bool
)

func init() {
	addCmd.Flags().StringVar(&loginFlag, "login", "", "Login of the principal (required)")
	addCmd.Flags().StringVar(&passwordFlag, "password", "", "Password (use --stdin to avoid shell history)")
	addCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")
	addCmd.Flags().StringVar(&managerFlag, "password-manager", password.Default, "Password manager encoding the password")
	addCmd.Flags().StringVar(&titleFlag, "title", "", "Title of the principal")
	addCmd.Flags().StringVar(&descriptionFlag, "description", "", "Description of the principal")

	passwdCmd.Flags().StringVar(&passwordFlag, "password", "", "New password (use --stdin to avoid shell history)")
	passwdCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")
	passwdCmd.Flags().StringVar(&managerFlag, "password-manager", "", "Switch to this password manager (default: keep current)")

	PrincipalsCmd.AddCommand(addCmd)
	PrincipalsCmd.AddCommand(removeCmd)
	PrincipalsCmd.AddCommand(loginCmd)
	PrincipalsCmd.AddCommand(passwdCmd)
	PrincipalsCmd.AddCommand(listCmd)
}

func readPassword() (string, error) {
	pw := passwordFlag
	if stdinFlag {
		var err error
		if pw, err = cmdutil.ReadPassword(os.Stdin, os.Stderr); err != nil {
			return "", err
		}
	}
	if pw == "" {
		return "", fmt.Errorf("password is required (use --password or --stdin)")
	}
	return pw, nil
}
