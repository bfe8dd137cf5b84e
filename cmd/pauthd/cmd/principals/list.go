package principals

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
	"github.com/terraconstructs/pluggableauth/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list <folder>",
	Short: "List the principals of a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		bundle, err := cmdutil.NewStackBundle(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		folder, err := bundle.Stack.Directory.PrincipalFolder(args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLOGIN\tTITLE\tPASSWORD_MANAGER")
		for name, p := range folder.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				folder.Prefix()+name,
				p.Login(),
				p.Title,
				p.PasswordManagerName(),
			)
		}
		return w.Flush()
	},
}
