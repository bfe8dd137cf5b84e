package principals

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
	"github.com/terraconstructs/pluggableauth/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login <folder> <name> <login>",
	Short: "Change the login of a principal",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := cmd.Context()
		bundle, err := cmdutil.NewStackBundle(ctx, cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Stack.Directory.ChangeLogin(ctx, args[0], args[1], args[2]); err != nil {
			return fmt.Errorf("failed to change login: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Login of %s is now %s\n", args[1], args[2])
		return nil
	},
}
