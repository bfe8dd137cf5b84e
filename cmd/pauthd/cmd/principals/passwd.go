package principals

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
	"github.com/terraconstructs/pluggableauth/internal/config"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd <folder> <name>",
	Short: "Set the password of a principal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword()
		if err != nil {
			return err
		}

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

		if err := bundle.Stack.Directory.SetPassword(ctx, args[0], args[1], pw, managerFlag); err != nil {
			return fmt.Errorf("failed to set password: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Password of %s updated\n", args[1])
		return nil
	},
}
