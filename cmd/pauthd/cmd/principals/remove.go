package principals

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
	"github.com/terraconstructs/pluggableauth/internal/config"
)

var removeCmd = &cobra.Command{
	Use:   "remove <folder> <name>",
	Short: "Delete an internal principal",
	Long:  `Deletes a principal. Group memberships naming it are left in place.`,
	Args:  cobra.ExactArgs(2),
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

		if err := bundle.Stack.Directory.RemovePrincipal(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to delete principal: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted principal %s from %s\n", args[1], args[0])
		return nil
	},
}
