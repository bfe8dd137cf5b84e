package groups

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
	"github.com/terraconstructs/pluggableauth/internal/config"
	"github.com/terraconstructs/pluggableauth/internal/plugins/idpicker"
)

var addCmd = &cobra.Command{
	Use:   "add <folder> <name>",
	Short: "Create a group",
	Long: `Creates a group in the named group folder. The name is normalized and made
unique; the id actually assigned is printed. Memberships that would create a
cycle are rejected.`,
	Args: cobra.ExactArgs(2),
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

		folder, err := bundle.Stack.Directory.GroupFolder(args[0])
		if err != nil {
			return err
		}
		name, err := idpicker.New(folder).ChooseName(args[1])
		if err != nil {
			return fmt.Errorf("invalid group name: %w", err)
		}

		if err := bundle.Stack.Directory.AddGroup(ctx, args[0], name, titleFlag, descriptionFlag, memberFlags); err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created group %s\n", folder.Prefix()+name)
		return nil
	},
}
