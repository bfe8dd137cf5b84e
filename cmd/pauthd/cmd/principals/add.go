package principals

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
	"github.com/terraconstructs/pluggableauth/internal/config"
	"github.com/terraconstructs/pluggableauth/internal/plugins/idpicker"
)

var addCmd = &cobra.Command{
	Use:   "add <folder> <name>",
	Short: "Create an internal principal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginFlag == "" {
			return fmt.Errorf("--login flag is required")
		}
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

		folder, err := bundle.Stack.Directory.PrincipalFolder(args[0])
		if err != nil {
			return err
		}
		name, err := idpicker.New(folder).ChooseName(args[1])
		if err != nil {
			return fmt.Errorf("invalid principal name: %w", err)
		}

		err = bundle.Stack.Directory.AddPrincipal(ctx, args[0], name, loginFlag, pw, titleFlag, descriptionFlag, managerFlag)
		if err != nil {
			return fmt.Errorf("failed to create principal: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created principal %s (login %s)\n", folder.Prefix()+name, loginFlag)
		return nil
	},
}
