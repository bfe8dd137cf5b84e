package groups

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
	"github.com/terraconstructs/pluggableauth/internal/config"
)

var membersCmd = &cobra.Command{
	Use:   "members <folder> <name>",
	Short: "Replace the members of a group",
	Long: `Replaces the member list of a group with the --member flags. Passing no
--member empties the group. A list that would create a cycle is rejected and
the group keeps its previous members.`,
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

		if err := bundle.Stack.Directory.SetGroupMembers(ctx, args[0], args[1], memberFlags); err != nil {
			return fmt.Errorf("failed to set members: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Members of %s: %s\n", args[1], strings.Join(memberFlags, ", "))
		return nil
	},
}
