package groups

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
	"github.com/terraconstructs/pluggableauth/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "List groups with their members",
	Long:  `Lists the groups of one folder, or of every group folder when none is named.`,
	Args:  cobra.MaximumNArgs(1),
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

		dir := bundle.Stack.Directory
		keys := dir.GroupFolders()
		if len(args) == 1 {
			keys = args
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FOLDER\tID\tTITLE\tMEMBERS")
		for _, key := range keys {
			folder, err := dir.GroupFolder(key)
			if err != nil {
				return err
			}
			for name, info := range folder.All() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					key,
					folder.Prefix()+name,
					info.Title,
					strings.Join(info.Principals(), ", "),
				)
			}
		}
		return w.Flush()
	},
}
