package groups

import "github.com/spf13/cobra"

// GroupsCmd is the parent command for group folder operations
var GroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Manage groups in the configured group folders",
	Long: `Commands for managing groups directly from the server. Folders are named
after the group_folder plugin that holds them.`,
}

var (
	titleFlag       string
	descriptionFlag string
	memberFlags     []string
)

func init() {
	addCmd.Flags().StringVar(&titleFlag, "title", "", "Title of the group")
	addCmd.Flags().StringVar(&descriptionFlag, "description", "", "Description of the group")
	addCmd.Flags().StringSliceVar(&memberFlags, "member", nil, "Fully qualified principal or group id to include (repeatable)")
	membersCmd.Flags().StringSliceVar(&memberFlags, "member", nil, "Fully qualified principal or group id to include (repeatable)")

	GroupsCmd.AddCommand(addCmd)
	GroupsCmd.AddCommand(removeCmd)
	GroupsCmd.AddCommand(membersCmd)
	GroupsCmd.AddCommand(listCmd)
}
