package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Consistency checks over stored data",
}

var checkCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Report group membership cycles",
	Long: `Loads every group folder and reports membership cycles, such as can exist in
data written by older releases. Exits non-zero when a cycle is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.NewStackBundle(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		cycles, err := bundle.Stack.Directory.AuditCycles()
		if err != nil {
			return fmt.Errorf("cycle audit failed: %w", err)
		}
		if len(cycles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No membership cycles")
			return nil
		}
		for _, c := range cycles {
			fmt.Fprintf(cmd.OutOrStdout(), "cycle: %s\n", strings.Join(c, ", "))
		}
		return fmt.Errorf("found %d membership cycle(s)", len(cycles))
	},
}

var checkClosureCmd = &cobra.Command{
	Use:   "closure <id>",
	Short: "List the groups a principal reaches, nearest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.NewStackBundle(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		layers, err := bundle.Stack.Directory.Closure(args[0])
		if err != nil {
			return fmt.Errorf("closure failed: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LEVEL\tIDS")
		for _, l := range layers {
			fmt.Fprintf(w, "%d\t%s\n", l.Level, strings.Join(l.IDs, ", "))
		}
		return w.Flush()
	},
}

func init() {
	checkCmd.AddCommand(checkCyclesCmd)
	checkCmd.AddCommand(checkClosureCmd)
	rootCmd.AddCommand(checkCmd)
}
