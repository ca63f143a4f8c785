package cmd

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zredeaux65/go-train-spawn/internal/group"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List registered worker entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Entry", "Description")

		for _, name := range group.RegisteredEntries() {
			table.Append(name, describeEntry(name))
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(entriesCmd)
}

func describeEntry(name string) string {
	switch name {
	case entrySleep:
		return "idle briefly and report rank identity"
	case entryDemo:
		return "toy gradient-descent fitting run"
	default:
		return "application-registered entry"
	}
}
