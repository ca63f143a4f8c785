package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zredeaux65/go-train-spawn/internal/preflight"
)

var checksWorkers int

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "Run preflight resource checks for a worker count",
	RunE: func(cmd *cobra.Command, args []string) error {
		result := preflight.RunAll(checksWorkers)

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Check", "Status", "Detail")
		for _, c := range result.Checks {
			status := "pass"
			if !c.Passed {
				status = "FAIL"
			} else if c.Warning {
				status = "warn"
			}
			detail := c.Message
			if c.Required > 0 {
				detail = fmt.Sprintf("%d available, %d required", c.Actual, c.Required)
			}
			table.Append(c.Name, status, detail)
		}
		if err := table.Render(); err != nil {
			return err
		}

		if !result.Passed {
			return exitf("preflight checks failed for %d workers", checksWorkers)
		}
		return nil
	},
}

func init() {
	checksCmd.Flags().IntVarP(&checksWorkers, "workers", "w", 1, "worker count to check against")
	rootCmd.AddCommand(checksCmd)
}
