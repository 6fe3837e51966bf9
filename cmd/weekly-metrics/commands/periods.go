package commands

import (
	"weekly-metrics/internal/periods"

	"github.com/spf13/cobra"
)

var periodsCmd = &cobra.Command{
	Use:   "periods [week]",
	Short: "Show the comparison weeks, date ranges and year-to-date windows of a base week",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		week := ""
		if len(args) == 1 {
			week = args[0]
		}
		res, err := periods.Resolve(weekOrDefault(week))
		if err != nil {
			return err
		}
		return writeJSON("", res)
	},
}

func init() {
	rootCmd.AddCommand(periodsCmd)
}
