package commands

import (
	"weekly-metrics/internal/source"

	"github.com/spf13/cobra"
)

var metadataKind string

var metadataCmd = &cobra.Command{
	Use:   "metadata <file>",
	Short: "Report the date coverage and row count of one export file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := source.ParseKind(metadataKind)
		if err != nil {
			return err
		}
		return writeJSON("", source.ExtractFileMetadata(args[0], kind))
	},
}

func init() {
	metadataCmd.Flags().StringVarP(&metadataKind, "kind", "k", string(source.Analytics), "source kind: analytics, marketing-spend, margin, ecommerce-sessions, other")
	rootCmd.AddCommand(metadataCmd)
}
