package commands

import (
	"errors"

	"weekly-metrics/internal/qa"
	"weekly-metrics/internal/source"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateWeek string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the raw exports against their schemas and run the data quality checks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch := newOrchestrator()
		b, err := orch.Raw(cmd.Context())
		if err != nil {
			return err
		}
		schema := source.Validate(b, cfg.StrictMode)

		headline, err := orch.Table1(cmd.Context(), weekOrDefault(validateWeek), nil, false)
		if err != nil {
			return err
		}
		checks := qa.Run(b, headline, cfg.StrictMode)

		if err := writeJSON("", map[string]any{"schema": schema, "qa": checks}); err != nil {
			return err
		}
		if !schema.Valid || !checks.Passed {
			log.Warn().Bool("schema", schema.Valid).Bool("qa", checks.Passed).Msg("Validation failed")
			return errors.New("validation failed")
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateWeek, "week", "w", "", "week whose headline metrics are checked (defaults to DEFAULT_WEEK)")
	rootCmd.AddCommand(validateCmd)
}
