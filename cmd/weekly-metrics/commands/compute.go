package commands

import (
	"os"

	"weekly-metrics/internal/batch"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var computeOpts struct {
	week   string
	weeks  int
	family string
	out    string
	quiet  bool
}

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute the report bundle (or one metric family) for a base week",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch := newOrchestrator()
		week := weekOrDefault(computeOpts.week)
		weeks := computeOpts.weeks
		if weeks == 0 {
			weeks = cfg.NumWeeks
		}

		if computeOpts.family != "" {
			res, err := orch.Family(cmd.Context(), computeOpts.family, week, weeks)
			if err != nil {
				return err
			}
			return writeJSON(computeOpts.out, res)
		}

		var bar *progressbar.ProgressBar
		var progress batch.Progress
		if !computeOpts.quiet {
			progress = func(done, total int, family string) {
				if bar == nil {
					bar = progressbar.NewOptions(total,
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionSetDescription("Computing"),
						progressbar.OptionShowCount(),
						progressbar.OptionSetWidth(30),
						progressbar.OptionClearOnFinish(),
					)
				}
				bar.Describe(family)
				_ = bar.Set(done)
			}
		}

		b, err := orch.ComputeAll(cmd.Context(), week, weeks, progress)
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}
		return writeJSON(computeOpts.out, b)
	},
}

func init() {
	computeCmd.Flags().StringVarP(&computeOpts.week, "week", "w", "", "base week YYYY-WW (defaults to DEFAULT_WEEK)")
	computeCmd.Flags().IntVarP(&computeOpts.weeks, "weeks", "n", 0, "number of trailing weeks, 1-52 (defaults to NUM_WEEKS)")
	computeCmd.Flags().StringVarP(&computeOpts.family, "family", "f", "", "compute a single family instead of the whole bundle")
	computeCmd.Flags().StringVarP(&computeOpts.out, "out", "o", "", "write JSON to this file instead of stdout")
	computeCmd.Flags().BoolVarP(&computeOpts.quiet, "quiet", "q", false, "hide the progress bar")
	rootCmd.AddCommand(computeCmd)
}
