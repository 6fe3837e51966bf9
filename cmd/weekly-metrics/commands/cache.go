package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persisted metrics cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached result",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		newOrchestrator().ClearCaches()
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <week>",
	Short: "Drop the cached results computed for one base week",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newOrchestrator().InvalidateWeek(args[0]); err != nil {
			return err
		}
		log.Info().Str("week", args[0]).Msg("Invalidated cached results")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
