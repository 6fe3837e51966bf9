package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"weekly-metrics/internal/batch"
	"weekly-metrics/internal/cache"
	"weekly-metrics/internal/config"
	"weekly-metrics/internal/logging"
	"weekly-metrics/internal/source"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose    bool
	configPath string
	cfg        *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "weekly-metrics",
	Short: "Weekly KPI aggregation over e-commerce exports",
	Long: `Computes the weekly management report figures (headline KPIs, market rankings,
per-country and per-segment series, product rankings) from raw analytics, marketing
spend, margin and session exports, and serves them over HTTP or MCP.

Without a subcommand the MCP server is started on stdio.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("command", cmd.Name()).
			Msg("weekly-metrics starting")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd, args)
	},
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration overlay (defaults to $CONFIG_FILE)")
}

func newLoader() *source.Loader {
	return source.NewLoader(cfg.RawDir(), cfg.StrictMode)
}

func newOrchestrator() *batch.Orchestrator {
	return batch.NewOrchestrator(newLoader(),
		cache.NewRawCache[source.Bundle](cfg.RawCacheMaxAge, nil),
		cache.NewMetricsCache(cfg.CacheDir, cfg.MetricsCacheTTL, cfg.MetricsCacheMaxEntries, nil),
		cfg.MetricsOptions())
}

// weekOrDefault returns the --week flag value or the configured default week.
func weekOrDefault(week string) string {
	if week != "" {
		return week
	}
	return cfg.DefaultWeek
}

// writeJSON prints v to stdout, or to path when one is given.
func writeJSON(path string, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	out = append(out, '\n')

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("bytes", len(out)).Msg("Wrote output")
	return nil
}
