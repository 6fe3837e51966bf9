package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"weekly-metrics/internal/cache"
	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/metrics"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataRoot               string             `yaml:"data_root"`
	OutputRoot             string             `yaml:"output_root"`
	CacheDir               string             `yaml:"cache_dir"`
	StrictMode             bool               `yaml:"strict_mode"`
	LogLevel               string             `yaml:"log_level"`
	DefaultWeek            string             `yaml:"default_week"`
	NumWeeks               int                `yaml:"num_weeks"`
	TopProducts            int                `yaml:"top_products"`
	RawCacheMaxAge         time.Duration      `yaml:"raw_cache_max_age"`
	MetricsCacheTTL        time.Duration      `yaml:"metrics_cache_ttl"`
	MetricsCacheMaxEntries int                `yaml:"metrics_cache_max_entries"`
	HTTPAddr               string             `yaml:"http_addr"`
	EnableMermaidCharts    bool               `yaml:"enable_mermaid_charts"`
	MajorCountries         []string           `yaml:"major_countries"`
	MonthlyBudget          map[string]float64 `yaml:"monthly_budget"`

	// ConfigFile is the YAML overlay that was applied, if any.
	ConfigFile string `yaml:"-"`
}

// RawDir is where the source exports live.
func (c *AppConfig) RawDir() string { return filepath.Join(c.DataRoot, "raw") }

// MetricsOptions maps the configuration onto the calculator options.
func (c *AppConfig) MetricsOptions() metrics.Options {
	return metrics.Options{
		TopN:           c.TopProducts,
		MajorCountries: c.MajorCountries,
		MonthlyBudget:  c.MonthlyBudget,
	}
}

// Defaults returns the built-in configuration before any overlay.
func Defaults() AppConfig {
	return AppConfig{
		DataRoot:               "./data",
		OutputRoot:             "./reports",
		StrictMode:             true,
		LogLevel:               "info",
		NumWeeks:               metrics.DefaultNumWeeks,
		TopProducts:            metrics.DefaultTopN,
		RawCacheMaxAge:         cache.MetricsRawMaxAge,
		MetricsCacheTTL:        cache.DefaultMetricsTTL,
		MetricsCacheMaxEntries: cache.DefaultMetricsMaxEntries,
		HTTPAddr:               ":8000",
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path (or CONFIG_FILE) and finally environment variables, which win.
func Load(path string) (*AppConfig, error) {
	// The binary's .env takes priority for servers launched from elsewhere.
	if exePath, err := os.Executable(); err == nil {
		envPath := filepath.Join(filepath.Dir(exePath), ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	cfg := Defaults()
	if path == "" {
		path = getEnv("CONFIG_FILE", "")
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}
	applyEnv(&cfg)

	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.DataRoot, "cache")
	}
	if cfg.DefaultWeek == "" {
		cfg.DefaultWeek = calendar.CurrentISOWeek(time.Now()).String()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cfg.CacheDir).Msg("Failed to create cache directory")
	}
	return &cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Applied configuration file")
	return nil
}

func applyEnv(cfg *AppConfig) {
	cfg.DataRoot = getEnv("DATA_ROOT", cfg.DataRoot)
	cfg.OutputRoot = getEnv("OUTPUT_ROOT", cfg.OutputRoot)
	cfg.CacheDir = getEnv("CACHE_DIR", cfg.CacheDir)
	cfg.StrictMode = getEnvBool("STRICT_MODE", cfg.StrictMode)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultWeek = getEnv("DEFAULT_WEEK", cfg.DefaultWeek)
	cfg.NumWeeks = getEnvInt("NUM_WEEKS", cfg.NumWeeks)
	cfg.TopProducts = getEnvInt("TOP_PRODUCTS", cfg.TopProducts)
	cfg.RawCacheMaxAge = getEnvDuration("RAW_CACHE_MAX_AGE", cfg.RawCacheMaxAge)
	cfg.MetricsCacheTTL = getEnvDuration("METRICS_CACHE_TTL", cfg.MetricsCacheTTL)
	cfg.MetricsCacheMaxEntries = getEnvInt("METRICS_CACHE_MAX_ENTRIES", cfg.MetricsCacheMaxEntries)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.EnableMermaidCharts = getEnvBool("ENABLE_MERMAID_CHARTS", cfg.EnableMermaidCharts)
	if v := getEnv("MAJOR_COUNTRIES", ""); v != "" {
		cfg.MajorCountries = splitList(v)
	}
}

func (c *AppConfig) validate() error {
	if _, err := calendar.ParseStrict(c.DefaultWeek); err != nil {
		return fmt.Errorf("invalid DEFAULT_WEEK: %w", err)
	}
	if c.NumWeeks < 1 || c.NumWeeks > metrics.MaxNumWeeks {
		return fmt.Errorf("NUM_WEEKS must be between 1 and %d, got %d", metrics.MaxNumWeeks, c.NumWeeks)
	}
	if c.TopProducts < 1 {
		return fmt.Errorf("TOP_PRODUCTS must be positive, got %d", c.TopProducts)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-integer setting")
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring malformed duration")
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
