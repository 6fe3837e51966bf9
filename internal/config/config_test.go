package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var settingKeys = []string{
	"CONFIG_FILE", "DATA_ROOT", "OUTPUT_ROOT", "CACHE_DIR", "STRICT_MODE", "LOG_LEVEL",
	"DEFAULT_WEEK", "NUM_WEEKS", "TOP_PRODUCTS", "RAW_CACHE_MAX_AGE", "METRICS_CACHE_TTL",
	"METRICS_CACHE_MAX_ENTRIES", "HTTP_ADDR", "ENABLE_MERMAID_CHARTS", "MAJOR_COUNTRIES",
}

func clearSettings(t *testing.T) {
	t.Helper()
	for _, k := range settingKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearSettings(t)
	root := t.TempDir()
	t.Setenv("DATA_ROOT", root)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CacheDir != filepath.Join(root, "cache") {
		t.Errorf("expected cache under data root, got %s", cfg.CacheDir)
	}
	if cfg.RawDir() != filepath.Join(root, "raw") {
		t.Errorf("unexpected raw dir %s", cfg.RawDir())
	}
	if !cfg.StrictMode || cfg.NumWeeks != 8 || cfg.TopProducts != 20 || cfg.HTTPAddr != ":8000" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.DefaultWeek == "" {
		t.Error("expected the current week as default")
	}
	if _, err := os.Stat(cfg.CacheDir); err != nil {
		t.Errorf("expected the cache directory to be created: %v", err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearSettings(t)
	root := t.TempDir()
	file := filepath.Join(root, "weekly.yaml")
	content := `
data_root: ` + root + `
num_weeks: 12
top_products: 5
metrics_cache_ttl: 30m
major_countries: [Sweden, Norway]
monthly_budget:
  "2025-10": 31000
`
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NUM_WEEKS", "4")
	t.Setenv("STRICT_MODE", "false")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.NumWeeks != 4 {
		t.Errorf("expected the environment to override the file, got %d", cfg.NumWeeks)
	}
	if cfg.TopProducts != 5 || cfg.MetricsCacheTTL != 30*time.Minute || cfg.StrictMode {
		t.Errorf("unexpected overlay result %+v", cfg)
	}
	opts := cfg.MetricsOptions()
	if len(opts.MajorCountries) != 2 || opts.MonthlyBudget["2025-10"] != 31000 || opts.TopN != 5 {
		t.Errorf("unexpected metrics options %+v", opts)
	}
	if cfg.ConfigFile != file {
		t.Errorf("expected the applied file to be recorded, got %q", cfg.ConfigFile)
	}
}

func TestLoad_Invalid(t *testing.T) {
	clearSettings(t)
	t.Setenv("DATA_ROOT", t.TempDir())

	t.Setenv("NUM_WEEKS", "60")
	if _, err := Load(""); err == nil {
		t.Error("expected an error for NUM_WEEKS above 52")
	}

	t.Setenv("NUM_WEEKS", "")
	t.Setenv("DEFAULT_WEEK", "2025-60")
	if _, err := Load(""); err == nil {
		t.Error("expected an error for an invalid default week")
	}

	t.Setenv("DEFAULT_WEEK", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" US, UK ,,Sweden")
	if len(got) != 3 || got[0] != "US" || got[2] != "Sweden" {
		t.Errorf("unexpected list %v", got)
	}
}
