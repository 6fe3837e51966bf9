package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

func TestDotenvQuotedValues(t *testing.T) {
	clearSettings(t)
	content := `DATA_ROOT='/srv/weekly metrics/data'
MAJOR_COUNTRIES="Sweden, United States, United Kingdom"
ENABLE_MERMAID_CHARTS=true # charts in MCP replies
`
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("Error reading env: %v", err)
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg := Defaults()
	applyEnv(&cfg)

	if cfg.DataRoot != "/srv/weekly metrics/data" {
		t.Errorf("expected the quoted path to keep its space, got %q", cfg.DataRoot)
	}
	if len(cfg.MajorCountries) != 3 || cfg.MajorCountries[1] != "United States" {
		t.Errorf("unexpected major countries %q", cfg.MajorCountries)
	}
	if !cfg.EnableMermaidCharts {
		t.Error("expected the trailing comment to be stripped")
	}
}
