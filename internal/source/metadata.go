package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/table"
)

// ErrOutsideRoot is returned when a requested file escapes the raw-data root.
var ErrOutsideRoot = errors.New("path outside raw data directory")

// Confine resolves path against root, relative paths included, and rejects
// anything that escapes it.
func Confine(root, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrOutsideRoot)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(absRoot, path)
	}
	rel, err := filepath.Rel(absRoot, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return filepath.Join(absRoot, rel), nil
}

// FileMetadata reports the date coverage of one uploaded file.
type FileMetadata struct {
	FirstDate  string `json:"first_date,omitempty"`
	LastDate   string `json:"last_date,omitempty"`
	RowCount   int    `json:"row_count"`
	DateColumn string `json:"date_column,omitempty"`
	Error      string `json:"error,omitempty"`
}

var genericDateColumns = []string{"date", "day", "days", "order date", "created_at"}

// ExtractFileMetadata parses a single file and reports its first and last
// dates. Failures are reported in the Error field, never returned.
func ExtractFileMetadata(path string, k Kind) FileMetadata {
	t, err := ParseFile(path)
	if err != nil {
		return FileMetadata{Error: err.Error()}
	}

	col, ok := findDateColumn(t, k)
	if !ok {
		return FileMetadata{Error: "no date column found", RowCount: t.Len()}
	}

	var first, last time.Time
	for _, r := range t.Rows {
		d, ok := r[col].Time()
		if !ok {
			continue
		}
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
	}
	if first.IsZero() {
		return FileMetadata{Error: fmt.Sprintf("no parseable dates in column %q", col), RowCount: t.Len()}
	}

	return FileMetadata{
		FirstDate:  first.Format(calendar.DateLayout),
		LastDate:   last.Format(calendar.DateLayout),
		RowCount:   t.Len(),
		DateColumn: col,
	}
}

// findDateColumn matches the kind's date columns, then generic names, case-insensitively.
func findDateColumn(t *table.Table, k Kind) (string, bool) {
	spec, _ := SpecFor(k)
	candidates := append(append([]string(nil), spec.DateColumns...), genericDateColumns...)
	for _, want := range candidates {
		for _, col := range t.Columns {
			if strings.EqualFold(strings.TrimSpace(col), want) {
				return col, true
			}
		}
	}
	return "", false
}
