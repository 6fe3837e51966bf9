package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"weekly-metrics/internal/table"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrSourceNotFound is returned when a kind's directory or files are absent.
var ErrSourceNotFound = errors.New("source not found")

// Bundle holds every loaded kind for one raw-data directory.
type Bundle map[Kind]*table.Table

// Table returns the kind's table, or an empty one when it was not loaded.
func (b Bundle) Table(k Kind) *table.Table {
	if t, ok := b[k]; ok && t != nil {
		return t
	}
	return table.New()
}

// Loader discovers and parses the exports under a raw-data root.
type Loader struct {
	root     string
	required map[Kind]bool
}

// NewLoader creates a loader for root. In strict mode every core kind must be
// present; otherwise only the analytics export is required.
func NewLoader(root string, strict bool) *Loader {
	required := map[Kind]bool{Analytics: true}
	if strict {
		for _, k := range CoreKinds {
			required[k] = true
		}
	}
	return &Loader{root: root, required: required}
}

// Root is the raw-data directory the loader reads.
func (l *Loader) Root() string { return l.root }

// ResolveDir finds the kind's directory: {root}/{kind} (or a legacy alias),
// then the flat layout one level up.
func (l *Loader) ResolveDir(k Kind) (string, error) {
	spec, ok := SpecFor(k)
	if !ok {
		return "", fmt.Errorf("unknown source kind %q", k)
	}
	names := append([]string{string(k)}, spec.Aliases...)
	for _, base := range []string{l.root, filepath.Dir(filepath.Clean(l.root))} {
		for _, name := range names {
			dir := filepath.Join(base, name)
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				return dir, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no directory for %s under %s", ErrSourceNotFound, k, l.root)
}

// LoadRaw reads a kind without deriving week labels.
func (l *Loader) LoadRaw(ctx context.Context, k Kind) (*table.Table, error) {
	dir, err := l.ResolveDir(k)
	if err != nil {
		return nil, err
	}

	if path, ok := FindSnapshot(dir); ok {
		t, err := ReadSnapshot(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot %s: %v", ErrParseFailure, filepath.Base(path), err)
		}
		tagProvenance(t, filepath.Base(path), k)
		log.Info().Str("kind", string(k)).Str("snapshot", path).Int("rows", t.Len()).Msg("Loaded source from snapshot")
		return t, nil
	}

	files, err := listFiles(dir, k)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files for %s in %s", ErrSourceNotFound, k, dir)
	}

	tables := make([]*table.Table, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := ParseFile(path)
		if err != nil {
			log.Error().Err(err).Str("kind", string(k)).Str("file", path).Msg("Failed to parse source file")
			return nil, err
		}
		tagProvenance(t, filepath.Base(path), k)
		tables = append(tables, t)
	}

	out := tables[0]
	if len(tables) > 1 {
		out = table.Concat(tables...)
	}
	log.Info().Str("kind", string(k)).Int("files", len(files)).Int("rows", out.Len()).Msg("Loaded source")
	return out, nil
}

// Load reads a kind and labels each row with its ISO week.
func (l *Loader) Load(ctx context.Context, k Kind) (*table.Table, error) {
	t, err := l.LoadRaw(ctx, k)
	if err != nil {
		return nil, err
	}
	return LabelWeeks(k, t), nil
}

// LoadAll loads the core kinds concurrently plus the optional other kind.
// A missing optional kind is logged and left out; any other failure aborts.
func (l *Loader) LoadAll(ctx context.Context) (Bundle, error) {
	start := time.Now()
	bundle := make(Bundle)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, k := range append(append([]Kind(nil), CoreKinds...), Other) {
		g.Go(func() error {
			t, err := l.Load(gctx, k)
			if err != nil {
				if errors.Is(err, ErrSourceNotFound) && !l.required[k] {
					log.Warn().Err(err).Str("kind", string(k)).Msg("Optional source not available")
					return nil
				}
				return fmt.Errorf("failed to load %s: %w", k, err)
			}
			mu.Lock()
			bundle[k] = t
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().Str("root", l.root).Int("kinds", len(bundle)).Dur("elapsed", time.Since(start)).Msg("Loaded raw data")
	return bundle, nil
}

func listFiles(dir string, k Kind) ([]string, error) {
	spec, _ := SpecFor(k)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceNotFound, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".csv":
			files = append(files, filepath.Join(dir, name))
		case ".xlsx":
			if spec.Spreadsheet {
				files = append(files, filepath.Join(dir, name))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func tagProvenance(t *table.Table, file string, k Kind) {
	hasFile := t.Has(table.SourceFileColumn)
	t.AddColumn(table.SourceFileColumn)
	t.AddColumn(table.SourceTypeColumn)
	for _, r := range t.Rows {
		if !hasFile || r.Missing(table.SourceFileColumn) {
			r[table.SourceFileColumn] = table.Text(file)
		}
		r[table.SourceTypeColumn] = table.Text(string(k))
	}
}

// LabelWeeks derives ISO-week labels from the kind's date column when it has one.
func LabelWeeks(k Kind, t *table.Table) *table.Table {
	spec, _ := SpecFor(k)
	if len(spec.DateColumns) == 0 {
		return t
	}
	col, ok := t.FirstOf(spec.DateColumns...)
	if !ok {
		log.Warn().Str("kind", string(k)).Strs("candidates", spec.DateColumns).Msg("No date column, rows stay unlabeled")
		return t
	}
	labeled, err := table.WithISOWeek(t, col)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(k)).Msg("Failed to label weeks")
		return t
	}
	return labeled
}
