package source

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"weekly-metrics/internal/table"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SnapshotSuffix marks a pre-materialized table file.
const SnapshotSuffix = ".snapshot.db"

const snapshotTable = "records"

// FindSnapshot returns the first snapshot file found under dir, recursively.
func FindSnapshot(dir string) (string, bool) {
	var found string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), SnapshotSuffix) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found, found != ""
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(ctx context.Context, path string) (*table.Table, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+snapshotTable)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot columns: %w", err)
	}

	t := table.New(columns...)
	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		row := make(table.Row, len(columns))
		for i, col := range columns {
			if values[i].Valid {
				row[col] = table.Text(values[i].String)
			} else {
				row[col] = table.Missing()
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}
	return t, nil
}

// WriteSnapshot materializes a table into a single-table SQLite file,
// replacing any existing file at path.
func WriteSnapshot(ctx context.Context, path string, t *table.Table) error {
	tmpPath := path + ".tmp"
	_ = os.Remove(tmpPath)

	db, err := sql.Open("sqlite", tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	if err := writeRecords(ctx, db, t); err != nil {
		db.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	log.Info().Str("path", path).Int("rows", t.Len()).Msg("Wrote snapshot")
	return nil
}

func writeRecords(ctx context.Context, db *sql.DB, t *table.Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("cannot snapshot a table without columns")
	}
	quoted := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
		marks[i] = "?"
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (%s TEXT)", snapshotTable, strings.Join(quoted, " TEXT, "))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create snapshot table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		snapshotTable, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			if r.Missing(c) {
				args[i] = nil
			} else {
				args[i] = r[c].String()
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert snapshot row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}
