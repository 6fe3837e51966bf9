package source

import (
	"fmt"
	"strings"

	"weekly-metrics/internal/table"

	"github.com/xuri/excelize/v2"
)

// xlsxStrategy streams the first worksheet, treating its first non-empty row as the header.
// Cells are read unformatted, so native dates arrive as Excel serials.
type xlsxStrategy struct{}

func (xlsxStrategy) Name() string { return "xlsx" }

func (xlsxStrategy) Parse(path string, _ []byte) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	defer rows.Close()

	var t *table.Table
	var columns []string
	for rows.Next() {
		vals, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if isBlank(vals) {
			continue
		}
		if t == nil {
			columns = cleanHeader(vals)
			t = table.New(columns...)
			continue
		}
		row := make(table.Row, len(columns))
		for i, col := range columns {
			if i < len(vals) {
				row[col] = table.Text(strings.TrimSpace(vals[i]))
			} else {
				row[col] = table.Missing()
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}
	return t, nil
}
