package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ErrMissingColumn is returned when a calculation needs a field the table does not carry.
var ErrMissingColumn = errors.New("missing column")

// Provenance and derived column names.
const (
	SourceFileColumn = "_source_file"
	SourceTypeColumn = "_source_type"
	DateColumn       = "_date"
	WeekColumn       = "iso_week"
)

type valueKind uint8

const (
	kindMissing valueKind = iota
	kindString
	kindNumber
	kindDate
)

// Value is a single cell. The zero Value is missing.
type Value struct {
	kind valueKind
	s    string
	f    float64
	t    time.Time
}

var nullTokens = map[string]bool{
	"":     true,
	"NULL": true,
	"null": true,
	"N/A":  true,
	"n/a":  true,
}

// Missing returns the missing value.
func Missing() Value { return Value{} }

// Text wraps raw text, turning null tokens into missing.
func Text(s string) Value {
	if nullTokens[strings.TrimSpace(s)] {
		return Value{}
	}
	return Value{kind: kindString, s: s}
}

// Number wraps a numeric value.
func Number(f float64) Value { return Value{kind: kindNumber, f: f} }

// Date wraps a calendar date.
func Date(t time.Time) Value { return Value{kind: kindDate, t: t} }

func (v Value) IsMissing() bool { return v.kind == kindMissing }

// String renders the cell as text. Missing cells are empty.
func (v Value) String() string {
	switch v.kind {
	case kindString:
		return v.s
	case kindNumber:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case kindDate:
		return v.t.Format("2006-01-02")
	default:
		return ""
	}
}

// Float coerces the cell to a number.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case kindNumber:
		return v.f, true
	case kindString:
		return ParseNumber(v.s)
	default:
		return 0, false
	}
}

// Time returns the cell as a date when it holds one.
func (v Value) Time() (time.Time, bool) {
	switch v.kind {
	case kindDate:
		return v.t, true
	case kindString:
		return ParseDate(v.s)
	case kindNumber:
		return fromExcelSerial(v.f)
	default:
		return time.Time{}, false
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindMissing:
		return []byte("null"), nil
	case kindNumber:
		return []byte(strconv.FormatFloat(v.f, 'f', -1, 64)), nil
	default:
		return []byte(strconv.Quote(v.String())), nil
	}
}

// ParseNumber reads plain, thousands-separated and comma-decimal numbers.
// A separator that repeats is always a thousands separator.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.NewReplacer(" ", "", "\u00a0", "", "'", "").Replace(s)
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0 && strings.Count(s, ",") > 1:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		// Dots only as thousands separators: 1.234.567
		s = strings.ReplaceAll(s, ".", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Row is one record keyed by column name.
type Row map[string]Value

// String returns the trimmed text of a column.
func (r Row) String(col string) string {
	return strings.TrimSpace(r[col].String())
}

// Float returns a numeric column; missing or non-numeric cells count as 0.
func (r Row) Float(col string) float64 {
	f, _ := r[col].Float()
	return f
}

// Missing reports whether a column is absent or null in this row.
func (r Row) Missing(col string) bool {
	return r[col].IsMissing()
}

// Table is an in-memory, column-ordered collection of rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows. A nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return t.Len() == 0 }

// Has reports whether the table declares a column.
func (t *Table) Has(col string) bool {
	if t == nil {
		return false
	}
	return lo.Contains(t.Columns, col)
}

// Require fails with ErrMissingColumn naming the first absent column.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
	}
	return nil
}

// FirstOf returns the first of the candidate columns the table carries.
func (t *Table) FirstOf(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if t.Has(c) {
			return c, true
		}
	}
	return "", false
}

// Append adds a row, registering any new columns.
func (t *Table) Append(r Row) {
	for col := range r {
		if !t.Has(col) {
			t.Columns = append(t.Columns, col)
		}
	}
	t.Rows = append(t.Rows, r)
}

// AddColumn registers a column without touching rows.
func (t *Table) AddColumn(col string) {
	if !t.Has(col) {
		t.Columns = append(t.Columns, col)
	}
}

// Filter returns a new table with the rows that satisfy keep. Rows are shared.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New()
	if t == nil {
		return out
	}
	out.Columns = append(out.Columns, t.Columns...)
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Where keeps rows whose column equals value.
func (t *Table) Where(col, value string) *Table {
	return t.Filter(func(r Row) bool { return r.String(col) == value })
}

// Sum adds up a numeric column.
func (t *Table) Sum(col string) float64 {
	if t == nil {
		return 0
	}
	return lo.SumBy(t.Rows, func(r Row) float64 { return r.Float(col) })
}

// CountDistinct counts distinct non-missing values of a column.
func (t *Table) CountDistinct(col string) int {
	if t == nil {
		return 0
	}
	seen := make(map[string]struct{})
	for _, r := range t.Rows {
		if r.Missing(col) {
			continue
		}
		seen[r.String(col)] = struct{}{}
	}
	return len(seen)
}

// Concat stacks tables row-wise over the union of their columns.
func Concat(tables ...*Table) *Table {
	tables = lo.Filter(tables, func(t *Table, _ int) bool { return t != nil })
	out := New()
	out.Columns = lo.Union(lo.Map(tables, func(t *Table, _ int) []string { return t.Columns })...)
	for _, t := range tables {
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out
}
