package table

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"weekly-metrics/internal/calendar"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2-Jan-2006",
	"Jan 2, 2006",
}

// ParseDate reads the date formats found in the exports, including Excel serials.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendar.Day(t), true
		}
	}
	if serialPattern.MatchString(s) {
		f, _ := strconv.ParseFloat(s, 64)
		return fromExcelSerial(f)
	}
	return time.Time{}, false
}

// serialPattern matches unformatted workbook dates such as 45943 or 45943.5.
var serialPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Excel serials count days from 1899-12-30.
func fromExcelSerial(f float64) (time.Time, bool) {
	if f < 1 || f > 2958465 {
		return time.Time{}, false
	}
	base := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(math.Floor(f))), true
}

// WithISOWeek labels every row with its ISO week derived from dateColumn.
// Unparseable dates leave both the date and the label missing. A table that
// already carries the label is returned unchanged.
func WithISOWeek(t *Table, dateColumn string) (*Table, error) {
	if t.Has(WeekColumn) {
		return t, nil
	}
	if err := t.Require(dateColumn); err != nil {
		return nil, err
	}

	out := New(t.Columns...)
	out.AddColumn(DateColumn)
	out.AddColumn(WeekColumn)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		labeled := make(Row, len(r)+2)
		for k, v := range r {
			labeled[k] = v
		}
		if d, ok := r[dateColumn].Time(); ok {
			labeled[DateColumn] = Date(d)
			labeled[WeekColumn] = Text(calendar.WeekOf(d).String())
		} else {
			labeled[DateColumn] = Missing()
			labeled[WeekColumn] = Missing()
		}
		out.Rows[i] = labeled
	}
	return out, nil
}

// SliceToWeek keeps the rows labeled with week. Unlabeled tables yield no rows.
func SliceToWeek(t *Table, week calendar.ISOWeek) *Table {
	label := week.String()
	return t.Filter(func(r Row) bool {
		return !r.Missing(WeekColumn) && r.String(WeekColumn) == label
	})
}

// SliceToDateRange keeps the rows whose date falls inside r, both ends inclusive.
func SliceToDateRange(t *Table, r calendar.DateRange) *Table {
	return t.Filter(func(row Row) bool {
		d, ok := row[DateColumn].Time()
		return ok && r.Contains(d)
	})
}

// Weeks lists the distinct week labels present, in first-seen order.
func Weeks(t *Table) []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Rows {
		if r.Missing(WeekColumn) {
			continue
		}
		w := r.String(WeekColumn)
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
