package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidPeriod is returned for malformed or out-of-range week strings.
var ErrInvalidPeriod = errors.New("invalid period")

const (
	MinYear = 2000
	MaxYear = 2100

	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
)

var weekPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)

// ISOWeek identifies an ISO-8601 week.
type ISOWeek struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

// String renders the week as YYYY-WW.
func (w ISOWeek) String() string {
	return fmt.Sprintf("%d-%02d", w.Year, w.Week)
}

func (w ISOWeek) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

func (w *ISOWeek) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Before reports whether w comes strictly before other.
func (w ISOWeek) Before(other ISOWeek) bool {
	if w.Year != other.Year {
		return w.Year < other.Year
	}
	return w.Week < other.Week
}

// Parse reads a "YYYY-W" or "YYYY-WW" string. It checks the format and the
// 1..53 week range but not whether week 53 exists in that year.
func Parse(s string) (ISOWeek, error) {
	m := weekPattern.FindStringSubmatch(s)
	if m == nil {
		return ISOWeek{}, fmt.Errorf("%w: %q does not match YYYY-WW", ErrInvalidPeriod, s)
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return ISOWeek{}, fmt.Errorf("%w: week %d out of range in %q", ErrInvalidPeriod, week, s)
	}
	return ISOWeek{Year: year, Week: week}, nil
}

// ParseStrict is Parse plus the year range and week-53 existence checks.
func ParseStrict(s string) (ISOWeek, error) {
	w, err := Parse(s)
	if err != nil {
		return ISOWeek{}, err
	}
	if w.Year < MinYear || w.Year > MaxYear {
		return ISOWeek{}, fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidPeriod, w.Year, MinYear, MaxYear)
	}
	if w.Week == 53 && !HasFiftyThreeWeeks(w.Year) {
		return ISOWeek{}, fmt.Errorf("%w: %d has no week 53", ErrInvalidPeriod, w.Year)
	}
	return w, nil
}

// IsValidISOWeek reports whether s names an existing ISO week between 2000 and 2100.
func IsValidISOWeek(s string) bool {
	_, err := ParseStrict(s)
	return err == nil
}

// HasFiftyThreeWeeks reports whether the ISO year has a week 53.
// December 28 always falls in the last ISO week of its year.
func HasFiftyThreeWeeks(year int) bool {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week == 53
}

// WeeksInYear returns 52 or 53.
func WeeksInYear(year int) int {
	if HasFiftyThreeWeeks(year) {
		return 53
	}
	return 52
}

// PreviousWeek steps back one week, rolling into the prior ISO year.
func PreviousWeek(w ISOWeek) ISOWeek {
	if w.Week > 1 {
		return ISOWeek{Year: w.Year, Week: w.Week - 1}
	}
	return ISOWeek{Year: w.Year - 1, Week: WeeksInYear(w.Year - 1)}
}

// NextWeek steps forward one week, rolling into the next ISO year.
func NextWeek(w ISOWeek) ISOWeek {
	if w.Week < WeeksInYear(w.Year) {
		return ISOWeek{Year: w.Year, Week: w.Week + 1}
	}
	return ISOWeek{Year: w.Year + 1, Week: 1}
}

// LastYearWeek keeps the week number and shifts the year back by one. The
// calendar alignment with w is not preserved.
//
// Week 53 deliberately becomes week 52 when the prior year has no week 53,
// instead of naming a week that does not exist and can hold no data.
func LastYearWeek(w ISOWeek) ISOWeek {
	prev := ISOWeek{Year: w.Year - 1, Week: w.Week}
	if prev.Week == 53 && !HasFiftyThreeWeeks(prev.Year) {
		prev.Week = 52
	}
	return prev
}

// WithYear keeps the week number in another year. Week 53 is clamped to 52
// the same deliberate way as in LastYearWeek.
func WithYear(w ISOWeek, year int) ISOWeek {
	out := ISOWeek{Year: year, Week: w.Week}
	if out.Week == 53 && !HasFiftyThreeWeeks(year) {
		out.Week = 52
	}
	return out
}

// WeeksBack returns n consecutive weeks ending at base, oldest first.
func WeeksBack(base ISOWeek, n int) []ISOWeek {
	if n <= 0 {
		return nil
	}
	weeks := make([]ISOWeek, n)
	cur := base
	for i := n - 1; i >= 0; i-- {
		weeks[i] = cur
		cur = PreviousWeek(cur)
	}
	return weeks
}

// WeekOf returns the ISO week containing t.
func WeekOf(t time.Time) ISOWeek {
	year, week := t.ISOWeek()
	return ISOWeek{Year: year, Week: week}
}

// CurrentISOWeek returns the ISO week containing now.
func CurrentISOWeek(now time.Time) ISOWeek {
	return WeekOf(now)
}

// Monday returns the first day of the ISO week.
func Monday(w ISOWeek) time.Time {
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	// Snap to Monday
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	firstMonday := jan4.AddDate(0, 0, -(weekday - 1))
	return firstMonday.AddDate(0, 0, 7*(w.Week-1))
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start   time.Time
	End     time.Time
	Display string
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"start":   r.Start.Format(DateLayout),
		"end":     r.End.Format(DateLayout),
		"display": r.Display,
	})
}

func (r *DateRange) UnmarshalJSON(b []byte) error {
	var raw struct {
		Start   string `json:"start"`
		End     string `json:"end"`
		Display string `json:"display"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	start, err := time.Parse(DateLayout, raw.Start)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
	}
	end, err := time.Parse(DateLayout, raw.End)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
	}
	*r = DateRange{Start: start, End: end, Display: raw.Display}
	return nil
}

// NewDateRange builds a range with the short "Jan 02 - Jan 08" display.
func NewDateRange(start, end time.Time) DateRange {
	start, end = Day(start), Day(end)
	return DateRange{
		Start:   start,
		End:     end,
		Display: fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("Jan 02")),
	}
}

// WeekDateRange maps a week string to its Monday-Sunday range.
func WeekDateRange(s string) (DateRange, error) {
	w, err := Parse(s)
	if err != nil {
		return DateRange{}, err
	}
	return RangeOf(w), nil
}

// RangeOf maps a parsed week to its Monday-Sunday range.
func RangeOf(w ISOWeek) DateRange {
	start := Monday(w)
	return NewDateRange(start, start.AddDate(0, 0, 6))
}

// FiscalYearStart is April 1 of the given year.
func FiscalYearStart(year int) time.Time {
	return time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC)
}

// YearToDate runs from the fiscal-year start of w's year to the Sunday of w.
func YearToDate(w ISOWeek) DateRange {
	return NewDateRange(FiscalYearStart(w.Year), RangeOf(w).End)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
