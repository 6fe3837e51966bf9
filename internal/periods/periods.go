package periods

import (
	"fmt"
	"strings"

	"weekly-metrics/internal/calendar"
)

// Period names, in display order.
const (
	Actual   = "actual"
	LastWeek = "last_week"
	LastYear = "last_year"
	Year2023 = "year_2023"

	YTDActual   = "ytd_actual"
	YTDLastYear = "ytd_last_year"
	YTD2023     = "ytd_2023"

	FixedComparisonYear = 2023
)

// Names lists the comparison periods in their fixed order.
var Names = []string{Actual, LastWeek, LastYear, Year2023}

// YTDNames lists the year-to-date windows paired with Names.
var YTDNames = []string{YTDActual, YTDLastYear, YTD2023}

var ytdFor = map[string]string{
	YTDActual:   Actual,
	YTDLastYear: LastYear,
	YTD2023:     Year2023,
}

// Set maps period names to weeks.
type Set map[string]calendar.ISOWeek

// Labels renders the set as period -> "YYYY-WW".
func (s Set) Labels() map[string]string {
	out := make(map[string]string, len(s))
	for k, w := range s {
		out[k] = w.String()
	}
	return out
}

// ForWeek derives the four comparison periods from a base week.
func ForWeek(baseWeek string) (Set, error) {
	base, err := calendar.ParseStrict(baseWeek)
	if err != nil {
		return nil, err
	}
	return forWeek(base), nil
}

func forWeek(base calendar.ISOWeek) Set {
	return Set{
		Actual:   base,
		LastWeek: calendar.PreviousWeek(base),
		LastYear: calendar.LastYearWeek(base),
		Year2023: calendar.WithYear(base, FixedComparisonYear),
	}
}

// YTDForWeek derives the year-to-date windows: April 1 of each period's year
// through the Sunday of that period's week.
func YTDForWeek(baseWeek string) (map[string]calendar.DateRange, error) {
	set, err := ForWeek(baseWeek)
	if err != nil {
		return nil, err
	}
	out := make(map[string]calendar.DateRange, len(YTDNames))
	for _, name := range YTDNames {
		out[name] = calendar.YearToDate(set[ytdFor[name]])
	}
	return out, nil
}

// DateRanges maps each period to its Monday-Sunday range.
func DateRanges(s Set) map[string]calendar.DateRange {
	out := make(map[string]calendar.DateRange, len(s))
	for name, w := range s {
		out[name] = calendar.RangeOf(w)
	}
	return out
}

// Filter keeps the requested period names, rejecting unknown ones.
func Filter(s Set, requested []string) (Set, error) {
	out := make(Set, len(requested))
	for _, name := range requested {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		w, ok := s[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown period %q", calendar.ErrInvalidPeriod, name)
		}
		out[name] = w
	}
	return out, nil
}

// Ordered returns the names present in s, in display order.
func Ordered(s Set) []string {
	var out []string
	for _, name := range Names {
		if _, ok := s[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Resolution is the full description of a base week.
type Resolution struct {
	Actual     string                        `json:"actual"`
	LastWeek   string                        `json:"last_week"`
	LastYear   string                        `json:"last_year"`
	Year2023   string                        `json:"year_2023"`
	DateRanges map[string]calendar.DateRange `json:"date_ranges"`
	YTDPeriods map[string]calendar.DateRange `json:"ytd_periods"`
}

// Resolve bundles the period set, its date ranges and the YTD windows.
func Resolve(baseWeek string) (Resolution, error) {
	set, err := ForWeek(baseWeek)
	if err != nil {
		return Resolution{}, err
	}
	ytd, err := YTDForWeek(baseWeek)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		Actual:     set[Actual].String(),
		LastWeek:   set[LastWeek].String(),
		LastYear:   set[LastYear].String(),
		Year2023:   set[Year2023].String(),
		DateRanges: DateRanges(set),
		YTDPeriods: ytd,
	}, nil
}
