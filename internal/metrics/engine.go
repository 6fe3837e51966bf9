package metrics

import (
	"errors"
	"fmt"

	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"

	"github.com/rs/zerolog/log"
)

// errNoData marks a week without source rows. Multi-week wrappers skip it.
var errNoData = errors.New("no data for week")

const (
	DefaultTopN     = 20
	DefaultNumWeeks = 8
	MaxNumWeeks     = 52
)

// Options tune an Engine.
type Options struct {
	TopN           int
	MajorCountries []string
	// MonthlyBudget maps "YYYY-MM" to the month's budgeted total net revenue.
	MonthlyBudget map[string]float64
}

// Engine computes every metric family over one loaded bundle.
type Engine struct {
	analytics *table.Table
	spend     *table.Table
	margin    *table.Table
	sessions  *table.Table
	opts      Options
}

// NewEngine labels the bundle's tables with ISO weeks (a no-op for tables
// the loader already labeled) and keeps them for every family.
func NewEngine(b source.Bundle, opts Options) *Engine {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if len(opts.MajorCountries) == 0 {
		opts.MajorCountries = DefaultMajorCountries
	}
	label := func(k source.Kind) *table.Table {
		return source.LabelWeeks(k, b.Table(k))
	}
	return &Engine{
		analytics: label(source.Analytics),
		spend:     label(source.MarketingSpend),
		margin:    label(source.Margin),
		sessions:  label(source.EcommerceSessions),
		opts:      opts,
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// slice holds one period's rows from every source.
type slice struct {
	label     string
	analytics *table.Table
	online    *table.Table
	spend     *table.Table
	margin    *table.Table
	sessions  *table.Table
}

func newSlice(label string, pick func(*table.Table) *table.Table, e *Engine) slice {
	analytics := pick(e.analytics)
	return slice{
		label:     label,
		analytics: analytics,
		online:    analytics.Where(source.ColChannel, ChannelOnline),
		spend:     pick(e.spend),
		margin:    pick(e.margin),
		sessions:  pick(e.sessions),
	}
}

func (e *Engine) week(w calendar.ISOWeek) slice {
	return newSlice(w.String(), func(t *table.Table) *table.Table {
		return table.SliceToWeek(t, w)
	}, e)
}

func (e *Engine) dateRange(label string, r calendar.DateRange) slice {
	return newSlice(label, func(t *table.Table) *table.Table {
		return table.SliceToDateRange(t, r)
	}, e)
}

func (e *Engine) ratio(p Policy, scale float64) CountryRatio {
	return CountryRatio{Policy: p, Scale: scale, Majors: e.opts.MajorCountries}
}

// spendTotal sums the spend column, falling back to the legacy cost column.
func spendTotal(t *table.Table) float64 {
	col, ok := spendColumn(t)
	if !ok {
		return 0
	}
	return t.Sum(col)
}

func spendColumn(t *table.Table) (string, bool) {
	return t.FirstOf(source.ColSpend, source.ColSpendFallback)
}

// segment keeps the rows of one normalized customer segment.
func segment(t *table.Table, col, want string) *table.Table {
	return t.Filter(func(r table.Row) bool {
		return NormalizeSegment(r.String(col)) == want
	})
}

// PeriodInfo describes the newest week of a multi-week result.
type PeriodInfo struct {
	LatestWeek  string             `json:"latest_week"`
	LatestDates calendar.DateRange `json:"latest_dates"`
}

// NewPeriodInfo describes w.
func NewPeriodInfo(w calendar.ISOWeek) PeriodInfo {
	return PeriodInfo{LatestWeek: w.String(), LatestDates: calendar.RangeOf(w)}
}

// Weekly is one week's result with the same week a year earlier.
type Weekly[T any] struct {
	Week     string     `json:"week"`
	Value    T          `json:"value"`
	LastYear *Weekly[T] `json:"last_year,omitempty"`
}

// Series is a multi-week result ordered oldest to newest.
type Series[T any] struct {
	Weeks      []Weekly[T] `json:"weeks"`
	PeriodInfo PeriodInfo  `json:"period_info"`
}

// ParseWindow validates a base week and a week count.
func ParseWindow(baseWeek string, numWeeks int) (calendar.ISOWeek, error) {
	base, err := calendar.ParseStrict(baseWeek)
	if err != nil {
		return calendar.ISOWeek{}, err
	}
	if numWeeks < 1 || numWeeks > MaxNumWeeks {
		return calendar.ISOWeek{}, fmt.Errorf("%w: num_weeks %d outside [1,%d]", calendar.ErrInvalidPeriod, numWeeks, MaxNumWeeks)
	}
	return base, nil
}

// weekly runs compute over the numWeeks weeks ending at baseWeek. Weeks
// without data or whose computation fails are logged and skipped.
func weekly[T any](e *Engine, family, baseWeek string, numWeeks int, compute func(slice) (T, error)) (Series[T], error) {
	base, err := ParseWindow(baseWeek, numWeeks)
	if err != nil {
		return Series[T]{}, err
	}

	out := Series[T]{Weeks: []Weekly[T]{}, PeriodInfo: NewPeriodInfo(base)}
	for _, w := range calendar.WeeksBack(base, numWeeks) {
		v, err := compute(e.week(w))
		if err != nil {
			logWeekFailure(family, w.String(), err)
			continue
		}
		item := Weekly[T]{Week: w.String(), Value: v}

		ly := calendar.LastYearWeek(w)
		if lv, err := compute(e.week(ly)); err == nil {
			item.LastYear = &Weekly[T]{Week: ly.String(), Value: lv}
		} else if !errors.Is(err, errNoData) {
			logWeekFailure(family, ly.String(), err)
		}
		out.Weeks = append(out.Weeks, item)
	}
	log.Debug().Str("family", family).Str("baseWeek", base.String()).Int("weeks", len(out.Weeks)).Msg("Computed metric family")
	return out, nil
}

func logWeekFailure(family, week string, err error) {
	if errors.Is(err, errNoData) {
		log.Warn().Str("family", family).Str("week", week).Msg("No data for week, skipping")
		return
	}
	log.Warn().Err(err).Str("family", family).Str("week", week).Msg("Failed to compute week, skipping")
}
