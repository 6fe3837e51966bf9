package metrics

import (
	"fmt"

	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"
)

// Per-country family names.
const (
	FamilySessionsPerCountry             = "sessions_per_country"
	FamilyConversionPerCountry           = "conversion_per_country"
	FamilyNewCustomersPerCountry         = "new_customers_per_country"
	FamilyReturningCustomersPerCountry   = "returning_customers_per_country"
	FamilyAOVNewPerCountry               = "aov_new_customers_per_country"
	FamilyAOVReturningPerCountry         = "aov_returning_customers_per_country"
	FamilyMarketingSpendPerCountry       = "marketing_spend_per_country"
	FamilyNCACPerCountry                 = "ncac_per_country"
	FamilyContributionNewPerCountry      = "contribution_new_per_country"
	FamilyContributionNewTotalPerCountry = "contribution_new_total_per_country"
	FamilyContributionRetPerCountry      = "contribution_returning_per_country"
	FamilyContributionRetTotalPerCountry = "contribution_returning_total_per_country"
	FamilyTotalContributionPerCountry    = "total_contribution_per_country"
)

// CountryFamilies lists the single-valued per-country families in batch order.
var CountryFamilies = []string{
	FamilySessionsPerCountry,
	FamilyNewCustomersPerCountry,
	FamilyReturningCustomersPerCountry,
	FamilyAOVNewPerCountry,
	FamilyAOVReturningPerCountry,
	FamilyMarketingSpendPerCountry,
	FamilyNCACPerCountry,
	FamilyContributionNewPerCountry,
	FamilyContributionNewTotalPerCountry,
	FamilyContributionRetPerCountry,
	FamilyContributionRetTotalPerCountry,
	FamilyTotalContributionPerCountry,
}

type countryFunc func(e *Engine, s slice) (CountryValues, error)

var countryFuncs = map[string]countryFunc{
	FamilySessionsPerCountry:             sessionsPerCountry,
	FamilyNewCustomersPerCountry:         customersPerCountry(SegmentNew),
	FamilyReturningCustomersPerCountry:   customersPerCountry(SegmentReturning),
	FamilyAOVNewPerCountry:               aovPerCountry(SegmentNew, source.ColGrossRevenue),
	FamilyAOVReturningPerCountry:         aovPerCountry(SegmentReturning, source.ColNetRevenue),
	FamilyMarketingSpendPerCountry:       marketingSpendPerCountry,
	FamilyNCACPerCountry:                 ncacPerCountry,
	FamilyContributionNewPerCountry:      contributionPerCountry(SegmentNew, RatioPolicy),
	FamilyContributionNewTotalPerCountry: contributionPerCountry(SegmentNew, SumPolicy),
	FamilyContributionRetPerCountry:      contributionPerCountry(SegmentReturning, RatioPolicy),
	FamilyContributionRetTotalPerCountry: contributionPerCountry(SegmentReturning, SumPolicy),
	FamilyTotalContributionPerCountry:    totalContributionPerCountry,
}

// CountryMetricForWeek computes one per-country family for one week.
func (e *Engine) CountryMetricForWeek(family string, w calendar.ISOWeek) (CountryValues, error) {
	fn, ok := countryFuncs[family]
	if !ok {
		return nil, fmt.Errorf("unknown per-country family %q", family)
	}
	return fn(e, e.week(w))
}

// CountryMetric computes one per-country family for numWeeks weeks ending at baseWeek.
func (e *Engine) CountryMetric(family, baseWeek string, numWeeks int) (Series[CountryValues], error) {
	fn, ok := countryFuncs[family]
	if !ok {
		return Series[CountryValues]{}, fmt.Errorf("unknown per-country family %q", family)
	}
	return weekly(e, family, baseWeek, numWeeks, func(s slice) (CountryValues, error) {
		return fn(e, s)
	})
}

func sessionCountryColumn(t *table.Table) (string, error) {
	col, ok := t.FirstOf(source.ColSessionCountry, source.ColCountry)
	if !ok {
		return "", fmt.Errorf("%w: %q or %q", table.ErrMissingColumn, source.ColSessionCountry, source.ColCountry)
	}
	return col, nil
}

func sessionsPerCountry(e *Engine, s slice) (CountryValues, error) {
	if s.sessions.Empty() {
		return nil, errNoData
	}
	col, err := sessionCountryColumn(s.sessions)
	if err != nil {
		return nil, err
	}
	c := make(Components)
	for country, n := range groupSum(s.sessions, col, source.ColSessions) {
		c.Add(country, n, 0)
	}
	return e.ratio(SumPolicy, 0).Apply(c), nil
}

// Conversion is one country's orders over sessions.
type Conversion struct {
	ConversionRate float64 `json:"conversion_rate"`
	Orders         int     `json:"orders"`
	Sessions       int     `json:"sessions"`
}

func (e *Engine) conversionPerCountry(s slice) (map[string]Conversion, error) {
	if s.sessions.Empty() || s.online.Empty() {
		return nil, errNoData
	}
	col, err := sessionCountryColumn(s.sessions)
	if err != nil {
		return nil, err
	}
	orders := groupDistinct(s.online, source.ColCountry, source.ColOrderNo)
	sessions := groupSum(s.sessions, col, source.ColSessions)

	c := make(Components)
	for _, country := range keysOf(orders, sessions) {
		c.Add(country, orders[country], sessions[country])
	}
	rates := e.ratio(RatioPolicy, 100).Apply(c)
	counts := e.ratio(SumPolicy, 0).Apply(c)
	dens := e.ratio(SumPolicy, 0).Apply(denominators(c))

	out := make(map[string]Conversion, len(rates))
	for country, rate := range rates {
		out[country] = Conversion{
			ConversionRate: rate,
			Orders:         int(counts[country]),
			Sessions:       int(dens[country]),
		}
	}
	return out, nil
}

func denominators(c Components) Components {
	out := make(Components, len(c))
	for k, p := range c {
		out[k] = Pair{Num: p.Den}
	}
	return out
}

// ConversionPerCountryForWeek computes one week's conversion by country.
func (e *Engine) ConversionPerCountryForWeek(w calendar.ISOWeek) (map[string]Conversion, error) {
	return e.conversionPerCountry(e.week(w))
}

// ConversionPerCountry computes conversion by country for numWeeks weeks ending at baseWeek.
func (e *Engine) ConversionPerCountry(baseWeek string, numWeeks int) (Series[map[string]Conversion], error) {
	return weekly(e, FamilyConversionPerCountry, baseWeek, numWeeks, e.conversionPerCountry)
}

func customersPerCountry(seg string) countryFunc {
	return func(e *Engine, s slice) (CountryValues, error) {
		if s.online.Empty() {
			return nil, errNoData
		}
		if err := s.online.Require(source.ColCountry, source.ColSegment, source.ColEmail); err != nil {
			return nil, err
		}
		c := make(Components)
		for country, n := range groupDistinct(segment(s.online, source.ColSegment, seg), source.ColCountry, source.ColEmail) {
			c.Add(country, n, 0)
		}
		return e.ratio(SumPolicy, 0).Apply(c), nil
	}
}

// aovPerCountry is revenueCol over distinct orders within one segment.
func aovPerCountry(seg, revenueCol string) countryFunc {
	return func(e *Engine, s slice) (CountryValues, error) {
		if s.online.Empty() {
			return nil, errNoData
		}
		if err := s.online.Require(source.ColCountry, source.ColSegment, source.ColOrderNo); err != nil {
			return nil, err
		}
		rows := segment(s.online, source.ColSegment, seg)
		revenue := groupSum(rows, source.ColCountry, revenueCol)
		orders := groupDistinct(rows, source.ColCountry, source.ColOrderNo)
		c := make(Components)
		for _, country := range keysOf(revenue, orders) {
			c.Add(country, revenue[country], orders[country])
		}
		return e.ratio(RatioPolicy, 0).Apply(c), nil
	}
}

func countrySpend(s slice) (map[string]float64, error) {
	if s.spend.Empty() {
		return nil, errNoData
	}
	col, ok := spendColumn(s.spend)
	if !ok {
		return nil, fmt.Errorf("%w: %q", table.ErrMissingColumn, source.ColSpend)
	}
	if err := s.spend.Require(source.ColCountry); err != nil {
		return nil, err
	}
	return groupSum(s.spend, source.ColCountry, col), nil
}

func marketingSpendPerCountry(e *Engine, s slice) (CountryValues, error) {
	spend, err := countrySpend(s)
	if err != nil {
		return nil, err
	}
	c := make(Components)
	for country, v := range spend {
		c.Add(country, v, 0)
	}
	return e.ratio(SumPolicy, 0).Apply(c), nil
}

func ncacPerCountry(e *Engine, s slice) (CountryValues, error) {
	if s.online.Empty() {
		return nil, errNoData
	}
	spend, err := countrySpend(s)
	if err != nil {
		return nil, err
	}
	customers := groupDistinct(segment(s.online, source.ColSegment, SegmentNew), source.ColCountry, source.ColEmail)
	c := make(Components)
	for _, country := range keysOf(spend, customers) {
		c.Add(country, spend[country]*NewSpendShare, customers[country])
	}
	return e.ratio(RatioPolicy, 0).Apply(c), nil
}

// segmentContribution holds one segment's per-country inputs.
type segmentContribution struct {
	gm2       map[string]float64
	spend     map[string]float64
	customers map[string]float64
}

func (sc segmentContribution) components(perCustomer bool) Components {
	c := make(Components)
	for _, country := range keysOf(sc.gm2, sc.spend, sc.customers) {
		den := 0.0
		if perCustomer {
			den = sc.customers[country]
		}
		c.Add(country, sc.gm2[country]-sc.spend[country], den)
	}
	return c
}

// contributionInputs derives, per country, GM2 as segment gross revenue
// times the mean margin percentage (per country when the margin export has
// a country column, overall otherwise) and the segment's share of spend.
func contributionInputs(s slice, seg string) (segmentContribution, error) {
	if s.online.Empty() || s.margin.Empty() || s.spend.Empty() {
		return segmentContribution{}, errNoData
	}
	if err := s.margin.Require(source.ColMarginSegment, source.ColGM2); err != nil {
		return segmentContribution{}, err
	}
	spend, err := countrySpend(s)
	if err != nil {
		return segmentContribution{}, err
	}

	rows := segment(s.online, source.ColSegment, seg)
	gross := groupSum(rows, source.ColCountry, source.ColGrossRevenue)
	margin := segment(s.margin, source.ColMarginSegment, seg)

	var pct map[string]float64
	if margin.Has(source.ColCountry) {
		pct = groupMean(margin, source.ColCountry, source.ColGM2)
	} else {
		overall := mean(margin, source.ColGM2)
		pct = make(map[string]float64, len(gross))
		for country := range gross {
			pct[country] = overall
		}
	}

	share := NewSpendShare
	if seg == SegmentReturning {
		share = ReturningSpendShare
	}
	out := segmentContribution{
		gm2:       make(map[string]float64, len(gross)),
		spend:     make(map[string]float64, len(spend)),
		customers: groupDistinct(rows, source.ColCountry, source.ColEmail),
	}
	for country, g := range gross {
		out.gm2[country] = g * pct[country]
	}
	for country, v := range spend {
		out.spend[country] = v * share
	}
	return out, nil
}

// contributionPerCountry yields contribution per customer (RatioPolicy) or
// absolute contribution (SumPolicy) for one segment.
func contributionPerCountry(seg string, p Policy) countryFunc {
	return func(e *Engine, s slice) (CountryValues, error) {
		in, err := contributionInputs(s, seg)
		if err != nil {
			return nil, err
		}
		return e.ratio(p, 0).Apply(in.components(p == RatioPolicy)), nil
	}
}

func totalContributionPerCountry(e *Engine, s slice) (CountryValues, error) {
	c := make(Components)
	for _, seg := range []string{SegmentNew, SegmentReturning} {
		in, err := contributionInputs(s, seg)
		if err != nil {
			return nil, err
		}
		for country, p := range in.components(false) {
			c.Add(country, p.Num, 0)
		}
	}
	return e.ratio(SumPolicy, 0).Apply(c), nil
}
