// Package batch computes every metric family for a base week in one pass,
// sharing a single raw-data load and the persistent metrics cache.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"weekly-metrics/internal/cache"
	"weekly-metrics/internal/metrics"
	"weekly-metrics/internal/periods"
	"weekly-metrics/internal/source"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

// Slot names in the order families are computed.
const (
	SlotPeriods            = "periods"
	SlotMetrics            = "metrics"
	SlotMarkets            = "markets"
	SlotKPIs               = "kpis"
	SlotContribution       = "contribution"
	SlotGenderSales        = "gender_sales"
	SlotMenCategorySales   = "men_category_sales"
	SlotWomenCategorySales = "women_category_sales"
	SlotCategorySales      = "category_sales"
	SlotProductsNew        = "products_new"
	SlotProductsGender     = "products_gender"
)

// ErrUnknownFamily is returned for a family name outside Sequence.
var ErrUnknownFamily = errors.New("unknown metric family")

// Source loads every kind under one raw-data root.
type Source interface {
	Root() string
	LoadAll(ctx context.Context) (source.Bundle, error)
}

// Bundle is the combined result of one batch run.
type Bundle struct {
	RunID       string    `json:"run_id"`
	BaseWeek    string    `json:"base_week"`
	NumWeeks    int       `json:"num_weeks"`
	GeneratedAt time.Time `json:"generated_at"`
	Failed      []string  `json:"failed"`

	Periods            periods.Resolution                        `json:"periods"`
	Metrics            metrics.Table1Result                      `json:"metrics"`
	Markets            metrics.MarketsResult                     `json:"markets"`
	KPIs               metrics.Series[metrics.OnlineKPIs]        `json:"kpis"`
	Contribution       metrics.Series[metrics.Contribution]      `json:"contribution"`
	GenderSales        metrics.Series[metrics.GenderSales]       `json:"gender_sales"`
	MenCategorySales   metrics.Series[metrics.CategorySales]     `json:"men_category_sales"`
	WomenCategorySales metrics.Series[metrics.CategorySales]     `json:"women_category_sales"`
	CategorySales      metrics.Series[metrics.CategorySales]     `json:"category_sales"`
	ProductsNew        metrics.Series[metrics.ProductsBySegment] `json:"products_new"`
	ProductsGender     metrics.Series[metrics.ProductsByGender]  `json:"products_gender"`

	SessionsPerCountry                   metrics.Series[metrics.CountryValues]         `json:"sessions_per_country"`
	ConversionPerCountry                 metrics.Series[map[string]metrics.Conversion] `json:"conversion_per_country"`
	NewCustomersPerCountry               metrics.Series[metrics.CountryValues]         `json:"new_customers_per_country"`
	ReturningCustomersPerCountry         metrics.Series[metrics.CountryValues]         `json:"returning_customers_per_country"`
	AOVNewCustomersPerCountry            metrics.Series[metrics.CountryValues]         `json:"aov_new_customers_per_country"`
	AOVReturningCustomersPerCountry      metrics.Series[metrics.CountryValues]         `json:"aov_returning_customers_per_country"`
	MarketingSpendPerCountry             metrics.Series[metrics.CountryValues]         `json:"marketing_spend_per_country"`
	NCACPerCountry                       metrics.Series[metrics.CountryValues]         `json:"ncac_per_country"`
	ContributionNewPerCountry            metrics.Series[metrics.CountryValues]         `json:"contribution_new_per_country"`
	ContributionNewTotalPerCountry       metrics.Series[metrics.CountryValues]         `json:"contribution_new_total_per_country"`
	ContributionReturningPerCountry      metrics.Series[metrics.CountryValues]         `json:"contribution_returning_per_country"`
	ContributionReturningTotalPerCountry metrics.Series[metrics.CountryValues]         `json:"contribution_returning_total_per_country"`
	TotalContributionPerCountry          metrics.Series[metrics.CountryValues]         `json:"total_contribution_per_country"`
}

// Country returns the slot holding a single-valued per-country family.
func (b *Bundle) Country(family string) (*metrics.Series[metrics.CountryValues], bool) {
	switch family {
	case metrics.FamilySessionsPerCountry:
		return &b.SessionsPerCountry, true
	case metrics.FamilyNewCustomersPerCountry:
		return &b.NewCustomersPerCountry, true
	case metrics.FamilyReturningCustomersPerCountry:
		return &b.ReturningCustomersPerCountry, true
	case metrics.FamilyAOVNewPerCountry:
		return &b.AOVNewCustomersPerCountry, true
	case metrics.FamilyAOVReturningPerCountry:
		return &b.AOVReturningCustomersPerCountry, true
	case metrics.FamilyMarketingSpendPerCountry:
		return &b.MarketingSpendPerCountry, true
	case metrics.FamilyNCACPerCountry:
		return &b.NCACPerCountry, true
	case metrics.FamilyContributionNewPerCountry:
		return &b.ContributionNewPerCountry, true
	case metrics.FamilyContributionNewTotalPerCountry:
		return &b.ContributionNewTotalPerCountry, true
	case metrics.FamilyContributionRetPerCountry:
		return &b.ContributionReturningPerCountry, true
	case metrics.FamilyContributionRetTotalPerCountry:
		return &b.ContributionReturningTotalPerCountry, true
	case metrics.FamilyTotalContributionPerCountry:
		return &b.TotalContributionPerCountry, true
	}
	return nil, false
}

func emptySeries[T any]() metrics.Series[T] {
	return metrics.Series[T]{Weeks: []metrics.Weekly[T]{}}
}

func newBundle(baseWeek string, numWeeks int, now time.Time) *Bundle {
	b := &Bundle{
		BaseWeek:             baseWeek,
		NumWeeks:             numWeeks,
		GeneratedAt:          now,
		Failed:               []string{},
		Metrics:              metrics.Table1Result{},
		Markets:              metrics.MarketsResult{Markets: []metrics.Market{}, Weeks: []string{}, LastYear: []string{}},
		KPIs:                 emptySeries[metrics.OnlineKPIs](),
		Contribution:         emptySeries[metrics.Contribution](),
		GenderSales:          emptySeries[metrics.GenderSales](),
		MenCategorySales:     emptySeries[metrics.CategorySales](),
		WomenCategorySales:   emptySeries[metrics.CategorySales](),
		CategorySales:        emptySeries[metrics.CategorySales](),
		ProductsNew:          emptySeries[metrics.ProductsBySegment](),
		ProductsGender:       emptySeries[metrics.ProductsByGender](),
		ConversionPerCountry: emptySeries[map[string]metrics.Conversion](),
	}
	for _, f := range metrics.CountryFamilies {
		slot, _ := b.Country(f)
		*slot = emptySeries[metrics.CountryValues]()
	}
	return b
}

// Progress is told after each family finishes, successfully or not.
type Progress func(done, total int, family string)

type request struct {
	baseWeek string
	numWeeks int
}

type family struct {
	name string
	run  func(e *metrics.Engine, req request, b *Bundle) error
}

// Sequence lists the slot names ComputeAll fills, in order.
func Sequence() []string {
	fams := defaultFamilies()
	out := make([]string, len(fams))
	for i, f := range fams {
		out[i] = f.name
	}
	return out
}

func defaultFamilies() []family {
	fams := []family{
		{SlotPeriods, func(_ *metrics.Engine, r request, b *Bundle) (err error) {
			b.Periods, err = periods.Resolve(r.baseWeek)
			return err
		}},
		{SlotMetrics, func(e *metrics.Engine, r request, b *Bundle) (err error) {
			b.Metrics, err = e.Table1(r.baseWeek, nil, true)
			return err
		}},
		{SlotMarkets, func(e *metrics.Engine, r request, b *Bundle) (err error) {
			b.Markets, err = e.Markets(r.baseWeek, r.numWeeks)
			return err
		}},
		{SlotKPIs, func(e *metrics.Engine, r request, b *Bundle) (err error) {
			b.KPIs, err = e.OnlineKPIs(r.baseWeek, r.numWeeks)
			return err
		}},
		{SlotContribution, func(e *metrics.Engine, r request, b *Bundle) (err error) {
			b.Contribution, err = e.Contribution(r.baseWeek, r.numWeeks)
			return err
		}},
		{SlotGenderSales, func(e *metrics.Engine, r request, b *Bundle) (err error) {
			b.GenderSales, err = e.GenderSales(r.baseWeek, r.numWeeks)
			return err
		}},
		{SlotMenCategorySales, func(e *metrics.Engine, r request, b *Bundle) (err error) {
			b.MenCategorySales, err = e.CategorySales(r.baseWeek, r.numWeeks, metrics.ScopeMen)
			return err
		}},
		{SlotWomenCategorySales, func(e *metrics.Engine, r request, b *Bundle) (err error) {
			b.WomenCategorySales, err = e.CategorySales(r.baseWeek, r.numWeeks, metrics.ScopeWomen)
			return err
		}},
		{SlotCategorySales, func(e *metrics.Engine, r request, b *Bundle) (err error) {
			b.CategorySales, err = e.CategorySales(r.baseWeek, r.numWeeks, metrics.ScopeOverall)
			return err
		}},
		// Product rankings always cover the base week only.
		{SlotProductsNew, func(e *metrics.Engine, r request, b *Bundle) (err error) {
			b.ProductsNew, err = e.ProductsBySegment(r.baseWeek, 1)
			return err
		}},
		{SlotProductsGender, func(e *metrics.Engine, r request, b *Bundle) (err error) {
			b.ProductsGender, err = e.ProductsByGender(r.baseWeek, 1)
			return err
		}},
	}

	for _, name := range metrics.CountryFamilies {
		fams = append(fams, family{name, func(e *metrics.Engine, r request, b *Bundle) error {
			s, err := e.CountryMetric(name, r.baseWeek, r.numWeeks)
			if err != nil {
				return err
			}
			slot, _ := b.Country(name)
			*slot = s
			return nil
		}})
		if name == metrics.FamilySessionsPerCountry {
			fams = append(fams, family{metrics.FamilyConversionPerCountry, func(e *metrics.Engine, r request, b *Bundle) (err error) {
				b.ConversionPerCountry, err = e.ConversionPerCountry(r.baseWeek, r.numWeeks)
				return err
			}})
		}
	}
	return fams
}

// Orchestrator runs metric families against cached raw data.
type Orchestrator struct {
	src      Source
	raw      *cache.RawCache[source.Bundle]
	results  *cache.MetricsCache
	opts     metrics.Options
	families []family
	loads    singleflight.Group
	now      cache.Clock
}

// NewOrchestrator wires a data source to its caches. results may be nil to
// disable the persistent metrics cache.
func NewOrchestrator(src Source, raw *cache.RawCache[source.Bundle], results *cache.MetricsCache, opts metrics.Options) *Orchestrator {
	if raw == nil {
		raw = cache.NewRawCache[source.Bundle](cache.MetricsRawMaxAge, nil)
	}
	return &Orchestrator{
		src:      src,
		raw:      raw,
		results:  results,
		opts:     opts,
		families: defaultFamilies(),
		now:      time.Now,
	}
}

// Raw returns the loaded bundle, reading the source at most once per cache
// lifetime even under concurrent callers.
func (o *Orchestrator) Raw(ctx context.Context) (source.Bundle, error) {
	key := o.src.Root()
	if b, ok := o.raw.Get(key); ok {
		return b, nil
	}
	v, err, _ := o.loads.Do(key, func() (any, error) {
		if b, ok := o.raw.Get(key); ok {
			return b, nil
		}
		b, err := o.src.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		o.raw.Set(key, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(source.Bundle), nil
}

// Engine builds a metrics engine over the cached raw data.
func (o *Orchestrator) Engine(ctx context.Context) (*metrics.Engine, error) {
	b, err := o.Raw(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load raw data: %w", err)
	}
	return metrics.NewEngine(b, o.opts), nil
}

// Table1 serves the headline metrics, consulting the metrics cache first.
func (o *Orchestrator) Table1(ctx context.Context, baseWeek string, requested []string, includeYTD bool) (metrics.Table1Result, error) {
	base, err := metrics.ParseWindow(baseWeek, 1)
	if err != nil {
		return nil, err
	}
	baseWeek = base.String()

	key := append([]string{}, requested...)
	if len(key) == 0 {
		key = append(key, periods.Names...)
	}
	if includeYTD {
		key = append(key, "ytd")
	}

	var res metrics.Table1Result
	if o.results != nil && o.results.Get(baseWeek, key, &res) {
		return res, nil
	}
	e, err := o.Engine(ctx)
	if err != nil {
		return nil, err
	}
	if res, err = e.Table1(baseWeek, requested, includeYTD); err != nil {
		return nil, err
	}
	if o.results != nil {
		o.results.Set(baseWeek, key, res)
	}
	return res, nil
}

func batchKey(numWeeks int) []string {
	return []string{"batch", "weeks=" + strconv.Itoa(numWeeks)}
}

// ComputeAll fills every slot for the numWeeks weeks ending at baseWeek. A
// family that fails or panics leaves its slot empty and is listed in
// Bundle.Failed; only an invalid window or a raw-data load failure aborts.
func (o *Orchestrator) ComputeAll(ctx context.Context, baseWeek string, numWeeks int, progress Progress) (*Bundle, error) {
	base, err := metrics.ParseWindow(baseWeek, numWeeks)
	if err != nil {
		return nil, err
	}
	baseWeek = base.String()

	if o.results != nil {
		var cached Bundle
		if o.results.Get(baseWeek, batchKey(numWeeks), &cached) {
			return &cached, nil
		}
	}

	e, err := o.Engine(ctx)
	if err != nil {
		return nil, err
	}

	start := o.now()
	out := newBundle(baseWeek, numWeeks, start)
	out.RunID = uuid.NewString()
	req := request{baseWeek: baseWeek, numWeeks: numWeeks}
	for i, f := range o.families {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := runFamily(f, e, req, out); err != nil {
			log.Warn().Err(err).Str("runID", out.RunID).Str("family", f.name).Str("baseWeek", baseWeek).Msg("Metric family failed, leaving slot empty")
			out.Failed = append(out.Failed, f.name)
		}
		if progress != nil {
			progress(i+1, len(o.families), f.name)
		}
	}

	log.Info().
		Str("runID", out.RunID).
		Str("baseWeek", baseWeek).
		Int("numWeeks", numWeeks).
		Int("families", len(o.families)).
		Int("failed", len(out.Failed)).
		Dur("elapsed", o.now().Sub(start)).
		Msg("Batch computation finished")

	if o.results != nil && len(out.Failed) == 0 {
		o.results.Set(baseWeek, batchKey(numWeeks), out)
	}
	return out, nil
}

// runFamily isolates one family so a panic is reported like an error. The
// slot is reset to its empty value when the family does not complete.
func runFamily(f family, e *metrics.Engine, req request, b *Bundle) (err error) {
	scratch := newBundle(b.BaseWeek, b.NumWeeks, b.GeneratedAt)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", f.name, r)
		}
		if err == nil {
			copySlot(f.name, scratch, b)
		}
	}()
	return f.run(e, req, scratch)
}

func copySlot(name string, from, to *Bundle) {
	if slot, ok := to.Country(name); ok {
		src, _ := from.Country(name)
		*slot = *src
		return
	}
	switch name {
	case SlotPeriods:
		to.Periods = from.Periods
	case SlotMetrics:
		to.Metrics = from.Metrics
	case SlotMarkets:
		to.Markets = from.Markets
	case SlotKPIs:
		to.KPIs = from.KPIs
	case SlotContribution:
		to.Contribution = from.Contribution
	case SlotGenderSales:
		to.GenderSales = from.GenderSales
	case SlotMenCategorySales:
		to.MenCategorySales = from.MenCategorySales
	case SlotWomenCategorySales:
		to.WomenCategorySales = from.WomenCategorySales
	case SlotCategorySales:
		to.CategorySales = from.CategorySales
	case SlotProductsNew:
		to.ProductsNew = from.ProductsNew
	case SlotProductsGender:
		to.ProductsGender = from.ProductsGender
	case metrics.FamilyConversionPerCountry:
		to.ConversionPerCountry = from.ConversionPerCountry
	}
}

// Slot returns the value held in a named slot.
func (b *Bundle) Slot(name string) (any, bool) {
	if slot, ok := b.Country(name); ok {
		return *slot, true
	}
	switch name {
	case SlotPeriods:
		return b.Periods, true
	case SlotMetrics:
		return b.Metrics, true
	case SlotMarkets:
		return b.Markets, true
	case SlotKPIs:
		return b.KPIs, true
	case SlotContribution:
		return b.Contribution, true
	case SlotGenderSales:
		return b.GenderSales, true
	case SlotMenCategorySales:
		return b.MenCategorySales, true
	case SlotWomenCategorySales:
		return b.WomenCategorySales, true
	case SlotCategorySales:
		return b.CategorySales, true
	case SlotProductsNew:
		return b.ProductsNew, true
	case SlotProductsGender:
		return b.ProductsGender, true
	case metrics.FamilyConversionPerCountry:
		return b.ConversionPerCountry, true
	}
	return nil, false
}

// Family computes a single named family. Unlike ComputeAll, a family
// failure is returned to the caller.
func (o *Orchestrator) Family(ctx context.Context, name, baseWeek string, numWeeks int) (any, error) {
	base, err := metrics.ParseWindow(baseWeek, numWeeks)
	if err != nil {
		return nil, err
	}
	f, ok := lo.Find(o.families, func(f family) bool { return f.name == name })
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
	e, err := o.Engine(ctx)
	if err != nil {
		return nil, err
	}

	out := newBundle(base.String(), numWeeks, o.now())
	if err := runFamily(f, e, request{baseWeek: base.String(), numWeeks: numWeeks}, out); err != nil {
		return nil, err
	}
	v, _ := out.Slot(name)
	return v, nil
}

// ClearCaches drops the in-memory raw data and every persisted result.
func (o *Orchestrator) ClearCaches() {
	o.raw.Clear()
	if o.results != nil {
		o.results.Clear()
	}
	log.Info().Msg("Cleared raw and metrics caches")
}

// ReloadRaw forgets loaded raw data so the next request rereads the source
// files. Persisted results are kept.
func (o *Orchestrator) ReloadRaw() {
	o.raw.Clear()
	log.Info().Str("root", o.src.Root()).Msg("Raw data marked for reload")
}

// InvalidateWeek drops persisted results computed for baseWeek.
func (o *Orchestrator) InvalidateWeek(baseWeek string) error {
	w, err := metrics.ParseWindow(baseWeek, 1)
	if err != nil {
		return err
	}
	if o.results != nil {
		o.results.Invalidate(w.String())
	}
	return nil
}
