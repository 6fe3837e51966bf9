package metrics

import (
	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/periods"
	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"

	"github.com/rs/zerolog/log"
)

// Table1Metrics are the headline figures for one period.
type Table1Metrics struct {
	OnlineGrossRevenue  float64  `json:"online_gross_revenue"`
	Returns             float64  `json:"returns"`
	ReturnRatePct       float64  `json:"return_rate_pct"`
	OnlineNetRevenue    float64  `json:"online_net_revenue"`
	RetailConceptStore  float64  `json:"retail_concept_store"`
	RetailPopupsOutlets float64  `json:"retail_popups_outlets"`
	RetailNetRevenue    float64  `json:"retail_net_revenue"`
	WholesaleNetRevenue float64  `json:"wholesale_net_revenue"`
	TotalNetRevenue     float64  `json:"total_net_revenue"`
	ReturningCustomers  int      `json:"returning_customers"`
	NewCustomers        int      `json:"new_customers"`
	MarketingSpend      float64  `json:"marketing_spend"`
	OnlineCostOfSale3   float64  `json:"online_cost_of_sale_3"`
	Budget              *float64 `json:"budget,omitempty"`
}

// Table1Result maps period names (and YTD window names) to their metrics.
type Table1Result map[string]Table1Metrics

// Table1Inputs are the aggregated sums the headline metrics derive from.
type Table1Inputs struct {
	OnlineGross        float64
	Returns            float64
	OnlineNet          float64
	RetailConcept      float64
	RetailOutlet       float64
	Wholesale          float64
	MarketingSpend     float64
	NewCustomers       int
	ReturningCustomers int
}

// DeriveTable1 turns aggregated sums into the headline metrics.
func DeriveTable1(in Table1Inputs) Table1Metrics {
	retail := in.RetailConcept + in.RetailOutlet
	return Table1Metrics{
		OnlineGrossRevenue:  in.OnlineGross,
		Returns:             in.Returns,
		ReturnRatePct:       Round1(Pct(in.Returns, in.OnlineGross)),
		OnlineNetRevenue:    in.OnlineNet,
		RetailConceptStore:  in.RetailConcept,
		RetailPopupsOutlets: in.RetailOutlet,
		RetailNetRevenue:    retail,
		WholesaleNetRevenue: in.Wholesale,
		TotalNetRevenue:     in.OnlineNet + retail + in.Wholesale,
		ReturningCustomers:  in.ReturningCustomers,
		NewCustomers:        in.NewCustomers,
		MarketingSpend:      in.MarketingSpend,
		OnlineCostOfSale3:   Round1(Pct(in.MarketingSpend, in.OnlineGross)),
	}
}

func table1Inputs(s slice) (Table1Inputs, error) {
	a := s.analytics
	if !a.Empty() {
		if err := a.Require(source.ColChannel, source.ColGrossRevenue, source.ColNetRevenue); err != nil {
			return Table1Inputs{}, err
		}
	}
	retail := a.Where(source.ColChannel, ChannelRetail)
	outlet := retail.Where(source.ColCountry, OutletCountry)
	concept := retail.Filter(func(r table.Row) bool { return r.String(source.ColCountry) != OutletCountry })

	return Table1Inputs{
		OnlineGross:        s.online.Sum(source.ColGrossRevenue),
		Returns:            a.Sum(source.ColReturns),
		OnlineNet:          s.online.Sum(source.ColNetRevenue),
		RetailConcept:      concept.Sum(source.ColNetRevenue),
		RetailOutlet:       outlet.Sum(source.ColNetRevenue),
		Wholesale:          a.Where(source.ColChannel, ChannelWholesale).Sum(source.ColNetRevenue),
		MarketingSpend:     spendTotal(s.spend),
		NewCustomers:       segment(a, source.ColSegment, SegmentNew).CountDistinct(source.ColEmail),
		ReturningCustomers: segment(a, source.ColSegment, SegmentReturning).CountDistinct(source.ColEmail),
	}, nil
}

// Table1ForWeek computes the headline metrics for one ISO week.
func (e *Engine) Table1ForWeek(w calendar.ISOWeek) (Table1Metrics, error) {
	return e.table1(e.week(w), calendar.RangeOf(w))
}

// Table1ForRange computes the headline metrics for an inclusive date range.
func (e *Engine) Table1ForRange(label string, r calendar.DateRange) (Table1Metrics, error) {
	return e.table1(e.dateRange(label, r), r)
}

func (e *Engine) table1(s slice, r calendar.DateRange) (Table1Metrics, error) {
	in, err := table1Inputs(s)
	if err != nil {
		return Table1Metrics{}, err
	}
	m := DeriveTable1(in)
	if len(e.opts.MonthlyBudget) > 0 {
		b := Round2(SpreadBudget(e.opts.MonthlyBudget, r))
		m.Budget = &b
	}
	return m, nil
}

// Table1 computes the headline metrics for the requested periods of
// baseWeek (all four when requested is empty) and, with includeYTD, the
// three year-to-date windows. A period that fails yields zero metrics.
func (e *Engine) Table1(baseWeek string, requested []string, includeYTD bool) (Table1Result, error) {
	set, err := periods.ForWeek(baseWeek)
	if err != nil {
		return nil, err
	}
	if len(requested) > 0 {
		if set, err = periods.Filter(set, requested); err != nil {
			return nil, err
		}
	}

	out := make(Table1Result, len(set)+len(periods.YTDNames))
	for _, name := range periods.Ordered(set) {
		m, err := e.Table1ForWeek(set[name])
		if err != nil {
			log.Warn().Err(err).Str("family", "table1").Str("period", name).Str("week", set[name].String()).Msg("Failed to compute period, using zero metrics")
			m = e.zeroTable1(calendar.RangeOf(set[name]))
		}
		out[name] = m
	}
	if !includeYTD {
		return out, nil
	}

	ytd, err := periods.YTDForWeek(baseWeek)
	if err != nil {
		return nil, err
	}
	for _, name := range periods.YTDNames {
		r := ytd[name]
		m, err := e.Table1ForRange(name, r)
		if err != nil {
			log.Warn().Err(err).Str("family", "table1").Str("period", name).Msg("Failed to compute YTD window, using zero metrics")
			m = e.zeroTable1(r)
		}
		out[name] = m
	}
	return out, nil
}

func (e *Engine) zeroTable1(r calendar.DateRange) Table1Metrics {
	var m Table1Metrics
	if len(e.opts.MonthlyBudget) > 0 {
		b := Round2(SpreadBudget(e.opts.MonthlyBudget, r))
		m.Budget = &b
	}
	return m
}
