package metrics

import (
	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/source"
)

// OnlineKPIs are the online-channel indicators for one week.
type OnlineKPIs struct {
	GrossRevenue         float64 `json:"gross_revenue"`
	NetRevenue           float64 `json:"net_revenue"`
	AOVNewCustomer       float64 `json:"aov_new_customer"`
	AOVReturningCustomer float64 `json:"aov_returning_customer"`
	MarketingSpend       float64 `json:"marketing_spend"`
	COS                  float64 `json:"cos"`
	ConversionRate       float64 `json:"conversion_rate"`
	NewCustomers         int     `json:"new_customers"`
	ReturningCustomers   int     `json:"returning_customers"`
	Sessions             float64 `json:"sessions"`
	NewCustomerCAC       float64 `json:"new_customer_cac"`
	TotalOrders          int     `json:"total_orders"`
}

func onlineKPIs(s slice) (OnlineKPIs, error) {
	if s.online.Empty() {
		return OnlineKPIs{}, errNoData
	}
	newRows := segment(s.online, source.ColSegment, SegmentNew)
	retRows := segment(s.online, source.ColSegment, SegmentReturning)

	newCustomers := newRows.CountDistinct(source.ColEmail)
	retCustomers := retRows.CountDistinct(source.ColEmail)
	gross := s.online.Sum(source.ColGrossRevenue)
	spend := spendTotal(s.spend)
	sessions := s.sessions.Sum(source.ColSessions)
	orders := s.online.CountDistinct(source.ColOrderNo)

	return OnlineKPIs{
		GrossRevenue:         gross,
		NetRevenue:           s.online.Sum(source.ColNetRevenue),
		AOVNewCustomer:       SafeDiv(newRows.Sum(source.ColNetRevenue), float64(newCustomers)),
		AOVReturningCustomer: SafeDiv(retRows.Sum(source.ColNetRevenue), float64(retCustomers)),
		MarketingSpend:       spend,
		COS:                  Pct(spend, gross),
		ConversionRate:       Pct(float64(orders), sessions),
		NewCustomers:         newCustomers,
		ReturningCustomers:   retCustomers,
		Sessions:             sessions,
		NewCustomerCAC:       SafeDiv(spend, float64(newCustomers)),
		TotalOrders:          orders,
	}, nil
}

// OnlineKPIsForWeek computes the online KPIs of one week.
func (e *Engine) OnlineKPIsForWeek(w calendar.ISOWeek) (OnlineKPIs, error) {
	return onlineKPIs(e.week(w))
}

// OnlineKPIs computes the online KPIs for numWeeks weeks ending at baseWeek.
func (e *Engine) OnlineKPIs(baseWeek string, numWeeks int) (Series[OnlineKPIs], error) {
	return weekly(e, "kpis", baseWeek, numWeeks, onlineKPIs)
}

// Contribution is margin minus allocated marketing spend, per segment.
type Contribution struct {
	GrossRevenueNew       float64 `json:"gross_revenue_new"`
	GrossRevenueReturning float64 `json:"gross_revenue_returning"`
	GM2New                float64 `json:"gm2_new"`
	GM2Returning          float64 `json:"gm2_returning"`
	MarketingSpend        float64 `json:"marketing_spend"`
	ContributionNew       float64 `json:"contribution_new"`
	ContributionReturning float64 `json:"contribution_returning"`
	ContributionTotal     float64 `json:"contribution_total"`
}

func contribution(s slice) (Contribution, error) {
	if s.online.Empty() {
		return Contribution{}, errNoData
	}
	grossNew := segment(s.online, source.ColSegment, SegmentNew).Sum(source.ColGrossRevenue)
	grossRet := segment(s.online, source.ColSegment, SegmentReturning).Sum(source.ColGrossRevenue)
	grossAll := s.online.Sum(source.ColGrossRevenue)

	var gm2New, gm2Ret float64
	if !s.margin.Empty() {
		if s.margin.Has(source.ColMarginSegment) {
			gm2New = segment(s.margin, source.ColMarginSegment, SegmentNew).Sum(source.ColGM2)
			gm2Ret = segment(s.margin, source.ColMarginSegment, SegmentReturning).Sum(source.ColGM2)
		} else {
			gm2 := s.margin.Sum(source.ColGM2)
			gm2New = gm2 * SafeDiv(grossNew, grossAll)
			gm2Ret = gm2 * SafeDiv(grossRet, grossAll)
		}
	}

	spend := spendTotal(s.spend)
	return Contribution{
		GrossRevenueNew:       grossNew,
		GrossRevenueReturning: grossRet,
		GM2New:                gm2New,
		GM2Returning:          gm2Ret,
		MarketingSpend:        spend,
		ContributionNew:       gm2New - spend*NewSpendShare,
		ContributionReturning: gm2Ret - spend*ReturningSpendShare,
		ContributionTotal:     gm2New + gm2Ret - spend,
	}, nil
}

// ContributionForWeek computes the contribution of one week.
func (e *Engine) ContributionForWeek(w calendar.ISOWeek) (Contribution, error) {
	return contribution(e.week(w))
}

// Contribution computes contribution for numWeeks weeks ending at baseWeek.
func (e *Engine) Contribution(baseWeek string, numWeeks int) (Series[Contribution], error) {
	return weekly(e, "contribution", baseWeek, numWeeks, contribution)
}
