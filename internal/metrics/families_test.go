package metrics

import (
	"errors"
	"fmt"
	"testing"

	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"
)

func kpiEngine() *Engine {
	return NewEngine(source.Bundle{
		source.Analytics: analyticsTable(
			// 2025-42
			sale{date: "2025-10-13", channel: "Online", country: "Sweden", segment: "New", email: "a@x", order: "O1", gross: 100, net: 80},
			sale{date: "2025-10-14", channel: "Online", country: "Sweden", segment: "Returning", email: "b@x", order: "O2", gross: 60, net: 50},
			sale{date: "2025-10-15", channel: "Online", country: "Sweden", segment: "Returning", email: "b@x", order: "O3", gross: 60, net: 50},
			// 2025-41
			sale{date: "2025-10-08", channel: "Online", country: "Sweden", segment: "New", email: "c@x", order: "O4", gross: 40, net: 40},
			// 2024-42
			sale{date: "2024-10-16", channel: "Online", country: "Sweden", segment: "New", email: "d@x", order: "O5", gross: 10, net: 10},
		),
		source.MarketingSpend: spendTable(spendRow{day: "2025-10-13", country: "Sweden", spend: 30}),
		source.EcommerceSessions: sessionsTable(
			sessionRow{day: "2025-10-13", country: "Sweden", sessions: 120},
			sessionRow{day: "2025-10-19", country: "Sweden", sessions: 80},
		),
	}, Options{})
}

func TestOnlineKPIsForWeek(t *testing.T) {
	k, err := kpiEngine().OnlineKPIsForWeek(week42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "aov new", 80, k.AOVNewCustomer)
	approx(t, "aov returning", 100, k.AOVReturningCustomer)
	approx(t, "sessions", 200, k.Sessions)
	approx(t, "conversion", 1.5, k.ConversionRate)
	approx(t, "cac", 30, k.NewCustomerCAC)
	approx(t, "cos", 30.0/220.0*100, k.COS)
	if k.TotalOrders != 3 || k.NewCustomers != 1 || k.ReturningCustomers != 1 {
		t.Errorf("unexpected counts %+v", k)
	}
}

func TestOnlineKPIs_SeriesOrderingAndLastYear(t *testing.T) {
	s, err := kpiEngine().OnlineKPIs("2025-42", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Weeks) != 2 {
		t.Fatalf("expected the empty week 2025-40 to be skipped, got %d weeks", len(s.Weeks))
	}
	if s.Weeks[0].Week != "2025-41" || s.Weeks[1].Week != "2025-42" {
		t.Errorf("expected oldest first, got %s, %s", s.Weeks[0].Week, s.Weeks[1].Week)
	}
	if s.Weeks[0].LastYear != nil {
		t.Error("expected no last-year entry for 2025-41")
	}
	ly := s.Weeks[1].LastYear
	if ly == nil || ly.Week != "2024-42" {
		t.Fatalf("expected last-year entry 2024-42, got %+v", ly)
	}
	approx(t, "last year gross", 10, ly.Value.GrossRevenue)
	if s.PeriodInfo.LatestWeek != "2025-42" || s.PeriodInfo.LatestDates.Display != "Oct 13 - Oct 19" {
		t.Errorf("unexpected period info %+v", s.PeriodInfo)
	}
}

func TestSeries_RejectsBadWindow(t *testing.T) {
	e := kpiEngine()
	for _, n := range []int{0, 53} {
		if _, err := e.OnlineKPIs("2025-42", n); !errors.Is(err, calendar.ErrInvalidPeriod) {
			t.Errorf("num_weeks %d: expected ErrInvalidPeriod, got %v", n, err)
		}
	}
	if _, err := e.GenderSales("2025/42", 4); !errors.Is(err, calendar.ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestSeries_EmptyIsNotNil(t *testing.T) {
	s, err := NewEngine(source.Bundle{}, Options{}).OnlineKPIs("2025-42", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Weeks == nil || len(s.Weeks) != 0 {
		t.Errorf("expected an empty, non-nil week list, got %#v", s.Weeks)
	}
}

func TestContribution_SegmentSplitMargin(t *testing.T) {
	e := NewEngine(source.Bundle{
		source.Analytics: analyticsTable(
			sale{date: "2025-10-13", channel: "Online", segment: "New", email: "a@x", gross: 1000},
			sale{date: "2025-10-13", channel: "Online", segment: "Returning", email: "b@x", gross: 3000},
		),
		source.MarketingSpend: spendTable(spendRow{day: "2025-10-13", spend: 1000}),
		source.Margin: marginTable(
			marginRow{day: "2025-10-13", segment: "New", gm2: 400},
			marginRow{day: "2025-10-13", segment: "Returning", gm2: 1200},
		),
	}, Options{})

	c, err := e.ContributionForWeek(week42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "new", -300, c.ContributionNew)
	approx(t, "returning", 900, c.ContributionReturning)
	approx(t, "total", 600, c.ContributionTotal)
}

func TestContribution_ProportionalMargin(t *testing.T) {
	margin := table.New(source.ColDays, source.ColGM2)
	margin.Append(table.Row{source.ColDays: table.Text("2025-10-14"), source.ColGM2: table.Number(1000)})
	e := NewEngine(source.Bundle{
		source.Analytics: analyticsTable(
			sale{date: "2025-10-13", channel: "Online", segment: "New", email: "a@x", gross: 1000},
			sale{date: "2025-10-13", channel: "Online", segment: "Returning", email: "b@x", gross: 3000},
		),
		source.Margin: margin,
	}, Options{})

	c, err := e.ContributionForWeek(week42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "gm2 new", 250, c.GM2New)
	approx(t, "gm2 returning", 750, c.GM2Returning)
	approx(t, "total without spend", 1000, c.ContributionTotal)
}

func TestMarkets_TopThirteenRowAndTotal(t *testing.T) {
	var sales []sale
	for i := 1; i <= 15; i++ {
		sales = append(sales, sale{
			date:    "2025-10-14",
			channel: "Online",
			country: fmt.Sprintf("C%02d", i),
			gross:   float64(16-i) * 100,
		})
	}
	sales = append(sales,
		sale{date: "2024-10-15", channel: "Online", country: "C01", gross: 900},
		sale{date: "2025-10-14", channel: "Retail", country: "C15", gross: 5000},
	)
	e := NewEngine(source.Bundle{source.Analytics: analyticsTable(sales...)}, Options{})

	res, err := e.Markets("2025-42", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Markets) != 15 {
		t.Fatalf("expected 13 countries + ROW + Total, got %d", len(res.Markets))
	}
	if res.Markets[0].Country != "C01" || res.Markets[12].Country != "C13" {
		t.Errorf("unexpected ranking: first %s, 13th %s", res.Markets[0].Country, res.Markets[12].Country)
	}
	row, total := res.Markets[13], res.Markets[14]
	if row.Country != RestOfWorldKey || total.Country != TotalKey {
		t.Fatalf("expected ROW then Total, got %s, %s", row.Country, total.Country)
	}
	approx(t, "ROW", 300, row.Average)
	approx(t, "Total", 12000, total.Average)
	approx(t, "last-year week carried", 900, res.Markets[0].Weeks["2024-42"])
	approx(t, "Total last year", 900, total.Weeks["2024-42"])
}

func TestMarkets_AveragesOverAllWeeksAndOmitsEmptyROW(t *testing.T) {
	e := NewEngine(source.Bundle{source.Analytics: analyticsTable(
		sale{date: "2025-10-14", channel: "Online", country: "Sweden", gross: 800},
	)}, Options{})

	res, err := e.Markets("2025-42", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Markets) != 2 || res.Markets[1].Country != TotalKey {
		t.Fatalf("expected Sweden and Total only, got %+v", res.Markets)
	}
	approx(t, "average includes zero weeks", 200, res.Markets[0].Average)
	if len(res.Weeks) != 4 || res.Weeks[3] != "2025-42" {
		t.Errorf("unexpected weeks %v", res.Weeks)
	}
}

func salesEngine() *Engine {
	return NewEngine(source.Bundle{source.Analytics: analyticsTable(
		sale{date: "2025-10-13", channel: "Online", gender: "Men", category: "Jackets", product: "Parka", color: "Black", gross: 1000, qty: 2},
		sale{date: "2025-10-13", channel: "Online", gender: "Men", category: "Jackets", product: "Parka", color: "Black", gross: 500, qty: 1},
		sale{date: "2025-10-14", channel: "Online", gender: "WOMEN", category: "Dresses", product: "Gown", color: "-", gross: 800, qty: 4},
		sale{date: "2025-10-14", channel: "Online", gender: "MEN", category: "-", product: "Thing", color: "Red", gross: 300, qty: 5},
		sale{date: "2025-10-15", channel: "Online", gender: "Unisex", category: "Caps", product: "Cap", color: "Blue", gross: 200, qty: 3},
		sale{date: "2025-10-15", channel: "Online", gender: "-", category: "Socks", product: "Sock", gross: 50, qty: 1},
		sale{date: "2025-10-15", channel: "Retail", gender: "WOMEN", category: "Dresses", product: "Gown", gross: 9999, qty: 9},
	)}, Options{TopN: 2})
}

func TestGenderSales(t *testing.T) {
	g, err := salesEngine().GenderSalesForWeek(week42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "men + unisex", 2000, g.MenUnisexSales)
	approx(t, "women", 800, g.WomenSales)
	approx(t, "total", 2850, g.TotalSales)
}

func TestCategorySales_MenIsEverythingButWomen(t *testing.T) {
	e := salesEngine()

	men, err := e.CategorySalesForWeek(week42, ScopeMen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "jackets", 1500, men.Categories["Jackets"])
	approx(t, "unisex caps", 200, men.Categories["Caps"])
	approx(t, "unknown gender socks", 50, men.Categories["Socks"])
	if _, ok := men.Categories["-"]; ok {
		t.Error("expected placeholder category to be dropped")
	}

	women, _ := e.CategorySalesForWeek(week42, ScopeWomen)
	if len(women.Categories) != 1 || women.Categories["Dresses"] != 800 {
		t.Errorf("unexpected women categories %v", women.Categories)
	}

	all, _ := e.CategorySalesForWeek(week42, ScopeOverall)
	if len(all.Categories) != 4 {
		t.Errorf("expected 4 categories overall, got %v", all.Categories)
	}
}

func TestRankProducts(t *testing.T) {
	e := salesEngine()
	online := table.SliceToWeek(e.analytics, week42).Where(source.ColChannel, ChannelOnline)

	top := RankProducts(online, 2)
	if len(top.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(top.Products))
	}
	first := top.Products[0]
	if first.Rank != 1 || first.Product != "Parka" || first.Gender != "MEN" || first.SalesQty != 3 {
		t.Errorf("unexpected first product %+v", first)
	}
	if top.Products[1].Product != "Gown" || top.Products[1].Color != "" {
		t.Errorf("expected Gown with placeholder color cleared, got %+v", top.Products[1])
	}

	approx(t, "top revenue", 2300, top.TopTotal.GrossRevenue)
	approx(t, "grand revenue", 2850, top.GrandTotal.GrossRevenue)
	approx(t, "grand sob", 100, top.GrandTotal.SOB)
	approx(t, "top sob", 2300.0/2850.0*100, top.TopTotal.SOB)

	// Excluded: placeholder category (5), placeholder gender (1), Cap (3).
	if top.TopTotal.SalesQty+5+1+3 != top.GrandTotal.SalesQty {
		t.Errorf("quantities do not reconcile: top %d, grand %d", top.TopTotal.SalesQty, top.GrandTotal.SalesQty)
	}

	empty := RankProducts(table.New(), 5)
	if empty.GrandTotal.SOB != 100 || empty.TopTotal.SOB != 0 || len(empty.Products) != 0 {
		t.Errorf("unexpected result for no rows %+v", empty)
	}
}

func TestProductsByGenderAndSegment(t *testing.T) {
	g, err := salesEngine().ProductsByGenderForWeek(week42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Women.Products) != 1 || g.Women.Products[0].Product != "Gown" {
		t.Errorf("unexpected women products %+v", g.Women.Products)
	}
	for _, p := range g.Men.Products {
		if p.Gender == GenderWomen {
			t.Errorf("women product in men list: %+v", p)
		}
	}

	s, err := kpiEngine().ProductsBySegment("2025-42", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Weeks) != 1 {
		t.Fatalf("expected one week, got %d", len(s.Weeks))
	}
	approx(t, "new grand total", 100, s.Weeks[0].Value.New.GrandTotal.GrossRevenue)
	approx(t, "returning grand total", 120, s.Weeks[0].Value.Returning.GrandTotal.GrossRevenue)
}
