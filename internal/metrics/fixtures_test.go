package metrics

import (
	"math"
	"testing"

	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"
)

type sale struct {
	date, channel, country, segment, email, order string
	gender, category, product, color              string
	gross, net, returns, qty                      float64
}

func analyticsTable(sales ...sale) *table.Table {
	t := table.New(source.ColDate, source.ColChannel, source.ColCountry, source.ColSegment,
		source.ColEmail, source.ColOrderNo, source.ColGender, source.ColCategory, source.ColProduct,
		source.ColColor, source.ColGrossRevenue, source.ColNetRevenue, source.ColReturns, source.ColSalesQty)
	for _, s := range sales {
		t.Append(table.Row{
			source.ColDate:         table.Text(s.date),
			source.ColChannel:      table.Text(s.channel),
			source.ColCountry:      table.Text(s.country),
			source.ColSegment:      table.Text(s.segment),
			source.ColEmail:        table.Text(s.email),
			source.ColOrderNo:      table.Text(s.order),
			source.ColGender:       table.Text(s.gender),
			source.ColCategory:     table.Text(s.category),
			source.ColProduct:      table.Text(s.product),
			source.ColColor:        table.Text(s.color),
			source.ColGrossRevenue: table.Number(s.gross),
			source.ColNetRevenue:   table.Number(s.net),
			source.ColReturns:      table.Number(s.returns),
			source.ColSalesQty:     table.Number(s.qty),
		})
	}
	return t
}

type spendRow struct {
	day, country string
	spend        float64
}

func spendTable(rows ...spendRow) *table.Table {
	t := table.New(source.ColDays, source.ColCountry, source.ColSpend)
	for _, r := range rows {
		t.Append(table.Row{
			source.ColDays:    table.Text(r.day),
			source.ColCountry: table.Text(r.country),
			source.ColSpend:   table.Number(r.spend),
		})
	}
	return t
}

type marginRow struct {
	day, country, segment string
	gm2                   float64
}

// marginTable omits the country column when every row leaves it empty.
func marginTable(rows ...marginRow) *table.Table {
	withCountry := false
	for _, r := range rows {
		if r.country != "" {
			withCountry = true
		}
	}
	t := table.New(source.ColDays, source.ColMarginSegment, source.ColGM2)
	for _, r := range rows {
		row := table.Row{
			source.ColDays:          table.Text(r.day),
			source.ColMarginSegment: table.Text(r.segment),
			source.ColGM2:           table.Number(r.gm2),
		}
		if withCountry {
			row[source.ColCountry] = table.Text(r.country)
		}
		t.Append(row)
	}
	return t
}

type sessionRow struct {
	day, country string
	sessions     float64
}

func sessionsTable(rows ...sessionRow) *table.Table {
	t := table.New(source.ColDay, source.ColSessionCountry, source.ColSessions)
	for _, r := range rows {
		t.Append(table.Row{
			source.ColDay:            table.Text(r.day),
			source.ColSessionCountry: table.Text(r.country),
			source.ColSessions:       table.Number(r.sessions),
		})
	}
	return t
}

func approx(t *testing.T, name string, want, got float64) {
	t.Helper()
	if math.Abs(want-got) > 1e-6 {
		t.Errorf("%s: expected %v, got %v", name, want, got)
	}
}

// headlineSales reproduces a week (2025-42) with online gross 1,145,000,
// returns 24,000, online net 1,121,000 and 55,000 of concept-store retail.
func headlineSales() []sale {
	return []sale{
		{date: "2025-10-13", channel: "Online", country: "United States", segment: "New", email: "a@x", order: "O1", gross: 645000, net: 631000, returns: 14000},
		{date: "2025-10-15", channel: "Online", country: "Sweden", segment: "Returning Customer", email: "b@x", order: "O2", gross: 500000, net: 490000, returns: 10000},
		{date: "2025-10-19", channel: "Retail", country: "Sweden", segment: "-", gross: 55000, net: 55000},
	}
}

func headlineSpend() []spendRow {
	return []spendRow{
		{day: "2025-10-14", country: "United States", spend: 300000},
		{day: "2025-10-16", country: "Sweden", spend: 59000},
	}
}
