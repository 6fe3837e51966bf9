package qa

import (
	"fmt"
	"testing"

	"weekly-metrics/internal/metrics"
	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"
)

func salesTable(rows ...table.Row) *table.Table {
	t := table.New(source.ColDate, source.ColOrderNo, source.ColGrossRevenue, source.ColNetRevenue, source.ColSalesQty)
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func sale(order string, gross, net, qty float64) table.Row {
	return table.Row{
		source.ColDate:         table.Text("2025-10-13"),
		source.ColOrderNo:      table.Text(order),
		source.ColGrossRevenue: table.Number(gross),
		source.ColNetRevenue:   table.Number(net),
		source.ColSalesQty:     table.Number(qty),
	}
}

func findCheck(t *testing.T, res Result, name string) Check {
	t.Helper()
	for _, c := range res.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not reported", name)
	return Check{}
}

func TestRun_CleanData(t *testing.T) {
	b := source.Bundle{source.Analytics: salesTable(sale("O1", 100, 90, 1), sale("O2", 120, 100, 2), sale("", 50, 50, 1), sale("", 60, 60, 1))}
	res := Run(b, nil, true)
	if !res.Passed {
		t.Fatalf("expected clean data to pass, got %+v", res.Checks)
	}
	if len(res.Checks) != 4 || !res.StrictMode {
		t.Errorf("unexpected result shape %+v", res)
	}
	for _, c := range res.Checks {
		if c.Issues == nil {
			t.Errorf("%s: expected a non-nil issue list", c.Name)
		}
	}
}

func TestRun_Consistency(t *testing.T) {
	margin := table.New(source.ColDays, source.ColGM2)
	margin.Append(table.Row{source.ColDays: table.Text("2025-10-13"), source.ColGM2: table.Number(50)})
	b := source.Bundle{
		source.Analytics: salesTable(sale("O1", 100, 90, 1)),
		source.Margin:    margin,
	}

	res := Run(b, nil, false)
	if c := findCheck(t, res, CheckConsistency); c.Passed {
		t.Error("expected a 50% gap to fail consistency")
	}
	if res.Passed {
		t.Error("expected the run to fail")
	}

	margin.Rows[0][source.ColGM2] = table.Number(95)
	if c := findCheck(t, Run(b, nil, false), CheckConsistency); !c.Passed {
		t.Errorf("expected a 5%% gap to pass, got %v", c.Issues)
	}
}

func TestRun_NegativeValues(t *testing.T) {
	b := source.Bundle{source.Analytics: salesTable(sale("O1", -10, -12, 1), sale("O2", 100, 90, 1))}
	c := findCheck(t, Run(b, nil, false), CheckNegative)
	if c.Passed || len(c.Issues) != 2 {
		t.Errorf("expected negative gross and net to be flagged, got %v", c.Issues)
	}

	clean := source.Bundle{source.Analytics: salesTable(sale("O1", 10, 10, 1))}
	headline := metrics.Table1Result{"actual": {MarketingSpend: -1}}
	if c := findCheck(t, Run(clean, headline, false), CheckNegative); c.Passed {
		t.Error("expected a negative headline metric to be flagged")
	}
}

func TestRun_OutliersOnlyFailInStrictMode(t *testing.T) {
	var rows []table.Row
	for i := 0; i < 19; i++ {
		rows = append(rows, sale(fmt.Sprintf("O%d", i), 100, 100, 1))
	}
	rows = append(rows, sale("BIG", 10000, 10000, 1))
	b := source.Bundle{source.Analytics: salesTable(rows...)}

	lenient := Run(b, nil, false)
	if c := findCheck(t, lenient, CheckOutliers); c.Passed {
		t.Fatal("expected the large order to be an outlier")
	}
	if !lenient.Passed {
		t.Error("expected outliers not to fail a lenient run")
	}
	if Run(b, nil, true).Passed {
		t.Error("expected outliers to fail a strict run")
	}
}

func TestRun_Volume(t *testing.T) {
	b := source.Bundle{source.Analytics: salesTable(sale("O1", 10, 10, 1), sale("O1", 10, 10, 2000), sale("O2", 10, 10, 1))}
	c := findCheck(t, Run(b, nil, false), CheckVolume)
	if c.Passed || len(c.Issues) != 2 {
		t.Errorf("expected a duplicate and an extreme quantity, got %v", c.Issues)
	}
}
