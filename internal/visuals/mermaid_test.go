package visuals

import (
	"strings"
	"testing"

	"weekly-metrics/internal/metrics"
)

func TestGenerateMarketsChart(t *testing.T) {
	res := metrics.MarketsResult{Markets: []metrics.Market{
		{Country: "Sweden", Average: 1000},
		{Country: "Norway", Average: 400},
		{Country: metrics.TotalKey, Average: 1400},
	}}
	chart := GenerateMarketsChart(res)

	if !strings.HasPrefix(chart, "```mermaid\nxychart-beta\n") {
		t.Fatalf("unexpected chart header:\n%s", chart)
	}
	if !strings.Contains(chart, `x-axis ["Sweden", "Norway"]`) {
		t.Errorf("expected Total to be left out:\n%s", chart)
	}
	if !strings.Contains(chart, "0 --> 1100") || !strings.Contains(chart, "bar [1000, 400]") {
		t.Errorf("unexpected scale or values:\n%s", chart)
	}
	if GenerateMarketsChart(metrics.MarketsResult{}) != "" {
		t.Error("expected no chart without markets")
	}
}

func TestGenerateRevenueTrendChart(t *testing.T) {
	series := metrics.Series[metrics.OnlineKPIs]{Weeks: []metrics.Weekly[metrics.OnlineKPIs]{
		{Week: "2025-41", Value: metrics.OnlineKPIs{GrossRevenue: 500}},
		{Week: "2025-42", Value: metrics.OnlineKPIs{GrossRevenue: 800}, LastYear: &metrics.Weekly[metrics.OnlineKPIs]{
			Week: "2024-42", Value: metrics.OnlineKPIs{GrossRevenue: 900},
		}},
	}}
	chart := GenerateRevenueTrendChart(series)
	if !strings.Contains(chart, "line [500, 800]") || !strings.Contains(chart, "line [0, 900]") {
		t.Errorf("unexpected lines:\n%s", chart)
	}
	if !strings.Contains(chart, "0 --> 990") {
		t.Errorf("expected the axis to cover last year's peak:\n%s", chart)
	}
}

func TestGenerateContributionChart_NegativeWeeks(t *testing.T) {
	series := metrics.Series[metrics.Contribution]{Weeks: []metrics.Weekly[metrics.Contribution]{
		{Week: "2025-41", Value: metrics.Contribution{ContributionTotal: -200}},
		{Week: "2025-42", Value: metrics.Contribution{ContributionTotal: 300}},
	}}
	chart := GenerateContributionChart(series)
	if !strings.Contains(chart, `"Contribution" -220 --> 330`) {
		t.Errorf("expected a signed axis:\n%s", chart)
	}
}
