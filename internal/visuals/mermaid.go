package visuals

import (
	"fmt"
	"math"
	"strings"

	"weekly-metrics/internal/metrics"
)

// maxBars keeps text charts readable inside a chat response.
const maxBars = 15

func axisMax(v float64) int {
	if v <= 0 {
		return 1
	}
	return int(math.Ceil(v * 1.1))
}

func quoted(labels []string) string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = fmt.Sprintf("%q", l)
	}
	return strings.Join(out, ", ")
}

func numbers(values []float64) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%.0f", v)
	}
	return strings.Join(out, ", ")
}

// GenerateMarketsChart creates a Mermaid bar chart of average weekly online
// revenue per market, excluding the Total row.
func GenerateMarketsChart(result metrics.MarketsResult) string {
	var labels []string
	var values []float64
	maxVal := 0.0
	for _, m := range result.Markets {
		if m.Country == metrics.TotalKey || len(labels) == maxBars {
			continue
		}
		labels = append(labels, m.Country)
		values = append(values, m.Average)
		maxVal = math.Max(maxVal, m.Average)
	}
	if len(labels) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Top Markets (Average Weekly Online Gross)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", quoted(labels)))
	sb.WriteString(fmt.Sprintf("    y-axis \"Gross Revenue\" 0 --> %d\n", axisMax(maxVal)))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", numbers(values)))
	sb.WriteString("```")
	return sb.String()
}

// GenerateRevenueTrendChart plots weekly online gross revenue against the
// same weeks a year earlier. Weeks without a last-year value plot as 0.
func GenerateRevenueTrendChart(series metrics.Series[metrics.OnlineKPIs]) string {
	if len(series.Weeks) == 0 {
		return ""
	}

	var labels []string
	var current, lastYear []float64
	maxVal := 0.0
	for _, w := range series.Weeks {
		labels = append(labels, w.Week)
		current = append(current, w.Value.GrossRevenue)
		ly := 0.0
		if w.LastYear != nil {
			ly = w.LastYear.Value.GrossRevenue
		}
		lastYear = append(lastYear, ly)
		maxVal = math.Max(maxVal, math.Max(w.Value.GrossRevenue, ly))
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Online Gross Revenue vs Last Year\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", quoted(labels)))
	sb.WriteString(fmt.Sprintf("    y-axis \"Gross Revenue\" 0 --> %d\n", axisMax(maxVal)))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", numbers(current)))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", numbers(lastYear)))
	sb.WriteString("```")
	return sb.String()
}

// GenerateContributionChart shows total contribution per week. Negative
// weeks pull the y-axis below zero.
func GenerateContributionChart(series metrics.Series[metrics.Contribution]) string {
	if len(series.Weeks) == 0 {
		return ""
	}

	var labels []string
	var values []float64
	minVal, maxVal := 0.0, 0.0
	for _, w := range series.Weeks {
		labels = append(labels, w.Week)
		values = append(values, w.Value.ContributionTotal)
		minVal = math.Min(minVal, w.Value.ContributionTotal)
		maxVal = math.Max(maxVal, w.Value.ContributionTotal)
	}

	lower := 0
	if minVal < 0 {
		lower = -axisMax(-minVal)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Total Contribution per Week\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", quoted(labels)))
	sb.WriteString(fmt.Sprintf("    y-axis \"Contribution\" %d --> %d\n", lower, axisMax(maxVal)))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", numbers(values)))
	sb.WriteString("```")
	return sb.String()
}
