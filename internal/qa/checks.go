// Package qa runs data-quality checks over loaded sources and computed
// headline metrics.
package qa

import (
	"fmt"
	"math"
	"sort"

	"weekly-metrics/internal/metrics"
	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	// ConsistencyTolerancePct is the allowed gap between analytics gross
	// revenue and the margin export's GM2 total.
	ConsistencyTolerancePct = 10.0
	OutlierSigma            = 3.0
	ExtremeQuantity         = 1000.0
)

const (
	CheckConsistency = "Data Consistency"
	CheckNegative    = "Negative Values"
	CheckOutliers    = "Outliers"
	CheckVolume      = "Volume Consistency"
)

// Check is the outcome of one named check.
type Check struct {
	Name   string   `json:"name"`
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}

// Result aggregates every check. Outliers only fail the run in strict mode.
type Result struct {
	Passed     bool    `json:"passed"`
	Checks     []Check `json:"checks"`
	StrictMode bool    `json:"strict_mode"`
}

// Run executes all checks. headline may be nil when no metrics were computed.
func Run(b source.Bundle, headline metrics.Table1Result, strict bool) Result {
	checks := []Check{
		consistency(b),
		negativeValues(b, headline),
		outliers(b),
		volume(b),
	}

	res := Result{Passed: true, Checks: checks, StrictMode: strict}
	for _, c := range checks {
		if c.Passed || (c.Name == CheckOutliers && !strict) {
			continue
		}
		res.Passed = false
	}

	failed := lo.CountBy(checks, func(c Check) bool { return !c.Passed })
	if res.Passed {
		log.Info().Int("checks", len(checks)).Int("flagged", failed).Bool("strict", strict).Msg("QA checks passed")
	} else {
		log.Warn().Int("checks", len(checks)).Int("failed", failed).Bool("strict", strict).Msg("QA checks failed")
	}
	return res
}

func newCheck(name string, issues []string) Check {
	if issues == nil {
		issues = []string{}
	}
	return Check{Name: name, Passed: len(issues) == 0, Issues: issues}
}

func consistency(b source.Bundle) Check {
	var issues []string
	analytics, margin := b.Table(source.Analytics), b.Table(source.Margin)
	if !analytics.Empty() && !margin.Empty() {
		gross := analytics.Sum(source.ColGrossRevenue)
		gm2 := margin.Sum(source.ColGM2)
		if gross > 0 && gm2 > 0 {
			diff := math.Abs(gross-gm2) / gross * 100
			if diff > ConsistencyTolerancePct {
				issues = append(issues, fmt.Sprintf("analytics gross (%.2f) differs from margin GM2 (%.2f) by %.1f%%", gross, gm2, diff))
			}
		}
	}
	return newCheck(CheckConsistency, issues)
}

func negativeValues(b source.Bundle, headline metrics.Table1Result) Check {
	var issues []string
	analytics := b.Table(source.Analytics)
	for _, col := range []string{source.ColGrossRevenue, source.ColNetRevenue} {
		if !analytics.Has(col) {
			continue
		}
		n := lo.CountBy(analytics.Rows, func(r table.Row) bool { return r.Float(col) < 0 })
		if n > 0 {
			issues = append(issues, fmt.Sprintf("found %d records with negative %s", n, col))
		}
	}

	periods := lo.Keys(map[string]metrics.Table1Metrics(headline))
	sort.Strings(periods)
	for _, p := range periods {
		m := headline[p]
		if m.OnlineGrossRevenue < 0 || m.OnlineNetRevenue < 0 || m.MarketingSpend < 0 {
			issues = append(issues, fmt.Sprintf("negative headline metric in period %s", p))
		}
	}
	return newCheck(CheckNegative, issues)
}

func outliers(b source.Bundle) Check {
	var issues []string
	analytics := b.Table(source.Analytics)
	if analytics.Has(source.ColGrossRevenue) && analytics.Len() > 1 {
		values := lo.Map(analytics.Rows, func(r table.Row, _ int) float64 { return r.Float(source.ColGrossRevenue) })
		mean, sd := meanStdDev(values)
		n := lo.CountBy(values, func(v float64) bool { return math.Abs(v-mean) > OutlierSigma*sd })
		if n > 0 {
			issues = append(issues, fmt.Sprintf("found %d revenue outliers (>%.0f std dev from mean)", n, OutlierSigma))
		}
	}
	return newCheck(CheckOutliers, issues)
}

// meanStdDev uses the sample standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	mean := lo.Sum(values) / float64(len(values))
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(values)-1))
}

func volume(b source.Bundle) Check {
	var issues []string
	analytics := b.Table(source.Analytics)

	if analytics.Has(source.ColOrderNo) {
		seen := make(map[string]bool)
		dupes := 0
		for _, r := range analytics.Rows {
			order := r.String(source.ColOrderNo)
			if order == "" {
				continue
			}
			if seen[order] {
				dupes++
			}
			seen[order] = true
		}
		if dupes > 0 {
			issues = append(issues, fmt.Sprintf("found %d duplicate order numbers", dupes))
		}
	}

	if analytics.Has(source.ColSalesQty) {
		n := lo.CountBy(analytics.Rows, func(r table.Row) bool { return r.Float(source.ColSalesQty) > ExtremeQuantity })
		if n > 0 {
			issues = append(issues, fmt.Sprintf("found %d orders with extreme quantities (>%.0f units)", n, ExtremeQuantity))
		}
	}
	return newCheck(CheckVolume, issues)
}
