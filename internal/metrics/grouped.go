package metrics

import (
	"sort"

	"weekly-metrics/internal/table"

	"github.com/samber/lo"
)

// Synthetic keys injected into every per-country result.
const (
	TotalKey       = "Total"
	RestOfWorldKey = "ROW"
)

// DefaultMajorCountries are reported on their own; everything else folds into ROW.
var DefaultMajorCountries = []string{
	"United States",
	"United Kingdom",
	"Sweden",
	"Germany",
	"Australia",
	"Canada",
	"France",
}

// CountryValues maps a country (or a synthetic key) to a metric value.
type CountryValues map[string]float64

// Countries lists the non-synthetic keys, sorted.
func (v CountryValues) Countries() []string {
	keys := lo.Filter(lo.Keys(map[string]float64(v)), func(k string, _ int) bool {
		return k != TotalKey && k != RestOfWorldKey
	})
	sort.Strings(keys)
	return keys
}

// Pair is one country's numerator and denominator.
type Pair struct {
	Num float64
	Den float64
}

// Components accumulates pairs per country.
type Components map[string]Pair

// Add accumulates into a country's pair. Placeholder countries are ignored.
func (c Components) Add(country string, num, den float64) {
	if placeholder(country) {
		return
	}
	p := c[country]
	p.Num += num
	p.Den += den
	c[country] = p
}

// Policy decides how Total and ROW are derived.
type Policy int

const (
	// SumPolicy: value = Num, Total = sum of values, ROW = Total minus the majors.
	SumPolicy Policy = iota
	// RatioPolicy: value = Num/Den, Total = sum(Num)/sum(Den), ROW = the same
	// ratio over the non-major countries.
	RatioPolicy
)

// CountryRatio is the grouped metric shared by every per-country family.
type CountryRatio struct {
	Policy Policy
	// Scale multiplies ratios, e.g. 100 for percentages. Zero means 1.
	Scale  float64
	Majors []string
}

// Apply evaluates every country and injects Total and ROW.
func (r CountryRatio) Apply(c Components) CountryValues {
	scale := r.Scale
	if scale == 0 {
		scale = 1
	}
	majors := r.Majors
	if majors == nil {
		majors = DefaultMajorCountries
	}

	out := make(CountryValues, len(c)+2)
	var total, rest Pair
	for country, p := range c {
		if country == TotalKey || country == RestOfWorldKey {
			continue
		}
		switch r.Policy {
		case RatioPolicy:
			out[country] = SafeDiv(p.Num, p.Den) * scale
		default:
			out[country] = p.Num
		}
		total.Num += p.Num
		total.Den += p.Den
		if !lo.Contains(majors, country) {
			rest.Num += p.Num
			rest.Den += p.Den
		}
	}

	switch r.Policy {
	case RatioPolicy:
		out[TotalKey] = SafeDiv(total.Num, total.Den) * scale
		out[RestOfWorldKey] = SafeDiv(rest.Num, rest.Den) * scale
	default:
		out[TotalKey] = total.Num
		out[RestOfWorldKey] = rest.Num
	}
	return out
}

// groupSum sums valueCol per keyCol.
func groupSum(t *table.Table, keyCol, valueCol string) map[string]float64 {
	out := make(map[string]float64)
	if t == nil {
		return out
	}
	for _, r := range t.Rows {
		k := r.String(keyCol)
		if placeholder(k) {
			continue
		}
		out[k] += r.Float(valueCol)
	}
	return out
}

// groupDistinct counts distinct non-missing values of col per keyCol.
func groupDistinct(t *table.Table, keyCol, col string) map[string]float64 {
	seen := make(map[string]map[string]struct{})
	if t != nil {
		for _, r := range t.Rows {
			k := r.String(keyCol)
			if placeholder(k) || r.Missing(col) {
				continue
			}
			if seen[k] == nil {
				seen[k] = make(map[string]struct{})
			}
			seen[k][r.String(col)] = struct{}{}
		}
	}
	return lo.MapValues(seen, func(v map[string]struct{}, _ string) float64 {
		return float64(len(v))
	})
}

// groupMean averages valueCol per keyCol over rows where it is present.
func groupMean(t *table.Table, keyCol, valueCol string) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	if t != nil {
		for _, r := range t.Rows {
			k := r.String(keyCol)
			if placeholder(k) {
				continue
			}
			f, ok := r[valueCol].Float()
			if !ok {
				continue
			}
			sums[k] += f
			counts[k]++
		}
	}
	return lo.MapValues(sums, func(s float64, k string) float64 {
		return SafeDiv(s, float64(counts[k]))
	})
}

// mean averages a column over rows where it is numeric.
func mean(t *table.Table, col string) float64 {
	if t == nil {
		return 0
	}
	var sum float64
	n := 0
	for _, r := range t.Rows {
		if f, ok := r[col].Float(); ok {
			sum += f
			n++
		}
	}
	return SafeDiv(sum, float64(n))
}

// keysOf merges the key sets of several maps.
func keysOf(maps ...map[string]float64) []string {
	keys := lo.Uniq(lo.FlatMap(maps, func(m map[string]float64, _ int) []string { return lo.Keys(m) }))
	sort.Strings(keys)
	return keys
}
