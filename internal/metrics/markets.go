package metrics

import (
	"sort"

	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// TopMarkets is how many countries the markets family reports by name.
const TopMarkets = 13

// Market is one country's online gross revenue per week.
type Market struct {
	Country string             `json:"country"`
	Weeks   map[string]float64 `json:"weeks"`
	Average float64            `json:"average"`
}

// MarketsResult ranks countries by their average over the current weeks.
type MarketsResult struct {
	Markets    []Market   `json:"markets"`
	Weeks      []string   `json:"weeks"`
	LastYear   []string   `json:"last_year_weeks"`
	PeriodInfo PeriodInfo `json:"period_info"`
}

// Markets ranks countries by average online gross revenue over numWeeks
// weeks ending at baseWeek. The top 13 are listed, followed by ROW when it
// is positive and Total. Week maps carry the matching last-year weeks too.
func (e *Engine) Markets(baseWeek string, numWeeks int) (MarketsResult, error) {
	base, err := ParseWindow(baseWeek, numWeeks)
	if err != nil {
		return MarketsResult{}, err
	}

	current := calendar.WeeksBack(base, numWeeks)
	lastYear := make([]calendar.ISOWeek, len(current))
	for i, w := range current {
		lastYear[i] = calendar.LastYearWeek(w)
	}
	all := lo.Uniq(append(append([]calendar.ISOWeek(nil), current...), lastYear...))

	byCountry := make(map[string]map[string]float64)
	for _, w := range all {
		online := table.SliceToWeek(e.analytics, w).Where(source.ColChannel, ChannelOnline)
		for country, revenue := range groupSum(online, source.ColCountry, source.ColGrossRevenue) {
			if byCountry[country] == nil {
				byCountry[country] = make(map[string]float64)
			}
			byCountry[country][w.String()] += revenue
		}
	}

	weekLabels := func(ws []calendar.ISOWeek) []string {
		out := make([]string, len(ws))
		for i, w := range ws {
			out[i] = w.String()
		}
		return out
	}
	curLabels, allLabels := weekLabels(current), weekLabels(all)

	average := func(weeks map[string]float64) float64 {
		var sum float64
		for _, w := range curLabels {
			sum += weeks[w]
		}
		return SafeDiv(sum, float64(len(curLabels)))
	}
	fill := func(weeks map[string]float64) map[string]float64 {
		out := make(map[string]float64, len(allLabels))
		for _, w := range allLabels {
			out[w] = weeks[w]
		}
		return out
	}

	markets := make([]Market, 0, len(byCountry))
	for country, weeks := range byCountry {
		markets = append(markets, Market{Country: country, Weeks: fill(weeks), Average: average(weeks)})
	}
	sort.Slice(markets, func(i, j int) bool {
		if markets[i].Average != markets[j].Average {
			return markets[i].Average > markets[j].Average
		}
		return markets[i].Country < markets[j].Country
	})

	sumOver := func(ms []Market) map[string]float64 {
		out := make(map[string]float64, len(allLabels))
		for _, w := range allLabels {
			for _, m := range ms {
				out[w] += m.Weeks[w]
			}
		}
		return out
	}

	top := markets
	var rest []Market
	if len(markets) > TopMarkets {
		top, rest = markets[:TopMarkets], markets[TopMarkets:]
	}
	result := append([]Market{}, top...)
	if row := sumOver(rest); average(row) > 0 {
		result = append(result, Market{Country: RestOfWorldKey, Weeks: row, Average: average(row)})
	}
	total := sumOver(markets)
	result = append(result, Market{Country: TotalKey, Weeks: total, Average: average(total)})

	log.Debug().Str("baseWeek", base.String()).Int("countries", len(markets)).Msg("Computed top markets")
	return MarketsResult{
		Markets:    result,
		Weeks:      curLabels,
		LastYear:   weekLabels(lastYear),
		PeriodInfo: NewPeriodInfo(base),
	}, nil
}
