package metrics

import (
	"time"

	"weekly-metrics/internal/calendar"
)

const monthLayout = "2006-01"

// SpreadBudget spreads each monthly amount evenly over the days of its month
// and sums the days that fall inside r. Months missing from monthly count as 0.
func SpreadBudget(monthly map[string]float64, r calendar.DateRange) float64 {
	if len(monthly) == 0 || r.End.Before(r.Start) {
		return 0
	}
	var total float64
	for d := calendar.Day(r.Start); !d.After(r.End); d = d.AddDate(0, 0, 1) {
		amount, ok := monthly[d.Format(monthLayout)]
		if !ok {
			continue
		}
		total += amount / float64(daysIn(d.Year(), d.Month()))
	}
	return total
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
