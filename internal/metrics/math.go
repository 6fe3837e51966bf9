package metrics

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Customer segments after normalization.
const (
	SegmentNew       = "New"
	SegmentReturning = "Returning"
)

// Sales channels as exported by the analytics system.
const (
	ChannelOnline    = "Online"
	ChannelRetail    = "Retail"
	ChannelWholesale = "Wholesale"

	// OutletCountry marks retail rows booked on pop-up and outlet stores.
	OutletCountry = "Outlet"
)

// Marketing spend split between the segments.
const (
	NewSpendShare       = 0.70
	ReturningSpendShare = 0.30
)

// SafeDiv divides, returning 0 when the denominator is 0 or the result is not finite.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Pct is SafeDiv scaled to 0-100.
func Pct(num, den float64) float64 {
	return SafeDiv(num, den) * 100
}

// Round1 rounds half away from zero to one decimal.
func Round1(f float64) float64 {
	return round(f, 1)
}

// Round2 rounds half away from zero to two decimals.
func Round2(f float64) float64 {
	return round(f, 2)
}

func round(f float64, places int32) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}

// NormalizeSegment maps the exported segment labels ("New Customer",
// "Returning", ...) onto SegmentNew and SegmentReturning. Anything else
// comes back empty.
func NormalizeSegment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new", "new customer", "new customers":
		return SegmentNew
	case "returning", "returning customer", "returning customers":
		return SegmentReturning
	}
	return ""
}

// placeholder reports cells the exports use for "no value".
func placeholder(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "-"
}
