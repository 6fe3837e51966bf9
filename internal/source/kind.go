package source

import (
	"fmt"
	"strings"
)

// Kind names one family of exported files.
type Kind string

const (
	Analytics         Kind = "analytics"
	MarketingSpend    Kind = "marketing-spend"
	Margin            Kind = "margin"
	EcommerceSessions Kind = "ecommerce-sessions"
	Other             Kind = "other"
)

// Column names as they appear in the exports.
const (
	ColDate           = "Date"
	ColChannel        = "Sales Channel"
	ColGrossRevenue   = "Gross Revenue"
	ColNetRevenue     = "Net Revenue"
	ColReturns        = "Returns"
	ColCountry        = "Country"
	ColSegment        = "New/Returning Customer"
	ColEmail          = "Customer E-mail"
	ColOrderNo        = "Order No"
	ColGender         = "Gender"
	ColCategory       = "Product Category"
	ColProduct        = "Product"
	ColColor          = "Color"
	ColSalesQty       = "Sales Qty"
	ColDays           = "Days"
	ColSpend          = "Marketing spend"
	ColSpendFallback  = "Cost"
	ColGM2            = "Gross margin 2 - Dema MTA"
	ColMarginSegment  = "New vs Returning Customer"
	ColDay            = "Day"
	ColSessions       = "Sessions"
	ColSessionCountry = "Session country"
)

// Spec describes where a kind lives and what it must carry.
type Spec struct {
	Kind        Kind
	Aliases     []string
	DateColumns []string
	Required    []string
	Numeric     []string
	Spreadsheet bool
}

var specs = map[Kind]Spec{
	Analytics: {
		Kind:        Analytics,
		Aliases:     []string{"qlik"},
		DateColumns: []string{ColDate},
		Required:    []string{ColDate, ColChannel, ColGrossRevenue, ColNetRevenue},
		Numeric:     []string{ColGrossRevenue, ColNetRevenue, ColReturns},
		Spreadsheet: true,
	},
	MarketingSpend: {
		Kind:        MarketingSpend,
		Aliases:     []string{"dema_spend", "dema"},
		DateColumns: []string{ColDays, ColDate},
		Required:    []string{ColDays},
		Numeric:     []string{ColSpend},
	},
	Margin: {
		Kind:        Margin,
		Aliases:     []string{"dema_gm2"},
		DateColumns: []string{ColDays, ColDate},
		Required:    []string{ColDays, ColGM2},
		Numeric:     []string{ColGM2},
	},
	EcommerceSessions: {
		Kind:        EcommerceSessions,
		Aliases:     []string{"shopify"},
		DateColumns: []string{ColDay, ColDate},
		Required:    []string{ColSessions},
		Numeric:     []string{ColSessions},
	},
	Other: {
		Kind:    Other,
		Aliases: []string{"misc"},
	},
}

// CoreKinds are the four structured exports, in load order.
var CoreKinds = []Kind{Analytics, MarketingSpend, Margin, EcommerceSessions}

// SpecFor returns the description of a kind.
func SpecFor(k Kind) (Spec, bool) {
	s, ok := specs[k]
	return s, ok
}

// ParseKind accepts canonical names and legacy aliases.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, spec := range specs {
		if string(k) == s {
			return k, nil
		}
		for _, a := range spec.Aliases {
			if a == s {
				return k, nil
			}
		}
	}
	return "", fmt.Errorf("unknown source kind %q", s)
}
