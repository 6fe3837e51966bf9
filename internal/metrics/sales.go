package metrics

import (
	"strings"

	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"
)

// Gender labels, compared case-insensitively.
const (
	GenderMen    = "MEN"
	GenderWomen  = "WOMEN"
	GenderUnisex = "UNISEX"
)

func gender(r table.Row) string {
	return strings.ToUpper(r.String(source.ColGender))
}

// isWomen is the exact match used for women's figures; men's figures are
// everything else, unisex and unknown included.
func isWomen(r table.Row) bool { return gender(r) == GenderWomen }

// GenderSales splits online gross revenue by gender.
type GenderSales struct {
	MenUnisexSales float64 `json:"men_unisex_sales"`
	WomenSales     float64 `json:"women_sales"`
	TotalSales     float64 `json:"total_sales"`
}

func genderSales(s slice) (GenderSales, error) {
	if s.online.Empty() {
		return GenderSales{}, errNoData
	}
	var out GenderSales
	for _, r := range s.online.Rows {
		gross := r.Float(source.ColGrossRevenue)
		switch gender(r) {
		case GenderMen, GenderUnisex:
			out.MenUnisexSales += gross
		case GenderWomen:
			out.WomenSales += gross
		}
		out.TotalSales += gross
	}
	return out, nil
}

// GenderSalesForWeek computes the gender split of one week.
func (e *Engine) GenderSalesForWeek(w calendar.ISOWeek) (GenderSales, error) {
	return genderSales(e.week(w))
}

// GenderSales computes the gender split for numWeeks weeks ending at baseWeek.
func (e *Engine) GenderSales(baseWeek string, numWeeks int) (Series[GenderSales], error) {
	return weekly(e, "gender_sales", baseWeek, numWeeks, genderSales)
}

// CategorySales is online gross revenue per product category.
type CategorySales struct {
	Categories map[string]float64 `json:"categories"`
}

// CategoryScope selects the rows a category breakdown covers.
type CategoryScope string

const (
	ScopeMen     CategoryScope = "men"
	ScopeWomen   CategoryScope = "women"
	ScopeOverall CategoryScope = "overall"
)

func (c CategoryScope) keep(r table.Row) bool {
	switch c {
	case ScopeMen:
		return !isWomen(r)
	case ScopeWomen:
		return isWomen(r)
	default:
		return true
	}
}

func categorySales(scope CategoryScope) func(slice) (CategorySales, error) {
	return func(s slice) (CategorySales, error) {
		if s.online.Empty() {
			return CategorySales{}, errNoData
		}
		if err := s.online.Require(source.ColCategory); err != nil {
			return CategorySales{}, err
		}
		rows := s.online.Filter(scope.keep)
		return CategorySales{Categories: groupSum(rows, source.ColCategory, source.ColGrossRevenue)}, nil
	}
}

// CategorySalesForWeek computes one week's category breakdown for scope.
func (e *Engine) CategorySalesForWeek(w calendar.ISOWeek, scope CategoryScope) (CategorySales, error) {
	return categorySales(scope)(e.week(w))
}

// CategorySales computes the category breakdown for numWeeks weeks ending at baseWeek.
func (e *Engine) CategorySales(baseWeek string, numWeeks int, scope CategoryScope) (Series[CategorySales], error) {
	return weekly(e, string(scope)+"_category_sales", baseWeek, numWeeks, categorySales(scope))
}
