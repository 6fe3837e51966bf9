package metrics

import (
	"sort"
	"strings"

	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"

	"github.com/samber/lo"
)

// Product is one ranked (gender, category, product, color) line.
type Product struct {
	Rank         int     `json:"rank"`
	Gender       string  `json:"gender"`
	Category     string  `json:"category"`
	Product      string  `json:"product"`
	Color        string  `json:"color"`
	GrossRevenue float64 `json:"gross_revenue"`
	SalesQty     int     `json:"sales_qty"`
}

// Subtotal is revenue and quantity with its share of business.
type Subtotal struct {
	GrossRevenue float64 `json:"gross_revenue"`
	SalesQty     int     `json:"sales_qty"`
	SOB          float64 `json:"sob"`
}

// TopProducts lists the best sellers of one selection.
type TopProducts struct {
	Products   []Product `json:"products"`
	TopTotal   Subtotal  `json:"top_total"`
	GrandTotal Subtotal  `json:"grand_total"`
}

type productKey struct {
	gender, category, product, color string
}

func (k productKey) String() string {
	return strings.Join([]string{k.product, k.color, k.category, k.gender}, "\x00")
}

// RankProducts groups rows by (gender, category, product, color), drops
// groups with a placeholder gender, category or product, and keeps the topN
// by gross revenue. The grand total covers every row.
func RankProducts(rows *table.Table, topN int) TopProducts {
	type agg struct {
		key     productKey
		revenue float64
		qty     float64
	}
	groups := make(map[productKey]*agg)
	var grandRevenue, grandQty float64
	for _, r := range rows.Rows {
		revenue, qty := r.Float(source.ColGrossRevenue), r.Float(source.ColSalesQty)
		grandRevenue += revenue
		grandQty += qty

		k := productKey{
			gender:   r.String(source.ColGender),
			category: r.String(source.ColCategory),
			product:  r.String(source.ColProduct),
			color:    r.String(source.ColColor),
		}
		if placeholder(k.gender) || placeholder(k.category) || placeholder(k.product) {
			continue
		}
		if placeholder(k.color) {
			k.color = ""
		}
		g, ok := groups[k]
		if !ok {
			g = &agg{key: k}
			groups[k] = g
		}
		g.revenue += revenue
		g.qty += qty
	}

	ranked := lo.Values(groups)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.revenue != b.revenue {
			return a.revenue > b.revenue
		}
		return a.key.String() < b.key.String()
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	out := TopProducts{Products: make([]Product, 0, len(ranked))}
	var topRevenue, topQty float64
	for i, g := range ranked {
		out.Products = append(out.Products, Product{
			Rank:         i + 1,
			Gender:       strings.ToUpper(g.key.gender),
			Category:     g.key.category,
			Product:      g.key.product,
			Color:        g.key.color,
			GrossRevenue: g.revenue,
			SalesQty:     int(g.qty),
		})
		topRevenue += g.revenue
		topQty += g.qty
	}
	out.TopTotal = Subtotal{GrossRevenue: topRevenue, SalesQty: int(topQty), SOB: Pct(topRevenue, grandRevenue)}
	out.GrandTotal = Subtotal{GrossRevenue: grandRevenue, SalesQty: int(grandQty), SOB: 100}
	return out
}

// ProductsByGender ranks men's and women's best sellers.
type ProductsByGender struct {
	Men   TopProducts `json:"men"`
	Women TopProducts `json:"women"`
}

// ProductsBySegment ranks new and returning customers' best sellers.
type ProductsBySegment struct {
	New       TopProducts `json:"new"`
	Returning TopProducts `json:"returning"`
}

func (e *Engine) productsByGender(s slice) (ProductsByGender, error) {
	if s.online.Empty() {
		return ProductsByGender{}, errNoData
	}
	if err := s.online.Require(source.ColGender, source.ColProduct); err != nil {
		return ProductsByGender{}, err
	}
	return ProductsByGender{
		Men:   RankProducts(s.online.Filter(ScopeMen.keep), e.opts.TopN),
		Women: RankProducts(s.online.Filter(ScopeWomen.keep), e.opts.TopN),
	}, nil
}

func (e *Engine) productsBySegment(s slice) (ProductsBySegment, error) {
	if s.online.Empty() {
		return ProductsBySegment{}, errNoData
	}
	if err := s.online.Require(source.ColSegment, source.ColProduct); err != nil {
		return ProductsBySegment{}, err
	}
	return ProductsBySegment{
		New:       RankProducts(segment(s.online, source.ColSegment, SegmentNew), e.opts.TopN),
		Returning: RankProducts(segment(s.online, source.ColSegment, SegmentReturning), e.opts.TopN),
	}, nil
}

// ProductsByGenderForWeek ranks one week's best sellers by gender.
func (e *Engine) ProductsByGenderForWeek(w calendar.ISOWeek) (ProductsByGender, error) {
	return e.productsByGender(e.week(w))
}

// ProductsByGender ranks best sellers by gender for numWeeks weeks ending at baseWeek.
func (e *Engine) ProductsByGender(baseWeek string, numWeeks int) (Series[ProductsByGender], error) {
	return weekly(e, "products_gender", baseWeek, numWeeks, e.productsByGender)
}

// ProductsBySegmentForWeek ranks one week's best sellers by customer segment.
func (e *Engine) ProductsBySegmentForWeek(w calendar.ISOWeek) (ProductsBySegment, error) {
	return e.productsBySegment(e.week(w))
}

// ProductsBySegment ranks best sellers by segment for numWeeks weeks ending at baseWeek.
func (e *Engine) ProductsBySegment(baseWeek string, numWeeks int) (Series[ProductsBySegment], error) {
	return weekly(e, "products_new", baseWeek, numWeeks, e.productsBySegment)
}
