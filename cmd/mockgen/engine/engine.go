package engine

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/source"
	"weekly-metrics/internal/table"

	"github.com/xuri/excelize/v2"
)

type GeneratorConfig struct {
	Scenario     string // "mild" or "chaos"
	BaseWeek     calendar.ISOWeek
	Weeks        int
	OrdersPerDay int
	Seed         int64
}

var (
	countries  = []string{"Sweden", "Germany", "United States", "United Kingdom", "Norway", "Denmark", "Finland", "Netherlands", "France", "Switzerland", "Austria", "Canada", "Australia", "Japan", "Poland", "Spain"}
	genders    = []string{"Men", "Women", "Unisex"}
	categories = []string{"Jackets", "Knitwear", "Trousers", "T-shirts", "Shoes", "Accessories"}
	colors     = []string{"Black", "Navy", "Off White", "Olive", "Grey"}
)

// Generate produces the four core exports for the weeks ending at BaseWeek
// and the matching weeks one year earlier.
func Generate(cfg GeneratorConfig) source.Bundle {
	if cfg.Weeks <= 0 {
		cfg.Weeks = 8
	}
	if cfg.OrdersPerDay <= 0 {
		cfg.OrdersPerDay = 40
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	weeks := calendar.WeeksBack(cfg.BaseWeek, cfg.Weeks)
	weeks = append(calendar.WeeksBack(calendar.LastYearWeek(cfg.BaseWeek), cfg.Weeks), weeks...)

	analytics := table.New(source.ColDate, source.ColChannel, source.ColCountry, source.ColSegment,
		source.ColEmail, source.ColOrderNo, source.ColGender, source.ColCategory, source.ColProduct,
		source.ColColor, source.ColSalesQty, source.ColGrossRevenue, source.ColNetRevenue, source.ColReturns)
	spend := table.New(source.ColDays, source.ColCountry, source.ColSpend)
	margin := table.New(source.ColDays, source.ColCountry, source.ColMarginSegment, source.ColGM2)
	sessions := table.New(source.ColDay, source.ColSessionCountry, source.ColSessions)

	order := 0
	returning := []string{}
	for _, w := range weeks {
		monday := calendar.Monday(w)
		for d := 0; d < 7; d++ {
			day := monday.AddDate(0, 0, d).Format(calendar.DateLayout)
			gm2 := map[string]map[string]float64{}

			for i := 0; i < cfg.OrdersPerDay; i++ {
				order++
				country := countries[int(math.Min(float64(len(countries)-1), rng.ExpFloat64()*3))]
				segment, email := "New", fmt.Sprintf("customer%d@example.com", order)
				if len(returning) > 0 && rng.Float64() < 0.45 {
					segment, email = "Returning", returning[rng.Intn(len(returning))]
				} else {
					returning = append(returning, email)
				}
				channel := "Online"
				if rng.Float64() < 0.15 {
					channel = "Retail"
				}

				qty := 1 + rng.Intn(3)
				gross := math.Round((80+rng.Float64()*320)*float64(qty)*100) / 100
				returns := 0.0
				if rng.Float64() < 0.2 {
					returns = math.Round(gross*rng.Float64()*100) / 100
				}
				if cfg.Scenario == "chaos" && rng.Float64() < 0.01 {
					gross, qty = gross*40, qty*600
				}

				analytics.Append(table.Row{
					source.ColDate:         table.Text(day),
					source.ColChannel:      table.Text(channel),
					source.ColCountry:      table.Text(country),
					source.ColSegment:      table.Text(segment),
					source.ColEmail:        table.Text(email),
					source.ColOrderNo:      table.Text(strconv.Itoa(100000 + order)),
					source.ColGender:       table.Text(genders[rng.Intn(len(genders))]),
					source.ColCategory:     table.Text(categories[rng.Intn(len(categories))]),
					source.ColProduct:      table.Text(fmt.Sprintf("Style %03d", rng.Intn(60))),
					source.ColColor:        table.Text(colors[rng.Intn(len(colors))]),
					source.ColSalesQty:     table.Number(float64(qty)),
					source.ColGrossRevenue: table.Number(gross),
					source.ColNetRevenue:   table.Number(gross - returns),
					source.ColReturns:      table.Number(returns),
				})

				if gm2[country] == nil {
					gm2[country] = map[string]float64{}
				}
				gm2[country][segment] += (gross - returns) * (0.25 + rng.Float64()*0.2)
			}

			for _, country := range countries {
				cost := 100 + rng.Float64()*900
				if cfg.Scenario == "chaos" && rng.Float64() < 0.02 {
					cost = -cost
				}
				spend.Append(table.Row{
					source.ColDays:    table.Text(day),
					source.ColCountry: table.Text(country),
					source.ColSpend:   table.Number(math.Round(cost*100) / 100),
				})
				sessions.Append(table.Row{
					source.ColDay:            table.Text(day),
					source.ColSessionCountry: table.Text(country),
					source.ColSessions:       table.Number(float64(200 + rng.Intn(4000))),
				})
				for _, segment := range []string{"New", "Returning"} {
					margin.Append(table.Row{
						source.ColDays:          table.Text(day),
						source.ColCountry:       table.Text(country),
						source.ColMarginSegment: table.Text(segment),
						source.ColGM2:           table.Number(math.Round(gm2[country][segment]*100) / 100),
					})
				}
			}
		}
	}

	return source.Bundle{
		source.Analytics:         analytics,
		source.MarketingSpend:    spend,
		source.Margin:            margin,
		source.EcommerceSessions: sessions,
	}
}

// Save writes one directory per kind under outDir. Analytics goes to a
// workbook and the rest to semicolon-separated CSV, unless snapshot is set,
// in which case every kind is materialized as a snapshot database.
func Save(ctx context.Context, outDir string, b source.Bundle, snapshot bool) error {
	for kind, t := range b {
		dir := filepath.Join(outDir, string(kind))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}

		var err error
		switch {
		case snapshot:
			err = source.WriteSnapshot(ctx, filepath.Join(dir, string(kind)+source.SnapshotSuffix), t)
		case kind == source.Analytics:
			spec, _ := source.SpecFor(kind)
			err = writeWorkbook(filepath.Join(dir, "analytics.xlsx"), t, append(slices.Clone(spec.Numeric), source.ColSalesQty))
		default:
			err = writeCSV(filepath.Join(dir, string(kind)+".csv"), t)
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", kind, err)
		}
	}
	return nil
}

func writeCSV(path string, t *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, col := range t.Columns {
			record[i] = r[col].String()
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeWorkbook(path string, t *table.Table, numeric []string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := make([]any, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for n, r := range t.Rows {
		cells := make([]any, len(t.Columns))
		for i, col := range t.Columns {
			if v, ok := r[col].Float(); ok && slices.Contains(numeric, col) {
				cells[i] = v
			} else {
				cells[i] = r[col].String()
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, n+2)
		if err := sw.SetRow(cell, cells); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}
