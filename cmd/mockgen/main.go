package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"weekly-metrics/cmd/mockgen/engine"
	"weekly-metrics/internal/calendar"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos")
	week := flag.String("week", "", "Base week (YYYY-WW), defaults to the current week")
	weeks := flag.Int("weeks", 8, "Number of weeks to generate, plus the same weeks last year")
	orders := flag.Int("orders", 40, "Orders per day")
	seed := flag.Int64("seed", 1, "Random seed")
	snapshot := flag.Bool("snapshot", false, "Write snapshot databases instead of CSV/XLSX files")
	outDir := flag.String("out", "./data/raw", "Output directory for mock exports")
	flag.Parse()

	base := calendar.CurrentISOWeek(time.Now())
	if *week != "" {
		var err error
		if base, err = calendar.ParseStrict(*week); err != nil {
			fmt.Printf("Invalid week: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		BaseWeek:     base,
		Weeks:        *weeks,
		OrdersPerDay: *orders,
		Seed:         *seed,
	}

	fmt.Printf("Generating scenario '%s' (%d weeks ending %s, %d orders/day) to %s...\n", cfg.Scenario, cfg.Weeks, base, cfg.OrdersPerDay, *outDir)

	bundle := engine.Generate(cfg)
	if err := engine.Save(context.Background(), *outDir, bundle, *snapshot); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
