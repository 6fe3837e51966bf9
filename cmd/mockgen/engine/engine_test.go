package engine

import (
	"context"
	"testing"

	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/metrics"
	"weekly-metrics/internal/source"
)

func TestGenerate_Deterministic(t *testing.T) {
	cfg := GeneratorConfig{BaseWeek: calendar.ISOWeek{Year: 2025, Week: 42}, Weeks: 2, OrdersPerDay: 5, Seed: 7}
	a, b := Generate(cfg), Generate(cfg)

	if got := a.Table(source.Analytics).Len(); got != 4*7*5 {
		t.Errorf("expected 140 orders over two weeks and last year, got %d", got)
	}
	if a.Table(source.Analytics).Sum(source.ColGrossRevenue) != b.Table(source.Analytics).Sum(source.ColGrossRevenue) {
		t.Error("expected the same seed to produce the same data")
	}
	if got := a.Table(source.Margin).Len(); got != 4*7*len(countries)*2 {
		t.Errorf("unexpected margin rows %d", got)
	}
}

func TestSave_LoadsBack(t *testing.T) {
	for _, snapshot := range []bool{false, true} {
		dir := t.TempDir()
		cfg := GeneratorConfig{BaseWeek: calendar.ISOWeek{Year: 2025, Week: 42}, Weeks: 1, OrdersPerDay: 3, Seed: 1}
		generated := Generate(cfg)
		if err := Save(context.Background(), dir, generated, snapshot); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := source.NewLoader(dir, true).LoadAll(context.Background())
		if err != nil {
			t.Fatalf("snapshot=%v: LoadAll failed: %v", snapshot, err)
		}
		for _, k := range source.CoreKinds {
			if loaded.Table(k).Len() != generated.Table(k).Len() {
				t.Errorf("snapshot=%v: %s has %d rows, generated %d", snapshot, k, loaded.Table(k).Len(), generated.Table(k).Len())
			}
		}

		e := metrics.NewEngine(loaded, metrics.Options{})
		kpis, err := e.OnlineKPIs("2025-42", 1)
		if err != nil {
			t.Fatalf("OnlineKPIs failed: %v", err)
		}
		if kpis.Weeks[0].Value.GrossRevenue <= 0 {
			t.Errorf("snapshot=%v: expected online revenue, got %+v", snapshot, kpis.Weeks[0])
		}
	}
}
