package periods

import (
	"errors"
	"testing"

	"weekly-metrics/internal/calendar"
)

func TestForWeek(t *testing.T) {
	set, err := ForWeek("2025-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{
		Actual:   "2025-42",
		LastWeek: "2025-41",
		LastYear: "2024-42",
		Year2023: "2023-42",
	}
	got := set.Labels()
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: expected %s, got %s", k, v, got[k])
		}
	}
}

func TestForWeek_YearRollover(t *testing.T) {
	set, err := ForWeek("2026-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set[LastWeek].String() != "2025-52" {
		t.Errorf("expected last week 2025-52, got %s", set[LastWeek])
	}

	set, _ = ForWeek("2021-01")
	if set[LastWeek].String() != "2020-53" {
		t.Errorf("expected last week 2020-53, got %s", set[LastWeek])
	}

	set, _ = ForWeek("2026-53")
	if set[LastYear].String() != "2025-52" || set[Year2023].String() != "2023-52" {
		t.Errorf("expected week 53 comparisons clamped to 52, got %s / %s", set[LastYear], set[Year2023])
	}
}

func TestForWeek_Invalid(t *testing.T) {
	for _, s := range []string{"2025-53", "2025-W42", "", "1999-10"} {
		if _, err := ForWeek(s); !errors.Is(err, calendar.ErrInvalidPeriod) {
			t.Errorf("%q: expected ErrInvalidPeriod, got %v", s, err)
		}
	}
}

func TestYTDForWeek(t *testing.T) {
	ytd, err := YTDForWeek("2025-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tests := map[string][2]string{
		YTDActual:   {"2025-04-01", "2025-10-19"},
		YTDLastYear: {"2024-04-01", "2024-10-20"},
		YTD2023:     {"2023-04-01", "2023-10-22"},
	}
	for name, want := range tests {
		r, ok := ytd[name]
		if !ok {
			t.Fatalf("missing %s", name)
		}
		if r.Start.Format(calendar.DateLayout) != want[0] || r.End.Format(calendar.DateLayout) != want[1] {
			t.Errorf("%s: expected %s..%s, got %s..%s", name, want[0], want[1],
				r.Start.Format(calendar.DateLayout), r.End.Format(calendar.DateLayout))
		}
	}
}

func TestFilter(t *testing.T) {
	set, _ := ForWeek("2025-42")
	sub, err := Filter(set, []string{"actual", " last_year "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sub) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(sub))
	}
	if names := Ordered(sub); names[0] != Actual || names[1] != LastYear {
		t.Errorf("unexpected order %v", names)
	}

	if _, err := Filter(set, []string{"next_year"}); !errors.Is(err, calendar.ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod for unknown period, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	res, err := Resolve("2025-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DateRanges[Actual].Display != "Oct 13 - Oct 19" {
		t.Errorf("unexpected display %q", res.DateRanges[Actual].Display)
	}
	if len(res.YTDPeriods) != 3 {
		t.Errorf("expected 3 YTD windows, got %d", len(res.YTDPeriods))
	}
}
