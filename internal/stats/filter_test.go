package stats

import (
	"context"
	"testing"
	"time"

	"impactstats/internal/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestApplyPreset(t *testing.T) {
	tests := []struct {
		name     string
		preset   string
		today    time.Time
		from, to string
	}{
		{"today", "TODAY", date(2024, 6, 15),
			"2024-06-15", "2024-06-15"},
		{"yesterday across month start", "YESTERDAY", date(2024, 6, 1),
			"2024-05-31", "2024-05-31"},
		{"this month 31 days", "THIS_MONTH", date(2024, 1, 10),
			"2024-01-01", "2024-01-31"},
		{"this month 30 days", "THIS_MONTH", date(2024, 4, 10),
			"2024-04-01", "2024-04-30"},
		{"this month leap february", "THIS_MONTH", date(2024, 2, 10),
			"2024-02-01", "2024-02-29"},
		{"this month plain february", "THIS_MONTH", date(2023, 2, 10),
			"2023-02-01", "2023-02-28"},
		{"prev month across year start", "PREV_MONTH", date(2024, 1, 5),
			"2023-12-01", "2023-12-31"},
		{"prev month after 31-day month", "PREV_MONTH", date(2024, 4, 2),
			"2024-03-01", "2024-03-31"},
		{"month_prev alias", "MONTH_PREV", date(2024, 4, 2),
			"2024-03-01", "2024-03-31"},
		{"last_month alias", "LAST_MONTH", date(2024, 4, 2),
			"2024-03-01", "2024-03-31"},
		{"this year", "THIS_YEAR", date(2024, 6, 15),
			"2024-01-01", "2024-12-31"},
		{"prev year", "PREV_YEAR", date(2024, 6, 15),
			"2023-01-01", "2023-12-31"},
		{"this quarter", "THIS_QUARTER", date(2024, 5, 20),
			"2024-04-01", "2024-06-30"},
		{"prev quarter", "PREV_QUARTER", date(2024, 5, 20),
			"2024-01-01", "2024-03-31"},
		{"prev quarter year rollover", "PREV_QUARTER", date(2024, 2, 20),
			"2023-10-01", "2023-12-31"},
		{"lowercase with spaces", " this_month ", date(2024, 2, 10),
			"2024-02-01", "2024-02-29"},
		{"unknown preset collapses to today", "NEXT_DECADE", date(2024, 6, 15),
			"2024-06-15", "2024-06-15"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			from, to := applyPreset(tc.preset, tc.today)
			if got := from.Format(dateLayout); got != tc.from {
				t.Errorf("from = %s, want %s", got, tc.from)
			}
			if got := to.Format(dateLayout); got != tc.to {
				t.Errorf("to = %s, want %s", got, tc.to)
			}
		})
	}
}

func TestFiltersFromParams(t *testing.T) {
	t.Run("french keys", func(t *testing.T) {
		f := FiltersFromParams(map[string]string{
			"secteur":    "jeunesse",
			"atelier_id": "12",
			"date_from":  "2024-01-01",
			"date_to":    "2024-01-31",
			"periode_id": "3",
		})
		want := Filters{
			Sector: "jeunesse", WorkshopID: 12,
			DateFrom: "2024-01-01", DateTo: "2024-01-31",
			PeriodID: 3,
		}
		if f != want {
			t.Errorf("got %+v, want %+v", f, want)
		}
	})

	t.Run("english keys", func(t *testing.T) {
		f := FiltersFromParams(map[string]string{
			"sector":      "famille",
			"workshop_id": "7",
			"period_id":   "9",
		})
		if f.Sector != "famille" || f.WorkshopID != 7 || f.PeriodID != 9 {
			t.Errorf("got %+v", f)
		}
	})

	t.Run("malformed ids are dropped", func(t *testing.T) {
		f := FiltersFromParams(map[string]string{
			"atelier_id": "twelve",
			"periode_id": "-4",
		})
		if f.WorkshopID != 0 || f.PeriodID != 0 {
			t.Errorf("got %+v, want zero ids", f)
		}
	})
}

func TestResolveFilters(t *testing.T) {
	st := testStore(t)
	e := testEngine(t, st)
	ctx := context.Background()

	if err := st.UpsertPeriod(store.Period{
		ID: 1, Name: "FY",
		StartDate: "2024-01-01", EndDate: "2024-12-31",
	}); err != nil {
		t.Fatalf("UpsertPeriod: %v", err)
	}

	t.Run("group by defaults to month", func(t *testing.T) {
		f, err := e.ResolveFilters(ctx, Filters{GroupBy: "fortnight"})
		if err != nil {
			t.Fatalf("ResolveFilters: %v", err)
		}
		if f.GroupBy != GroupMonth {
			t.Errorf("GroupBy = %q, want MONTH", f.GroupBy)
		}
	})

	t.Run("malformed dates treated as absent", func(t *testing.T) {
		f, err := e.ResolveFilters(ctx, Filters{
			DateFrom: "01/02/2024", DateTo: "2024-13-40",
		})
		if err != nil {
			t.Fatalf("ResolveFilters: %v", err)
		}
		if f.DateFrom != "" || f.DateTo != "" {
			t.Errorf("got bounds %q..%q, want empty", f.DateFrom, f.DateTo)
		}
	})

	t.Run("period wins over preset", func(t *testing.T) {
		f, err := e.ResolveFilters(ctx, Filters{
			PeriodID: 1, Preset: "THIS_MONTH",
		})
		if err != nil {
			t.Fatalf("ResolveFilters: %v", err)
		}
		if f.DateFrom != "2024-01-01" || f.DateTo != "2024-12-31" {
			t.Errorf("got %q..%q, want the saved period bounds",
				f.DateFrom, f.DateTo)
		}
	})

	t.Run("unknown period leaves bounds open", func(t *testing.T) {
		f, err := e.ResolveFilters(ctx, Filters{PeriodID: 42})
		if err != nil {
			t.Fatalf("ResolveFilters: %v", err)
		}
		if f.DateFrom != "" || f.DateTo != "" {
			t.Errorf("got %q..%q, want unbounded", f.DateFrom, f.DateTo)
		}
	})

	t.Run("explicit bounds win over everything", func(t *testing.T) {
		f, err := e.ResolveFilters(ctx, Filters{
			DateFrom: "2024-03-01", PeriodID: 1, Preset: "THIS_MONTH",
		})
		if err != nil {
			t.Fatalf("ResolveFilters: %v", err)
		}
		if f.DateFrom != "2024-03-01" || f.DateTo != "" {
			t.Errorf("got %q..%q, want 2024-03-01..open", f.DateFrom, f.DateTo)
		}
	})

	t.Run("preset resolves against the clock", func(t *testing.T) {
		f, err := e.ResolveFilters(ctx, Filters{Preset: "THIS_MONTH"})
		if err != nil {
			t.Fatalf("ResolveFilters: %v", err)
		}
		if f.DateFrom != "2024-06-01" || f.DateTo != "2024-06-30" {
			t.Errorf("got %q..%q, want June 2024", f.DateFrom, f.DateTo)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		first, err := e.ResolveFilters(ctx, Filters{Preset: "PREV_MONTH"})
		if err != nil {
			t.Fatalf("ResolveFilters: %v", err)
		}
		second, err := e.ResolveFilters(ctx, first)
		if err != nil {
			t.Fatalf("ResolveFilters again: %v", err)
		}
		if first != second {
			t.Errorf("second pass changed filters: %+v -> %+v", first, second)
		}
	})
}

func TestGroupKey(t *testing.T) {
	d := date(2024, 8, 5)
	tests := []struct {
		groupBy string
		label   string
	}{
		{GroupDay, "2024-08-05"},
		{GroupMonth, "2024-08"},
		{GroupQuarter, "2024-Q3"},
		{GroupYear, "2024"},
	}
	for _, tc := range tests {
		if _, label := groupKey(d, tc.groupBy); label != tc.label {
			t.Errorf("groupKey(%s) label = %q, want %q",
				tc.groupBy, label, tc.label)
		}
	}
}
