// Package stats computes attendance analytics over the activity
// store: volume and hours, participation frequency, cross-sector
// reach, demographics, occupancy and the bounded attendance matrix.
// All computations are read-only and scope-aware.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Grouping granularities for time series.
const (
	GroupDay     = "DAY"
	GroupMonth   = "MONTH"
	GroupQuarter = "QUARTER"
	GroupYear    = "YEAR"
)

// Filters is the canonical filter shared by every analyzer. DateFrom
// and DateTo are inclusive ISO bounds; empty means unbounded on that
// side. Preset and PeriodID are resolved into concrete bounds by
// Engine.ResolveFilters.
type Filters struct {
	Sector     string
	WorkshopID int64
	DateFrom   string
	DateTo     string
	Preset     string
	GroupBy    string
	PeriodID   int64
}

// FiltersFromParams builds Filters from a raw query-parameter map.
// Both the French and English key spellings are accepted. Malformed
// numeric ids and dates are treated as absent.
func FiltersFromParams(raw map[string]string) Filters {
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(raw[k]); v != "" {
				return v
			}
		}
		return ""
	}
	parseID := func(s string) int64 {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return 0
		}
		return n
	}
	return Filters{
		Sector:     pick("secteur", "sector"),
		WorkshopID: parseID(pick("atelier_id", "atelier", "workshop_id")),
		DateFrom:   pick("date_from"),
		DateTo:     pick("date_to"),
		Preset:     pick("preset"),
		GroupBy:    pick("group_by"),
		PeriodID:   parseID(pick("periode_id", "periode", "period_id")),
	}
}

// ResolveFilters returns a copy of f with concrete inclusive date
// bounds and a normalized GroupBy. When both explicit bounds are
// absent the saved period wins over the preset; with neither the
// range stays unbounded. The call is idempotent: resolved filters
// pass through unchanged.
func (e *Engine) ResolveFilters(
	ctx context.Context, f Filters,
) (Filters, error) {
	f.GroupBy = normalizeGroupBy(f.GroupBy)
	f.DateFrom = validDate(f.DateFrom)
	f.DateTo = validDate(f.DateTo)

	if f.DateFrom == "" && f.DateTo == "" {
		switch {
		case f.PeriodID != 0:
			p, err := e.store.PeriodByID(ctx, f.PeriodID)
			if err != nil {
				return f, fmt.Errorf("resolving period filter: %w", err)
			}
			if p != nil {
				f.DateFrom = validDate(p.StartDate)
				f.DateTo = validDate(p.EndDate)
			}
		case f.Preset != "":
			from, to := applyPreset(f.Preset, e.today())
			f.DateFrom = from.Format(dateLayout)
			f.DateTo = to.Format(dateLayout)
		}
	}
	return f, nil
}

func normalizeGroupBy(gb string) string {
	switch strings.ToUpper(strings.TrimSpace(gb)) {
	case GroupDay:
		return GroupDay
	case GroupQuarter:
		return GroupQuarter
	case GroupYear:
		return GroupYear
	default:
		return GroupMonth
	}
}

// validDate returns s when it is a well-formed ISO date, "" otherwise.
func validDate(s string) string {
	if s == "" {
		return ""
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return ""
	}
	return s
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// applyPreset resolves a named relative range to inclusive [from, to]
// bounds as of today. Unknown presets collapse to [today, today].
func applyPreset(preset string, today time.Time) (time.Time, time.Time) {
	switch strings.ToUpper(strings.TrimSpace(preset)) {
	case "TODAY":
		return today, today
	case "YESTERDAY":
		y := today.AddDate(0, 0, -1)
		return y, y
	case "THIS_MONTH", "MONTH_THIS":
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, monthEnd(start)
	case "PREV_MONTH", "MONTH_PREV", "LAST_MONTH":
		startThis := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		endPrev := startThis.AddDate(0, 0, -1)
		startPrev := time.Date(endPrev.Year(), endPrev.Month(), 1, 0, 0, 0, 0, time.UTC)
		return startPrev, endPrev
	case "THIS_YEAR", "YEAR_THIS":
		return time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(today.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	case "PREV_YEAR", "YEAR_PREV", "LAST_YEAR":
		y := today.Year() - 1
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC)
	case "THIS_QUARTER", "QUARTER_THIS":
		return quarterBounds(today.Year(), quarterOf(today))
	case "PREV_QUARTER", "QUARTER_PREV", "LAST_QUARTER":
		y, q := today.Year(), quarterOf(today)-1
		if q <= 0 {
			q = 4
			y--
		}
		return quarterBounds(y, q)
	}
	return today, today
}

func quarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

func quarterBounds(year, q int) (time.Time, time.Time) {
	startMonth := time.Month((q-1)*3 + 1)
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	endBase := time.Date(year, startMonth+2, 1, 0, 0, 0, 0, time.UTC)
	return start, monthEnd(endBase)
}

// monthEnd returns the last calendar day of t's month, handling
// variable month lengths and leap years.
func monthEnd(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

// groupKey buckets a date by the grouping granularity, returning a
// numeric sort key (chronological, independent of the label) and the
// display label.
func groupKey(d time.Time, groupBy string) ([3]int, string) {
	switch groupBy {
	case GroupDay:
		return [3]int{d.Year(), int(d.Month()), d.Day()},
			d.Format(dateLayout)
	case GroupYear:
		return [3]int{d.Year(), 0, 0}, strconv.Itoa(d.Year())
	case GroupQuarter:
		q := quarterOf(d)
		return [3]int{d.Year(), q, 0},
			fmt.Sprintf("%d-Q%d", d.Year(), q)
	default:
		return [3]int{d.Year(), int(d.Month()), 0},
			fmt.Sprintf("%d-%02d", d.Year(), d.Month())
	}
}
