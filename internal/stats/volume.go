package stats

import (
	"context"
	"sort"
	"time"

	"impactstats/internal/store"
)

// VolumeKPI is the headline block of the volume report.
type VolumeKPI struct {
	Sessions         int     `json:"sessions"`
	Presences        int     `json:"presences"`
	Uniques          int     `json:"uniques"`
	NewParticipants  int     `json:"new_participants"`
	AnimatorHours    float64 `json:"animator_hours"`
	ParticipantHours float64 `json:"participant_hours"`
	AvgPerSession    float64 `json:"avg_per_session"`
	ActivityDays     *int    `json:"activity_duration_days"`
}

// WorkshopRollup aggregates one workshop's sessions within the
// window. Planned figures cover every session; "real" figures only
// the non-cancelled ones.
type WorkshopRollup struct {
	WorkshopID        int64   `json:"workshop_id"`
	Sector            string  `json:"sector"`
	Name              string  `json:"name"`
	Kind              string  `json:"kind"`
	Sessions          int     `json:"sessions"`
	Presences         int     `json:"presences"`
	Uniques           int     `json:"uniques"`
	AnimatorHours     float64 `json:"animator_hours"`
	ParticipantHours  float64 `json:"participant_hours"`
	IsNewVsPrevious   bool    `json:"is_new_vs_previous"`
	SessionsPlanned   int     `json:"sessions_planned"`
	SessionsReal      int     `json:"sessions_real"`
	PlannedCapacity   int     `json:"planned_capacity"`
	RealCapacity      int     `json:"real_capacity"`
	PlannedHours      float64 `json:"planned_hours"`
	RealHours         float64 `json:"real_hours"`
	OccupancyRate     float64 `json:"occupancy_rate"`
	AvgPerRealSession float64 `json:"avg_per_real_session"`
	ActivityDays      *int    `json:"activity_duration_days"`
}

// TimePoint is one bucket of the grouped time series.
type TimePoint struct {
	Label     string `json:"label"`
	Sessions  int    `json:"sessions"`
	Presences int    `json:"presences"`
	Uniques   int    `json:"uniques"`
}

// Heatmap counts sessions per weekday and two-hour start bucket.
// Counts is indexed [day][bucket], matching Days and Buckets.
type Heatmap struct {
	Days    []string `json:"days"`
	Buckets []string `json:"buckets"`
	Counts  [][]int  `json:"counts"`
}

// SectorSummary re-aggregates workshop rollups by sector.
type SectorSummary struct {
	Sector           string  `json:"sector"`
	Sessions         int     `json:"sessions"`
	Presences        int     `json:"presences"`
	Uniques          int     `json:"uniques"`
	AnimatorHours    float64 `json:"animator_hours"`
	ParticipantHours float64 `json:"participant_hours"`
}

// VolumeStats is the full volume and activity report.
type VolumeStats struct {
	KPI               VolumeKPI                 `json:"kpi"`
	TimeSeries        []TimePoint               `json:"time_series"`
	Heatmap           Heatmap                   `json:"heatmap"`
	Workshops         []WorkshopRollup          `json:"workshops"`
	TopWorkshops      []WorkshopRollup          `json:"top_workshops"`
	Sectors           []SectorSummary           `json:"sectors"`
	HasPreviousPeriod bool                      `json:"has_previous_period"`
	BySector          map[string][]WorkshopRollup `json:"by_sector"`
}

const unknownSectorLabel = "Unknown"

var (
	heatmapDays    = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	heatmapBuckets = []string{"08-10", "10-12", "12-14", "14-16", "16-18", "18-20"}
)

// emptyHeatmap copies the axis labels so callers can mutate a
// returned Heatmap without corrupting later ones.
func emptyHeatmap() Heatmap {
	counts := make([][]int, len(heatmapDays))
	for i := range counts {
		counts[i] = make([]int, len(heatmapBuckets))
	}
	return Heatmap{
		Days:    append([]string(nil), heatmapDays...),
		Buckets: append([]string(nil), heatmapBuckets...),
		Counts:  counts,
	}
}

func emptyVolumeStats() *VolumeStats {
	return &VolumeStats{
		TimeSeries:   []TimePoint{},
		Heatmap:      emptyHeatmap(),
		Workshops:    []WorkshopRollup{},
		TopWorkshops: []WorkshopRollup{},
		Sectors:      []SectorSummary{},
		BySector:     map[string][]WorkshopRollup{},
	}
}

// ComputeVolume builds the volume and activity report for the
// actor's visible window.
func (e *Engine) ComputeVolume(
	ctx context.Context, actor Actor, f Filters,
) (*VolumeStats, error) {
	f, scope, rows, presences, ok, err := e.scopedWindow(ctx, actor, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		return emptyVolumeStats(), nil
	}

	out := emptyVolumeStats()
	out.KPI.Sessions = len(rows)
	out.KPI.Presences = len(presences)
	out.KPI.Uniques = len(uniqueParticipantIDs(presences))

	// Workshops active in the equal-length window immediately before
	// this one, for the "new workshop" flag. Needs both bounds.
	var previousWorkshops map[int64]bool
	if f.DateFrom != "" && f.DateTo != "" && f.DateTo >= f.DateFrom {
		previousWorkshops, err = e.previousWindowWorkshops(ctx, f, scope)
		if err != nil {
			return nil, err
		}
		out.HasPreviousPeriod = true
	}

	if f.DateFrom != "" || f.DateTo != "" {
		n, err := e.store.CountFirstSeenInRange(ctx, f.DateFrom, f.DateTo)
		if err != nil {
			return nil, err
		}
		out.KPI.NewParticipants = n
	}

	presBySession := make(map[int64]int, len(rows))
	for _, p := range presences {
		presBySession[p.SessionID]++
	}

	type rollupAcc struct {
		WorkshopRollup
		uniques map[int64]bool
		dates   []string
	}
	perWorkshop := make(map[int64]*rollupAcc)
	var workshopOrder []int64

	animatorHours := 0.0
	participantHours := 0.0

	for i := range rows {
		sess, w := &rows[i].Session, &rows[i].Workshop
		acc := perWorkshop[w.ID]
		if acc == nil {
			acc = &rollupAcc{
				WorkshopRollup: WorkshopRollup{
					WorkshopID: w.ID,
					Sector:     w.Sector,
					Name:       w.Name,
					Kind:       w.Kind,
				},
				uniques: make(map[int64]bool),
			}
			perWorkshop[w.ID] = acc
			workshopOrder = append(workshopOrder, w.ID)
		}

		acc.Sessions++
		acc.SessionsPlanned++
		isReal := sess.IsReal()
		if isReal {
			acc.SessionsReal++
		}
		if d := sess.EffectiveDate(); d != "" {
			acc.dates = append(acc.dates, d)
		}

		mins := sessionDurationMinutes(sess, w)
		if mins <= 0 {
			continue
		}
		h := float64(mins) / 60.0
		animatorHours += h
		acc.AnimatorHours += h
		acc.PlannedHours += h
		if isReal {
			acc.RealHours += h
		}

		headcount := presBySession[sess.ID]
		if sess.IsCollective() {
			participantHours += h * float64(headcount)
			acc.ParticipantHours += h * float64(headcount)
		} else if headcount > 0 {
			participantHours += h
			acc.ParticipantHours += h
		}

		capacity := 0
		if sess.Capacity != nil {
			capacity = *sess.Capacity
		} else if w.DefaultCapacity != nil {
			capacity = *w.DefaultCapacity
		}
		acc.PlannedCapacity += capacity
		if isReal {
			acc.RealCapacity += capacity
		}
	}

	// Per-workshop presences and uniques.
	sessionWorkshop := make(map[int64]int64, len(rows))
	for i := range rows {
		sessionWorkshop[rows[i].Session.ID] = rows[i].Workshop.ID
	}
	for _, p := range presences {
		acc := perWorkshop[sessionWorkshop[p.SessionID]]
		if acc == nil {
			continue
		}
		acc.Presences++
		acc.uniques[p.ParticipantID] = true
	}

	out.KPI.AnimatorHours = round2(animatorHours)
	out.KPI.ParticipantHours = round2(participantHours)
	if out.KPI.Sessions > 0 {
		out.KPI.AvgPerSession = round2(
			float64(out.KPI.Presences) / float64(out.KPI.Sessions))
	}
	out.KPI.ActivityDays = activitySpanDays(allSessionDates(rows))

	for _, id := range workshopOrder {
		acc := perWorkshop[id]
		r := acc.WorkshopRollup
		r.Uniques = len(acc.uniques)
		r.AnimatorHours = round2(r.AnimatorHours)
		r.ParticipantHours = round2(r.ParticipantHours)
		r.PlannedHours = round2(r.PlannedHours)
		r.RealHours = round2(r.RealHours)
		if r.RealCapacity > 0 {
			r.OccupancyRate = round1(
				float64(r.Presences) / float64(r.RealCapacity) * 100)
		}
		if r.SessionsReal > 0 {
			r.AvgPerRealSession = round2(
				float64(r.Presences) / float64(r.SessionsReal))
		}
		r.ActivityDays = activitySpanDays(acc.dates)
		r.IsNewVsPrevious = previousWorkshops != nil && !previousWorkshops[id]
		out.Workshops = append(out.Workshops, r)
	}
	sort.SliceStable(out.Workshops, func(i, j int) bool {
		a, b := out.Workshops[i], out.Workshops[j]
		if a.Presences != b.Presences {
			return a.Presences > b.Presences
		}
		return a.Sessions > b.Sessions
	})
	out.TopWorkshops = out.Workshops[:min(3, len(out.Workshops))]

	out.TimeSeries = buildTimeSeries(rows, presences, f.GroupBy)
	out.Heatmap = buildHeatmap(rows)

	out.Sectors, out.BySector = summarizeSectors(out.Workshops)
	return out, nil
}

// previousWindowWorkshops returns the workshop ids active in the
// same-length window ending the day before the current one starts.
func (e *Engine) previousWindowWorkshops(
	ctx context.Context, f Filters, scope Scope,
) (map[int64]bool, error) {
	from, okFrom := parseDate(f.DateFrom)
	to, okTo := parseDate(f.DateTo)
	if !okFrom || !okTo {
		return nil, nil
	}
	spanDays := int(to.Sub(from).Hours()/24) + 1
	prevEnd := from.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -(spanDays - 1))

	sf := storeFilter(f, scope)
	sf.From = prevStart.Format(dateLayout)
	sf.To = prevEnd.Format(dateLayout)
	rows, err := e.store.SessionsWithWorkshops(ctx, sf)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(rows))
	for i := range rows {
		ids[rows[i].Workshop.ID] = true
	}
	return ids, nil
}

func allSessionDates(rows []store.SessionRow) []string {
	var dates []string
	for i := range rows {
		if d := rows[i].Session.EffectiveDate(); d != "" {
			dates = append(dates, d)
		}
	}
	return dates
}

// activitySpanDays returns the day span between the earliest and
// latest date, nil when no date is known.
func activitySpanDays(dates []string) *int {
	var minT, maxT time.Time
	found := false
	for _, d := range dates {
		t, ok := parseDate(d)
		if !ok {
			continue
		}
		if !found {
			minT, maxT = t, t
			found = true
			continue
		}
		if t.Before(minT) {
			minT = t
		}
		if t.After(maxT) {
			maxT = t
		}
	}
	if !found {
		return nil
	}
	days := int(maxT.Sub(minT).Hours() / 24)
	return &days
}

func buildTimeSeries(
	rows []store.SessionRow, presences []store.Presence, groupBy string,
) []TimePoint {
	type bucket struct {
		point   TimePoint
		sortKey [3]int
		uniques map[int64]bool
	}
	buckets := make(map[string]*bucket)
	get := func(d time.Time) *bucket {
		key, label := groupKey(d, groupBy)
		b := buckets[label]
		if b == nil {
			b = &bucket{
				point:   TimePoint{Label: label},
				sortKey: key,
				uniques: make(map[int64]bool),
			}
			buckets[label] = b
		}
		return b
	}

	sessionDates := make(map[int64]time.Time, len(rows))
	for i := range rows {
		d, ok := parseDate(rows[i].Session.EffectiveDate())
		if !ok {
			continue
		}
		sessionDates[rows[i].Session.ID] = d
		get(d).point.Sessions++
	}
	for _, p := range presences {
		d, ok := sessionDates[p.SessionID]
		if !ok {
			continue
		}
		b := get(d)
		b.point.Presences++
		b.uniques[p.ParticipantID] = true
	}

	out := make([]TimePoint, 0, len(buckets))
	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].sortKey, ordered[j].sortKey
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	for _, b := range ordered {
		b.point.Uniques = len(b.uniques)
		out = append(out, b.point)
	}
	return out
}

// buildHeatmap assigns each session to a Monday-first weekday row
// and a two-hour start bucket between 08:00 and 20:00. Sessions with
// no parsable date or a start outside the buckets are not counted.
func buildHeatmap(rows []store.SessionRow) Heatmap {
	heat := emptyHeatmap()
	for i := range rows {
		sess := &rows[i].Session
		d, ok := parseDate(sess.EffectiveDate())
		if !ok {
			continue
		}
		day := (int(d.Weekday()) + 6) % 7 // Monday first
		mins, ok := ParseTimeOfDay(sess.EffectiveStart())
		if !ok {
			continue
		}
		if mins < 8*60 || mins >= 20*60 {
			continue
		}
		heat.Counts[day][(mins-8*60)/120]++
	}
	return heat
}

func summarizeSectors(
	workshops []WorkshopRollup,
) ([]SectorSummary, map[string][]WorkshopRollup) {
	agg := make(map[string]*SectorSummary)
	bySector := make(map[string][]WorkshopRollup)
	var order []string
	for _, r := range workshops {
		sector := r.Sector
		if sector == "" {
			sector = unknownSectorLabel
		}
		s := agg[sector]
		if s == nil {
			s = &SectorSummary{Sector: sector}
			agg[sector] = s
			order = append(order, sector)
		}
		s.Sessions += r.Sessions
		s.Presences += r.Presences
		s.Uniques += r.Uniques
		s.AnimatorHours += r.AnimatorHours
		s.ParticipantHours += r.ParticipantHours
		bySector[sector] = append(bySector[sector], r)
	}
	out := make([]SectorSummary, 0, len(order))
	for _, sector := range order {
		s := *agg[sector]
		s.AnimatorHours = round2(s.AnimatorHours)
		s.ParticipantHours = round2(s.ParticipantHours)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Presences != out[j].Presences {
			return out[i].Presences > out[j].Presences
		}
		return out[i].Sessions > out[j].Sessions
	})
	return out, bySector
}
