package stats

import (
	"context"
	"sort"

	"impactstats/internal/store"
)

// DefaultCollectiveCapacity is the capacity assumed for a collective
// session when neither the session nor its workshop declares one.
const DefaultCollectiveCapacity = 12

// WorkshopOccupancy is one workshop's average fill rate.
type WorkshopOccupancy struct {
	WorkshopID     int64   `json:"workshop_id"`
	Sector         string  `json:"sector"`
	Name           string  `json:"name"`
	Sessions       int     `json:"sessions"`
	Presences      int     `json:"presences"`
	CapacityTotal  int     `json:"capacity_total"`
	AvgFillRatePct float64 `json:"avg_fill_rate_pct"`
}

// OccupancyStats describes how full collective sessions run.
// Individual appointments carry no meaningful capacity and are
// excluded entirely.
type OccupancyStats struct {
	CollectiveSessions  int                 `json:"collective_sessions"`
	CollectivePresences int                 `json:"collective_presences"`
	AvgFillRatePct      float64             `json:"avg_fill_rate_pct"`
	Buckets             map[string]int      `json:"buckets"`
	PerWorkshop         []WorkshopOccupancy `json:"per_workshop"`
	DefaultCapacity     int                 `json:"default_capacity"`
}

func emptyOccupancyStats() *OccupancyStats {
	return &OccupancyStats{
		Buckets: map[string]int{
			"<50%": 0, "50-79%": 0, "80-99%": 0, "100%+": 0,
		},
		PerWorkshop:     []WorkshopOccupancy{},
		DefaultCapacity: DefaultCollectiveCapacity,
	}
}

// effectiveCapacity resolves the capacity fallback chain: session
// value, then workshop default, then the fixed constant. Zero or
// negative declared values fall through as if absent.
func effectiveCapacity(sess *store.Session, w *store.Workshop) int {
	if sess.Capacity != nil && *sess.Capacity > 0 {
		return *sess.Capacity
	}
	if w.DefaultCapacity != nil && *w.DefaultCapacity > 0 {
		return *w.DefaultCapacity
	}
	return DefaultCollectiveCapacity
}

// ComputeOccupancy builds the fill-rate report for collective
// sessions in the window.
func (e *Engine) ComputeOccupancy(
	ctx context.Context, actor Actor, f Filters,
) (*OccupancyStats, error) {
	_, _, rows, presences, ok, err := e.scopedWindow(ctx, actor, f)
	if err != nil {
		return nil, err
	}
	out := emptyOccupancyStats()
	if !ok {
		return out, nil
	}

	presBySession := make(map[int64]int, len(rows))
	for _, p := range presences {
		presBySession[p.SessionID]++
	}

	type occAcc struct {
		WorkshopOccupancy
		rateSum float64
	}
	perWorkshop := make(map[int64]*occAcc)
	var order []int64
	rateSum := 0.0

	for i := range rows {
		sess, w := &rows[i].Session, &rows[i].Workshop
		if !sess.IsCollective() {
			continue
		}
		capacity := effectiveCapacity(sess, w)
		pres := presBySession[sess.ID]
		rate := float64(pres) / float64(capacity)

		out.CollectiveSessions++
		out.CollectivePresences += pres
		rateSum += rate

		switch pct := rate * 100; {
		case pct < 50:
			out.Buckets["<50%"]++
		case pct < 80:
			out.Buckets["50-79%"]++
		case pct < 100:
			out.Buckets["80-99%"]++
		default:
			out.Buckets["100%+"]++
		}

		acc := perWorkshop[w.ID]
		if acc == nil {
			acc = &occAcc{WorkshopOccupancy: WorkshopOccupancy{
				WorkshopID: w.ID,
				Sector:     w.Sector,
				Name:       w.Name,
			}}
			perWorkshop[w.ID] = acc
			order = append(order, w.ID)
		}
		acc.Sessions++
		acc.Presences += pres
		acc.CapacityTotal += capacity
		acc.rateSum += rate
	}

	if out.CollectiveSessions > 0 {
		out.AvgFillRatePct = round1(
			rateSum / float64(out.CollectiveSessions) * 100)
	}
	for _, id := range order {
		acc := perWorkshop[id]
		w := acc.WorkshopOccupancy
		w.AvgFillRatePct = round1(
			acc.rateSum / float64(acc.Sessions) * 100)
		out.PerWorkshop = append(out.PerWorkshop, w)
	}
	sort.SliceStable(out.PerWorkshop, func(i, j int) bool {
		a, b := out.PerWorkshop[i], out.PerWorkshop[j]
		if a.AvgFillRatePct != b.AvgFillRatePct {
			return a.AvgFillRatePct > b.AvgFillRatePct
		}
		if a.Sessions != b.Sessions {
			return a.Sessions > b.Sessions
		}
		return a.Name < b.Name
	})
	return out, nil
}
