package stats

import (
	"context"
	"math"
	"time"

	"impactstats/internal/store"
)

// DefaultHomeCity is the city used for the home-city demographic
// split when the engine is not configured otherwise.
const DefaultHomeCity = "Creil"

// Engine computes statistics over a store. It is safe for concurrent
// use; every computation reads fresh committed data.
type Engine struct {
	store    *store.Store
	homeCity string
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithHomeCity sets the city used for the home-city split.
func WithHomeCity(city string) Option {
	return func(e *Engine) {
		if city != "" {
			e.homeCity = city
		}
	}
}

// WithClock overrides the engine's notion of now, for preset
// resolution and age derivation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine reading from st.
func NewEngine(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		homeCity: DefaultHomeCity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) today() time.Time {
	t := e.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// storeFilter maps resolved filters plus a scope onto the accessor's
// filter. Callers must have checked scope.Restricted already.
func storeFilter(f Filters, scope Scope) store.Filter {
	return store.Filter{
		Sector:     scope.Sector,
		WorkshopID: f.WorkshopID,
		From:       f.DateFrom,
		To:         f.DateTo,
	}
}

// scopedWindow resolves filters and scope, then loads the matching
// (session, workshop) rows and their presences. Restricted scopes
// return ok == false with no query issued; every analyzer goes
// through here so scoping stays in one place.
func (e *Engine) scopedWindow(
	ctx context.Context, actor Actor, f Filters,
) (Filters, Scope, []store.SessionRow, []store.Presence, bool, error) {
	f, err := e.ResolveFilters(ctx, f)
	if err != nil {
		return f, Scope{}, nil, nil, false, err
	}
	scope := ResolveScope(actor, f.Sector)
	if scope.Restricted {
		return f, scope, nil, nil, false, nil
	}

	rows, err := e.store.SessionsWithWorkshops(ctx, storeFilter(f, scope))
	if err != nil {
		return f, scope, nil, nil, false, err
	}
	ids := sessionIDs(rows)
	var presences []store.Presence
	if len(ids) > 0 {
		presences, err = e.store.PresencesForSessions(ctx, ids)
		if err != nil {
			return f, scope, nil, nil, false, err
		}
	}
	return f, scope, rows, presences, true, nil
}

// Window exposes the raw scoped (session, workshop) rows and
// presences of a filtered window, for exporters that flatten
// attendance themselves. ok is false for restricted actors.
func (e *Engine) Window(
	ctx context.Context, actor Actor, f Filters,
) (rows []store.SessionRow, presences []store.Presence, ok bool, err error) {
	_, _, rows, presences, ok, err = e.scopedWindow(ctx, actor, f)
	return rows, presences, ok, err
}

func sessionIDs(rows []store.SessionRow) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Session.ID)
	}
	return ids
}

func uniqueParticipantIDs(presences []store.Presence) []int64 {
	seen := make(map[int64]bool, len(presences))
	var ids []int64
	for _, p := range presences {
		if !seen[p.ParticipantID] {
			seen[p.ParticipantID] = true
			ids = append(ids, p.ParticipantID)
		}
	}
	return ids
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
