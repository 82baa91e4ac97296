package stats

import (
	"context"
	"strings"

	"impactstats/internal/store"
)

// Matrix views, from cheapest to heaviest.
const (
	ViewMacro        = "macro"
	ViewParticipants = "participants"
	ViewMatrix       = "matrix"
)

// Matrix axis caps. Requested values are clamped into these bounds
// regardless of what the caller asks for, keeping the structure
// bounded with any data volume.
const (
	defaultMaxSessions     = 40
	minMaxSessions         = 5
	maxMaxSessions         = 200
	defaultMaxParticipants = 250
	minMaxParticipants     = 20
	maxMaxParticipants     = 1000
)

// MatrixOptions selects the view and axis sizes of the attendance
// matrix. Zero values mean defaults.
type MatrixOptions struct {
	View             string
	ParticipantQuery string
	MaxSessions      int
	MaxParticipants  int
}

// MatrixKPIs are the funder-style headline numbers of the macro
// block. List is only filled for the participants and matrix views,
// over the capped list; nil means not computed, so a genuine zero
// rate stays distinguishable in JSON.
type MatrixKPIs struct {
	TotalSessions          int     `json:"total_sessions"`
	TotalPresences         int     `json:"total_presences"`
	TotalUniques           int     `json:"total_uniques"`
	AvgPresencesPerSession float64 `json:"avg_presences_per_session"`

	List *MatrixListKPIs `json:"list,omitempty"`
}

// MatrixListKPIs are the figures derived from the capped participant
// list. Rates are fractions of the list size.
type MatrixListKPIs struct {
	AvgSessionsPerParticipant float64 `json:"avg_sessions_per_participant"`
	ReturningParticipants     int     `json:"returning_participants"`
	ReturningRate             float64 `json:"returning_rate"`
	Loyalty3Plus              int     `json:"loyalty_3plus"`
	Loyalty3PlusRate          float64 `json:"loyalty_3plus_rate"`
	NewParticipants           int     `json:"new_participants"`
}

// MatrixMacro is the aggregate block shared by all views.
type MatrixMacro struct {
	KPIs       MatrixKPIs                `json:"kpis"`
	BySector   []store.SectorAggregate   `json:"by_sector"`
	ByWorkshop []store.WorkshopAggregate `json:"by_workshop"`
}

// MatrixSession is one column of the matrix. Presences is the
// session's full headcount, not just the rows kept on the capped
// participant axis.
type MatrixSession struct {
	ID         int64  `json:"id"`
	WorkshopID int64  `json:"workshop_id"`
	Workshop   string `json:"workshop"`
	Sector     string `json:"sector"`
	Date       string `json:"date"`
	Label      string `json:"label"`
	Presences  int    `json:"presences"`
}

// MatrixParticipant is one row of the matrix, annotated with visit
// stats over the whole perimeter, not only the capped columns.
type MatrixParticipant struct {
	ID           int64   `json:"id"`
	LastName     string  `json:"last_name"`
	FirstName    string  `json:"first_name"`
	City         *string `json:"city"`
	Neighborhood *string `json:"neighborhood"`
	Presences    int     `json:"presences"`
	FirstDate    string  `json:"first_date,omitempty"`
	LastDate     string  `json:"last_date,omitempty"`
}

// MatrixLimits echoes the caps actually applied.
type MatrixLimits struct {
	MaxSessions     int `json:"max_sessions"`
	MaxParticipants int `json:"max_participants"`
}

// MatrixResult is the bounded attendance cross-tabulation.
// Restricted distinguishes "not authorized" from "no data". Cells
// maps a participant id to the ids of the column sessions they
// attended; it is only filled for the matrix view.
type MatrixResult struct {
	Restricted   bool                `json:"restricted"`
	View         string              `json:"view"`
	Macro        *MatrixMacro        `json:"macro,omitempty"`
	Participants []MatrixParticipant `json:"participants,omitempty"`
	Sessions     []MatrixSession     `json:"sessions,omitempty"`
	Cells        map[int64][]int64   `json:"cells,omitempty"`
	Limits       *MatrixLimits       `json:"limits,omitempty"`
}

func clamp(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalizeView(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case ViewParticipants:
		return ViewParticipants
	case ViewMatrix:
		return ViewMatrix
	default:
		return ViewMacro
	}
}

// ComputeMatrix builds the attendance cross-tabulation for the
// actor's visible window.
func (e *Engine) ComputeMatrix(
	ctx context.Context, actor Actor, f Filters, opts MatrixOptions,
) (*MatrixResult, error) {
	view := normalizeView(opts.View)
	maxSessions := clamp(opts.MaxSessions,
		defaultMaxSessions, minMaxSessions, maxMaxSessions)
	maxParticipants := clamp(opts.MaxParticipants,
		defaultMaxParticipants, minMaxParticipants, maxMaxParticipants)

	f, err := e.ResolveFilters(ctx, f)
	if err != nil {
		return nil, err
	}
	scope := ResolveScope(actor, f.Sector)
	if scope.Restricted {
		return &MatrixResult{Restricted: true, View: view}, nil
	}
	sf := storeFilter(f, scope)

	macro, err := e.buildMatrixMacro(ctx, sf)
	if err != nil {
		return nil, err
	}
	out := &MatrixResult{View: view, Macro: macro}
	if view == ViewMacro {
		return out, nil
	}
	out.Limits = &MatrixLimits{
		MaxSessions:     maxSessions,
		MaxParticipants: maxParticipants,
	}

	sessionRows, err := e.store.MatrixSessions(ctx, sf, maxSessions)
	if err != nil {
		return nil, err
	}
	sessionIDs := make([]int64, 0, len(sessionRows))
	for i := range sessionRows {
		sessionIDs = append(sessionIDs, sessionRows[i].Session.ID)
	}
	headcounts, err := e.store.PresenceCountsBySession(ctx, sessionIDs)
	if err != nil {
		return nil, err
	}
	out.Sessions = make([]MatrixSession, 0, len(sessionRows))
	for i := range sessionRows {
		sess, w := &sessionRows[i].Session, &sessionRows[i].Workshop
		ms := MatrixSession{
			ID:         sess.ID,
			WorkshopID: w.ID,
			Workshop:   w.Name,
			Sector:     w.Sector,
			Date:       sess.EffectiveDate(),
			Label:      "No date",
			Presences:  headcounts[sess.ID],
		}
		if d, ok := parseDate(ms.Date); ok {
			ms.Label = d.Format("02/01/2006")
		}
		out.Sessions = append(out.Sessions, ms)
	}

	participants, err := e.store.MatrixParticipants(
		ctx, sf, opts.ParticipantQuery, maxParticipants)
	if err != nil {
		return nil, err
	}
	neighborhoods, err := e.loadNeighborhoods(ctx, participants)
	if err != nil {
		return nil, err
	}
	participantIDs := make([]int64, 0, len(participants))
	for i := range participants {
		participantIDs = append(participantIDs, participants[i].ID)
	}
	visits, err := e.store.VisitStatsByParticipant(ctx, sf, participantIDs)
	if err != nil {
		return nil, err
	}

	out.Participants = make([]MatrixParticipant, 0, len(participants))
	for i := range participants {
		p := &participants[i]
		mp := MatrixParticipant{
			ID:        p.ID,
			LastName:  p.LastName,
			FirstName: p.FirstName,
			City:      p.City,
		}
		if p.NeighborhoodID != nil {
			if n, ok := neighborhoods[*p.NeighborhoodID]; ok {
				mp.Neighborhood = &n.Name
			}
		}
		vs := visits[p.ID]
		mp.Presences = vs.Presences
		mp.FirstDate = vs.FirstDate
		mp.LastDate = vs.LastDate
		out.Participants = append(out.Participants, mp)
	}

	addParticipantKPIs(&macro.KPIs, out.Participants, f)

	if view == ViewParticipants {
		return out, nil
	}

	pairs, err := e.store.PresencePairs(ctx, sessionIDs, participantIDs)
	if err != nil {
		return nil, err
	}
	out.Cells = make(map[int64][]int64, len(out.Participants))
	for _, pair := range pairs {
		out.Cells[pair.ParticipantID] = append(
			out.Cells[pair.ParticipantID], pair.SessionID)
	}
	return out, nil
}

func (e *Engine) buildMatrixMacro(
	ctx context.Context, sf store.Filter,
) (*MatrixMacro, error) {
	bySector, err := e.store.SectorAggregates(ctx, sf)
	if err != nil {
		return nil, err
	}
	byWorkshop, err := e.store.WorkshopAggregates(ctx, sf)
	if err != nil {
		return nil, err
	}
	uniques, err := e.store.DistinctParticipants(ctx, sf)
	if err != nil {
		return nil, err
	}
	macro := &MatrixMacro{
		BySector:   bySector,
		ByWorkshop: byWorkshop,
	}
	if macro.BySector == nil {
		macro.BySector = []store.SectorAggregate{}
	}
	if macro.ByWorkshop == nil {
		macro.ByWorkshop = []store.WorkshopAggregate{}
	}
	for _, w := range byWorkshop {
		macro.KPIs.TotalSessions += w.Sessions
		macro.KPIs.TotalPresences += w.Presences
	}
	macro.KPIs.TotalUniques = uniques
	if macro.KPIs.TotalSessions > 0 {
		macro.KPIs.AvgPresencesPerSession =
			float64(macro.KPIs.TotalPresences) /
				float64(macro.KPIs.TotalSessions)
	}
	return macro, nil
}

// addParticipantKPIs derives the list-level figures over the capped
// participant list. "New" means first visit inside the window and
// needs both bounds.
func addParticipantKPIs(
	kpis *MatrixKPIs, participants []MatrixParticipant, f Filters,
) {
	if len(participants) == 0 {
		return
	}
	list := &MatrixListKPIs{}
	n := len(participants)
	sum := 0
	for _, p := range participants {
		sum += p.Presences
		if p.Presences >= 2 {
			list.ReturningParticipants++
		}
		if p.Presences >= 3 {
			list.Loyalty3Plus++
		}
		if f.DateFrom != "" && f.DateTo != "" &&
			p.FirstDate != "" &&
			p.FirstDate >= f.DateFrom && p.FirstDate <= f.DateTo {
			list.NewParticipants++
		}
	}
	list.AvgSessionsPerParticipant = float64(sum) / float64(n)
	list.ReturningRate = float64(list.ReturningParticipants) / float64(n)
	list.Loyalty3PlusRate = float64(list.Loyalty3Plus) / float64(n)
	kpis.List = list
}
