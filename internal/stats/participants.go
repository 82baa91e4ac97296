package stats

import (
	"context"
	"sort"

	"impactstats/internal/store"
)

// RosterVisit is one attended session of a roster entry.
type RosterVisit struct {
	Date       string `json:"date"`
	WorkshopID int64  `json:"workshop_id"`
	Workshop   string `json:"workshop"`
	Sector     string `json:"sector"`
}

// RosterWorkshop rolls a roster entry's visits up by workshop.
type RosterWorkshop struct {
	Workshop string   `json:"workshop"`
	Sector   string   `json:"sector"`
	Visits   int      `json:"visits"`
	Dates    []string `json:"dates"`
}

// RosterEntry is one participant of the window with their identity
// and full visit detail.
type RosterEntry struct {
	ID           int64                    `json:"id"`
	LastName     string                   `json:"last_name"`
	FirstName    string                   `json:"first_name"`
	Age          *int                     `json:"age"`
	Gender       *string                  `json:"gender"`
	BirthDate    *string                  `json:"birth_date"`
	City         *string                  `json:"city"`
	Neighborhood *string                  `json:"neighborhood"`
	Priority     bool                     `json:"priority_neighborhood"`
	Phone        *string                  `json:"phone"`
	Email        *string                  `json:"email"`
	PublicType   string                   `json:"public_type"`
	Visits       int                      `json:"visits"`
	Sessions     []RosterVisit            `json:"sessions"`
	Workshops    map[int64]RosterWorkshop `json:"workshops"`
}

// ParticipantsStats is the per-participant visit roster of the
// window, sorted by name.
type ParticipantsStats struct {
	Participants []RosterEntry `json:"participants"`
	Total        int           `json:"total"`
}

// ComputeParticipants builds the participant roster for the actor's
// visible window.
func (e *Engine) ComputeParticipants(
	ctx context.Context, actor Actor, f Filters,
) (*ParticipantsStats, error) {
	_, _, rows, presences, ok, err := e.scopedWindow(ctx, actor, f)
	if err != nil {
		return nil, err
	}
	out := &ParticipantsStats{Participants: []RosterEntry{}}
	if !ok || len(presences) == 0 {
		return out, nil
	}

	sessionByID := make(map[int64]*store.SessionRow, len(rows))
	for i := range rows {
		sessionByID[rows[i].Session.ID] = &rows[i]
	}
	pids := uniqueParticipantIDs(presences)
	participantList, err := e.store.ParticipantsByIDs(ctx, pids)
	if err != nil {
		return nil, err
	}
	neighborhoods, err := e.loadNeighborhoods(ctx, participantList)
	if err != nil {
		return nil, err
	}
	participants := make(map[int64]*store.Participant, len(participantList))
	for i := range participantList {
		participants[participantList[i].ID] = &participantList[i]
	}

	today := e.today()
	entries := make(map[int64]*RosterEntry)
	for _, pr := range presences {
		p := participants[pr.ParticipantID]
		row := sessionByID[pr.SessionID]
		if p == nil || row == nil {
			continue
		}
		sess, w := &row.Session, &row.Workshop

		entry := entries[p.ID]
		if entry == nil {
			entry = &RosterEntry{
				ID:         p.ID,
				LastName:   p.LastName,
				FirstName:  p.FirstName,
				Age:        p.Age(today),
				Gender:     p.Gender,
				BirthDate:  p.BirthDate,
				City:       p.City,
				Phone:      p.Phone,
				Email:      p.Email,
				PublicType: p.PublicType,
				Sessions:   []RosterVisit{},
				Workshops:  make(map[int64]RosterWorkshop),
			}
			if entry.PublicType == "" {
				entry.PublicType = store.DefaultPublicType
			}
			if p.NeighborhoodID != nil {
				if n, found := neighborhoods[*p.NeighborhoodID]; found {
					entry.Neighborhood = &n.Name
					entry.Priority = n.Priority
				}
			}
			entries[p.ID] = entry
		}

		date := sess.EffectiveDate()
		entry.Visits++
		entry.Sessions = append(entry.Sessions, RosterVisit{
			Date:       date,
			WorkshopID: w.ID,
			Workshop:   w.Name,
			Sector:     w.Sector,
		})
		rw, found := entry.Workshops[w.ID]
		if !found {
			rw = RosterWorkshop{Workshop: w.Name, Sector: w.Sector}
		}
		rw.Visits++
		if date != "" {
			rw.Dates = append(rw.Dates, date)
		}
		entry.Workshops[w.ID] = rw
	}

	for _, entry := range entries {
		sort.Slice(entry.Sessions, func(i, j int) bool {
			return entry.Sessions[i].Date > entry.Sessions[j].Date
		})
		for id, rw := range entry.Workshops {
			sort.Sort(sort.Reverse(sort.StringSlice(rw.Dates)))
			entry.Workshops[id] = rw
		}
		out.Participants = append(out.Participants, *entry)
	}
	sort.Slice(out.Participants, func(i, j int) bool {
		a, b := out.Participants[i], out.Participants[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.FirstName < b.FirstName
	})
	out.Total = len(out.Participants)
	return out, nil
}
