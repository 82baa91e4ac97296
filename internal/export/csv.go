package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"impactstats/internal/stats"
	"impactstats/internal/store"
)

// BuildRows flattens the actor's visible attendance window into one
// row context per presence, ordered by session date then presence id.
func BuildRows(
	ctx context.Context,
	st *store.Store,
	engine *stats.Engine,
	actor stats.Actor,
	f stats.Filters,
) ([]RowContext, error) {
	sessionRows, presences, ok, err := engine.Window(ctx, actor, f)
	if err != nil {
		return nil, fmt.Errorf("loading attendance window: %w", err)
	}
	if !ok || len(presences) == 0 {
		return nil, nil
	}

	sessionsByID := make(map[int64]*store.SessionRow, len(sessionRows))
	for i := range sessionRows {
		sessionsByID[sessionRows[i].Session.ID] = &sessionRows[i]
	}

	pidSeen := make(map[int64]bool)
	var pids []int64
	for _, p := range presences {
		if !pidSeen[p.ParticipantID] {
			pidSeen[p.ParticipantID] = true
			pids = append(pids, p.ParticipantID)
		}
	}
	participantList, err := st.ParticipantsByIDs(ctx, pids)
	if err != nil {
		return nil, fmt.Errorf("loading participants: %w", err)
	}
	participants := make(map[int64]store.Participant, len(participantList))
	nidSeen := make(map[int64]bool)
	var nids []int64
	for _, p := range participantList {
		participants[p.ID] = p
		if p.NeighborhoodID != nil && !nidSeen[*p.NeighborhoodID] {
			nidSeen[*p.NeighborhoodID] = true
			nids = append(nids, *p.NeighborhoodID)
		}
	}
	neighborhoods := map[int64]store.Neighborhood{}
	if len(nids) > 0 {
		neighborhoods, err = st.NeighborhoodsByIDs(ctx, nids)
		if err != nil {
			return nil, fmt.Errorf("loading neighborhoods: %w", err)
		}
	}

	// Presences come back grouped by session chunk; re-walk the
	// sessions in date order so the export reads chronologically.
	presencesBySession := make(map[int64][]store.Presence, len(sessionRows))
	for _, p := range presences {
		presencesBySession[p.SessionID] = append(
			presencesBySession[p.SessionID], p)
	}

	var rows []RowContext
	for i := range sessionRows {
		sr := &sessionRows[i]
		for _, p := range presencesBySession[sr.Session.ID] {
			participant, found := participants[p.ParticipantID]
			if !found {
				continue
			}
			rc := RowContext{
				Presence:    p,
				Participant: participant,
				Session:     sr.Session,
				Workshop:    sr.Workshop,
			}
			if participant.NeighborhoodID != nil {
				if n, found := neighborhoods[*participant.NeighborhoodID]; found {
					rc.Neighborhood = &n
				}
			}
			rows = append(rows, rc)
		}
	}
	return rows, nil
}

// WriteCSV writes a header row of field labels followed by one line
// per row context, using the registry entries for the given keys.
func WriteCSV(w io.Writer, keys []string, rows []RowContext) error {
	fields := Resolve(keys)
	cw := csv.NewWriter(w)

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Label
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	record := make([]string, len(fields))
	for _, row := range rows {
		for i, f := range fields {
			record[i] = f.Get(row)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
