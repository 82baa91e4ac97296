package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SectorAggregate is one sector's attendance totals.
type SectorAggregate struct {
	Sector    string `json:"sector"`
	Sessions  int    `json:"sessions"`
	Presences int    `json:"presences"`
	Uniques   int    `json:"uniques"`
}

// WorkshopAggregate is one workshop's attendance totals.
type WorkshopAggregate struct {
	WorkshopID int64  `json:"workshop_id"`
	Name       string `json:"name"`
	Sector     string `json:"sector"`
	Sessions   int    `json:"sessions"`
	Presences  int    `json:"presences"`
	Uniques    int    `json:"uniques"`
}

// VisitStats summarizes one participant's visits within a filter
// perimeter.
type VisitStats struct {
	Presences int
	FirstDate string
	LastDate  string
}

// PresencePair is one cell of the attendance matrix.
type PresencePair struct {
	ParticipantID int64
	SessionID     int64
}

// SectorAggregates returns per-sector session/presence/unique
// counts over the filter perimeter, ordered by sector. Sessions
// without presences still count.
func (st *Store) SectorAggregates(
	ctx context.Context, f Filter,
) ([]SectorAggregate, error) {
	where, args := f.buildWhere()
	rows, err := st.reader.QueryContext(ctx, `
		SELECT w.sector,
			COUNT(DISTINCT s.id),
			COUNT(pr.id),
			COUNT(DISTINCT pr.participant_id)
		FROM sessions s
		JOIN workshops w ON w.id = s.workshop_id
		LEFT JOIN presences pr ON pr.session_id = s.id
		WHERE `+where+`
		GROUP BY w.sector
		ORDER BY w.sector`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sector aggregates: %w", err)
	}
	defer rows.Close()

	var out []SectorAggregate
	for rows.Next() {
		var a SectorAggregate
		if err := rows.Scan(
			&a.Sector, &a.Sessions, &a.Presences, &a.Uniques,
		); err != nil {
			return nil, fmt.Errorf("scanning sector aggregate: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sector aggregates: %w", err)
	}
	return out, nil
}

// WorkshopAggregates returns per-workshop counts over the filter
// perimeter, ordered by sector then name.
func (st *Store) WorkshopAggregates(
	ctx context.Context, f Filter,
) ([]WorkshopAggregate, error) {
	where, args := f.buildWhere()
	rows, err := st.reader.QueryContext(ctx, `
		SELECT w.id, w.name, w.sector,
			COUNT(DISTINCT s.id),
			COUNT(pr.id),
			COUNT(DISTINCT pr.participant_id)
		FROM sessions s
		JOIN workshops w ON w.id = s.workshop_id
		LEFT JOIN presences pr ON pr.session_id = s.id
		WHERE `+where+`
		GROUP BY w.id, w.name, w.sector
		ORDER BY w.sector, w.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying workshop aggregates: %w", err)
	}
	defer rows.Close()

	var out []WorkshopAggregate
	for rows.Next() {
		var a WorkshopAggregate
		if err := rows.Scan(
			&a.WorkshopID, &a.Name, &a.Sector,
			&a.Sessions, &a.Presences, &a.Uniques,
		); err != nil {
			return nil, fmt.Errorf("scanning workshop aggregate: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workshop aggregates: %w", err)
	}
	return out, nil
}

// DistinctParticipants counts the distinct participants with at
// least one presence in the filter perimeter. Computed globally, not
// as a sum per workshop, so cross-workshop participants count once.
func (st *Store) DistinctParticipants(
	ctx context.Context, f Filter,
) (int, error) {
	where, args := f.buildWhere()
	var n int
	err := st.reader.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT pr.participant_id)
		FROM presences pr
		JOIN sessions s ON s.id = pr.session_id
		JOIN workshops w ON w.id = s.workshop_id
		WHERE `+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting distinct participants: %w", err)
	}
	return n, nil
}

// MatrixSessions returns the first limit sessions of the perimeter
// in chronological order, for use as matrix columns.
func (st *Store) MatrixSessions(
	ctx context.Context, f Filter, limit int,
) ([]SessionRow, error) {
	where, args := f.buildWhere()
	args = append(args, limit)
	rows, err := st.reader.QueryContext(ctx, `
		SELECT `+sessionCols+`, `+workshopCols+`
		FROM sessions s
		JOIN workshops w ON w.id = s.workshop_id
		WHERE `+where+`
		ORDER BY `+effectiveDateExpr+`, s.id
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matrix sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		r, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning matrix session: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matrix sessions: %w", err)
	}
	return out, nil
}

// MatrixParticipants returns the participants with at least one
// presence in the perimeter, optionally filtered by a
// case-insensitive name fragment, ordered by last then first name
// and capped at limit.
func (st *Store) MatrixParticipants(
	ctx context.Context, f Filter, nameQuery string, limit int,
) ([]Participant, error) {
	where, args := f.buildWhere()
	if q := strings.TrimSpace(nameQuery); q != "" {
		where += ` AND (LOWER(p.last_name) LIKE ?
			OR LOWER(p.first_name) LIKE ?)`
		like := "%" + strings.ToLower(q) + "%"
		args = append(args, like, like)
	}
	args = append(args, limit)

	rows, err := st.reader.QueryContext(ctx, `
		SELECT DISTINCT `+participantCols+`
		FROM participants p
		JOIN presences pr ON pr.participant_id = p.id
		JOIN sessions s ON s.id = pr.session_id
		JOIN workshops w ON w.id = s.workshop_id
		WHERE `+where+`
		ORDER BY p.last_name, p.first_name
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matrix participants: %w", err)
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning matrix participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matrix participants: %w", err)
	}
	return out, nil
}

// VisitStatsByParticipant returns visit counts and first/last visit
// dates per participant over the whole filter perimeter, not just
// the capped matrix columns.
func (st *Store) VisitStatsByParticipant(
	ctx context.Context, f Filter, participantIDs []int64,
) (map[int64]VisitStats, error) {
	out := make(map[int64]VisitStats, len(participantIDs))
	err := queryChunked(participantIDs, func(chunk []int64) error {
		where, args := f.buildWhere()
		in, inArgs := inPlaceholders(chunk)
		args = append(args, inArgs...)
		rows, err := st.reader.QueryContext(ctx, `
			SELECT pr.participant_id,
				COUNT(pr.id),
				MIN(`+effectiveDateExpr+`),
				MAX(`+effectiveDateExpr+`)
			FROM presences pr
			JOIN sessions s ON s.id = pr.session_id
			JOIN workshops w ON w.id = s.workshop_id
			WHERE `+where+` AND pr.participant_id IN `+in+`
			GROUP BY pr.participant_id`, args...)
		if err != nil {
			return fmt.Errorf("querying visit stats: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var vs VisitStats
			var first, last sql.NullString
			if err := rows.Scan(
				&id, &vs.Presences, &first, &last,
			); err != nil {
				return fmt.Errorf("scanning visit stats: %w", err)
			}
			vs.FirstDate = first.String
			vs.LastDate = last.String
			out[id] = vs
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating visit stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PresencePairs returns the (participant, session) cells present in
// both id sets. The session axis is already capped by the caller, so
// only the participant axis is chunked.
func (st *Store) PresencePairs(
	ctx context.Context, sessionIDs, participantIDs []int64,
) ([]PresencePair, error) {
	if len(sessionIDs) == 0 || len(participantIDs) == 0 {
		return nil, nil
	}
	sessIn, sessArgs := inPlaceholders(sessionIDs)
	var out []PresencePair
	err := queryChunked(participantIDs, func(chunk []int64) error {
		partIn, partArgs := inPlaceholders(chunk)
		args := append(append([]any{}, sessArgs...), partArgs...)
		rows, err := st.reader.QueryContext(ctx, `
			SELECT participant_id, session_id
			FROM presences
			WHERE session_id IN `+sessIn+`
			AND participant_id IN `+partIn+`
			ORDER BY participant_id, session_id`, args...)
		if err != nil {
			return fmt.Errorf("querying presence pairs: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var pair PresencePair
			if err := rows.Scan(
				&pair.ParticipantID, &pair.SessionID,
			); err != nil {
				return fmt.Errorf("scanning presence pair: %w", err)
			}
			out = append(out, pair)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating presence pairs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
