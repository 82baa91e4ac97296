package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// maxSQLVars stays under SQLite's default bind-variable limit.
const maxSQLVars = 500

// effectiveDateExpr is the session's primary date, preferring the
// appointment date over the group-session date.
const effectiveDateExpr = "COALESCE(s.appointment_date, s.session_date)"

func inPlaceholders(ids []int64) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}
	return "(" + strings.Join(ph, ",") + ")", args
}

// queryChunked executes a callback for each chunk of IDs,
// splitting at maxSQLVars to avoid SQLite bind-variable limits.
func queryChunked(
	ids []int64,
	fn func(chunk []int64) error,
) error {
	for i := 0; i < len(ids); i += maxSQLVars {
		end := min(i+maxSQLVars, len(ids))
		if err := fn(ids[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// Filter is the shared filter for session queries. Sector carries
// the already-resolved scope restriction; analyzers never widen it.
type Filter struct {
	Sector     string // "" = all sectors
	WorkshopID int64  // 0 = all workshops
	From       string // ISO date YYYY-MM-DD, inclusive; "" = open
	To         string // ISO date YYYY-MM-DD, inclusive; "" = open
}

func (f Filter) buildWhere() (string, []any) {
	preds := []string{"s.deleted = 0", "w.deleted = 0"}
	var args []any

	if f.Sector != "" {
		preds = append(preds, "w.sector = ?")
		args = append(args, f.Sector)
	}
	if f.WorkshopID != 0 {
		preds = append(preds, "w.id = ?")
		args = append(args, f.WorkshopID)
	}
	if f.From != "" {
		preds = append(preds, effectiveDateExpr+" >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		preds = append(preds, effectiveDateExpr+" <= ?")
		args = append(args, f.To)
	}

	return strings.Join(preds, " AND "), args
}

// SessionRow pairs a session with its workshop, the unit every
// analyzer iterates over.
type SessionRow struct {
	Session  Session
	Workshop Workshop
}

// SessionsWithWorkshops returns all live sessions matching the
// filter, joined with their workshop, ordered by effective date.
func (st *Store) SessionsWithWorkshops(
	ctx context.Context, f Filter,
) ([]SessionRow, error) {
	where, args := f.buildWhere()
	query := `SELECT ` + sessionCols + `, ` + workshopCols + `
		FROM sessions s
		JOIN workshops w ON w.id = s.workshop_id
		WHERE ` + where + `
		ORDER BY ` + effectiveDateExpr + `, s.id`

	rows, err := st.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		r, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return out, nil
}

// PresencesForSessions returns all presence records for the given
// sessions.
func (st *Store) PresencesForSessions(
	ctx context.Context, sessionIDs []int64,
) ([]Presence, error) {
	var out []Presence
	err := queryChunked(sessionIDs, func(chunk []int64) error {
		in, args := inPlaceholders(chunk)
		rows, err := st.reader.QueryContext(ctx, `
			SELECT id, session_id, participant_id, motif,
				motif_autre, created_at
			FROM presences
			WHERE session_id IN `+in, args...)
		if err != nil {
			return fmt.Errorf("querying presences: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var p Presence
			if err := rows.Scan(
				&p.ID, &p.SessionID, &p.ParticipantID,
				&p.Motif, &p.MotifAutre, &p.CreatedAt,
			); err != nil {
				return fmt.Errorf("scanning presence: %w", err)
			}
			out = append(out, p)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating presences: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PresenceCountsBySession returns the headcount per session.
func (st *Store) PresenceCountsBySession(
	ctx context.Context, sessionIDs []int64,
) (map[int64]int, error) {
	counts := make(map[int64]int, len(sessionIDs))
	err := queryChunked(sessionIDs, func(chunk []int64) error {
		in, args := inPlaceholders(chunk)
		rows, err := st.reader.QueryContext(ctx, `
			SELECT session_id, COUNT(*)
			FROM presences
			WHERE session_id IN `+in+`
			GROUP BY session_id`, args...)
		if err != nil {
			return fmt.Errorf("querying presence counts: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var n int
			if err := rows.Scan(&id, &n); err != nil {
				return fmt.Errorf("scanning presence count: %w", err)
			}
			counts[id] = n
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating presence counts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// CountFirstSeenInRange counts participants whose first recorded
// presence, over their whole lifetime and across all sectors, falls
// inside the given bounds. Soft-deleted sessions are ignored. At
// least one bound must be set; with none the notion of "new" has no
// reference window and the count is 0.
func (st *Store) CountFirstSeenInRange(
	ctx context.Context, from, to string,
) (int, error) {
	if from == "" && to == "" {
		return 0, nil
	}
	preds := []string{"1=1"}
	var args []any
	if from != "" {
		preds = append(preds, "first_date >= ?")
		args = append(args, from)
	}
	if to != "" {
		preds = append(preds, "first_date <= ?")
		args = append(args, to)
	}
	query := `SELECT COUNT(*) FROM (
			SELECT pr.participant_id,
				MIN(` + effectiveDateExpr + `) AS first_date
			FROM presences pr
			JOIN sessions s ON s.id = pr.session_id
			WHERE s.deleted = 0
			GROUP BY pr.participant_id
		) WHERE ` + strings.Join(preds, " AND ")

	var n int
	err := st.reader.QueryRowContext(ctx, query, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting first-seen participants: %w", err)
	}
	return n, nil
}

// SectorsByParticipant returns, for each given participant, the set
// of sectors they attended within the date bounds. All sectors are
// considered regardless of any scope restriction.
func (st *Store) SectorsByParticipant(
	ctx context.Context, participantIDs []int64, from, to string,
) (map[int64]map[string]bool, error) {
	sectors := make(map[int64]map[string]bool, len(participantIDs))
	err := queryChunked(participantIDs, func(chunk []int64) error {
		in, args := inPlaceholders(chunk)
		preds := []string{
			"s.deleted = 0", "w.deleted = 0",
			"pr.participant_id IN " + in,
		}
		if from != "" {
			preds = append(preds, effectiveDateExpr+" >= ?")
			args = append(args, from)
		}
		if to != "" {
			preds = append(preds, effectiveDateExpr+" <= ?")
			args = append(args, to)
		}
		rows, err := st.reader.QueryContext(ctx, `
			SELECT DISTINCT pr.participant_id, w.sector
			FROM presences pr
			JOIN sessions s ON s.id = pr.session_id
			JOIN workshops w ON w.id = s.workshop_id
			WHERE `+strings.Join(preds, " AND "), args...)
		if err != nil {
			return fmt.Errorf("querying participant sectors: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var sector string
			if err := rows.Scan(&id, &sector); err != nil {
				return fmt.Errorf("scanning participant sector: %w", err)
			}
			if sectors[id] == nil {
				sectors[id] = make(map[string]bool)
			}
			sectors[id][sector] = true
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating participant sectors: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sectors, nil
}

// ParticipantsByIDs returns the named participants, in id order.
func (st *Store) ParticipantsByIDs(
	ctx context.Context, ids []int64,
) ([]Participant, error) {
	var out []Participant
	err := queryChunked(ids, func(chunk []int64) error {
		in, args := inPlaceholders(chunk)
		rows, err := st.reader.QueryContext(ctx, `
			SELECT `+participantCols+`
			FROM participants p
			WHERE p.id IN `+in+`
			ORDER BY p.id`, args...)
		if err != nil {
			return fmt.Errorf("querying participants: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanParticipant(rows)
			if err != nil {
				return fmt.Errorf("scanning participant: %w", err)
			}
			out = append(out, p)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NeighborhoodsByIDs returns the named neighborhoods keyed by id.
func (st *Store) NeighborhoodsByIDs(
	ctx context.Context, ids []int64,
) (map[int64]Neighborhood, error) {
	out := make(map[int64]Neighborhood, len(ids))
	err := queryChunked(ids, func(chunk []int64) error {
		in, args := inPlaceholders(chunk)
		rows, err := st.reader.QueryContext(ctx, `
			SELECT id, city, name, priority
			FROM neighborhoods
			WHERE id IN `+in, args...)
		if err != nil {
			return fmt.Errorf("querying neighborhoods: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var n Neighborhood
			if err := rows.Scan(
				&n.ID, &n.City, &n.Name, &n.Priority,
			); err != nil {
				return fmt.Errorf("scanning neighborhood: %w", err)
			}
			out[n.ID] = n
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating neighborhoods: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PeriodByID returns a saved reporting period, or nil when it does
// not exist or has been deleted.
func (st *Store) PeriodByID(
	ctx context.Context, id int64,
) (*Period, error) {
	var p Period
	err := st.reader.QueryRowContext(ctx, `
		SELECT id, sector, name, start_date, end_date, deleted
		FROM periods
		WHERE id = ? AND deleted = 0`, id).Scan(
		&p.ID, &p.Sector, &p.Name, &p.StartDate, &p.EndDate,
		&p.Deleted,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying period %d: %w", id, err)
	}
	return &p, nil
}

// WorkshopByID returns a workshop regardless of its deleted flag, or
// nil when it does not exist.
func (st *Store) WorkshopByID(
	ctx context.Context, id int64,
) (*Workshop, error) {
	row := st.reader.QueryRowContext(ctx, `
		SELECT `+workshopCols+`
		FROM workshops w
		WHERE w.id = ?`, id)
	w, err := scanWorkshop(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying workshop %d: %w", id, err)
	}
	return &w, nil
}

// Sectors returns the distinct sectors of live workshops, sorted.
func (st *Store) Sectors(ctx context.Context) ([]string, error) {
	rows, err := st.reader.QueryContext(ctx, `
		SELECT DISTINCT sector FROM workshops
		WHERE deleted = 0
		ORDER BY sector`)
	if err != nil {
		return nil, fmt.Errorf("querying sectors: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning sector: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sectors: %w", err)
	}
	return out, nil
}
