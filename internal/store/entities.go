package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Workshop and session kinds. A collective workshop has group
// sessions with a capacity; an individual workshop has monthly
// one-on-one appointments.
const (
	KindCollective = "COLLECTIF"
	KindIndividual = "INDIVIDUEL_MENSUEL"
)

// Session statuses.
const (
	StatusDone      = "realisee"
	StatusCancelled = "annulee"
)

// DefaultPublicType is used when a participant has no public-type
// code recorded.
const DefaultPublicType = "H"

// Workshop is a recurring activity offering within one sector.
type Workshop struct {
	ID                 int64  `json:"id"`
	Sector             string `json:"sector"`
	Name               string `json:"name"`
	Kind               string `json:"kind"`
	DefaultCapacity    *int   `json:"default_capacity,omitempty"`
	DefaultDurationMin *int   `json:"default_duration_min,omitempty"`
	Deleted            bool   `json:"deleted,omitempty"`
}

// Session is one concrete occurrence of a workshop. Collective
// sessions carry session_date/start_time/end_time and an optional
// capacity; individual appointments carry the appointment_* fields.
// Exactly one of the two date fields is meaningful depending on Kind;
// callers go through EffectiveDate/EffectiveStart/EffectiveEnd
// instead of coalescing by hand.
type Session struct {
	ID               int64   `json:"id"`
	WorkshopID       int64   `json:"workshop_id"`
	Sector           string  `json:"sector"`
	Kind             string  `json:"kind"`
	SessionDate      *string `json:"session_date,omitempty"`
	StartTime        *string `json:"start_time,omitempty"`
	EndTime          *string `json:"end_time,omitempty"`
	Capacity         *int    `json:"capacity,omitempty"`
	Status           string  `json:"status"`
	AppointmentDate  *string `json:"appointment_date,omitempty"`
	AppointmentStart *string `json:"appointment_start,omitempty"`
	AppointmentEnd   *string `json:"appointment_end,omitempty"`
	Deleted          bool    `json:"deleted,omitempty"`
}

// EffectiveDate returns the session's primary date (ISO YYYY-MM-DD),
// preferring the appointment date. Empty when neither is set.
func (s *Session) EffectiveDate() string {
	if s.AppointmentDate != nil && *s.AppointmentDate != "" {
		return *s.AppointmentDate
	}
	if s.SessionDate != nil {
		return *s.SessionDate
	}
	return ""
}

// EffectiveStart returns the start-of-day time string for the
// session's kind ("" when unset).
func (s *Session) EffectiveStart() string {
	if s.Kind == KindCollective {
		return deref(s.StartTime)
	}
	return deref(s.AppointmentStart)
}

// EffectiveEnd returns the end time string for the session's kind.
func (s *Session) EffectiveEnd() string {
	if s.Kind == KindCollective {
		return deref(s.EndTime)
	}
	return deref(s.AppointmentEnd)
}

// IsCollective reports whether the session is a group session.
func (s *Session) IsCollective() bool {
	return s.Kind == KindCollective
}

// IsReal reports whether the session actually took place
// (anything not explicitly cancelled counts).
func (s *Session) IsReal() bool {
	return s.Status != StatusCancelled
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Presence links one participant to one session. At most one record
// exists per (session, participant) pair. Motif optionally records
// the attendance reason code, MotifAutre its free-text complement.
type Presence struct {
	ID            int64   `json:"id"`
	SessionID     int64   `json:"session_id"`
	ParticipantID int64   `json:"participant_id"`
	Motif         *string `json:"motif,omitempty"`
	MotifAutre    *string `json:"motif_autre,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

// Participant carries the demographic fields the analyzers and the
// export registry read. Every optional field may legitimately be
// absent in historical data.
type Participant struct {
	ID             int64   `json:"id"`
	LastName       string  `json:"last_name"`
	FirstName      string  `json:"first_name"`
	City           *string `json:"city,omitempty"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Gender         *string `json:"gender,omitempty"`
	BirthDate      *string `json:"birth_date,omitempty"`
	PublicType     string  `json:"public_type"`
	NeighborhoodID *int64  `json:"neighborhood_id,omitempty"`
}

// Age derives the participant's age in full years as of today.
// Returns nil when the birth date is absent or unparsable.
func (p *Participant) Age(today time.Time) *int {
	if p.BirthDate == nil || *p.BirthDate == "" {
		return nil
	}
	born, err := time.Parse("2006-01-02", *p.BirthDate)
	if err != nil {
		return nil
	}
	years := today.Year() - born.Year()
	if today.Month() < born.Month() ||
		(today.Month() == born.Month() && today.Day() < born.Day()) {
		years--
	}
	if years < 0 {
		return nil
	}
	return &years
}

// Neighborhood is a participant's neighborhood reference; Priority
// marks officially designated priority neighborhoods (QPV).
type Neighborhood struct {
	ID       int64  `json:"id"`
	City     string `json:"city"`
	Name     string `json:"name"`
	Priority bool   `json:"priority"`
}

// Period is a saved named reporting period (often aligned with a
// funder's fiscal window) usable in place of explicit date bounds.
type Period struct {
	ID        int64   `json:"id"`
	Sector    *string `json:"sector,omitempty"`
	Name      string  `json:"name"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Deleted   bool    `json:"deleted,omitempty"`
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, allowing a
// single scan helper for both.
type rowScanner interface {
	Scan(dest ...any) error
}

// workshopCols is the column list for workshop queries. Keep in sync
// with scanWorkshop.
const workshopCols = `w.id, w.sector, w.name, w.kind,
	w.default_capacity, w.default_duration_min, w.deleted`

func scanWorkshop(rs rowScanner) (Workshop, error) {
	var w Workshop
	err := rs.Scan(
		&w.ID, &w.Sector, &w.Name, &w.Kind,
		&w.DefaultCapacity, &w.DefaultDurationMin, &w.Deleted,
	)
	return w, err
}

// sessionCols is the column list for session queries. Keep in sync
// with scanSessionRow.
const sessionCols = `s.id, s.workshop_id, s.sector, s.kind,
	s.session_date, s.start_time, s.end_time, s.capacity, s.status,
	s.appointment_date, s.appointment_start, s.appointment_end,
	s.deleted`

// scanSessionRow scans a sessionCols + workshopCols joined row.
func scanSessionRow(rs rowScanner) (SessionRow, error) {
	var r SessionRow
	err := rs.Scan(
		&r.Session.ID, &r.Session.WorkshopID, &r.Session.Sector,
		&r.Session.Kind, &r.Session.SessionDate,
		&r.Session.StartTime, &r.Session.EndTime,
		&r.Session.Capacity, &r.Session.Status,
		&r.Session.AppointmentDate, &r.Session.AppointmentStart,
		&r.Session.AppointmentEnd, &r.Session.Deleted,
		&r.Workshop.ID, &r.Workshop.Sector, &r.Workshop.Name,
		&r.Workshop.Kind, &r.Workshop.DefaultCapacity,
		&r.Workshop.DefaultDurationMin, &r.Workshop.Deleted,
	)
	return r, err
}

// participantCols is the column list for participant queries. Keep
// in sync with scanParticipant.
const participantCols = `p.id, p.last_name, p.first_name, p.city,
	p.email, p.phone, p.gender, p.birth_date, p.public_type,
	p.neighborhood_id`

func scanParticipant(rs rowScanner) (Participant, error) {
	var p Participant
	err := rs.Scan(
		&p.ID, &p.LastName, &p.FirstName, &p.City,
		&p.Email, &p.Phone, &p.Gender, &p.BirthDate,
		&p.PublicType, &p.NeighborhoodID,
	)
	return p, err
}

// --- Writes (importer and test fixtures only; the analytics engine
// itself never mutates entities) ---

// UpsertWorkshop inserts or updates a workshop by id.
func (s *Store) UpsertWorkshop(w Workshop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.writer.Exec(`
		INSERT INTO workshops
			(id, sector, name, kind, default_capacity,
			 default_duration_min, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sector = excluded.sector,
			name = excluded.name,
			kind = excluded.kind,
			default_capacity = excluded.default_capacity,
			default_duration_min = excluded.default_duration_min,
			deleted = excluded.deleted`,
		w.ID, w.Sector, w.Name, w.Kind,
		w.DefaultCapacity, w.DefaultDurationMin, boolInt(w.Deleted),
	)
	if err != nil {
		return fmt.Errorf("upserting workshop %d: %w", w.ID, err)
	}
	return nil
}

// UpsertSession inserts or updates a session by id.
func (s *Store) UpsertSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.writer.Exec(`
		INSERT INTO sessions
			(id, workshop_id, sector, kind, session_date,
			 start_time, end_time, capacity, status,
			 appointment_date, appointment_start,
			 appointment_end, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workshop_id = excluded.workshop_id,
			sector = excluded.sector,
			kind = excluded.kind,
			session_date = excluded.session_date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			capacity = excluded.capacity,
			status = excluded.status,
			appointment_date = excluded.appointment_date,
			appointment_start = excluded.appointment_start,
			appointment_end = excluded.appointment_end,
			deleted = excluded.deleted`,
		sess.ID, sess.WorkshopID, sess.Sector, sess.Kind,
		sess.SessionDate, sess.StartTime, sess.EndTime,
		sess.Capacity, statusOrDefault(sess.Status),
		sess.AppointmentDate, sess.AppointmentStart,
		sess.AppointmentEnd, boolInt(sess.Deleted),
	)
	if err != nil {
		return fmt.Errorf("upserting session %d: %w", sess.ID, err)
	}
	return nil
}

func statusOrDefault(status string) string {
	if status == "" {
		return StatusDone
	}
	return status
}

// UpsertParticipant inserts or updates a participant by id.
func (s *Store) UpsertParticipant(p Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	publicType := p.PublicType
	if publicType == "" {
		publicType = DefaultPublicType
	}
	_, err := s.writer.Exec(`
		INSERT INTO participants
			(id, last_name, first_name, city, email, phone,
			 gender, birth_date, public_type, neighborhood_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_name = excluded.last_name,
			first_name = excluded.first_name,
			city = excluded.city,
			email = excluded.email,
			phone = excluded.phone,
			gender = excluded.gender,
			birth_date = excluded.birth_date,
			public_type = excluded.public_type,
			neighborhood_id = excluded.neighborhood_id`,
		p.ID, p.LastName, p.FirstName, p.City, p.Email, p.Phone,
		p.Gender, p.BirthDate, publicType, p.NeighborhoodID,
	)
	if err != nil {
		return fmt.Errorf("upserting participant %d: %w", p.ID, err)
	}
	return nil
}

// UpsertNeighborhood inserts or updates a neighborhood by id.
func (s *Store) UpsertNeighborhood(n Neighborhood) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.writer.Exec(`
		INSERT INTO neighborhoods (id, city, name, priority)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			city = excluded.city,
			name = excluded.name,
			priority = excluded.priority`,
		n.ID, n.City, n.Name, boolInt(n.Priority),
	)
	if err != nil {
		return fmt.Errorf("upserting neighborhood %d: %w", n.ID, err)
	}
	return nil
}

// UpsertPeriod inserts or updates a saved reporting period by id.
func (s *Store) UpsertPeriod(p Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.writer.Exec(`
		INSERT INTO periods
			(id, sector, name, start_date, end_date, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sector = excluded.sector,
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			deleted = excluded.deleted`,
		p.ID, p.Sector, p.Name, p.StartDate, p.EndDate,
		boolInt(p.Deleted),
	)
	if err != nil {
		return fmt.Errorf("upserting period %d: %w", p.ID, err)
	}
	return nil
}

// InsertPresences inserts presence records in one transaction,
// ignoring duplicates of the (session, participant) pair.
func (s *Store) InsertPresences(presences []Presence) error {
	if len(presences) == 0 {
		return nil
	}
	return s.Update(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO presences
				(id, session_id, participant_id, motif,
				 motif_autre, created_at)
			VALUES (?, ?, ?, ?, ?,
				COALESCE(NULLIF(?, ''), datetime('now')))
			ON CONFLICT(session_id, participant_id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("preparing presence insert: %w", err)
		}
		defer stmt.Close()
		for _, p := range presences {
			var id any
			if p.ID != 0 {
				id = p.ID
			}
			if _, err := stmt.Exec(
				id, p.SessionID, p.ParticipantID,
				p.Motif, p.MotifAutre, p.CreatedAt,
			); err != nil {
				return fmt.Errorf(
					"inserting presence session=%d participant=%d: %w",
					p.SessionID, p.ParticipantID, err,
				)
			}
		}
		return nil
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
