package stats

import (
	"path/filepath"
	"testing"
	"time"

	"impactstats/internal/store"
)

// fixedNow pins the engine clock so preset resolution is
// deterministic.
var fixedNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testEngine(t *testing.T, st *store.Store, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewEngine(st, opts...)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func addWorkshop(
	t *testing.T, st *store.Store, id int64, sector string,
	opts ...func(*store.Workshop),
) {
	t.Helper()
	w := store.Workshop{
		ID:     id,
		Sector: sector,
		Name:   "Workshop",
		Kind:   store.KindCollective,
	}
	for _, opt := range opts {
		opt(&w)
	}
	if err := st.UpsertWorkshop(w); err != nil {
		t.Fatalf("addWorkshop %d: %v", id, err)
	}
}

func addSession(
	t *testing.T, st *store.Store, id, workshopID int64, date string,
	opts ...func(*store.Session),
) {
	t.Helper()
	s := store.Session{
		ID:         id,
		WorkshopID: workshopID,
		Kind:       store.KindCollective,
		Status:     store.StatusDone,
	}
	if date != "" {
		s.SessionDate = Ptr(date)
	}
	for _, opt := range opts {
		opt(&s)
	}
	if err := st.UpsertSession(s); err != nil {
		t.Fatalf("addSession %d: %v", id, err)
	}
}

func addParticipant(
	t *testing.T, st *store.Store, id int64,
	opts ...func(*store.Participant),
) {
	t.Helper()
	p := store.Participant{
		ID:        id,
		LastName:  "Doe",
		FirstName: "Jane",
	}
	for _, opt := range opts {
		opt(&p)
	}
	if err := st.UpsertParticipant(p); err != nil {
		t.Fatalf("addParticipant %d: %v", id, err)
	}
}

func addPresence(
	t *testing.T, st *store.Store, sessionID, participantID int64,
) {
	t.Helper()
	err := st.InsertPresences([]store.Presence{{
		SessionID:     sessionID,
		ParticipantID: participantID,
	}})
	if err != nil {
		t.Fatalf("addPresence %d/%d: %v", sessionID, participantID, err)
	}
}

// withTimes sets a collective session's start and end times.
func withTimes(start, end string) func(*store.Session) {
	return func(s *store.Session) {
		s.StartTime = Ptr(start)
		s.EndTime = Ptr(end)
	}
}

// fakeActor implements Actor with an explicit permission set.
type fakeActor struct {
	perms  []string
	sector string
}

func (a fakeActor) HasPermission(code string) bool {
	for _, p := range a.perms {
		if p == code {
			return true
		}
	}
	return false
}

func (a fakeActor) AssignedSector() string { return a.sector }
