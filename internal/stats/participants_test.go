package stats

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"impactstats/internal/store"
)

func TestComputeParticipants(t *testing.T) {
	st := testStore(t)
	addWorkshop(t, st, 1, "jeunesse", func(w *store.Workshop) {
		w.Name = "Club ados"
	})
	addWorkshop(t, st, 2, "famille", func(w *store.Workshop) {
		w.Name = "Café parents"
	})
	addSession(t, st, 1, 1, "2024-03-04")
	addSession(t, st, 2, 1, "2024-03-11")
	addSession(t, st, 3, 2, "2024-03-06")

	if err := st.UpsertNeighborhood(store.Neighborhood{
		ID: 1, City: "Creil", Name: "Rouher", Priority: true,
	}); err != nil {
		t.Fatalf("UpsertNeighborhood: %v", err)
	}

	addParticipant(t, st, 101, func(p *store.Participant) {
		p.LastName = "Martin"
		p.FirstName = "Alice"
		p.NeighborhoodID = Ptr(int64(1))
	})
	addParticipant(t, st, 102, func(p *store.Participant) {
		p.LastName = "Bernard"
		p.FirstName = "Paul"
	})
	addPresence(t, st, 1, 101)
	addPresence(t, st, 2, 101)
	addPresence(t, st, 3, 101)
	addPresence(t, st, 2, 102)
	e := testEngine(t, st)

	out, err := e.ComputeParticipants(context.Background(), SystemActor{}, Filters{})
	if err != nil {
		t.Fatalf("ComputeParticipants: %v", err)
	}
	if out.Total != 2 {
		t.Fatalf("Total = %d, want 2", out.Total)
	}

	// Sorted by last then first name.
	if out.Participants[0].LastName != "Bernard" {
		t.Errorf("first entry = %q, want Bernard", out.Participants[0].LastName)
	}

	alice := out.Participants[1]
	if alice.Visits != 3 || !alice.Priority {
		t.Errorf("entry = %+v, want 3 visits in a priority neighborhood", alice)
	}
	if alice.Neighborhood == nil || *alice.Neighborhood != "Rouher" {
		t.Errorf("Neighborhood = %v, want Rouher", alice.Neighborhood)
	}
	if alice.PublicType != store.DefaultPublicType {
		t.Errorf("PublicType = %q, want the default", alice.PublicType)
	}

	// Visits sorted by date, most recent first.
	var dates []string
	for _, v := range alice.Sessions {
		dates = append(dates, v.Date)
	}
	want := []string{"2024-03-11", "2024-03-06", "2024-03-04"}
	if diff := cmp.Diff(want, dates); diff != "" {
		t.Errorf("visit dates mismatch (-want +got):\n%s", diff)
	}

	club := alice.Workshops[1]
	if club.Visits != 2 || club.Workshop != "Club ados" {
		t.Errorf("workshop rollup = %+v", club)
	}
	if diff := cmp.Diff([]string{"2024-03-11", "2024-03-04"}, club.Dates); diff != "" {
		t.Errorf("workshop dates mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeParticipantsScoped(t *testing.T) {
	st := testStore(t)
	addWorkshop(t, st, 1, "jeunesse")
	addWorkshop(t, st, 2, "famille")
	addSession(t, st, 1, 1, "2024-03-04")
	addSession(t, st, 2, 2, "2024-03-05")
	addParticipant(t, st, 101)
	addParticipant(t, st, 102)
	addPresence(t, st, 1, 101)
	addPresence(t, st, 2, 102)
	e := testEngine(t, st)

	// A single-sector actor only sees their own roster, whatever
	// sector they ask for.
	actor := fakeActor{sector: "famille"}
	out, err := e.ComputeParticipants(context.Background(), actor,
		Filters{Sector: "jeunesse"})
	if err != nil {
		t.Fatalf("ComputeParticipants: %v", err)
	}
	if out.Total != 1 || out.Participants[0].ID != 102 {
		t.Errorf("got %+v, want only participant 102", out.Participants)
	}
}

func TestComputeParticipantsEmpty(t *testing.T) {
	st := testStore(t)
	e := testEngine(t, st)

	out, err := e.ComputeParticipants(context.Background(), SystemActor{}, Filters{})
	if err != nil {
		t.Fatalf("ComputeParticipants: %v", err)
	}
	if out.Total != 0 || out.Participants == nil {
		t.Errorf("got %+v, want an empty roster", out)
	}
}
