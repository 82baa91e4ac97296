package stats

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComputeTransversality(t *testing.T) {
	st := testStore(t)
	addWorkshop(t, st, 1, "jeunesse")
	addWorkshop(t, st, 2, "famille")
	addWorkshop(t, st, 3, "adultes")
	addSession(t, st, 1, 1, "2024-01-15")
	addSession(t, st, 2, 2, "2024-02-15")
	addSession(t, st, 3, 3, "2024-02-20")

	// 101 crosses jeunesse and famille, 102 stays in jeunesse,
	// 103 crosses jeunesse and adultes.
	addParticipant(t, st, 101)
	addParticipant(t, st, 102)
	addParticipant(t, st, 103)
	addPresence(t, st, 1, 101)
	addPresence(t, st, 2, 101)
	addPresence(t, st, 1, 102)
	addPresence(t, st, 1, 103)
	addPresence(t, st, 3, 103)
	e := testEngine(t, st)
	ctx := context.Background()
	window := Filters{DateFrom: "2024-01-01", DateTo: "2024-02-29"}

	t.Run("global scope", func(t *testing.T) {
		out, err := e.ComputeTransversality(ctx, SystemActor{}, window)
		if err != nil {
			t.Fatalf("ComputeTransversality: %v", err)
		}
		if out.Uniques != 3 || out.MultiCount != 2 {
			t.Errorf("got uniques %d multi %d, want 3 and 2",
				out.Uniques, out.MultiCount)
		}
		if out.MultiRate != 66.7 {
			t.Errorf("MultiRate = %v, want 66.7", out.MultiRate)
		}
		if len(out.TopCross) != 0 {
			t.Errorf("TopCross = %v, want empty without a home sector", out.TopCross)
		}
	})

	t.Run("sector scope still sees other sectors", func(t *testing.T) {
		f := window
		f.Sector = "jeunesse"
		out, err := e.ComputeTransversality(ctx, SystemActor{}, f)
		if err != nil {
			t.Fatalf("ComputeTransversality: %v", err)
		}
		if out.ScopeSector != "jeunesse" {
			t.Errorf("ScopeSector = %q", out.ScopeSector)
		}
		// The window only holds jeunesse presences, but the sector
		// sets are looked up across all sectors.
		if out.MultiCount != 2 {
			t.Errorf("MultiCount = %d, want 2", out.MultiCount)
		}
		want := []CrossSector{
			{Sector: "adultes", SharedParticipants: 1},
			{Sector: "famille", SharedParticipants: 1},
		}
		if diff := cmp.Diff(want, out.TopCross); diff != "" {
			t.Errorf("TopCross mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("date bounds trim sector sets", func(t *testing.T) {
		f := Filters{DateFrom: "2024-01-01", DateTo: "2024-01-31"}
		out, err := e.ComputeTransversality(ctx, SystemActor{}, f)
		if err != nil {
			t.Fatalf("ComputeTransversality: %v", err)
		}
		// Only the January session is visible, so nobody crosses.
		if out.Uniques != 3 || out.MultiCount != 0 {
			t.Errorf("got uniques %d multi %d, want 3 and 0",
				out.Uniques, out.MultiCount)
		}
	})
}

func TestComputeTransversalityEmpty(t *testing.T) {
	st := testStore(t)
	e := testEngine(t, st)

	out, err := e.ComputeTransversality(context.Background(), SystemActor{}, Filters{})
	if err != nil {
		t.Fatalf("ComputeTransversality: %v", err)
	}
	if out.Uniques != 0 || out.MultiCount != 0 || out.MultiRate != 0 {
		t.Errorf("got %+v, want zeros", out)
	}
	if out.TopCross == nil {
		t.Error("TopCross should be empty, not nil")
	}
}

func TestComputeTransversalityRestricted(t *testing.T) {
	st := testStore(t)
	addWorkshop(t, st, 1, "jeunesse")
	addSession(t, st, 1, 1, "2024-01-15")
	addParticipant(t, st, 101)
	addPresence(t, st, 1, 101)
	e := testEngine(t, st)

	out, err := e.ComputeTransversality(context.Background(), fakeActor{}, Filters{})
	if err != nil {
		t.Fatalf("ComputeTransversality: %v", err)
	}
	if out.Uniques != 0 {
		t.Errorf("restricted actor saw %d uniques", out.Uniques)
	}
}
