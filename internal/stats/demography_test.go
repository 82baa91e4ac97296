package stats

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"impactstats/internal/store"
)

func TestComputeDemography(t *testing.T) {
	st := testStore(t)
	addWorkshop(t, st, 1, "jeunesse")
	addSession(t, st, 1, 1, "2024-03-04")

	if err := st.UpsertNeighborhood(store.Neighborhood{
		ID: 1, City: "Creil", Name: "Rouher", Priority: true,
	}); err != nil {
		t.Fatalf("UpsertNeighborhood: %v", err)
	}
	if err := st.UpsertNeighborhood(store.Neighborhood{
		ID: 2, City: "Creil", Name: "Centre", Priority: false,
	}); err != nil {
		t.Fatalf("UpsertNeighborhood: %v", err)
	}

	// Ages as of the fixed clock (2024-06-15): 14, 23, unknown, 74
	// (birthday exactly today), 34.
	addParticipant(t, st, 101, func(p *store.Participant) {
		p.BirthDate = Ptr("2010-01-01")
		p.Gender = Ptr("F")
		p.City = Ptr("Creil")
		p.NeighborhoodID = Ptr(int64(1))
		p.PublicType = "F"
	})
	addParticipant(t, st, 102, func(p *store.Participant) {
		p.BirthDate = Ptr("2000-09-01")
		p.Gender = Ptr("M")
		p.City = Ptr(" Creil ")
		p.NeighborhoodID = Ptr(int64(2))
	})
	addParticipant(t, st, 103)
	addParticipant(t, st, 104, func(p *store.Participant) {
		p.BirthDate = Ptr("1950-06-15")
		p.Gender = Ptr(" ")
		p.City = Ptr("Paris")
	})
	addParticipant(t, st, 105, func(p *store.Participant) {
		p.BirthDate = Ptr("1990-03-10")
		p.Gender = Ptr("F")
		p.City = Ptr("Paris")
	})
	for _, id := range []int64{101, 102, 103, 104, 105} {
		addPresence(t, st, 1, id)
	}
	e := testEngine(t, st)

	out, err := e.ComputeDemography(context.Background(), SystemActor{}, Filters{})
	if err != nil {
		t.Fatalf("ComputeDemography: %v", err)
	}

	want := &DemographyStats{
		AgeAvg: Ptr(36.3),
		AgeBuckets: map[string]int{
			"0-10": 0, "11-17": 1, "18-25": 1,
			"26-59": 1, "60+": 1, "Unknown": 1,
		},
		Gender: map[string]int{"F": 2, "M": 1, "Unknown": 2},
		TopCities: []CityCount{
			{City: "Creil", Count: 2},
			{City: "Paris", Count: 2},
			{City: "Unknown city", Count: 1},
		},
		HomeCity:   HomeCitySplit{Home: 2, Elsewhere: 3},
		Priority:   PrioritySplit{Priority: 1, NonPriority: 1, Unknown: 3},
		PublicType: map[string]int{"F": 1, "H": 4},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("demography mismatch (-want +got):\n%s", diff)
	}

	// Age buckets partition the participant set exactly.
	sum := 0
	for _, n := range out.AgeBuckets {
		sum += n
	}
	if sum != 5 {
		t.Errorf("age bucket sum = %d, want 5", sum)
	}
}

func TestComputeDemographyHomeCityOption(t *testing.T) {
	st := testStore(t)
	addWorkshop(t, st, 1, "jeunesse")
	addSession(t, st, 1, 1, "2024-03-04")
	addParticipant(t, st, 101, func(p *store.Participant) {
		p.City = Ptr("Montataire")
	})
	addPresence(t, st, 1, 101)
	e := testEngine(t, st, WithHomeCity("Montataire"))

	out, err := e.ComputeDemography(context.Background(), SystemActor{}, Filters{})
	if err != nil {
		t.Fatalf("ComputeDemography: %v", err)
	}
	if out.HomeCity.Home != 1 || out.HomeCity.Elsewhere != 0 {
		t.Errorf("HomeCity = %+v, want home 1", out.HomeCity)
	}
}

func TestComputeDemographyEmpty(t *testing.T) {
	st := testStore(t)
	e := testEngine(t, st)

	out, err := e.ComputeDemography(context.Background(), SystemActor{}, Filters{})
	if err != nil {
		t.Fatalf("ComputeDemography: %v", err)
	}
	if out.AgeAvg != nil {
		t.Error("AgeAvg should be nil with no participants")
	}
	if len(out.TopCities) != 0 || len(out.Gender) != 0 {
		t.Errorf("got %+v, want empty collections", out)
	}
}
