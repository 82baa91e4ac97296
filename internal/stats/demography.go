package stats

import (
	"context"
	"sort"
	"strings"

	"impactstats/internal/store"
)

// Unknown-bucket labels for missing demographic fields.
const (
	unknownAge    = "Unknown"
	unknownGender = "Unknown"
	unknownCity   = "Unknown city"
)

// CityCount is one entry of the top-cities list.
type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

// HomeCitySplit divides participants between the home city and
// everywhere else.
type HomeCitySplit struct {
	Home      int `json:"home"`
	Elsewhere int `json:"elsewhere"`
}

// PrioritySplit divides participants by priority-neighborhood
// status. Unknown means no neighborhood reference at all.
type PrioritySplit struct {
	Priority    int `json:"priority"`
	NonPriority int `json:"non_priority"`
	Unknown     int `json:"unknown"`
}

// DemographyStats describes who the window's participants are. Age
// buckets partition the participant set exactly, Unknown included.
type DemographyStats struct {
	AgeAvg     *float64       `json:"age_avg"`
	AgeBuckets map[string]int `json:"age_buckets"`
	Gender     map[string]int `json:"gender"`
	TopCities  []CityCount    `json:"top_cities"`
	HomeCity   HomeCitySplit  `json:"home_city"`
	Priority   PrioritySplit  `json:"priority_neighborhood"`
	PublicType map[string]int `json:"public_type"`
}

func emptyDemographyStats() *DemographyStats {
	return &DemographyStats{
		AgeBuckets: map[string]int{
			"0-10": 0, "11-17": 0, "18-25": 0,
			"26-59": 0, "60+": 0, unknownAge: 0,
		},
		Gender:     map[string]int{},
		TopCities:  []CityCount{},
		PublicType: map[string]int{},
	}
}

// ComputeDemography builds the demographic report over the distinct
// participants touched by the window.
func (e *Engine) ComputeDemography(
	ctx context.Context, actor Actor, f Filters,
) (*DemographyStats, error) {
	_, _, _, presences, ok, err := e.scopedWindow(ctx, actor, f)
	if err != nil {
		return nil, err
	}
	out := emptyDemographyStats()
	if !ok {
		return out, nil
	}
	pids := uniqueParticipantIDs(presences)
	if len(pids) == 0 {
		return out, nil
	}

	participants, err := e.store.ParticipantsByIDs(ctx, pids)
	if err != nil {
		return nil, err
	}
	neighborhoods, err := e.loadNeighborhoods(ctx, participants)
	if err != nil {
		return nil, err
	}

	today := e.today()
	ageSum, ageCount := 0, 0
	cities := make(map[string]int)
	for i := range participants {
		p := &participants[i]

		switch age := p.Age(today); {
		case age == nil:
			out.AgeBuckets[unknownAge]++
		case *age <= 10:
			out.AgeBuckets["0-10"]++
			ageSum, ageCount = ageSum+*age, ageCount+1
		case *age <= 17:
			out.AgeBuckets["11-17"]++
			ageSum, ageCount = ageSum+*age, ageCount+1
		case *age <= 25:
			out.AgeBuckets["18-25"]++
			ageSum, ageCount = ageSum+*age, ageCount+1
		case *age <= 59:
			out.AgeBuckets["26-59"]++
			ageSum, ageCount = ageSum+*age, ageCount+1
		default:
			out.AgeBuckets["60+"]++
			ageSum, ageCount = ageSum+*age, ageCount+1
		}

		gender := unknownGender
		if p.Gender != nil {
			if g := strings.TrimSpace(*p.Gender); g != "" {
				gender = g
			}
		}
		out.Gender[gender]++

		city := unknownCity
		if p.City != nil {
			if c := strings.TrimSpace(*p.City); c != "" {
				city = c
			}
		}
		cities[city]++
		if strings.EqualFold(city, e.homeCity) {
			out.HomeCity.Home++
		} else {
			out.HomeCity.Elsewhere++
		}

		switch {
		case p.NeighborhoodID == nil:
			out.Priority.Unknown++
		case neighborhoods[*p.NeighborhoodID].Priority:
			out.Priority.Priority++
		default:
			out.Priority.NonPriority++
		}

		publicType := p.PublicType
		if publicType == "" {
			publicType = store.DefaultPublicType
		}
		out.PublicType[publicType]++
	}

	if ageCount > 0 {
		avg := round1(float64(ageSum) / float64(ageCount))
		out.AgeAvg = &avg
	}

	for city, n := range cities {
		out.TopCities = append(out.TopCities, CityCount{City: city, Count: n})
	}
	sort.Slice(out.TopCities, func(i, j int) bool {
		a, b := out.TopCities[i], out.TopCities[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.City < b.City
	})
	if len(out.TopCities) > 10 {
		out.TopCities = out.TopCities[:10]
	}
	return out, nil
}

func (e *Engine) loadNeighborhoods(
	ctx context.Context, participants []store.Participant,
) (map[int64]store.Neighborhood, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for i := range participants {
		if id := participants[i].NeighborhoodID; id != nil && !seen[*id] {
			seen[*id] = true
			ids = append(ids, *id)
		}
	}
	if len(ids) == 0 {
		return map[int64]store.Neighborhood{}, nil
	}
	return e.store.NeighborhoodsByIDs(ctx, ids)
}
