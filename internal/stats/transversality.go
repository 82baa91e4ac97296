package stats

import (
	"context"
	"sort"
	"strings"
)

// CrossSector is one sector sharing participants with the home
// sector.
type CrossSector struct {
	Sector             string `json:"sector"`
	SharedParticipants int    `json:"shared_participants"`
}

// TransversalityStats measures how many participants of the window
// are active in more than one sector.
type TransversalityStats struct {
	ScopeSector string        `json:"scope_sector"`
	Uniques     int           `json:"uniques"`
	MultiCount  int           `json:"multi_count"`
	MultiRate   float64       `json:"multi_rate"`
	TopCross    []CrossSector `json:"top_cross"`
}

// ComputeTransversality builds the cross-sector report. Participant
// sector sets are looked up across all sectors, date-bounded but not
// restricted to the actor's scope, so single-sector actors still see
// how far their participants travel.
func (e *Engine) ComputeTransversality(
	ctx context.Context, actor Actor, f Filters,
) (*TransversalityStats, error) {
	f, scope, _, presences, ok, err := e.scopedWindow(ctx, actor, f)
	if err != nil {
		return nil, err
	}
	out := &TransversalityStats{TopCross: []CrossSector{}}
	if !ok {
		return out, nil
	}
	out.ScopeSector = scope.Sector

	pids := uniqueParticipantIDs(presences)
	out.Uniques = len(pids)
	if len(pids) == 0 {
		return out, nil
	}

	sectorsByPID, err := e.store.SectorsByParticipant(
		ctx, pids, f.DateFrom, f.DateTo)
	if err != nil {
		return nil, err
	}
	// Trim sector strings before comparing; historical data has
	// stray whitespace.
	for pid, set := range sectorsByPID {
		trimmed := make(map[string]bool, len(set))
		for s := range set {
			if t := strings.TrimSpace(s); t != "" {
				trimmed[t] = true
			}
		}
		sectorsByPID[pid] = trimmed
	}

	for _, set := range sectorsByPID {
		if len(set) >= 2 {
			out.MultiCount++
		}
	}
	out.MultiRate = round1(
		float64(out.MultiCount) / float64(out.Uniques) * 100)

	if scope.Sector != "" {
		cross := make(map[string]int)
		for _, pid := range pids {
			set := sectorsByPID[pid]
			if !set[scope.Sector] {
				continue
			}
			for other := range set {
				if other != scope.Sector {
					cross[other]++
				}
			}
		}
		for sector, n := range cross {
			out.TopCross = append(out.TopCross, CrossSector{
				Sector:             sector,
				SharedParticipants: n,
			})
		}
		sort.Slice(out.TopCross, func(i, j int) bool {
			a, b := out.TopCross[i], out.TopCross[j]
			if a.SharedParticipants != b.SharedParticipants {
				return a.SharedParticipants > b.SharedParticipants
			}
			return a.Sector < b.Sector
		})
		if len(out.TopCross) > 10 {
			out.TopCross = out.TopCross[:10]
		}
	}
	return out, nil
}
