package stats

import "context"

// FrequencyStats describes how often participants came back within
// the window. Buckets partition the unique-participant set exactly.
type FrequencyStats struct {
	Uniques        int            `json:"uniques"`
	PresencesTotal int            `json:"presences_total"`
	FreqAvg        float64        `json:"freq_avg"`
	Returning      int            `json:"returning"`
	ReturningRate  float64        `json:"returning_rate"`
	Regulars4Plus  int            `json:"regulars_4plus"`
	Buckets        map[string]int `json:"buckets"`
}

func emptyFrequencyBuckets() map[string]int {
	return map[string]int{"1": 0, "2-3": 0, "4-6": 0, "7+": 0}
}

// ComputeFrequency builds the participation-frequency report.
// Visit counts are window-scoped: history outside the window does
// not contribute.
func (e *Engine) ComputeFrequency(
	ctx context.Context, actor Actor, f Filters,
) (*FrequencyStats, error) {
	_, _, _, presences, ok, err := e.scopedWindow(ctx, actor, f)
	if err != nil {
		return nil, err
	}
	out := &FrequencyStats{Buckets: emptyFrequencyBuckets()}
	if !ok {
		return out, nil
	}

	counts := make(map[int64]int)
	for _, p := range presences {
		counts[p.ParticipantID]++
	}
	out.Uniques = len(counts)
	for _, n := range counts {
		out.PresencesTotal += n
		switch {
		case n <= 1:
			out.Buckets["1"]++
		case n <= 3:
			out.Buckets["2-3"]++
		case n <= 6:
			out.Buckets["4-6"]++
		default:
			out.Buckets["7+"]++
		}
		if n >= 2 {
			out.Returning++
		}
		if n >= 4 {
			out.Regulars4Plus++
		}
	}
	if out.Uniques > 0 {
		out.FreqAvg = round2(
			float64(out.PresencesTotal) / float64(out.Uniques))
		out.ReturningRate = round1(
			float64(out.Returning) / float64(out.Uniques) * 100)
	}
	return out, nil
}
