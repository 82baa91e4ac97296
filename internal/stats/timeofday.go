package stats

import (
	"strconv"
	"strings"

	"impactstats/internal/store"
)

// ParseTimeOfDay parses a time-of-day string into minutes since
// midnight. Historical data carries several spellings: "14:30",
// "14h30", "14h", "14:30:00". Returns (minutes, true) on success;
// out-of-range hours or minutes fail.
func ParseTimeOfDay(t string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(t))
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "h", ":")
	if strings.HasSuffix(s, ":") {
		s += "00"
	}
	parts := strings.Split(s, ":")
	hh, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	mm := 0
	if len(parts) > 1 && parts[1] != "" {
		mm, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, false
		}
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

// sessionDurationMinutes derives a session's duration: end minus
// start when both times parse and end is later, else the workshop's
// default duration, else 0.
func sessionDurationMinutes(sess *store.Session, w *store.Workshop) int {
	start, okStart := ParseTimeOfDay(sess.EffectiveStart())
	end, okEnd := ParseTimeOfDay(sess.EffectiveEnd())
	if okStart && okEnd && end > start {
		return end - start
	}
	if w.DefaultDurationMin != nil && *w.DefaultDurationMin > 0 {
		return *w.DefaultDurationMin
	}
	return 0
}
