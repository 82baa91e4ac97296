package stats

import (
	"testing"

	"impactstats/internal/store"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		mins int
		ok   bool
	}{
		{"14:30", 14*60 + 30, true},
		{"14h30", 14*60 + 30, true},
		{"14h", 14 * 60, true},
		{"14:30:00", 14*60 + 30, true},
		{"09:05", 9*60 + 5, true},
		{" 8h15 ", 8*60 + 15, true},
		{"00:00", 0, true},
		{"23:59", 23*60 + 59, true},
		{"", 0, false},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"-1:00", 0, false},
		{"noon", 0, false},
	}
	for _, tc := range tests {
		mins, ok := ParseTimeOfDay(tc.in)
		if ok != tc.ok || mins != tc.mins {
			t.Errorf("ParseTimeOfDay(%q) = (%d, %v), want (%d, %v)",
				tc.in, mins, ok, tc.mins, tc.ok)
		}
	}
}

func TestSessionDurationMinutes(t *testing.T) {
	collective := func(start, end *string) *store.Session {
		return &store.Session{
			Kind:      store.KindCollective,
			StartTime: start,
			EndTime:   end,
		}
	}

	t.Run("end minus start", func(t *testing.T) {
		s := collective(Ptr("10:00"), Ptr("12h30"))
		if got := sessionDurationMinutes(s, &store.Workshop{}); got != 150 {
			t.Errorf("got %d, want 150", got)
		}
	})

	t.Run("end before start falls back to workshop default", func(t *testing.T) {
		s := collective(Ptr("12:00"), Ptr("10:00"))
		w := &store.Workshop{DefaultDurationMin: Ptr(90)}
		if got := sessionDurationMinutes(s, w); got != 90 {
			t.Errorf("got %d, want 90", got)
		}
	})

	t.Run("no times and no default is zero", func(t *testing.T) {
		s := collective(nil, nil)
		if got := sessionDurationMinutes(s, &store.Workshop{}); got != 0 {
			t.Errorf("got %d, want 0", got)
		}
	})

	t.Run("individual uses appointment times", func(t *testing.T) {
		s := &store.Session{
			Kind:             store.KindIndividual,
			AppointmentStart: Ptr("14h"),
			AppointmentEnd:   Ptr("15h"),
		}
		if got := sessionDurationMinutes(s, &store.Workshop{}); got != 60 {
			t.Errorf("got %d, want 60", got)
		}
	})
}
