package alert

import (
	"fmt"
	"time"
)

// QuietHours suppresses non-critical delivery inside a daily window.
// Windows may wrap midnight: a 22:00-08:00 window is quiet in the late
// evening and the early morning.
type QuietHours struct {
	enabled      bool
	startMinutes int
	endMinutes   int
}

// NewQuietHours parses the HH:MM start and end of the window.
func NewQuietHours(enabled bool, start, end string) (*QuietHours, error) {
	s, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("invalid quiet start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return nil, fmt.Errorf("invalid quiet end: %w", err)
	}
	return &QuietHours{enabled: enabled, startMinutes: s, endMinutes: e}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Suppressed reports whether now falls inside the quiet window.
func (q *QuietHours) Suppressed(now time.Time) bool {
	if !q.enabled {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if q.startMinutes > q.endMinutes {
		return cur >= q.startMinutes || cur <= q.endMinutes
	}
	return cur >= q.startMinutes && cur <= q.endMinutes
}
