package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock hour and minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM" in 24-hour form.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("time of day must be HH:MM, got %q", value)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// NextTrigger returns the first instant strictly after now whose wall-clock
// time in loc is at. On a day where at falls in a DST gap the normalised
// instant is used.
func NextTrigger(now time.Time, at TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	year, month, day := local.Date()
	for offset := 0; ; offset++ {
		candidate := time.Date(year, month, day+offset, at.Hour, at.Minute, 0, 0, loc)
		if candidate.After(now) {
			return candidate
		}
	}
}
