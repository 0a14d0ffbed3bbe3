package dataset

import (
	"fmt"
	"time"
)

// DielPeriod is the assumed length of one dark/light cycle in seconds.
const DielPeriod int64 = 24 * 60 * 60

// Clock is a time of day expressed as an offset from midnight.
type Clock time.Duration

// ParseClock parses an HH:MM:SS time of day.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid clock time %q: %v", ErrValue, s, err)
	}
	return Clock(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second), nil
}

func (c Clock) String() string {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// ClockOf returns the time of day of t.
func ClockOf(t time.Time) Clock {
	h, m, s := t.Clock()
	return Clock(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// Rounding directions for RoundMinutes.
const (
	RoundUp   = "up"
	RoundDown = "down"
)

// RoundMinutes drops the seconds of t. With RoundUp a non-zero seconds residual
// moves t to the next minute boundary. Any other direction returns false.
func RoundMinutes(t time.Time, how string) (time.Time, bool) {
	floor := t.Truncate(time.Minute)
	switch how {
	case RoundDown:
		return floor, true
	case RoundUp:
		if floor.Equal(t) {
			return floor, true
		}
		return floor.Add(time.Minute), true
	default:
		return time.Time{}, false
	}
}

// FrequencySeconds converts a sampling period to whole seconds.
func FrequencySeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}

// synthesizePhase marks rows between darkStart and darkEnd as Dark, the rest as Light.
// A window that wraps midnight (18:00 to 06:00) is handled.
func synthesizePhase(rows []Observation, darkStart, darkEnd Clock) {
	for i := range rows {
		c := ClockOf(rows[i].Time)
		var dark bool
		if darkStart <= darkEnd {
			dark = c >= darkStart && c < darkEnd
		} else {
			dark = c >= darkStart || c < darkEnd
		}
		if dark {
			rows[i].Phase = Dark
		} else {
			rows[i].Phase = Light
		}
	}
}
