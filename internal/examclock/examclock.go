// Package examclock holds the time-window arithmetic shared by the exam session flows.
package examclock

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Clock abstracts the wall clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

// Advance moves the fixed clock forward.
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }

var ErrInvalidDuration = errors.New("exam duration must be a positive number of minutes")

// ParseDuration parses the stored duration text as whole minutes.
func ParseDuration(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return 0, ErrInvalidDuration
	}
	return n, nil
}

// MinutesBetween returns the whole minutes from start to end, truncated. Negative spans yield 0.
func MinutesBetween(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// Expired reports whether the elapsed span has gone past the allowed minutes.
func Expired(durationMinutes int, start, end time.Time) bool {
	return durationMinutes < MinutesBetween(start, end)
}

// SameDay compares calendar dates. The schedule date is a date-only value and
// is compared as stored; now is converted into loc first.
func SameDay(scheduleDate, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	y1, m1, d1 := scheduleDate.Date()
	y2, m2, d2 := now.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
