// Package hours gates checkout on the restaurant's business hours.
//
// A Schedule holds one record per weekday in a single fixed business
// timezone. Updates replace a whole day's record under a write lock, so
// readers never observe a partially-updated day.
package hours

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// Reason enumerates why the business is closed at a given instant.
type Reason string

const (
	ReasonClosedToday        Reason = "closed_today"
	ReasonHoursNotConfigured Reason = "hours_not_configured"
	ReasonBeforeOpening      Reason = "before_opening"
	ReasonAfterClosing       Reason = "after_closing"
)

// ErrInvalidWeekday is returned when a weekday index is outside 0..6.
var ErrInvalidWeekday = errors.New("weekday must be between 0 (Monday) and 6 (Sunday)")

// Clock is a wall-clock time of day in the business timezone.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	var c Clock
	if _, err := fmt.Sscanf(s, "%d:%d", &c.Hour, &c.Minute); err != nil {
		return Clock{}, errors.Wrapf(err, "parse clock %q", s)
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return Clock{}, errors.Errorf("clock %q out of range", s)
	}
	return c, nil
}

// String formats the clock as "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// Day is one weekday's configuration. Nil Open/Close with Closed == false
// means the day exists but has no configured hours.
type Day struct {
	Open   *Clock
	Close  *Clock
	Closed bool
}

// Status reports whether the business is open at some instant. When it is
// closed, Reason says why and NextOpen (if non-nil) is the nearest future
// opening instant within the next seven days.
type Status struct {
	Open     bool
	Reason   Reason
	NextOpen *time.Time
}

// Schedule is the process-wide business-hours configuration. Weekdays are
// indexed 0 (Monday) through 6 (Sunday).
type Schedule struct {
	mu   sync.RWMutex
	days [7]Day
	loc  *time.Location
}

// New creates a Schedule in the given business timezone.
func New(loc *time.Location, days [7]Day) *Schedule {
	return &Schedule{days: days, loc: loc}
}

// Default returns the standard week: Mon-Fri 09:00-22:00, Sat 10:00-23:00,
// Sun 10:00-21:00.
func Default() [7]Day {
	open := func(oh, om, ch, cm int) Day {
		return Day{Open: &Clock{oh, om}, Close: &Clock{ch, cm}}
	}
	var days [7]Day
	for wd := 0; wd < 5; wd++ {
		days[wd] = open(9, 0, 22, 0)
	}
	days[5] = open(10, 0, 23, 0)
	days[6] = open(10, 0, 21, 0)
	return days
}

// Location returns the business timezone.
func (s *Schedule) Location() *time.Location {
	return s.loc
}

// Week returns a snapshot of all seven day records.
func (s *Schedule) Week() [7]Day {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.days
}

// Replace swaps the whole record for one weekday (0=Monday .. 6=Sunday).
func (s *Schedule) Replace(weekday int, d Day) error {
	if weekday < 0 || weekday > 6 {
		return ErrInvalidWeekday
	}
	s.mu.Lock()
	s.days[weekday] = d
	s.mu.Unlock()
	return nil
}

// StatusAt reports whether the business is open at t. The instant is
// normalized to the business timezone before any comparison.
func (s *Schedule) StatusAt(t time.Time) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t = t.In(s.loc)
	day := s.days[mondayWeekday(t)]

	if day.Closed {
		return Status{Reason: ReasonClosedToday, NextOpen: s.nextOpenLocked(t)}
	}
	if day.Open == nil || day.Close == nil {
		return Status{Reason: ReasonHoursNotConfigured, NextOpen: s.nextOpenLocked(t)}
	}

	minute := t.Hour()*60 + t.Minute()
	switch {
	case minute < day.Open.minutes():
		return Status{Reason: ReasonBeforeOpening, NextOpen: s.nextOpenLocked(t)}
	case minute > day.Close.minutes():
		return Status{Reason: ReasonAfterClosing, NextOpen: s.nextOpenLocked(t)}
	default:
		return Status{Open: true}
	}
}

// nextOpenLocked finds the nearest future opening instant, scanning today
// (when the current time is still before today's opening) and then up to
// seven days forward. Callers must hold at least the read lock.
func (s *Schedule) nextOpenLocked(t time.Time) *time.Time {
	today := s.days[mondayWeekday(t)]
	if !today.Closed && today.Open != nil {
		minute := t.Hour()*60 + t.Minute()
		if minute < today.Open.minutes() {
			at := atClock(t, *today.Open, s.loc)
			return &at
		}
	}

	for i := 1; i <= 7; i++ {
		next := t.AddDate(0, 0, i)
		day := s.days[mondayWeekday(next)]
		if day.Closed || day.Open == nil {
			continue
		}
		at := atClock(next, *day.Open, s.loc)
		return &at
	}
	return nil
}

// mondayWeekday maps time.Weekday (Sunday=0) to the schedule's
// Monday=0 convention.
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func atClock(t time.Time, c Clock, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, loc)
}
