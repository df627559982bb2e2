// Package slots generates the bookable evening slots for the rolling
// booking window. Everything here is pure: "today" is read from the clock
// each time a sequence is started and nothing is cached.
package slots

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"
)

const (
	DateLayout        = "2006-01-02"
	TimeLayout        = "15:04"
	DisplayDateLayout = "2 January 2006"
	idSeparator       = "T"
)

var (
	ErrInvalidDate = errors.New("date must be in YYYY-MM-DD format")
	ErrUnknownTime = errors.New("time is not one of the offered slot times")
	ErrOutOfWindow = errors.New("date is outside the booking window")
	ErrInvalidID   = errors.New("malformed slot id")
)

// Slot is one bookable (date, time-of-day) pair.
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func (s Slot) ID() string {
	return SlotID(s.Date, s.Time)
}

// Start is the absolute instant the slot begins in loc.
func (s Slot) Start(loc *time.Location) (time.Time, error) {
	start, err := time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidID, s.ID())
	}
	return start, nil
}

// SlotID is the reservation key for a slot, e.g. "2026-10-16T18:00".
func SlotID(date, t string) string {
	return date + idSeparator + t
}

func ParseSlotID(id string) (Slot, error) {
	date, t, ok := strings.Cut(id, idSeparator)
	if !ok || len(date) != len(DateLayout) || len(t) != len(TimeLayout) {
		return Slot{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return Slot{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, err := time.Parse(TimeLayout, t); err != nil {
		return Slot{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return Slot{Date: date, Time: t}, nil
}

// DisplayDate renders a YYYY-MM-DD date the way notifications show it.
func DisplayDate(date string) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", ErrInvalidDate
	}
	return d.Format(DisplayDateLayout), nil
}

type Calendar struct {
	loc   *time.Location
	days  int
	times []string
	now   func() time.Time
}

func NewCalendar(loc *time.Location, days int, times []string) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{
		loc:   loc,
		days:  days,
		times: slices.Clone(times),
		now:   time.Now,
	}
}

// WithClock returns a copy of the calendar reading "now" from clock.
func (c *Calendar) WithClock(clock func() time.Time) *Calendar {
	cp := *c
	cp.now = clock
	return &cp
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

func (c *Calendar) Times() []string {
	return slices.Clone(c.times)
}

func (c *Calendar) today() time.Time {
	now := c.now().In(c.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
}

// Window is [today 00:00, today+days 00:00) in the clinic zone.
func (c *Calendar) Window() (time.Time, time.Time) {
	start := c.today()
	return start, start.AddDate(0, 0, c.days)
}

// Days yields the midnight of each day in the window, today first.
func (c *Calendar) Days() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		start := c.today()
		for i := 0; i < c.days; i++ {
			if !yield(start.AddDate(0, 0, i)) {
				return
			}
		}
	}
}

// Slots yields every day in the window crossed with the ordered slot times.
func (c *Calendar) Slots() iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		for day := range c.Days() {
			date := day.Format(DateLayout)
			for _, t := range c.times {
				if !yield(Slot{Date: date, Time: t}) {
					return
				}
			}
		}
	}
}

// Resolve checks a requested slot against the offered times and the
// current window.
func (c *Calendar) Resolve(date, t string) (Slot, error) {
	day, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return Slot{}, ErrInvalidDate
	}
	if !slices.Contains(c.times, t) {
		return Slot{}, ErrUnknownTime
	}
	start, end := c.Window()
	if day.Before(start) || !day.Before(end) {
		return Slot{}, ErrOutOfWindow
	}
	return Slot{Date: date, Time: t}, nil
}

// ValidDate reports whether date parses as YYYY-MM-DD.
func ValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}
