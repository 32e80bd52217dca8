package calendar

import (
	"fmt"
	"time"
)

// Clock is a wall-clock time of day, HH:MM.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses a strict 24-hour "HH:MM".
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return Clock{}, fmt.Errorf("%w: clock %q: want HH:MM", ErrInvalidDate, s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: clock %q: %v", ErrInvalidDate, s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int { return c.Hour*60 + c.Minute }

// On returns the instant of c on civil date d in loc.
func (c Clock) On(d Date, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

// Anchors are a family's two daily anchor times.
type Anchors struct {
	PreDawn Clock // last moment to eat before the fast
	Sunset  Clock // fast ends
}

// ParseAnchors parses both anchor times and checks PreDawn < Sunset.
func ParseAnchors(preDawn, sunset string) (Anchors, error) {
	p, err := ParseClock(preDawn)
	if err != nil {
		return Anchors{}, err
	}
	s, err := ParseClock(sunset)
	if err != nil {
		return Anchors{}, err
	}
	if p.minutes() >= s.minutes() {
		return Anchors{}, fmt.Errorf("%w: pre-dawn %s is not before sunset %s", ErrInvalidDate, p, s)
	}
	return Anchors{PreDawn: p, Sunset: s}, nil
}

// AnchorWindow describes where now sits relative to the daily anchors.
type AnchorWindow struct {
	Fasting  bool      `json:"fasting"`
	Next     time.Time `json:"next"`
	NextName string    `json:"next_name"` // "pre_dawn" or "sunset"
}

// Window reports whether now is within fasting hours and which anchor comes next.
func (a Anchors) Window(now time.Time, loc *time.Location) AnchorWindow {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := DateOf(local)
	m := local.Hour()*60 + local.Minute()

	switch {
	case m < a.PreDawn.minutes():
		return AnchorWindow{Next: a.PreDawn.On(today, loc), NextName: "pre_dawn"}
	case m < a.Sunset.minutes():
		return AnchorWindow{Fasting: true, Next: a.Sunset.On(today, loc), NextName: "sunset"}
	default:
		return AnchorWindow{Next: a.PreDawn.On(today.AddDays(1), loc), NextName: "pre_dawn"}
	}
}
