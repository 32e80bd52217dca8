package calendar

import (
	"fmt"
	"time"
)

const (
	// SeasonLength is the number of calendar days in the season window.
	SeasonLength = 30

	// ConfirmationLeadDays is how many days before a provisional start the
	// family is prompted to confirm the observed start date.
	ConfirmationLeadDays = 2

	// DefaultRetroactiveDays is how many recent calendar days may be picked
	// as day 1 when confirming after the fact.
	DefaultRetroactiveDays = 3
)

// Phase locates "now" relative to the season window.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseDuring Phase = "during"
	PhaseAfter  Phase = "after"
)

// Countdown is the remaining time until the season starts.
type Countdown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// Status is the resolved calendar state for one instant.
type Status struct {
	Start     Date  `json:"start"`
	Confirmed bool  `json:"confirmed"`
	Today     Date  `json:"today"`
	Phase     Phase `json:"phase"`

	// DayIndex is 1-based and always within [1, SeasonLength].
	// Before the season it is 1; after the season it is SeasonLength.
	DayIndex int `json:"day_index"`

	// DaysUntilStart is negative once the season has started.
	DaysUntilStart int `json:"days_until_start"`

	// Countdown is only meaningful in PhaseBefore; it is zero otherwise.
	Countdown Countdown `json:"countdown"`

	// InConfirmationWindow is true while an unconfirmed start is 0..2 days away.
	InConfirmationWindow bool `json:"in_confirmation_window"`

	// NeedsRetroactiveConfirmation is true once the season is running on an
	// unconfirmed date. The provisional date remains authoritative.
	NeedsRetroactiveConfirmation bool `json:"needs_retroactive_confirmation"`
}

// Resolve parses start and resolves the season status at now in loc.
// Malformed start strings are rejected rather than defaulted.
func Resolve(start string, confirmed bool, now time.Time, loc *time.Location) (Status, error) {
	d, err := ParseDate(start)
	if err != nil {
		return Status{}, fmt.Errorf("resolve season: %w", err)
	}
	return ResolveDate(d, confirmed, now, loc), nil
}

// ResolveDate resolves the season status for an already-parsed start date.
func ResolveDate(start Date, confirmed bool, now time.Time, loc *time.Location) Status {
	if loc == nil {
		loc = time.UTC
	}
	today := Today(now, loc)
	until := start.DaysSince(today)

	st := Status{
		Start:          start,
		Confirmed:      confirmed,
		Today:          today,
		DaysUntilStart: until,
		DayIndex:       DayIndexFor(start, today),
	}

	switch {
	case until > 0:
		st.Phase = PhaseBefore
		st.Countdown = countdown(start.Midnight(loc).Sub(now))
	case today.DaysSince(start) >= SeasonLength:
		st.Phase = PhaseAfter
	default:
		st.Phase = PhaseDuring
	}

	if !confirmed {
		st.InConfirmationWindow = until >= 0 && until <= ConfirmationLeadDays
		st.NeedsRetroactiveConfirmation = st.Phase == PhaseDuring
	}
	return st
}

// DayIndexFor returns the 1-based season day of date d for a season starting
// at start, clamped to [1, SeasonLength].
func DayIndexFor(start, d Date) int {
	idx := d.DaysSince(start) + 1
	if idx < 1 {
		return 1
	}
	if idx > SeasonLength {
		return SeasonLength
	}
	return idx
}

// End returns the last calendar day of the season starting at start.
func End(start Date) Date {
	return start.AddDays(SeasonLength - 1)
}

// InSeason reports whether d falls inside the season window.
func InSeason(start, d Date) bool {
	n := d.DaysSince(start)
	return n >= 0 && n < SeasonLength
}

func countdown(d time.Duration) Countdown {
	if d <= 0 {
		return Countdown{}
	}
	total := int(d / time.Second)
	return Countdown{
		Days:    total / 86400,
		Hours:   (total % 86400) / 3600,
		Minutes: (total % 3600) / 60,
		Seconds: total % 60,
	}
}

// RetroactiveOptions returns the last n calendar days, today first, any of
// which may be selected as day 1 when confirming a start date after the fact.
func RetroactiveOptions(now time.Time, loc *time.Location, n int) []Date {
	if n <= 0 {
		n = DefaultRetroactiveDays
	}
	today := Today(now, loc)
	opts := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		opts = append(opts, today.AddDays(-i))
	}
	return opts
}

// ValidateConfirmation checks a confirmed start date chosen at now.
// Future dates are allowed (confirming ahead of time); past dates must be
// among the last n calendar days.
func ValidateConfirmation(choice Date, now time.Time, loc *time.Location, n int) error {
	if choice.IsZero() {
		return fmt.Errorf("%w: empty start date", ErrInvalidDate)
	}
	if n <= 0 {
		n = DefaultRetroactiveDays
	}
	today := Today(now, loc)
	back := today.DaysSince(choice)
	if back >= n {
		return fmt.Errorf("%w: %s is more than %d days ago", ErrInvalidDate, choice, n-1)
	}
	return nil
}
