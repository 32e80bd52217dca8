package calendar

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, loc *time.Location, s string) time.Time {
	t.Helper()
	tm, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc)
	require.NoError(t, err)
	return tm
}

func TestParseDate_Strict(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"2026-02-18", true},
		{"2024-02-29", true},
		{"2026-02-30", false},
		{"2026-2-18", false},
		{"2026-02-18T00:00:00Z", false},
		{"", false},
		{"tomorrow", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDate(tt.in)
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, tt.in, d.String())
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDate)
			}
		})
	}
}

func TestResolve_RejectsMalformed(t *testing.T) {
	_, err := Resolve("18/02/2026", false, time.Now(), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestDayIndex_Clamp(t *testing.T) {
	start := MustParseDate("2026-02-18")

	assert.Equal(t, 1, DayIndexFor(start, start))
	assert.Equal(t, 2, DayIndexFor(start, start.AddDays(1)))
	assert.Equal(t, 30, DayIndexFor(start, start.AddDays(29)))
	assert.Equal(t, 30, DayIndexFor(start, start.AddDays(30)))
	assert.Equal(t, 30, DayIndexFor(start, start.AddDays(400)))
	assert.Equal(t, 1, DayIndexFor(start, start.AddDays(-1)))
	assert.Equal(t, 1, DayIndexFor(start, start.AddDays(-90)))
}

func TestResolve_Phases(t *testing.T) {
	loc := time.UTC

	before, err := Resolve("2026-02-18", true, at(t, loc, "2026-02-10 12:00:00"), loc)
	require.NoError(t, err)
	assert.Equal(t, PhaseBefore, before.Phase)
	assert.Equal(t, 8, before.DaysUntilStart)
	assert.Equal(t, Countdown{Days: 7, Hours: 12}, before.Countdown)

	first, err := Resolve("2026-02-18", true, at(t, loc, "2026-02-18 00:00:00"), loc)
	require.NoError(t, err)
	assert.Equal(t, PhaseDuring, first.Phase)
	assert.Equal(t, 1, first.DayIndex)
	assert.Equal(t, Countdown{}, first.Countdown)

	last, err := Resolve("2026-02-18", true, at(t, loc, "2026-03-19 23:59:59"), loc)
	require.NoError(t, err)
	assert.Equal(t, PhaseDuring, last.Phase)
	assert.Equal(t, 30, last.DayIndex)

	after, err := Resolve("2026-02-18", true, at(t, loc, "2026-03-20 00:00:00"), loc)
	require.NoError(t, err)
	assert.Equal(t, PhaseAfter, after.Phase)
	assert.Equal(t, 30, after.DayIndex)
}

func TestResolve_CalendarDayNotElapsedHours(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:00 on day 3 and 01:00 on day 4 are only two hours apart.
	late := at(t, loc, "2026-02-20 23:00:00")
	early := at(t, loc, "2026-02-21 01:00:00")

	s1, err := Resolve("2026-02-18", true, late, loc)
	require.NoError(t, err)
	s2, err := Resolve("2026-02-18", true, early, loc)
	require.NoError(t, err)

	assert.Equal(t, 3, s1.DayIndex)
	assert.Equal(t, 4, s2.DayIndex)
}

func TestResolve_UsesFamilyTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC on Feb 17 is already Feb 18 in Tokyo.
	now := time.Date(2026, 2, 17, 20, 0, 0, 0, time.UTC)

	utc, err := Resolve("2026-02-18", true, now, time.UTC)
	require.NoError(t, err)
	jp, err := Resolve("2026-02-18", true, now, tokyo)
	require.NoError(t, err)

	assert.Equal(t, PhaseBefore, utc.Phase)
	assert.Equal(t, PhaseDuring, jp.Phase)
	assert.Equal(t, 1, jp.DayIndex)
}

func TestResolve_ConfirmationWindow(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name      string
		now       string
		confirmed bool
		window    bool
		retro     bool
	}{
		{"three days before", "2026-02-15 09:00:00", false, false, false},
		{"two days before", "2026-02-16 09:00:00", false, true, false},
		{"one day before", "2026-02-17 09:00:00", false, true, false},
		{"start day", "2026-02-18 09:00:00", false, true, true},
		{"window passed", "2026-02-20 09:00:00", false, false, true},
		{"confirmed never prompts", "2026-02-17 09:00:00", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Resolve("2026-02-18", tt.confirmed, at(t, loc, tt.now), loc)
			require.NoError(t, err)
			assert.Equal(t, tt.window, st.InConfirmationWindow)
			assert.Equal(t, tt.retro, st.NeedsRetroactiveConfirmation)
			// The provisional date is never moved.
			assert.Equal(t, "2026-02-18", st.Start.String())
		})
	}
}

func TestRetroactiveOptions(t *testing.T) {
	now := at(t, time.UTC, "2026-02-20 10:00:00")

	opts := RetroactiveOptions(now, time.UTC, 3)
	require.Len(t, opts, 3)
	assert.Equal(t, "2026-02-20", opts[0].String())
	assert.Equal(t, "2026-02-19", opts[1].String())
	assert.Equal(t, "2026-02-18", opts[2].String())

	assert.NoError(t, ValidateConfirmation(MustParseDate("2026-02-18"), now, time.UTC, 3))
	assert.NoError(t, ValidateConfirmation(MustParseDate("2026-02-25"), now, time.UTC, 3))
	assert.ErrorIs(t, ValidateConfirmation(MustParseDate("2026-02-17"), now, time.UTC, 3), ErrInvalidDate)
	assert.ErrorIs(t, ValidateConfirmation(Date{}, now, time.UTC, 3), ErrInvalidDate)
}

func TestDate_JSONRoundTrip(t *testing.T) {
	d := MustParseDate("2026-03-01")
	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-01"`, string(data))

	var back Date
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, d, back)

	require.Error(t, back.UnmarshalJSON([]byte(`"03/01/2026"`)))
}
