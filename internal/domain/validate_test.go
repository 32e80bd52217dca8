package domain

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crescent/internal/calendar"
)

func validRecord(kind Kind) Record {
	return Record{
		ClientID:    "c-1",
		Kind:        kind,
		FamilyID:    "fam-1",
		ProfileID:   "p-1",
		Date:        calendar.MustParseDate("2026-02-18"),
		DayIndex:    1,
		Points:      5,
		Status:      FastFull,
		ToProfileID: "p-2",
		Body:        "hello",
		UnlockDay:   30,
	}
}

func TestNormalizeText_NFC(t *testing.T) {
	// "e" + combining acute accent composes to a single rune.
	decomposed := "  Zine\u0301b "
	assert.Equal(t, "Zin\u00e9b", NormalizeText(decomposed))
}

func TestNormalizeProfile(t *testing.T) {
	p, err := NormalizeProfile(Profile{ID: "p-1", Nickname: "  Amina ", Type: ProfileChild})
	require.NoError(t, err)
	assert.Equal(t, "Amina", p.Nickname)

	_, err = NormalizeProfile(Profile{ID: "p-1", Nickname: "  ", Type: ProfileChild})
	assert.Equal(t, ErrCodeRequired, ValidationCodeOf(err))

	_, err = NormalizeProfile(Profile{ID: "p-1", Nickname: "X", Type: "grandparent"})
	assert.Equal(t, ErrCodeInvalidValue, ValidationCodeOf(err))

	_, err = NormalizeProfile(Profile{ID: "p-1", Nickname: strings.Repeat("ß", MaxNicknameLen+1), Type: ProfileAdult})
	assert.Equal(t, ErrCodeInvalidValue, ValidationCodeOf(err))
}

func TestNormalizeFamily(t *testing.T) {
	f := Family{
		ID:          "fam-1",
		Name:        " The Qureshis ",
		SeasonStart: calendar.MustParseDate("2026-02-18"),
		Timezone:    "Europe/London",
		PreDawnTime: "05:10",
		SunsetTime:  "17:40",
	}
	got, err := NormalizeFamily(f)
	require.NoError(t, err)
	assert.Equal(t, "The Qureshis", got.Name)

	bad := f
	bad.Timezone = "Mars/Olympus"
	_, err = NormalizeFamily(bad)
	assert.Equal(t, ErrCodeInvalidValue, ValidationCodeOf(err))

	bad = f
	bad.SunsetTime = "04:00"
	_, err = NormalizeFamily(bad)
	assert.Equal(t, ErrCodeInvalidValue, ValidationCodeOf(err))

	bad = f
	bad.SeasonStart = calendar.Date{}
	_, err = NormalizeFamily(bad)
	assert.Equal(t, ErrCodeRequired, ValidationCodeOf(err))
}

func TestNormalizeRecord_KindRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
		code   ValidationCode
	}{
		{"valid reward", func(r *Record) {}, ""},
		{"unknown kind", func(r *Record) { r.Kind = "prayer" }, ErrCodeInvalidValue},
		{"zero points", func(r *Record) { r.Points = 0 }, ErrCodeInvalidValue},
		{"missing profile", func(r *Record) { r.ProfileID = "" }, ErrCodeRequired},
		{"missing date", func(r *Record) { r.Date = calendar.Date{} }, ErrCodeRequired},
		{"day index zero", func(r *Record) { r.DayIndex = 0 }, ErrCodeInvalidValue},
		{"day index 31", func(r *Record) { r.DayIndex = 31 }, ErrCodeInvalidValue},
		{"bad fast status", func(r *Record) { r.Kind = KindFastLog; r.Status = "maybe" }, ErrCodeInvalidValue},
		{"message without recipient", func(r *Record) { r.Kind = KindMessage; r.ToProfileID = "" }, ErrCodeRequired},
		{"capsule unlock day", func(r *Record) { r.Kind = KindTimeCapsule; r.UnlockDay = 0 }, ErrCodeInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord(KindReward)
			tt.mutate(&r)
			_, err := NormalizeRecord(r)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, tt.code, ValidationCodeOf(err))
		})
	}
}

func TestNormalizePatch(t *testing.T) {
	yes := true
	caption := "  iftar at grandma's "

	p, err := NormalizePatch(KindMemory, RecordPatch{Favorite: &yes, Caption: &caption})
	require.NoError(t, err)
	assert.Equal(t, "iftar at grandma's", *p.Caption)

	_, err = NormalizePatch(KindReward, RecordPatch{Favorite: &yes})
	assert.Equal(t, ErrCodeImmutable, ValidationCodeOf(err))

	_, err = NormalizePatch(KindMessage, RecordPatch{Caption: &caption})
	assert.Equal(t, ErrCodeImmutable, ValidationCodeOf(err))

	_, err = NormalizePatch(KindMemory, RecordPatch{})
	assert.Equal(t, ErrCodeRequired, ValidationCodeOf(err))
}

func TestUpsertKey(t *testing.T) {
	r := validRecord(KindFastLog)
	assert.Equal(t, "fast_log/p-1/2026-02-18", r.UpsertKey())

	assert.Empty(t, validRecord(KindReward).UpsertKey())
}

func TestPendingAction_PayloadRoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	fast := validRecord(KindFastLog)
	a, err := NewRecordAction("a-1", fast, now)
	require.NoError(t, err)
	assert.Equal(t, ActionUpsertRecord, a.Kind)
	assert.Equal(t, "c-1", a.RecordKey)

	back, err := a.Record()
	require.NoError(t, err)
	assert.Equal(t, fast, back)

	_, err = a.Profile()
	assert.Error(t, err)

	reward, err := NewRecordAction("a-2", validRecord(KindReward), now)
	require.NoError(t, err)
	assert.Equal(t, ActionInsertRecord, reward.Kind)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("id")
	assert.Equal(t, "id-1", g.Generate())
	assert.Equal(t, "id-2", g.Generate())
}

func TestConnectionCode(t *testing.T) {
	code := NewConnectionCode()
	require.Len(t, code, ConnectionCodeLen)
	for _, c := range code {
		assert.Contains(t, connectionAlphabet, string(c))
	}
}
