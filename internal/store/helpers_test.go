package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
)

// testNow is day 3 of a season starting 2026-02-18.
var testNow = time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// createTestStore returns a hydrated store over a MemoryPersister with a
// fixed clock and sequential IDs.
func createTestStore(t *testing.T) (*Store, *MemoryPersister, *clock) {
	t.Helper()
	p := NewMemoryPersister()
	c := &clock{t: testNow}
	s := New(Options{Persister: p, IDs: domain.NewFixedGenerator("id"), Now: c.Now})
	require.NoError(t, s.Hydrate(context.Background()))
	return s, p, c
}

// createSQLitePersister opens a persister in a temp directory.
func createSQLitePersister(t *testing.T) (*SQLitePersister, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crescent.db")
	p, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, path
}

type household struct {
	family domain.Family
	parent domain.Profile
	child  domain.Profile
	little domain.Profile
}

// seedHousehold sets up a family with one adult, one child and one little star.
func seedHousehold(t *testing.T, s *Store) household {
	t.Helper()
	var h household
	var err error
	h.family, err = s.SetupFamily(FamilySetup{
		OwnerID:     "user-1",
		Name:        "The Hadids",
		SeasonStart: calendar.MustParseDate("2026-02-18"),
		Timezone:    "UTC",
		PreDawnTime: "05:10",
		SunsetTime:  "17:45",
	})
	require.NoError(t, err)
	h.parent, err = s.AddProfile(ProfileInput{Nickname: "Mama", Type: domain.ProfileAdult})
	require.NoError(t, err)
	h.child, err = s.AddProfile(ProfileInput{Nickname: "Yusuf", Type: domain.ProfileChild})
	require.NoError(t, err)
	h.little, err = s.AddProfile(ProfileInput{Nickname: "Noor", Type: domain.ProfileLittleStar})
	require.NoError(t, err)
	return h
}

// confirmAll resolves every queued action as if the server accepted it.
func confirmAll(s *Store) {
	for _, a := range s.Pending() {
		s.ConfirmAction(a, "srv-"+a.RecordKey)
	}
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(v string) *string { return &v }
