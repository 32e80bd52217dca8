package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
)

func remoteOf(s *Store) RemoteState {
	f, _ := s.Family()
	return RemoteState{Family: &f, Profiles: s.Profiles(), Records: []domain.Record{}}
}

func TestReplaceFromRemote_KeepsUnresolvedWrites(t *testing.T) {
	s, _, c := createTestStore(t)
	h := seedHousehold(t, s)
	confirmAll(s)
	rs := remoteOf(s)

	stale, err := s.AddReward(h.child.ID, 3, "stale")
	require.NoError(t, err)
	s.ConfirmAction(s.Pending()[0], "srv-stale")
	unsent, err := s.AddReward(h.child.ID, 4, "unsent")
	require.NoError(t, err)
	landed, err := s.AddReward(h.parent.ID, 5, "landed")
	require.NoError(t, err)

	other := domain.Record{
		ID: "srv-other", ClientID: "other-device-1", Kind: domain.KindReward,
		FamilyID: h.family.ID, ProfileID: h.little.ID, Points: 2,
		Date: calendar.MustParseDate("2026-02-20"), DayIndex: 3,
	}
	landedRemote := landed
	landedRemote.ID = "srv-landed"
	rs.Records = []domain.Record{other, landedRemote}

	c.Advance(time.Minute)
	s.ReplaceFromRemote(rs)

	_, ok := s.Record(stale.ClientID)
	assert.False(t, ok, "confirmed records missing on the server are dropped")
	got, ok := s.Record(unsent.ClientID)
	require.True(t, ok)
	assert.Empty(t, got.ID)
	got, ok = s.Record(landed.ClientID)
	require.True(t, ok)
	assert.Equal(t, "srv-landed", got.ID)
	_, ok = s.Record(other.ClientID)
	assert.True(t, ok)

	assert.Equal(t, 11, s.TotalPoints())
	assert.Len(t, s.Pending(), 2, "the queue is untouched")
	assert.Equal(t, testNow.Add(time.Minute), s.LastSyncedAt())
}

func TestReplaceFromRemote_OncePerDayLocalWins(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	confirmAll(s)
	rs := remoteOf(s)

	local, err := s.LogFast(h.child.ID, domain.FastFull)
	require.NoError(t, err)
	rs.Records = []domain.Record{{
		ID: "srv-fast", ClientID: "other-device-fast", Kind: domain.KindFastLog,
		FamilyID: h.family.ID, ProfileID: h.child.ID, Status: domain.FastPartial,
		Date: local.Date, DayIndex: local.DayIndex,
	}}

	s.ReplaceFromRemote(rs)
	logs := s.Records(Filter{Kind: domain.KindFastLog})
	require.Len(t, logs, 1)
	assert.Equal(t, local.ClientID, logs[0].ClientID)
	assert.Equal(t, domain.FastFull, logs[0].Status)
}

func TestReplaceFromRemote_ReappliesPendingEdits(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	mem, err := s.AddMemory(h.child.ID, "lanterns")
	require.NoError(t, err)
	confirmAll(s)
	mem, _ = s.Record(mem.ClientID)
	rs := remoteOf(s)
	rs.Records = []domain.Record{mem}

	_, err = s.UpdateRecord(mem.ClientID, domain.RecordPatch{Favorite: boolPtr(true)})
	require.NoError(t, err)
	s.ReplaceFromRemote(rs)

	got, ok := s.Record(mem.ClientID)
	require.True(t, ok)
	assert.True(t, got.Favorite)
	assert.Equal(t, mem.ID, got.ID)
}

func TestReplaceFromRemote_FamilyAndProfiles(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	confirmAll(s)
	rs := remoteOf(s)
	rs.Family.Premium = true
	rs.Family.Tier = "family_plus"

	_, err := s.UpdateFamily(FamilyUpdate{Name: strPtr("Renamed")})
	require.NoError(t, err)
	_, err = s.UpdateProfile(h.child.ID, ProfileUpdate{Nickname: strPtr("Yusi")})
	require.NoError(t, err)
	remoteOnly := domain.Profile{ID: "p-remote", FamilyID: h.family.ID, Nickname: "Jiddo", Type: domain.ProfileAdult, Active: true}
	rs.Profiles = append(rs.Profiles, remoteOnly)

	s.ReplaceFromRemote(rs)

	f, _ := s.Family()
	assert.Equal(t, "Renamed", f.Name)
	assert.True(t, f.Premium)
	assert.Equal(t, "family_plus", f.Tier)

	p, _ := s.Profile(h.child.ID)
	assert.Equal(t, "Yusi", p.Nickname)
	_, ok := s.Profile(remoteOnly.ID)
	assert.True(t, ok)

	// Without pending saves the server copy replaces the local one.
	confirmAll(s)
	rs.Family.Name = "Server Name"
	s.ReplaceFromRemote(rs)
	f, _ = s.Family()
	assert.Equal(t, "Server Name", f.Name)
	p, _ = s.Profile(h.child.ID)
	assert.Equal(t, "Yusuf", p.Nickname)
}

func TestApplyRemoteRecord(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	confirmAll(s)

	pushed := domain.Record{
		ID: "srv-1", ClientID: "other-1", Kind: domain.KindReward,
		FamilyID: h.family.ID, ProfileID: h.child.ID, Points: 4,
		Date: calendar.MustParseDate("2026-02-20"), DayIndex: 3,
	}
	assert.True(t, s.ApplyRemoteRecord(pushed))
	assert.False(t, s.ApplyRemoteRecord(pushed), "duplicate pushes are ignored")
	assert.Equal(t, 4, s.TotalPoints())

	foreign := pushed
	foreign.ClientID = "other-2"
	foreign.FamilyID = "fam-other"
	assert.False(t, s.ApplyRemoteRecord(foreign))

	// The echo of our own pending write only contributes its server ID.
	own, err := s.AddReward(h.child.ID, 2, "own")
	require.NoError(t, err)
	echo := own
	echo.ID = "srv-own"
	echo.Points = 99
	assert.True(t, s.ApplyRemoteRecord(echo))
	got, _ := s.Record(own.ClientID)
	assert.Equal(t, "srv-own", got.ID)
	assert.Equal(t, 2, got.Points)
	assert.Len(t, s.Pending(), 1)
}

func TestApplyRemoteRecord_OncePerDayReplacesByKey(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	local, err := s.LogFast(h.child.ID, domain.FastPartial)
	require.NoError(t, err)
	confirmAll(s)

	pushed := local
	pushed.ClientID = "other-fast"
	pushed.ID = "srv-other-fast"
	pushed.Status = domain.FastFull
	assert.True(t, s.ApplyRemoteRecord(pushed))

	logs := s.Records(Filter{Kind: domain.KindFastLog})
	require.Len(t, logs, 1)
	assert.Equal(t, domain.FastFull, logs[0].Status)
}

func TestReset(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	_, err := s.AddReward(h.child.ID, 5, "reading")
	require.NoError(t, err)
	s.BeginPass()
	s.MarkSynced()

	s.Reset()
	_, ok := s.Family()
	assert.False(t, ok)
	assert.Empty(t, s.Profiles())
	assert.Empty(t, s.Records(Filter{}))
	assert.Empty(t, s.Pending())
	assert.Zero(t, s.Pass())
	assert.True(t, s.LastSyncedAt().IsZero())
	assert.True(t, s.Hydrated())
}

func TestReplaceFromRemote_ClaimsOwnerlessFamily(t *testing.T) {
	s, _, _ := createTestStore(t)
	f, err := s.SetupFamily(FamilySetup{
		Name:        "The Hadids",
		SeasonStart: calendar.MustParseDate("2026-02-18"),
		Timezone:    "UTC",
		PreDawnTime: "05:00",
		SunsetTime:  "18:00",
	})
	require.NoError(t, err)
	assert.Empty(t, f.OwnerID)
	confirmAll(s)

	s.ReplaceFromRemote(RemoteState{UserID: "user-1", Profiles: []domain.Profile{}, Records: []domain.Record{}})

	got, ok := s.Family()
	require.True(t, ok)
	assert.Equal(t, "user-1", got.OwnerID)
	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ActionSaveFamily, pending[0].Kind)

	// An owned family is never reassigned.
	confirmAll(s)
	s.ReplaceFromRemote(RemoteState{UserID: "user-2", Profiles: []domain.Profile{}, Records: []domain.Record{}})
	got, _ = s.Family()
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Empty(t, s.Pending())
}
