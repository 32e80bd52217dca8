package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/gateway/memgw"
	"github.com/roach88/crescent/internal/store"
	"github.com/roach88/crescent/internal/wire"
)

var (
	testNow  = time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	testUser = gateway.Identity{UserID: "user-1", Email: "mama@example.com"}
)

const waitFor = 2 * time.Second

type fixture struct {
	c   *Coordinator
	st  *store.Store
	gw  *memgw.Gateway
	ctx context.Context
}

// newFixture starts a coordinator over a hydrated store and an empty
// in-memory gateway. The store is hydrated but the coordinator has not
// been told.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	st := store.New(store.Options{
		IDs: domain.NewFixedGenerator("c"),
		Now: func() time.Time { return testNow },
	})
	require.NoError(t, st.Hydrate(context.Background()))

	gw := memgw.New(nil)
	gw.SignIn(testUser)
	c := New(st, gw, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &fixture{c: c, st: st, gw: gw, ctx: ctx}
}

// settle waits until every event queued so far has been processed.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, f.c.Flush(ctx))
}

// start signals sign-in and hydration and waits for the first pull.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	f.c.SignIn(testUser)
	f.c.Hydrated()
	require.Eventually(t, func() bool {
		s := f.st.Status()
		return s.Loaded && !s.Syncing
	}, waitFor, 5*time.Millisecond)
}

// drained waits until the pending queue is empty.
func (f *fixture) drained(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.st.Pending()) == 0 }, waitFor, 5*time.Millisecond)
}

type household struct {
	family domain.Family
	parent domain.Profile
	child  domain.Profile
}

func seedLocal(t *testing.T, st *store.Store) household {
	t.Helper()
	var h household
	var err error
	h.family, err = st.SetupFamily(store.FamilySetup{
		OwnerID:     testUser.UserID,
		Name:        "The Hadids",
		SeasonStart: calendar.MustParseDate("2026-02-18"),
		Timezone:    "UTC",
	})
	require.NoError(t, err)
	h.parent, err = st.AddProfile(store.ProfileInput{Nickname: "Mama", Type: domain.ProfileAdult})
	require.NoError(t, err)
	h.child, err = st.AddProfile(store.ProfileInput{Nickname: "Yusuf", Type: domain.ProfileChild})
	require.NoError(t, err)
	return h
}

// seedRemote stores a household on the gateway as another device would
// have written it.
func seedRemote(gw *memgw.Gateway) household {
	h := household{
		family: domain.Family{
			ID: "fam-1", OwnerID: testUser.UserID, Name: "The Hadids",
			SeasonStart: calendar.MustParseDate("2026-02-18"), Timezone: "UTC",
			ConnectionCode: "ABC234",
		},
		parent: domain.Profile{ID: "p-parent", FamilyID: "fam-1", Nickname: "Mama", Type: domain.ProfileAdult, Active: true},
		child:  domain.Profile{ID: "p-child", FamilyID: "fam-1", Nickname: "Yusuf", Type: domain.ProfileChild, Active: true},
	}
	gw.Seed(wire.TableFamilies, wire.FamilyToRow(h.family))
	gw.Seed(wire.TableProfiles, wire.ProfileToRow(h.parent), wire.ProfileToRow(h.child))
	return h
}

func remoteReward(t *testing.T, h household, clientID string, points int) wire.Row {
	t.Helper()
	row, err := wire.RecordToRow(domain.Record{
		ClientID: clientID, Kind: domain.KindReward, FamilyID: h.family.ID,
		ProfileID: h.child.ID, Date: calendar.MustParseDate("2026-02-20"), DayIndex: 3,
		CreatedAt: testNow, Points: points, Category: "remote",
	})
	require.NoError(t, err)
	return row
}
