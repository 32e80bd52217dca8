package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crescent/internal/domain"
)

func TestOpenSQLite_CreatesNewDatabase(t *testing.T) {
	_, path := createSQLitePersister(t)
	_, err := os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crescent.db")
	for i := 0; i < 3; i++ {
		p, err := OpenSQLite(path)
		require.NoError(t, err, "open iteration %d", i)
		require.NoError(t, p.Close())
	}

	p, err := OpenSQLite(path)
	require.NoError(t, err)
	defer p.Close()

	var name string
	err = p.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='snapshots'").Scan(&name)
	assert.NoError(t, err)
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "missing", "dir", "crescent.db"))
	assert.Error(t, err)
}

func TestOpenSQLite_RejectsNewerSchema(t *testing.T) {
	p, path := createSQLitePersister(t)
	_, err := p.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion+1))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = OpenSQLite(path)
	assert.ErrorContains(t, err, "newer than supported")
}

func TestSQLitePersister_Pragmas(t *testing.T) {
	p, _ := createSQLitePersister(t)
	tests := []struct{ name, want string }{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"user_version", fmt.Sprint(currentSchemaVersion)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.pragma(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLitePersister_LoadEmpty(t *testing.T) {
	p, _ := createSQLitePersister(t)
	snap, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSQLitePersister_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	p, _ := createSQLitePersister(t)

	for pass := int64(1); pass <= 3; pass++ {
		require.NoError(t, p.Save(ctx, Snapshot{Version: SnapshotVersion, Pass: pass, SavedAt: testNow}))
	}

	var rows int
	require.NoError(t, p.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&rows))
	assert.Equal(t, 1, rows)

	snap, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Pass)
}

func TestSQLitePersister_RejectsUnknownVersion(t *testing.T) {
	ctx := context.Background()
	p, _ := createSQLitePersister(t)
	_, err := p.db.Exec(`INSERT INTO snapshots (id, version, payload, saved_at) VALUES (1, 99, '{}', '')`)
	require.NoError(t, err)

	_, err = p.Load(ctx)
	assert.ErrorContains(t, err, "unsupported version 99")
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "crescent.db")
	now := func() time.Time { return testNow }

	p1, err := OpenSQLite(path)
	require.NoError(t, err)
	s1 := New(Options{Persister: p1, IDs: domain.NewFixedGenerator("id"), Now: now})
	require.NoError(t, s1.Hydrate(ctx))
	h := seedHousehold(t, s1)
	_, err = s1.AddReward(h.child.ID, 10, "kindness")
	require.NoError(t, err)
	_, err = s1.SendMessage(h.parent.ID, h.child.ID, "Proud of you <3 & more")
	require.NoError(t, err)
	want := s1.Pending()
	require.NoError(t, s1.Close())

	p2, err := OpenSQLite(path)
	require.NoError(t, err)
	s2 := New(Options{Persister: p2, Now: now})
	defer s2.Close()
	require.NoError(t, s2.Hydrate(ctx))

	f, ok := s2.Family()
	require.True(t, ok)
	assert.Equal(t, h.family.ID, f.ID)
	assert.Len(t, s2.Profiles(), 3)
	assert.Equal(t, 10, s2.TotalPoints())
	assert.Equal(t, want, s2.Pending())

	msgs := s2.Records(Filter{Kind: domain.KindMessage})
	require.Len(t, msgs, 1)
	assert.Equal(t, "Proud of you <3 & more", msgs[0].Body)
}

func TestHydrate_CorruptSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	p, _ := createSQLitePersister(t)
	_, err := p.db.Exec(`INSERT INTO snapshots (id, version, payload, saved_at) VALUES (1, 1, 'not json', '')`)
	require.NoError(t, err)

	s := New(Options{Persister: p})
	err = s.Hydrate(ctx)
	assert.Error(t, err)
	assert.True(t, s.Hydrated())
	_, ok := s.Family()
	assert.False(t, ok)
	assert.Contains(t, s.Status().LastError, ErrCorruptSnapshot.Error())
}
