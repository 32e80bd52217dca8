package cli

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/gateway/memgw"
	"github.com/roach88/crescent/internal/store"
	"github.com/roach88/crescent/internal/syncer"
)

func startTestCoordinator(t *testing.T, gw *memgw.Gateway) (*syncer.Coordinator, *store.Store) {
	t.Helper()
	st := store.New(store.Options{})
	require.NoError(t, st.Hydrate(context.Background()))
	coord := syncer.New(st, gw, syncer.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return coord, st
}

func TestStartSession_NotLoadedBeforeFirstPull(t *testing.T) {
	gw := memgw.New(nil)
	gw.SignIn(gateway.Identity{UserID: "parent-1"})

	release := make(chan struct{})
	var held atomic.Bool
	gw.SetHook(func(ctx context.Context, op, table string) error {
		if op == memgw.OpGetFamily {
			held.Store(true)
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil
	})

	coord, st := startTestCoordinator(t, gw)
	startSession(context.Background(), coord, gw)

	require.Eventually(t, held.Load, 2*time.Second, 5*time.Millisecond)
	status := st.Status()
	assert.False(t, status.Loaded)
	assert.True(t, status.SignedIn)
	assert.Equal(t, store.StateSyncing, status.State)

	close(release)
	require.Eventually(t, func() bool { return st.Status().Loaded }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, store.StateSynced, st.Status().State)
}

func TestStartSession_SignedOutRunsLocalOnly(t *testing.T) {
	gw := memgw.New(nil)
	coord, st := startTestCoordinator(t, gw)
	startSession(context.Background(), coord, gw)

	require.Eventually(t, func() bool { return st.Status().Loaded }, 2*time.Second, 5*time.Millisecond)
	status := st.Status()
	assert.False(t, status.SignedIn)
	assert.Equal(t, store.StateSynced, status.State)
	assert.Zero(t, gw.CallCount(memgw.OpGetFamily))
}
