package syncer

import "errors"

var (
	// ErrStopped is returned by Flush once the coordinator has stopped.
	ErrStopped = errors.New("syncer: coordinator stopped")

	// ErrNotHydrated is returned by SyncOnce before the store has loaded.
	ErrNotHydrated = errors.New("syncer: store not hydrated")

	// ErrNoSession is returned by SyncOnce without a signed-in session.
	ErrNoSession = errors.New("syncer: no signed-in session")
)
