package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/progression"
)

// ValidationError is returned synchronously by rejected mutations.
type ValidationError = domain.ValidationError

// Options configures a Store.
type Options struct {
	// Persister stores snapshots. Nil uses a MemoryPersister.
	Persister Persister

	// Engine supplies daily caps and avatar gating. Nil uses the default
	// progression configuration.
	Engine *progression.Engine

	// IDs generates client IDs, entity IDs and action IDs. Nil uses UUIDv7.
	IDs domain.IDGenerator

	// Now is the wall clock. Nil uses time.Now.
	Now func() time.Time

	// RetroactiveDays bounds how far back a season start may be confirmed.
	RetroactiveDays int
}

// Store is the in-memory, persisted local cache.
//
// Every mutation, whether initiated by the user or by the sync coordinator,
// goes through commit: mutate under the lock, snapshot, persist. Reads return
// copies and never block on I/O beyond the lock.
//
// Thread-safety: Store is safe for concurrent use.
type Store struct {
	persister       Persister
	engine          *progression.Engine
	ids             domain.IDGenerator
	now             func() time.Time
	retroactiveDays int

	mu           sync.Mutex
	hydrated     bool
	family       *domain.Family
	profiles     []domain.Profile
	records      []domain.Record
	pending      []domain.PendingAction
	pass         int64
	lastSyncedAt time.Time
	status       Status
	onPending    func()
}

// New creates an unhydrated Store.
func New(opts Options) *Store {
	s := &Store{
		persister:       opts.Persister,
		engine:          opts.Engine,
		ids:             opts.IDs,
		now:             opts.Now,
		retroactiveDays: opts.RetroactiveDays,
		profiles:        []domain.Profile{},
		records:         []domain.Record{},
		pending:         []domain.PendingAction{},
		status:          Status{State: StateIdle},
	}
	if s.persister == nil {
		s.persister = NewMemoryPersister()
	}
	if s.engine == nil {
		s.engine = progression.NewDefault()
	}
	if s.ids == nil {
		s.ids = domain.UUIDv7Generator{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Close closes the persister.
func (s *Store) Close() error {
	return s.persister.Close()
}

// Engine returns the progression engine the store enforces caps with.
func (s *Store) Engine() *progression.Engine { return s.engine }

// Now returns the store's wall clock reading.
func (s *Store) Now() time.Time { return s.now() }

// OnPending registers fn to be called, outside the store lock, whenever a
// pending action is queued or revived.
func (s *Store) OnPending(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPending = fn
}

// Hydrate loads the persisted snapshot and marks the store hydrated.
//
// Hydration always completes: an unreadable snapshot is logged, recorded in
// status, and replaced by an empty store rather than left half-loaded.
func (s *Store) Hydrate(ctx context.Context) error {
	snap, loadErr := s.persister.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return nil
	}
	if loadErr != nil {
		slog.Error("store: discarding unreadable snapshot", "error", loadErr)
		s.status.LastError = errors.Join(ErrCorruptSnapshot, loadErr).Error()
	} else if snap != nil {
		s.family = snap.Family
		s.profiles = nonNil(snap.Profiles)
		s.records = nonNil(snap.Records)
		s.pending = nonNil(snap.Pending)
		s.pass = snap.Pass
		s.lastSyncedAt = snap.LastSyncedAt
		slog.Debug("store: hydrated",
			"profiles", len(s.profiles),
			"records", len(s.records),
			"pending", len(s.pending))
	}
	s.hydrated = true
	return loadErr
}

// Hydrated reports whether the persisted snapshot has been loaded. Reads
// before hydration describe an unknown state, not an empty one.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// commit persists the current state and fires the pending hook when
// queued is true. Caller holds s.mu; commit releases it.
func (s *Store) commit(queued bool) {
	snap := s.snapshotLocked()
	if err := s.persister.Save(context.Background(), snap); err != nil {
		slog.Error("store: persist snapshot", "error", err)
		s.status.PersistError = err.Error()
	} else {
		s.status.PersistError = ""
	}
	hook := s.onPending
	s.mu.Unlock()

	if queued && hook != nil {
		hook()
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:      SnapshotVersion,
		Profiles:     append([]domain.Profile{}, s.profiles...),
		Records:      append([]domain.Record{}, s.records...),
		Pending:      append([]domain.PendingAction{}, s.pending...),
		Pass:         s.pass,
		LastSyncedAt: s.lastSyncedAt,
		SavedAt:      s.now().UTC(),
	}
	if s.family != nil {
		f := *s.family
		snap.Family = &f
	}
	return snap
}

// enqueueLocked appends a, or with coalesce folds it into an unresolved
// action of the same kind and key. A coalesced action takes a's ID, so a
// drain already in flight with the old payload cannot confirm it away.
// Caller holds s.mu.
func (s *Store) enqueueLocked(a domain.PendingAction, coalesce bool) {
	if coalesce {
		for i := range s.pending {
			p := &s.pending[i]
			if p.Kind == a.Kind && p.RecordKey == a.RecordKey {
				p.ID = a.ID
				p.Payload = a.Payload
				p.LocalTimestamp = a.LocalTimestamp
				p.RetryCount = 0
				p.NextPass = 0
				p.Failed = false
				p.LastError = ""
				return
			}
		}
	}
	s.pending = append(s.pending, a)
}

// hasPendingLocked reports whether an action touching key is queued.
func (s *Store) hasPendingLocked(key string) bool {
	for _, p := range s.pending {
		if p.RecordKey == key {
			return true
		}
	}
	return false
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// mutate runs fn under the lock and commits when it succeeds. fn reports
// whether it queued a pending action.
func (s *Store) mutate(fn func() (queued bool, err error)) error {
	s.mu.Lock()
	queued, err := fn()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.commit(queued)
	return nil
}

// readyLocked rejects mutations before hydration and, when needFamily is
// set, before a family exists.
func (s *Store) readyLocked(needFamily bool) error {
	if !s.hydrated {
		return domain.Invalid(domain.ErrCodeNotHydrated, "", "local store is not loaded yet")
	}
	if needFamily && s.family == nil {
		return domain.Invalid(domain.ErrCodeNoFamily, "", "no family is set up")
	}
	return nil
}
