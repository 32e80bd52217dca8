package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/crescent/internal/domain"
)

// SnapshotVersion is the format version of persisted snapshots. Loading a
// snapshot of any other version fails rather than guessing.
const SnapshotVersion = 1

// Snapshot is the durable form of the store.
type Snapshot struct {
	Version      int                    `json:"version"`
	Family       *domain.Family         `json:"family,omitempty"`
	Profiles     []domain.Profile       `json:"profiles"`
	Records      []domain.Record        `json:"records"`
	Pending      []domain.PendingAction `json:"pending"`
	Pass         int64                  `json:"pass"`
	LastSyncedAt time.Time              `json:"last_synced_at"`
	SavedAt      time.Time              `json:"saved_at"`
}

// Persister loads and saves snapshots.
type Persister interface {
	// Load returns the last saved snapshot, or nil if none exists.
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}

// marshalSnapshot encodes snap with HTML escaping disabled so user text is
// stored as typed.
func marshalSnapshot(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

func unmarshalSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unmarshal snapshot: unsupported version %d (want %d)", snap.Version, SnapshotVersion)
	}
	return &snap, nil
}

// MemoryPersister keeps the encoded snapshot in memory. Used by tests and
// guest sessions that should leave nothing on disk.
//
// Thread-safety: MemoryPersister is safe for concurrent use.
type MemoryPersister struct {
	mu    sync.Mutex
	data  []byte
	saves int
	fail  error
}

// NewMemoryPersister creates an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// FailSaves makes every subsequent Save return err; nil restores saving.
func (p *MemoryPersister) FailSaves(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// Saves returns the number of successful saves.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// Load implements Persister.
func (p *MemoryPersister) Load(context.Context) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, nil
	}
	return unmarshalSnapshot(p.data)
}

// Save implements Persister.
func (p *MemoryPersister) Save(_ context.Context, snap Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	data, err := marshalSnapshot(snap)
	if err != nil {
		return err
	}
	p.data = data
	p.saves++
	return nil
}

// Close implements Persister.
func (p *MemoryPersister) Close() error { return nil }

// ErrCorruptSnapshot is recorded in status when hydration discards an
// unreadable snapshot.
var ErrCorruptSnapshot = errors.New("stored snapshot unreadable")

var _ Persister = (*MemoryPersister)(nil)
