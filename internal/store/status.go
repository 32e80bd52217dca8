package store

import "time"

// SyncState is the coordinator's externally visible state.
type SyncState string

const (
	StateIdle       SyncState = "idle"
	StateSyncing    SyncState = "syncing"
	StateSynced     SyncState = "synced"
	StateSyncFailed SyncState = "sync-failed"
)

// Status is the store-visible outcome of background sync. The coordinator
// never returns errors across its async boundary; it records them here.
type Status struct {
	State   SyncState `json:"state"`
	Online  bool      `json:"online"`
	Syncing bool      `json:"syncing"`

	// Loaded is true once the store holds data the UI may show as
	// authoritative: after a pull, in guest mode, or after a pull failed
	// authentication and the store fell back to local data.
	Loaded bool `json:"loaded"`

	SignedIn     bool      `json:"signed_in"`
	LastSyncedAt time.Time `json:"last_synced_at"`

	PendingCount  int   `json:"pending_count"`
	FailedPending int   `json:"failed_pending"`
	Pass          int64 `json:"pass"`

	LastError    string `json:"last_error,omitempty"`
	PersistError string `json:"persist_error,omitempty"`
}

// Status returns the current status with queue counts filled in.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.LastSyncedAt = s.lastSyncedAt
	st.Pass = s.pass
	st.PendingCount = len(s.pending)
	for _, p := range s.pending {
		if p.Failed {
			st.FailedPending++
		}
	}
	return st
}

// SetStatus applies fn to the status. Derived fields (counts, pass,
// LastSyncedAt) are recomputed on read and ignored here.
func (s *Store) SetStatus(fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.status)
}
