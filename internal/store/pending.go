package store

import (
	"log/slog"

	"github.com/roach88/crescent/internal/domain"
)

// BeginPass advances the drain-pass counter and returns the new pass.
// Backoff is measured in passes, not wall time.
func (s *Store) BeginPass() int64 {
	var pass int64
	_ = s.mutate(func() (bool, error) {
		s.pass++
		pass = s.pass
		return false, nil
	})
	return pass
}

// ConfirmAction resolves an attempted action. The action is removed if it is
// still queued under the same ID, and for record actions the server ID is
// attached to the local record. An action coalesced with a newer write after
// the attempt started keeps its place in the queue.
func (s *Store) ConfirmAction(a domain.PendingAction, serverID string) {
	_ = s.mutate(func() (bool, error) {
		if i := s.actionIndexLocked(a.ID); i >= 0 {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
		}
		if serverID == "" {
			return false, nil
		}
		switch a.Kind {
		case domain.ActionInsertRecord, domain.ActionUpsertRecord, domain.ActionUpdateRecord:
			if i := s.recordIndexLocked(a.RecordKey); i >= 0 {
				s.records[i].ID = serverID
			}
		}
		return false, nil
	})
}

// FailAction records a failed attempt of action id at the current pass. The
// action becomes eligible again after 2^(k-1) passes, where k is its retry
// count, and is dead-lettered once k reaches maxRetries. It reports whether
// the action was dead-lettered.
func (s *Store) FailAction(id string, cause error, maxRetries int) bool {
	dead := false
	_ = s.mutate(func() (bool, error) {
		i := s.actionIndexLocked(id)
		if i < 0 {
			return false, nil
		}
		p := &s.pending[i]
		p.RetryCount++
		p.LastError = cause.Error()
		p.NextPass = s.pass + backoff(p.RetryCount)
		if maxRetries > 0 && p.RetryCount >= maxRetries {
			p.Failed = true
			dead = true
			slog.Warn("store: pending action dead-lettered",
				"action", p.Kind, "key", p.RecordKey, "retries", p.RetryCount, "error", p.LastError)
		}
		return false, nil
	})
	return dead
}

// backoff returns the number of passes to wait after the k-th failure.
func backoff(k int) int64 {
	if k < 1 {
		return 0
	}
	if k > 30 {
		k = 30
	}
	return int64(1) << (k - 1)
}

// Eligible reports whether a may be attempted on pass.
func Eligible(a domain.PendingAction, pass int64) bool {
	return !a.Failed && a.NextPass <= pass
}

// RetryFailed revives dead-lettered actions: the one with the given ID, or
// every failed action when id is empty. It returns how many were revived.
func (s *Store) RetryFailed(id string) int {
	n := 0
	_ = s.mutate(func() (bool, error) {
		for i := range s.pending {
			p := &s.pending[i]
			if !p.Failed || (id != "" && p.ID != id) {
				continue
			}
			p.Failed = false
			p.RetryCount = 0
			p.NextPass = 0
			p.LastError = ""
			n++
		}
		return n > 0, nil
	})
	return n
}

// DiscardFailed drops dead-lettered actions: the one with the given ID, or
// every failed action when id is empty. Local records that never reached the
// server and have no remaining action are dropped with them. It returns how
// many actions were discarded.
func (s *Store) DiscardFailed(id string) int {
	n := 0
	_ = s.mutate(func() (bool, error) {
		kept := s.pending[:0]
		for _, p := range s.pending {
			if p.Failed && (id == "" || p.ID == id) {
				n++
				continue
			}
			kept = append(kept, p)
		}
		s.pending = kept
		if n == 0 {
			return false, nil
		}

		records := s.records[:0]
		for _, r := range s.records {
			if !r.Confirmed() && !s.hasPendingLocked(r.ClientID) {
				slog.Info("store: dropping unsent record", "kind", r.Kind, "client_id", r.ClientID)
				continue
			}
			records = append(records, r)
		}
		s.records = records
		return false, nil
	})
	return n
}

func (s *Store) actionIndexLocked(id string) int {
	for i := range s.pending {
		if s.pending[i].ID == id {
			return i
		}
	}
	return -1
}
