package store

import (
	"log/slog"
	"time"

	"github.com/roach88/crescent/internal/domain"
)

// RemoteState is the result of a full pull from the backend of record.
type RemoteState struct {
	// Family is nil when the signed-in user has no family on the server.
	Family   *domain.Family
	Profiles []domain.Profile
	Records  []domain.Record

	// UserID is the user the state was read for. A local family without an
	// owner is claimed by this user when the server has none.
	UserID string
}

// ReplaceFromRemote replaces the local collections with pulled server state
// while keeping every local write whose pending action is unresolved:
//
//   - an entity with a queued save keeps its local version;
//   - a record with a queued action is kept unless the server already holds
//     it (same client ID), and for once-per-day kinds it displaces the
//     server's record for the same (profile, date);
//   - queued edits are re-applied over the server's copy;
//   - confirmed local records absent from the server are dropped.
//
// The pending queue itself is untouched.
func (s *Store) ReplaceFromRemote(rs RemoteState) {
	_ = s.mutate(func() (bool, error) {
		s.replaceFamilyLocked(rs.Family)
		s.replaceProfilesLocked(rs.Profiles)
		s.replaceRecordsLocked(rs.Records)
		s.lastSyncedAt = s.now().UTC()
		claimed := rs.Family == nil && s.claimFamilyLocked(rs.UserID)
		slog.Debug("store: replaced from remote",
			"profiles", len(s.profiles), "records", len(s.records), "pending", len(s.pending),
			"claimed", claimed)
		return claimed, nil
	})
}

// claimFamilyLocked assigns an ownerless local family, one set up while
// signed out, to userID and queues its save.
func (s *Store) claimFamilyLocked(userID string) bool {
	if userID == "" || s.family == nil || s.family.OwnerID != "" {
		return false
	}
	f := *s.family
	f.OwnerID = userID
	f.UpdatedAt = s.now().UTC()
	if err := s.saveFamilyLocked(f); err != nil {
		slog.Error("store: claim family", "family", f.ID, "error", err)
		return false
	}
	return true
}

func (s *Store) replaceFamilyLocked(remote *domain.Family) {
	if remote == nil {
		return
	}
	if s.family != nil && s.hasPendingLocked(s.family.ID) {
		// Billing fields are server-owned.
		s.family.Tier = remote.Tier
		s.family.Premium = remote.Premium
		return
	}
	f := *remote
	s.family = &f
}

func (s *Store) replaceProfilesLocked(remote []domain.Profile) {
	out := make([]domain.Profile, 0, len(remote))
	seen := make(map[string]bool, len(remote))
	for _, p := range remote {
		seen[p.ID] = true
		if local := s.profileLocked(p.ID); local != nil && s.hasPendingLocked(p.ID) {
			out = append(out, *local)
			continue
		}
		out = append(out, p)
	}
	for _, p := range s.profiles {
		if !seen[p.ID] && s.hasPendingLocked(p.ID) {
			out = append(out, p)
		}
	}
	s.profiles = out
}

func (s *Store) replaceRecordsLocked(remote []domain.Record) {
	// Local records still waiting on the server, by client ID.
	unresolved := make(map[string]domain.Record)
	displaced := make(map[string]bool)
	for _, r := range s.records {
		if !s.hasPendingLocked(r.ClientID) || r.Kind.OncePerDay() {
			continue
		}
		unresolved[r.ClientID] = r
	}
	for _, r := range s.records {
		if r.Kind.OncePerDay() && s.hasPendingLocked(r.ClientID) {
			displaced[r.UpsertKey()] = true
			unresolved[r.ClientID] = r
		}
	}

	out := make([]domain.Record, 0, len(remote)+len(unresolved))
	for _, r := range remote {
		if local, ok := unresolved[r.ClientID]; ok {
			// The insert landed but its confirmation did not; keep the
			// local content with the server's ID.
			local.ID = r.ID
			out = append(out, local)
			delete(unresolved, r.ClientID)
			continue
		}
		if displaced[r.UpsertKey()] {
			continue
		}
		out = append(out, r)
	}
	for _, r := range s.records {
		if local, ok := unresolved[r.ClientID]; ok {
			out = append(out, local)
		}
	}

	for _, p := range s.pending {
		if p.Kind != domain.ActionUpdateRecord {
			continue
		}
		u, err := p.Update()
		if err != nil {
			slog.Warn("store: unreadable pending update", "action", p.ID, "error", err)
			continue
		}
		for i := range out {
			if out[i].ClientID == u.ClientID {
				out[i] = u.Patch.Apply(out[i])
			}
		}
	}
	s.records = out
}

// ApplyRemoteRecord merges one pushed record. A record the device has
// queued writes for is left alone; otherwise the server copy replaces the
// local one with the same client ID or, for once-per-day kinds, the same
// (profile, date). It reports whether local state changed.
func (s *Store) ApplyRemoteRecord(r domain.Record) bool {
	changed := false
	_ = s.mutate(func() (bool, error) {
		if s.family == nil || r.FamilyID != s.family.ID {
			return false, nil
		}
		i := s.recordIndexLocked(r.ClientID)
		if i < 0 {
			i = s.upsertIndexLocked(r.UpsertKey())
		}
		if i >= 0 {
			local := s.records[i]
			if s.hasPendingLocked(local.ClientID) {
				if local.ClientID == r.ClientID && local.ID == "" && r.ID != "" {
					s.records[i].ID = r.ID
					changed = true
				}
				return false, nil
			}
			if local == r {
				return false, nil
			}
			s.records[i] = r
			changed = true
			return false, nil
		}
		s.records = append(s.records, r)
		changed = true
		return false, nil
	})
	return changed
}

// MarkSynced records a successful sync at the current time.
func (s *Store) MarkSynced() {
	_ = s.mutate(func() (bool, error) {
		s.lastSyncedAt = s.now().UTC()
		return false, nil
	})
}

// LastSyncedAt returns the time of the last successful pull.
func (s *Store) LastSyncedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncedAt
}

// Reset wipes all local data, including unsent writes. Used when the
// clear-on-sign-out policy is enabled.
func (s *Store) Reset() {
	_ = s.mutate(func() (bool, error) {
		if n := len(s.pending); n > 0 {
			slog.Warn("store: reset discards unsent writes", "pending", n)
		}
		s.family = nil
		s.profiles = []domain.Profile{}
		s.records = []domain.Record{}
		s.pending = []domain.PendingAction{}
		s.pass = 0
		s.lastSyncedAt = time.Time{}
		return false, nil
	})
}
