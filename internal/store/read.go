package store

import (
	"time"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/progression"
)

// Filter selects records. Zero fields match everything.
type Filter struct {
	Kind      domain.Kind
	ProfileID string
	Date      *calendar.Date
}

func (f Filter) match(r domain.Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.ProfileID != "" && r.ProfileID != f.ProfileID {
		return false
	}
	if f.Date != nil && r.Date != *f.Date {
		return false
	}
	return true
}

// Family returns the family, if one is set up.
func (s *Store) Family() (domain.Family, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.family == nil {
		return domain.Family{}, false
	}
	return *s.family, true
}

// Profiles returns every profile, active or not, in creation order.
func (s *Store) Profiles() []domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Profile{}, s.profiles...)
}

// Profile returns the profile with the given ID.
func (s *Store) Profile(id string) (domain.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profileLocked(id)
	if p == nil {
		return domain.Profile{}, false
	}
	return *p, true
}

func (s *Store) profileLocked(id string) *domain.Profile {
	for i := range s.profiles {
		if s.profiles[i].ID == id {
			return &s.profiles[i]
		}
	}
	return nil
}

// ProfileTypes returns the types of the active profiles.
func (s *Store) ProfileTypes() []domain.ProfileType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileTypesLocked()
}

func (s *Store) profileTypesLocked() []domain.ProfileType {
	out := []domain.ProfileType{}
	for _, p := range s.profiles {
		if p.Active {
			out = append(out, p.Type)
		}
	}
	return out
}

// Records returns the records matching f in insertion order.
func (s *Store) Records(f Filter) []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Record{}
	for _, r := range s.records {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// TodayRecords returns the records dated today in the family timezone.
func (s *Store) TodayRecords() []domain.Record {
	today := s.Today()
	return s.Records(Filter{Date: &today})
}

// Record returns the record with the given client ID.
func (s *Store) Record(clientID string) (domain.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.recordIndexLocked(clientID); i >= 0 {
		return s.records[i], true
	}
	return domain.Record{}, false
}

func (s *Store) recordIndexLocked(clientID string) int {
	for i := range s.records {
		if s.records[i].ClientID == clientID {
			return i
		}
	}
	return -1
}

func (s *Store) upsertIndexLocked(key string) int {
	if key == "" {
		return -1
	}
	for i := range s.records {
		if s.records[i].UpsertKey() == key {
			return i
		}
	}
	return -1
}

// Pending returns the pending-action queue in FIFO order.
func (s *Store) Pending() []domain.PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PendingAction{}, s.pending...)
}

// Pass returns the current drain pass.
func (s *Store) Pass() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pass
}

// TotalPoints sums reward points across every record held.
func (s *Store) TotalPoints() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPointsLocked()
}

func (s *Store) totalPointsLocked() int {
	total := 0
	for _, r := range s.records {
		if r.Kind == domain.KindReward {
			total += r.Points
		}
	}
	return total
}

// PointsOn sums reward points earned by profileID on date.
func (s *Store) PointsOn(profileID string, date calendar.Date) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointsOnLocked(profileID, date)
}

func (s *Store) pointsOnLocked(profileID string, date calendar.Date) int {
	total := 0
	for _, r := range s.records {
		if r.Kind == domain.KindReward && r.ProfileID == profileID && r.Date == date {
			total += r.Points
		}
	}
	return total
}

// Progress derives the family's progression from the current records and
// active profiles. It is computed on demand and never stored.
func (s *Store) Progress() progression.Progress {
	s.mu.Lock()
	total := s.totalPointsLocked()
	types := s.profileTypesLocked()
	s.mu.Unlock()
	return s.engine.Compute(total, types)
}

// Location returns the family timezone, UTC without a family.
func (s *Store) Location() *time.Location {
	if f, ok := s.Family(); ok {
		return f.Location()
	}
	return time.UTC
}

// Today returns the current calendar date in the family timezone.
func (s *Store) Today() calendar.Date {
	return calendar.Today(s.now(), s.Location())
}

// Calendar resolves the season status now. ok is false without a family.
func (s *Store) Calendar() (calendar.Status, bool) {
	f, ok := s.Family()
	if !ok {
		return calendar.Status{}, false
	}
	return calendar.ResolveDate(f.SeasonStart, f.StartConfirmed, s.now(), f.Location()), true
}

// Anchors returns the family's fasting window now. ok is false without a
// family or without configured anchor times.
func (s *Store) Anchors() (calendar.AnchorWindow, bool) {
	f, ok := s.Family()
	if !ok || f.PreDawnTime == "" || f.SunsetTime == "" {
		return calendar.AnchorWindow{}, false
	}
	a, err := calendar.ParseAnchors(f.PreDawnTime, f.SunsetTime)
	if err != nil {
		return calendar.AnchorWindow{}, false
	}
	return a.Window(s.now(), f.Location()), true
}

// AvailableAvatars lists the avatars selectable with the current progress
// and entitlement.
func (s *Store) AvailableAvatars() []string {
	f, _ := s.Family()
	return s.engine.AvailableAvatars(s.Progress().Unlocked, f.Premium)
}
