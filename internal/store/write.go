package store

import (
	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
)

// FamilySetup is the input to SetupFamily.
type FamilySetup struct {
	OwnerID     string
	Name        string
	SeasonStart calendar.Date
	Timezone    string
	PreDawnTime string
	SunsetTime  string
}

// SetupFamily creates the household. It fails if a family already exists.
func (s *Store) SetupFamily(in FamilySetup) (domain.Family, error) {
	var out domain.Family
	err := s.mutate(func() (bool, error) {
		if err := s.readyLocked(false); err != nil {
			return false, err
		}
		if s.family != nil {
			return false, domain.Invalid(domain.ErrCodeInvalidValue, "family", "family %s is already set up", s.family.ID)
		}
		f, err := domain.NormalizeFamily(domain.Family{
			ID:             s.ids.Generate(),
			OwnerID:        in.OwnerID,
			Name:           in.Name,
			SeasonStart:    in.SeasonStart,
			Timezone:       in.Timezone,
			PreDawnTime:    in.PreDawnTime,
			SunsetTime:     in.SunsetTime,
			ConnectionCode: domain.NewConnectionCode(),
			UpdatedAt:      s.now().UTC(),
		})
		if err != nil {
			return false, err
		}
		if err := s.saveFamilyLocked(f); err != nil {
			return false, err
		}
		out = f
		return true, nil
	})
	return out, err
}

// FamilyUpdate edits family settings. Nil fields are untouched.
type FamilyUpdate struct {
	Name        *string
	Timezone    *string
	PreDawnTime *string
	SunsetTime  *string
}

// UpdateFamily applies u to the family.
func (s *Store) UpdateFamily(u FamilyUpdate) (domain.Family, error) {
	var out domain.Family
	err := s.mutate(func() (bool, error) {
		if err := s.readyLocked(true); err != nil {
			return false, err
		}
		f := *s.family
		if u.Name != nil {
			f.Name = *u.Name
		}
		if u.Timezone != nil {
			f.Timezone = *u.Timezone
		}
		if u.PreDawnTime != nil {
			f.PreDawnTime = *u.PreDawnTime
		}
		if u.SunsetTime != nil {
			f.SunsetTime = *u.SunsetTime
		}
		f.UpdatedAt = s.now().UTC()
		f, err := domain.NormalizeFamily(f)
		if err != nil {
			return false, err
		}
		if err := s.saveFamilyLocked(f); err != nil {
			return false, err
		}
		out = f
		return true, nil
	})
	return out, err
}

// ConfirmSeasonStart records the start date observed by the family's
// community. Past dates must be within the retroactive window; records
// already created keep the day index they were stamped with.
func (s *Store) ConfirmSeasonStart(choice calendar.Date) (domain.Family, error) {
	var out domain.Family
	err := s.mutate(func() (bool, error) {
		if err := s.readyLocked(true); err != nil {
			return false, err
		}
		f := *s.family
		if err := calendar.ValidateConfirmation(choice, s.now(), f.Location(), s.retroactiveDays); err != nil {
			return false, domain.Invalid(domain.ErrCodeInvalidValue, "season_start", "%v", err)
		}
		f.SeasonStart = choice
		f.StartConfirmed = true
		f.UpdatedAt = s.now().UTC()
		if err := s.saveFamilyLocked(f); err != nil {
			return false, err
		}
		out = f
		return true, nil
	})
	return out, err
}

func (s *Store) saveFamilyLocked(f domain.Family) error {
	a, err := domain.NewFamilyAction(s.ids.Generate(), f, s.now().UTC())
	if err != nil {
		return err
	}
	s.family = &f
	s.enqueueLocked(a, true)
	return nil
}

// ProfileInput is the input to AddProfile.
type ProfileInput struct {
	Nickname string
	Type     domain.ProfileType
	Avatar   string
}

// AddProfile adds an active household member.
func (s *Store) AddProfile(in ProfileInput) (domain.Profile, error) {
	var out domain.Profile
	err := s.mutate(func() (bool, error) {
		if err := s.readyLocked(true); err != nil {
			return false, err
		}
		p, err := domain.NormalizeProfile(domain.Profile{
			ID:       s.ids.Generate(),
			FamilyID: s.family.ID,
			Nickname: in.Nickname,
			Avatar:   in.Avatar,
			Type:     in.Type,
			Active:   true,
		})
		if err != nil {
			return false, err
		}
		if err := s.checkProfileLocked(p, nil); err != nil {
			return false, err
		}
		if err := s.saveProfileLocked(p); err != nil {
			return false, err
		}
		out = p
		return true, nil
	})
	return out, err
}

// ProfileUpdate edits a profile. Nil fields are untouched.
type ProfileUpdate struct {
	Nickname *string
	Avatar   *string
	Type     *domain.ProfileType
	Active   *bool
}

// UpdateProfile applies u to the profile with the given ID.
func (s *Store) UpdateProfile(id string, u ProfileUpdate) (domain.Profile, error) {
	var out domain.Profile
	err := s.mutate(func() (bool, error) {
		if err := s.readyLocked(true); err != nil {
			return false, err
		}
		cur := s.profileLocked(id)
		if cur == nil {
			return false, domain.Invalid(domain.ErrCodeNotFound, "profile_id", "no profile %s", id)
		}
		prev := *cur
		p := prev
		if u.Nickname != nil {
			p.Nickname = *u.Nickname
		}
		if u.Avatar != nil {
			p.Avatar = *u.Avatar
		}
		if u.Type != nil {
			p.Type = *u.Type
		}
		if u.Active != nil {
			p.Active = *u.Active
		}
		p, err := domain.NormalizeProfile(p)
		if err != nil {
			return false, err
		}
		if err := s.checkProfileLocked(p, &prev); err != nil {
			return false, err
		}
		if err := s.saveProfileLocked(p); err != nil {
			return false, err
		}
		out = p
		return true, nil
	})
	return out, err
}

// checkProfileLocked enforces the adult limit and avatar gating. prev is
// the profile before the edit, nil when adding.
func (s *Store) checkProfileLocked(p domain.Profile, prev *domain.Profile) error {
	if p.Active && p.Type == domain.ProfileAdult {
		limit := s.engine.Config().MaxAdults
		if limit <= 0 {
			limit = domain.DefaultMaxAdults
		}
		adults := 0
		for _, other := range s.profiles {
			if other.ID != p.ID && other.Active && other.Type == domain.ProfileAdult {
				adults++
			}
		}
		if adults >= limit {
			return domain.Invalid(domain.ErrCodeLimitExceeded, "type", "a family may have at most %d active adults", limit)
		}
	}

	if p.Avatar != "" && (prev == nil || prev.Avatar != p.Avatar) {
		unlocked := s.engine.Compute(s.totalPointsLocked(), s.profileTypesLocked()).Unlocked
		ok, err := s.engine.AvatarAvailable(p.Avatar, unlocked, s.family.Premium)
		if err != nil {
			return domain.Invalid(domain.ErrCodeInvalidValue, "avatar", "%v", err)
		}
		if !ok {
			return domain.Invalid(domain.ErrCodeInvalidValue, "avatar", "avatar %q is locked", p.Avatar)
		}
	}
	return nil
}

func (s *Store) saveProfileLocked(p domain.Profile) error {
	a, err := domain.NewProfileAction(s.ids.Generate(), p, s.now().UTC())
	if err != nil {
		return err
	}
	if cur := s.profileLocked(p.ID); cur != nil {
		*cur = p
	} else {
		s.profiles = append(s.profiles, p)
	}
	s.enqueueLocked(a, true)
	return nil
}

// AddRecord creates an activity record authored by r.ProfileID.
//
// The store assigns ClientID, FamilyID, DayIndex and CreatedAt; a zero Date
// means today in the family timezone. Once-per-day kinds replace an
// existing record for the same (profile, date) in place.
func (s *Store) AddRecord(r domain.Record) (domain.Record, error) {
	var out domain.Record
	err := s.mutate(func() (bool, error) {
		if err := s.readyLocked(true); err != nil {
			return false, err
		}
		f := s.family
		now := s.now()
		today := calendar.Today(now, f.Location())

		if r.Date.IsZero() {
			r.Date = today
		}
		if r.Date.After(today) {
			return false, domain.Invalid(domain.ErrCodeInvalidValue, "date", "%s is in the future", r.Date)
		}
		r.ClientID = s.ids.Generate()
		r.ID = ""
		r.FamilyID = f.ID
		r.DayIndex = calendar.DayIndexFor(f.SeasonStart, r.Date)
		r.CreatedAt = now.UTC()

		r, err := domain.NormalizeRecord(r)
		if err != nil {
			return false, err
		}
		if err := s.checkRecordLocked(r); err != nil {
			return false, err
		}

		if i := s.upsertIndexLocked(r.UpsertKey()); i >= 0 {
			existing := s.records[i]
			r.ClientID = existing.ClientID
			r.ID = existing.ID
			r.CreatedAt = existing.CreatedAt
			s.records[i] = r
		} else {
			s.records = append(s.records, r)
		}

		a, err := domain.NewRecordAction(s.ids.Generate(), r, now.UTC())
		if err != nil {
			return false, err
		}
		s.enqueueLocked(a, r.Kind.OncePerDay())
		out = r
		return true, nil
	})
	return out, err
}

// checkRecordLocked verifies ownership and the daily reward cap.
func (s *Store) checkRecordLocked(r domain.Record) error {
	author := s.profileLocked(r.ProfileID)
	if author == nil || author.FamilyID != s.family.ID {
		return domain.Invalid(domain.ErrCodeNotFound, "profile_id", "no profile %s in this family", r.ProfileID)
	}
	if !author.Active {
		return domain.Invalid(domain.ErrCodeInvalidValue, "profile_id", "profile %s is inactive", r.ProfileID)
	}

	switch r.Kind {
	case domain.KindMessage:
		to := s.profileLocked(r.ToProfileID)
		if to == nil || to.FamilyID != s.family.ID {
			return domain.Invalid(domain.ErrCodeNotFound, "to_profile_id", "no profile %s in this family", r.ToProfileID)
		}
	case domain.KindReward:
		limit := s.engine.DailyCap(author.Type)
		earned := s.pointsOnLocked(r.ProfileID, r.Date)
		if earned+r.Points > limit {
			return domain.Invalid(domain.ErrCodeLimitExceeded, "points",
				"%s has %d of %d points on %s; %d more exceeds the daily cap",
				author.Nickname, earned, limit, r.Date, r.Points)
		}
	}
	return nil
}

// AddReward awards points to a profile today.
func (s *Store) AddReward(profileID string, points int, category string) (domain.Record, error) {
	return s.AddRecord(domain.Record{Kind: domain.KindReward, ProfileID: profileID, Points: points, Category: category})
}

// LogFast records today's fast for a profile, replacing any earlier log.
func (s *Store) LogFast(profileID, status string) (domain.Record, error) {
	return s.AddRecord(domain.Record{Kind: domain.KindFastLog, ProfileID: profileID, Status: status})
}

// LogSuhoor records today's pre-dawn meal for a profile.
func (s *Store) LogSuhoor(profileID, note string) (domain.Record, error) {
	return s.AddRecord(domain.Record{Kind: domain.KindSuhoorLog, ProfileID: profileID, Note: note})
}

// SendMessage posts a message from one profile to another.
func (s *Store) SendMessage(fromID, toID, body string) (domain.Record, error) {
	return s.AddRecord(domain.Record{Kind: domain.KindMessage, ProfileID: fromID, ToProfileID: toID, Body: body})
}

// AddMemory saves a captioned memory.
func (s *Store) AddMemory(profileID, caption string) (domain.Record, error) {
	return s.AddRecord(domain.Record{Kind: domain.KindMemory, ProfileID: profileID, Caption: caption})
}

// AddTimeCapsule seals a note to be opened on unlockDay.
func (s *Store) AddTimeCapsule(profileID, body string, unlockDay int) (domain.Record, error) {
	return s.AddRecord(domain.Record{Kind: domain.KindTimeCapsule, ProfileID: profileID, Body: body, UnlockDay: unlockDay})
}

// UpdateRecord edits the mutable fields of a record.
//
// Once-per-day records are re-sent whole as an upsert; other kinds queue an
// update that is applied after the record's insert is confirmed.
func (s *Store) UpdateRecord(clientID string, patch domain.RecordPatch) (domain.Record, error) {
	var out domain.Record
	err := s.mutate(func() (bool, error) {
		if err := s.readyLocked(true); err != nil {
			return false, err
		}
		i := s.recordIndexLocked(clientID)
		if i < 0 {
			return false, domain.Invalid(domain.ErrCodeNotFound, "client_id", "no record %s", clientID)
		}
		r := s.records[i]
		patch, err := domain.NormalizePatch(r.Kind, patch)
		if err != nil {
			return false, err
		}
		r = patch.Apply(r)

		now := s.now().UTC()
		var a domain.PendingAction
		if r.Kind.OncePerDay() {
			a, err = domain.NewRecordAction(s.ids.Generate(), r, now)
		} else {
			a, err = domain.NewUpdateAction(s.ids.Generate(), r, patch, now)
		}
		if err != nil {
			return false, err
		}
		s.records[i] = r
		s.enqueueLocked(a, r.Kind.OncePerDay())
		out = r
		return true, nil
	})
	return out, err
}
