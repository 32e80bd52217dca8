package domain

import (
	"time"

	"github.com/roach88/crescent/internal/calendar"
)

// ProfileType determines UI capability and daily reward caps.
type ProfileType string

const (
	ProfileLittleStar ProfileType = "little_star"
	ProfileChild      ProfileType = "child"
	ProfileAdult      ProfileType = "adult"
)

// ProfileTypes lists every profile type in display order.
var ProfileTypes = []ProfileType{ProfileLittleStar, ProfileChild, ProfileAdult}

// ValidProfileTypes defines allowed profile types.
var ValidProfileTypes = map[ProfileType]bool{
	ProfileLittleStar: true,
	ProfileChild:      true,
	ProfileAdult:      true,
}

// DefaultMaxAdults is the number of active adult profiles a family may hold.
const DefaultMaxAdults = 2

// Family is the household account.
type Family struct {
	ID             string        `json:"id"`
	OwnerID        string        `json:"owner_id"`
	Name           string        `json:"name"`
	SeasonStart    calendar.Date `json:"season_start"`
	StartConfirmed bool          `json:"start_confirmed"`
	Timezone       string        `json:"timezone"`
	PreDawnTime    string        `json:"pre_dawn_time"` // HH:MM
	SunsetTime     string        `json:"sunset_time"`   // HH:MM
	Tier           string        `json:"tier"`          // opaque billing tier
	Premium        bool          `json:"premium"`       // opaque entitlement flag
	ConnectionCode string        `json:"connection_code"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Location returns the family's timezone, falling back to UTC when unset or unknown.
func (f Family) Location() *time.Location {
	if f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Profile is one household member.
type Profile struct {
	ID       string      `json:"id"`
	FamilyID string      `json:"family_id"`
	Nickname string      `json:"nickname"`
	Avatar   string      `json:"avatar"`
	Type     ProfileType `json:"type"`
	Active   bool        `json:"active"`
}

// Kind identifies the type of an activity record.
type Kind string

const (
	KindReward      Kind = "reward"
	KindFastLog     Kind = "fast_log"
	KindSuhoorLog   Kind = "suhoor_log"
	KindMessage     Kind = "message"
	KindMemory      Kind = "memory"
	KindTimeCapsule Kind = "time_capsule"
)

// Kinds lists every record kind. Pull and subscribe iterate in this order.
var Kinds = []Kind{KindReward, KindFastLog, KindSuhoorLog, KindMessage, KindMemory, KindTimeCapsule}

// ValidKinds defines allowed record kinds.
var ValidKinds = map[Kind]bool{
	KindReward:      true,
	KindFastLog:     true,
	KindSuhoorLog:   true,
	KindMessage:     true,
	KindMemory:      true,
	KindTimeCapsule: true,
}

// OncePerDay reports whether at most one record of this kind exists per
// (profile, date). Such kinds are written with upsert semantics.
func (k Kind) OncePerDay() bool {
	return k == KindFastLog || k == KindSuhoorLog
}

// Field names that may change after a record is created.
const (
	FieldFavorite  = "favorite"
	FieldCaption   = "caption"
	FieldCompleted = "completed"
)

// Mutable reports whether field may be edited on records of this kind.
func (k Kind) Mutable(field string) bool {
	switch field {
	case FieldFavorite:
		return k == KindMessage || k == KindMemory
	case FieldCaption:
		return k == KindMemory
	case FieldCompleted:
		return k == KindTimeCapsule || k == KindFastLog
	}
	return false
}

// Fast statuses for KindFastLog.
const (
	FastFull    = "full"
	FastPartial = "partial"
	FastNone    = "none"
)

// Record is a dated, family-scoped activity fact authored by one profile.
//
// Fields beyond the common block are kind-specific and left at their zero
// value for other kinds.
type Record struct {
	ID        string        `json:"id,omitempty"` // server-assigned
	ClientID  string        `json:"client_id"`    // locally assigned, stable
	Kind      Kind          `json:"kind"`
	FamilyID  string        `json:"family_id"`
	ProfileID string        `json:"profile_id"`
	Date      calendar.Date `json:"date"`
	DayIndex  int           `json:"day_index"`
	CreatedAt time.Time     `json:"created_at"`

	Points      int    `json:"points,omitempty"`        // reward
	Category    string `json:"category,omitempty"`      // reward
	Status      string `json:"status,omitempty"`        // fast_log
	Note        string `json:"note,omitempty"`          // suhoor_log
	ToProfileID string `json:"to_profile_id,omitempty"` // message
	Body        string `json:"body,omitempty"`          // message, time_capsule
	Caption     string `json:"caption,omitempty"`       // memory
	UnlockDay   int    `json:"unlock_day,omitempty"`    // time_capsule
	Favorite    bool   `json:"favorite,omitempty"`      // message, memory
	Completed   bool   `json:"completed,omitempty"`     // fast_log, time_capsule
}

// Confirmed reports whether the backend of record has assigned an ID.
func (r Record) Confirmed() bool { return r.ID != "" }

// UpsertKey identifies a once-per-day record. Empty for other kinds.
func (r Record) UpsertKey() string {
	if !r.Kind.OncePerDay() {
		return ""
	}
	return string(r.Kind) + "/" + r.ProfileID + "/" + r.Date.String()
}

// RecordPatch edits the mutable fields of a record. Nil fields are untouched.
type RecordPatch struct {
	Favorite  *bool   `json:"favorite,omitempty"`
	Caption   *string `json:"caption,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Fields returns the names of the fields set on the patch.
func (p RecordPatch) Fields() []string {
	var out []string
	if p.Favorite != nil {
		out = append(out, FieldFavorite)
	}
	if p.Caption != nil {
		out = append(out, FieldCaption)
	}
	if p.Completed != nil {
		out = append(out, FieldCompleted)
	}
	return out
}

// Apply returns r with the patch applied.
func (p RecordPatch) Apply(r Record) Record {
	if p.Favorite != nil {
		r.Favorite = *p.Favorite
	}
	if p.Caption != nil {
		r.Caption = *p.Caption
	}
	if p.Completed != nil {
		r.Completed = *p.Completed
	}
	return r
}
