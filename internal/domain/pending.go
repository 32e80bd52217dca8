package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionKind identifies the gateway write a pending action stands for.
type ActionKind string

const (
	// ActionInsertRecord inserts a new append-only record.
	ActionInsertRecord ActionKind = "insert_record"
	// ActionUpsertRecord writes a once-per-day record keyed by (profile, date).
	ActionUpsertRecord ActionKind = "upsert_record"
	// ActionUpdateRecord edits mutable fields of an existing record.
	ActionUpdateRecord ActionKind = "update_record"
	// ActionSaveProfile creates or replaces a profile.
	ActionSaveProfile ActionKind = "save_profile"
	// ActionSaveFamily creates or replaces the family.
	ActionSaveFamily ActionKind = "save_family"
)

// PendingAction is a local mutation not yet confirmed by the gateway.
type PendingAction struct {
	ID             string          `json:"id"`
	Kind           ActionKind      `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
	LocalTimestamp time.Time       `json:"local_timestamp"`
	RetryCount     int             `json:"retry_count"`

	// RecordKey is the ClientID (records) or entity ID (profile, family) the
	// action touches. Actions sharing a key are never reordered.
	RecordKey string `json:"record_key"`

	// NextPass is the first drain pass on which the action may be attempted.
	NextPass int64 `json:"next_pass"`

	// Failed marks a dead-lettered action: excluded from draining until the
	// user retries or discards it.
	Failed    bool   `json:"failed,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// UpdatePayload is the payload of ActionUpdateRecord.
type UpdatePayload struct {
	ClientID string      `json:"client_id"`
	Kind     Kind        `json:"kind"`
	Patch    RecordPatch `json:"patch"`
}

// NewRecordAction builds the insert or upsert action for r.
func NewRecordAction(id string, r Record, now time.Time) (PendingAction, error) {
	kind := ActionInsertRecord
	if r.Kind.OncePerDay() {
		kind = ActionUpsertRecord
	}
	return newAction(id, kind, r.ClientID, r, now)
}

// NewUpdateAction builds the action editing the record identified by clientID.
func NewUpdateAction(id string, r Record, patch RecordPatch, now time.Time) (PendingAction, error) {
	return newAction(id, ActionUpdateRecord, r.ClientID, UpdatePayload{
		ClientID: r.ClientID,
		Kind:     r.Kind,
		Patch:    patch,
	}, now)
}

// NewProfileAction builds the action saving p.
func NewProfileAction(id string, p Profile, now time.Time) (PendingAction, error) {
	return newAction(id, ActionSaveProfile, p.ID, p, now)
}

// NewFamilyAction builds the action saving f.
func NewFamilyAction(id string, f Family, now time.Time) (PendingAction, error) {
	return newAction(id, ActionSaveFamily, f.ID, f, now)
}

func newAction(id string, kind ActionKind, key string, payload any, now time.Time) (PendingAction, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return PendingAction{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return PendingAction{
		ID:             id,
		Kind:           kind,
		Payload:        data,
		LocalTimestamp: now,
		RecordKey:      key,
	}, nil
}

// Record decodes the payload of an insert or upsert action.
func (a PendingAction) Record() (Record, error) {
	var r Record
	if a.Kind != ActionInsertRecord && a.Kind != ActionUpsertRecord {
		return r, fmt.Errorf("action %s: payload is not a record", a.Kind)
	}
	if err := json.Unmarshal(a.Payload, &r); err != nil {
		return r, fmt.Errorf("unmarshal record payload: %w", err)
	}
	return r, nil
}

// Update decodes the payload of an update action.
func (a PendingAction) Update() (UpdatePayload, error) {
	var u UpdatePayload
	if a.Kind != ActionUpdateRecord {
		return u, fmt.Errorf("action %s: payload is not an update", a.Kind)
	}
	if err := json.Unmarshal(a.Payload, &u); err != nil {
		return u, fmt.Errorf("unmarshal update payload: %w", err)
	}
	return u, nil
}

// Profile decodes the payload of a save-profile action.
func (a PendingAction) Profile() (Profile, error) {
	var p Profile
	if a.Kind != ActionSaveProfile {
		return p, fmt.Errorf("action %s: payload is not a profile", a.Kind)
	}
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		return p, fmt.Errorf("unmarshal profile payload: %w", err)
	}
	return p, nil
}

// Family decodes the payload of a save-family action.
func (a PendingAction) Family() (Family, error) {
	var f Family
	if a.Kind != ActionSaveFamily {
		return f, fmt.Errorf("action %s: payload is not a family", a.Kind)
	}
	if err := json.Unmarshal(a.Payload, &f); err != nil {
		return f, fmt.Errorf("unmarshal family payload: %w", err)
	}
	return f, nil
}
