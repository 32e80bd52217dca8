package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/crescent/internal/calendar"
)

// ValidationError reports a rejected mutation. It is returned synchronously
// to the caller and never queued for the gateway.
type ValidationError struct {
	Code    ValidationCode
	Field   string
	Message string
}

// ValidationCode categorizes validation failures.
type ValidationCode string

const (
	ErrCodeRequired      ValidationCode = "REQUIRED"
	ErrCodeInvalidValue  ValidationCode = "INVALID_VALUE"
	ErrCodeNotFound      ValidationCode = "NOT_FOUND"
	ErrCodeImmutable     ValidationCode = "IMMUTABLE"
	ErrCodeLimitExceeded ValidationCode = "LIMIT_EXCEEDED"
	ErrCodeNoFamily      ValidationCode = "NO_FAMILY"
	ErrCodeNotHydrated   ValidationCode = "NOT_HYDRATED"
)

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Invalid creates a ValidationError.
func Invalid(code ValidationCode, field, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError returns true if err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationCodeOf returns the code of a wrapped ValidationError, or "".
func ValidationCodeOf(err error) ValidationCode {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// Text limits, in runes.
const (
	MaxNicknameLen = 24
	MaxNameLen     = 60
	MaxBodyLen     = 500
)

// NormalizeText trims s and converts it to NFC so visually identical input
// from different keyboards compares and stores identically.
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func checkText(field, s string, required bool, max int) error {
	if required && s == "" {
		return Invalid(ErrCodeRequired, field, "%s is required", field)
	}
	if n := utf8.RuneCountInString(s); n > max {
		return Invalid(ErrCodeInvalidValue, field, "%s is %d characters, max %d", field, n, max)
	}
	return nil
}

// NormalizeFamily normalizes user-entered text on f and validates it.
func NormalizeFamily(f Family) (Family, error) {
	f.Name = NormalizeText(f.Name)
	if f.ID == "" {
		return f, Invalid(ErrCodeRequired, "id", "family id is required")
	}
	if err := checkText("name", f.Name, true, MaxNameLen); err != nil {
		return f, err
	}
	if f.SeasonStart.IsZero() {
		return f, Invalid(ErrCodeRequired, "season_start", "season start date is required")
	}
	if f.Timezone != "" {
		if _, err := time.LoadLocation(f.Timezone); err != nil {
			return f, Invalid(ErrCodeInvalidValue, "timezone", "unknown timezone %q", f.Timezone)
		}
	}
	if f.PreDawnTime != "" || f.SunsetTime != "" {
		if _, err := calendar.ParseAnchors(f.PreDawnTime, f.SunsetTime); err != nil {
			return f, Invalid(ErrCodeInvalidValue, "anchors", "%v", err)
		}
	}
	return f, nil
}

// NormalizeProfile normalizes and validates p.
func NormalizeProfile(p Profile) (Profile, error) {
	p.Nickname = NormalizeText(p.Nickname)
	if p.ID == "" {
		return p, Invalid(ErrCodeRequired, "id", "profile id is required")
	}
	if err := checkText("nickname", p.Nickname, true, MaxNicknameLen); err != nil {
		return p, err
	}
	if !ValidProfileTypes[p.Type] {
		return p, Invalid(ErrCodeInvalidValue, "type", "unknown profile type %q", p.Type)
	}
	return p, nil
}

// NormalizeRecord normalizes text fields and validates the kind-specific
// shape of r. Ownership checks (profile exists, family matches) are the
// store's job.
func NormalizeRecord(r Record) (Record, error) {
	r.Body = NormalizeText(r.Body)
	r.Caption = NormalizeText(r.Caption)
	r.Note = NormalizeText(r.Note)
	r.Category = NormalizeText(r.Category)

	if !ValidKinds[r.Kind] {
		return r, Invalid(ErrCodeInvalidValue, "kind", "unknown record kind %q", r.Kind)
	}
	if r.ClientID == "" {
		return r, Invalid(ErrCodeRequired, "client_id", "client id is required")
	}
	if r.ProfileID == "" {
		return r, Invalid(ErrCodeRequired, "profile_id", "profile id is required")
	}
	if r.Date.IsZero() {
		return r, Invalid(ErrCodeRequired, "date", "date is required")
	}
	if r.DayIndex < 1 || r.DayIndex > calendar.SeasonLength {
		return r, Invalid(ErrCodeInvalidValue, "day_index", "day index %d outside [1,%d]", r.DayIndex, calendar.SeasonLength)
	}

	switch r.Kind {
	case KindReward:
		if r.Points <= 0 {
			return r, Invalid(ErrCodeInvalidValue, "points", "points must be positive, got %d", r.Points)
		}
	case KindFastLog:
		switch r.Status {
		case FastFull, FastPartial, FastNone:
		default:
			return r, Invalid(ErrCodeInvalidValue, "status", "unknown fast status %q", r.Status)
		}
	case KindSuhoorLog:
		if err := checkText("note", r.Note, false, MaxBodyLen); err != nil {
			return r, err
		}
	case KindMessage:
		if r.ToProfileID == "" {
			return r, Invalid(ErrCodeRequired, "to_profile_id", "message recipient is required")
		}
		if err := checkText("body", r.Body, true, MaxBodyLen); err != nil {
			return r, err
		}
	case KindMemory:
		if err := checkText("caption", r.Caption, false, MaxBodyLen); err != nil {
			return r, err
		}
	case KindTimeCapsule:
		if err := checkText("body", r.Body, true, MaxBodyLen); err != nil {
			return r, err
		}
		if r.UnlockDay < 1 || r.UnlockDay > calendar.SeasonLength {
			return r, Invalid(ErrCodeInvalidValue, "unlock_day", "unlock day %d outside [1,%d]", r.UnlockDay, calendar.SeasonLength)
		}
	}
	return r, nil
}

// NormalizePatch verifies every field set on patch is mutable for kind and
// normalizes text fields.
func NormalizePatch(kind Kind, patch RecordPatch) (RecordPatch, error) {
	fields := patch.Fields()
	if len(fields) == 0 {
		return patch, Invalid(ErrCodeRequired, "patch", "patch changes nothing")
	}
	for _, f := range fields {
		if !kind.Mutable(f) {
			return patch, Invalid(ErrCodeImmutable, f, "%s is not editable on %s records", f, kind)
		}
	}
	if patch.Caption != nil {
		c := NormalizeText(*patch.Caption)
		if err := checkText(FieldCaption, c, false, MaxBodyLen); err != nil {
			return patch, err
		}
		patch.Caption = &c
	}
	return patch, nil
}
