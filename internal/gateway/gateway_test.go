package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHelpers(t *testing.T) {
	base := errors.New("connection refused")
	tests := []struct {
		name      string
		err       error
		transient bool
		conflict  bool
		unauthed  bool
		notFound  bool
		code      ErrorCode
	}{
		{"nil", nil, false, false, false, false, ""},
		{"unavailable", NewError(ErrCodeUnavailable, "insert rewards", base), true, false, false, false, ErrCodeUnavailable},
		{"wrapped conflict", fmt.Errorf("drain: %w", NewError(ErrCodeConflict, "insert rewards", nil)), false, true, false, false, ErrCodeConflict},
		{"unauthenticated", NewError(ErrCodeUnauthenticated, "identity", nil), false, false, true, false, ErrCodeUnauthenticated},
		{"not found", NewError(ErrCodeNotFound, "get family", nil), false, false, false, true, ErrCodeNotFound},
		{"deadline", fmt.Errorf("pull: %w", context.DeadlineExceeded), true, false, false, false, ErrCodeInternal},
		{"plain error", base, false, false, false, false, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
			assert.Equal(t, tt.unauthed, IsUnauthenticated(tt.err))
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.code, CodeOf(tt.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := NewError(ErrCodeUnavailable, "insert rewards", errors.New("dial tcp: refused"))
	assert.Equal(t, "insert rewards: UNAVAILABLE: dial tcp: refused", err.Error())
	assert.Equal(t, "get family: NOT_FOUND", NewError(ErrCodeNotFound, "get family", nil).Error())
}

func TestTokenVerifier_RoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	v := NewTokenVerifier([]byte("test-secret"), "crescent")
	v.Now = func() time.Time { return now }

	tok, err := v.Issue(Identity{UserID: "user-1", Email: "a@example.com"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "user-1", Email: "a@example.com"}, id)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	v := NewTokenVerifier([]byte("test-secret"), "crescent")
	v.Now = func() time.Time { return now }
	tok, err := v.Issue(Identity{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)

	other := NewTokenVerifier([]byte("other-secret"), "crescent")
	other.Now = v.Now
	wrongIssuer := NewTokenVerifier([]byte("test-secret"), "someone-else")
	wrongIssuer.Now = v.Now
	later := NewTokenVerifier([]byte("test-secret"), "crescent")
	later.Now = func() time.Time { return now.Add(2 * time.Hour) }

	tests := []struct {
		name  string
		v     *TokenVerifier
		token string
	}{
		{"empty token", v, ""},
		{"garbage", v, "not.a.jwt"},
		{"wrong secret", other, tok},
		{"wrong issuer", wrongIssuer, tok},
		{"expired", later, tok},
		{"no secret", NewTokenVerifier(nil, ""), tok},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.v.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, IsUnauthenticated(err))
		})
	}
}
