package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crescent/internal/domain"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		failures int
		want     int64
	}{
		{0, 0}, {1, 1}, {2, 2}, {3, 4}, {5, 16}, {64, 1 << 29},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(tt.failures), "failures=%d", tt.failures)
	}
}

func TestFailAction_BacksOffByPass(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	confirmAll(s)
	_, err := s.AddReward(h.child.ID, 5, "reading")
	require.NoError(t, err)
	a := s.Pending()[0]

	pass := s.BeginPass()
	assert.Equal(t, int64(1), pass)
	assert.True(t, Eligible(a, pass))
	assert.False(t, s.FailAction(a.ID, errors.New("timeout"), 5))

	a = s.Pending()[0]
	assert.Equal(t, 1, a.RetryCount)
	assert.Equal(t, int64(2), a.NextPass)
	assert.Equal(t, "timeout", a.LastError)
	assert.False(t, Eligible(a, 1))
	assert.True(t, Eligible(a, 2))

	pass = s.BeginPass()
	s.FailAction(a.ID, errors.New("timeout"), 5)
	a = s.Pending()[0]
	assert.Equal(t, pass+2, a.NextPass)
}

func TestFailAction_DeadLetters(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	confirmAll(s)
	r, err := s.AddReward(h.child.ID, 5, "reading")
	require.NoError(t, err)
	id := s.Pending()[0].ID

	s.BeginPass()
	assert.False(t, s.FailAction(id, errors.New("rejected"), 2))
	s.BeginPass()
	assert.True(t, s.FailAction(id, errors.New("rejected"), 2))

	a := s.Pending()[0]
	assert.True(t, a.Failed)
	assert.False(t, Eligible(a, 1000))
	st := s.Status()
	assert.Equal(t, 1, st.PendingCount)
	assert.Equal(t, 1, st.FailedPending)

	// The record stays visible while its write is dead-lettered.
	_, ok := s.Record(r.ClientID)
	assert.True(t, ok)
}

func TestRetryFailed(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	confirmAll(s)
	_, err := s.AddReward(h.child.ID, 5, "reading")
	require.NoError(t, err)
	id := s.Pending()[0].ID
	s.FailAction(id, errors.New("rejected"), 1)

	fired := 0
	s.OnPending(func() { fired++ })
	assert.Equal(t, 0, s.RetryFailed("other"))
	assert.Equal(t, 1, s.RetryFailed(""))
	assert.Equal(t, 1, fired)

	a := s.Pending()[0]
	assert.False(t, a.Failed)
	assert.Zero(t, a.RetryCount)
	assert.True(t, Eligible(a, s.Pass()))
}

func TestDiscardFailed_DropsUnsentRecords(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	confirmAll(s)
	bad, err := s.AddReward(h.child.ID, 5, "reading")
	require.NoError(t, err)
	good, err := s.AddReward(h.child.ID, 5, "helping")
	require.NoError(t, err)
	s.FailAction(s.Pending()[0].ID, errors.New("rejected"), 1)

	assert.Equal(t, 1, s.DiscardFailed(""))
	_, ok := s.Record(bad.ClientID)
	assert.False(t, ok)
	_, ok = s.Record(good.ClientID)
	assert.True(t, ok)
	assert.Len(t, s.Pending(), 1)
	assert.Equal(t, 5, s.TotalPoints())

	assert.Equal(t, 0, s.DiscardFailed(""))
}

func TestConfirmAction_AttachesServerID(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	confirmAll(s)
	r, err := s.AddReward(h.child.ID, 5, "reading")
	require.NoError(t, err)

	s.ConfirmAction(s.Pending()[0], "srv-9")
	assert.Empty(t, s.Pending())
	got, _ := s.Record(r.ClientID)
	assert.Equal(t, "srv-9", got.ID)
	assert.True(t, got.Confirmed())
}

func TestConfirmAction_KeepsNewerCoalescedWrite(t *testing.T) {
	s, _, _ := createTestStore(t)
	h := seedHousehold(t, s)
	confirmAll(s)
	_, err := s.LogFast(h.child.ID, domain.FastPartial)
	require.NoError(t, err)
	inFlight := s.Pending()[0]

	// The user changes the log while the first write is on the wire.
	_, err = s.LogFast(h.child.ID, domain.FastFull)
	require.NoError(t, err)
	s.ConfirmAction(inFlight, "srv-fast")

	pending := s.Pending()
	require.Len(t, pending, 1)
	r, err := pending[0].Record()
	require.NoError(t, err)
	assert.Equal(t, domain.FastFull, r.Status)

	logs := s.Records(Filter{Kind: domain.KindFastLog})
	require.Len(t, logs, 1)
	assert.Equal(t, "srv-fast", logs[0].ID)
}
