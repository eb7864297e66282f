package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletgate/internal/credential"
	"github.com/congo-pay/walletgate/internal/logging"
)

func mintExpiring(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := credential.Mint(testSecret, "u", "", addrA, exp.Add(-time.Hour), exp)
	require.NoError(t, err)
	return token
}

func TestSchedulerFiresAtExpiry(t *testing.T) {
	var fired atomic.Int32
	r := NewRenewalScheduler(func() { fired.Add(1) }, logging.Discard())
	exp := time.Unix(1_900_000_000, 0)
	r.now = func() time.Time { return exp.Add(-30 * time.Millisecond) }

	r.Reschedule(mintExpiring(t, exp))
	due, pending := r.Pending()
	require.True(t, pending)
	assert.True(t, due.Equal(exp))

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	_, pending = r.Pending()
	assert.False(t, pending)
}

func TestSchedulerSkipsAbsentAndExpired(t *testing.T) {
	var fired atomic.Int32
	r := NewRenewalScheduler(func() { fired.Add(1) }, logging.Discard())
	exp := time.Unix(1_900_000_000, 0)
	r.now = func() time.Time { return exp }

	r.Reschedule("")
	_, pending := r.Pending()
	assert.False(t, pending)

	r.Reschedule(mintExpiring(t, exp))
	_, pending = r.Pending()
	assert.False(t, pending, "a token at its exp instant is already expired")

	r.Reschedule("not-a-token")
	_, pending = r.Pending()
	assert.False(t, pending)
	assert.Zero(t, fired.Load())
}

func TestSchedulerCancelsOnChange(t *testing.T) {
	var fired atomic.Int32
	r := NewRenewalScheduler(func() { fired.Add(1) }, logging.Discard())
	exp := time.Unix(1_900_000_000, 0)
	r.now = func() time.Time { return exp.Add(-20 * time.Millisecond) }

	r.Reschedule(mintExpiring(t, exp))
	r.Reschedule("")
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())

	r.Reschedule(mintExpiring(t, exp))
	r.Reschedule(mintExpiring(t, exp))
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "superseded timer must not fire")

	r.Reschedule(mintExpiring(t, exp))
	r.Stop()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}
