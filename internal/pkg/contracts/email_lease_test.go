package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSentinelRoundTrip(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC),
		time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2028, 2, 29, 8, 0, 0, 0, time.UTC), // leap day
	}

	for _, claimedAt := range times {
		sentinel := sentinelFor(claimedAt)
		assert.True(t, isSentinel(sentinel), "sentinel for %v must be detected", claimedAt)
		assert.True(t, claimTime(sentinel).Equal(claimedAt), "claim time must survive the round trip for %v", claimedAt)
	}
}

func TestSentinelDetectionBoundary(t *testing.T) {
	assert.False(t, isSentinel(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.False(t, isSentinel(time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC)))
	assert.True(t, isSentinel(time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, isSentinel(time.Date(2126, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestGenuineSendTimesAreNeverSentinels(t *testing.T) {
	now := time.Now()
	assert.False(t, isSentinel(now))
	assert.False(t, isSentinel(now.Add(-24*time.Hour)))
	assert.False(t, isSentinel(now.Add(time.Hour)))
}

func TestStaleCutoffOrdering(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeout := 5 * time.Minute
	staleBefore := sentinelFor(now.Add(-timeout))

	// A claim from six minutes ago is reclaimable, one from four minutes
	// ago is still held. The comparison runs in sentinel space.
	dead := sentinelFor(now.Add(-6 * time.Minute))
	held := sentinelFor(now.Add(-4 * time.Minute))

	assert.True(t, dead.Before(staleBefore))
	assert.False(t, held.Before(staleBefore))
}

func TestNewEmailLeaseDefaultTimeout(t *testing.T) {
	lease := NewEmailLease(nil, 0)
	assert.Equal(t, DefaultEmailLeaseTimeout, lease.timeout)

	custom := NewEmailLease(nil, 90*time.Second)
	assert.Equal(t, 90*time.Second, custom.timeout)
}
