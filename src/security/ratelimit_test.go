package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *time.Time) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := &now
	l := NewRateLimiter(limit, window, func() time.Time { return *clock })
	return l, clock
}

func TestRateLimiter_CeilingWithinWindow(t *testing.T) {
	l, clock := newTestLimiter(30, 60*time.Second)
	defer l.Stop()

	for i := 0; i < 30; i++ {
		require.True(t, l.Admit("user:1"), "admission %d within the ceiling should succeed", i+1)
		*clock = clock.Add(time.Second)
	}

	assert.False(t, l.Admit("user:1"), "31st admission within the window should be rejected")
	assert.Equal(t, int64(1), l.Violations())
}

func TestRateLimiter_WindowElapses(t *testing.T) {
	l, clock := newTestLimiter(2, 60*time.Second)
	defer l.Stop()

	require.True(t, l.Admit("user:1"))
	require.True(t, l.Admit("user:1"))
	require.False(t, l.Admit("user:1"))

	*clock = clock.Add(61 * time.Second)
	assert.True(t, l.Admit("user:1"), "admission should resume after the window fully elapses")
}

func TestRateLimiter_IdentitiesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, 60*time.Second)
	defer l.Stop()

	require.True(t, l.Admit("user:1"))
	require.False(t, l.Admit("user:1"))
	assert.True(t, l.Admit("10.0.0.7|curl/8.0"), "a different identity has its own window")
}

func TestRateLimiter_RejectionsDoNotCount(t *testing.T) {
	l, clock := newTestLimiter(1, 60*time.Second)
	defer l.Stop()

	require.True(t, l.Admit("user:1"))
	for i := 0; i < 5; i++ {
		require.False(t, l.Admit("user:1"))
	}

	// Only the single accepted call occupies the window; once it ages out,
	// admission resumes even though rejections happened more recently.
	*clock = clock.Add(61 * time.Second)
	assert.True(t, l.Admit("user:1"))
}

func TestRateLimiter_SweepDropsDrainedIdentities(t *testing.T) {
	l, clock := newTestLimiter(5, 60*time.Second)
	defer l.Stop()

	require.True(t, l.Admit("user:1"))
	require.True(t, l.Admit("user:2"))
	require.Equal(t, 2, l.trackedIdentities())

	*clock = clock.Add(2 * time.Minute)
	l.sweep()
	assert.Equal(t, 0, l.trackedIdentities(), "identities with empty windows should be dropped")
}
