package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
)

func TestSnapshotReflectsIncrements(t *testing.T) {
	r := New()
	r.IncrementInFlight(domain.Target("a"))
	r.IncrementInFlight(domain.Target("a"))
	r.IncrementRequests(domain.Target("a"))

	snap := r.Snapshot([]domain.Target{"a"})
	assert.Equal(t, int64(2), snap["a"].InFlight)
	assert.Equal(t, int64(1), snap["a"].RequestCount)
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	r := New()
	r.DecrementInFlight(domain.Target("a"))
	r.DecrementInFlight(domain.Target("a"))

	snap := r.Snapshot([]domain.Target{"a"})
	assert.Equal(t, int64(0), snap["a"].InFlight)
}

func TestHealthyMapDefaultsTrue(t *testing.T) {
	r := New()
	r.IncrementInFlight(domain.Target("a")) // touches the entry
	healthy := r.HealthyMap()
	assert.True(t, healthy[domain.Target("a")])
}

func TestSetHealthyOverridesDefault(t *testing.T) {
	r := New()
	r.SetHealthy(domain.Target("a"), false)
	assert.False(t, r.HealthyMap()[domain.Target("a")])
}
