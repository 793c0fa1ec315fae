package balancer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
)

func TestDynamicRateLimitingAdmitsUnderHundredWhenIdle(t *testing.T) {
	d := NewDynamicRateLimiting()
	in := ports.SelectionInput{
		Targets: []domain.Target{"a"},
		Stats:   ports.StatsSnapshot{"a": {InFlight: 99}},
		Healthy: allHealthy("a"),
	}
	target, ok := d.Select(context.Background(), in)
	require.True(t, ok)
	assert.Equal(t, domain.Target("a"), target)
}

func TestDynamicRateLimitingTightensCeilingPastHighWater(t *testing.T) {
	d := NewDynamicRateLimiting()
	in := ports.SelectionInput{
		Targets: []domain.Target{"a", "b"},
		Stats: ports.StatsSnapshot{
			"a": {InFlight: 101}, // over 100, ceiling tightens to 50 and a is over it
			"b": {InFlight: 60},  // under 100, ceiling stays 100
		},
		Healthy: allHealthy("a", "b"),
	}
	target, ok := d.Select(context.Background(), in)
	require.True(t, ok)
	assert.Equal(t, domain.Target("b"), target, "a exceeds its tightened 50 ceiling; b is the first eligible target")
}

func TestDynamicRateLimitingFailsWhenAllAtCeiling(t *testing.T) {
	d := NewDynamicRateLimiting()
	in := ports.SelectionInput{
		Targets: []domain.Target{"a"},
		Stats:   ports.StatsSnapshot{"a": {InFlight: 101}},
		Healthy: allHealthy("a"),
	}
	_, ok := d.Select(context.Background(), in)
	assert.False(t, ok)
}
