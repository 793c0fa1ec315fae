package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
)

func TestExponentialBackoffProgression(t *testing.T) {
	// spec.md §8 scenario 6: initial=100ms, max=1s.
	s := NewExponentialBackoff(domain.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for attempt, expected := range want {
		assert.Equal(t, expected, s.Delay(attempt), "attempt %d", attempt)
	}
}

func TestShouldRetryIsAttemptLessThanMax(t *testing.T) {
	cfg := domain.RetryConfig{InitialDelay: time.Millisecond, MaxDelay: time.Second}
	for _, s := range []interface {
		ShouldRetry(attempt, max int) bool
	}{
		NewFixedDelay(cfg),
		NewExponentialBackoff(cfg),
		NewLinearBackoff(cfg),
	} {
		assert.True(t, s.ShouldRetry(0, 3))
		assert.True(t, s.ShouldRetry(2, 3))
		assert.False(t, s.ShouldRetry(3, 3))
		assert.False(t, s.ShouldRetry(4, 3))
	}
}

func TestDelaysNeverExceedMaxDelay(t *testing.T) {
	cfg := domain.RetryConfig{
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		IncrementDelay: 2 * time.Second,
		MinDelay:       0,
		Multiplier:     3,
		IncrementStep:  time.Second,
		StepIncrement:  time.Second,
	}

	strategies := []interface {
		Name() string
		Delay(int) time.Duration
	}{
		NewFixedDelay(cfg),
		NewExponentialBackoff(cfg),
		NewLinearBackoff(cfg),
		NewRandomDelay(cfg),
		NewIncrementalBackoff(cfg),
		NewFibonacciBackoff(cfg),
		NewGeometricBackoff(cfg),
		NewHarmonicBackoff(cfg),
		NewJitterBackoff(cfg),
	}

	for _, s := range strategies {
		for attempt := 0; attempt < 20; attempt++ {
			d := s.Delay(attempt)
			require.LessOrEqualf(t, d, cfg.MaxDelay, "%s attempt %d produced %s", s.Name(), attempt, d)
			require.GreaterOrEqualf(t, d, time.Duration(0), "%s attempt %d went negative", s.Name(), attempt)
		}
	}
}

func TestMonotoneStrategiesDontDecrease(t *testing.T) {
	cfg := domain.RetryConfig{
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Second,
		IncrementDelay: 5 * time.Millisecond,
		Multiplier:     1.5,
		IncrementStep:  2 * time.Millisecond,
		StepIncrement:  time.Millisecond,
	}

	monotone := []interface {
		Name() string
		Delay(int) time.Duration
	}{
		NewFixedDelay(cfg),
		NewExponentialBackoff(cfg),
		NewLinearBackoff(cfg),
		NewIncrementalBackoff(cfg),
		NewFibonacciBackoff(cfg),
		NewGeometricBackoff(cfg),
		NewHarmonicBackoff(cfg),
	}

	for _, s := range monotone {
		prev := s.Delay(0)
		for attempt := 1; attempt < 10; attempt++ {
			d := s.Delay(attempt)
			assert.GreaterOrEqualf(t, d, prev, "%s: delay(%d)=%s < delay(%d)=%s", s.Name(), attempt, d, attempt-1, prev)
			prev = d
		}
	}
}

func TestFibonacciBase(t *testing.T) {
	assert.Equal(t, int64(0), fibonacci(0))
	assert.Equal(t, int64(1), fibonacci(1))
	assert.Equal(t, int64(1), fibonacci(2))
	assert.Equal(t, int64(2), fibonacci(3))
	assert.Equal(t, int64(3), fibonacci(4))
	assert.Equal(t, int64(5), fibonacci(5))
}

func TestFactoryFallsBackToFixedDelay(t *testing.T) {
	s := New(domain.RetryConfig{StrategyType: "not-a-real-strategy", InitialDelay: time.Second, MaxDelay: time.Minute})
	_, ok := s.(*FixedDelay)
	assert.True(t, ok)
}

func TestFactoryBuildsEveryRegisteredStrategy(t *testing.T) {
	for _, name := range AvailableStrategies() {
		s := New(domain.RetryConfig{StrategyType: name, InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2})
		require.Equal(t, string(name), s.Name())
	}
}
