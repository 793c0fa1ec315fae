package backoff

import (
	"math"
	"math/rand"
	"time"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
)

// FixedDelay always waits the configured initial delay.
type FixedDelay struct{ base }

func NewFixedDelay(cfg domain.RetryConfig) *FixedDelay { return &FixedDelay{newBase(cfg)} }
func (s *FixedDelay) Name() string                     { return string(domain.RetryFixedDelay) }
func (s *FixedDelay) Delay(int) time.Duration          { return s.clamp(s.initial) }
func (s *FixedDelay) ShouldRetry(attempt, max int) bool { return ShouldRetry(attempt, max) }

// ExponentialBackoff waits initial * 2^attempt.
type ExponentialBackoff struct{ base }

func NewExponentialBackoff(cfg domain.RetryConfig) *ExponentialBackoff {
	return &ExponentialBackoff{newBase(cfg)}
}
func (s *ExponentialBackoff) Name() string { return string(domain.RetryExponentialBackoff) }
func (s *ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Integer milliseconds: no multiplier involved, per spec.md §4.1 numerics.
	factor := int64(1) << uint(minInt(attempt, 62))
	return s.clamp(s.initial * time.Duration(factor))
}
func (s *ExponentialBackoff) ShouldRetry(attempt, max int) bool { return ShouldRetry(attempt, max) }

// LinearBackoff waits initial + increment*attempt.
type LinearBackoff struct {
	base
	increment time.Duration
}

func NewLinearBackoff(cfg domain.RetryConfig) *LinearBackoff {
	return &LinearBackoff{base: newBase(cfg), increment: cfg.IncrementDelay}
}
func (s *LinearBackoff) Name() string { return string(domain.RetryLinearBackoff) }
func (s *LinearBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return s.clamp(s.initial + s.increment*time.Duration(attempt))
}
func (s *LinearBackoff) ShouldRetry(attempt, max int) bool { return ShouldRetry(attempt, max) }

// RandomDelay draws uniformly from [minDelay, maxDelay].
type RandomDelay struct {
	base
	minDelay time.Duration
	rng      *rand.Rand
}

func NewRandomDelay(cfg domain.RetryConfig) *RandomDelay {
	return &RandomDelay{
		base:     newBase(cfg),
		minDelay: cfg.MinDelay,
		// #nosec G404 -- jitter doesn't need cryptographic randomness
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}
func (s *RandomDelay) Name() string { return string(domain.RetryRandomDelay) }
func (s *RandomDelay) Delay(int) time.Duration {
	lo, hi := s.minDelay, s.maxDelay
	if hi <= lo {
		return s.clamp(lo)
	}
	span := hi - lo
	return s.clamp(lo + time.Duration(s.rng.Int63n(int64(span))))
}
func (s *RandomDelay) ShouldRetry(attempt, max int) bool { return ShouldRetry(attempt, max) }

// IncrementalBackoff waits initial for attempt 0, otherwise
// initial + (incrementStep + stepIncrement*(attempt-1)) * attempt.
type IncrementalBackoff struct {
	base
	incrementStep time.Duration
	stepIncrement time.Duration
}

func NewIncrementalBackoff(cfg domain.RetryConfig) *IncrementalBackoff {
	return &IncrementalBackoff{
		base:          newBase(cfg),
		incrementStep: cfg.IncrementStep,
		stepIncrement: cfg.StepIncrement,
	}
}
func (s *IncrementalBackoff) Name() string { return string(domain.RetryIncrementalBackoff) }
func (s *IncrementalBackoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return s.clamp(s.initial)
	}
	step := s.incrementStep + s.stepIncrement*time.Duration(attempt-1)
	return s.clamp(s.initial + step*time.Duration(attempt))
}
func (s *IncrementalBackoff) ShouldRetry(attempt, max int) bool { return ShouldRetry(attempt, max) }

// FibonacciBackoff waits base * fib(attempt), fib(0)=0, fib(1)=1.
type FibonacciBackoff struct{ base }

func NewFibonacciBackoff(cfg domain.RetryConfig) *FibonacciBackoff {
	return &FibonacciBackoff{newBase(cfg)}
}
func (s *FibonacciBackoff) Name() string { return string(domain.RetryFibonacciBackoff) }
func (s *FibonacciBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return s.clamp(s.initial * time.Duration(fibonacci(attempt)))
}
func (s *FibonacciBackoff) ShouldRetry(attempt, max int) bool { return ShouldRetry(attempt, max) }

func fibonacci(n int) int64 {
	if n <= 0 {
		return 0
	}
	var a, b int64 = 0, 1
	for i := 1; i < n; i++ {
		a, b = b, a+b
	}
	return b
}

// GeometricBackoff waits initial * multiplier^attempt. This is one of
// the strategies the spec requires floating-point seconds for, since
// a multiplier is involved.
type GeometricBackoff struct {
	base
	multiplier float64
}

func NewGeometricBackoff(cfg domain.RetryConfig) *GeometricBackoff {
	return &GeometricBackoff{base: newBase(cfg), multiplier: cfg.Multiplier}
}
func (s *GeometricBackoff) Name() string { return string(domain.RetryGeometricBackoff) }
func (s *GeometricBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	secs := s.initial.Seconds() * math.Pow(s.multiplier, float64(attempt))
	return s.clamp(secondsToDuration(secs))
}
func (s *GeometricBackoff) ShouldRetry(attempt, max int) bool { return ShouldRetry(attempt, max) }

// HarmonicBackoff waits initial * sum_{k=1..attempt} 1/k.
type HarmonicBackoff struct{ base }

func NewHarmonicBackoff(cfg domain.RetryConfig) *HarmonicBackoff {
	return &HarmonicBackoff{newBase(cfg)}
}
func (s *HarmonicBackoff) Name() string { return string(domain.RetryHarmonicBackoff) }
func (s *HarmonicBackoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return s.clamp(0)
	}
	var sum float64
	for k := 1; k <= attempt; k++ {
		sum += 1.0 / float64(k)
	}
	return s.clamp(secondsToDuration(s.initial.Seconds() * sum))
}
func (s *HarmonicBackoff) ShouldRetry(attempt, max int) bool { return ShouldRetry(attempt, max) }

// JitterBackoff waits initial*multiplier^attempt + uniform(0, that value).
type JitterBackoff struct {
	base
	multiplier float64
	rng        *rand.Rand
}

func NewJitterBackoff(cfg domain.RetryConfig) *JitterBackoff {
	return &JitterBackoff{
		base:       newBase(cfg),
		multiplier: cfg.Multiplier,
		// #nosec G404 -- jitter doesn't need cryptographic randomness
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}
func (s *JitterBackoff) Name() string { return string(domain.RetryJitterBackoff) }
func (s *JitterBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := s.initial.Seconds() * math.Pow(s.multiplier, float64(attempt))
	jitter := s.rng.Float64() * base
	return s.clamp(secondsToDuration(base + jitter))
}
func (s *JitterBackoff) ShouldRetry(attempt, max int) bool { return ShouldRetry(attempt, max) }

func secondsToDuration(secs float64) time.Duration {
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
