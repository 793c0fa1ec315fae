// Package domain holds the proxy's core types: targets, routes, cache
// entries and the typed errors shared across adapters.
package domain

import (
	"sync/atomic"
)

// Target is an upstream address in "host:port" form. Targets for a
// route form an ordered, uniquely-membered sequence; the order is
// observable for RoundRobin rotation and IPHash bucketing.
type Target string

// TargetStats tracks the mutable, per-target counters that feed
// selection strategies. InFlight and RequestCount are updated from
// many goroutines concurrently and must only be touched through their
// atomic methods.
type TargetStats struct {
	inFlight     int64
	requestCount int64
	healthy      atomic.Bool
}

// NewTargetStats returns stats defaulting to healthy, matching the
// spec's "default healthy when unknown" rule.
func NewTargetStats() *TargetStats {
	s := &TargetStats{}
	s.healthy.Store(true)
	return s
}

// IncrementInFlight records the start of a dispatch.
func (s *TargetStats) IncrementInFlight() int64 {
	return atomic.AddInt64(&s.inFlight, 1)
}

// DecrementInFlight records dispatch completion. The decrement
// saturates at zero: it never drives the counter negative, however
// many times it races with itself.
func (s *TargetStats) DecrementInFlight() int64 {
	for {
		cur := atomic.LoadInt64(&s.inFlight)
		if cur <= 0 {
			return 0
		}
		if atomic.CompareAndSwapInt64(&s.inFlight, cur, cur-1) {
			return cur - 1
		}
	}
}

// InFlight returns the current in-flight count.
func (s *TargetStats) InFlight() int64 {
	return atomic.LoadInt64(&s.inFlight)
}

// IncrementRequests bumps the cumulative request counter used by
// RateLimiting selection and returns the new total.
func (s *TargetStats) IncrementRequests() int64 {
	return atomic.AddInt64(&s.requestCount, 1)
}

// RequestCount returns the cumulative request counter.
func (s *TargetStats) RequestCount() int64 {
	return atomic.LoadInt64(&s.requestCount)
}

// SetHealthy records the last observed health boolean.
func (s *TargetStats) SetHealthy(healthy bool) {
	s.healthy.Store(healthy)
}

// Healthy reports the last observed health boolean, true by default.
func (s *TargetStats) Healthy() bool {
	return s.healthy.Load()
}
