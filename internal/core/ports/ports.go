// Package ports declares the narrow interfaces the proxy engine
// composes: retry strategies, the connector, the pool, the cache, rate
// limiters, the health checker and target selectors. Adapters under
// internal/adapter implement these; internal/adapter/proxy depends
// only on the interfaces, never on a concrete adapter package.
package ports

import (
	"context"
	"net"
	"time"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
)

// RetryStrategy computes per-attempt delay and retry continuation for
// one of the nine backoff families (C1).
type RetryStrategy interface {
	Name() string
	// Delay returns the wait before attempt, clamped to the
	// strategy's configured max delay.
	Delay(attempt int) time.Duration
	// ShouldRetry reports whether attempt (0-based) may still retry
	// against maxAttempts.
	ShouldRetry(attempt, maxAttempts int) bool
}

// Connector races a connection attempt against a target set under a
// timeout, retrying per a RetryStrategy (C2).
type Connector interface {
	Connect(ctx context.Context, targets []domain.Target, cfg domain.RetryConfig) (net.Conn, domain.Target, error)
}

// Pool is a bounded, reusable connection pool over a Connector-backed
// dial factory (C3).
type Pool interface {
	// Acquire returns a connection to target, waiting up to timeout.
	Acquire(ctx context.Context, target domain.Target, timeout time.Duration) (net.Conn, error)
	// Release returns conn to the pool, or discards it when broken or
	// the pool deems it unfit for reuse.
	Release(target domain.Target, conn net.Conn, broken bool)
	// Close drains and closes every pooled connection.
	Close() error
}

// Cache is the TTL+LRU response cache keyed by request path (C4).
type Cache interface {
	Get(key string, now time.Time) ([]byte, bool)
	Put(key string, value []byte, now time.Time)
	Len() int
}

// RateLimiter is the shared interface behind all five admission
// algorithms plus the NoOp limiter (C5).
type RateLimiter interface {
	Allow(key string, now time.Time) bool
}

// HealthChecker probes a target->URL map and returns a target->healthy
// map; the result replaces, never merges with, the prior map (C6).
type HealthChecker interface {
	Check(ctx context.Context, probeURLs map[domain.Target]string) map[domain.Target]bool
}

// StatsSnapshot is the read-only view of TargetStats a TargetSelector
// needs, indexed by target.
type StatsSnapshot map[domain.Target]TargetStatsView

// TargetStatsView exposes just the fields selection strategies read.
type TargetStatsView struct {
	InFlight     int64
	RequestCount int64
}

// SelectionInput bundles everything a TargetSelector may consult. Not
// every strategy uses every field (e.g. ClientIP is only read by
// IPHash, MetricsURLs only by ResourceBased).
type SelectionInput struct {
	Targets        []domain.Target
	Stats          StatsSnapshot
	Weights        map[domain.Target]int
	MetricsURLs    map[domain.Target]string
	Healthy        map[domain.Target]bool // nil => treat everything healthy
	ClientIP       string
	RequestCeiling int // 0 == no ceiling
}

// TargetSelector implements one of the eight balancing strategies (C7).
type TargetSelector interface {
	Name() string
	Select(ctx context.Context, in SelectionInput) (domain.Target, bool)
}
