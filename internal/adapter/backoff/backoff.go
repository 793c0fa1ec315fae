// Package backoff implements the nine retry/backoff delay families the
// connector (C2) drives attempts with: spec.md §4.1.
package backoff

import (
	"time"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
)

// base carries the fields every strategy clamps against and the
// shared ShouldRetry rule: attempt < maxAttempts for every strategy
// this package provides.
type base struct {
	initial   time.Duration
	maxDelay  time.Duration
}

func (b base) clamp(d time.Duration) time.Duration {
	if b.maxDelay > 0 && d > b.maxDelay {
		return b.maxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}

// ShouldRetry is shared by every strategy in this package.
func ShouldRetry(attempt, maxAttempts int) bool {
	return attempt < maxAttempts
}

func newBase(cfg domain.RetryConfig) base {
	return base{initial: cfg.InitialDelay, maxDelay: cfg.MaxDelay}
}
