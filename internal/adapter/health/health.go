// Package health implements C6: concurrent HTTP health probing of a
// target set, replacing (never merging) the prior healthy map.
// spec.md §4.6.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
	"github.com/sentryproxy/sentryproxy/internal/logger"
)

// DefaultInterval is how often the periodic checker fires; the app
// runs every route's checker at this interval, and RunPeriodically
// also falls back to it for a non-positive interval.
const DefaultInterval = 30 * time.Second

// Checker is the production HealthChecker: one resty GET per target,
// run concurrently, with a fail-open fallback when every probe fails.
type Checker struct {
	client  *resty.Client
	timeout time.Duration
	logger  *logger.StyledLogger
}

// New builds a Checker with a per-probe timeout.
func New(timeout time.Duration, log *logger.StyledLogger) *Checker {
	return &Checker{
		client:  resty.New().SetTimeout(timeout),
		timeout: timeout,
		logger:  log,
	}
}

// Check probes every target in probeURLs concurrently and returns a
// fresh target->healthy map. If every single probe fails, Check logs a
// warning and fails open, reporting every target healthy rather than
// taking the whole route out of service.
func (c *Checker) Check(ctx context.Context, probeURLs map[domain.Target]string) map[domain.Target]bool {
	result := make(map[domain.Target]bool, len(probeURLs))
	if len(probeURLs) == 0 {
		return result
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	allFailed := true

	for target, url := range probeURLs {
		target, url := target, url
		wg.Add(1)
		go func() {
			defer wg.Done()
			healthy := c.probe(ctx, url)

			mu.Lock()
			result[target] = healthy
			if healthy {
				allFailed = false
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if allFailed {
		if c.logger != nil {
			c.logger.Warn("health: every probe failed, failing open to all targets healthy")
		}
		for target := range probeURLs {
			result[target] = true
		}
	}

	return result
}

func (c *Checker) probe(ctx context.Context, url string) bool {
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return false
	}
	return resp.IsSuccess()
}

// RunPeriodically invokes Check on interval until ctx is cancelled,
// pushing each fresh result to onResult.
func (c *Checker) RunPeriodically(ctx context.Context, probeURLs map[domain.Target]string, interval time.Duration, onResult func(map[domain.Target]bool)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	onResult(c.Check(ctx, probeURLs))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onResult(c.Check(ctx, probeURLs))
		}
	}
}

var _ ports.HealthChecker = (*Checker)(nil)
