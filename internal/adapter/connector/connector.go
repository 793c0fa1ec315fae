// Package connector implements C2: racing a dial against every target
// in a set under a timeout, retrying with a backoff strategy on total
// failure. spec.md §4.2.
package connector

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sentryproxy/sentryproxy/internal/adapter/backoff"
	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/logger"
)

// Dialer opens one net.Conn to a target. Production code passes
// net.Dialer.DialContext; tests substitute a fake.
type Dialer func(ctx context.Context, target domain.Target) (net.Conn, error)

// TCPConnector is the production Connector: real TCP dials raced
// across targets, retried per the route's RetryConfig.
type TCPConnector struct {
	dial   Dialer
	logger *logger.StyledLogger
}

// New builds a TCPConnector using net.Dialer for real TCP dials.
func New(logger *logger.StyledLogger) *TCPConnector {
	dialer := &net.Dialer{}
	return &TCPConnector{
		dial: func(ctx context.Context, target domain.Target) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", string(target))
		},
		logger: logger,
	}
}

// NewWithDialer builds a TCPConnector over a custom Dialer, for tests
// and for non-TCP transports.
func NewWithDialer(dial Dialer, logger *logger.StyledLogger) *TCPConnector {
	return &TCPConnector{dial: dial, logger: logger}
}

type dialResult struct {
	conn   net.Conn
	target domain.Target
}

// Connect launches one concurrent dial per target on each attempt,
// each wrapped in cfg.ConnectTimeout; it returns the first success and
// cancels the rest. On full-attempt failure it sleeps the strategy's
// delay(attempt) and retries while ShouldRetry permits, finally
// returning domain.ErrConnectExhausted.
func (c *TCPConnector) Connect(ctx context.Context, targets []domain.Target, cfg domain.RetryConfig) (net.Conn, domain.Target, error) {
	if len(targets) == 0 {
		return nil, "", domain.ErrEmptyTargetList
	}

	strategy := backoff.New(cfg)
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		conn, target, err := c.raceAttempt(ctx, targets, cfg.ConnectTimeout)
		if err == nil {
			return conn, target, nil
		}
		lastErr = err

		if !strategy.ShouldRetry(attempt, maxAttempts) {
			break
		}

		delay := strategy.Delay(attempt)
		c.logger.Debug("connector: attempt failed, backing off",
			"attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, "", ctx.Err()
		case <-timer.C:
		}
	}

	return nil, "", fmt.Errorf("%w: %v", domain.ErrConnectExhausted, lastErr)
}

// raceAttempt dials every target concurrently, returning the first
// success and letting the losers finish (and get closed) in the
// background once the attempt's context is cancelled.
func (c *TCPConnector) raceAttempt(ctx context.Context, targets []domain.Target, timeout time.Duration) (net.Conn, domain.Target, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)

	results := make(chan dialResult, len(targets))
	g, gctx := errgroup.WithContext(attemptCtx)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			conn, err := c.dial(gctx, target)
			if err != nil {
				return nil // recorded via absence from results, not a group-fatal error
			}
			select {
			case results <- dialResult{conn: conn, target: target}:
			default:
				_ = conn.Close()
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case res := <-results:
		cancel()
		go c.drainLosers(results, done)
		return res.conn, res.target, nil
	case <-done:
		cancel()
		select {
		case res := <-results:
			return res.conn, res.target, nil
		default:
			return nil, "", fmt.Errorf("connector: no target reachable within %s", timeout)
		}
	}
}

// drainLosers closes any connection that arrives after the winner has
// already been picked, once every dial goroutine has finished.
func (c *TCPConnector) drainLosers(results chan dialResult, done <-chan struct{}) {
	<-done
	for {
		select {
		case res := <-results:
			_ = res.conn.Close()
		default:
			return
		}
	}
}
