// Package pool implements C3: a bounded, reusable connection pool over
// a Connector-backed dial factory, one idle queue + semaphore per
// target. spec.md §4.3.
package pool

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
	"github.com/sentryproxy/sentryproxy/internal/logger"
)

// DefaultPerTargetMultiplier sizes a target's pool relative to 1; the
// spec leaves pool size untuned beyond "a small constant" times the
// target count, so each target gets its own bounded slot set.
const DefaultPerTargetMultiplier = 8

// Factory dials a fresh connection to one target; normally a
// ports.Connector call scoped to a single-target slice.
type Factory func(ctx context.Context, target domain.Target) (net.Conn, error)

type targetPool struct {
	idle  chan net.Conn
	slots chan struct{} // permits bound total outstanding connections
}

// ConnPool is the production Pool: one bounded idle queue per target,
// refilled on demand through factory.
type ConnPool struct {
	factory Factory
	perSlot int
	logger  *logger.StyledLogger

	mu      sync.Mutex
	targets map[domain.Target]*targetPool
}

// New builds a ConnPool. perTarget is the max outstanding connections
// per target; 0 selects DefaultPerTargetMultiplier.
func New(factory Factory, perTarget int, log *logger.StyledLogger) *ConnPool {
	if perTarget <= 0 {
		perTarget = DefaultPerTargetMultiplier
	}
	return &ConnPool{
		factory: factory,
		perSlot: perTarget,
		logger:  log,
		targets: make(map[domain.Target]*targetPool),
	}
}

func (p *ConnPool) poolFor(target domain.Target) *targetPool {
	p.mu.Lock()
	defer p.mu.Unlock()

	tp, ok := p.targets[target]
	if ok {
		return tp
	}

	tp = &targetPool{
		idle:  make(chan net.Conn, p.perSlot),
		slots: make(chan struct{}, p.perSlot),
	}
	for i := 0; i < p.perSlot; i++ {
		tp.slots <- struct{}{}
	}
	p.targets[target] = tp
	return tp
}

// Acquire returns a connection to target: an idle one if available and
// still writable, otherwise a freshly dialed one once a slot frees up.
// Exceeding timeout without obtaining either returns ErrPoolTimeout.
func (p *ConnPool) Acquire(ctx context.Context, target domain.Target, timeout time.Duration) (net.Conn, error) {
	tp := p.poolFor(target)

	deadline := time.Now().Add(timeout)
	acquireCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		select {
		case conn := <-tp.idle:
			if Check(conn) {
				return conn, nil
			}
			_ = conn.Close()
			// give back the dead connection's permit; the loop then
			// dials a replacement under a permit of its own.
			p.releaseSlot(tp)
			continue
		default:
		}

		select {
		case conn := <-tp.idle:
			if Check(conn) {
				return conn, nil
			}
			_ = conn.Close()
			p.releaseSlot(tp)
			continue
		case <-tp.slots:
			conn, err := p.factory(acquireCtx, target)
			if err != nil {
				tp.slots <- struct{}{} // give the permit back
				select {
				case <-acquireCtx.Done():
					return nil, domain.ErrPoolTimeout
				default:
					return nil, err
				}
			}
			return conn, nil
		case <-acquireCtx.Done():
			return nil, domain.ErrPoolTimeout
		}
	}
}

// Release returns conn to target's idle queue, or closes it and frees
// its slot when broken or the idle queue is already full.
func (p *ConnPool) Release(target domain.Target, conn net.Conn, broken bool) {
	tp := p.poolFor(target)

	if broken || !Check(conn) {
		_ = conn.Close()
		p.releaseSlot(tp)
		return
	}

	select {
	case tp.idle <- conn:
	default:
		_ = conn.Close()
		p.releaseSlot(tp)
	}
}

func (p *ConnPool) releaseSlot(tp *targetPool) {
	select {
	case tp.slots <- struct{}{}:
	default:
		// pool was resized down or slot already restored; drop silently
	}
}

// Close drains and closes every pooled connection across every target.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, tp := range p.targets {
		close(tp.idle)
		for conn := range tp.idle {
			_ = conn.Close()
		}
	}
	return nil
}

var _ ports.Pool = (*ConnPool)(nil)
