// Package app wires every component into running listeners and owns
// their lifecycle, mirroring the teacher's top-level Application type.
package app

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/sentryproxy/sentryproxy/internal/adapter/balancer"
	"github.com/sentryproxy/sentryproxy/internal/adapter/cache"
	"github.com/sentryproxy/sentryproxy/internal/adapter/connector"
	"github.com/sentryproxy/sentryproxy/internal/adapter/health"
	"github.com/sentryproxy/sentryproxy/internal/adapter/pool"
	"github.com/sentryproxy/sentryproxy/internal/adapter/proxy"
	"github.com/sentryproxy/sentryproxy/internal/adapter/ratelimit"
	"github.com/sentryproxy/sentryproxy/internal/config"
	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/logger"
	"github.com/sentryproxy/sentryproxy/internal/stats"
)

// Application owns one listener per route address plus every adapter
// each was built from, so they can be torn down and rebuilt on config
// reload.
type Application struct {
	base   *slog.Logger
	styled *logger.StyledLogger

	mu        sync.Mutex
	listeners map[string]*routeRunner
}

type routeRunner struct {
	listener net.Listener
	cancel   context.CancelFunc
	registry *stats.Registry
}

// New builds an Application ready to (re)apply route snapshots.
func New(base *slog.Logger, styled *logger.StyledLogger) *Application {
	return &Application{base: base, styled: styled, listeners: make(map[string]*routeRunner)}
}

// ApplyRoutes reconciles the running listener set against routes:
// unknown addresses get a fresh listener, addresses no longer present
// are torn down, and the rest keep running with their old listener
// (rebuilding every policy component around it is a config watcher
// extension the current reconciliation doesn't need yet).
func (a *Application) ApplyRoutes(ctx context.Context, routes []domain.Route) {
	a.mu.Lock()
	defer a.mu.Unlock()

	wanted := make(map[string]domain.Route, len(routes))
	for _, r := range routes {
		wanted[r.ListenAddr] = r
	}

	for addr, runner := range a.listeners {
		if _, ok := wanted[addr]; !ok {
			runner.cancel()
			_ = runner.listener.Close()
			delete(a.listeners, addr)
		}
	}

	for addr, route := range wanted {
		if _, ok := a.listeners[addr]; ok {
			continue
		}
		route := route
		runner, err := a.startRoute(ctx, &route)
		if err != nil {
			a.styled.Error("app: failed to bind route", "addr", addr, "error", err)
			continue
		}
		a.listeners[addr] = runner
	}
}

func (a *Application) startRoute(parent context.Context, route *domain.Route) (*routeRunner, error) {
	ln, err := net.Listen("tcp", route.ListenAddr)
	if err != nil {
		return nil, domain.ErrBind
	}

	ctx, cancel := context.WithCancel(parent)

	registry := stats.New()
	conn := connector.New(a.styled)
	connPool := pool.New(func(ctx context.Context, target domain.Target) (net.Conn, error) {
		c, _, err := conn.Connect(ctx, []domain.Target{target}, route.Retry)
		if err != nil {
			return nil, err
		}
		return c, nil
	}, pool.DefaultPerTargetMultiplier, a.styled)
	respCache := cache.New(route.CacheCapacity, route.CacheTTL)
	limiter := ratelimit.New(route.RateLimit)
	selector := balancer.New(route.Strategy)

	checker := health.New(route.ConnectTimeout, a.styled)
	go checker.RunPeriodically(ctx, route.HealthCheckEndpoints, health.DefaultInterval, func(result map[domain.Target]bool) {
		for target, healthy := range result {
			registry.SetHealthy(target, healthy)
		}
	})

	engine := proxy.New(route, selector, connPool, respCache, limiter, registry, registry.HealthyMap, a.styled)

	go a.acceptLoop(ctx, ln, engine)

	return &routeRunner{listener: ln, cancel: cancel, registry: registry}, nil
}

func (a *Application) acceptLoop(ctx context.Context, ln net.Listener, engine *proxy.Engine) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				a.styled.Warn("app: accept failed", "error", err)
				return
			}
		}
		go engine.Handle(ctx, conn)
	}
}

// Shutdown tears down every running listener.
func (a *Application) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for addr, runner := range a.listeners {
		runner.cancel()
		_ = runner.listener.Close()
		delete(a.listeners, addr)
	}
}

// WatcherCallback adapts config.Watcher's onChange hook to ApplyRoutes.
func (a *Application) WatcherCallback(ctx context.Context) func(*config.Snapshot) {
	return func(snap *config.Snapshot) {
		a.ApplyRoutes(ctx, snap.Routes)
	}
}
