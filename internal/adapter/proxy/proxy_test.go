package proxy

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentryproxy/sentryproxy/internal/adapter/balancer"
	"github.com/sentryproxy/sentryproxy/internal/adapter/cache"
	"github.com/sentryproxy/sentryproxy/internal/adapter/pool"
	"github.com/sentryproxy/sentryproxy/internal/adapter/ratelimit"
	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/logger"
	"github.com/sentryproxy/sentryproxy/internal/stats"
)

// fakeUpstream echoes a canned response for any request it receives.
func fakeUpstream(t *testing.T, response string) (domain.Target, func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 1024)
				_, _ = conn.Read(buf)
				_, _ = conn.Write([]byte(response))
			}()
		}
	}()

	return domain.Target(ln.Addr().String()), func() { _ = ln.Close() }
}

func TestEngineProxiesAndCachesResponse(t *testing.T) {
	target, closeFn := fakeUpstream(t, "HTTP/1.0 200 OK\r\n\r\nbody")
	defer closeFn()

	route := &domain.Route{
		Targets:              []domain.Target{target},
		CacheEnabledPrefixes: []string{"/cached"},
		CacheTTL:             time.Minute,
		CacheCapacity:        10,
		ConnectTimeout:       time.Second,
		IOTimeout:            time.Second,
	}

	selector := balancer.NewRoundRobin()
	connPool := pool.New(func(ctx context.Context, target domain.Target) (net.Conn, error) {
		return net.Dial("tcp", string(target))
	}, 4, nil)
	respCache := cache.New(10, time.Minute)
	limiter := ratelimit.NoOp{}
	registry := stats.New()

	styled := logger.NewStyledLogger(slog.Default(), nil)
	engine := New(route, selector, connPool, respCache, limiter, registry, func() map[domain.Target]bool {
		return map[domain.Target]bool{target: true}
	}, styled)

	clientConn, serverConn := net.Pipe()
	go engine.Handle(context.Background(), serverConn)

	_, err := clientConn.Write([]byte("GET /cached/a HTTP/1.1\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 1024)
	n, err := clientConn.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "body")

	require.Eventually(t, func() bool {
		_, ok := respCache.Get(cacheKey(request{Method: "GET", Path: "/cached/a"}), time.Now())
		return ok
	}, time.Second, 10*time.Millisecond, "response for a cache-enabled path should be stored")
}
