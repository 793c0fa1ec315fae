// Package proxy implements C8: the per-connection state machine that
// ties every other component together - admission, selection, cache,
// dispatch and response tee-ing. spec.md §4.8.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
	"github.com/sentryproxy/sentryproxy/internal/logger"
	"github.com/sentryproxy/sentryproxy/internal/stats"
	litepool "github.com/sentryproxy/sentryproxy/pkg/pool"
)

// copyBufSize is the chunk size used to stream upstream responses back
// to the client.
const copyBufSize = 32 * 1024

// rateLimitedResponse is the literal response written to a client
// whose request is rejected by the route's rate limiter.
const rateLimitedResponse = "HTTP/1.1 429 Too Many Requests\r\nContent-Type: text/plain\r\nContent-Length: 27\r\n\r\nError: Rate limit exceeded.\n"

// copyBuffers recycles the byte slices used to stream upstream
// responses, avoiding one 32KB allocation per connection.
var copyBuffers = litepool.NewLitePool(func() *[]byte {
	b := make([]byte, copyBufSize)
	return &b
})

// Engine handles one accepted connection end to end for a single
// Route, composing the ports every prior component implements.
type Engine struct {
	route     *domain.Route
	selector  ports.TargetSelector
	pool      ports.Pool
	cache     ports.Cache
	limiter   ports.RateLimiter
	stats     *stats.Registry
	healthy   func() map[domain.Target]bool
	logger    *logger.StyledLogger
}

// New builds an Engine for route, wired to its selector, pool, cache
// and limiter. healthy is polled fresh on every connection so a
// health-check update takes effect without restarting the route.
func New(
	route *domain.Route,
	selector ports.TargetSelector,
	pool ports.Pool,
	cache ports.Cache,
	limiter ports.RateLimiter,
	statsRegistry *stats.Registry,
	healthy func() map[domain.Target]bool,
	log *logger.StyledLogger,
) *Engine {
	return &Engine{
		route:    route,
		selector: selector,
		pool:     pool,
		cache:    cache,
		limiter:  limiter,
		stats:    statsRegistry,
		healthy:  healthy,
		logger:   log,
	}
}

// Handle drives one client connection through admission, selection,
// request parsing, rewrite, cache lookup, dispatch and response
// tee-ing, releasing every resource it acquired before returning.
func (e *Engine) Handle(ctx context.Context, client net.Conn) {
	defer client.Close()

	connID := uuid.NewString()
	clientIP := hostOf(client.RemoteAddr().String())
	log := e.logger.WithTarget(domain.Target(""))

	if !e.limiter.Allow(clientIP, time.Now()) {
		log.Warn("proxy: rejected, rate limit exceeded", "conn", connID, "client", clientIP)
		_, _ = client.Write([]byte(rateLimitedResponse))
		return
	}

	target, ok := e.selector.Select(ctx, e.selectionInput(clientIP))
	if !ok {
		log.Warn("proxy: no routable target", "conn", connID)
		return
	}

	reader := bufio.NewReader(client)

	var req request
	var outbound []byte
	if len(e.route.RewriteRules) > 0 {
		parsed, err := readFullRequest(reader)
		if err != nil {
			log.Warn("proxy: malformed request", "conn", connID, "error", err)
			return
		}
		req = applyRewrite(e.route.RewriteRules, parsed)
		outbound = req.bytes()
	} else {
		parsed, rawPrefix, err := readRequestLine(reader)
		if err != nil {
			log.Warn("proxy: malformed request line", "conn", connID, "error", err)
			return
		}
		req = parsed
		outbound, err = rawRequestBytes(rawPrefix, reader)
		if err != nil {
			log.Warn("proxy: failed reading buffered request", "conn", connID, "error", err)
			return
		}
	}

	if e.route.CacheEnabled(req.Path) {
		if cached, ok := e.cache.Get(cacheKey(req), time.Now()); ok {
			_, _ = client.Write(cached)
			return
		}
	}

	upstream, err := e.pool.Acquire(ctx, target, e.route.ConnectTimeout)
	if err != nil {
		log.ErrorWithTarget("proxy: failed to acquire upstream connection", target, "conn", connID, "error", err)
		return
	}

	e.stats.IncrementInFlight(target)
	e.stats.IncrementRequests(target)
	broken := false
	defer func() {
		e.stats.DecrementInFlight(target)
		e.pool.Release(target, upstream, broken)
	}()

	if err := writeRequest(upstream, outbound); err != nil {
		broken = true
		log.ErrorWithTarget("proxy: failed writing request upstream", target, "conn", connID, "error", err)
		return
	}

	var tee bytes.Buffer
	shouldCache := e.route.CacheEnabled(req.Path)
	var dst io.Writer = client
	if shouldCache {
		dst = io.MultiWriter(client, &tee)
	}

	if err := copyWithTimeout(dst, upstream, e.route.IOTimeout); err != nil && err != io.EOF {
		broken = true
		log.ErrorWithTarget("proxy: upstream response stream ended early", target, "conn", connID, "error", err)
		return
	}

	if shouldCache && tee.Len() > 0 {
		e.cache.Put(cacheKey(req), tee.Bytes(), time.Now())
	}
}

func (e *Engine) selectionInput(clientIP string) ports.SelectionInput {
	healthy := e.healthy()
	snapshot := e.stats.Snapshot(e.route.Targets)
	return ports.SelectionInput{
		Targets:        e.route.Targets,
		Stats:          snapshot,
		Weights:        e.route.TargetWeights,
		MetricsURLs:    e.route.ResourceEndpoints,
		Healthy:        healthy,
		ClientIP:       clientIP,
		RequestCeiling: e.route.MaxRequestsPerTarget,
	}
}

// copyWithTimeout streams src to dst, resetting src's read deadline
// before every read so a slow-but-alive upstream isn't killed by one
// global deadline covering the whole response.
func copyWithTimeout(dst io.Writer, src net.Conn, timeout time.Duration) error {
	bufPtr := copyBuffers.Get()
	defer copyBuffers.Put(bufPtr)
	buf := *bufPtr

	for {
		if timeout > 0 {
			_ = src.SetReadDeadline(time.Now().Add(timeout))
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func hostOf(addr string) string {
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
