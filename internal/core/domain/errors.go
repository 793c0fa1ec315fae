package domain

import "errors"

// Typed errors for the component-level failures spec.md §7 enumerates.
// Per-connection errors never propagate beyond the spawning goroutine;
// they're classified here so the proxy engine can log and react
// consistently (fail-open for health, fail-closed for cache put).
var (
	// ErrConfigLoad covers ConfigError: load/parse failure.
	ErrConfigLoad = errors.New("config: load or parse failure")

	// ErrBind covers BindError: listener bind fails.
	ErrBind = errors.New("route: listener bind failed")

	// ErrConnectExhausted covers ConnectError: upstream unreachable
	// after retries are exhausted.
	ErrConnectExhausted = errors.New("connector: all attempts exhausted")

	// ErrPoolTimeout covers PoolTimeoutError: no pooled connection
	// became available within the route's timeout.
	ErrPoolTimeout = errors.New("pool: acquire timed out")

	// ErrMalformedRequest covers MalformedRequestError: the client's
	// request line could not be tokenized into three parts.
	ErrMalformedRequest = errors.New("proxy: malformed request line")

	// ErrMetricsFetch covers MetricsFetchError: a resource-based probe
	// failed; that target is skipped during selection.
	ErrMetricsFetch = errors.New("balancer: resource metrics fetch failed")

	// ErrNoTarget names the case where no target is routable; selectors
	// report that case by returning false, not this error.
	ErrNoTarget = errors.New("balancer: no routable target")

	// ErrEmptyTargetList is returned when a route has no targets at all.
	ErrEmptyTargetList = errors.New("balancer: target list is empty")

	// ErrInvalidRateLimitWindow covers a SlidingWindowCounter whose
	// window is not strictly greater than its granularity.
	ErrInvalidRateLimitWindow = errors.New("ratelimit: window must exceed granularity")
)
