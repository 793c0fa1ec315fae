package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesARoute(t *testing.T) {
	path := writeConfig(t, `
[[route]]
listen_addr = "127.0.0.1:8080"
targets = ["127.0.0.1:9001", "127.0.0.1:9002"]
strategy = "roundrobin"
`)

	_, routes, err := Load(path)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "127.0.0.1:8080", routes[0].ListenAddr)
	assert.Equal(t, domain.StrategyRoundRobin, routes[0].Strategy)
	assert.Empty(t, routes[0].RewriteRules)
}

func TestLoadWiresRewriteRules(t *testing.T) {
	path := writeConfig(t, `
[[route]]
listen_addr = "127.0.0.1:8080"
targets = ["127.0.0.1:9001"]
strategy = "roundrobin"

[[route.rewrite_rule]]
path_contains = "/old"
rewrite_url = "/new"
remove_headers = ["X-Internal"]

[route.rewrite_rule.add_headers]
X-Forwarded-By = "sentryproxy"
`)

	_, routes, err := Load(path)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	require.Len(t, routes[0].RewriteRules, 1)

	rule := routes[0].RewriteRules[0]
	assert.Equal(t, "/old", rule.PathContains)
	assert.Equal(t, "/new", rule.ReplacePath)
	assert.Equal(t, []string{"X-Internal"}, rule.RemoveHeaders)
	assert.Equal(t, map[string]string{"X-Forwarded-By": "sentryproxy"}, rule.AddHeaders)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
}

func TestLoadRejectsRouteWithNoTargets(t *testing.T) {
	path := writeConfig(t, `
[[route]]
listen_addr = "127.0.0.1:8080"
targets = []
strategy = "roundrobin"
`)

	_, _, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
}

func TestRateLimitConfigConvertsMillisecondUnits(t *testing.T) {
	rc := RateLimitConfig{
		Algorithm:  "TokenBucket",
		Capacity:   5,
		WindowMS:   1500,
		LeakRateMS: 250,
	}
	dc := rc.toDomain()
	require.NotNil(t, dc)
	assert.Equal(t, 1500*time.Millisecond, dc.Window)
	assert.Equal(t, 250*time.Millisecond, dc.LeakRate)
}

func TestRateLimitConfigNilStaysNil(t *testing.T) {
	var rc *RateLimitConfig
	assert.Nil(t, rc.toDomain())
}
