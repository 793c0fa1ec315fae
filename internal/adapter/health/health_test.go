package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
)

func TestCheckReplacesMapWithMixedResults(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	c := New(time.Second, nil)
	result := c.Check(context.Background(), map[domain.Target]string{
		domain.Target("up"):   healthy.URL,
		domain.Target("down"): unhealthy.URL,
	})

	assert.True(t, result[domain.Target("up")])
	assert.False(t, result[domain.Target("down")])
}

func TestCheckFailsOpenWhenEveryProbeFails(t *testing.T) {
	c := New(100*time.Millisecond, nil)
	result := c.Check(context.Background(), map[domain.Target]string{
		domain.Target("a"): "http://127.0.0.1:1",
		domain.Target("b"): "http://127.0.0.1:2",
	})

	assert.True(t, result[domain.Target("a")])
	assert.True(t, result[domain.Target("b")])
}

func TestCheckEmptyTargetsReturnsEmptyMap(t *testing.T) {
	c := New(time.Second, nil)
	result := c.Check(context.Background(), map[domain.Target]string{})
	assert.Empty(t, result)
}
