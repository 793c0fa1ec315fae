package pool

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
)

func pipeFactory(t *testing.T, dials *int) Factory {
	return func(ctx context.Context, target domain.Target) (net.Conn, error) {
		*dials++
		client, server := net.Pipe()
		// drain the server side so writes on client don't block forever
		go func() {
			buf := make([]byte, 1024)
			for {
				if _, err := server.Read(buf); err != nil {
					return
				}
			}
		}()
		t.Cleanup(func() { _ = server.Close() })
		return client, nil
	}
}

func TestAcquireReusesReleasedConnection(t *testing.T) {
	dials := 0
	p := New(pipeFactory(t, &dials), 2, nil)

	conn, err := p.Acquire(context.Background(), domain.Target("a:1"), time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, dials)

	p.Release(domain.Target("a:1"), conn, false)

	conn2, err := p.Acquire(context.Background(), domain.Target("a:1"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, dials, "second acquire should reuse the idle connection, not dial again")
	assert.Same(t, conn, conn2)
}

func TestAcquireTimesOutWhenSlotsExhausted(t *testing.T) {
	dials := 0
	p := New(pipeFactory(t, &dials), 1, nil)

	conn, err := p.Acquire(context.Background(), domain.Target("a:1"), time.Second)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background(), domain.Target("a:1"), 20*time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrPoolTimeout)

	p.Release(domain.Target("a:1"), conn, false)
}

func TestReleaseBrokenDiscardsConnection(t *testing.T) {
	dials := 0
	p := New(pipeFactory(t, &dials), 1, nil)

	conn, err := p.Acquire(context.Background(), domain.Target("a:1"), time.Second)
	require.NoError(t, err)

	p.Release(domain.Target("a:1"), conn, true)

	conn2, err := p.Acquire(context.Background(), domain.Target("a:1"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, dials, "broken connection must not be reused")
	assert.NotSame(t, conn, conn2)
}

func TestReleaseDiscardsWhenIdleQueueFull(t *testing.T) {
	dials := 0
	factory := pipeFactory(t, &dials)
	p := New(factory, 1, nil)

	conn, err := p.Acquire(context.Background(), domain.Target("a:1"), time.Second)
	require.NoError(t, err)

	// prime the one-slot idle queue by releasing once, then release a
	// second connection to force discard
	p.Release(domain.Target("a:1"), conn, false)
	extra, err := factory(context.Background(), domain.Target("a:1"))
	require.NoError(t, err)
	p.Release(domain.Target("a:1"), extra, false)

	_, werr := extra.Write([]byte("x"))
	assert.ErrorIs(t, werr, io.ErrClosedPipe, "connection released into a full idle queue must be closed")

	conn2, err := p.Acquire(context.Background(), domain.Target("a:1"), time.Second)
	require.NoError(t, err)
	assert.Same(t, conn, conn2)
	assert.Equal(t, 2, dials)
}

func TestClosePoolClosesIdleConnections(t *testing.T) {
	dials := 0
	p := New(pipeFactory(t, &dials), 2, nil)

	conn, err := p.Acquire(context.Background(), domain.Target("a:1"), time.Second)
	require.NoError(t, err)
	p.Release(domain.Target("a:1"), conn, false)

	require.NoError(t, p.Close())
}

func TestAcquireDialsIndependentlyPerTarget(t *testing.T) {
	dials := 0
	p := New(pipeFactory(t, &dials), 1, nil)

	_, err := p.Acquire(context.Background(), domain.Target("a:1"), time.Second)
	require.NoError(t, err)
	_, err = p.Acquire(context.Background(), domain.Target("b:1"), time.Second)
	require.NoError(t, err)

	assert.Equal(t, 2, dials)
}
