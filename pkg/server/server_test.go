package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ybecker/catalogd/pkg/catalog"
	"github.com/ybecker/catalogd/pkg/coordinator"
	"github.com/ybecker/catalogd/pkg/session"
	"github.com/ybecker/catalogd/pkg/store/memory"
)

// stubAdapter blocks in Serve until its context is cancelled or failWith is
// delivered.
type stubAdapter struct {
	protocol string
	port     int
	failWith chan error
	stopped  chan struct{}
}

func newStubAdapter(protocol string, port int) *stubAdapter {
	return &stubAdapter{
		protocol: protocol,
		port:     port,
		failWith: make(chan error, 1),
		stopped:  make(chan struct{}, 2),
	}
}

func (a *stubAdapter) Serve(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-a.failWith:
		return err
	}
}

func (a *stubAdapter) Stop(ctx context.Context) error {
	a.stopped <- struct{}{}
	return nil
}

func (a *stubAdapter) Protocol() string { return a.protocol }
func (a *stubAdapter) Port() int        { return a.port }

func newTestServer(t *testing.T) *CatalogServer {
	t.Helper()
	coord := coordinator.New(
		memory.NewAccountStore(),
		catalog.New(memory.NewCatalogStore()),
		session.NewRegistry(),
	)
	return New(coord)
}

func TestAddAdapterRejectsDuplicateProtocol(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.AddAdapter(newStubAdapter("TCP", 1099)))

	err := s.AddAdapter(newStubAdapter("TCP", 2099))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestAddAdapterRejectsPortConflict(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.AddAdapter(newStubAdapter("TCP", 1099)))

	err := s.AddAdapter(newStubAdapter("WS", 1099))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use")
}

func TestAddAdapterAllowsEphemeralPorts(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.AddAdapter(newStubAdapter("TCP", 0)))
	require.NoError(t, s.AddAdapter(newStubAdapter("WS", 0)))
}

func TestServeRequiresAdapters(t *testing.T) {
	s := newTestServer(t)
	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no adapters registered")
}

func TestServeStopsAdaptersOnCancel(t *testing.T) {
	s := newTestServer(t)
	tcp := newStubAdapter("TCP", 1099)
	ws := newStubAdapter("WS", 1100)
	require.NoError(t, s.AddAdapter(tcp))
	require.NoError(t, s.AddAdapter(ws))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	assert.Len(t, tcp.stopped, 1)
	assert.Len(t, ws.stopped, 1)
}

func TestServePropagatesAdapterFailure(t *testing.T) {
	s := newTestServer(t)
	tcp := newStubAdapter("TCP", 1099)
	require.NoError(t, s.AddAdapter(tcp))

	boom := errors.New("listener exploded")
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	tcp.failWith <- boom

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after adapter failure")
	}
}

func TestServeTwiceFails(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.AddAdapter(newStubAdapter("TCP", 1099)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx)
	}()
	time.Sleep(50 * time.Millisecond)

	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already called")

	cancel()
	<-done
}

func TestAddAdapterAfterServeFails(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.AddAdapter(newStubAdapter("TCP", 1099)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx)
	}()
	time.Sleep(50 * time.Millisecond)

	err := s.AddAdapter(newStubAdapter("WS", 1100))
	require.Error(t, err)

	cancel()
	<-done
}
