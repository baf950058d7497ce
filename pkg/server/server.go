// Package server orchestrates the protocol adapters that front a single
// coordinator.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ybecker/catalogd/internal/logger"
	"github.com/ybecker/catalogd/pkg/adapter"
	"github.com/ybecker/catalogd/pkg/coordinator"
)

// stopTimeout bounds the whole adapter shutdown sequence.
const stopTimeout = 30 * time.Second

// CatalogServer runs multiple protocol adapters against one coordinator.
// Because every adapter dispatches into the same coordinator, sessions and
// catalog state are shared across protocols.
//
// Lifecycle:
//  1. New() with the coordinator
//  2. AddAdapter() for each protocol
//  3. Serve() starts all adapters and blocks
//  4. Context cancellation triggers graceful shutdown of all adapters
//
// Serve may only be called once per instance.
type CatalogServer struct {
	coordinator *coordinator.Coordinator

	mu       sync.Mutex
	adapters []adapter.Adapter
	served   bool
}

// New creates a CatalogServer. Panics on a nil coordinator.
func New(coord *coordinator.Coordinator) *CatalogServer {
	if coord == nil {
		panic("coordinator cannot be nil")
	}
	return &CatalogServer{
		coordinator: coord,
		adapters:    make([]adapter.Adapter, 0, 2),
	}
}

// Coordinator returns the coordinator shared by all adapters.
func (s *CatalogServer) Coordinator() *coordinator.Coordinator {
	return s.coordinator
}

// AddAdapter registers a protocol adapter. Duplicate protocols and port
// conflicts are rejected; port 0 (ephemeral) never conflicts.
//
// Must be called before Serve.
func (s *CatalogServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return fmt.Errorf("cannot add %s adapter: server already serving", a.Protocol())
	}

	for _, existing := range s.adapters {
		if existing.Protocol() == a.Protocol() {
			return fmt.Errorf("adapter for protocol %s already registered", a.Protocol())
		}
		if a.Port() != 0 && existing.Port() == a.Port() {
			return fmt.Errorf("port %d already in use by %s adapter", a.Port(), existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", a.Protocol(), a.Port())
	return nil
}

// Serve starts every registered adapter and blocks until the context is
// cancelled or an adapter fails. Either way all adapters are stopped before
// Serve returns.
//
// Returns the context error on cancellation, the adapter's error when one
// fails, and an error immediately when called twice or with no adapters.
func (s *CatalogServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return fmt.Errorf("Serve() already called on this server")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting catalog server with %d adapter(s)", len(adapters))

	// Buffered so simultaneous failures do not leak goroutines.
	errChan := make(chan adapterError, len(adapters))

	var wg sync.WaitGroup
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(ctx); err != nil {
				// context.Canceled is the normal shutdown path.
				if err != context.Canceled && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
					return
				}
			}
			logger.Debug("%s adapter stopped", protocol)
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v, stopping all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	wg.Wait()
	logger.Info("Catalog server stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters signals every adapter to stop, in reverse registration
// order, under a shared timeout. The Serve goroutines do the actual cleanup;
// the caller waits on them.
func (s *CatalogServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && err != context.Canceled {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		}
	}
}
