// Package adapter defines the lifecycle contract every protocol adapter
// implements. The server orchestrates adapters through this interface only.
package adapter

import (
	"context"
)

// Adapter is a protocol-specific server front end (TCP, WebSocket). All
// adapters dispatch into the same Coordinator, so a session logged in over
// one adapter is visible to requests arriving over another.
//
// Lifecycle:
//  1. Creation: the adapter is built with its configuration and the
//     coordinator it dispatches to.
//  2. Startup: Serve() starts listening and blocks until shutdown.
//  3. Shutdown: context cancellation or Stop() triggers graceful shutdown.
//
// Thread safety: Stop may be called concurrently with Serve and must be
// idempotent.
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is
	// cancelled or an unrecoverable error occurs.
	//
	// On cancellation the adapter stops accepting connections, waits for
	// active ones up to its shutdown timeout, then force-closes stragglers.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown. Safe to call multiple times and
	// concurrently with Serve. A nil context uses the configured shutdown
	// timeout.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name for logging and metrics ("TCP",
	// "WS").
	Protocol() string

	// Port returns the port the adapter listens on. After Serve has bound
	// the listener this is the actual port, which matters when the
	// configured port is 0 (tests bind ephemeral ports).
	Port() int
}
