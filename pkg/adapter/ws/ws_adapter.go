// Package ws implements the WebSocket protocol adapter.
//
// The same messages that travel inside record-marking frames on the TCP
// adapter travel here as WebSocket binary messages; WebSocket does its own
// framing, so the 4-byte record mark is dropped. Each connection runs the
// standard read pump / write pump pair with a buffered send channel, and
// doubles as the callback sink for sessions logged in over it.
package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ybecker/catalogd/internal/logger"
	"github.com/ybecker/catalogd/pkg/adapter"
	"github.com/ybecker/catalogd/pkg/coordinator"
	"github.com/ybecker/catalogd/pkg/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Restrict in production
	},
}

// Config holds the WebSocket adapter settings. Zero values are replaced by
// defaults in New.
type Config struct {
	// Enabled controls whether the adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// Port is the HTTP port to listen on. 0 binds an ephemeral port (used by
	// tests).
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// Path is the HTTP path accepting upgrade requests.
	Path string `mapstructure:"path"`

	// PingInterval is how often the server pings idle connections.
	PingInterval time.Duration `mapstructure:"ping_interval" validate:"min=0"`

	// PongTimeout closes connections that miss pongs for this long.
	PongTimeout time.Duration `mapstructure:"pong_timeout" validate:"min=0"`

	// WriteTimeout bounds writing one message.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// SendBuffer is the per-connection outbound message buffer. Events are
	// dropped, not queued, when it is full.
	SendBuffer int `mapstructure:"send_buffer" validate:"min=0"`

	// ShutdownTimeout is how long graceful shutdown waits for active
	// connections before force-closing them.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = 256
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// WSAdapter implements adapter.Adapter over WebSocket.
type WSAdapter struct {
	config     Config
	dispatcher *adapter.Dispatcher
	metrics    metrics.CallMetrics

	listener   net.Listener
	httpServer *http.Server

	// boundPort is the actual listen port, set once the listener is up.
	boundPort atomic.Int32

	// activeConns tracks connection goroutines for graceful shutdown.
	activeConns sync.WaitGroup

	// connCount is the live connection count, for logging.
	connCount atomic.Int32

	// connections maps remote address to *wsConnection for forced closure.
	connections sync.Map

	shutdownOnce sync.Once
	shutdown     chan struct{}

	// shutdownCtx is cancelled during shutdown to abort in-flight calls.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc
}

// New creates a WSAdapter dispatching into the given coordinator. Pass nil
// metrics to disable collection.
func New(config Config, coord *coordinator.Coordinator, callMetrics metrics.CallMetrics) *WSAdapter {
	config.applyDefaults()

	dispatcher := adapter.NewDispatcher(coord, callMetrics)
	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &WSAdapter{
		config:         config,
		dispatcher:     dispatcher,
		metrics:        dispatcher.Metrics(),
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// Serve starts accepting upgrade requests and blocks until ctx is cancelled
// or an unrecoverable error occurs.
func (s *WSAdapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("creating WS listener on port %d: %w", s.config.Port, err)
	}

	s.listener = listener
	s.boundPort.Store(int32(listener.Addr().(*net.TCPAddr).Port))

	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleUpgrade)
	s.httpServer = &http.Server{Handler: mux}

	logger.Info("WS adapter listening on port %d (path %s)", s.Port(), s.config.Path)

	go func() {
		<-ctx.Done()
		logger.Info("WS shutdown signal received: %v", ctx.Err())
		s.initiateShutdown()
	}()

	err = s.httpServer.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("WS server: %w", err)
	}
	return s.gracefulShutdown()
}

// handleUpgrade upgrades one HTTP request and starts its pumps.
func (s *WSAdapter) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.shutdown:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WS upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	s.activeConns.Add(1)
	current := s.connCount.Add(1)
	s.metrics.ConnectionOpened()

	addr := ws.RemoteAddr().String()
	conn := newWSConnection(s, ws)
	s.connections.Store(addr, conn)

	logger.Debug("WS connection accepted from %s (active: %d)", addr, current)

	go conn.writePump()
	go func() {
		defer func() {
			s.connections.Delete(addr)
			s.activeConns.Done()
			remaining := s.connCount.Add(-1)
			s.metrics.ConnectionClosed()
			logger.Debug("WS connection closed from %s (active: %d)", addr, remaining)
		}()

		conn.readPump(s.shutdownCtx)
	}()
}

// initiateShutdown stops accepting upgrades and cancels in-flight calls.
// Safe to call multiple times.
func (s *WSAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.httpServer != nil {
			if err := s.httpServer.Close(); err != nil {
				logger.Debug("Error closing WS server: %v", err)
			}
		}
		s.cancelRequests()
	})
}

// gracefulShutdown waits for active connections up to ShutdownTimeout, then
// force-closes the rest.
func (s *WSAdapter) gracefulShutdown() error {
	active := s.connCount.Load()
	logger.Info("WS graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		active, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("WS graceful shutdown complete")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("WS shutdown timeout: %d connection(s) still active, forcing closure", remaining)
		s.forceCloseConnections()
		return fmt.Errorf("WS shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *WSAdapter) forceCloseConnections() {
	s.connections.Range(func(key, value any) bool {
		value.(*wsConnection).forceClose()
		return true
	})
}

// Stop initiates graceful shutdown. A nil context uses the configured
// ShutdownTimeout; otherwise the context bounds the wait.
func (s *WSAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("WS shutdown context cancelled: %d connection(s) still active", remaining)
		s.forceCloseConnections()
		return ctx.Err()
	}
}

// Port returns the actual listen port once Serve has bound the listener,
// falling back to the configured port before that.
func (s *WSAdapter) Port() int {
	if port := s.boundPort.Load(); port != 0 {
		return int(port)
	}
	return s.config.Port
}

// Protocol implements adapter.Adapter.
func (s *WSAdapter) Protocol() string {
	return "WS"
}
