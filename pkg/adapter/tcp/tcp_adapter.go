// Package tcp implements the primary protocol adapter: a TCP server speaking
// the catalog wire protocol.
//
// A connection carries calls from the client and doubles as the callback
// sink for any session logged in over it, so notification pushes share the
// socket with replies.
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ybecker/catalogd/internal/logger"
	"github.com/ybecker/catalogd/pkg/adapter"
	"github.com/ybecker/catalogd/pkg/coordinator"
	"github.com/ybecker/catalogd/pkg/metrics"
)

// Config holds the TCP adapter settings. Zero timeout values are replaced by
// defaults in New.
type Config struct {
	// Enabled controls whether the adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port to listen on. 0 binds an ephemeral port (used by
	// tests).
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections limits concurrent client connections. 0 means
	// unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// ReadTimeout bounds reading one complete call.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing one reply or event.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout closes connections with no traffic. 0 disables.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout is how long graceful shutdown waits for active
	// connections before force-closing them.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MetricsLogInterval is how often to log the connection count. 0
	// disables.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// TCPAdapter implements adapter.Adapter for the catalog wire protocol.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled (in-flight calls abort)
//  4. Wait for active connections up to ShutdownTimeout
//  5. Force-close whatever remains
type TCPAdapter struct {
	config     Config
	dispatcher *adapter.Dispatcher
	metrics    metrics.CallMetrics

	listener net.Listener

	// boundPort is the actual listen port, set once the listener is up.
	// Relevant when config.Port is 0.
	boundPort atomic.Int32

	// activeConns tracks connection goroutines for graceful shutdown.
	activeConns sync.WaitGroup

	// connCount is the live connection count, for logging.
	connCount atomic.Int32

	// connections maps remote address to net.Conn for forced closure.
	connections sync.Map

	// connSemaphore bounds concurrent connections; nil when unlimited.
	connSemaphore chan struct{}

	shutdownOnce sync.Once
	shutdown     chan struct{}

	// shutdownCtx is cancelled during shutdown to abort in-flight calls.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc
}

// New creates a TCPAdapter dispatching into the given coordinator. Pass nil
// metrics to disable collection.
func New(config Config, coord *coordinator.Coordinator, callMetrics metrics.CallMetrics) *TCPAdapter {
	config.applyDefaults()

	dispatcher := adapter.NewDispatcher(coord, callMetrics)

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &TCPAdapter{
		config:         config,
		dispatcher:     dispatcher,
		metrics:        dispatcher.Metrics(),
		connSemaphore:  connSemaphore,
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// Serve starts accepting connections and blocks until ctx is cancelled or an
// unrecoverable error occurs.
func (s *TCPAdapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("creating TCP listener on port %d: %w", s.config.Port, err)
	}

	s.listener = listener
	s.boundPort.Store(int32(listener.Addr().(*net.TCPAddr).Port))
	logger.Info("TCP adapter listening on port %d", s.Port())

	go func() {
		<-ctx.Done()
		logger.Info("TCP shutdown signal received: %v", ctx.Err())
		s.initiateShutdown()
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			select {
			case <-s.shutdown:
				// Listener closed by shutdown.
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting connection: %v", err)
				continue
			}
		}

		s.activeConns.Add(1)
		current := s.connCount.Add(1)

		addr := tcpConn.RemoteAddr().String()
		s.connections.Store(addr, tcpConn)
		s.metrics.ConnectionOpened()

		logger.Debug("Connection accepted from %s (active: %d)", addr, current)

		conn := newConnection(s, tcpConn)
		go func(addr string, tcp net.Conn) {
			defer func() {
				s.connections.Delete(addr)
				s.activeConns.Done()
				remaining := s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
				s.metrics.ConnectionClosed()
				logger.Debug("Connection closed from %s (active: %d)", addr, remaining)
			}()

			conn.serve(s.shutdownCtx)
		}(addr, tcpConn)
	}
}

// initiateShutdown closes the listener and cancels in-flight calls. Safe to
// call multiple times.
func (s *TCPAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing TCP listener: %v", err)
			}
		}
		s.cancelRequests()
	})
}

// gracefulShutdown waits for active connections up to ShutdownTimeout, then
// force-closes the rest.
func (s *TCPAdapter) gracefulShutdown() error {
	active := s.connCount.Load()
	logger.Info("TCP graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		active, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("TCP graceful shutdown complete")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("TCP shutdown timeout: %d connection(s) still active, forcing closure", remaining)
		s.forceCloseConnections()
		return fmt.Errorf("TCP shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *TCPAdapter) forceCloseConnections() {
	s.connections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", key, err)
		}
		return true
	})
}

// Stop initiates graceful shutdown. A nil context uses the configured
// ShutdownTimeout; otherwise the context bounds the wait.
func (s *TCPAdapter) Stop(ctx context.Context) error {
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
		logger.Warn("TCP shutdown context cancelled: %d connection(s) still active", remaining)
		s.forceCloseConnections()
		return ctx.Err()
	}
}

func (s *TCPAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("TCP metrics: active_connections=%d", s.connCount.Load())
		}
	}
}

// Port returns the actual listen port once Serve has bound the listener,
// falling back to the configured port before that.
func (s *TCPAdapter) Port() int {
	if port := s.boundPort.Load(); port != 0 {
		return int(port)
	}
	return s.config.Port
}

// Protocol implements adapter.Adapter.
func (s *TCPAdapter) Protocol() string {
	return "TCP"
}
