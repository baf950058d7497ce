package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ybecker/catalogd/internal/logger"
	"github.com/ybecker/catalogd/pkg/notify"
	"github.com/ybecker/catalogd/pkg/protocol/wire"
)

// connection handles the call/reply cycle for one client and serves as the
// notify.Sink for sessions logged in over it.
//
// Replies and event pushes share the socket, so every write happens under
// writeMu to keep frames from interleaving.
type connection struct {
	server *TCPAdapter
	conn   net.Conn

	writeMu sync.Mutex
}

func newConnection(server *TCPAdapter, conn net.Conn) *connection {
	return &connection{server: server, conn: conn}
}

// Send implements notify.Sink by pushing an EVENT frame to the client.
//
// Called from whatever goroutine triggered the notification, concurrently
// with this connection's own call handling. Failures are returned to the
// session registry's caller; they never close the connection.
func (c *connection) Send(event notify.Event) error {
	data, err := wire.EncodeEvent(event.Encode())
	if err != nil {
		c.server.metrics.RecordNotification(string(event.Kind), false)
		return fmt.Errorf("encode event: %w", err)
	}

	if err := c.writeFrame(data); err != nil {
		c.server.metrics.RecordNotification(string(event.Kind), false)
		return fmt.Errorf("push event to %s: %w", c.conn.RemoteAddr(), err)
	}

	c.server.metrics.RecordNotification(string(event.Kind), true)
	return nil
}

// serve processes calls until the client disconnects, a timeout fires, or
// the server shuts down. Panic recovery keeps one misbehaving connection
// from taking the server down.
func (c *connection) serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler from %s: %v", c.conn.RemoteAddr(), r)
		}
		_ = c.conn.Close()
	}()

	clientAddr := c.conn.RemoteAddr().String()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Connection from %s closed: server shutting down", clientAddr)
			return
		default:
		}

		if err := c.handleCall(ctx); err != nil {
			switch {
			case err == io.EOF:
				logger.Debug("Connection from %s closed by client", clientAddr)
			case isTimeout(err):
				logger.Debug("Connection from %s timed out: %v", clientAddr, err)
			case err == context.Canceled || err == context.DeadlineExceeded:
				logger.Debug("Connection from %s cancelled: %v", clientAddr, err)
			default:
				logger.Debug("Error handling call from %s: %v", clientAddr, err)
			}
			return
		}
	}
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}

// handleCall reads, dispatches, and answers a single call.
func (c *connection) handleCall(ctx context.Context) error {
	// The idle timeout doubles as the read deadline: a connection is idle
	// until a complete call arrives.
	deadline := c.server.config.IdleTimeout
	if c.server.config.ReadTimeout > 0 && c.server.config.ReadTimeout < deadline {
		deadline = c.server.config.ReadTimeout
	}
	if deadline > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
	}

	frame, err := wire.ReadFrame(c.conn)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	reply, err := c.server.dispatcher.HandleFrame(ctx, frame, c, c.conn.RemoteAddr().String())
	if err != nil {
		return err
	}
	return c.writeFrame(reply)
}

// writeFrame writes one frame under the write lock with the configured
// write deadline.
func (c *connection) writeFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.server.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return wire.WriteFrame(c.conn, data)
}
