package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ybecker/catalogd/internal/logger"
	"github.com/ybecker/catalogd/pkg/notify"
	"github.com/ybecker/catalogd/pkg/protocol/wire"
)

// errConnClosed is returned for sends on a connection whose pumps have
// stopped.
var errConnClosed = errors.New("websocket connection closed")

// wsConnection is one upgraded client. The write pump owns all writes to the
// socket; replies and events reach it through the send channel, so there is
// no write lock.
type wsConnection struct {
	server *WSAdapter
	ws     *websocket.Conn

	send chan []byte

	// done is closed when the read pump exits and no more sends are
	// accepted.
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConnection(server *WSAdapter, ws *websocket.Conn) *wsConnection {
	return &wsConnection{
		server: server,
		ws:     ws,
		send:   make(chan []byte, server.config.SendBuffer),
		done:   make(chan struct{}),
	}
}

// Send implements notify.Sink by queueing an event message for the write
// pump. When the buffer is full the event is dropped rather than blocking
// the caller; a catalog client that cannot drain its socket does not get to
// stall everyone else's mutations.
func (c *wsConnection) Send(event notify.Event) error {
	data, err := wire.EncodeEvent(event.Encode())
	if err != nil {
		c.server.metrics.RecordNotification(string(event.Kind), false)
		return fmt.Errorf("encode event: %w", err)
	}

	select {
	case c.send <- data:
		c.server.metrics.RecordNotification(string(event.Kind), true)
		return nil
	case <-c.done:
		c.server.metrics.RecordNotification(string(event.Kind), false)
		return errConnClosed
	default:
		c.server.metrics.RecordNotification(string(event.Kind), false)
		return fmt.Errorf("push event to %s: send buffer full", c.ws.RemoteAddr())
	}
}

// enqueueReply queues a call reply. Unlike events, replies block until the
// write pump has room; a call that got an answer delivers it.
func (c *wsConnection) enqueueReply(data []byte) error {
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errConnClosed
	}
}

func (c *wsConnection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// forceClose tears down the socket, unblocking both pumps.
func (c *wsConnection) forceClose() {
	c.close()
	_ = c.ws.Close()
}

// readPump reads binary messages and dispatches them as calls. It owns the
// read side of the socket and exits on the first error, which closes the
// connection for the write pump too.
func (c *wsConnection) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in WS handler from %s: %v", c.ws.RemoteAddr(), r)
		}
		c.close()
		_ = c.ws.Close()
	}()

	clientAddr := c.ws.RemoteAddr().String()

	c.ws.SetReadLimit(wire.MaxFragmentSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.server.config.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.server.config.PongTimeout))
	})

	for {
		select {
		case <-ctx.Done():
			logger.Debug("WS connection from %s closed: server shutting down", clientAddr)
			return
		default:
		}

		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WS read error from %s: %v", clientAddr, err)
			}
			return
		}

		// A call arrives after any read, so the deadline resets here too,
		// not only on pongs.
		_ = c.ws.SetReadDeadline(time.Now().Add(c.server.config.PongTimeout))

		if messageType != websocket.BinaryMessage {
			logger.Debug("Ignoring non-binary message from %s", clientAddr)
			continue
		}

		reply, err := c.server.dispatcher.HandleFrame(ctx, message, c, clientAddr)
		if err != nil {
			logger.Debug("Error handling call from %s: %v", clientAddr, err)
			return
		}
		if err := c.enqueueReply(reply); err != nil {
			return
		}
	}
}

// writePump owns all writes: replies and events from the send channel plus
// keepalive pings.
func (c *wsConnection) writePump() {
	ticker := time.NewTicker(c.server.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, message); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
