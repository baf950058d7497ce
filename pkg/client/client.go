// Package client implements the Go client for the catalog service. It is
// used by the command-line client and the end-to-end tests.
//
// Calls are synchronous; a background reader demultiplexes the socket,
// matching REPLY frames to waiting calls by XID and handing EVENT frames to
// the notification handler registered at dial time.
package client

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ybecker/catalogd/pkg/notify"
	"github.com/ybecker/catalogd/pkg/protocol/wire"
)

// ErrCallFailed is returned when the server answers with an error status.
// The detail stays in the server log; clients only need success/failure.
var ErrCallFailed = errors.New("call failed")

// ErrClosed is returned for calls on a closed client.
var ErrClosed = errors.New("client closed")

// EventHandler receives asynchronous owner notifications. It is called from
// the client's reader goroutine, so it must not block for long.
type EventHandler func(event notify.Event)

type pendingReply struct {
	status uint32
	body   []byte
}

// Client is a catalog service client over one TCP connection.
//
// Thread safety: safe for concurrent calls from multiple goroutines.
type Client struct {
	conn    net.Conn
	handler EventHandler

	// callTimeout bounds one call round trip.
	callTimeout time.Duration

	writeMu sync.Mutex

	nextXID atomic.Uint32

	mu      sync.Mutex
	pending map[uint32]chan pendingReply
	closed  bool
	readErr error
}

// Option configures a Client.
type Option func(*Client)

// WithCallTimeout overrides the default 30s call timeout.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.callTimeout = timeout
	}
}

// Dial connects to a catalog server. The handler may be nil when the caller
// does not care about notifications.
func Dial(addr string, handler EventHandler, opts ...Option) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	c := &Client{
		conn:        conn,
		handler:     handler,
		callTimeout: 30 * time.Second,
		pending:     make(map[uint32]chan pendingReply),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()
	return c, nil
}

// Close tears down the connection. In-flight calls fail with ErrClosed.
func (c *Client) Close() error {
	c.fail(ErrClosed)
	return c.conn.Close()
}

// readLoop owns all reads from the socket. It runs until the connection
// breaks, then fails every waiting call.
func (c *Client) readLoop() {
	for {
		frame, err := wire.ReadFrame(c.conn)
		if err != nil {
			c.fail(err)
			return
		}

		prefix, reader, err := wire.DecodePrefix(frame)
		if err != nil {
			c.fail(fmt.Errorf("decode frame: %w", err))
			return
		}

		switch prefix.Type {
		case wire.MsgEvent:
			payload, err := wire.DecodeEventPayload(reader)
			if err != nil {
				c.fail(fmt.Errorf("decode event: %w", err))
				return
			}
			if c.handler != nil {
				c.handler(notify.Decode(payload))
			}

		case wire.MsgReply:
			status, err := wire.DecodeReplyStatus(reader)
			if err != nil {
				c.fail(fmt.Errorf("decode reply: %w", err))
				return
			}

			body := make([]byte, reader.Len())
			_, _ = reader.Read(body)

			c.mu.Lock()
			ch, ok := c.pending[prefix.XID]
			delete(c.pending, prefix.XID)
			c.mu.Unlock()

			if ok {
				ch <- pendingReply{status: status, body: body}
			}

		default:
			// Unknown frame types are tolerated and skipped.
		}
	}
}

// fail closes the pending table, waking every in-flight call with err.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.readErr = err

	for xid, ch := range c.pending {
		close(ch)
		delete(c.pending, xid)
	}
}

// call performs one synchronous round trip. A nil result skips decoding the
// reply body.
func (c *Client) call(procedure uint32, args, result interface{}) error {
	xid := c.nextXID.Add(1)

	data, err := wire.EncodeCall(xid, procedure, args)
	if err != nil {
		return err
	}

	ch := make(chan pendingReply, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[xid] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err = wire.WriteFrame(c.conn, data)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, xid)
		c.mu.Unlock()
		return fmt.Errorf("send %s: %w", wire.ProcedureName(procedure), err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			c.mu.Lock()
			readErr := c.readErr
			c.mu.Unlock()
			return fmt.Errorf("%s: connection lost: %w", wire.ProcedureName(procedure), readErr)
		}
		if reply.status != wire.StatusOK {
			return fmt.Errorf("%s: %w", wire.ProcedureName(procedure), ErrCallFailed)
		}
		if result != nil {
			if err := wire.DecodeResult(bytes.NewReader(reply.body), result); err != nil {
				return fmt.Errorf("%s: %w", wire.ProcedureName(procedure), err)
			}
		}
		return nil

	case <-time.After(c.callTimeout):
		c.mu.Lock()
		delete(c.pending, xid)
		c.mu.Unlock()
		return fmt.Errorf("%s: timed out after %v", wire.ProcedureName(procedure), c.callTimeout)
	}
}

// Register reserves a username. Returns false when the name is taken.
func (c *Client) Register(username, password string) (bool, error) {
	var result wire.RegisterResult
	if err := c.call(wire.ProcRegister, &wire.RegisterArgs{Username: username, Password: password}, &result); err != nil {
		return false, err
	}
	return result.OK, nil
}

// Login authenticates and returns the session token; 0 means failure. The
// connection underlying this client becomes the notification channel for
// the session.
func (c *Client) Login(username, password string) (uint64, error) {
	var result wire.LoginResult
	if err := c.call(wire.ProcLogin, &wire.LoginArgs{Username: username, Password: password}, &result); err != nil {
		return 0, err
	}
	return result.Token, nil
}

// Logout drops the session. Safe to call with a stale token.
func (c *Client) Logout(token uint64) error {
	return c.call(wire.ProcLogout, &wire.LogoutArgs{Token: token}, nil)
}

// List returns every record in the catalog.
func (c *Client) List() ([]wire.RecordInfo, error) {
	var result wire.ListResult
	if err := c.call(wire.ProcList, nil, &result); err != nil {
		return nil, err
	}
	return result.Records, nil
}

// Open fetches one record, or nil when it is absent or the token invalid.
func (c *Client) Open(filename string, token uint64) (*wire.RecordInfo, error) {
	var result wire.OpenResult
	if err := c.call(wire.ProcOpen, &wire.OpenArgs{Filename: filename, Token: token}, &result); err != nil {
		return nil, err
	}
	if !result.Found {
		return nil, nil
	}
	record := result.Record
	return &record, nil
}

// Upload adds a record. Permission must be "RO" or "RW".
func (c *Client) Upload(token uint64, filename string, size int64, permission string) error {
	return c.call(wire.ProcUpload, &wire.UploadArgs{
		Token:      token,
		Filename:   filename,
		Size:       size,
		Permission: permission,
	}, nil)
}

// Delete removes a record, subject to server-side authorization.
func (c *Client) Delete(filename string, token uint64) error {
	return c.call(wire.ProcDelete, &wire.DeleteArgs{Filename: filename, Token: token}, nil)
}

// Update overwrites a record's size, subject to server-side authorization.
func (c *Client) Update(filename string, size int64, token uint64) error {
	return c.call(wire.ProcUpdate, &wire.UpdateArgs{Filename: filename, Size: size, Token: token}, nil)
}
