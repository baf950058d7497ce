package ws_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ybecker/catalogd/pkg/adapter/ws"
	"github.com/ybecker/catalogd/pkg/catalog"
	"github.com/ybecker/catalogd/pkg/coordinator"
	"github.com/ybecker/catalogd/pkg/notify"
	"github.com/ybecker/catalogd/pkg/protocol/wire"
	"github.com/ybecker/catalogd/pkg/session"
	"github.com/ybecker/catalogd/pkg/store/memory"
)

func startServer(t *testing.T) string {
	t.Helper()

	coord := coordinator.New(
		memory.NewAccountStore(),
		catalog.New(memory.NewCatalogStore()),
		session.NewRegistry(),
	)

	adapter := ws.New(ws.Config{
		Enabled:         true,
		Port:            0,
		ShutdownTimeout: 2 * time.Second,
	}, coord, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = adapter.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("adapter did not shut down")
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for adapter.Port() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("adapter never bound a port")
		}
		time.Sleep(10 * time.Millisecond)
	}

	return fmt.Sprintf("ws://127.0.0.1:%d/ws", adapter.Port())
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// call sends one call as a binary message and decodes the reply body into
// result (nil result skips decoding). Event messages arriving in between are
// returned to the caller.
func call(t *testing.T, conn *websocket.Conn, xid, procedure uint32, args, result interface{}) (status uint32, events []notify.Event) {
	t.Helper()

	data, err := wire.EncodeCall(xid, procedure, args)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, data))

	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		messageType, message, err := conn.ReadMessage()
		require.NoError(t, err)
		if messageType != websocket.BinaryMessage {
			continue
		}

		prefix, reader, err := wire.DecodePrefix(message)
		require.NoError(t, err)

		if prefix.Type == wire.MsgEvent {
			payload, err := wire.DecodeEventPayload(reader)
			require.NoError(t, err)
			events = append(events, notify.Decode(payload))
			continue
		}

		require.Equal(t, wire.MsgReply, prefix.Type)
		require.Equal(t, xid, prefix.XID)

		status, err = wire.DecodeReplyStatus(reader)
		require.NoError(t, err)
		if result != nil && status == wire.StatusOK {
			body := make([]byte, reader.Len())
			_, _ = reader.Read(body)
			require.NoError(t, wire.DecodeResult(bytes.NewReader(body), result))
		}
		return status, events
	}
}

func login(t *testing.T, conn *websocket.Conn, username, password string) uint64 {
	t.Helper()

	var registered wire.RegisterResult
	status, _ := call(t, conn, 1, wire.ProcRegister, &wire.RegisterArgs{Username: username, Password: password}, &registered)
	require.Equal(t, wire.StatusOK, status)

	var result wire.LoginResult
	status, _ = call(t, conn, 2, wire.ProcLogin, &wire.LoginArgs{Username: username, Password: password}, &result)
	require.Equal(t, wire.StatusOK, status)
	require.NotZero(t, result.Token)
	return result.Token
}

func TestWebSocketCallRoundTrip(t *testing.T) {
	url := startServer(t)
	conn := dial(t, url)

	token := login(t, conn, "alice", "secret")

	status, _ := call(t, conn, 3, wire.ProcUpload, &wire.UploadArgs{
		Token:      token,
		Filename:   "report.txt",
		Size:       512,
		Permission: "RO",
	}, nil)
	require.Equal(t, wire.StatusOK, status)

	var list wire.ListResult
	status, _ = call(t, conn, 4, wire.ProcList, nil, &list)
	require.Equal(t, wire.StatusOK, status)
	require.Len(t, list.Records, 1)
	assert.Equal(t, "report.txt", list.Records[0].Filename)
	assert.Equal(t, "alice", list.Records[0].Owner)
}

func TestWebSocketRejectsBadPermission(t *testing.T) {
	url := startServer(t)
	conn := dial(t, url)

	token := login(t, conn, "alice", "secret")

	status, _ := call(t, conn, 3, wire.ProcUpload, &wire.UploadArgs{
		Token:      token,
		Filename:   "report.txt",
		Size:       512,
		Permission: "EXEC",
	}, nil)
	assert.Equal(t, wire.StatusError, status)
}

func TestWebSocketNotificationDelivery(t *testing.T) {
	url := startServer(t)

	alice := dial(t, url)
	aliceToken := login(t, alice, "alice", "secret")

	status, _ := call(t, alice, 3, wire.ProcUpload, &wire.UploadArgs{
		Token:      aliceToken,
		Filename:   "shared.txt",
		Size:       100,
		Permission: "RW",
	}, nil)
	require.Equal(t, wire.StatusOK, status)

	bob := dial(t, url)
	bobToken := login(t, bob, "bob", "hunter2")

	var opened wire.OpenResult
	status, _ = call(t, bob, 3, wire.ProcOpen, &wire.OpenArgs{Filename: "shared.txt", Token: bobToken}, &opened)
	require.Equal(t, wire.StatusOK, status)
	require.True(t, opened.Found)

	// The event lands on alice's socket; surface it with a harmless list
	// call, which drains anything queued ahead of the reply.
	var list wire.ListResult
	_, events := call(t, alice, 4, wire.ProcList, nil, &list)
	if len(events) == 0 {
		// The push races the list reply; one more read settles it.
		_ = alice.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, message, err := alice.ReadMessage()
		require.NoError(t, err)
		prefix, reader, err := wire.DecodePrefix(message)
		require.NoError(t, err)
		require.Equal(t, wire.MsgEvent, prefix.Type)
		payload, err := wire.DecodeEventPayload(reader)
		require.NoError(t, err)
		events = append(events, notify.Decode(payload))
	}

	require.Len(t, events, 1)
	assert.Equal(t, notify.KindOpened, events[0].Kind)
	assert.Equal(t, "bob", events[0].Actor)
}
