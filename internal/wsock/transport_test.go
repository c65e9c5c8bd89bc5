package wsock

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/shell-bridge-go/internal/codec"
	"github.com/wagiedev/shell-bridge-go/internal/config"
	shellerrors "github.com/wagiedev/shell-bridge-go/internal/errors"
)

type serverMessage struct {
	messageType int
	data        []byte
	header      http.Header
}

// newTestHost starts a WebSocket server. handle runs for each connection
// with the server-side conn.
func newTestHost(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)

			return
		}

		defer conn.Close()

		handle(conn, r)
	}))

	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// echoHost sends every received message back and reports it on got.
func echoHost(got chan<- serverMessage) func(*websocket.Conn, *http.Request) {
	return func(conn *websocket.Conn, r *http.Request) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			got <- serverMessage{messageType: mt, data: data, header: r.Header}

			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}
}

func startTransport(t *testing.T, opts *config.Options) *Transport {
	t.Helper()

	transport := NewTransport(slog.New(slog.DiscardHandler), opts)
	require.NoError(t, transport.Start(context.Background()))

	t.Cleanup(func() { _ = transport.Close() })

	return transport
}

func TestTransport_JSONRoundTrip(t *testing.T) {
	got := make(chan serverMessage, 1)
	url := newTestHost(t, echoHost(got))

	transport := startTransport(t, &config.Options{
		URL:    url,
		Header: map[string]string{"Authorization": "Bearer token"},
	})

	require.True(t, transport.IsReady())

	ctx := context.Background()
	messages, _ := transport.ReadMessages(ctx)

	frame, err := codec.JSON.Marshal(map[string]any{"type": "invoke", "command": "open"})
	require.NoError(t, err)
	require.NoError(t, transport.SendMessage(ctx, frame))

	select {
	case sm := <-got:
		require.Equal(t, websocket.TextMessage, sm.messageType)
		require.Equal(t, `{"command":"open","type":"invoke"}`, string(sm.data))
		require.Equal(t, "Bearer token", sm.header.Get("Authorization"))
	case <-time.After(5 * time.Second):
		t.Fatal("host received nothing")
	}

	select {
	case msg := <-messages:
		require.Equal(t, "open", msg["command"])
	case <-time.After(5 * time.Second):
		t.Fatal("no echo received")
	}
}

func TestTransport_CBORUsesBinaryMessages(t *testing.T) {
	got := make(chan serverMessage, 1)
	url := newTestHost(t, echoHost(got))

	transport := startTransport(t, &config.Options{URL: url, Codec: "cbor"})

	ctx := context.Background()
	messages, _ := transport.ReadMessages(ctx)

	frame, err := codec.CBOR.Marshal(map[string]any{"type": "callback", "callback": 2})
	require.NoError(t, err)
	require.NoError(t, transport.SendMessage(ctx, frame))

	sm := <-got
	require.Equal(t, websocket.BinaryMessage, sm.messageType)
	require.Equal(t, frame, sm.data)

	select {
	case msg := <-messages:
		require.Equal(t, uint64(2), msg["callback"])
	case <-time.After(5 * time.Second):
		t.Fatal("no echo received")
	}
}

func TestTransport_SkipsUndecodableMessages(t *testing.T) {
	url := newTestHost(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ok"}`))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		// Wait for the client's close reply.
		_, _, _ = conn.ReadMessage()
	})

	transport := startTransport(t, &config.Options{URL: url})

	messages, errs := transport.ReadMessages(context.Background())

	var received []map[string]any
	for msg := range messages {
		received = append(received, msg)
	}

	require.Len(t, received, 1)
	require.Equal(t, "ok", received[0]["type"])
	require.NoError(t, <-errs, "normal closure ends the stream without error")
}

func TestTransport_AbruptDisconnect(t *testing.T) {
	url := newTestHost(t, func(conn *websocket.Conn, _ *http.Request) {
		// Drop the TCP connection without a close frame.
		_ = conn.UnderlyingConn().Close()
	})

	transport := startTransport(t, &config.Options{URL: url})

	messages, errs := transport.ReadMessages(context.Background())

	for range messages {
	}

	err := <-errs

	_, ok := errors.AsType[*shellerrors.HostConnectionError](err)
	require.True(t, ok, "expected HostConnectionError, got %v", err)
}

func TestTransport_CloseEndsStreamQuietly(t *testing.T) {
	url := newTestHost(t, echoHost(make(chan serverMessage, 10)))

	transport := startTransport(t, &config.Options{URL: url})

	messages, errs := transport.ReadMessages(context.Background())

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
	require.False(t, transport.IsReady())

	for range messages {
	}

	require.NoError(t, <-errs)
}

func TestTransport_EndInput(t *testing.T) {
	url := newTestHost(t, echoHost(make(chan serverMessage, 10)))

	transport := startTransport(t, &config.Options{URL: url})

	require.NoError(t, transport.EndInput())
	require.NoError(t, transport.EndInput())
	require.False(t, transport.IsReady())

	err := transport.SendMessage(context.Background(), []byte("{}"))
	require.ErrorIs(t, err, shellerrors.ErrStdinClosed)
}

func TestTransport_StartErrors(t *testing.T) {
	t.Run("dial failure", func(t *testing.T) {
		transport := NewTransport(slog.New(slog.DiscardHandler), &config.Options{URL: "ws://127.0.0.1:1/ipc"})

		err := transport.Start(context.Background())

		_, ok := errors.AsType[*shellerrors.HostConnectionError](err)
		require.True(t, ok, "expected HostConnectionError, got %v", err)
	})

	t.Run("unknown codec", func(t *testing.T) {
		transport := NewTransport(slog.New(slog.DiscardHandler), &config.Options{URL: "ws://127.0.0.1:1", Codec: "xml"})

		require.ErrorContains(t, transport.Start(context.Background()), "unknown codec")
	})
}

func TestTransport_SendBeforeStart(t *testing.T) {
	transport := NewTransport(slog.New(slog.DiscardHandler), &config.Options{})

	require.ErrorIs(t, transport.SendMessage(context.Background(), []byte("{}")), shellerrors.ErrTransportNotConnected)
	require.NoError(t, transport.Close())
}
