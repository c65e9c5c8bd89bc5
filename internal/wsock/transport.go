// Package wsock provides a WebSocket transport for hosts that listen on a
// socket instead of being spawned by the caller.
//
// Each WebSocket message carries exactly one codec frame: text messages for
// JSON, binary messages for CBOR.
package wsock

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wagiedev/shell-bridge-go/internal/codec"
	"github.com/wagiedev/shell-bridge-go/internal/config"
	"github.com/wagiedev/shell-bridge-go/internal/errors"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Transport implements config.Transport over a WebSocket connection.
type Transport struct {
	log          *slog.Logger
	url          string
	header       http.Header
	codecName    string
	frames       codec.Codec
	maxFrameSize int
	dialer       *websocket.Dialer

	mu          sync.Mutex
	writeMu     sync.Mutex // serialises all conn writes (frames, pings, close)
	conn        *websocket.Conn
	closing     bool
	inputClosed bool
	stopPing    context.CancelFunc
}

// Compile-time verification that Transport implements the Transport interface.
var _ config.Transport = (*Transport)(nil)

// NewTransport creates a transport that dials options.URL on Start.
func NewTransport(log *slog.Logger, options *config.Options) *Transport {
	header := make(http.Header, len(options.Header))
	for k, v := range options.Header {
		header.Set(k, v)
	}

	maxFrameSize := codec.DefaultMaxFrameSize
	if options.MaxFrameSize != nil && *options.MaxFrameSize > 0 {
		maxFrameSize = *options.MaxFrameSize
	}

	return &Transport{
		log:          log.With("component", "ws_transport"),
		url:          options.URL,
		header:       header,
		codecName:    options.Codec,
		maxFrameSize: maxFrameSize,
		dialer:       websocket.DefaultDialer,
	}
}

// Codec returns the frame codec. It is valid after Start.
func (t *Transport) Codec() codec.Codec {
	return t.frames
}

// Start dials the host. Dial failures are returned as
// *errors.HostConnectionError.
func (t *Transport) Start(ctx context.Context) error {
	frames, err := codec.ByName(t.codecName)
	if err != nil {
		return fmt.Errorf("select codec: %w", err)
	}

	t.frames = frames

	t.log.Info("Connecting to host", "url", t.url, "codec", frames.Name())

	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		t.log.Error("Failed to connect to host", "url", t.url, "error", err)

		return &errors.HostConnectionError{Err: fmt.Errorf("dial %s: %w", t.url, err)}
	}

	conn.SetReadLimit(int64(t.maxFrameSize))

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

	pingCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.conn = conn
	t.stopPing = cancel
	t.mu.Unlock()

	go t.pingLoop(pingCtx, conn)

	t.log.Info("Connected to host", "url", t.url)

	return nil
}

// pingLoop sends periodic pings until ctx is cancelled or a ping fails.
func (t *Transport) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()

			if err != nil {
				t.log.Debug("Ping failed", "error", err)

				return
			}
		}
	}
}

// ReadMessages reads one frame per WebSocket message.
//
// Undecodable messages are logged and skipped. A normal close by the host
// ends the stream without error; any other read failure is reported as
// *errors.HostConnectionError unless Close was called.
func (t *Transport) ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any)
	errs := make(chan error, 1)

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		if conn == nil {
			errs <- errors.ErrTransportNotConnected

			return
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				t.mu.Lock()
				closing := t.closing
				t.mu.Unlock()

				if closing || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					t.log.Debug("Connection closed", "error", err)

					return
				}

				t.log.Error("Connection to host failed", "error", err)

				errs <- &errors.HostConnectionError{Err: err}

				return
			}

			var msg map[string]any
			if err := t.frames.Unmarshal(data, &msg); err != nil {
				t.log.Warn("Skipping undecodable frame from host", "error", err)

				continue
			}

			select {
			case messages <- msg:
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			}
		}
	}()

	return messages, errs
}

// SendMessage writes one frame as a single WebSocket message. It is safe for
// concurrent use.
func (t *Transport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	conn := t.conn
	inputClosed := t.inputClosed
	t.mu.Unlock()

	if conn == nil {
		return errors.ErrTransportNotConnected
	}

	if inputClosed {
		return errors.ErrStdinClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	messageType := websocket.TextMessage
	if t.frames.Binary() {
		messageType = websocket.BinaryMessage
	} else {
		data = bytes.TrimSuffix(data, []byte("\n"))
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = conn.SetWriteDeadline(deadline)

	if err := conn.WriteMessage(messageType, data); err != nil {
		t.log.Error("Failed to write frame to host", "error", err)

		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// IsReady reports whether the connection is open for writing.
func (t *Transport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil && !t.inputClosed && !t.closing
}

// EndInput sends a close frame. The host is expected to finish outstanding
// work and close the connection.
func (t *Transport) EndInput() error {
	t.mu.Lock()
	conn := t.conn
	already := t.inputClosed
	t.inputClosed = true
	t.mu.Unlock()

	if conn == nil || already {
		return nil
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")

	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	if err != nil && !stderrors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("send close frame: %w", err)
	}

	return nil
}

// Close closes the connection. It's safe to call Close multiple times.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return nil
	}

	t.closing = true
	t.inputClosed = true

	if t.stopPing != nil {
		t.stopPing()
	}

	if t.conn == nil {
		return nil
	}

	t.log.Debug("Closing connection to host")

	return t.conn.Close()
}
