package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/shell-bridge-go/internal/codec"
	shellerrors "github.com/wagiedev/shell-bridge-go/internal/errors"
)

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu       sync.Mutex
	messages [][]byte
	sent     chan []byte
	msgChan  chan map[string]any
	errChan  chan error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		messages: make([][]byte, 0, 10),
		sent:     make(chan []byte, 100),
		msgChan:  make(chan map[string]any, 10),
		errChan:  make(chan error, 1),
	}
}

func (m *mockTransport) ReadMessages(_ context.Context) (<-chan map[string]any, <-chan error) {
	return m.msgChan, m.errChan
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	m.mu.Lock()
	m.messages = append(m.messages, data)
	m.mu.Unlock()

	select {
	case m.sent <- data:
	default:
	}

	return nil
}

func (m *mockTransport) getMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([][]byte, len(m.messages))
	copy(result, m.messages)

	return result
}

func (m *mockTransport) sendToController(msg map[string]any) {
	m.msgChan <- msg
}

// nextRequest waits for the controller to send a request and decodes it.
func (m *mockTransport) nextRequest(t *testing.T) InvokeRequest {
	t.Helper()

	select {
	case data := <-m.sent:
		var req InvokeRequest
		require.NoError(t, json.Unmarshal(data, &req))

		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no request sent")

		return InvokeRequest{}
	}
}

func newTestController(t *testing.T, transport *mockTransport, timeout time.Duration) *Controller {
	t.Helper()

	controller := NewController(slog.New(slog.DiscardHandler), transport, codec.JSON, timeout)
	require.NoError(t, controller.Start(context.Background()))

	return controller
}

func TestController_Invoke_Success(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	defer controller.Stop()

	type result struct {
		value any
		err   error
	}

	done := make(chan result, 1)

	go func() {
		v, err := controller.Invoke(context.Background(), "execute", map[string]any{"program": "ls"})
		done <- result{v, err}
	}()

	req := transport.nextRequest(t)
	require.Equal(t, "invoke", req.Type)
	require.Equal(t, "execute", req.Command)
	require.Equal(t, "ls", req.Payload["program"])
	require.NotEmpty(t, req.RequestID)

	transport.sendToController(map[string]any{
		"type": "invoke_response",
		"response": map[string]any{
			"subtype":    "success",
			"request_id": req.RequestID,
			"response":   float64(4242),
		},
	})

	res := <-done
	require.NoError(t, res.err)
	require.InEpsilon(t, 4242.0, res.value, 0)
}

func TestController_Invoke_HostRejects(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	defer controller.Stop()

	errCh := make(chan error, 1)

	go func() {
		_, err := controller.Invoke(context.Background(), "open", map[string]any{"path": "/etc/shadow"})
		errCh <- err
	}()

	req := transport.nextRequest(t)

	transport.sendToController(map[string]any{
		"type": "invoke_response",
		"response": map[string]any{
			"subtype":    "error",
			"request_id": req.RequestID,
			"error":      "path not permitted",
		},
	})

	err := <-errCh

	bridgeErr, ok := errors.AsType[*shellerrors.BridgeError](err)
	require.True(t, ok, "expected BridgeError, got %v", err)
	require.Equal(t, "open", bridgeErr.Command)
	require.Equal(t, "path not permitted", bridgeErr.Reason)
}

func TestController_Invoke_Timeout(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, 20*time.Millisecond)

	defer controller.Stop()

	_, err := controller.Invoke(context.Background(), "killChild", map[string]any{"pid": 1})
	require.ErrorIs(t, err, shellerrors.ErrRequestTimeout)

	controller.pendingMu.RLock()
	defer controller.pendingMu.RUnlock()

	require.Empty(t, controller.pending)
}

func TestController_Invoke_ContextCancelled(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Minute)

	defer controller.Stop()

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		_, err := controller.Invoke(ctx, "execute", nil)
		errCh <- err
	}()

	transport.nextRequest(t)
	cancel()

	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestController_Invoke_FatalError(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Minute)

	defer controller.Stop()

	errCh := make(chan error, 1)

	go func() {
		_, err := controller.Invoke(context.Background(), "execute", nil)
		errCh <- err
	}()

	transport.nextRequest(t)
	transport.errChan <- errors.New("pipe broken")

	err := <-errCh
	require.ErrorContains(t, err, "transport error")
	require.ErrorContains(t, err, "pipe broken")
}

func TestController_Invoke_AfterStop(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Minute)

	controller.Stop()

	_, err := controller.Invoke(context.Background(), "execute", nil)
	require.ErrorIs(t, err, shellerrors.ErrControllerStopped)
}

func TestController_TransportEndFailsPendingInvoke(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Minute)

	defer controller.Stop()

	require.NoError(t, controller.Err())

	errCh := make(chan error, 1)

	go func() {
		_, err := controller.Invoke(context.Background(), "execute", nil)
		errCh <- err
	}()

	transport.nextRequest(t)
	close(transport.msgChan)

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, shellerrors.ErrControllerStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("pending invoke did not fail when the transport ended")
	}

	<-controller.Done()
	require.ErrorIs(t, controller.Err(), shellerrors.ErrControllerStopped)
}

func TestController_Invoke_CBORFrames(t *testing.T) {
	transport := newMockTransport()
	controller := NewController(slog.New(slog.DiscardHandler), transport, codec.CBOR, time.Second)
	require.NoError(t, controller.Start(context.Background()))

	defer controller.Stop()

	go func() {
		_, _ = controller.Invoke(context.Background(), "open", map[string]any{"path": "/tmp"})
	}()

	select {
	case data := <-transport.sent:
		var req InvokeRequest
		require.NoError(t, codec.CBOR.Unmarshal(data, &req))
		require.Equal(t, "open", req.Command)
		require.Equal(t, "/tmp", req.Payload["path"])
	case <-time.After(2 * time.Second):
		t.Fatal("no request sent")
	}
}

func TestController_Callbacks_DeliveredInOrder(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	defer controller.Stop()

	var (
		mu  sync.Mutex
		got []any
	)

	received := make(chan struct{}, 10)

	id := controller.RegisterCallback(func(payload any) {
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()

		received <- struct{}{}
	})

	for _, p := range []string{"a", "b", "c"} {
		transport.sendToController(map[string]any{
			"type":     "callback",
			"callback": float64(id),
			"payload":  p,
		})
	}

	for range 3 {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("callback not delivered")
		}
	}

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, []any{"a", "b", "c"}, got)
}

func TestController_Callbacks_UniqueIDs(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	defer controller.Stop()

	seen := make(map[uint32]bool)

	for range 20 {
		id := controller.RegisterCallback(func(any) {})
		require.False(t, seen[uint32(id)])
		require.NotZero(t, id)

		seen[uint32(id)] = true
	}
}

func TestController_Callbacks_UnregisterDropsLaterPayloads(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	defer controller.Stop()

	calls := make(chan any, 10)
	id := controller.RegisterCallback(func(payload any) { calls <- payload })

	transport.sendToController(map[string]any{"type": "callback", "callback": float64(id), "payload": 1})

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("callback not delivered")
	}

	controller.UnregisterCallback(id)
	controller.UnregisterCallback(id)

	transport.sendToController(map[string]any{"type": "callback", "callback": float64(id), "payload": 2})

	select {
	case p := <-calls:
		t.Fatalf("unexpected delivery after unregister: %v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestController_Callbacks_HandlerCanInvoke(t *testing.T) {
	// A handler that calls Invoke must not deadlock the read loop, which has
	// to deliver the response.
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	defer controller.Stop()

	result := make(chan error, 1)

	id := controller.RegisterCallback(func(any) {
		_, err := controller.Invoke(context.Background(), "stdinWrite", map[string]any{"pid": 1, "buffer": "y\n"})
		result <- err
	})

	transport.sendToController(map[string]any{"type": "callback", "callback": uint64(id), "payload": "prompt"})

	req := transport.nextRequest(t)
	require.Equal(t, "stdinWrite", req.Command)

	transport.sendToController(map[string]any{
		"type":     "invoke_response",
		"response": map[string]any{"subtype": "success", "request_id": req.RequestID},
	})

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler deadlocked")
	}
}

func TestController_Callbacks_InvalidID(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	defer controller.Stop()

	// Neither should panic or block the read loop.
	transport.sendToController(map[string]any{"type": "callback", "callback": "nope"})
	transport.sendToController(map[string]any{"type": "callback", "callback": float64(999)})

	transport.sendToController(map[string]any{"type": "host_ready"})

	select {
	case msg := <-controller.Messages():
		require.Equal(t, "host_ready", msg["type"])
	case <-time.After(2 * time.Second):
		t.Fatal("read loop blocked")
	}
}

func TestController_ForwardsOtherMessages(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	transport.sendToController(map[string]any{"type": "log", "line": "hello"})

	select {
	case msg := <-controller.Messages():
		assert.Equal(t, "hello", msg["line"])
	case <-time.After(2 * time.Second):
		t.Fatal("message not forwarded")
	}

	controller.Stop()

	_, ok := <-controller.Messages()
	require.False(t, ok, "messages channel closes when the read loop exits")
}

func TestController_UnmatchedResponseIgnored(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	defer controller.Stop()

	transport.sendToController(map[string]any{
		"type":     "invoke_response",
		"response": map[string]any{"subtype": "success", "request_id": "stale"},
	})
	transport.sendToController(map[string]any{"type": "invoke_response"})

	require.Empty(t, transport.getMessages())
}

func TestController_SetFatalError_ConcurrentWithStop(t *testing.T) {
	// This test verifies no panic occurs when SetFatalError and Stop race.
	// Run with: go test -race -count=100
	for range 100 {
		transport := newMockTransport()
		controller := newTestController(t, transport, time.Second)

		var wg sync.WaitGroup

		wg.Go(func() {
			controller.SetFatalError(errors.New("transport error"))
		})

		wg.Go(func() {
			controller.Stop()
		})

		wg.Wait()

		select {
		case <-controller.Done():
		default:
			t.Fatal("done channel should be closed")
		}
	}
}

func TestController_SetFatalError_MultipleCalls(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	defer controller.Stop()

	controller.SetFatalError(errors.New("first error"))
	require.EqualError(t, controller.FatalError(), "first error")

	controller.SetFatalError(errors.New("second error"))
	require.EqualError(t, controller.FatalError(), "first error")
}

func TestController_Stop_MultipleCalls(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	controller.Stop()
	controller.Stop()
	controller.Stop()

	select {
	case <-controller.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestController_Stop_DrainsQueuedCallbacks(t *testing.T) {
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	release := make(chan struct{})
	delivered := make(chan any, 10)

	id := controller.RegisterCallback(func(payload any) {
		<-release

		delivered <- payload
	})

	transport.sendToController(map[string]any{"type": "callback", "callback": float64(id), "payload": "first"})
	transport.sendToController(map[string]any{"type": "callback", "callback": float64(id), "payload": "second"})

	// Make sure both were routed before stopping.
	transport.sendToController(map[string]any{"type": "sync"})
	<-controller.Messages()

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	controller.Stop()

	require.Len(t, delivered, 2)
}

func TestController_SendRequest_ResponseAfterTimeout_Race(t *testing.T) {
	// Race between SendRequest timing out and handleInvokeResponse delivering
	// the response.
	// Run with: go test -race -count=100 -run TestController_SendRequest_ResponseAfterTimeout_Race
	for range 100 {
		transport := newMockTransport()
		controller := newTestController(t, transport, time.Second)

		ctx := context.Background()
		timeout := 1 * time.Millisecond

		var wg sync.WaitGroup

		wg.Go(func() {
			_, _ = controller.SendRequest(ctx, "test", map[string]any{}, timeout)
		})

		wg.Go(func() {
			time.Sleep(500 * time.Microsecond)

			transport.sendToController(map[string]any{
				"type": "invoke_response",
				"response": map[string]any{
					"request_id": findPendingRequestID(controller),
					"subtype":    "success",
				},
			})
		})

		wg.Wait()
		controller.Stop()
	}
}

// findPendingRequestID extracts a pending request ID from the controller.
func findPendingRequestID(c *Controller) string {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()

	for id := range c.pending {
		return id
	}

	return "unknown-request-id"
}

func TestController_SendRequest_ResponseDeliveryRace(t *testing.T) {
	// Many concurrent requests with immediate responses.
	// Run with: go test -race -count=10 -run TestController_SendRequest_ResponseDeliveryRace
	transport := newMockTransport()
	controller := newTestController(t, transport, time.Second)

	defer controller.Stop()

	ctx := context.Background()

	var wg sync.WaitGroup

	for range 50 {
		wg.Go(func() {
			responseChan := make(chan struct{})

			go func() {
				_, _ = controller.SendRequest(ctx, "test", map[string]any{}, 100*time.Microsecond)

				close(responseChan)
			}()

			time.Sleep(50 * time.Microsecond)

			reqID := findPendingRequestID(controller)
			if reqID != "unknown-request-id" {
				transport.sendToController(map[string]any{
					"type": "invoke_response",
					"response": map[string]any{
						"request_id": reqID,
						"subtype":    "success",
					},
				})
			}

			<-responseChan
		})
	}

	wg.Wait()
}

func TestInvokeResponse_Accessors(t *testing.T) {
	resp := &InvokeResponse{Response: map[string]any{
		"subtype":    "error",
		"request_id": "r1",
		"error":      "denied",
	}}

	require.True(t, resp.IsError())
	require.Equal(t, "denied", resp.ErrorMessage())
	require.Equal(t, "r1", resp.RequestID())
	require.Nil(t, resp.Payload())

	ok := &InvokeResponse{Response: map[string]any{"subtype": "success", "response": "x"}}
	require.False(t, ok.IsError())
	require.Equal(t, "x", ok.Payload())
	require.Empty(t, ok.RequestID())
}
