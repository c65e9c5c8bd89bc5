package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/shell-bridge-go/internal/codec"
	"github.com/wagiedev/shell-bridge-go/internal/config"
	"github.com/wagiedev/shell-bridge-go/internal/errors"
	"github.com/wagiedev/shell-bridge-go/internal/event"
)

// Transport defines the minimal interface needed for protocol operations.
//
// This interface is satisfied by the HostTransport but allows for testing
// with mock transports.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
}

// Compile-time verification that Controller implements config.Bridge.
var (
	_ config.Bridge    = (*Controller)(nil)
	_ config.Lifecycle = (*Controller)(nil)
)

// Controller manages message exchange with the privileged host.
//
// The Controller handles:
//   - Sending invoke messages with unique request IDs
//   - Receiving and routing invoke_response messages to waiting requests
//   - Request timeout enforcement
//   - Delivering callback messages to registered handlers
//   - Forwarding other messages to consumers via the Messages channel
//
// The Controller must be started with Start() before use and manages its own
// goroutine for reading and routing messages.
type Controller struct {
	log       *slog.Logger
	transport Transport
	frames    codec.Codec
	timeout   time.Duration

	// Request tracking
	pendingMu sync.RWMutex
	pending   map[string]*pendingRequest

	// Callback registry
	callbacksMu sync.RWMutex
	callbacks   map[config.CallbackID]*callback
	nextID      atomic.Uint32

	// Messages that are neither responses nor callbacks
	messages chan map[string]any

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// pendingRequest tracks an outgoing request awaiting response.
type pendingRequest struct {
	command  string
	response chan *InvokeResponse
}

// NewController creates a new protocol controller.
//
// Frames are encoded with frames (JSON when nil). Invoke waits at most
// timeout for each answer; a non-positive timeout selects
// config.DefaultRequestTimeout.
func NewController(
	log *slog.Logger,
	transport Transport,
	frames codec.Codec,
	timeout time.Duration,
) *Controller {
	if frames == nil {
		frames = codec.JSON
	}

	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}

	return &Controller{
		log:       log.With("component", "protocol"),
		transport: transport,
		frames:    frames,
		timeout:   timeout,
		pending:   make(map[string]*pendingRequest, 10),
		callbacks: make(map[config.CallbackID]*callback, 10),
		messages:  make(chan map[string]any, 100),
		done:      make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops or the
// transport stops delivering messages.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err returns nil while the controller runs. After Done is closed it returns
// the fatal error, or ErrControllerStopped after a plain Stop.
func (c *Controller) Err() error {
	select {
	case <-c.done:
	default:
		return nil
	}

	if err := c.FatalError(); err != nil {
		return err
	}

	return errors.ErrControllerStopped
}

// Start begins reading messages from the transport and routing them.
//
// This method spawns a goroutine that reads from the transport. The
// goroutine stops when the context is cancelled, the transport is closed,
// or Stop is called.
func (c *Controller) Start(ctx context.Context) error {
	c.log.Debug("Starting protocol controller")

	messages, errs := c.transport.ReadMessages(ctx)

	c.wg.Go(func() {
		c.readLoop(ctx, messages, errs)
	})

	c.log.Info("Protocol controller started")

	return nil
}

// Stop gracefully shuts down the controller.
//
// Pending requests fail with ErrControllerStopped and callback goroutines
// exit after delivering what they already queued. It's safe to call Stop
// multiple times.
func (c *Controller) Stop() {
	c.log.Debug("Stopping protocol controller")

	c.closeDone()
	c.wg.Wait()

	c.log.Info("Protocol controller stopped")
}

// Messages returns a channel for receiving messages the controller does not
// handle itself.
//
// The channel is closed when the read loop exits. Use Done() and
// FatalError() to detect and retrieve transport errors.
func (c *Controller) Messages() <-chan map[string]any {
	return c.messages
}

// Invoke sends command to the host and waits for its answer using the
// controller's request timeout. A rejection by the host is returned as
// *errors.BridgeError.
func (c *Controller) Invoke(ctx context.Context, command string, payload map[string]any) (any, error) {
	resp, err := c.SendRequest(ctx, command, payload, c.timeout)
	if err != nil {
		return nil, err
	}

	return resp.Payload(), nil
}

// SendRequest sends an invoke message and waits for the response.
//
// This method generates a unique request ID, sends the request, and blocks
// until a matching invoke_response is received or the timeout expires.
//
// Returns an error if the request fails to send, times out, or the host
// returns an error response.
func (c *Controller) SendRequest(
	ctx context.Context,
	command string,
	payload map[string]any,
	timeout time.Duration,
) (*InvokeResponse, error) {
	requestID := c.generateRequestID()

	c.log.Debug("Sending invoke request", "request_id", requestID, "command", command)

	responseChan := make(chan *InvokeResponse, 1)

	c.pendingMu.Lock()
	c.pending[requestID] = &pendingRequest{
		command:  command,
		response: responseChan,
	}
	c.pendingMu.Unlock()

	if payload == nil {
		payload = map[string]any{}
	}

	req := &InvokeRequest{
		Type:      "invoke",
		RequestID: requestID,
		Command:   command,
		Payload:   payload,
	}

	data, err := c.frames.Marshal(req)
	if err != nil {
		c.removePending(requestID)
		c.log.Error("Failed to marshal invoke request", "error", err)

		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		c.removePending(requestID)
		c.log.Error("Failed to send invoke request", "error", err)

		return nil, fmt.Errorf("send request: %w", err)
	}

	c.log.Debug("Invoke request sent, waiting for response", "request_id", requestID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-responseChan:
		if resp.IsError() {
			errMsg := resp.ErrorMessage()
			c.log.Warn("Host rejected request", "request_id", requestID, "command", command, "error", errMsg)

			return nil, &errors.BridgeError{Command: command, Reason: errMsg}
		}

		c.log.Debug("Received invoke response", "request_id", requestID)

		return resp, nil

	case <-c.done:
		c.removePending(requestID)

		if err := c.FatalError(); err != nil {
			c.log.Warn("Transport error during request", "request_id", requestID, "error", err)

			return nil, fmt.Errorf("transport error: %w", err)
		}

		c.log.Debug("Controller stopped during request", "request_id", requestID)

		return nil, errors.ErrControllerStopped

	case <-timer.C:
		c.removePending(requestID)

		c.log.Warn("Invoke request timed out", "request_id", requestID, "command", command, "timeout", timeout)

		return nil, fmt.Errorf("%s: %w after %s", command, errors.ErrRequestTimeout, timeout)

	case <-ctx.Done():
		c.removePending(requestID)

		c.log.Debug("Invoke request cancelled", "request_id", requestID)

		return nil, ctx.Err()
	}
}

func (c *Controller) removePending(requestID string) {
	c.pendingMu.Lock()
	delete(c.pending, requestID)
	c.pendingMu.Unlock()
}

// RegisterCallback installs handler and returns the token the host uses to
// address it. Payloads for one token are delivered sequentially in arrival
// order on a dedicated goroutine.
func (c *Controller) RegisterCallback(handler func(payload any)) config.CallbackID {
	id := config.CallbackID(c.nextID.Add(1))
	cb := newCallback(id, handler)

	c.callbacksMu.Lock()
	c.callbacks[id] = cb
	c.callbacksMu.Unlock()

	c.wg.Go(func() {
		cb.run(c.done)
	})

	c.log.Debug("Registered callback", "callback", id)

	return id
}

// UnregisterCallback removes a handler. Payloads already received for it
// are still delivered; later ones are dropped. Unknown ids are ignored.
func (c *Controller) UnregisterCallback(id config.CallbackID) {
	c.callbacksMu.Lock()

	cb, ok := c.callbacks[id]
	if ok {
		delete(c.callbacks, id)
	}

	c.callbacksMu.Unlock()

	if ok {
		cb.close()
		c.log.Debug("Unregistered callback", "callback", id)
	}
}

// readLoop reads messages from the transport and routes them.
func (c *Controller) readLoop(
	ctx context.Context,
	messages <-chan map[string]any,
	errs <-chan error,
) {
	defer close(c.messages)
	defer c.closeDone()
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				c.log.Debug("Message channel closed")

				// Transports queue their final error before closing messages.
				select {
				case err, ok := <-errs:
					if ok && err != nil {
						c.log.Debug("Transport error in protocol", "error", err)
						c.SetFatalError(err)
					}
				default:
				}

				return
			}

			c.handleMessage(ctx, msg)

		case err, ok := <-errs:
			if !ok {
				c.log.Debug("Error channel closed")

				return
			}

			if err != nil {
				c.log.Debug("Transport error in protocol", "error", err)
				c.SetFatalError(err)

				return
			}

		case <-c.done:
			c.log.Debug("Protocol controller stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")

			return
		}
	}
}

// handleMessage routes a message based on its type.
func (c *Controller) handleMessage(ctx context.Context, msg map[string]any) {
	msgType, _ := msg["type"].(string)

	switch msgType {
	case "invoke_response":
		c.handleInvokeResponse(msg)

	case "callback":
		c.handleCallback(msg)

	default:
		select {
		case c.messages <- msg:
		case <-c.done:
		case <-ctx.Done():
		}
	}
}

// handleInvokeResponse routes a response to the waiting request.
func (c *Controller) handleInvokeResponse(msg map[string]any) {
	responseData, ok := msg["response"].(map[string]any)
	if !ok {
		c.log.Warn("Invoke response missing 'response' field")

		return
	}

	requestID, ok := responseData["request_id"].(string)
	if !ok {
		c.log.Warn("Invoke response missing request_id in response")

		return
	}

	c.log.Debug("Received invoke response", "request_id", requestID)

	// Find and claim pending request atomically
	c.pendingMu.Lock()

	pending, exists := c.pending[requestID]
	if exists {
		delete(c.pending, requestID)
	}

	c.pendingMu.Unlock()

	if !exists {
		c.log.Warn("No pending request for invoke response", "request_id", requestID)

		return
	}

	// We own the request now; the channel is buffered.
	pending.response <- &InvokeResponse{
		Type:     "invoke_response",
		Response: responseData,
	}
}

// handleCallback queues a pushed payload for its registered handler.
func (c *Controller) handleCallback(msg map[string]any) {
	rawID, ok := event.ToInt(msg["callback"])
	if !ok || rawID <= 0 {
		c.log.Warn("Callback message with invalid id", "callback", msg["callback"])

		return
	}

	id := config.CallbackID(rawID)

	c.callbacksMu.RLock()
	cb, exists := c.callbacks[id]
	c.callbacksMu.RUnlock()

	if !exists || !cb.push(msg["payload"]) {
		c.log.Warn("No callback registered for message", "callback", id)
	}
}

// generateRequestID creates a unique request ID using ULID.
func (c *Controller) generateRequestID() string {
	return ulid.Make().String()
}
