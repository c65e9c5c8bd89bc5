package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/shell-bridge-go/internal/codec"
	"github.com/wagiedev/shell-bridge-go/internal/config"
	"github.com/wagiedev/shell-bridge-go/internal/errors"
	"github.com/wagiedev/shell-bridge-go/internal/protocol"
	"github.com/wagiedev/shell-bridge-go/internal/subprocess"
	"github.com/wagiedev/shell-bridge-go/internal/wsock"
)

// Compile-time verification that Bridge implements the bridge interfaces.
var (
	_ config.Bridge    = (*Bridge)(nil)
	_ config.Lifecycle = (*Bridge)(nil)
)

// codecProvider is implemented by transports that choose their own codec.
type codecProvider interface {
	Codec() codec.Codec
}

// Bridge owns the connection to the privileged host.
type Bridge struct {
	log        *slog.Logger
	transport  config.Transport
	controller *protocol.Controller
	options    *config.Options

	// Fatal error storage
	errMu    sync.RWMutex
	fatalErr error

	// Errgroup for goroutine management
	eg *errgroup.Group

	// Lifecycle management
	mu        sync.Mutex
	done      chan struct{} // closed by Close
	lost      chan struct{} // closed when the connection ends for any reason
	lostOnce  sync.Once
	connected bool
	closed    bool
	closeOnce sync.Once
}

// New creates a bridge. It is not connected until Start is called.
func New() *Bridge {
	return &Bridge{
		done: make(chan struct{}),
		lost: make(chan struct{}),
	}
}

// setFatalError stores the first fatal error encountered.
func (b *Bridge) setFatalError(err error) {
	if err == nil {
		return
	}

	b.errMu.Lock()
	defer b.errMu.Unlock()

	if b.fatalErr == nil {
		b.fatalErr = err
	}
}

// getFatalError returns the stored fatal error, if any.
func (b *Bridge) getFatalError() error {
	b.errMu.RLock()
	defer b.errMu.RUnlock()

	return b.fatalErr
}

func (b *Bridge) markLost() {
	b.lostOnce.Do(func() {
		close(b.lost)
	})
}

// isConnected returns true if the bridge is connected.
// This method is safe to call from any goroutine.
func (b *Bridge) isConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.connected
}

// initializeCore creates and starts the transport and the controller.
// Caller must hold b.mu lock. Lock is held on return.
func (b *Bridge) initializeCore(ctx context.Context, options *config.Options) error {
	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	b.log = log.With("component", "bridge")
	b.options = options

	var transport config.Transport

	switch {
	case options.Transport != nil:
		transport = options.Transport

		b.log.Debug("Using injected custom transport")
	case options.URL != "":
		transport = wsock.NewTransport(b.log, options)
	default:
		transport = subprocess.NewHostTransport(b.log, options)
	}

	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	frames, err := b.frameCodec(transport)
	if err != nil {
		_ = transport.Close()

		return err
	}

	b.transport = transport

	b.controller = protocol.NewController(b.log, transport, frames, options.ResolveRequestTimeout())
	// The controller outlives the startup context; Close stops it.
	if err := b.controller.Start(context.WithoutCancel(ctx)); err != nil {
		_ = transport.Close()

		return fmt.Errorf("start protocol controller: %w", err)
	}

	return nil
}

// frameCodec returns the codec the transport speaks, falling back to the
// one named in the options for transports that do not report it.
func (b *Bridge) frameCodec(transport config.Transport) (codec.Codec, error) {
	if p, ok := transport.(codecProvider); ok && p.Codec() != nil {
		return p.Codec(), nil
	}

	frames, err := codec.ByName(b.options.Codec)
	if err != nil {
		return nil, fmt.Errorf("select codec: %w", err)
	}

	return frames, nil
}

// Start connects to the host.
//
// The host binary is spawned unless options name a WebSocket URL or inject
// a transport. Returns HostNotFoundError if the binary cannot be located,
// or HostConnectionError if the connection cannot be established.
func (b *Bridge) Start(ctx context.Context, options *config.Options) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ErrBridgeClosed
	}

	if b.connected {
		return errors.ErrBridgeAlreadyConnected
	}

	if err := b.initializeCore(ctx, options); err != nil {
		return err
	}

	// The read loop outlives ctx; Close is the only way to stop it.
	var egCtx context.Context

	b.eg, egCtx = errgroup.WithContext(context.Background())

	b.eg.Go(func() error {
		return b.readLoop(egCtx)
	})

	b.connected = true
	b.log.Info("Bridge started")

	return nil
}

// readLoop drains messages the controller does not route itself and watches
// for the end of the connection.
func (b *Bridge) readLoop(ctx context.Context) error {
	defer b.log.Debug("Read loop stopped")
	defer b.markLost()

	rawMessages := b.controller.Messages()

	for {
		select {
		case msg, ok := <-rawMessages:
			if !ok {
				b.log.Debug("Message channel closed")

				if err := b.controller.FatalError(); err != nil {
					b.log.Error("Transport error", "error", err)
					b.setFatalError(err)

					return err
				}

				return nil
			}

			b.log.Debug("Ignoring unsolicited message from host", "type", msg["type"])

		case <-b.done:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Invoke sends command to the host and waits for its answer.
func (b *Bridge) Invoke(ctx context.Context, command string, payload map[string]any) (any, error) {
	if !b.isConnected() {
		return nil, errors.ErrBridgeNotConnected
	}

	return b.controller.Invoke(ctx, command, payload)
}

// RegisterCallback installs handler for payloads the host pushes to the
// returned token. On a bridge that is not connected the handler never runs
// and the zero token is returned.
func (b *Bridge) RegisterCallback(handler func(payload any)) config.CallbackID {
	if !b.isConnected() {
		return 0
	}

	return b.controller.RegisterCallback(handler)
}

// UnregisterCallback removes a handler. Unknown ids are ignored.
func (b *Bridge) UnregisterCallback(id config.CallbackID) {
	if !b.isConnected() {
		return
	}

	b.controller.UnregisterCallback(id)
}

// Done returns a channel that is closed when the connection to the host
// ends, either through Close or because the host went away.
func (b *Bridge) Done() <-chan struct{} {
	return b.lost
}

// Err reports why the connection ended. It returns nil while the bridge is
// connected or before Start.
func (b *Bridge) Err() error {
	select {
	case <-b.lost:
	default:
		return nil
	}

	if err := b.getFatalError(); err != nil {
		return err
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()

	if closed {
		return errors.ErrBridgeClosed
	}

	return errors.ErrHostDisconnected
}

// Close disconnects from the host and releases resources.
//
// After Close the bridge cannot be reused; create a new one with New.
// This method is safe to call multiple times.
func (b *Bridge) Close() error {
	var closeErr error

	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		wasConnected := b.connected
		b.connected = false
		b.mu.Unlock()

		if !wasConnected {
			b.markLost()

			return
		}

		b.log.Info("Closing bridge")

		close(b.done)

		if b.controller != nil {
			b.controller.Stop()
		}

		if b.transport != nil {
			closeErr = b.transport.Close()
		}

		if b.eg != nil {
			if err := b.eg.Wait(); err != nil && closeErr == nil {
				closeErr = err
			}
		}

		b.log.Info("Bridge closed")
	})

	return closeErr
}
