package shell

import (
	"context"

	"github.com/wagiedev/shell-bridge-go/internal/client"
	"github.com/wagiedev/shell-bridge-go/internal/config"
)

// bridgeWrapper wraps the internal bridge to adapt it to the public interface.
type bridgeWrapper struct {
	impl *client.Bridge
}

// Compile-time checks that *bridgeWrapper implements the public interfaces.
var (
	_ BridgeClient     = (*bridgeWrapper)(nil)
	_ config.Lifecycle = (*bridgeWrapper)(nil)
)

func newBridgeImpl() BridgeClient {
	return &bridgeWrapper{impl: client.New()}
}

// Start connects to the host.
func (b *bridgeWrapper) Start(ctx context.Context, opts ...Option) error {
	return b.impl.Start(ctx, applyBridgeOptions(opts))
}

// Invoke sends a request to the host and waits for its answer.
func (b *bridgeWrapper) Invoke(ctx context.Context, command string, payload map[string]any) (any, error) {
	return b.impl.Invoke(ctx, command, payload)
}

// RegisterCallback registers a handler for payloads the host pushes.
func (b *bridgeWrapper) RegisterCallback(handler func(payload any)) CallbackID {
	return b.impl.RegisterCallback(handler)
}

// UnregisterCallback removes a callback.
func (b *bridgeWrapper) UnregisterCallback(id CallbackID) {
	b.impl.UnregisterCallback(id)
}

// Done returns a channel closed when the connection ends.
func (b *bridgeWrapper) Done() <-chan struct{} {
	return b.impl.Done()
}

// Err reports why the connection ended.
func (b *bridgeWrapper) Err() error {
	return b.impl.Err()
}

// Close terminates the connection.
func (b *bridgeWrapper) Close() error {
	return b.impl.Close()
}
