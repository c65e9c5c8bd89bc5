package shell

import "context"

// BridgeClient is a connection to the privileged host.
//
// A BridgeClient satisfies Bridge once started, so it can be handed to
// NewCommand and Open directly. It is single-use: after Close, create a new
// one with NewBridge.
type BridgeClient interface {
	Bridge

	// Start connects to the host. It spawns the host binary, or dials the
	// WebSocket endpoint set with WithURL, unless WithTransport injects a
	// transport. Must be called before any other methods.
	// Returns *HostNotFoundError if the host binary is not found and
	// *HostConnectionError on connection failure.
	Start(ctx context.Context, opts ...Option) error

	// Done returns a channel that is closed when the connection to the host
	// is lost or closed.
	Done() <-chan struct{}

	// Err reports why Done was closed. It returns nil while connected,
	// ErrHostDisconnected when the host hung up cleanly, and
	// ErrBridgeClosed after Close.
	Err() error

	// Close terminates the connection. It is safe to call more than once.
	Close() error
}

// NewBridge creates a new, unconnected bridge client.
//
// Example:
//
//	bridge := shell.NewBridge()
//	if err := bridge.Start(ctx, shell.WithLogger(log)); err != nil {
//	    return err
//	}
//	defer bridge.Close()
//
//	out, err := shell.NewCommand(bridge, "git", []string{"status"}).Execute(ctx)
func NewBridge() BridgeClient {
	return newBridgeImpl()
}
