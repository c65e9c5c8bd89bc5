package shell

import (
	"context"
	"fmt"
)

// WithBridge manages bridge lifecycle with automatic cleanup.
//
// This helper creates a bridge, starts it with the provided options, executes
// the callback function, and ensures proper cleanup via Close() when done.
//
// The callback receives a connected BridgeClient.
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := shell.WithBridge(ctx, func(b shell.BridgeClient) error {
//	    out, err := shell.NewCommand(b, "uname", []string{"-a"}).Execute(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(string(out.Stdout))
//	    return nil
//	},
//	    shell.WithLogger(log),
//	    shell.WithCodec("cbor"),
//	)
func WithBridge(ctx context.Context, fn func(BridgeClient) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyBridgeOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	bridge := NewBridge()
	if err := bridge.Start(ctx, opts...); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}

	defer func() {
		if closeErr := bridge.Close(); closeErr != nil {
			log.Warn("failed to close bridge", "error", closeErr)
		}
	}()

	return fn(bridge)
}
