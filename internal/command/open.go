package command

import (
	"context"

	"github.com/wagiedev/shell-bridge-go/internal/config"
)

// Open asks the host to open path with the application named by with, or
// with the system default when with is empty. A host rejection is returned
// as *errors.BridgeError carrying the host's reason.
func Open(ctx context.Context, bridge config.Bridge, path, with string) error {
	payload := map[string]any{"path": path}
	if with != "" {
		payload["with"] = with
	}

	_, err := bridge.Invoke(ctx, cmdOpen, payload)

	return err
}
