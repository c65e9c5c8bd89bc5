//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	shell "github.com/wagiedev/shell-bridge-go"
)

// skipIfHostNotInstalled skips the test if the error indicates the host binary is not found.
func skipIfHostNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*shell.HostNotFoundError](err); ok {
		t.Skip("shell host not installed")
	}
}

// startBridge connects to the host binary or skips the test.
func startBridge(t *testing.T, ctx context.Context, opts ...shell.Option) shell.BridgeClient {
	t.Helper()

	bridge := shell.NewBridge()
	if err := bridge.Start(ctx, opts...); err != nil {
		skipIfHostNotInstalled(t, err)
		t.Fatalf("Start failed: %v", err)
	}

	t.Cleanup(func() { _ = bridge.Close() })

	return bridge
}
