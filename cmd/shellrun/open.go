package main

import (
	"context"
	"fmt"

	shell "github.com/wagiedev/shell-bridge-go"
)

func openPath(ctx context.Context, bridgeOpts []shell.Option, args []string) error {
	var path, with string

	switch len(args) {
	case 1:
		path = args[0]
	case 2:
		path, with = args[0], args[1]
	default:
		return fmt.Errorf("open: want PATH [APP], got %d arguments", len(args))
	}

	return shell.WithBridge(ctx, func(bridge shell.BridgeClient) error {
		return shell.Open(ctx, bridge, path, with)
	}, bridgeOpts...)
}
