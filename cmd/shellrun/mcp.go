package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	shell "github.com/wagiedev/shell-bridge-go"
)

func serveMCP(ctx context.Context, log *slog.Logger, bridgeOpts []shell.Option, args []string) error {
	var options shell.ToolOptions

	fs := pflag.NewFlagSet("mcp", pflag.ContinueOnError)
	fs.DurationVar(&options.Timeout, "tool-timeout", 0, "bound on each tool execution (default 2m)")
	fs.IntVar(&options.MaxOutput, "max-output", 0, "kill programs after this many buffered bytes (0 = unbounded)")
	fs.IntVar(&options.Concurrency, "concurrency", 0, "parallel commands in a batch (default 4)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	options.Logger = log

	return shell.WithBridge(ctx, func(bridge shell.BridgeClient) error {
		server := shell.NewToolServer("shellrun", bridge, &options)

		log.Info("Serving MCP tools on stdio", "tools", len(server.Tools()))

		err := server.Serve(ctx, &mcp.StdioTransport{})
		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	}, bridgeOpts...)
}
