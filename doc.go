// Package shell runs programs and opens paths on a privileged host from an
// unprivileged client.
//
// The client never touches processes itself. It sends requests over a
// bridge to a host program, which spawns the child, streams its output back
// as tagged events, and accepts stdin writes and kill requests by PID.
//
// # Basic Usage
//
// For run-to-completion commands, use Execute:
//
//	err := shell.WithBridge(ctx, func(b shell.BridgeClient) error {
//	    out, err := shell.Execute(ctx, b, "git", []string{"status", "--short"})
//	    if err != nil {
//	        return err
//	    }
//	    if !out.Success() {
//	        return fmt.Errorf("git exited with %d", *out.Code)
//	    }
//	    fmt.Println(string(out.Stdout))
//	    return nil
//	})
//
// # Streaming
//
// For long-running children, register listeners and Spawn. Listeners run
// one event at a time in arrival order:
//
//	cmd := shell.NewCommand(bridge, "ping", []string{"-c", "3", "example.com"})
//	cmd.Stdout.OnData(func(c shell.Chunk) { fmt.Println(c.Text()) })
//	cmd.OnError(func(err error) { log.Error("ping failed", "error", err) })
//	cmd.OnClose(func(t *shell.TerminatedEvent) { log.Info("ping exited", "code", t.Code) })
//
//	child, err := cmd.Spawn(ctx)
//	if err != nil {
//	    return err
//	}
//	<-cmd.Done()
//
// Child.Write and Child.WriteString feed the child's stdin; Child.Kill asks
// the host to terminate it.
//
// # Output Encoding
//
// By default output arrives as lines of text. WithRawOutput delivers byte
// sequences instead; Execute then terminates every chunk with a line feed.
//
// # Transports
//
// Bridge.Start spawns the host binary found via WithHostPath,
// SHELL_BRIDGE_HOST_PATH or PATH, and exchanges JSON frames over its stdio.
// WithCodec("cbor") switches to CBOR frames. WithURL connects to a host
// listening on a WebSocket endpoint instead.
//
// # MCP
//
// NewToolServer exposes shell_execute, shell_execute_batch and shell_open as
// Model Context Protocol tools backed by a bridge.
//
// # Logging
//
// For detailed operation tracking, use WithLogger and WithCommandLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	bridge := shell.NewBridge()
//	err := bridge.Start(ctx, shell.WithLogger(logger))
//
// # Error Handling
//
// The package provides typed errors for different failure scenarios:
//
//	out, err := shell.Execute(ctx, bridge, "make", nil)
//	if err != nil {
//	    if cmdErr, ok := errors.AsType[*shell.CommandError](err); ok {
//	        log.Fatalf("host could not run make: %s", cmdErr.Message)
//	    }
//	    if bridgeErr, ok := errors.AsType[*shell.BridgeError](err); ok {
//	        log.Fatalf("host rejected %s: %s", bridgeErr.Command, bridgeErr.Reason)
//	    }
//	    if errors.Is(err, shell.ErrOutputLimitExceeded) {
//	        log.Fatal("make produced too much output")
//	    }
//	}
//
// # Requirements
//
// A host binary speaking the bridge protocol must be installed, or a host
// must be reachable over WebSocket.
package shell
