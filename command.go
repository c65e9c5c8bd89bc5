package shell

import (
	"context"

	"github.com/wagiedev/shell-bridge-go/internal/command"
)

// NewCommand creates a command that runs program with args on the host
// reached through bridge. Nothing is sent until Spawn or Execute.
//
// Example:
//
//	cmd := shell.NewCommand(bridge, "tail", []string{"-f", "/var/log/syslog"})
//	cmd.Stdout.OnData(func(c shell.Chunk) { fmt.Println(c.Text()) })
//	cmd.OnClose(func(t *shell.TerminatedEvent) { fmt.Println("exited") })
//
//	child, err := cmd.Spawn(ctx)
func NewCommand(bridge Bridge, program string, args []string, opts ...CommandOption) *Command {
	return command.New(bridge, program, args, applySpawnOptions(opts))
}

// NewSidecarCommand is like NewCommand but runs a sidecar binary bundled
// with the host application.
func NewSidecarCommand(bridge Bridge, program string, args []string, opts ...CommandOption) *Command {
	return command.NewSidecar(bridge, program, args, applySpawnOptions(opts))
}

// Execute runs program to completion and returns its buffered output.
// It is shorthand for NewCommand(...).Execute(ctx).
func Execute(ctx context.Context, bridge Bridge, program string, args []string, opts ...CommandOption) (*Output, error) {
	return NewCommand(bridge, program, args, opts...).Execute(ctx)
}

// Open asks the host to open path, a file or URL, with the application
// named by with, or the system default when with is empty.
func Open(ctx context.Context, bridge Bridge, path, with string) error {
	return command.Open(ctx, bridge, path, with)
}
