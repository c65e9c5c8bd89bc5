package command

import (
	"context"

	"github.com/wagiedev/shell-bridge-go/internal/errors"
)

// Child is a handle to a process the host spawned.
type Child struct {
	pid int
	cmd *Command
}

// PID returns the process identifier assigned by the host.
func (ch *Child) PID() int {
	return ch.pid
}

// Write sends data to the child's stdin as an explicit array of byte values.
//
// After the session observed a terminal event Write fails locally. Any
// failure is returned as *errors.WriteError; a host rejection is wrapped
// inside it as *errors.BridgeError.
func (ch *Child) Write(ctx context.Context, data []byte) error {
	buffer := make([]int, len(data))
	for i, b := range data {
		buffer[i] = int(b)
	}

	return ch.write(ctx, buffer)
}

// WriteString sends s to the child's stdin verbatim.
func (ch *Child) WriteString(ctx context.Context, s string) error {
	return ch.write(ctx, s)
}

func (ch *Child) write(ctx context.Context, buffer any) error {
	if ch.cmd.State() == StateTerminated {
		return &errors.WriteError{PID: ch.pid, Err: errors.ErrProcessTerminated}
	}

	_, err := ch.cmd.bridge.Invoke(ctx, cmdStdinWrite, map[string]any{
		"pid":    ch.pid,
		"buffer": buffer,
	})
	if err != nil {
		ch.cmd.log.Debug("Write to child failed", "pid", ch.pid, "error", err)

		return &errors.WriteError{PID: ch.pid, Err: err}
	}

	return nil
}

// Kill asks the host to terminate the child. The request is advisory: the
// session still ends only when the host reports a terminal event. Repeated
// calls are passed to the host as-is.
func (ch *Child) Kill(ctx context.Context) error {
	ch.cmd.log.Debug("Killing child", "pid", ch.pid)

	_, err := ch.cmd.bridge.Invoke(ctx, cmdKillChild, map[string]any{"pid": ch.pid})

	return err
}
