package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/wagiedev/shell-bridge-go/internal/config"
	"github.com/wagiedev/shell-bridge-go/internal/errors"
	"github.com/wagiedev/shell-bridge-go/internal/event"
)

// Output is the result of a command that ran to completion.
type Output struct {
	// Code is the exit code, nil when the child was killed by a signal.
	Code *int
	// Signal names the terminating signal, nil on a normal exit.
	Signal *string
	// Stdout is the aggregated standard output.
	Stdout []byte
	// Stderr is the aggregated standard error.
	Stderr []byte
}

// Success reports whether the child exited with code 0.
func (o *Output) Success() bool {
	return o.Code != nil && *o.Code == 0
}

// collector buffers the chunks of one execution.
type collector struct {
	raw   bool
	limit int

	mu     sync.Mutex
	stdout []event.Chunk
	stderr []event.Chunk
	size   int

	exceeded     chan struct{}
	exceededOnce sync.Once
}

func newCollector(raw bool, limit int) *collector {
	return &collector{
		raw:      raw,
		limit:    limit,
		exceeded: make(chan struct{}),
	}
}

func (col *collector) add(dst *[]event.Chunk, chunk event.Chunk) {
	col.mu.Lock()
	defer col.mu.Unlock()

	if col.limit > 0 && col.size+chunk.Len() > col.limit {
		col.exceededOnce.Do(func() { close(col.exceeded) })

		return
	}

	col.size += chunk.Len()
	*dst = append(*dst, chunk)
}

func (col *collector) overflowed() bool {
	select {
	case <-col.exceeded:
		return true
	default:
		return false
	}
}

// aggregate joins chunks. Raw chunks are each followed by a line feed; text
// chunks are joined with a newline and no trailing separator.
func (col *collector) aggregate(chunks []event.Chunk) []byte {
	out := make([]byte, 0, col.size+len(chunks))

	for i, chunk := range chunks {
		if !col.raw && i > 0 {
			out = append(out, '\n')
		}

		out = chunk.AppendTo(out)

		if col.raw {
			out = append(out, '\n')
		}
	}

	return out
}

func (col *collector) output(term *event.TerminatedEvent) *Output {
	col.mu.Lock()
	defer col.mu.Unlock()

	return &Output{
		Code:   term.Code,
		Signal: term.Signal,
		Stdout: col.aggregate(col.stdout),
		Stderr: col.aggregate(col.stderr),
	}
}

// Execute spawns the command and waits for it to finish, buffering both
// output streams.
//
// An error event makes Execute return *errors.CommandError (or the
// *errors.ProtocolError that caused it) and discards the buffered output.
// If the session was configured with a MaxOutput limit and the child
// writes more, the child is killed and ErrOutputLimitExceeded is returned.
// Cancelling ctx makes Execute return ctx.Err() without killing the child;
// call Stop to end it. The listeners Execute registers are removed before
// it returns.
func (c *Command) Execute(ctx context.Context) (*Output, error) {
	if c.State() != StateCreated {
		return nil, errors.ErrAlreadySpawned
	}

	col := newCollector(c.options.Raw(), c.options.MaxOutput)

	type outcome struct {
		output *Output
		err    error
	}

	result := make(chan outcome, 1)

	onStdout := c.Stdout.OnData(func(chunk event.Chunk) { col.add(&col.stdout, chunk) })
	onStderr := c.Stderr.OnData(func(chunk event.Chunk) { col.add(&col.stderr, chunk) })

	onClose := c.OnClose(func(term *event.TerminatedEvent) {
		result <- outcome{output: col.output(term)}
	})

	onError := c.OnError(func(err error) {
		col.mu.Lock()
		col.stdout, col.stderr = nil, nil
		col.mu.Unlock()

		result <- outcome{err: err}
	})

	defer func() {
		c.Stdout.Off(EventData, onStdout)
		c.Stderr.Off(EventData, onStderr)
		c.Off(EventClose, onClose)
		c.Off(EventError, onError)
	}()

	child, err := c.Spawn(ctx)
	if err != nil {
		return nil, err
	}

	var lost <-chan struct{}

	lifecycle, hasLifecycle := c.bridge.(config.Lifecycle)
	if hasLifecycle {
		lost = lifecycle.Done()
	}

	limitErr := fmt.Errorf("%w: %d bytes", errors.ErrOutputLimitExceeded, col.limit)

	select {
	case res := <-result:
		// Output dropped over the limit makes a clean exit incomplete.
		if res.err == nil && col.overflowed() {
			return nil, limitErr
		}

		return res.output, res.err

	case <-col.exceeded:
		c.log.Warn("Output limit exceeded", "pid", child.PID(), "limit", col.limit)

		if c.State() != StateTerminated {
			if err := child.Kill(context.WithoutCancel(ctx)); err != nil {
				c.log.Warn("Failed to kill child", "pid", child.PID(), "error", err)
			}
		}

		return nil, limitErr

	case <-lost:
		// A terminal event delivered just before the bridge went away wins.
		select {
		case res := <-result:
			return res.output, res.err
		default:
		}

		return nil, fmt.Errorf("bridge lost while waiting for process %d: %w", child.PID(), lifecycle.Err())

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
