package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/wagiedev/shell-bridge-go/internal/config"
	"github.com/wagiedev/shell-bridge-go/internal/emitter"
	"github.com/wagiedev/shell-bridge-go/internal/errors"
	"github.com/wagiedev/shell-bridge-go/internal/event"
)

// Host commands.
const (
	cmdExecute    = "execute"
	cmdStdinWrite = "stdinWrite"
	cmdKillChild  = "killChild"
	cmdOpen       = "open"
)

// SessionEvent enumerates the events a Command emits.
type SessionEvent int

const (
	// EventError fires with an *event.ErrorEvent when the host reports a
	// failure or the session sees a protocol violation.
	EventError SessionEvent = iota

	// EventClose fires with an *event.TerminatedEvent when the child exits.
	EventClose
)

func (e SessionEvent) String() string {
	switch e {
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return fmt.Sprintf("SessionEvent(%d)", int(e))
	}
}

// StreamEvent enumerates the events an OutputStream emits.
type StreamEvent int

const (
	// EventData fires with each output chunk.
	EventData StreamEvent = iota
)

func (e StreamEvent) String() string {
	if e == EventData {
		return "data"
	}

	return fmt.Sprintf("StreamEvent(%d)", int(e))
}

// State is the lifecycle position of a Command.
type State int

const (
	// StateCreated means the request is built but not sent.
	StateCreated State = iota
	// StateSpawning means the execute request is in flight.
	StateSpawning
	// StateRunning means the host acknowledged the spawn.
	StateRunning
	// StateTerminated means a terminal event was observed or the spawn failed.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// OutputStream carries the chunks of one output stream of the child.
type OutputStream struct {
	*emitter.Emitter[StreamEvent, event.Chunk]
}

func newOutputStream() *OutputStream {
	return &OutputStream{Emitter: emitter.New[StreamEvent, event.Chunk]()}
}

// OnData registers fn for every chunk. The returned listener can be passed
// to Off to remove it.
func (s *OutputStream) OnData(fn func(event.Chunk)) *emitter.Listener[event.Chunk] {
	l := emitter.Func(fn)
	s.On(EventData, l)

	return l
}

// Command is a request to run a program on the host, and the session that
// follows it once spawned.
//
// Listeners registered on the Command and on its Stdout and Stderr streams
// run on the bridge's delivery goroutine, one event at a time in arrival
// order. A listener may call Child methods.
type Command struct {
	*emitter.Emitter[SessionEvent, event.Event]

	// Stdout receives the child's standard output.
	Stdout *OutputStream
	// Stderr receives the child's standard error.
	Stderr *OutputStream

	log     *slog.Logger
	bridge  config.Bridge
	program string
	args    []string
	options config.SpawnOptions

	mu          sync.Mutex
	state       State
	callbackID  config.CallbackID
	registered  bool
	terminal    bool // a terminal event was routed
	spawnFailed bool
	pid         int
	done        chan struct{}
}

// New creates a command that runs program with args through bridge. The
// args slice is copied. options may be nil.
func New(bridge config.Bridge, program string, args []string, options *config.SpawnOptions) *Command {
	var opts config.SpawnOptions
	if options != nil {
		opts = *options
		opts.Env = maps.Clone(options.Env)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Command{
		Emitter: emitter.New[SessionEvent, event.Event](),
		Stdout:  newOutputStream(),
		Stderr:  newOutputStream(),
		log:     log.With("component", "command", "program", program),
		bridge:  bridge,
		program: program,
		args:    slices.Clone(args),
		options: opts,
		done:    make(chan struct{}),
	}
}

// NewSidecar is like New but asks the host to resolve program as a bundled
// sidecar binary.
func NewSidecar(bridge config.Bridge, program string, args []string, options *config.SpawnOptions) *Command {
	var opts config.SpawnOptions
	if options != nil {
		opts = *options
	}

	opts.Sidecar = true

	return New(bridge, program, args, &opts)
}

// Program returns the program name.
func (c *Command) Program() string {
	return c.program
}

// Args returns a copy of the arguments.
func (c *Command) Args() []string {
	return slices.Clone(c.args)
}

// State returns the current lifecycle state.
func (c *Command) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Done returns a channel that is closed once a terminal event is observed.
// It is never closed when Spawn fails.
func (c *Command) Done() <-chan struct{} {
	return c.done
}

// Stop kills the child if it was spawned and has not terminated. It
// returns nil without contacting the host in any other state.
func (c *Command) Stop(ctx context.Context) error {
	c.mu.Lock()
	running, pid := c.state == StateRunning, c.pid
	c.mu.Unlock()

	if !running {
		return nil
	}

	return (&Child{pid: pid, cmd: c}).Kill(ctx)
}

// OnClose registers fn for the close event.
func (c *Command) OnClose(fn func(*event.TerminatedEvent)) *emitter.Listener[event.Event] {
	l := emitter.Func(func(ev event.Event) {
		if term, ok := ev.(*event.TerminatedEvent); ok {
			fn(term)
		}
	})
	c.On(EventClose, l)

	return l
}

// OnError registers fn for the error event. Host-reported failures arrive
// as *errors.CommandError; protocol violations as *errors.ProtocolError.
func (c *Command) OnError(fn func(error)) *emitter.Listener[event.Event] {
	l := emitter.Func(func(ev event.Event) {
		if errEv, ok := ev.(*event.ErrorEvent); ok {
			fn(errorOf(errEv))
		}
	})
	c.On(EventError, l)

	return l
}

// errorOf converts an error event to the error callers see.
func errorOf(ev *event.ErrorEvent) error {
	if ev.Err != nil {
		return ev.Err
	}

	return &errors.CommandError{Message: ev.Message}
}

// Spawn asks the host to start the program and returns a handle to the
// child once the host acknowledges it.
//
// Events that arrive while the acknowledgment is in flight are routed
// normally. If the host rejects the request the returned error is an
// *errors.BridgeError, the session moves to StateTerminated and no close
// or error event fires. Spawn may be called once.
func (c *Command) Spawn(ctx context.Context) (*Child, error) {
	c.mu.Lock()

	if c.state != StateCreated {
		c.mu.Unlock()

		return nil, errors.ErrAlreadySpawned
	}

	c.state = StateSpawning
	c.mu.Unlock()

	id := c.bridge.RegisterCallback(c.handle)

	c.mu.Lock()
	c.callbackID = id
	c.registered = true
	c.mu.Unlock()

	payload := map[string]any{
		"program":   c.program,
		"args":      slices.Clone(c.args),
		"options":   c.options.Payload(),
		"onEventFn": id,
	}

	c.log.Debug("Spawning command", "args", c.args, "callback", id)

	result, err := c.bridge.Invoke(ctx, cmdExecute, payload)
	if err != nil {
		c.log.Debug("Spawn failed", "error", err)
		c.failSpawn()

		return nil, err
	}

	pid, ok := event.ToInt(result)
	if !ok {
		c.failSpawn()

		return nil, &errors.ProtocolError{
			Reason: fmt.Sprintf("execute returned %T, want a process id", result),
		}
	}

	c.mu.Lock()
	c.pid = pid

	if c.state == StateSpawning {
		c.state = StateRunning
	}
	c.mu.Unlock()

	c.log.Info("Command spawned", "pid", pid)

	return &Child{pid: pid, cmd: c}, nil
}

func (c *Command) failSpawn() {
	c.mu.Lock()
	c.state = StateTerminated
	c.spawnFailed = true
	c.mu.Unlock()

	c.unregister()
}

// unregister removes the session's callback from the bridge once.
func (c *Command) unregister() {
	c.mu.Lock()
	id, registered := c.callbackID, c.registered
	c.registered = false
	c.mu.Unlock()

	if registered {
		c.bridge.UnregisterCallback(id)
	}
}

// handle receives every payload the host streams to the session callback.
func (c *Command) handle(payload any) {
	ev, err := event.Parse(c.log, payload)

	c.mu.Lock()

	if c.spawnFailed {
		c.mu.Unlock()
		c.log.Debug("Dropping event for failed spawn")

		return
	}

	if c.terminal {
		c.mu.Unlock()
		c.protocolError(&errors.ProtocolError{
			Event:  tagOf(payload),
			Reason: "event received after termination",
		})

		return
	}

	if err != nil {
		c.log.Error("Malformed event from host", "error", err)

		ev = &event.ErrorEvent{Message: err.Error(), Err: err}
	}

	if ev.Terminal() {
		c.terminal = true
		c.state = StateTerminated
		close(c.done)
	}

	pid := c.pid
	c.mu.Unlock()

	switch e := ev.(type) {
	case *event.StdoutEvent:
		c.Stdout.Emit(EventData, e.Chunk)
	case *event.StderrEvent:
		c.Stderr.Emit(EventData, e.Chunk)
	case *event.ErrorEvent:
		c.log.Debug("Command failed", "pid", pid, "error", e)

		if !c.Emit(EventError, e) {
			c.log.Warn("Unhandled command error", "pid", pid, "error", e)
		}
	case *event.TerminatedEvent:
		c.log.Debug("Command terminated", "pid", pid, "code", e.Code, "signal", e.Signal)
		c.Emit(EventClose, e)
	}

	if ev.Terminal() {
		c.unregister()
	}
}

// protocolError reports a violation that cannot be delivered as a session
// event.
func (c *Command) protocolError(err *errors.ProtocolError) {
	c.log.Error("Protocol error", "error", err)

	if c.options.ProtocolErrorHandler != nil {
		c.options.ProtocolErrorHandler(err)
	}
}

func tagOf(payload any) string {
	if obj, ok := payload.(map[string]any); ok {
		if tag, ok := obj["event"].(string); ok {
			return tag
		}
	}

	return ""
}
