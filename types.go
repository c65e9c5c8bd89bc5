package shell

import (
	"github.com/wagiedev/shell-bridge-go/internal/command"
	"github.com/wagiedev/shell-bridge-go/internal/emitter"
	"github.com/wagiedev/shell-bridge-go/internal/event"
)

// ===== Commands =====

// Command is a request to run a program on the host, and the session that
// follows it once spawned.
type Command = command.Command

// Child is a handle to a process running on the host.
type Child = command.Child

// Output is the result of a command that ran to completion.
type Output = command.Output

// OutputStream carries the chunks of one output stream of a child.
type OutputStream = command.OutputStream

// State is the lifecycle position of a Command.
type State = command.State

// Command lifecycle states.
const (
	StateCreated    = command.StateCreated
	StateSpawning   = command.StateSpawning
	StateRunning    = command.StateRunning
	StateTerminated = command.StateTerminated
)

// SessionEvent enumerates the events a Command emits.
type SessionEvent = command.SessionEvent

// StreamEvent enumerates the events an OutputStream emits.
type StreamEvent = command.StreamEvent

// Session and stream events.
const (
	EventError = command.EventError
	EventClose = command.EventClose
	EventData  = command.EventData
)

// ===== Events =====

// Event is implemented by every event the host streams for a command.
type Event = event.Event

// Chunk is one unit of process output: a line of text in text mode or a
// byte sequence in raw mode.
type Chunk = event.Chunk

// StdoutEvent carries a chunk written to standard output.
type StdoutEvent = event.StdoutEvent

// StderrEvent carries a chunk written to standard error.
type StderrEvent = event.StderrEvent

// ErrorEvent reports that the host failed to run or monitor the child.
type ErrorEvent = event.ErrorEvent

// TerminatedEvent reports that the child exited.
type TerminatedEvent = event.TerminatedEvent

// ===== Emitter =====

// Emitter is a synchronous, typed event emitter.
type Emitter[E comparable, A any] = emitter.Emitter[E, A]

// Listener wraps a listener function so it can later be removed with Off.
type Listener[A any] = emitter.Listener[A]

// NewEmitter creates an emitter with no listeners.
func NewEmitter[E comparable, A any]() *Emitter[E, A] {
	return emitter.New[E, A]()
}

// ListenerFunc wraps fn as a removable listener.
func ListenerFunc[A any](fn func(A)) *Listener[A] {
	return emitter.Func(fn)
}
