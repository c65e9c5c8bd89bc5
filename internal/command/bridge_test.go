package command

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/shell-bridge-go/internal/config"
	shellerrors "github.com/wagiedev/shell-bridge-go/internal/errors"
)

const testPID = 42

type invocation struct {
	command string
	payload map[string]any
}

// fakeBridge is an in-memory host. Callbacks run synchronously on the
// goroutine that pushes an event.
type fakeBridge struct {
	mu           sync.Mutex
	nextID       config.CallbackID
	handlers     map[config.CallbackID]func(any)
	unregistered []config.CallbackID
	invocations  []invocation

	// respond answers Invoke. The default acknowledges execute with testPID
	// and every other command with nil.
	respond func(command string, payload map[string]any) (any, error)
}

var _ config.Bridge = (*fakeBridge)(nil)

func newFakeBridge() *fakeBridge {
	return &fakeBridge{handlers: make(map[config.CallbackID]func(any))}
}

func (b *fakeBridge) Invoke(_ context.Context, command string, payload map[string]any) (any, error) {
	b.mu.Lock()
	b.invocations = append(b.invocations, invocation{command: command, payload: payload})
	respond := b.respond
	b.mu.Unlock()

	if respond != nil {
		return respond(command, payload)
	}

	if command == cmdExecute {
		return float64(testPID), nil
	}

	return nil, nil
}

func (b *fakeBridge) RegisterCallback(handler func(any)) config.CallbackID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[b.nextID] = handler

	return b.nextID
}

func (b *fakeBridge) UnregisterCallback(id config.CallbackID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unregistered = append(b.unregistered, id)
}

func (b *fakeBridge) isRegistered(id config.CallbackID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.handlers[id]

	return ok && !slices.Contains(b.unregistered, id)
}

// push delivers an event to a registered callback and reports whether one
// was registered.
func (b *fakeBridge) push(id config.CallbackID, tag string, payload any) bool {
	if !b.isRegistered(id) {
		return false
	}

	b.deliver(id, tag, payload)

	return true
}

// deliver calls the handler even after it was unregistered, like a payload
// that was already queued when the callback was removed.
func (b *fakeBridge) deliver(id config.CallbackID, tag string, payload any) {
	b.mu.Lock()
	handler := b.handlers[id]
	b.mu.Unlock()

	handler(map[string]any{"event": tag, "payload": payload})
}

func (b *fakeBridge) calls(command string) []invocation {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []invocation

	for _, inv := range b.invocations {
		if inv.command == command {
			out = append(out, inv)
		}
	}

	return out
}

// wireEvent is one event the fake host streams during an execute request.
type wireEvent struct {
	tag     string
	payload any
}

// streamOnExecute makes the fake host push events while the execute request
// is in flight, then acknowledge it with testPID.
func (b *fakeBridge) streamOnExecute(t *testing.T, events ...wireEvent) {
	t.Helper()

	b.respond = func(command string, payload map[string]any) (any, error) {
		if command != cmdExecute {
			return nil, nil
		}

		id, ok := payload["onEventFn"].(config.CallbackID)
		require.True(t, ok, "onEventFn missing from execute payload")

		for _, ev := range events {
			b.push(id, ev.tag, ev.payload)
		}

		return float64(testPID), nil
	}
}

func stdout(chunk any) wireEvent { return wireEvent{tag: "Stdout", payload: chunk} }
func stderr(chunk any) wireEvent { return wireEvent{tag: "Stderr", payload: chunk} }
func failed(msg string) wireEvent { return wireEvent{tag: "Error", payload: msg} }

func exited(code int) wireEvent {
	return wireEvent{tag: "Terminated", payload: map[string]any{"code": float64(code), "signal": nil}}
}

func rejectAll(reason string) func(string, map[string]any) (any, error) {
	return func(command string, _ map[string]any) (any, error) {
		return nil, &shellerrors.BridgeError{Command: command, Reason: reason}
	}
}

// lifecycleBridge adds a connection lifecycle to fakeBridge.
type lifecycleBridge struct {
	*fakeBridge

	done chan struct{}
	err  error
}

var _ config.Lifecycle = (*lifecycleBridge)(nil)

func (b *lifecycleBridge) Done() <-chan struct{} { return b.done }
func (b *lifecycleBridge) Err() error           { return b.err }
