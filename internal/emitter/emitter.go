// Package emitter provides a generic, ordered, multi-listener event dispatcher.
//
// An Emitter is keyed by a closed set of event kinds chosen by its owner
// (typically a small integer enum), so unknown event names cannot be
// registered or emitted at all.
//
// Dispatch contract:
//   - Emit invokes listeners synchronously, in registration order.
//   - Emit iterates a snapshot of the listeners taken when it was called.
//     Listeners added during dispatch first run on the next Emit. Listeners
//     removed during dispatch still run in the in-progress Emit, except once
//     listeners that already fired.
//   - A once listener is deregistered before it is invoked and runs at most
//     once, even when Emit is re-entered from inside another listener.
//
// Listener identity is pointer identity on *Listener. Registering the same
// *Listener twice produces two invocations per Emit; Off removes all of them.
//
// An Emitter is safe for concurrent use. Listeners run outside the internal
// lock and may freely call back into the Emitter.
package emitter

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Listener wraps a callback so it can be compared for removal.
type Listener[A any] struct {
	fn func(A)
}

// Func creates a Listener from fn.
func Func[A any](fn func(A)) *Listener[A] {
	if fn == nil {
		panic("emitter: nil listener func")
	}

	return &Listener[A]{fn: fn}
}

// Call invokes the wrapped callback.
func (l *Listener[A]) Call(arg A) {
	l.fn(arg)
}

// entry is one registration of a listener.
type entry[A any] struct {
	listener *Listener[A]
	once     bool
	fired    atomic.Bool
}

// Emitter dispatches events of kind E carrying an argument of type A.
// The zero value is ready to use.
type Emitter[E comparable, A any] struct {
	mu        sync.Mutex
	listeners map[E][]*entry[A]
}

// New creates an empty Emitter.
func New[E comparable, A any]() *Emitter[E, A] {
	return &Emitter[E, A]{listeners: make(map[E][]*entry[A], 2)}
}

// On appends l to the listeners of event.
func (e *Emitter[E, A]) On(event E, l *Listener[A]) *Emitter[E, A] {
	e.add(event, l, false, false)

	return e
}

// Once appends a one-shot registration of l to the listeners of event.
func (e *Emitter[E, A]) Once(event E, l *Listener[A]) *Emitter[E, A] {
	e.add(event, l, true, false)

	return e
}

// PrependListener inserts l at the front of the listeners of event.
func (e *Emitter[E, A]) PrependListener(event E, l *Listener[A]) *Emitter[E, A] {
	e.add(event, l, false, true)

	return e
}

// PrependOnceListener inserts a one-shot registration of l at the front of
// the listeners of event.
func (e *Emitter[E, A]) PrependOnceListener(event E, l *Listener[A]) *Emitter[E, A] {
	e.add(event, l, true, true)

	return e
}

// Off removes every registration of l for event, once or not.
func (e *Emitter[E, A]) Off(event E, l *Listener[A]) *Emitter[E, A] {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, ok := e.listeners[event]
	if !ok {
		return e
	}

	entries = slices.DeleteFunc(entries, func(en *entry[A]) bool {
		return en.listener == l
	})

	e.store(event, entries)

	return e
}

// RemoveAllListeners clears the listeners of the given events, or of every
// event when none are given.
func (e *Emitter[E, A]) RemoveAllListeners(events ...E) *Emitter[E, A] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(events) == 0 {
		clear(e.listeners)

		return e
	}

	for _, event := range events {
		delete(e.listeners, event)
	}

	return e
}

// ListenerCount returns the number of registrations for event.
func (e *Emitter[E, A]) ListenerCount(event E) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.listeners[event])
}

// EventNames returns the events that currently have listeners, in no
// particular order.
func (e *Emitter[E, A]) EventNames() []E {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]E, 0, len(e.listeners))
	for event := range e.listeners {
		names = append(names, event)
	}

	return names
}

// Emit invokes the listeners registered for event with arg and reports
// whether any were registered.
func (e *Emitter[E, A]) Emit(event E, arg A) bool {
	e.mu.Lock()

	entries := e.listeners[event]
	if len(entries) == 0 {
		e.mu.Unlock()

		return false
	}

	snapshot := slices.Clone(entries)
	e.mu.Unlock()

	for _, en := range snapshot {
		if en.once {
			if !en.fired.CompareAndSwap(false, true) {
				continue
			}

			e.remove(event, en)
		}

		en.listener.fn(arg)
	}

	return true
}

func (e *Emitter[E, A]) add(event E, l *Listener[A], once, prepend bool) {
	if l == nil {
		panic("emitter: nil listener")
	}

	en := &entry[A]{listener: l, once: once}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[E][]*entry[A], 2)
	}

	if prepend {
		e.listeners[event] = append([]*entry[A]{en}, e.listeners[event]...)

		return
	}

	e.listeners[event] = append(e.listeners[event], en)
}

// remove deletes a single registration.
func (e *Emitter[E, A]) remove(event E, target *entry[A]) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := slices.DeleteFunc(e.listeners[event], func(en *entry[A]) bool {
		return en == target
	})

	e.store(event, entries)
}

// store writes back a listener slice. Caller must hold e.mu.
func (e *Emitter[E, A]) store(event E, entries []*entry[A]) {
	if len(entries) == 0 {
		delete(e.listeners, event)

		return
	}

	e.listeners[event] = entries
}
