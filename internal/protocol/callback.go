package protocol

import (
	"sync"

	"github.com/wagiedev/shell-bridge-go/internal/config"
)

// callback delivers payloads pushed by the host to one registered handler.
//
// Payloads queue without bound so the read loop never blocks on a slow
// handler, and a handler may call back into the controller (for example to
// write to a child's stdin) without deadlocking the read loop. One goroutine
// per callback keeps delivery in arrival order.
type callback struct {
	id      config.CallbackID
	handler func(payload any)

	mu     sync.Mutex
	queue  []any
	closed bool
	wake   chan struct{}
}

func newCallback(id config.CallbackID, handler func(payload any)) *callback {
	return &callback{
		id:      id,
		handler: handler,
		wake:    make(chan struct{}, 1),
	}
}

// push queues a payload. It reports false once the callback is closed.
func (cb *callback) push(payload any) bool {
	cb.mu.Lock()

	if cb.closed {
		cb.mu.Unlock()

		return false
	}

	cb.queue = append(cb.queue, payload)
	cb.mu.Unlock()

	cb.signal()

	return true
}

// close stops accepting payloads. Payloads already queued are still delivered.
func (cb *callback) close() {
	cb.mu.Lock()
	cb.closed = true
	cb.mu.Unlock()

	cb.signal()
}

func (cb *callback) signal() {
	select {
	case cb.wake <- struct{}{}:
	default:
	}
}

// run delivers queued payloads until the callback is closed and drained.
// When done is closed the callback stops accepting payloads and drains.
func (cb *callback) run(done <-chan struct{}) {
	for {
		cb.mu.Lock()

		if len(cb.queue) == 0 {
			closed := cb.closed
			cb.mu.Unlock()

			if closed {
				return
			}

			select {
			case <-cb.wake:
			case <-done:
				cb.close()
			}

			continue
		}

		payload := cb.queue[0]
		cb.queue[0] = nil
		cb.queue = cb.queue[1:]
		cb.mu.Unlock()

		cb.handler(payload)
	}
}
