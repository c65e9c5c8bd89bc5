package shell

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// fakeHost implements Transport by playing the host side of the protocol in
// memory. Programs named in scripts stream their events and exit; "cat"
// echoes stdin until killed.
type fakeHost struct {
	mu       sync.Mutex
	started  bool
	closed   bool
	messages chan map[string]any
	errors   chan error

	nextPID   int
	callbacks map[int]float64 // pid -> callback id
	scripts   map[string][]map[string]any
	requests  []map[string]any
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		messages:  make(chan map[string]any, 100),
		errors:    make(chan error, 1),
		nextPID:   1000,
		callbacks: make(map[int]float64),
		scripts:   make(map[string][]map[string]any),
	}
}

func (h *fakeHost) script(program string, events ...map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.scripts[program] = events
}

func (h *fakeHost) Start(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.started = true

	return nil
}

func (h *fakeHost) ReadMessages(_ context.Context) (<-chan map[string]any, <-chan error) {
	return h.messages, h.errors
}

func (h *fakeHost) SendMessage(_ context.Context, data []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	if msgType, _ := msg["type"].(string); msgType != "invoke" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	h.requests = append(h.requests, msg)

	requestID, _ := msg["request_id"].(string)
	command, _ := msg["command"].(string)
	payload, _ := msg["payload"].(map[string]any)

	var (
		result any
		reason string
		events []map[string]any
		target float64
	)

	switch command {
	case "execute":
		program, _ := payload["program"].(string)
		script, scripted := h.scripts[program]

		if !scripted && program != "cat" {
			reason = "program not found: " + program

			break
		}

		h.nextPID++
		target, _ = payload["onEventFn"].(float64)
		h.callbacks[h.nextPID] = target
		result = float64(h.nextPID)
		events = script

	case "stdinWrite":
		pid := int(payload["pid"].(float64))

		text, ok := payload["buffer"].(string)
		if !ok {
			var b strings.Builder
			for _, v := range payload["buffer"].([]any) {
				b.WriteByte(byte(v.(float64)))
			}

			text = b.String()
		}

		target = h.callbacks[pid]
		events = []map[string]any{{"event": "Stdout", "payload": text}}

	case "killChild":
		pid := int(payload["pid"].(float64))
		target = h.callbacks[pid]
		events = []map[string]any{{"event": "Terminated", "payload": map[string]any{"signal": float64(9)}}}

	case "open":
		if path, _ := payload["path"].(string); strings.HasPrefix(path, "/etc/") {
			reason = "path not permitted"
		}
	}

	response := map[string]any{"request_id": requestID, "subtype": "success", "response": result}
	if reason != "" {
		response = map[string]any{"request_id": requestID, "subtype": "error", "error": reason}
	}

	// Replies and events share one ordered stream, like a real host.
	h.messages <- map[string]any{"type": "invoke_response", "response": response}

	for _, ev := range events {
		h.messages <- map[string]any{"type": "callback", "callback": target, "payload": ev}
	}

	return nil
}

// invoked returns the payloads of all requests for command.
func (h *fakeHost) invoked(command string) []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	var payloads []map[string]any

	for _, req := range h.requests {
		if req["command"] == command {
			payload, _ := req["payload"].(map[string]any)
			payloads = append(payloads, payload)
		}
	}

	return payloads
}

// hangUp simulates the host going away.
func (h *fakeHost) hangUp(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	if err != nil {
		h.errors <- err
	}

	close(h.messages)
	close(h.errors)
}

func (h *fakeHost) Close() error {
	h.hangUp(nil)

	return nil
}

func (h *fakeHost) IsReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.started && !h.closed
}

func (h *fakeHost) EndInput() error {
	return nil
}

func stdout(text string) map[string]any {
	return map[string]any{"event": "Stdout", "payload": text}
}

func stderr(text string) map[string]any {
	return map[string]any{"event": "Stderr", "payload": text}
}

func exited(code int) map[string]any {
	return map[string]any{"event": "Terminated", "payload": map[string]any{"code": float64(code)}}
}
