// Package config provides configuration types for the shell bridge.
package config

import "context"

// Transport defines the interface for communicating with the privileged host.
// Implement this to provide custom transports for testing, mocking,
// or alternative IPC channels.
//
// The default implementation is HostTransport which spawns the host binary.
// Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any messages are sent or received.
	Start(ctx context.Context) error

	// ReadMessages returns channels for receiving messages and errors.
	// The message channel yields decoded frames from the host.
	// The error channel yields any errors that occur during reading.
	// Both channels are closed when reading completes or an error occurs.
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)

	// SendMessage sends one encoded frame to the host.
	// The data must be produced by the transport's codec.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool

	// EndInput signals that no more input will be sent.
	// For process-based transports, this typically closes stdin.
	EndInput() error
}

// CallbackID identifies a callback registered with a Bridge. The host
// addresses streamed events to it.
type CallbackID uint32

// Bridge is the boundary between the sandboxed caller and the privileged
// host. Invoke sends a named command and waits for the host's answer;
// RegisterCallback installs a handler that receives every payload the host
// pushes to the returned token.
//
// Payload values use the decoded-frame representation: strings, float64 or
// integer numbers, bools, nil, []any and map[string]any.
type Bridge interface {
	// Invoke sends command with payload and returns the host's response.
	// A host-side rejection is returned as *errors.BridgeError.
	Invoke(ctx context.Context, command string, payload map[string]any) (any, error)

	// RegisterCallback registers handler and returns its token.
	// Handlers for one token are invoked sequentially in arrival order.
	RegisterCallback(handler func(payload any)) CallbackID

	// UnregisterCallback removes a handler. Unknown ids are ignored.
	UnregisterCallback(id CallbackID)
}

// Lifecycle is implemented by bridges whose connection to the host can be
// lost. Done is closed once the connection is gone; Err then reports why.
type Lifecycle interface {
	Done() <-chan struct{}
	Err() error
}
