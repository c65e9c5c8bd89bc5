package shell

import "github.com/wagiedev/shell-bridge-go/internal/errors"

// Re-export error types from internal package

// BridgeError indicates the host rejected a request.
type BridgeError = errors.BridgeError

// ProtocolError indicates the host sent an event that violates the
// session protocol.
type ProtocolError = errors.ProtocolError

// WriteError indicates a write to a child's stdin failed.
type WriteError = errors.WriteError

// CommandError carries the message of an Error event reported by the host.
type CommandError = errors.CommandError

// HostNotFoundError indicates the host binary was not found.
type HostNotFoundError = errors.HostNotFoundError

// HostConnectionError indicates failure to connect to the host.
type HostConnectionError = errors.HostConnectionError

// HostProcessError indicates the host process failed.
type HostProcessError = errors.HostProcessError

// DecodeError indicates a frame from the host could not be decoded.
type DecodeError = errors.DecodeError

// ShellError is the base interface for all shell bridge errors.
type ShellError = errors.ShellError

// Re-export sentinel errors from internal package.
var (
	// ErrBridgeNotConnected indicates the bridge is not connected.
	ErrBridgeNotConnected = errors.ErrBridgeNotConnected

	// ErrBridgeAlreadyConnected indicates the bridge is already connected.
	ErrBridgeAlreadyConnected = errors.ErrBridgeAlreadyConnected

	// ErrBridgeClosed indicates the bridge has been closed and cannot be reused.
	ErrBridgeClosed = errors.ErrBridgeClosed

	// ErrHostDisconnected indicates the host closed the connection.
	ErrHostDisconnected = errors.ErrHostDisconnected

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrControllerStopped indicates the protocol controller has stopped.
	ErrControllerStopped = errors.ErrControllerStopped

	// ErrStdinClosed indicates the host's stdin was closed.
	ErrStdinClosed = errors.ErrStdinClosed

	// ErrAlreadySpawned indicates Spawn was called twice on the same command.
	ErrAlreadySpawned = errors.ErrAlreadySpawned

	// ErrOutputLimitExceeded indicates Execute buffered more output than allowed.
	ErrOutputLimitExceeded = errors.ErrOutputLimitExceeded

	// ErrProcessTerminated indicates the child process already terminated.
	ErrProcessTerminated = errors.ErrProcessTerminated
)
