package errors

import (
	"errors"
	"fmt"
)

// ShellError is the base interface for all shell bridge errors.
type ShellError interface {
	error
	IsShellError() bool
}

// Compile-time verification that all error types implement ShellError.
var (
	_ ShellError = (*BridgeError)(nil)
	_ ShellError = (*ProtocolError)(nil)
	_ ShellError = (*WriteError)(nil)
	_ ShellError = (*CommandError)(nil)
	_ ShellError = (*HostNotFoundError)(nil)
	_ ShellError = (*HostConnectionError)(nil)
	_ ShellError = (*HostProcessError)(nil)
	_ ShellError = (*DecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrBridgeNotConnected indicates the bridge is not connected.
	ErrBridgeNotConnected = errors.New("bridge not connected")

	// ErrBridgeAlreadyConnected indicates the bridge is already connected.
	ErrBridgeAlreadyConnected = errors.New("bridge already connected")

	// ErrBridgeClosed indicates the bridge has been closed and cannot be reused.
	ErrBridgeClosed = errors.New("bridge closed: bridges are single-use, create a new one with NewBridge()")

	// ErrHostDisconnected indicates the host closed the connection.
	ErrHostDisconnected = errors.New("host disconnected")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrControllerStopped indicates the protocol controller has stopped.
	ErrControllerStopped = errors.New("protocol controller stopped")

	// ErrStdinClosed indicates the host's stdin was closed.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrAlreadySpawned indicates Spawn was called twice on the same command.
	ErrAlreadySpawned = errors.New("command already spawned")

	// ErrOutputLimitExceeded indicates buffered output grew past the configured limit.
	ErrOutputLimitExceeded = errors.New("output limit exceeded")

	// ErrProcessTerminated indicates the child process already reported termination.
	ErrProcessTerminated = errors.New("process terminated")
)

// BridgeError indicates the privileged host rejected a request.
type BridgeError struct {
	Command string
	Reason  string
	Err     error
}

func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("host rejected %s: %v", e.Command, e.Err)
	}

	return fmt.Sprintf("host rejected %s: %s", e.Command, e.Reason)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// IsShellError implements ShellError.
func (e *BridgeError) IsShellError() bool { return true }

// ProtocolError indicates the host sent something the bridge cannot accept:
// an unknown event tag, a malformed payload, or an event after termination.
type ProtocolError struct {
	Event  string
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("protocol error: %s", e.Reason)
	}

	return fmt.Sprintf("protocol error on %q event: %s", e.Event, e.Reason)
}

// IsShellError implements ShellError.
func (e *ProtocolError) IsShellError() bool { return true }

// WriteError indicates a write to a child's stdin failed.
type WriteError struct {
	PID int
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to process %d: %v", e.PID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsShellError implements ShellError.
func (e *WriteError) IsShellError() bool { return true }

// CommandError carries the payload of an Error event reported by the host
// for a spawned command.
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed: %s", e.Message)
}

// IsShellError implements ShellError.
func (e *CommandError) IsShellError() bool { return true }

// HostNotFoundError indicates the host binary was not found.
type HostNotFoundError struct {
	SearchedPaths []string
}

func (e *HostNotFoundError) Error() string {
	return fmt.Sprintf("shell host not found in: %v", e.SearchedPaths)
}

// IsShellError implements ShellError.
func (e *HostNotFoundError) IsShellError() bool { return true }

// HostConnectionError indicates failure to connect to the host.
type HostConnectionError struct {
	Err error
}

func (e *HostConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to host: %v", e.Err)
}

func (e *HostConnectionError) Unwrap() error {
	return e.Err
}

// IsShellError implements ShellError.
func (e *HostConnectionError) IsShellError() bool { return true }

// HostProcessError indicates the host process exited abnormally.
type HostProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *HostProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("host process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("host process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *HostProcessError) Unwrap() error {
	return e.Err
}

// IsShellError implements ShellError.
func (e *HostProcessError) IsShellError() bool { return true }

// DecodeError indicates a frame from the host could not be decoded.
// This error preserves the original raw data that failed to parse.
type DecodeError struct {
	RawData string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame from host: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsShellError implements ShellError.
func (e *DecodeError) IsShellError() bool { return true }
