// Package errors defines error types for the shell bridge.
//
// This package provides structured error types that wrap the different failure
// scenarios of talking to the privileged host: rejected requests, protocol
// violations, writes to finished processes and transport failures. All error
// types support error unwrapping and can be checked using errors.Is,
// errors.As, and errors.AsType.
package errors
