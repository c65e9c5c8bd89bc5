package shell

import "github.com/wagiedev/shell-bridge-go/internal/config"

// Transport defines the interface for communicating with the privileged host.
// Implement this to provide custom transports for testing, mocking,
// or alternative IPC channels.
//
// The default implementation spawns the host binary and exchanges frames
// over its stdio. With WithURL a WebSocket transport is used instead.
// Custom transports can be injected via WithTransport.
type Transport = config.Transport

// Bridge is the narrow contract commands use to reach the host: request and
// response invocations plus push callbacks. A started BridgeClient satisfies
// it, and so does any test double.
type Bridge = config.Bridge

// CallbackID identifies a callback registered with a Bridge.
type CallbackID = config.CallbackID
