// Package client implements the Bridge that connects a caller to the
// privileged host.
//
// A Bridge picks a transport (an injected one, a WebSocket connection, or a
// spawned host process), starts a protocol controller on it and supervises
// the connection until Close. It satisfies config.Bridge, so command
// sessions can be driven by it or by any other implementation such as a
// test fake.
//
// Bridges are single-use: once closed they cannot be started again.
package client
