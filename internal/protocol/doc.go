// Package protocol implements message exchange with the privileged host.
//
// The Controller implements config.Bridge on top of a transport:
//   - Sending invoke messages with unique IDs
//   - Receiving and correlating invoke_response messages
//   - Request timeout enforcement
//   - Delivering callback messages to handlers registered with
//     RegisterCallback, in arrival order per callback
//
// Example usage:
//
//	transport := subprocess.NewHostTransport(log, hostPath, options)
//	transport.Start(ctx)
//
//	controller := protocol.NewController(log, transport, codec.JSON, 30*time.Second)
//	controller.Start(ctx)
//
//	pid, err := controller.Invoke(ctx, "execute", payload)
package protocol
