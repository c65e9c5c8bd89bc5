// Package subprocess provides the subprocess transport for the privileged host.
//
// This package implements the Transport interface by spawning the host
// binary as a child process and exchanging codec frames over its stdin and
// stdout. It handles process lifecycle management, stderr buffering, and
// error reporting.
package subprocess
