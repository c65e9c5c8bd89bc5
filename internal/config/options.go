package config

import (
	"log/slog"
	"maps"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultRequestTimeout bounds how long Invoke waits for the host's answer.
	DefaultRequestTimeout = 30 * time.Second

	// RequestTimeoutEnv overrides the request timeout, in whole seconds.
	RequestTimeoutEnv = "SHELL_BRIDGE_REQUEST_TIMEOUT"

	// HostPathEnv names the host binary when Options.HostPath is empty.
	HostPathEnv = "SHELL_BRIDGE_HOST_PATH"

	// SkipVersionCheckEnv disables the host version check when set.
	SkipVersionCheckEnv = "SHELL_BRIDGE_SKIP_VERSION_CHECK"
)

// Options configures a bridge connection to the privileged host.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// HostPath is the explicit path to the host binary.
	// If empty, SHELL_BRIDGE_HOST_PATH and then PATH are searched.
	HostPath string

	// HostArgs are extra arguments appended to the host command line.
	HostArgs []string

	// Env provides additional environment variables for the host process.
	Env map[string]string

	// Cwd sets the working directory for the host process.
	Cwd string

	// Codec selects the frame encoding: "json" (default) or "cbor".
	Codec string

	// URL connects to a host listening on a WebSocket endpoint instead of
	// spawning the host binary.
	URL string

	// Header carries extra HTTP headers for the WebSocket handshake.
	Header map[string]string

	// RequestTimeout bounds each Invoke call.
	// If nil, SHELL_BRIDGE_REQUEST_TIMEOUT or DefaultRequestTimeout applies.
	RequestTimeout *time.Duration

	// MaxFrameSize caps the size of a single frame read from the host.
	// If nil, the transport default applies.
	MaxFrameSize *int

	// Stderr receives every line the host process writes to stderr.
	Stderr func(string)

	// SkipVersionCheck skips host version validation during discovery.
	SkipVersionCheck bool

	// Transport allows injecting a custom transport implementation.
	// If nil, a HostTransport or WebSocket transport is created.
	Transport Transport `json:"-" yaml:"-"`
}

// ResolveRequestTimeout returns the request timeout from options, env var, or default.
func (o *Options) ResolveRequestTimeout() time.Duration {
	if o != nil && o.RequestTimeout != nil && *o.RequestTimeout > 0 {
		return *o.RequestTimeout
	}

	if timeoutStr := os.Getenv(RequestTimeoutEnv); timeoutStr != "" {
		if timeoutSec, err := strconv.Atoi(timeoutStr); err == nil && timeoutSec > 0 {
			return time.Duration(timeoutSec) * time.Second
		}
	}

	return DefaultRequestTimeout
}

// SpawnOptions configures a single spawned command.
type SpawnOptions struct {
	// Cwd is the working directory of the child process.
	Cwd string

	// Env holds environment overrides for the child process.
	Env map[string]string

	// Encoding selects how output chunks are delivered. "raw" delivers
	// byte sequences; anything else delivers decoded lines of text.
	Encoding string

	// Sidecar asks the host to resolve the program as a bundled sidecar.
	Sidecar bool

	// MaxOutput caps the bytes Execute buffers across stdout and stderr.
	// Zero means unbounded.
	MaxOutput int

	// Logger is the slog logger for the command session.
	Logger *slog.Logger

	// ProtocolErrorHandler receives protocol errors that cannot be delivered
	// as session events, such as events arriving after termination.
	ProtocolErrorHandler func(error)
}

// Raw reports whether output is delivered as raw bytes.
func (o *SpawnOptions) Raw() bool {
	return NormalizeEncoding(o.Encoding) == EncodingRaw
}

// Payload builds the options object sent with an execute request.
func (o *SpawnOptions) Payload() map[string]any {
	payload := map[string]any{
		"sidecar": o.Sidecar,
	}

	if o.Cwd != "" {
		payload["cwd"] = o.Cwd
	}

	if len(o.Env) > 0 {
		payload["env"] = maps.Clone(o.Env)
	}

	if encoding := NormalizeEncoding(o.Encoding); encoding != "" {
		payload["encoding"] = encoding
	}

	return payload
}
