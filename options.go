package shell

import (
	"log/slog"
	"time"

	"github.com/wagiedev/shell-bridge-go/internal/config"
)

// BridgeOptions configures a bridge connection to the privileged host.
type BridgeOptions = config.Options

// SpawnOptions configures a single spawned command.
type SpawnOptions = config.SpawnOptions

// Output encodings accepted by WithEncoding.
const (
	EncodingRaw  = config.EncodingRaw
	EncodingUTF8 = config.EncodingUTF8
)

// Option configures BridgeOptions using the functional options pattern.
type Option func(*BridgeOptions)

// applyBridgeOptions applies functional options to a BridgeOptions struct.
func applyBridgeOptions(opts []Option) *BridgeOptions {
	options := &BridgeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Bridge Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *BridgeOptions) {
		o.Logger = logger
	}
}

// WithHostPath sets the explicit path to the host binary.
func WithHostPath(path string) Option {
	return func(o *BridgeOptions) {
		o.HostPath = path
	}
}

// WithHostArgs appends extra arguments to the host command line.
func WithHostArgs(args ...string) Option {
	return func(o *BridgeOptions) {
		o.HostArgs = append(o.HostArgs, args...)
	}
}

// WithEnv provides additional environment variables for the host process.
func WithEnv(env map[string]string) Option {
	return func(o *BridgeOptions) {
		o.Env = env
	}
}

// WithCwd sets the working directory for the host process.
func WithCwd(cwd string) Option {
	return func(o *BridgeOptions) {
		o.Cwd = cwd
	}
}

// WithCodec selects the frame encoding: "json" (default) or "cbor".
func WithCodec(name string) Option {
	return func(o *BridgeOptions) {
		o.Codec = name
	}
}

// WithURL connects to a host listening on a WebSocket endpoint
// (ws:// or wss://) instead of spawning the host binary.
func WithURL(url string) Option {
	return func(o *BridgeOptions) {
		o.URL = url
	}
}

// WithHeader sets extra HTTP headers for the WebSocket handshake.
func WithHeader(header map[string]string) Option {
	return func(o *BridgeOptions) {
		o.Header = header
	}
}

// WithRequestTimeout bounds each request sent to the host.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *BridgeOptions) {
		o.RequestTimeout = &timeout
	}
}

// WithMaxFrameSize caps the size of a single frame read from the host.
func WithMaxFrameSize(size int) Option {
	return func(o *BridgeOptions) {
		o.MaxFrameSize = &size
	}
}

// WithStderr sets a callback that receives every line the host process
// writes to stderr.
func WithStderr(handler func(string)) Option {
	return func(o *BridgeOptions) {
		o.Stderr = handler
	}
}

// WithSkipVersionCheck disables the host version check during discovery.
func WithSkipVersionCheck(skip bool) Option {
	return func(o *BridgeOptions) {
		o.SkipVersionCheck = skip
	}
}

// WithTransport injects a custom transport implementation.
// The transport must implement the Transport interface.
func WithTransport(transport Transport) Option {
	return func(o *BridgeOptions) {
		o.Transport = transport
	}
}

// CommandOption configures SpawnOptions for a single command.
type CommandOption func(*SpawnOptions)

// applySpawnOptions applies functional options to a SpawnOptions struct.
func applySpawnOptions(opts []CommandOption) *SpawnOptions {
	options := &SpawnOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Command Configuration =====

// WithWorkDir sets the working directory of the child process.
func WithWorkDir(dir string) CommandOption {
	return func(o *SpawnOptions) {
		o.Cwd = dir
	}
}

// WithCommandEnv sets environment overrides for the child process.
func WithCommandEnv(env map[string]string) CommandOption {
	return func(o *SpawnOptions) {
		o.Env = env
	}
}

// WithEncoding selects how output chunks are delivered.
// EncodingRaw delivers byte sequences; anything else delivers lines of text.
func WithEncoding(encoding string) CommandOption {
	return func(o *SpawnOptions) {
		o.Encoding = encoding
	}
}

// WithRawOutput is shorthand for WithEncoding(EncodingRaw).
func WithRawOutput() CommandOption {
	return WithEncoding(EncodingRaw)
}

// WithMaxOutput caps the bytes Execute buffers across stdout and stderr.
// When the child writes more, it is killed and Execute returns
// ErrOutputLimitExceeded. Zero means unbounded.
func WithMaxOutput(limit int) CommandOption {
	return func(o *SpawnOptions) {
		o.MaxOutput = limit
	}
}

// WithCommandLogger sets the logger for the command session.
func WithCommandLogger(logger *slog.Logger) CommandOption {
	return func(o *SpawnOptions) {
		o.Logger = logger
	}
}

// WithProtocolErrorHandler receives protocol errors that cannot be delivered
// as session events, such as events arriving after termination.
func WithProtocolErrorHandler(handler func(error)) CommandOption {
	return func(o *SpawnOptions) {
		o.ProtocolErrorHandler = handler
	}
}
