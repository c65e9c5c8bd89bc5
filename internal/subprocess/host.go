package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/shell-bridge-go/internal/cli"
	"github.com/wagiedev/shell-bridge-go/internal/codec"
	"github.com/wagiedev/shell-bridge-go/internal/config"
	"github.com/wagiedev/shell-bridge-go/internal/errors"
)

const (
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded memory usage.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB
)

// HostTransport implements Transport by spawning the host binary and
// exchanging codec frames over its stdin and stdout.
type HostTransport struct {
	log            *slog.Logger
	options        *config.Options
	frames         codec.Codec
	hostPath       string
	args           []string
	env            []string
	cwd            string
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	stderrCallback func(string) // Callback for streaming stderr output
	mu             sync.Mutex   // Protects stdin writes
	closing        bool         // Whether Close() has been called (intentional shutdown)
	stdinClosed    bool         // Whether stdin was closed (e.g., due to context cancellation)
}

// Compile-time verification that HostTransport implements the Transport interface.
var _ config.Transport = (*HostTransport)(nil)

// NewHostTransport creates a new host transport with the given options.
//
// Host discovery is deferred to Start(), which searches for the binary in
// the following order:
//  1. The explicit path in options.HostPath (if provided)
//  2. SHELL_BRIDGE_HOST_PATH
//  3. The system PATH
//  4. Common installation directories
//
// Start() returns HostNotFoundError if the binary cannot be located.
func NewHostTransport(log *slog.Logger, options *config.Options) *HostTransport {
	if options == nil {
		options = &config.Options{}
	}

	return &HostTransport{
		log:            log.With("component", "host_transport"),
		options:        options,
		stderrCallback: options.Stderr,
	}
}

// Codec returns the frame codec. It is valid after Start.
func (t *HostTransport) Codec() codec.Codec {
	return t.frames
}

// Start starts the host subprocess.
//
// This method discovers the host binary, builds command arguments, and
// spawns the process with the configured environment variables. It sets up
// stdin, stdout, and stderr pipes for communication.
//
// Returns HostNotFoundError if the binary cannot be located, or
// HostConnectionError if the process fails to start.
func (t *HostTransport) Start(ctx context.Context) error {
	t.log.Info("Starting host subprocess")

	frames, err := codec.ByName(t.options.Codec)
	if err != nil {
		return fmt.Errorf("select codec: %w", err)
	}

	t.frames = frames

	discoverer := cli.NewDiscoverer(&cli.Config{
		HostPath:         t.options.HostPath,
		SkipVersionCheck: t.options.SkipVersionCheck,
		Logger:           t.log,
	})

	hostPath, err := discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover host: %w", err)
	}

	t.hostPath = hostPath

	t.args = cli.BuildArgs(t.options)
	t.log.Debug("Built command arguments", "args", t.args)

	t.env = cli.BuildEnvironment(t.options)

	t.cwd = t.options.Cwd
	if t.cwd == "" {
		t.cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	t.log.Debug("Set working directory", "cwd", t.cwd)

	//nolint:gosec // G204: Subprocess launching with dynamic args is expected for host invocation
	cmd := exec.CommandContext(ctx, t.hostPath, t.args...)
	cmd.Dir = t.cwd
	cmd.Env = t.env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.HostConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	t.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.HostConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	t.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.HostConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	t.stderr = stderr

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start host process", "error", err)

		return &errors.HostConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.mu.Lock()
	t.cmd = cmd
	t.mu.Unlock()

	t.log.Info("Host subprocess started", "pid", cmd.Process.Pid, "codec", t.frames.Name())

	return nil
}

// ReadMessages reads frames from the host's stdout.
//
// This method starts a goroutine that decodes frames with the configured
// codec and sends them to the messages channel. Frames that fail to decode
// are logged and skipped when the codec can resynchronize; any other read
// failure ends the stream.
//
// When stdout closes the goroutine waits for the host to exit. An abnormal
// exit that was not caused by Close is reported as *errors.HostProcessError
// carrying the buffered stderr. Both channels are closed when the goroutine
// exits.
func (t *HostTransport) ReadMessages(
	ctx context.Context,
) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any)
	errs := make(chan error, 1)

	var (
		stderrWg     sync.WaitGroup
		stderrBuffer strings.Builder
		stderrMu     sync.Mutex
	)

	// Always buffer stderr for error reporting (must complete reads before Wait())
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe
	stderrWg.Go(func() {
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.stderrCallback != nil {
				t.stderrCallback(line)
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	maxFrameSize := 0
	if t.options.MaxFrameSize != nil {
		maxFrameSize = *t.options.MaxFrameSize
	}

	decoder := t.frames.NewDecoder(t.stdout, maxFrameSize)

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		frameCount := 0

		for {
			msg, err := decoder.Decode()
			if err != nil {
				if stderrors.Is(err, io.EOF) {
					break
				}

				if decodeErr, ok := stderrors.AsType[*errors.DecodeError](err); ok {
					t.log.Warn("Skipping undecodable frame from host", "error", decodeErr.Err, "frame", decodeErr.RawData)

					continue
				}

				t.log.Error("Error while reading host output", "error", err)

				errs <- err

				break
			}

			frameCount++
			t.log.Debug("Received frame from host", "frame_count", frameCount)

			select {
			case messages <- msg:
			case <-ctx.Done():
				t.log.Debug("Context cancelled during message send", "error", ctx.Err())

				errs <- ctx.Err()

				return
			}
		}

		stderrWg.Wait()

		t.log.Debug("Waiting for host process to exit")

		if err := t.cmd.Wait(); err != nil {
			t.mu.Lock()
			isClosing := t.closing
			t.mu.Unlock()

			if isClosing {
				t.log.Debug("Host process terminated during shutdown")

				return
			}

			stderrMu.Lock()
			stderrOutput := strings.TrimSpace(stderrBuffer.String())
			stderrMu.Unlock()

			exitCode := -1

			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				exitCode = exitErr.ExitCode()
			}

			t.log.Error("Host process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

			select {
			case errs <- &errors.HostProcessError{
				ExitCode: exitCode,
				Stderr:   stderrOutput,
				Err:      err,
			}:
			default:
				// A read error is already queued and carries the failure.
			}
		} else {
			t.log.Info("Host process exited")
		}
	}()

	return messages, errs
}

// SendMessage writes one encoded frame to the host's stdin.
//
// This method is safe for concurrent use and respects context cancellation
// even during blocking writes. If the context is cancelled during a blocked
// write, stdin is closed to unblock it and subsequent calls return
// ErrStdinClosed.
func (t *HostTransport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return errors.ErrTransportNotConnected
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Sending frame to host", "data_len", len(data))

	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write frame to host", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		_ = t.stdin.Close()
		t.stdinClosed = true

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// IsReady reports whether the host process is running and stdin is open.
func (t *HostTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && t.stdin != nil && !t.stdinClosed
}

// EndInput closes stdin, signalling that no more requests will be sent.
// The host finishes outstanding work and exits.
func (t *HostTransport) EndInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil && !t.stdinClosed {
		t.log.Debug("Closing stdin pipe")

		err := t.stdin.Close()
		t.stdinClosed = true
		t.stdin = nil

		return err
	}

	return nil
}

// Close kills the host process. It's safe to call Close multiple times or
// on an already-terminated process.
func (t *HostTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = true
	t.stdinClosed = true

	if t.cmd != nil && t.cmd.Process != nil {
		t.log.Debug("Killing host process", "pid", t.cmd.Process.Pid)

		if err := t.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill host process (pid %d): %w", t.cmd.Process.Pid, err)
		}
	}

	return nil
}
