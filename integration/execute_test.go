//go:build integration

package integration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	shell "github.com/wagiedev/shell-bridge-go"
)

// TestExecute_Echo tests a buffered run against the real host.
func TestExecute_Echo(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bridge := startBridge(t, ctx)

	out, err := shell.Execute(ctx, bridge, "sh", []string{"-c", "echo one; echo two; echo err >&2"})
	require.NoError(t, err)
	require.True(t, out.Success())
	require.Equal(t, "one\ntwo", string(out.Stdout))
	require.Equal(t, "err", string(out.Stderr))
}

// TestExecute_ExitCodeAndEnv tests environment overrides and non-zero exits.
func TestExecute_ExitCodeAndEnv(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bridge := startBridge(t, ctx)

	out, err := shell.Execute(ctx, bridge, "sh", []string{"-c", `echo "$MARKER"; exit 3`},
		shell.WithCommandEnv(map[string]string{"MARKER": "from-env"}),
		shell.WithWorkDir("/"),
	)
	require.NoError(t, err)
	require.NotNil(t, out.Code)
	require.Equal(t, 3, *out.Code)
	require.Equal(t, "from-env", string(out.Stdout))
}

// TestExecute_MissingProgram tests that a missing program surfaces as an error.
func TestExecute_MissingProgram(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bridge := startBridge(t, ctx)

	_, err := shell.Execute(ctx, bridge, "definitely-not-a-real-program", nil)
	require.Error(t, err)

	_, isBridgeErr := errors.AsType[*shell.BridgeError](err)
	_, isCommandErr := errors.AsType[*shell.CommandError](err)
	require.True(t, isBridgeErr || isCommandErr, "unexpected error type %T", err)
}

// TestExecute_OutputLimit tests that a runaway program is killed.
func TestExecute_OutputLimit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bridge := startBridge(t, ctx)

	_, err := shell.Execute(ctx, bridge, "yes", nil, shell.WithMaxOutput(4096))
	require.ErrorIs(t, err, shell.ErrOutputLimitExceeded)
}

// TestSpawn_WriteAndKill tests stdin forwarding and kill against a live child.
func TestSpawn_WriteAndKill(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bridge := startBridge(t, ctx)

	echoed := make(chan string, 1)

	cmd := shell.NewCommand(bridge, "cat", nil)
	cmd.Stdout.OnData(func(c shell.Chunk) {
		select {
		case echoed <- c.Text():
		default:
		}
	})

	child, err := cmd.Spawn(ctx)
	require.NoError(t, err)
	require.Positive(t, child.PID())

	require.NoError(t, child.WriteString(ctx, "ping\n"))

	select {
	case line := <-echoed:
		require.Equal(t, "ping", strings.TrimSpace(line))
	case <-ctx.Done():
		t.Fatal("timed out waiting for echo")
	}

	require.NoError(t, child.Kill(ctx))

	select {
	case <-cmd.Done():
	case <-ctx.Done():
		t.Fatal("timed out waiting for termination")
	}

	err = child.WriteString(ctx, "late\n")
	_, ok := errors.AsType[*shell.WriteError](err)
	require.True(t, ok, "expected WriteError, got %v", err)
}

// TestBridge_CBOR tests the CBOR codec end to end.
func TestBridge_CBOR(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bridge := startBridge(t, ctx, shell.WithCodec("cbor"))

	out, err := shell.Execute(ctx, bridge, "printf", []string{`\001\002`}, shell.WithRawOutput())
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, '\n'}, out.Stdout)
}

// TestBridge_CloseIsQuick tests that Close does not wait for running children.
func TestBridge_CloseIsQuick(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bridge := shell.NewBridge()
	if err := bridge.Start(ctx); err != nil {
		skipIfHostNotInstalled(t, err)
		t.Fatalf("Start failed: %v", err)
	}

	_, err := shell.NewCommand(bridge, "sleep", []string{"60"}).Spawn(ctx)
	require.NoError(t, err)

	closeStart := time.Now()
	require.NoError(t, bridge.Close())
	require.Less(t, time.Since(closeStart), 10*time.Second)

	<-bridge.Done()
	require.ErrorIs(t, bridge.Err(), shell.ErrBridgeClosed)
}
