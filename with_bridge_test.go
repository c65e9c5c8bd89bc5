package shell

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithBridge(t *testing.T) {
	host := newFakeHost()
	host.script("uname", stdout("Linux"), exited(0))

	var captured BridgeClient

	err := WithBridge(context.Background(), func(b BridgeClient) error {
		captured = b

		out, err := Execute(context.Background(), b, "uname", nil)
		if err != nil {
			return err
		}

		require.Equal(t, "Linux", string(out.Stdout))

		return nil
	}, WithTransport(host))
	require.NoError(t, err)

	// The bridge is closed once the callback returns.
	<-captured.Done()
	require.ErrorIs(t, captured.Err(), ErrBridgeClosed)
	require.False(t, host.IsReady())

	_, err = captured.Invoke(context.Background(), "open", map[string]any{"path": "/tmp"})
	require.ErrorIs(t, err, ErrBridgeNotConnected)
}

func TestWithBridge_CallbackError(t *testing.T) {
	sentinel := errors.New("callback failed")

	err := WithBridge(context.Background(), func(BridgeClient) error {
		return sentinel
	}, WithTransport(newFakeHost()))

	require.ErrorIs(t, err, sentinel)
}

func TestWithBridge_StartFailure(t *testing.T) {
	called := false

	err := WithBridge(context.Background(), func(BridgeClient) error {
		called = true

		return nil
	}, WithTransport(newFakeHost()), WithCodec("xml"))

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to start bridge")
	require.False(t, called)
}

func TestWithBridge_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false

	err := WithBridge(ctx, func(BridgeClient) error {
		called = true

		return nil
	}, WithTransport(newFakeHost()))

	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}
