package feedclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestConnectShutdownInterrupt ensures a shutdown interrupts an unlimited-retry
// connect loop against an unreachable feed instead of blocking until a
// connection is made.
func TestConnectShutdownInterrupt(t *testing.T) {
	client, err := New(&ConnConfig{
		Host:                "127.0.0.1:1",
		Endpoint:            "ws",
		DisableTLS:          true,
		DisableConnectOnNew: true,
	}, nil)
	require.NoError(t, err)

	connectErr := make(chan error, 1)
	go func() {
		connectErr <- client.Connect(0)
	}()

	// Let the connect loop fail its first dial and enter its backoff wait
	// before requesting shutdown.
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		client.Shutdown()
		client.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown blocked while the feed was unreachable")
	}

	select {
	case err := <-connectErr:
		require.ErrorIs(t, err, ErrClientShutdown)
	case <-time.After(5 * time.Second):
		t.Fatal("connect did not return after shutdown")
	}
}

// TestConnectModeChecks ensures the mode preconditions are still enforced.
func TestConnectModeChecks(t *testing.T) {
	client, err := New(&ConnConfig{
		Host:         "127.0.0.1:1",
		HTTPPostMode: true,
	}, nil)
	require.NoError(t, err)
	defer client.Shutdown()

	require.ErrorIs(t, client.Connect(1), ErrNotWebsocketClient)
}
