package kinfer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockBackendTracksCallCounts(t *testing.T) {
	b := NewMockBackend([]byte{1, 2, 3}, []byte{9})
	ctx := context.Background()

	require.NoError(t, b.Init(ctx))
	require.NoError(t, b.InitWeights(ctx))
	require.NoError(t, b.InitInput(ctx))
	require.NoError(t, b.Run(ctx))
	_, err := b.RunBench(ctx)
	require.NoError(t, err)

	counts := b.CallCounts()
	require.Equal(t, 1, counts["init"])
	require.Equal(t, 1, counts["init_weights"])
	require.Equal(t, 1, counts["init_input"])
	require.Equal(t, 1, counts["run"])
	require.Equal(t, 1, counts["run_bench"])
}

func TestMockBackendGetOutputFailsAfterDeinit(t *testing.T) {
	b := NewMockBackend([]byte{1}, nil)
	require.NoError(t, b.Deinit(context.Background()))
	require.True(t, b.IsClosed())
	_, err := b.GetOutput(make([]byte, 4))
	require.Error(t, err)
}

func TestMockBackendInjectedErrorsPropagate(t *testing.T) {
	b := NewMockBackend(nil, nil)
	b.InitErr = errBoom
	require.ErrorIs(t, b.Init(context.Background()), errBoom)
}

func TestMockTransportReadWriteRoundTrip(t *testing.T) {
	tr := NewMockTransport([]byte("hello"))
	buf := make([]byte, 5)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))

	_, err = tr.Write([]byte("world"))
	require.NoError(t, err)
	require.Equal(t, "world", string(tr.Written()))
}

func TestMockTransportReadAfterCloseErrors(t *testing.T) {
	tr := NewMockTransport(nil)
	require.NoError(t, tr.Close())
	_, err := tr.Read(make([]byte, 1))
	require.Error(t, err)
}

func TestMockTransportFeedAppendsToInbox(t *testing.T) {
	tr := NewMockTransport([]byte("ab"))
	tr.Feed([]byte("cd"))
	buf := make([]byte, 4)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(buf[:n]))
}

var errBoom = errors.New("boom")
