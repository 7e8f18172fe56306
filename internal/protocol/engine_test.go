package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edge-infer/kinfer/internal/loader"
	"github.com/edge-infer/kinfer/internal/transport"
	"github.com/edge-infer/kinfer/internal/wire"
)

func newEnginePair(t *testing.T) (client, server *Engine, reg *loader.Registry) {
	t.Helper()
	a, b := transport.NewPipePair(transport.Config{Timeout: time.Second})
	reg = loader.NewRegistry()
	client = New(a, loader.NewRegistry(), nil, nil, DefaultConfig())
	server = New(b, reg, nil, nil, DefaultConfig())
	return client, server, reg
}

func TestTransmitThenListenInlinePayload(t *testing.T) {
	client, server, _ := newEnginePair(t)

	go func() {
		_ = client.Transmit(context.Background(), wire.Process, wire.FlagIsZephyr, []byte{1, 2, 3, 4})
	}()

	ev, err := server.Listen(context.Background())
	require.NoError(t, err)
	require.Equal(t, wire.Process, ev.MessageType)
	require.Equal(t, []byte{1, 2, 3, 4}, ev.Payload)
	require.True(t, ev.Flags.Has(wire.FlagIsZephyr))
}

func TestTransmitFragmentsLargePayload(t *testing.T) {
	client, server, reg := newEnginePair(t)

	dst := make([]byte, 10000)
	buf := loader.NewBuffer(dst)
	reg.InstallModel(buf)

	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i)
	}

	go func() {
		_ = client.Transmit(context.Background(), wire.Model, 0, payload)
	}()

	// Transmit splits this into multiple TRANSMISSION-flow frames; Listen
	// reassembles them by following the FlagLast marker across headers,
	// streaming every fragment's bytes into the resolved loader.
	ev, err := server.Listen(context.Background())
	require.NoError(t, err)
	require.Equal(t, wire.Model, ev.MessageType)
	require.Nil(t, ev.Payload)
	require.Equal(t, payload, buf.Bytes())
}

func TestListenUnknownMessageTypeIsDrainedNotErrored(t *testing.T) {
	client, server, _ := newEnginePair(t)

	// Hand-craft a frame with an out-of-range message type.
	hdr := wire.Header{MessageType: wire.MessageType(63), FlowControl: wire.Request, PayloadSize: 3}
	encoded := hdr.Encode()

	go func() {
		_, _ = client.tr.Write(encoded[:])
		_, _ = client.tr.Write([]byte{9, 9, 9})
		// Follow with a well-formed PING so Listen has something to return.
		_ = client.Transmit(context.Background(), wire.Ping, 0, nil)
	}()

	ev, err := server.Listen(context.Background())
	require.NoError(t, err)
	require.Equal(t, wire.Ping, ev.MessageType)
}

func TestListenDataInvalidWhenNoLoaderRegistered(t *testing.T) {
	client, server, _ := newEnginePair(t)

	go func() {
		_ = client.Transmit(context.Background(), wire.Data, 0, []byte{1, 2, 3, 4})
	}()

	_, err := server.Listen(context.Background())
	require.Error(t, err)
	var dinv *DataInvalidError
	require.ErrorAs(t, err, &dinv)
	require.Equal(t, wire.Data, dinv.MessageType)
}

func TestTransmitZeroLengthPayloadSingleFrame(t *testing.T) {
	client, server, _ := newEnginePair(t)

	go func() {
		_ = client.Transmit(context.Background(), wire.Status, wire.FlagSuccess, nil)
	}()

	ev, err := server.Listen(context.Background())
	require.NoError(t, err)
	require.Equal(t, wire.Status, ev.MessageType)
	require.Len(t, ev.Payload, 0)
	require.True(t, ev.Flags.Has(wire.FlagSuccess))
}
