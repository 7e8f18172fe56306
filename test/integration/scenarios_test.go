// Package integration drives kinfer.Server end to end over an in-memory
// transport.Pipe, the way a real host would over a serial line — each
// test here is one of the byte-level scenarios this protocol must
// satisfy, driving the server as a black box rather than poking at
// internals, the way internal/logsink/sink_test.go's raw frame
// read/write helpers already do — a host sending a REQUEST can't reuse
// protocol.Engine.Transmit (it only ever emits TRANSMISSION-flow frames
// for server responses).
package integration

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edge-infer/kinfer"
	"github.com/edge-infer/kinfer/backends/stub"
	"github.com/edge-infer/kinfer/internal/loader"
	"github.com/edge-infer/kinfer/internal/model"
	"github.com/edge-infer/kinfer/internal/transport"
	"github.com/edge-infer/kinfer/internal/wire"
)

// noopInstaller satisfies loader.Installer without needing a real Go
// plugin, so these tests can exercise the RUNTIME message's loader path
// (and the Init it triggers) without building an ELF blob.
type noopInstaller struct{}

func (noopInstaller) Install([]byte) error { return nil }
func (noopInstaller) Teardown() error      { return nil }

// runtimeBlob packs a minimal valid RUNTIME payload: a little-endian
// size prefix followed by that many body bytes.
func runtimeBlob(body []byte) []byte {
	buf := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	return buf
}

func newServerUnderTest(t *testing.T, cfg kinfer.Config) (host transport.Transport, srv *kinfer.Server) {
	t.Helper()
	a, b := transport.NewPipePair(transport.Config{Timeout: time.Second})
	opts := &kinfer.Options{
		Extension: loader.NewExtension(loader.NewExtensionHeap(cfg.ExtensionHeapSize), noopInstaller{}),
	}
	var err error
	srv, err = kinfer.New(b, stub.New(), cfg, opts)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = srv.Serve(context.Background())
		close(done)
	}()
	t.Cleanup(func() {
		srv.Stop()
		<-done
	})
	return a, srv
}

func writeFrame(t *testing.T, tr transport.Transport, msgType wire.MessageType, flow wire.FlowControl, flags wire.Flags, payload []byte) {
	t.Helper()
	hdr := wire.Header{
		MessageType: msgType,
		FlowControl: flow,
		Flags:       flags.Set(wire.FlagHasPayload).Set(wire.FlagFirst).Set(wire.FlagLast),
		PayloadSize: uint32(len(payload)),
	}
	enc := hdr.Encode()
	_, err := tr.Write(enc[:])
	require.NoError(t, err)
	if len(payload) > 0 {
		_, err = tr.Write(payload)
		require.NoError(t, err)
	}
}

func readFrame(t *testing.T, tr transport.Transport) (wire.Header, []byte) {
	t.Helper()
	var hdrBuf [wire.HeaderSize]byte
	read := 0
	for read < len(hdrBuf) {
		n, err := tr.Read(hdrBuf[read:])
		require.NoError(t, err)
		read += n
	}
	hdr, err := wire.DecodeHeader(hdrBuf[:])
	require.NoError(t, err)
	payload := make([]byte, hdr.PayloadSize)
	read = 0
	for read < len(payload) {
		n, err := tr.Read(payload[read:])
		require.NoError(t, err)
		read += n
	}
	return hdr, payload
}

func validSpec() wire.ModelSpec {
	var m wire.ModelSpec
	m.NumInput = 1
	m.NumInputDim[0] = 2
	m.InputShape[0][0] = 28
	m.InputShape[0][1] = 28
	m.InputDataType[0] = wire.DataType{Code: wire.DTypeFloat, Bits: 32}
	m.NumOutput = 1
	m.NumOutputDim[0] = 1
	m.OutputShape[0][0] = 10
	m.OutputDataType[0] = wire.DataType{Code: wire.DTypeFloat, Bits: 32}
	return m
}

// Scenario 1: ping/ack handshake.
func TestPingAck(t *testing.T) {
	host, _ := newServerUnderTest(t, kinfer.DefaultConfig())

	writeFrame(t, host, wire.Ping, wire.Request, wire.FlagSuccess, nil)
	hdr, payload := readFrame(t, host)

	require.Equal(t, wire.Ping, hdr.MessageType)
	require.Equal(t, wire.Transmission, hdr.FlowControl)
	require.True(t, hdr.Flags.Has(wire.FlagSuccess))
	require.True(t, hdr.Flags.Has(wire.FlagIsZephyr))
	require.True(t, hdr.Flags.Has(wire.FlagFirst))
	require.True(t, hdr.Flags.Has(wire.FlagLast))
	require.Empty(t, payload)
}

// Scenario 2: load a valid spec, then push weights and exactly the
// declared input size through, reaching InputLoaded.
func TestLoadSpecThenCorrectlySizedData(t *testing.T) {
	host, srv := newServerUnderTest(t, kinfer.DefaultConfig())

	writeFrame(t, host, wire.Runtime, wire.Request, wire.FlagSuccess, runtimeBlob([]byte{1, 2, 3, 4}))
	readAck(t, host)
	require.Eventually(t, func() bool { return srv.ModelState() == model.Initialized }, time.Second, time.Millisecond)

	writeFrame(t, host, wire.IOSpec, wire.Request, wire.FlagSuccess, validSpec().Encode())
	hdr, _ := readFrame(t, host)
	require.True(t, hdr.Flags.Has(wire.FlagSuccess))
	require.Equal(t, model.StructLoaded, srv.ModelState())

	writeFrame(t, host, wire.Model, wire.Request, wire.FlagSuccess, make([]byte, 64))
	readAck(t, host)
	require.Equal(t, model.WeightsLoaded, srv.ModelState())

	writeFrame(t, host, wire.Data, wire.Request, wire.FlagSuccess, make([]byte, 28*28*4))
	hdr, _ = readFrame(t, host)
	require.True(t, hdr.Flags.Has(wire.FlagSuccess))
	require.Equal(t, model.InputLoaded, srv.ModelState())
}

// Scenario 3: an invalid spec (misaligned bit width) is rejected and
// the model stays in Initialized.
func TestRejectInvalidSpec(t *testing.T) {
	host, srv := newServerUnderTest(t, kinfer.DefaultConfig())

	writeFrame(t, host, wire.Runtime, wire.Request, wire.FlagSuccess, runtimeBlob([]byte{1, 2, 3, 4}))
	readAck(t, host)

	bad := validSpec()
	bad.InputDataType[0].Bits = 7
	writeFrame(t, host, wire.IOSpec, wire.Request, wire.FlagSuccess, bad.Encode())
	hdr, _ := readFrame(t, host)

	require.True(t, hdr.Flags.Has(wire.FlagFail))
	require.Equal(t, model.Initialized, srv.ModelState())
}

// Scenario 4: a correctly-preconditioned DATA upload with the wrong
// byte length is rejected and the state doesn't advance.
func TestWrongInputSizeRejected(t *testing.T) {
	host, srv := newServerUnderTest(t, kinfer.DefaultConfig())

	writeFrame(t, host, wire.Runtime, wire.Request, wire.FlagSuccess, runtimeBlob([]byte{1, 2, 3, 4}))
	readAck(t, host)
	writeFrame(t, host, wire.IOSpec, wire.Request, wire.FlagSuccess, validSpec().Encode())
	readAck(t, host)
	writeFrame(t, host, wire.Model, wire.Request, wire.FlagSuccess, make([]byte, 64))
	readAck(t, host)
	require.Equal(t, model.WeightsLoaded, srv.ModelState())

	writeFrame(t, host, wire.Data, wire.Request, wire.FlagSuccess, make([]byte, 3200))
	hdr, _ := readFrame(t, host)

	require.True(t, hdr.Flags.Has(wire.FlagFail))
	require.Equal(t, model.WeightsLoaded, srv.ModelState())
}

// Scenario 5: an OUTPUT response larger than MaxOutgoingMessageSize is
// fragmented, first/last marked only on the first/last frame, and the
// concatenated payloads equal the backend's full output.
func TestFragmentedOutput(t *testing.T) {
	cfg := kinfer.DefaultConfig()
	cfg.MaxOutgoingMessageSize = 64
	cfg.ResponsePayloadSize = 256
	host, srv := newServerUnderTest(t, cfg)

	writeFrame(t, host, wire.Runtime, wire.Request, wire.FlagSuccess, runtimeBlob([]byte{1, 2, 3, 4}))
	readAck(t, host)

	spec := validSpec()
	spec.NumInput = 1
	spec.NumInputDim[0] = 1
	spec.InputShape[0][0] = 200
	spec.InputDataType[0] = wire.DataType{Code: wire.DTypeUInt, Bits: 8}
	writeFrame(t, host, wire.IOSpec, wire.Request, wire.FlagSuccess, spec.Encode())
	readAck(t, host)
	require.Equal(t, model.StructLoaded, srv.ModelState())

	writeFrame(t, host, wire.Model, wire.Request, wire.FlagSuccess, nil)
	readAck(t, host)
	writeFrame(t, host, wire.Data, wire.Request, wire.FlagSuccess, make([]byte, 200))
	readAck(t, host)
	require.Equal(t, model.InputLoaded, srv.ModelState())

	writeFrame(t, host, wire.Process, wire.Request, wire.FlagSuccess, nil)
	readAck(t, host)
	require.Equal(t, model.InferenceDone, srv.ModelState())

	writeFrame(t, host, wire.Output, wire.Request, wire.FlagSuccess, nil)

	var sizes []int
	var assembled []byte
	for {
		hdr, payload := readFrame(t, host)
		sizes = append(sizes, len(payload))
		assembled = append(assembled, payload...)
		if hdr.Flags.Has(wire.FlagLast) {
			break
		}
	}

	require.Equal(t, []int{64, 64, 64, 8}, sizes)
	require.Len(t, assembled, 200)
}

func readAck(t *testing.T, tr transport.Transport) {
	t.Helper()
	hdr, _ := readFrame(t, tr)
	require.True(t, hdr.Flags.Has(wire.FlagSuccess), "expected success ack for %s", hdr.MessageType)
}
