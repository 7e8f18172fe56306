package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		MessageType: IOSpec,
		FlowControl: Transmission,
		Flags:       FlagSuccess | FlagHasPayload | FlagFirst,
		PayloadSize: 1234,
	}
	buf := h.Encode()
	require.Len(t, buf, HeaderSize)

	got, err := DecodeHeader(buf[:])
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHeaderMessageTypeAndFlowControlPacking(t *testing.T) {
	h := Header{MessageType: Runtime, FlowControl: Acknowledge}
	buf := h.Encode()
	// message_type in low 6 bits, flow_control in high 2 bits of byte 0.
	if buf[0]&0x3f != uint8(Runtime) {
		t.Fatalf("message type not packed in low 6 bits: %08b", buf[0])
	}
	if (buf[0]>>6)&0x3 != uint8(Acknowledge) {
		t.Fatalf("flow control not packed in high 2 bits: %08b", buf[0])
	}
}

func TestDecodeHeaderShortBuffer(t *testing.T) {
	_, err := DecodeHeader([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestFlowControlIsRequest(t *testing.T) {
	require.True(t, Request.IsRequest())
	require.True(t, RequestRetransmit.IsRequest())
	require.False(t, Acknowledge.IsRequest())
	require.False(t, Transmission.IsRequest())
}

func TestMessageTypeValidIncoming(t *testing.T) {
	require.True(t, UnoptimizedModel.IsValidIncoming())
	require.False(t, Logs.IsValidIncoming())
	require.False(t, MessageType(63).IsValidIncoming())
}

func TestFlagsSetClearHas(t *testing.T) {
	var f Flags
	f = f.Set(FlagSuccess)
	require.True(t, f.Has(FlagSuccess))
	f = f.Clear(FlagSuccess)
	require.False(t, f.Has(FlagSuccess))
}
