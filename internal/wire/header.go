// Package wire implements the packed binary encodings that cross the
// transport boundary: the 8-byte message header, the model IO
// specification, and statistics records. Every encode/decode function
// hand-marshals fields with encoding/binary rather than relying on
// reflection, matching a fixed wire layout byte for byte.
package wire

import "encoding/binary"

// HeaderSize is the fixed wire size of a message header, in bytes.
const HeaderSize = 8

// MessageType identifies the kind of message being transmitted. Valid
// incoming values are strictly less than NumMessageTypes; Logs is never
// sent by a host and is only used internally by the log sink.
type MessageType uint8

const (
	Ping MessageType = iota
	Status
	Data
	Model
	Process
	Output
	Stats
	IOSpec
	Optimizers
	OptimizeModel
	Runtime
	UnoptimizedModel
	NumMessageTypes

	// Logs is a server-only outgoing message type for the optional log
	// sink; it is never valid as an inbound message type.
	Logs MessageType = NumMessageTypes
)

var messageTypeNames = [...]string{
	"PING", "STATUS", "DATA", "MODEL", "PROCESS", "OUTPUT", "STATS",
	"IOSPEC", "OPTIMIZERS", "OPTIMIZE_MODEL", "RUNTIME", "UNOPTIMIZED_MODEL",
}

func (t MessageType) String() string {
	if t == Logs {
		return "LOGS"
	}
	if int(t) < len(messageTypeNames) {
		return messageTypeNames[t]
	}
	return "UNKNOWN"
}

// IsValidIncoming reports whether t is a type the host is allowed to send.
func (t MessageType) IsValidIncoming() bool {
	return t < NumMessageTypes
}

// FlowControl identifies the framing role of a message.
type FlowControl uint8

const (
	Request FlowControl = iota
	RequestRetransmit
	Acknowledge
	Transmission
)

// IsRequest reports whether a message with this flow-control value is a
// request expecting a response (spec design note 9c: bound explicitly at
// decode time, never re-derived).
func (f FlowControl) IsRequest() bool {
	return f == Request || f == RequestRetransmit
}

// Flags is the 16-bit general-purpose/type-specific flag field.
type Flags uint16

const (
	FlagSuccess Flags = 1 << iota
	FlagFail
	FlagIsHostMessage
	FlagHasPayload
	FlagFirst
	FlagLast
	FlagIsKenning
	FlagIsZephyr
	// bits 8-11 reserved
	_
	_
	_
	_
	// bit 12: IOSPEC-overlay "serialized" bit; general-purpose messages
	// leave it unset.
	FlagIOSpecSerialized
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }
func (f Flags) Set(bit Flags) Flags { return f | bit }
func (f Flags) Clear(bit Flags) Flags { return f &^ bit }

// Header is the fixed 8-byte frame header.
type Header struct {
	MessageType MessageType
	FlowControl FlowControl
	Checksum    uint8 // reserved, always 0 on emit, ignored on decode
	Flags       Flags
	PayloadSize uint32
}

// Encode writes h into an 8-byte buffer.
func (h Header) Encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[0] = uint8(h.MessageType&0x3f) | (uint8(h.FlowControl&0x3) << 6)
	buf[1] = h.Checksum
	binary.LittleEndian.PutUint16(buf[2:4], uint16(h.Flags))
	binary.LittleEndian.PutUint32(buf[4:8], h.PayloadSize)
	return buf
}

// DecodeHeader parses an 8-byte buffer into a Header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortBuffer
	}
	return Header{
		MessageType: MessageType(buf[0] & 0x3f),
		FlowControl: FlowControl((buf[0] >> 6) & 0x3),
		Checksum:    buf[1],
		Flags:       Flags(binary.LittleEndian.Uint16(buf[2:4])),
		PayloadSize: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// ErrShortBuffer is returned when a decode function is given fewer bytes
// than the encoding it is decoding requires.
type wireError string

func (e wireError) Error() string { return string(e) }

const ErrShortBuffer = wireError("wire: buffer too short")
