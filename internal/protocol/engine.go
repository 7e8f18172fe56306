// Package protocol implements the framed request/response engine atop a
// transport.Transport: Listen decodes one incoming Event (draining and
// streaming its payload through the loader registry as it arrives, never
// materializing a whole model upload in memory), and Transmit fragments
// an outgoing payload into MAX_OUTGOING-sized TRANSMISSION frames.
// Grounded on kenning_protocol.c's protocol_recv_msg/protocol_transmit.
package protocol

import (
	"context"
	"fmt"

	"github.com/edge-infer/kinfer/internal/interfaces"
	"github.com/edge-infer/kinfer/internal/loader"
	"github.com/edge-infer/kinfer/internal/transport"
	"github.com/edge-infer/kinfer/internal/wire"
)

// Event is one fully-received protocol message: a header plus, for
// message types with no registered Loader, its small raw payload.
// Message types resolved to a Loader (DATA, MODEL, IOSPEC, RUNTIME)
// leave Payload nil — their bytes have already been streamed into the
// resolved loader by the time Listen returns.
type Event struct {
	MessageType wire.MessageType
	FlowControl wire.FlowControl
	Flags       wire.Flags
	IsRequest   bool
	Payload     []byte

	// PayloadLen is the total byte count across every fragment, set
	// whether or not the message type resolved to a Loader (Payload is
	// only populated in the no-loader case).
	PayloadLen uint32
}

// Config bounds the engine's staging buffers.
type Config struct {
	MaxOutgoingMessageSize int
	RecvChunkSize          int
	MaxInlinePayload       int
}

// DefaultConfig matches the firmware's default frame sizing.
func DefaultConfig() Config {
	return Config{
		MaxOutgoingMessageSize: 4096,
		RecvChunkSize:          4096,
		MaxInlinePayload:       4096,
	}
}

// Engine reads and writes frames over a transport, consulting a loader
// registry to route large payloads without buffering them whole.
type Engine struct {
	tr       transport.Transport
	registry *loader.Registry
	logger   interfaces.Logger
	observer interfaces.Observer
	cfg      Config
}

// New returns an Engine driving tr, routing DATA/MODEL/IOSPEC/RUNTIME
// payloads through registry.
func New(tr transport.Transport, registry *loader.Registry, logger interfaces.Logger, observer interfaces.Observer, cfg Config) *Engine {
	if observer == nil {
		observer = interfaces.NoOpObserver{}
	}
	return &Engine{tr: tr, registry: registry, logger: logger, observer: observer, cfg: cfg}
}

// DataInvalidError reports a valid message type whose payload couldn't
// be routed because no loader is registered for it — mirrors
// KENNING_PROTOCOL_STATUS_DATA_INV.
type DataInvalidError struct{ MessageType wire.MessageType }

func (e *DataInvalidError) Error() string {
	return fmt.Sprintf("protocol: no loader registered for message type %s", e.MessageType)
}

// Listen reads exactly one frame header, classifies it, and either
// drains-and-skips an unrecognized message type (logged, not an error —
// the firmware's behavior for a message_type >= NUM_MESSAGE_TYPES) or
// returns a decoded Event. A recognized type whose payload needed a
// loader that isn't registered still has its payload drained before the
// DataInvalidError is returned, so the transport stays frame-aligned.
func (e *Engine) Listen(ctx context.Context) (Event, error) {
	for {
		hdr, err := e.readHeader()
		if err != nil {
			return Event{}, err
		}

		if !hdr.MessageType.IsValidIncoming() {
			if e.logger != nil {
				e.logger.Warnf("protocol: dropping unknown message type %d (%d byte payload)", hdr.MessageType, hdr.PayloadSize)
			}
			if err := e.drain(int(hdr.PayloadSize)); err != nil {
				return Event{}, err
			}
			continue
		}

		isRequest := hdr.FlowControl.IsRequest()
		loaderType := loader.LoaderTypeFor(int(hdr.MessageType))

		var l loader.Loader
		if loaderType != loader.TypeNone && hdr.PayloadSize > 0 {
			l = e.registry.Resolve(loaderType)
			if l == nil {
				// Drain this fragment and any that follow before reporting
				// DATA_INV, so the transport stays frame-aligned for the
				// next message.
				e.drainMessage(hdr)
				return Event{}, &DataInvalidError{MessageType: hdr.MessageType}
			}
			if err := l.Reset(int(hdr.PayloadSize)); err != nil {
				e.drainMessage(hdr)
				return Event{}, err
			}
		}

		var inline []byte
		var total uint32
		current := hdr
		for {
			e.observer.ObserveFrameRecv(uint8(current.MessageType), int(current.PayloadSize))
			total += current.PayloadSize

			if l != nil {
				saveErr, err := e.streamInto(l, int(current.PayloadSize))
				if err != nil {
					return Event{}, err
				}
				if saveErr != nil {
					// The loader rejected the payload; drain any fragments
					// still to come so the next message starts on a header.
					if !current.Flags.Has(wire.FlagLast) {
						if next, err := e.readHeader(); err == nil {
							e.drainMessage(next)
						}
					}
					return Event{}, saveErr
				}
			} else {
				fragment, err := e.readInline(int(current.PayloadSize), len(inline))
				if err != nil {
					return Event{}, err
				}
				inline = append(inline, fragment...)
			}

			if current.Flags.Has(wire.FlagLast) {
				break
			}

			next, err := e.readHeader()
			if err != nil {
				return Event{}, err
			}
			current = next
		}

		return Event{
			MessageType: hdr.MessageType,
			FlowControl: hdr.FlowControl,
			Flags:       hdr.Flags,
			IsRequest:   isRequest,
			Payload:     inline,
			PayloadLen:  total,
		}, nil
	}
}

// drainMessage discards every remaining fragment of a multi-frame
// message starting from hdr, stopping once the last fragment is seen.
func (e *Engine) drainMessage(hdr wire.Header) {
	current := hdr
	for {
		_ = e.drain(int(current.PayloadSize))
		if current.Flags.Has(wire.FlagLast) {
			return
		}
		next, err := e.readHeader()
		if err != nil {
			return
		}
		current = next
	}
}

func (e *Engine) readHeader() (wire.Header, error) {
	var buf [wire.HeaderSize]byte
	if err := e.readFull(buf[:]); err != nil {
		return wire.Header{}, err
	}
	return wire.DecodeHeader(buf[:])
}

// readFull reads exactly len(p) bytes, retrying on short transport reads.
func (e *Engine) readFull(p []byte) error {
	read := 0
	for read < len(p) {
		n, err := e.tr.Read(p[read:])
		read += n
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) drain(n int) error {
	chunk := e.chunkSize()
	buf := make([]byte, chunk)
	for n > 0 {
		take := chunk
		if take > n {
			take = n
		}
		if err := e.readFull(buf[:take]); err != nil {
			return err
		}
		n -= take
	}
	return nil
}

func (e *Engine) readInline(n int, already int) ([]byte, error) {
	if already+n > e.cfg.MaxInlinePayload {
		// Oversized for a no-loader message type: drain it to stay frame
		// aligned, then report it the same way an unregistered loader
		// would, rather than growing an unbounded buffer.
		_ = e.drain(n)
		return nil, fmt.Errorf("protocol: inline payload of %d bytes exceeds %d byte limit", already+n, e.cfg.MaxInlinePayload)
	}
	buf := make([]byte, n)
	if err := e.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// streamInto reads n payload bytes and hands them to l. After a Save
// error the remaining bytes are still read (and discarded), and the first
// Save error is returned as saveErr; err reports a transport failure.
func (e *Engine) streamInto(l loader.Loader, n int) (saveErr, err error) {
	chunk := e.chunkSize()
	buf := make([]byte, chunk)
	for n > 0 {
		take := chunk
		if take > n {
			take = n
		}
		if err := e.readFull(buf[:take]); err != nil {
			return saveErr, err
		}
		if saveErr == nil {
			saveErr = l.Save(buf[:take])
		}
		n -= take
	}
	return saveErr, nil
}

func (e *Engine) chunkSize() int {
	if e.cfg.RecvChunkSize > 0 {
		return e.cfg.RecvChunkSize
	}
	return DefaultConfig().RecvChunkSize
}

// Transmit fragments payload into ceil(len(payload)/MaxOutgoingMessageSize)
// TRANSMISSION frames, marking the first and last fragments and setting
// HasPayload on every fragment. A zero-length payload is sent as a
// single frame with both first and last set and no payload bytes.
func (e *Engine) Transmit(ctx context.Context, msgType wire.MessageType, flags wire.Flags, payload []byte) error {
	max := e.cfg.MaxOutgoingMessageSize
	if max <= 0 {
		max = DefaultConfig().MaxOutgoingMessageSize
	}

	total := len(payload)
	numFragments := 1
	if total > 0 {
		numFragments = (total + max - 1) / max
	}

	for i := 0; i < numFragments; i++ {
		start := i * max
		end := start + max
		if end > total {
			end = total
		}
		fragment := payload[start:end]

		fflags := flags
		fflags = fflags.Set(wire.FlagHasPayload)
		if i == 0 {
			fflags = fflags.Set(wire.FlagFirst)
		}
		if i == numFragments-1 {
			fflags = fflags.Set(wire.FlagLast)
		}

		hdr := wire.Header{
			MessageType: msgType,
			FlowControl: wire.Transmission,
			Flags:       fflags,
			PayloadSize: uint32(len(fragment)),
		}
		encoded := hdr.Encode()
		if _, err := e.tr.Write(encoded[:]); err != nil {
			return err
		}
		if len(fragment) > 0 {
			if _, err := e.tr.Write(fragment); err != nil {
				return err
			}
		}
		e.observer.ObserveFrameSent(uint8(msgType), len(fragment))
	}
	return nil
}
