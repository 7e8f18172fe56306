// Package constants holds low-level numeric defaults shared across the
// protocol core. Public-facing knobs built from these live in the root
// package's Config.
package constants

import "time"

// Default configuration constants, mirroring the response/recv/outgoing
// buffer and heap sizing knobs described in the protocol design.
const (
	// DefaultResponsePayloadSize bounds a single response's payload.
	DefaultResponsePayloadSize = 4096

	// DefaultMessageRecvBufferSize is the staging buffer used while
	// streaming an inbound payload into its loader.
	DefaultMessageRecvBufferSize = 4096

	// DefaultMaxOutgoingMessageSize bounds a single outgoing TRANSMISSION
	// fragment; larger payloads are split across multiple messages.
	DefaultMaxOutgoingMessageSize = 4096

	// DefaultLogBufferSize is the ring capacity for the optional log sink.
	DefaultLogBufferSize = 2048

	// DefaultExtensionHeapSize bounds the total memory an extension
	// backend's blob may occupy.
	DefaultExtensionHeapSize = 4 << 20

	// DefaultTransportTimeoutMS is the inter-byte-gap timeout for the
	// serial transport, in milliseconds.
	DefaultTransportTimeoutMS = 500
)

// Timing constants for the transport and dispatch loop.
//
// The serial transport has no notion of "end of message" beyond the
// framed header's payload_size field, so every read is bounded by an
// inter-byte-gap timeout: if the next byte doesn't arrive within this
// window, the read is abandoned and reported as a timeout rather than
// blocking forever on a wedged link.
const (
	// TransportYieldEvery is a byte count for scheduler yields in a read
	// loop. The Serial transport does not read it and does not yield.
	TransportYieldEvery = 256

	// ExtensionSizeFieldLen is the width, in bytes, of the little-endian
	// size prefix that precedes an extension blob's first chunk.
	ExtensionSizeFieldLen = 4
)

// ReadinessPollInterval is a polling period for readiness waits. The
// extension backend's Teardown does not poll and does not use it.
const ReadinessPollInterval = 5 * time.Millisecond
