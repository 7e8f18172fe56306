package kinfer

import (
	"github.com/edge-infer/kinfer/internal/constants"
	"github.com/edge-infer/kinfer/internal/protocol"
)

// Config holds the server's public-facing knobs, built from
// internal/constants' low-level defaults, split between a constants
// package and a public Config/DefaultConfig constructor.
type Config struct {
	// ResponsePayloadSize bounds a single OUTPUT/STATS response.
	ResponsePayloadSize int

	// MaxOutgoingMessageSize bounds a single outgoing TRANSMISSION
	// fragment; larger payloads are split across multiple frames.
	MaxOutgoingMessageSize int

	// RecvChunkSize is the staging buffer used while streaming an
	// inbound payload into its loader.
	RecvChunkSize int

	// MaxInlinePayload bounds a no-loader message type's payload (e.g.
	// PING carries none; this guards against a malformed header).
	MaxInlinePayload int

	// LogBufferSize is the ring capacity for the optional log sink; zero
	// disables log forwarding entirely.
	LogBufferSize int

	// ExtensionHeapSize bounds the total memory a dynamically loaded
	// extension backend's blob may occupy.
	ExtensionHeapSize int
}

// DefaultConfig returns the server's default knobs.
func DefaultConfig() Config {
	return Config{
		ResponsePayloadSize:    constants.DefaultResponsePayloadSize,
		MaxOutgoingMessageSize: constants.DefaultMaxOutgoingMessageSize,
		RecvChunkSize:          constants.DefaultMessageRecvBufferSize,
		MaxInlinePayload:       constants.DefaultMessageRecvBufferSize,
		LogBufferSize:          constants.DefaultLogBufferSize,
		ExtensionHeapSize:      constants.DefaultExtensionHeapSize,
	}
}

// protocolConfig projects the subset of Config the protocol engine needs.
func (c Config) protocolConfig() protocol.Config {
	return protocol.Config{
		MaxOutgoingMessageSize: c.MaxOutgoingMessageSize,
		RecvChunkSize:          c.RecvChunkSize,
		MaxInlinePayload:       c.MaxInlinePayload,
	}
}
