package kinfer

import "github.com/edge-infer/kinfer/internal/constants"

// Re-export low-level defaults for callers that only need the public API.
const (
	DefaultResponsePayloadSize    = constants.DefaultResponsePayloadSize
	DefaultMessageRecvBufferSize  = constants.DefaultMessageRecvBufferSize
	DefaultMaxOutgoingMessageSize = constants.DefaultMaxOutgoingMessageSize
	DefaultLogBufferSize          = constants.DefaultLogBufferSize
	DefaultExtensionHeapSize      = constants.DefaultExtensionHeapSize
	DefaultTransportTimeoutMS     = constants.DefaultTransportTimeoutMS
)
