// Package logsink forwards log lines to a connected client over the
// protocol engine, framed as a sequence of length-prefixed messages
// inside a single LOGS payload. Grounded on logger.c's render_character/
// process/send_all_messages: each log line is copied into a bounded
// buffer behind a 1-byte size prefix, then flushed as one frame.
package logsink

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/edge-infer/kinfer/internal/protocol"
	"github.com/edge-infer/kinfer/internal/wire"
)

// MaxMessageLen is the largest single log line this sink can carry; the
// length prefix is one byte, matching MAX_SINGLE_MESSAGE_LENGTH.
const MaxMessageLen = 0xFF

// Sink buffers formatted log lines behind a one-byte length prefix and
// flushes them as a single LOGS frame. It implements io.Writer so it can
// sit behind any logger that accepts an output writer.
//
// Not safe for concurrent Write calls from multiple goroutines without
// external synchronization beyond what's needed to serialize with
// Flush/Start/Stop — callers own that ordering, matching the server's
// single-threaded event loop.
type Sink struct {
	mu       sync.Mutex
	capacity int
	buf      []byte
	sending  bool
	enabled  bool
}

// New returns a Sink whose buffer holds up to capacity bytes of framed
// log lines before a flush is required, matching CONFIG_KENNING_LOG_BUFFER_SIZE.
func New(capacity int) *Sink {
	return &Sink{capacity: capacity}
}

// Start enables forwarding, matching logger_start's log_backend_enable.
func (s *Sink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	s.buf = s.buf[:0]
}

// Stop disables forwarding, matching logger_stop's log_backend_disable.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
}

// Write appends one formatted log record, framed as <len><bytes>. A
// trailing newline is dropped, matching process's line-feed trim. Lines
// longer than MaxMessageLen are truncated. Write is a no-op while a
// flush is in progress, preventing the logging caused by a flush itself
// from recursing (sending_logs).
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.sending {
		return len(p), nil
	}
	line := bytes.TrimSuffix(p, []byte("\n"))
	if len(line) > MaxMessageLen {
		line = line[:MaxMessageLen]
	}
	if len(s.buf)+1+len(line) > s.capacity {
		return len(p), nil
	}
	s.buf = append(s.buf, byte(len(line)))
	s.buf = append(s.buf, line...)
	return len(p), nil
}

// Flush transmits every buffered message as one LOGS frame and clears
// the buffer on success, matching send_all_messages.
func (s *Sink) Flush(ctx context.Context, engine *protocol.Engine) error {
	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.sending = true
	payload := append([]byte(nil), s.buf...)
	s.mu.Unlock()

	err := engine.Transmit(ctx, wire.Logs, wire.Flags(0).Set(wire.FlagIsZephyr), payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false
	if err == nil {
		s.buf = s.buf[:0]
	}
	return err
}

var _ io.Writer = (*Sink)(nil)
