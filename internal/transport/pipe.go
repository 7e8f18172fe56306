package transport

import (
	"io"
	"time"
)

// Pipe is an in-memory Transport backed by io.Pipe, used by tests and by
// examples that drive the server without real hardware. Reads honor the
// same inter-byte timeout contract as Serial.
type Pipe struct {
	r       *io.PipeReader
	w       *io.PipeWriter
	timeout time.Duration
	closed  bool
}

// NewPipePair returns two Pipes wired to each other: writes on one side
// are readable on the other, in both directions.
func NewPipePair(cfg Config) (a, b *Pipe) {
	if cfg.Timeout <= 0 {
		cfg = DefaultConfig()
	}
	ar, aw := io.Pipe()
	br, bw := io.Pipe()
	a = &Pipe{r: ar, w: bw, timeout: cfg.Timeout}
	b = &Pipe{r: br, w: aw, timeout: cfg.Timeout}
	return a, b
}

func (p *Pipe) Read(buf []byte) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	// A timed-out read's goroutine stays blocked until some later Write
	// arrives; acceptable for a test/example transport with no hardware
	// resource behind it to leak.
	go func() {
		n, err := p.r.Read(buf)
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		if res.err == io.EOF || res.err == io.ErrClosedPipe {
			return res.n, ErrClosed
		}
		return res.n, res.err
	case <-time.After(p.timeout):
		return 0, ErrTimeout
	}
}

func (p *Pipe) Write(buf []byte) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	n, err := p.w.Write(buf)
	if err == io.ErrClosedPipe {
		return n, ErrClosed
	}
	return n, err
}

func (p *Pipe) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	_ = p.r.Close()
	return p.w.Close()
}

var _ Transport = (*Pipe)(nil)
