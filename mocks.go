package kinfer

import (
	"context"
	"errors"
	"sync"

	"github.com/edge-infer/kinfer/internal/interfaces"
)

// MockBackend is a deterministic, call-tracking interfaces.Backend for
// unit tests of anything that drives a Backend without needing real
// inference behind it: call-count tracking plus testing accessors over
// the inference lifecycle's
// Init/InitWeights/InitInput/Run/RunBench/GetOutput/GetStatistics/Deinit.
type MockBackend struct {
	mu sync.Mutex

	output []byte
	stats  []byte
	closed bool

	InitErr        error
	InitWeightsErr error
	InitInputErr   error
	RunErr         error

	initCalls        int
	initWeightsCalls int
	initInputCalls   int
	runCalls         int
	runBenchCalls    int
}

// NewMockBackend returns a MockBackend that emits output/stats verbatim
// from GetOutput/GetStatistics, whether or not Run/RunBench has been
// called; GetOutput fails once the backend is closed.
func NewMockBackend(output, stats []byte) *MockBackend {
	return &MockBackend{output: output, stats: stats}
}

func (m *MockBackend) InstallLoaders(interfaces.LoaderRegistry) error { return nil }

func (m *MockBackend) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCalls++
	return m.InitErr
}

func (m *MockBackend) InitWeights(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initWeightsCalls++
	return m.InitWeightsErr
}

func (m *MockBackend) InitInput(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initInputCalls++
	return m.InitInputErr
}

func (m *MockBackend) Run(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runCalls++
	return m.RunErr
}

func (m *MockBackend) RunBench(ctx context.Context) (interfaces.Timing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runBenchCalls++
	if m.RunErr != nil {
		return interfaces.Timing{}, m.RunErr
	}
	return interfaces.Timing{InferenceStepNs: 1}, nil
}

func (m *MockBackend) GetOutput(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("mock backend: closed")
	}
	return copy(buf, m.output), nil
}

func (m *MockBackend) GetStatistics(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copy(buf, m.stats), nil
}

func (m *MockBackend) Deinit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Deinit has been called.
func (m *MockBackend) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CallCounts returns how many times each operation has been invoked.
func (m *MockBackend) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"init":         m.initCalls,
		"init_weights": m.initWeightsCalls,
		"init_input":   m.initInputCalls,
		"run":          m.runCalls,
		"run_bench":    m.runBenchCalls,
	}
}

var _ interfaces.Backend = (*MockBackend)(nil)

// MockTransport is an in-memory interfaces-compatible transport backed
// by two byte queues, for tests that need a Transport without a real
// serial line or io.Pipe goroutine pair.
type MockTransport struct {
	mu     sync.Mutex
	inbox  []byte
	outbox []byte
	closed bool
}

// NewMockTransport returns a MockTransport whose Read calls drain
// initialInbox before ever blocking (MockTransport never blocks — it
// returns io.EOF-like zero reads once inbox is exhausted, since tests
// drive it synchronously rather than over goroutines).
func NewMockTransport(initialInbox []byte) *MockTransport {
	return &MockTransport{inbox: append([]byte(nil), initialInbox...)}
}

func (t *MockTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, errors.New("mock transport: closed")
	}
	if len(t.inbox) == 0 {
		return 0, errors.New("mock transport: no more data queued")
	}
	n := copy(p, t.inbox)
	t.inbox = t.inbox[n:]
	return n, nil
}

func (t *MockTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, errors.New("mock transport: closed")
	}
	t.outbox = append(t.outbox, p...)
	return len(p), nil
}

func (t *MockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Written returns every byte written so far, for assertions.
func (t *MockTransport) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.outbox...)
}

// Feed appends more bytes to the read queue, for tests staging a
// multi-step exchange.
func (t *MockTransport) Feed(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox = append(t.inbox, p...)
}
