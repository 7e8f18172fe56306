// Package stub provides a deterministic reference Backend with no real
// inference behind it: weights and input are bookkept as plain,
// lock-protected byte buffers behind loader.Buffer, and Run/RunBench
// compute output as a running XOR-fold of input over weights.
package stub

import (
	"context"
	"sync"
	"time"

	"github.com/edge-infer/kinfer/internal/interfaces"
	"github.com/edge-infer/kinfer/internal/loader"
	"github.com/edge-infer/kinfer/internal/wire"
)

// MaxWeightsSize and MaxInputSize bound the loader.Buffer capacities this
// backend installs; a real backend would size these from the loaded
// wire.ModelSpec instead of a fixed constant.
const (
	MaxWeightsSize = 1 << 20
	MaxInputSize   = 1 << 16
)

// Backend is a stub inference runtime: deterministic, side-effect-free,
// suitable for exercising the protocol/dispatch/model layers end to end
// without a real accelerator.
type Backend struct {
	mu      sync.Mutex
	weights *loader.Buffer
	input   *loader.Buffer
	output  []byte
	stats   []wire.StatRecord

	runCount int
}

// New returns a Backend with empty weights/input buffers.
func New() *Backend {
	return &Backend{
		weights: loader.NewBuffer(make([]byte, MaxWeightsSize)),
		input:   loader.NewBuffer(make([]byte, MaxInputSize)),
	}
}

// InstallLoaders registers this backend's MODEL and DATA loaders at the
// registry's higher-priority row, per interfaces.Backend.
func (b *Backend) InstallLoaders(reg interfaces.LoaderRegistry) error {
	reg.InstallModel(b.weights)
	reg.InstallData(b.input)
	return nil
}

func (b *Backend) Init(ctx context.Context) error { return nil }

func (b *Backend) InitWeights(ctx context.Context) error { return nil }

func (b *Backend) InitInput(ctx context.Context) error { return nil }

// Run computes output as a fixed-size XOR-fold of input over weights —
// not a real inference, only a deterministic function of both uploads so
// callers can assert on output bytes in tests.
func (b *Backend) Run(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.output = xorFold(b.input.Bytes(), b.weights.Bytes())
	b.runCount++
	return nil
}

func (b *Backend) RunBench(ctx context.Context) (interfaces.Timing, error) {
	start := time.Now()
	if err := b.Run(ctx); err != nil {
		return interfaces.Timing{}, err
	}
	elapsed := time.Since(start)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = []wire.StatRecord{
		{Name: "inference_step", Type: wire.StatInferenceTime, Value: uint64(elapsed.Nanoseconds())},
		{Name: "run_count", Type: wire.StatDefault, Value: uint64(b.runCount)},
	}
	return interfaces.Timing{InferenceStepNs: uint64(elapsed.Nanoseconds())}, nil
}

func (b *Backend) GetOutput(buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copy(buf, b.output), nil
}

func (b *Backend) GetStatistics(buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	encoded := wire.EncodeStats(b.stats)
	return copy(buf, encoded), nil
}

func (b *Backend) Deinit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.output = nil
	b.stats = nil
	return nil
}

func xorFold(input, weights []byte) []byte {
	size := len(input)
	if size == 0 {
		size = len(weights)
	}
	out := make([]byte, size)
	for i := range out {
		var v byte
		if i < len(input) {
			v ^= input[i]
		}
		if len(weights) > 0 {
			v ^= weights[i%len(weights)]
		}
		out[i] = v
	}
	return out
}

var _ interfaces.Backend = (*Backend)(nil)
