// Package hwsim is a Backend that exercises loader.HWStream/RegisterFile
// instead of a flat weights buffer, simulating a register-mapped CNN
// accelerator's weight/bias upload path without real hardware. Grounded
// on runtimes/ai8x/ai8x_loaders.c's buf_save_one_cnn consumer side.
package hwsim

import (
	"context"
	"sort"

	"github.com/edge-infer/kinfer/internal/interfaces"
	"github.com/edge-infer/kinfer/internal/loader"
	"github.com/edge-infer/kinfer/internal/wire"
)

// MaxInputSize bounds the flat DATA loader this backend still installs —
// only weights go through the register-stream path; input stays a plain
// buffer.
const MaxInputSize = 1 << 16

// Backend drives a simulated register file through HWStream for its
// weights upload, and a flat buffer for input, producing output as a
// checksum over every weight register written.
type Backend struct {
	regs    *loader.RegisterFile
	stream  *loader.HWStream
	input   *loader.Buffer
	output  []byte
	runDone bool
}

// New returns a Backend with an empty simulated register file.
func New() *Backend {
	regs := loader.NewRegisterFile()
	return &Backend{
		regs:   regs,
		stream: loader.NewHWStream(regs),
		input:  loader.NewBuffer(make([]byte, MaxInputSize)),
	}
}

func (b *Backend) InstallLoaders(reg interfaces.LoaderRegistry) error {
	reg.InstallModel(b.stream)
	reg.InstallData(b.input)
	return nil
}

func (b *Backend) Init(ctx context.Context) error { return nil }

func (b *Backend) InitWeights(ctx context.Context) error {
	if !b.stream.Done() {
		return errNotTerminated
	}
	return nil
}

func (b *Backend) InitInput(ctx context.Context) error { return nil }

// Run computes output as a little-endian uint32 checksum over every
// weight register, in ascending address order, matching no real math but
// giving a function of the uploaded register contents to assert on.
func (b *Backend) Run(ctx context.Context) error {
	var sum uint32
	addrs := make([]uint32, 0, len(b.regs.Weights))
	for addr := range b.regs.Weights {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, addr := range addrs {
		for _, word := range b.regs.Weights[addr] {
			sum ^= word
		}
	}
	b.output = []byte{byte(sum), byte(sum >> 8), byte(sum >> 16), byte(sum >> 24)}
	b.runDone = true
	return nil
}

func (b *Backend) RunBench(ctx context.Context) (interfaces.Timing, error) {
	if err := b.Run(ctx); err != nil {
		return interfaces.Timing{}, err
	}
	return interfaces.Timing{InferenceStepNs: 0}, nil
}

func (b *Backend) GetOutput(buf []byte) (int, error) {
	return copy(buf, b.output), nil
}

func (b *Backend) GetStatistics(buf []byte) (int, error) {
	records := []wire.StatRecord{
		{Name: "weight_registers", Type: wire.StatAllocation, Value: uint64(len(b.regs.Weights))},
		{Name: "bias_registers", Type: wire.StatAllocation, Value: uint64(len(b.regs.Biases))},
	}
	return copy(buf, wire.EncodeStats(records)), nil
}

func (b *Backend) Deinit(ctx context.Context) error {
	b.regs = loader.NewRegisterFile()
	b.stream = loader.NewHWStream(b.regs)
	b.output = nil
	b.runDone = false
	return nil
}

type simError string

func (e simError) Error() string { return string(e) }

const errNotTerminated = simError("hwsim: weight stream not terminated (missing trailing zero address)")

var _ interfaces.Backend = (*Backend)(nil)
