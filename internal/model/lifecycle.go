// Package model implements the inference model's lifecycle state
// machine and tensor validation, ported from model.c/model.h. Every
// operation's precondition is a monotonic "state >= X" check; only
// loading new input can move a model backward out of InferenceDone,
// since InferenceDone(5) isn't less than WeightsLoaded(3).
package model

import (
	"context"
	"fmt"

	"github.com/edge-infer/kinfer/internal/interfaces"
	"github.com/edge-infer/kinfer/internal/wire"
)

// State enumerates the model lifecycle's five stages plus Uninit.
type State int

const (
	Uninit State = iota
	Initialized
	StructLoaded
	WeightsLoaded
	InputLoaded
	InferenceDone
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "UNINITIALIZED"
	case Initialized:
		return "INITIALIZED"
	case StructLoaded:
		return "STRUCT_LOADED"
	case WeightsLoaded:
		return "WEIGHTS_LOADED"
	case InputLoaded:
		return "INPUT_LOADED"
	case InferenceDone:
		return "INFERENCE_DONE"
	default:
		return "UNKNOWN"
	}
}

// InvalidStateError reports an operation attempted before its
// precondition state was reached, mirroring MODEL_STATUS_INV_STATE.
type InvalidStateError struct {
	Op       string
	Required State
	Actual   State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("model: %s requires state >= %s, have %s", e.Op, e.Required, e.Actual)
}

// InvalidArgumentError reports a DATA upload whose byte length doesn't
// match the input size computed from the loaded spec, mirroring
// MODEL_STATUS_INV_ARG.
type InvalidArgumentError struct {
	Op       string
	Expected uint32
	Actual   uint32
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("model: %s expected %d bytes, got %d", e.Op, e.Expected, e.Actual)
}

// BytesSource exposes the accumulated bytes of a loader (typically an
// *loader.Buffer installed as the IOSPEC loader) without this package
// needing to depend on the loader package's concrete types.
type BytesSource interface {
	Bytes() []byte
}

// Lifecycle drives a Backend through its state machine, rejecting
// operations whose precondition state hasn't been reached yet.
type Lifecycle struct {
	backend interfaces.Backend
	ioSpec  BytesSource
	spec    wire.ModelSpec
	state   State
}

// NewLifecycle wraps backend, reading IOSPEC uploads from ioSpec,
// starting in Uninit.
func NewLifecycle(backend interfaces.Backend, ioSpec BytesSource) *Lifecycle {
	return &Lifecycle{backend: backend, ioSpec: ioSpec, state: Uninit}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State { return l.state }

// Reset returns the model to Uninit, mirroring model_reset_state.
func (l *Lifecycle) Reset() { l.state = Uninit }

func (l *Lifecycle) require(op string, min State) error {
	if l.state < min {
		return &InvalidStateError{Op: op, Required: min, Actual: l.state}
	}
	return nil
}

// Init performs runtime backend initialization and advances to Initialized.
func (l *Lifecycle) Init(ctx context.Context) error {
	if err := l.backend.Init(ctx); err != nil {
		return err
	}
	l.state = Initialized
	return nil
}

// LoadStruct decodes the ModelSpec already streamed into the IOSPEC
// loader and advances to StructLoaded. Requires state >= Initialized.
func (l *Lifecycle) LoadStruct() error {
	if err := l.require("load_struct", Initialized); err != nil {
		return err
	}
	spec, err := wire.DecodeModelSpec(l.ioSpec.Bytes())
	if err != nil {
		return err
	}
	if err := validateModelSpec(spec); err != nil {
		return err
	}
	l.spec = spec
	l.state = StructLoaded
	return nil
}

// LoadWeights initializes backend weights already streamed into the
// MODEL loader and advances to WeightsLoaded. Requires state >= StructLoaded.
func (l *Lifecycle) LoadWeights(ctx context.Context) error {
	if err := l.require("load_weights", StructLoaded); err != nil {
		return err
	}
	if err := l.backend.InitWeights(ctx); err != nil {
		return err
	}
	l.state = WeightsLoaded
	return nil
}

// InputSize returns the total input tensor size in bytes (element count
// times each tensor's own bit width / 8), per the loaded spec. Requires
// state >= StructLoaded.
func (l *Lifecycle) InputSize() (uint32, error) {
	if err := l.require("get_input_size", StructLoaded); err != nil {
		return 0, err
	}
	var total uint32
	for i := uint32(0); i < l.spec.NumInput; i++ {
		total += l.spec.InputLength(int(i)) * uint32(l.spec.InputDataType[i].Bits/8)
	}
	return total, nil
}

// OutputSize returns the total output tensor size in bytes (element
// count times each tensor's own bit width / 8), per the loaded spec.
// Requires state >= StructLoaded.
func (l *Lifecycle) OutputSize() (uint32, error) {
	if err := l.require("get_output_size", StructLoaded); err != nil {
		return 0, err
	}
	var total uint32
	for i := uint32(0); i < l.spec.NumOutput; i++ {
		total += l.spec.OutputLength(int(i)) * uint32(l.spec.OutputDataType[i].Bits/8)
	}
	return total, nil
}

// LoadInput initializes backend input already streamed into the DATA
// loader and advances to InputLoaded. uploadedLen is the number of
// bytes the caller actually streamed into the DATA loader; it must
// match InputSize() exactly, mirroring data_callback's comparison
// against model_get_input_size before accepting an upload. Requires
// state >= WeightsLoaded — this is the only transition that can move a
// model backward out of InferenceDone, since a fresh input always
// means a fresh run.
func (l *Lifecycle) LoadInput(ctx context.Context, uploadedLen uint32) error {
	if err := l.require("load_input", WeightsLoaded); err != nil {
		return err
	}
	want, err := l.InputSize()
	if err != nil {
		return err
	}
	if uploadedLen != want {
		return &InvalidArgumentError{Op: "load_input", Expected: want, Actual: uploadedLen}
	}
	if err := l.backend.InitInput(ctx); err != nil {
		return err
	}
	l.state = InputLoaded
	return nil
}

// Run executes inference and advances to InferenceDone. Requires state
// >= InputLoaded.
func (l *Lifecycle) Run(ctx context.Context) error {
	if err := l.require("run", InputLoaded); err != nil {
		return err
	}
	if err := l.backend.Run(ctx); err != nil {
		return err
	}
	l.state = InferenceDone
	return nil
}

// RunBench executes a benchmarked inference and advances to
// InferenceDone. Requires state >= InputLoaded.
func (l *Lifecycle) RunBench(ctx context.Context) (interfaces.Timing, error) {
	if err := l.require("run_bench", InputLoaded); err != nil {
		return interfaces.Timing{}, err
	}
	timing, err := l.backend.RunBench(ctx)
	if err != nil {
		return interfaces.Timing{}, err
	}
	l.state = InferenceDone
	return timing, nil
}

// GetOutput writes the model's output into buf. Requires state >=
// InferenceDone.
func (l *Lifecycle) GetOutput(buf []byte) (int, error) {
	if err := l.require("get_output", InferenceDone); err != nil {
		return 0, err
	}
	return l.backend.GetOutput(buf)
}

// GetStatistics writes the backend's statistics into buf. Requires
// state >= WeightsLoaded.
func (l *Lifecycle) GetStatistics(buf []byte) (int, error) {
	if err := l.require("get_statistics", WeightsLoaded); err != nil {
		return 0, err
	}
	return l.backend.GetStatistics(buf)
}

// Spec returns the currently loaded model specification.
func (l *Lifecycle) Spec() wire.ModelSpec { return l.spec }
