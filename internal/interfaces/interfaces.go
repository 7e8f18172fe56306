// Package interfaces holds interface definitions shared across internal
// packages, kept separate from the root package to avoid import cycles
// between it and the packages that implement these contracts.
package interfaces

import "context"

// Timing reports how long a benchmarked inference run took.
type Timing struct {
	InferenceStepNs    uint64
	StepTimestampNs    uint64
}

// Backend is the contract every inference runtime backend must implement.
// A backend owns the MODEL and DATA loaders (installed via InstallLoaders)
// and is driven entirely through this interface by the model lifecycle.
type Backend interface {
	// InstallLoaders registers this backend's MODEL and DATA loaders into
	// the higher-priority row of the registry, overriding any default.
	InstallLoaders(reg LoaderRegistry) error

	Init(ctx context.Context) error
	InitWeights(ctx context.Context) error
	InitInput(ctx context.Context) error
	Run(ctx context.Context) error
	RunBench(ctx context.Context) (Timing, error)

	// GetOutput writes model output into buf, returning the number of
	// bytes written.
	GetOutput(buf []byte) (int, error)

	// GetStatistics writes a sequence of 48-byte statistics records into
	// buf, returning the number of bytes written.
	GetStatistics(buf []byte) (int, error)

	Deinit(ctx context.Context) error
}

// Loader is the capability every loader kind (flat buffer, hardware
// register stream, extension blob) implements. Defined here, rather than
// in the loader package, so Backend can reference it without a cycle.
type Loader interface {
	Reset(expected int) error
	Save(p []byte) error
	SaveOne(word uint32) error
	Written() int
	MaxSize() int
}

// LoaderRegistry is the subset of loader.Registry a backend needs to
// install its own MODEL and DATA loaders, named here to avoid a
// dependency cycle between the interfaces and loader packages.
type LoaderRegistry interface {
	InstallModel(l Loader)
	InstallData(l Loader)
}

// Logger is the minimal logging surface used outside the logging package.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Observer allows pluggable collection of ambient (non-wire) metrics.
// Implementations must be safe for single-threaded, re-entrant-free use,
// matching the event loop's concurrency model.
type Observer interface {
	ObserveFrameRecv(msgType uint8, payloadSize int)
	ObserveFrameSent(msgType uint8, payloadSize int)
	ObserveTimeout()
	ObserveProcessLatency(latencyNs uint64)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveFrameRecv(uint8, int)      {}
func (NoOpObserver) ObserveFrameSent(uint8, int)      {}
func (NoOpObserver) ObserveTimeout()                  {}
func (NoOpObserver) ObserveProcessLatency(uint64)     {}

var _ Observer = NoOpObserver{}
