package kinfer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/edge-infer/kinfer/internal/dispatch"
	"github.com/edge-infer/kinfer/internal/interfaces"
	"github.com/edge-infer/kinfer/internal/loader"
	"github.com/edge-infer/kinfer/internal/logging"
	"github.com/edge-infer/kinfer/internal/logsink"
	"github.com/edge-infer/kinfer/internal/model"
	"github.com/edge-infer/kinfer/internal/protocol"
	"github.com/edge-infer/kinfer/internal/transport"
	"github.com/edge-infer/kinfer/internal/wire"
)

// Options bundles the optional collaborators a Server accepts.
type Options struct {
	Logger   interfaces.Logger
	Observer interfaces.Observer

	// Extension, when non-nil, installs the dynamically loaded runtime
	// loader (RUNTIME message type) alongside ioSpecBuf, letting a client
	// swap the active backend at runtime via backends/extension.
	Extension *loader.Extension
}

// State names the Server's own run-loop lifecycle, distinct from the
// model's own State machine in internal/model.
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Server owns one inference session end to end: a transport, the
// protocol engine reading/writing over it, the loader registry routing
// payload bytes, the model lifecycle state machine, the dispatcher
// routing decoded events to it, and an optional log-forwarding sink —
// all driven by a single synchronous listen/dispatch/transmit loop,
// never a concurrent queue of in-flight operations.
type Server struct {
	tr       transport.Transport
	engine   *protocol.Engine
	registry *loader.Registry
	backend  interfaces.Backend
	lc       *model.Lifecycle
	dispatch *dispatch.Dispatcher
	sink     *logsink.Sink
	metrics  *Metrics
	observer interfaces.Observer
	logger   interfaces.Logger

	mu      sync.Mutex
	state   State
	ctx     context.Context
	cancel  context.CancelFunc
}

// New wires tr/backend/cfg into a Server ready to Serve. The IOSPEC
// loader is always installed at the registry's core row; backend.
// InstallLoaders is called to install MODEL/DATA at the higher-priority
// row, per interfaces.Backend's contract.
func New(tr transport.Transport, backend interfaces.Backend, cfg Config, opts *Options) (*Server, error) {
	if tr == nil {
		return nil, errors.New("kinfer: transport is required")
	}
	if backend == nil {
		return nil, errors.New("kinfer: backend is required")
	}
	if opts == nil {
		opts = &Options{}
	}

	observer := opts.Observer
	metrics := NewMetrics()
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	registry := loader.NewRegistry()
	ioSpecBuf := loader.NewBuffer(make([]byte, wire.ModelSpecSize))
	registry.InstallIOSpec(ioSpecBuf)
	if opts.Extension != nil {
		registry.InstallRuntime(opts.Extension)
	}
	if err := backend.InstallLoaders(registry); err != nil {
		return nil, WrapError(ModuleBackend, "install_loaders", err)
	}

	engine := protocol.New(tr, registry, opts.Logger, observer, cfg.protocolConfig())
	lc := model.NewLifecycle(backend, ioSpecBuf)
	d := dispatch.New(engine, lc, opts.Logger, cfg.ResponsePayloadSize)

	var sink *logsink.Sink
	if cfg.LogBufferSize > 0 {
		sink = logsink.New(cfg.LogBufferSize)
		d.OnConnect(sink.Start)
		d.OnDisconnect(sink.Stop)
		if lg, ok := opts.Logger.(*logging.Logger); ok {
			lg.AttachSink(sink)
		}
	}

	return &Server{
		tr:       tr,
		engine:   engine,
		registry: registry,
		backend:  backend,
		lc:       lc,
		dispatch: d,
		sink:     sink,
		metrics:  metrics,
		observer: observer,
		logger:   opts.Logger,
		state:    StateCreated,
	}, nil
}

// Serve runs the listen/dispatch/transmit loop until ctx is canceled or
// ServeOne returns an error other than a timeout or a DataInvalidError.
// A transport.ErrTimeout increments Metrics.Timeouts and continues the
// loop, matching the inter-byte-gap timeout's "abandon this read, try
// again" semantics rather than treating it as fatal; a
// protocol.DataInvalidError is logged and the loop continues. Any other
// error, including a loader or extension-install failure, ends the loop
// and is returned.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return errors.New("kinfer: server already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.state = StateRunning
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		default:
		}

		err := s.dispatch.ServeOne(s.ctx)
		if err == nil {
			if s.sink != nil {
				_ = s.sink.Flush(s.ctx, s.engine)
			}
			continue
		}
		if errors.Is(err, transport.ErrTimeout) {
			s.observer.ObserveTimeout()
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var dataInvalid *protocol.DataInvalidError
		if errors.As(err, &dataInvalid) {
			if s.logger != nil {
				s.logger.Warnf("kinfer: %v", dataInvalid)
			}
			continue
		}
		return WrapError(ModuleServer, "serve", err)
	}
}

// Stop cancels the running Serve loop, if any.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// State returns the server's current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Metrics returns the server's ambient metrics counters.
func (s *Server) Metrics() *Metrics { return s.metrics }

// ModelState returns the underlying model lifecycle's current state.
func (s *Server) ModelState() model.State { return s.lc.State() }

// Close releases the underlying transport.
func (s *Server) Close() error {
	s.Stop()
	if err := s.tr.Close(); err != nil {
		return fmt.Errorf("kinfer: close transport: %w", err)
	}
	return nil
}
