// Package dispatch wires incoming protocol.Events to model.Lifecycle
// operations, building a response event and transmitting it back when
// the request expects one. Grounded on callbacks.c's per-message-type
// handlers and inference_server.c's handle_protocol_event.
package dispatch

import (
	"context"
	"errors"

	"github.com/edge-infer/kinfer/internal/interfaces"
	"github.com/edge-infer/kinfer/internal/model"
	"github.com/edge-infer/kinfer/internal/protocol"
	"github.com/edge-infer/kinfer/internal/wire"
)

// ErrAlreadyConnected is returned by the PING handler when a SUCCESS
// ping arrives while a client is already connected, mirroring
// ping_callback's CALLBACKS_STATUS_ERROR case.
var ErrAlreadyConnected = errors.New("dispatch: client already connected")

// handler runs one message type's operation against lc, returning the
// response payload to carry back (nil for none) or an error.
type handler func(ctx context.Context, lc *model.Lifecycle, ev protocol.Event, respBufSize int) ([]byte, error)

// Dispatcher routes decoded events to model.Lifecycle operations and
// transmits a success/fail response when the event requested one.
type Dispatcher struct {
	engine          *protocol.Engine
	lifecycle       *model.Lifecycle
	logger          interfaces.Logger
	connected       bool
	respPayloadSize int
	onConnect       func()
	onDisconnect    func()
}

// New returns a Dispatcher serving requests read from engine against lc.
// respPayloadSize bounds OUTPUT/STATS responses, matching
// CONFIG_KENNING_RESPONSE_PAYLOAD_SIZE.
func New(engine *protocol.Engine, lc *model.Lifecycle, logger interfaces.Logger, respPayloadSize int) *Dispatcher {
	return &Dispatcher{engine: engine, lifecycle: lc, logger: logger, respPayloadSize: respPayloadSize}
}

// OnConnect/OnDisconnect register callbacks fired when a PING toggles
// client_connected, e.g. to start/stop an optional log sink.
func (d *Dispatcher) OnConnect(fn func())    { d.onConnect = fn }
func (d *Dispatcher) OnDisconnect(fn func()) { d.onDisconnect = fn }

var handlers = map[wire.MessageType]handler{
	wire.Data:    dataHandler,
	wire.Model:   modelHandler,
	wire.Process: processHandler,
	wire.Output:  outputHandler,
	wire.Stats:   statsHandler,
	wire.IOSpec:  iospecHandler,
	wire.Runtime: runtimeHandler,
}

// ServeOne reads one event and dispatches it; a message type with no
// entry in handlers (STATUS, OPTIMIZERS, OPTIMIZE_MODEL,
// UNOPTIMIZED_MODEL) is logged and answered with an empty success
// response, mirroring unsupported_callback.
func (d *Dispatcher) ServeOne(ctx context.Context) error {
	ev, err := d.engine.Listen(ctx)
	if err != nil {
		if _, ok := err.(*protocol.DataInvalidError); ok {
			// The original still answers with a failure response when the
			// request expected one; without a decoded Event to hand to a
			// handler, there's nothing further to run.
			return err
		}
		return err
	}

	var payload []byte
	var handlerErr error
	switch {
	case ev.MessageType == wire.Ping:
		handlerErr = d.handlePing(ev)
	default:
		h, ok := handlers[ev.MessageType]
		if !ok {
			if d.logger != nil {
				d.logger.Warnf("dispatch: unsupported message type %s", ev.MessageType)
			}
			h = unsupportedHandler
		}
		payload, handlerErr = h(ctx, d.lifecycle, ev, d.respPayloadSize)
	}

	respFlags := wire.Flags(0).Set(wire.FlagIsZephyr)
	if handlerErr != nil {
		if d.logger != nil {
			d.logger.Errorf("dispatch: %s handler failed: %v", ev.MessageType, handlerErr)
		}
		respFlags = respFlags.Set(wire.FlagFail)
	} else {
		respFlags = respFlags.Set(wire.FlagSuccess)
	}

	if !ev.IsRequest {
		return nil
	}
	return d.engine.Transmit(ctx, ev.MessageType, respFlags, payload)
}

// handlePing toggles client_connected per ping_callback: a FAIL-flagged
// ping disconnects (and stops log forwarding); a SUCCESS-flagged ping
// connects unless a client is already connected, in which case it's an
// error; a ping with neither flag set is a no-op. The two checks are
// independent, not mutually exclusive, so a ping with both flags set
// disconnects then reconnects, netting to connected.
func (d *Dispatcher) handlePing(ev protocol.Event) error {
	if ev.Flags.Has(wire.FlagFail) {
		d.connected = false
		if d.onDisconnect != nil {
			d.onDisconnect()
		}
	}
	if ev.Flags.Has(wire.FlagSuccess) {
		if d.connected {
			return ErrAlreadyConnected
		}
		d.connected = true
		if d.onConnect != nil {
			d.onConnect()
		}
	}
	return nil
}

func dataHandler(ctx context.Context, lc *model.Lifecycle, ev protocol.Event, _ int) ([]byte, error) {
	return nil, lc.LoadInput(ctx, ev.PayloadLen)
}

func modelHandler(ctx context.Context, lc *model.Lifecycle, ev protocol.Event, _ int) ([]byte, error) {
	return nil, lc.LoadWeights(ctx)
}

func processHandler(ctx context.Context, lc *model.Lifecycle, ev protocol.Event, _ int) ([]byte, error) {
	_, err := lc.RunBench(ctx)
	return nil, err
}

func outputHandler(ctx context.Context, lc *model.Lifecycle, ev protocol.Event, bufSize int) ([]byte, error) {
	buf := make([]byte, bufSize)
	n, err := lc.GetOutput(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func statsHandler(ctx context.Context, lc *model.Lifecycle, ev protocol.Event, bufSize int) ([]byte, error) {
	buf := make([]byte, bufSize)
	n, err := lc.GetStatistics(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func iospecHandler(ctx context.Context, lc *model.Lifecycle, ev protocol.Event, _ int) ([]byte, error) {
	return nil, lc.LoadStruct()
}

func runtimeHandler(ctx context.Context, lc *model.Lifecycle, ev protocol.Event, _ int) ([]byte, error) {
	// The loader-bound extension blob was already streamed and installed
	// by the time Listen returns (see loader.Installer);
	// this re-initializes the model against the newly installed runtime.
	return nil, lc.Init(ctx)
}

func unsupportedHandler(ctx context.Context, lc *model.Lifecycle, ev protocol.Event, _ int) ([]byte, error) {
	return nil, nil
}
