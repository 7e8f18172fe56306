// Package loader implements the destination side of a framed transfer:
// a Loader receives a payload's bytes as the protocol engine streams them
// off the wire, without the engine ever holding a whole message in RAM.
// A two-layer priority Registry resolves which Loader handles which
// message type, mirroring the original runtime's g_ldr_tables[2][5] and
// its "higher priority row wins" resolution rule.
package loader

import (
	"github.com/edge-infer/kinfer/internal/interfaces"
)

// Type enumerates the loader kinds a message type can resolve to.
type Type int

const (
	TypeNone Type = iota
	TypeData
	TypeModel
	TypeIOSpec
	TypeRuntime
	numTypes
)

// Row identifies a priority row in the registry. Row1 overrides Row0.
type Row int

const (
	Row0 Row = iota // core-installed loaders (IOSpec, Runtime)
	Row1             // backend-installed loaders (Model, Data)
	numRows
)

// Loader is re-exported from interfaces so callers outside this package
// don't need to import both.
type Loader = interfaces.Loader

// NotEnoughMemoryError is returned by Save/SaveOne when a loader's
// destination buffer (or heap budget, for Extension) is exhausted.
type NotEnoughMemoryError struct{ Loader string }

func (e *NotEnoughMemoryError) Error() string {
	return "loader: not enough memory in " + e.Loader + " loader"
}

// Registry is the two-layer priority table mapping message type to
// loader. Resolve walks rows low to high, returning the highest-priority
// non-nil entry — a fixed structural policy, never configurable.
type Registry struct {
	table [numRows][numTypes]Loader
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Install places l at the given row/type slot.
func (r *Registry) Install(row Row, t Type, l Loader) {
	r.table[row][t] = l
}

// InstallModel installs the backend-owned MODEL loader (row 1).
func (r *Registry) InstallModel(l Loader) { r.Install(Row1, TypeModel, l) }

// InstallData installs the backend-owned DATA loader (row 1).
func (r *Registry) InstallData(l Loader) { r.Install(Row1, TypeData, l) }

// InstallIOSpec installs the core IOSPEC loader (row 0).
func (r *Registry) InstallIOSpec(l Loader) { r.Install(Row0, TypeIOSpec, l) }

// InstallRuntime installs the core RUNTIME/extension loader (row 0).
func (r *Registry) InstallRuntime(l Loader) { r.Install(Row0, TypeRuntime, l) }

// Resolve returns the highest-priority loader registered for t, or nil.
func (r *Registry) Resolve(t Type) Loader {
	var found Loader
	for row := Row(0); row < numRows; row++ {
		if l := r.table[row][t]; l != nil {
			found = l
		}
	}
	return found
}

// messageTypeToLoaderType is the fixed message-type-to-loader-type
// table, indexed by wire.MessageType. Declared as plain ints here to
// avoid an import cycle with the wire package; callers index it with
// int(msgType).
var messageTypeToLoaderType = [...]Type{
	TypeNone,    // PING
	TypeNone,    // STATUS
	TypeData,    // DATA
	TypeModel,   // MODEL
	TypeNone,    // PROCESS
	TypeNone,    // OUTPUT
	TypeNone,    // STATS
	TypeIOSpec,  // IOSPEC
	TypeNone,    // OPTIMIZERS
	TypeNone,    // OPTIMIZE_MODEL
	TypeRuntime, // RUNTIME
	TypeNone,    // UNOPTIMIZED_MODEL
}

// LoaderTypeFor maps a message type ordinal (0..11) to its loader type.
// Returns TypeNone for any value outside the known range.
func LoaderTypeFor(msgType int) Type {
	if msgType < 0 || msgType >= len(messageTypeToLoaderType) {
		return TypeNone
	}
	return messageTypeToLoaderType[msgType]
}
