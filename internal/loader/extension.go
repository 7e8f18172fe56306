package loader

import (
	"encoding/binary"
	"fmt"
)

// ExtensionSizeFieldLen is the width of the little-endian size prefix
// that precedes every extension/runtime blob, per save_runtime in
// inference_server.c.
const ExtensionSizeFieldLen = 4

// ShortHeaderError is returned when the first Save call after Reset
// delivers fewer than ExtensionSizeFieldLen bytes, so no size prefix
// can be read. Mirrors save_runtime's n < RUNTIME_SIZE_FIELD_SIZE check
// on the post-reset call; unlike the blob body, the size prefix is
// never accumulated across separate Save calls.
type ShortHeaderError struct{ Got int }

func (e *ShortHeaderError) Error() string {
	return fmt.Sprintf("loader: extension stream's first chunk carried %d bytes, want at least %d for the size prefix", e.Got, ExtensionSizeFieldLen)
}

// ExtensionHeap tracks a fixed byte budget shared across extension
// loads, standing in for a bounded heap on a memory-constrained target.
type ExtensionHeap struct {
	capacity int
	inUse    int
}

// NewExtensionHeap returns a heap with the given byte capacity.
func NewExtensionHeap(capacity int) *ExtensionHeap {
	return &ExtensionHeap{capacity: capacity}
}

func (h *ExtensionHeap) alloc(n int) error {
	if h.inUse+n > h.capacity {
		return &NotEnoughMemoryError{Loader: "extension heap"}
	}
	h.inUse += n
	return nil
}

func (h *ExtensionHeap) free(n int) { h.inUse -= n }

// InUse reports bytes currently allocated against the heap.
func (h *ExtensionHeap) InUse() int { return h.inUse }

// Capacity reports the heap's total byte budget.
func (h *ExtensionHeap) Capacity() int { return h.capacity }

// Installer is invoked once an Extension loader has received a complete
// blob, so a backend can parse and install it (e.g. open it as a Go
// plugin). Teardown is invoked on Reset, mirroring reset_runtime's call
// into the previously loaded extension before a new one replaces it.
type Installer interface {
	Install(blob []byte) error
	Teardown() error
}

// Extension is the runtime/extension loader: the first four bytes of
// the first Save call are a little-endian total size, after which
// bytes are accumulated until that many have arrived, then handed to
// an Installer. Grounded on save_runtime/save_one_runtime/
// reset_runtime/prepare_llext_loader in inference_server.c.
type Extension struct {
	heap      *ExtensionHeap
	installer Installer

	started   bool // first Save call since Reset has been attempted
	haveSize  bool
	total     int
	buf       []byte
	allocated int
}

// NewExtension returns an Extension loader drawing from heap and
// delivering completed blobs to installer.
func NewExtension(heap *ExtensionHeap, installer Installer) *Extension {
	return &Extension{heap: heap, installer: installer}
}

func (e *Extension) Reset(expected int) error {
	if e.allocated > 0 {
		e.heap.free(e.allocated)
	}
	if e.installer != nil {
		_ = e.installer.Teardown()
	}
	e.started = false
	e.haveSize = false
	e.total = 0
	e.buf = nil
	e.allocated = 0
	return nil
}

func (e *Extension) Save(p []byte) error {
	if !e.started {
		e.started = true
		if len(p) < ExtensionSizeFieldLen {
			return &ShortHeaderError{Got: len(p)}
		}
		e.total = int(binary.LittleEndian.Uint32(p[:ExtensionSizeFieldLen]))
		if err := e.heap.alloc(e.total); err != nil {
			return err
		}
		e.allocated = e.total
		e.buf = make([]byte, 0, e.total)
		e.haveSize = true
		p = p[ExtensionSizeFieldLen:]
	}

	for len(p) > 0 {
		remaining := e.total - len(e.buf)
		if remaining == 0 {
			return &NotEnoughMemoryError{Loader: "extension"}
		}
		take := remaining
		if take > len(p) {
			take = len(p)
		}
		e.buf = append(e.buf, p[:take]...)
		p = p[take:]

		if len(e.buf) == e.total {
			if e.installer != nil {
				if err := e.installer.Install(e.buf); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// SaveOne is unsupported: extension/runtime blobs are never driven
// word-wise, matching save_one_runtime's unconditional error return.
func (e *Extension) SaveOne(word uint32) error {
	return fmt.Errorf("loader: extension loader does not support SaveOne")
}

func (e *Extension) Written() int { return len(e.buf) }

func (e *Extension) MaxSize() int {
	if !e.haveSize {
		return 0
	}
	return e.total
}

var _ Loader = (*Extension)(nil)
