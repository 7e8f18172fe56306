package loader

import "encoding/binary"

// hwState steps through the hardware-register-stream protocol: an
// address word, a length word, then that many data words, repeated once
// for weights and once for biases, terminated by a zero address.
// Grounded on runtimes/ai8x/ai8x_loaders.c's buf_save_one_cnn state
// machine, generalized from real CNN accelerator registers to a
// simulated register file (backends/hwsim) since this module has no
// physical hardware to address.
type hwState int

const (
	hwWeightsStart hwState = iota
	hwWeightsLength
	hwWeights
	hwBiasesStart
	hwBiasesLength
	hwBiases
	hwEnd
)

// RegisterFile is the simulated destination for a HWStream loader: a
// sparse map from "address" (an opaque target id chosen by the sender)
// to the accumulated uint32 words written there.
type RegisterFile struct {
	Weights map[uint32][]uint32
	Biases  map[uint32][]uint32
}

// NewRegisterFile returns an empty simulated register file.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{Weights: map[uint32][]uint32{}, Biases: map[uint32][]uint32{}}
}

// HWStream streams CNN-style weight/bias uploads into a RegisterFile
// word by word, following the original's 7-state FSM exactly.
type HWStream struct {
	regs    *RegisterFile
	state   hwState
	addr    uint32
	maxSize uint32
	written uint32
}

// NewHWStream returns a loader that drives regs through the weights/
// biases upload protocol.
func NewHWStream(regs *RegisterFile) *HWStream {
	h := &HWStream{regs: regs}
	h.resetState()
	return h
}

func (h *HWStream) resetState() {
	h.state = hwWeightsStart
	h.addr = 0
	h.maxSize = 0
	h.written = 0
}

func (h *HWStream) Reset(expected int) error {
	h.resetState()
	return nil
}

// SaveOne advances the FSM by exactly one uint32 word.
func (h *HWStream) SaveOne(word uint32) error {
	switch h.state {
	case hwWeightsStart:
		h.addr = word
		if word == 0 {
			h.state = hwBiasesStart
		} else {
			h.state = hwWeightsLength
		}
	case hwWeightsLength:
		h.maxSize = word
		h.written = 0
		h.state = hwWeights
	case hwWeights:
		h.regs.Weights[h.addr] = append(h.regs.Weights[h.addr], word)
		h.written++
		if h.written == h.maxSize {
			h.state = hwWeightsStart
		}
	case hwBiasesStart:
		h.addr = word
		if word == 0 {
			h.state = hwEnd
		} else {
			h.state = hwBiasesLength
		}
	case hwBiasesLength:
		h.maxSize = word
		h.written = 0
		h.state = hwBiases
	case hwBiases:
		h.regs.Biases[h.addr] = append(h.regs.Biases[h.addr], word)
		h.written++
		if h.written == h.maxSize {
			h.state = hwBiasesStart
		}
	case hwEnd:
		// terminal: further words are ignored, matching the original's
		// no-op CNN_LOAD_END case.
	}
	return nil
}

// Save chunks p into 4-byte little-endian words and feeds each through
// SaveOne, mirroring buf_save_cnn's n/4 iteration (a trailing partial
// word, if any, is dropped — the original has the same truncation).
func (h *HWStream) Save(p []byte) error {
	for i := 0; i+4 <= len(p); i += 4 {
		if err := h.SaveOne(binary.LittleEndian.Uint32(p[i : i+4])); err != nil {
			return err
		}
	}
	return nil
}

func (h *HWStream) Written() int { return int(h.written) }
func (h *HWStream) MaxSize() int { return int(h.maxSize) }

// Done reports whether the FSM has reached its terminal state (both
// weights and biases sections closed with a zero address).
func (h *HWStream) Done() bool { return h.state == hwEnd }

var _ Loader = (*HWStream)(nil)
