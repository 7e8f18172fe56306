package loader

// Buffer is a flat fixed-capacity loader: Reset zeroes the write cursor,
// Save copies into the destination slice, SaveOne appends a single
// little-endian word. Grounded on the original buf_save/buf_save_one/
// buf_reset trio: a write past max_size fails with NotEnoughMemoryError,
// keeping the bytes that fit and pinning Written at max_size.
type Buffer struct {
	dst     []byte
	written int
}

// NewBuffer wraps dst as a loader destination. dst's length is the
// loader's MaxSize; Save/SaveOne never grow it.
func NewBuffer(dst []byte) *Buffer {
	return &Buffer{dst: dst}
}

func (b *Buffer) Reset(expected int) error {
	b.written = 0
	return nil
}

func (b *Buffer) Save(p []byte) error {
	if b.written+len(p) > len(b.dst) {
		copy(b.dst[b.written:], p)
		b.written = len(b.dst)
		return &NotEnoughMemoryError{Loader: "buffer"}
	}
	copy(b.dst[b.written:], p)
	b.written += len(p)
	return nil
}

func (b *Buffer) SaveOne(word uint32) error {
	var tmp [4]byte
	tmp[0] = byte(word)
	tmp[1] = byte(word >> 8)
	tmp[2] = byte(word >> 16)
	tmp[3] = byte(word >> 24)
	return b.Save(tmp[:])
}

func (b *Buffer) Written() int { return b.written }
func (b *Buffer) MaxSize() int { return len(b.dst) }

// Bytes returns the portion of dst written so far.
func (b *Buffer) Bytes() []byte { return b.dst[:b.written] }

var _ Loader = (*Buffer)(nil)
