package wire

import "encoding/binary"

// Tensor count/dimension/name-length limits the wire format allows.
const (
	MaxModelInputNum      = 2
	MaxModelOutputNum     = 12
	MaxModelInputDim      = 4
	MaxModelOutputDim     = 4
	MaxEntryFuncNameLen   = 20
	MaxModelNameLen       = 20
)

// DataType encodes a tensor element's type: a DLPack-compatible code plus
// its bit width.
type DataType struct {
	Code uint8
	Bits uint8
}

// Data type codes, compatible with DLPack's DLDataTypeCode enum.
const (
	DTypeInt               = 0
	DTypeUInt              = 1
	DTypeFloat             = 2
	DTypeOpaqueHandle      = 3
	DTypeBfloat            = 4
	DTypeComplex           = 5
	DTypeBool              = 6
	DTypeFloat8E3M4        = 7
	DTypeFloat8E4M3        = 8
	DTypeFloat8E4M3B11FNUZ = 9
	DTypeFloat8E4M3FN      = 10
	DTypeFloat8E4M3FNUZ    = 11
	DTypeFloat8E5M2        = 12
	DTypeFloat8E5M2FNUZ    = 13
	DTypeFloat8E8M0FNU     = 14
	DTypeFloat6E2M3FN      = 15
	DTypeFloat6E3M2FN      = 16
	DTypeFloat4E2M1FN      = 17
	DTypeCodeEnd           = 18
)

// ModelSpec is the packed IO specification transmitted over the IOSPEC
// message. Its wire layout is fixed and must match across both ends of
// the link; ModelSpecSize is the exact encoded length.
type ModelSpec struct {
	NumInput      uint32
	NumInputDim   [MaxModelInputNum]uint32
	InputShape    [MaxModelInputNum][MaxModelInputDim]uint32
	InputDataType [MaxModelInputNum]DataType

	NumOutput      uint32
	NumOutputDim   [MaxModelOutputNum]uint32
	OutputShape    [MaxModelOutputNum][MaxModelOutputDim]uint32
	OutputDataType [MaxModelOutputNum]DataType

	EntryFunc [MaxEntryFuncNameLen]byte
	ModelName [MaxModelNameLen]byte
}

// ModelSpecSize is the exact packed size of ModelSpec, in bytes.
const ModelSpecSize = 4 + MaxModelInputNum*4 + MaxModelInputNum*MaxModelInputDim*4 + MaxModelInputNum*2 +
	4 + MaxModelOutputNum*4 + MaxModelOutputNum*MaxModelOutputDim*4 + MaxModelOutputNum*2 +
	MaxEntryFuncNameLen + MaxModelNameLen

// InputLength returns the total element count (product of dimensions) of
// input tensor i, or 0 if i is out of range.
func (m *ModelSpec) InputLength(i int) uint32 {
	if i < 0 || uint32(i) >= m.NumInput || i >= MaxModelInputNum {
		return 0
	}
	return tensorLength(m.NumInputDim[i], m.InputShape[i][:])
}

// OutputLength returns the total element count of output tensor i, or 0
// if i is out of range.
func (m *ModelSpec) OutputLength(i int) uint32 {
	if i < 0 || uint32(i) >= m.NumOutput || i >= MaxModelOutputNum {
		return 0
	}
	return tensorLength(m.NumOutputDim[i], m.OutputShape[i][:])
}

func tensorLength(numDim uint32, shape []uint32) uint32 {
	result := uint32(1)
	for i := uint32(0); i < numDim && int(i) < len(shape); i++ {
		result *= shape[i]
	}
	return result
}

// Encode packs m into its fixed ModelSpecSize-byte wire form.
func (m *ModelSpec) Encode() []byte {
	buf := make([]byte, ModelSpecSize)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], m.NumInput)
	off += 4
	for i := range m.NumInputDim {
		binary.LittleEndian.PutUint32(buf[off:], m.NumInputDim[i])
		off += 4
	}
	for i := range m.InputShape {
		for j := range m.InputShape[i] {
			binary.LittleEndian.PutUint32(buf[off:], m.InputShape[i][j])
			off += 4
		}
	}
	for i := range m.InputDataType {
		buf[off] = m.InputDataType[i].Code
		buf[off+1] = m.InputDataType[i].Bits
		off += 2
	}

	binary.LittleEndian.PutUint32(buf[off:], m.NumOutput)
	off += 4
	for i := range m.NumOutputDim {
		binary.LittleEndian.PutUint32(buf[off:], m.NumOutputDim[i])
		off += 4
	}
	for i := range m.OutputShape {
		for j := range m.OutputShape[i] {
			binary.LittleEndian.PutUint32(buf[off:], m.OutputShape[i][j])
			off += 4
		}
	}
	for i := range m.OutputDataType {
		buf[off] = m.OutputDataType[i].Code
		buf[off+1] = m.OutputDataType[i].Bits
		off += 2
	}

	copy(buf[off:off+MaxEntryFuncNameLen], m.EntryFunc[:])
	off += MaxEntryFuncNameLen
	copy(buf[off:off+MaxModelNameLen], m.ModelName[:])
	off += MaxModelNameLen

	return buf
}

// DecodeModelSpec unpacks a ModelSpecSize-byte buffer into a ModelSpec.
func DecodeModelSpec(data []byte) (ModelSpec, error) {
	if len(data) != ModelSpecSize {
		return ModelSpec{}, ErrShortBuffer
	}
	var m ModelSpec
	off := 0

	m.NumInput = binary.LittleEndian.Uint32(data[off:])
	off += 4
	for i := range m.NumInputDim {
		m.NumInputDim[i] = binary.LittleEndian.Uint32(data[off:])
		off += 4
	}
	for i := range m.InputShape {
		for j := range m.InputShape[i] {
			m.InputShape[i][j] = binary.LittleEndian.Uint32(data[off:])
			off += 4
		}
	}
	for i := range m.InputDataType {
		m.InputDataType[i] = DataType{Code: data[off], Bits: data[off+1]}
		off += 2
	}

	m.NumOutput = binary.LittleEndian.Uint32(data[off:])
	off += 4
	for i := range m.NumOutputDim {
		m.NumOutputDim[i] = binary.LittleEndian.Uint32(data[off:])
		off += 4
	}
	for i := range m.OutputShape {
		for j := range m.OutputShape[i] {
			m.OutputShape[i][j] = binary.LittleEndian.Uint32(data[off:])
			off += 4
		}
	}
	for i := range m.OutputDataType {
		m.OutputDataType[i] = DataType{Code: data[off], Bits: data[off+1]}
		off += 2
	}

	copy(m.EntryFunc[:], data[off:off+MaxEntryFuncNameLen])
	off += MaxEntryFuncNameLen
	copy(m.ModelName[:], data[off:off+MaxModelNameLen])
	off += MaxModelNameLen

	return m, nil
}
