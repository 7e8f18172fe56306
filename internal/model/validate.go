package model

import (
	"fmt"

	"github.com/edge-infer/kinfer/internal/wire"
)

// InvalidSpecError reports a ModelSpec that failed validate_tensors'
// structural checks.
type InvalidSpecError struct{ Reason string }

func (e *InvalidSpecError) Error() string { return "model: invalid spec: " + e.Reason }

// validateModelSpec ports validate_tensors from model.c: tensor counts
// and dimensions must be within range, bit widths byte-aligned, data
// type codes within the known range, and no dimension may be zero.
func validateModelSpec(spec wire.ModelSpec) error {
	if err := validateTensorSet(int(spec.NumInput), wire.MaxModelInputNum, spec.NumInputDim[:], wire.MaxModelInputDim, spec.InputShape[:], spec.InputDataType[:]); err != nil {
		return err
	}
	if err := validateTensorSet(int(spec.NumOutput), wire.MaxModelOutputNum, spec.NumOutputDim[:], wire.MaxModelOutputDim, spec.OutputShape[:], spec.OutputDataType[:]); err != nil {
		return err
	}
	return nil
}

func validateTensorSet(numTensors, maxTensors int, numDims []uint32, maxDim int, shapes [][4]uint32, dtypes []wire.DataType) error {
	if numTensors < 1 || numTensors > maxTensors {
		return &InvalidSpecError{Reason: fmt.Sprintf("num_tensors %d out of range [1,%d]", numTensors, maxTensors)}
	}
	for i := 0; i < numTensors; i++ {
		nd := int(numDims[i])
		if nd < 1 || nd > maxDim {
			return &InvalidSpecError{Reason: fmt.Sprintf("tensor %d num_dim %d out of range [1,%d]", i, nd, maxDim)}
		}
		dt := dtypes[i]
		if dt.Bits%8 != 0 {
			return &InvalidSpecError{Reason: fmt.Sprintf("tensor %d bits %d not byte-aligned", i, dt.Bits)}
		}
		if dt.Code >= wire.DTypeCodeEnd {
			return &InvalidSpecError{Reason: fmt.Sprintf("tensor %d data type code %d >= %d", i, dt.Code, wire.DTypeCodeEnd)}
		}
		for d := 0; d < nd; d++ {
			if shapes[i][d] == 0 {
				return &InvalidSpecError{Reason: fmt.Sprintf("tensor %d dim %d is zero", i, d)}
			}
		}
	}
	return nil
}
