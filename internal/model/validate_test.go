package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-infer/kinfer/internal/wire"
)

func TestValidateModelSpecAcceptsValidSpec(t *testing.T) {
	require.NoError(t, validateModelSpec(validSpec()))
}

func TestValidateModelSpecRejectsZeroTensors(t *testing.T) {
	m := validSpec()
	m.NumInput = 0
	err := validateModelSpec(m)
	require.Error(t, err)
	var ise *InvalidSpecError
	require.ErrorAs(t, err, &ise)
}

func TestValidateModelSpecRejectsTooManyTensors(t *testing.T) {
	m := validSpec()
	m.NumInput = wire.MaxModelInputNum + 1
	require.Error(t, validateModelSpec(m))
}

func TestValidateModelSpecRejectsBadDimCount(t *testing.T) {
	m := validSpec()
	m.NumInputDim[0] = 0
	require.Error(t, validateModelSpec(m))

	m2 := validSpec()
	m2.NumInputDim[0] = wire.MaxModelInputDim + 1
	require.Error(t, validateModelSpec(m2))
}

func TestValidateModelSpecRejectsUnalignedBits(t *testing.T) {
	m := validSpec()
	m.InputDataType[0].Bits = 5
	require.Error(t, validateModelSpec(m))
}

func TestValidateModelSpecRejectsBadDataTypeCode(t *testing.T) {
	m := validSpec()
	m.InputDataType[0].Code = wire.DTypeCodeEnd
	require.Error(t, validateModelSpec(m))
}

func TestValidateModelSpecRejectsZeroDimension(t *testing.T) {
	m := validSpec()
	m.InputShape[0][0] = 0
	require.Error(t, validateModelSpec(m))
}
