package kinfer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorImplementsErrorInterface(t *testing.T) {
	err := NewError(ModuleProtocol, CodeMsgTooBig, "transmit", "payload exceeds max outgoing size")
	require.Equal(t, "kinfer: protocol: payload exceeds max outgoing size (transmit)", err.Error())
}

func TestErrorIsMatchesOnModuleAndCode(t *testing.T) {
	a := NewError(ModuleLoader, CodeNotEnoughMemory, "save", "heap exhausted")
	b := NewError(ModuleLoader, CodeNotEnoughMemory, "different_op", "different message")
	require.True(t, errors.Is(a, b))

	c := NewError(ModuleModel, CodeInvState, "load_weights", "wrong state")
	require.False(t, errors.Is(a, c))
}

func TestWrapErrorPreservesExistingCode(t *testing.T) {
	inner := NewError(ModuleTransport, CodeTimeout, "read", "deadline exceeded")
	wrapped := WrapError(ModuleDispatch, "serve_one", inner)
	require.Equal(t, inner.Code, wrapped.Code)
	require.Equal(t, "dispatch", wrapped.Module)
	require.ErrorIs(t, wrapped, inner)
}

func TestWrapErrorDefaultsToGenericErrorForPlainError(t *testing.T) {
	wrapped := WrapError(ModuleServer, "serve", errors.New("boom"))
	require.True(t, IsCode(wrapped, ModuleServer, CodeError))
}

func TestWrapErrorNilReturnsNil(t *testing.T) {
	require.Nil(t, WrapError(ModuleServer, "serve", nil))
}

func TestIsCodeFalseForUnrelatedError(t *testing.T) {
	require.False(t, IsCode(errors.New("plain"), ModuleServer, CodeError))
}
