package kinfer

import (
	"errors"
	"fmt"
)

// Code is a 16-bit status code: the high byte names the owning module,
// the low byte the specific condition.
type Code uint16

// Module tags occupy Code's high byte.
const (
	ModuleTransport Code = 1 << 8
	ModuleProtocol  Code = 2 << 8
	ModuleLoader    Code = 3 << 8
	ModuleModel     Code = 4 << 8
	ModuleBackend   Code = 5 << 8
	ModuleDispatch  Code = 6 << 8
	ModuleServer    Code = 7 << 8
)

// Generic low-byte codes, available under every module tag.
const (
	CodeOK Code = iota
	CodeError
	CodeInvPtr
	CodeInvArg
	CodeUninit
	CodeTimeout
	codeGenericEnd
)

// Module-specific codes start past the generic range so a module tag
// combined with one of these never collides with the generic set.
const (
	CodeLowerLayerError Code = codeGenericEnd + iota
	CodeInvalidMessageType
	CodeEventDenied
	CodeMsgTooBig
	CodeFlowControlError
)

const (
	CodeNotEnoughMemory Code = codeGenericEnd
)

const (
	CodeInvState Code = codeGenericEnd
)

func (c Code) module() Code { return c &^ 0xff }
func (c Code) low() Code    { return c & 0xff }

func moduleName(m Code) string {
	switch m {
	case ModuleTransport:
		return "transport"
	case ModuleProtocol:
		return "protocol"
	case ModuleLoader:
		return "loader"
	case ModuleModel:
		return "model"
	case ModuleBackend:
		return "backend"
	case ModuleDispatch:
		return "dispatch"
	case ModuleServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a structured, module-tagged error carrying the failing
// operation and an optional wrapped cause: there's no per-device or
// per-queue context here, only the module a code belongs to.
type Error struct {
	Module string
	Code   Code
	Op     string
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = fmt.Sprintf("code=0x%04x", uint16(e.Code))
	}
	if e.Op != "" {
		return fmt.Sprintf("kinfer: %s: %s (%s)", e.Module, msg, e.Op)
	}
	return fmt.Sprintf("kinfer: %s: %s", e.Module, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison by module+code, ignoring Op/Msg/Inner.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Module == te.Module && e.Code == te.Code
}

// NewError constructs an Error tagged with module (e.g. ModuleProtocol)
// and a module-relative code.
func NewError(module Code, code Code, op, msg string) *Error {
	return &Error{Module: moduleName(module), Code: module | code.low(), Op: op, Msg: msg}
}

// WrapError tags inner with module/op, preserving an existing *Error's
// code if inner already carries one, otherwise defaulting to CodeError.
func WrapError(module Code, op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var existing *Error
	if errors.As(inner, &existing) {
		return &Error{Module: moduleName(module), Code: existing.Code, Op: op, Msg: existing.Msg, Inner: inner}
	}
	return &Error{Module: moduleName(module), Code: module | CodeError, Op: op, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error with exactly this module+code.
func IsCode(err error, module Code, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == module|code.low()
	}
	return false
}
