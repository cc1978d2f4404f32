package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/c2script/pkg/value"
)

// Error kinds. Every runtime error raised by a process is an *Error whose
// Unwrap returns one of these, so callers can match with errors.Is.
var (
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrArity             = errors.New("wrong number of arguments")
	ErrNotAssignable     = errors.New("not assignable")
	ErrNotSerializable   = errors.New("not serializable")
	ErrUnknownIdentifier = errors.New("unknown identifier")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrRangeError        = errors.New("range error")
	ErrInvalidOpcode     = errors.New("invalid opcode")
	ErrNotAvailable      = errors.New("not available")
	ErrThrown            = errors.New("thrown")
	ErrExternal          = errors.New("external failure")
	ErrInternal          = errors.New("internal error")
)

// Error is a script-level failure. Value is what a catch handler receives;
// for errors raised by the interpreter it is the message as a string, for
// Throw it is the thrown value itself.
type Error struct {
	Kind    error
	Message string
	Value   value.Value
	Trace   []string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, Message: msg, Value: value.String(msg)}
}

func thrownError(v value.Value) *Error {
	return &Error{Kind: ErrThrown, Message: value.ToString(v), Value: v}
}

// asError converts any error into an *Error. Errors returned by natives that
// are not already *Error become ErrExternal failures carrying their message.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: ErrExternal, Message: err.Error(), Value: value.String(err.Error())}
}

func typeError(what string, v value.Value) *Error {
	return newError(ErrTypeMismatch, "type mismatch: %s expects a different type, got %s", what, value.KindOf(v))
}
