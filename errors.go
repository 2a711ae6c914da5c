package stun

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the closed taxonomy of error kinds a transaction can resolve
// with, or a transport/codec operation can fail with. It is a sum type,
// not a hierarchy: callers switch on Kind rather than type-asserting
// concrete error types.
type Kind int

const (
	// KindTimeout: the request's request_timeout deadline elapsed.
	KindTimeout Kind = iota
	// KindFull: a resource is saturated (e.g. per-peer concurrency cap);
	// transient.
	KindFull
	// KindInvalidInput: caller-supplied data was rejected (duplicate
	// transaction id, method mismatch on a response).
	KindInvalidInput
	// KindUnsupported: structurally valid message using attributes the
	// receiver does not understand.
	KindUnsupported
	// KindMalformed: the wire bytes could not be parsed as a message at
	// all beyond the header (or not at all).
	KindMalformed
	// KindNotStun: the wire bytes do not look like STUN (bad leading
	// bits, bad length, bad magic cookie).
	KindNotStun
	// KindUnknownTransaction: a response arrived with no matching
	// pending request.
	KindUnknownTransaction
	// KindErrorCode: a received ErrorResponse carried a STUN ERROR-CODE
	// attribute; see Error.Code/Error.Reason.
	KindErrorCode
	// KindTerminated: the engine task has died; this is cached and
	// returned for all subsequent calls on that channel/agent.
	KindTerminated
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindFull:
		return "full"
	case KindInvalidInput:
		return "invalid input"
	case KindUnsupported:
		return "unsupported"
	case KindMalformed:
		return "malformed"
	case KindNotStun:
		return "not stun"
	case KindUnknownTransaction:
		return "unknown transaction"
	case KindErrorCode:
		return "error code"
	case KindTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the concrete error value carried by every Kind. For
// KindErrorCode, Code and Reason hold the STUN ERROR-CODE attribute's
// payload (300 <= Code < 600, Reason <= 127 Unicode scalar values).
type Error struct {
	Kind   Kind
	Code   uint16
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.Kind == KindErrorCode {
		return fmt.Sprintf("stun: %d %s", e.Code, e.Reason)
	}
	if e.cause != nil {
		return fmt.Sprintf("stun: %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("stun: %s", e.Kind)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, &stun.Error{Kind: stun.KindTimeout}) works without
// requiring the cause or code/reason to match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an *Error of the given kind, wrapping cause (which may
// be nil) with errors.Wrap so a stack trace is attached at the point of
// failure.
func NewError(kind Kind, cause error, format string, args ...interface{}) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.Wrapf(cause, format, args...)
	} else if format != "" {
		wrapped = errors.Errorf(format, args...)
	}
	return &Error{Kind: kind, cause: wrapped}
}

// NewErrorCode builds a KindErrorCode error from a STUN ERROR-CODE
// attribute's payload. Code is clamped to the valid STUN range and Reason
// is truncated to 127 runes, per RFC 5389 §15.6.
func NewErrorCode(code uint16, reason string) *Error {
	if code < 300 {
		code = 300
	} else if code >= 600 {
		code = 599
	}
	runes := []rune(reason)
	if len(runes) > 127 {
		reason = string(runes[:127])
	}
	return &Error{Kind: KindErrorCode, Code: code, Reason: reason}
}

// Sentinel, kind-only errors for use with errors.Is against a fixed
// reference.
var (
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrFull               = &Error{Kind: KindFull}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrUnsupported        = &Error{Kind: KindUnsupported}
	ErrMalformed          = &Error{Kind: KindMalformed}
	ErrNotStun            = &Error{Kind: KindNotStun}
	ErrUnknownTransaction = &Error{Kind: KindUnknownTransaction}
	ErrTerminated         = &Error{Kind: KindTerminated}
	// ErrTooLarge is a KindInvalidInput error for messages whose
	// attribute section would exceed the codec's 65535-byte limit, or
	// the transport's configured maximum message size.
	ErrTooLarge = NewError(KindInvalidInput, nil, "message too large")
)
