package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call.
type Kind string

const (
	KindConfiguration          Kind = "configuration_error"
	KindAuthenticationRequired Kind = "authentication_required"
	KindSessionExpired         Kind = "session_expired"
	KindAuthorizationDenied    Kind = "authorization_denied"
	KindTimeout                Kind = "timeout"
	KindNetwork                Kind = "network_error"
	KindServerRejected         Kind = "server_rejected"
	KindValidation             Kind = "validation_error"
	KindCanceled               Kind = "canceled"
)

// Error represents a structured call failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Cause   error
}

// New creates a new Error.
func New(kind Kind, status int, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}

// Newf creates an Error without a status or cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Status != 0 {
		prefix = fmt.Sprintf("%s (%d)", e.Kind, e.Status)
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
}

// Unwrap returns the root cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure may succeed on a later attempt.
// Only transport failures, local timeouts and 5xx/429 rejections qualify.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindServerRejected:
		return e.Status >= 500 || e.Status == 429
	default:
		return false
	}
}

// As extracts an *Error if present.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	if appErr := As(err); appErr != nil {
		return appErr.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether err is a retryable *Error.
func Retryable(err error) bool {
	return As(err).Retryable()
}
