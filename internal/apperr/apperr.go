// Package apperr classifies failures of portal operations so callers can pick
// a UI treatment with errors.Is instead of inspecting status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure classes surfaced by the gateway and the
// components built on it.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindAuth          Kind = "auth"
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindNetwork       Kind = "network"
	KindServer        Kind = "server"
)

// Sentinels matched by *Error.Is for the corresponding Kind.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrAuth          = errors.New("authentication failed")
	ErrValidation    = errors.New("request rejected")
	ErrNotFound      = errors.New("not found")
	ErrNetwork       = errors.New("network unavailable")
	ErrServer        = errors.New("server error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindAuth:
		return ErrAuth
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindNetwork:
		return ErrNetwork
	case KindServer:
		return ErrServer
	default:
		return nil
	}
}

// Retryable reports whether the user may reasonably try the action again.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindServer
}

// Error is a classified failure. Op names the logical operation (or component
// action) that failed; Status is the HTTP status returned by the backend, if any.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.sentinel().Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, apperr.ErrAuth) match any *Error of KindAuth.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New builds an error with a user-facing message.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configuration reports a catalog or wiring mistake. These are developer-facing
// and never retried.
func Configuration(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind of a classified error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Message returns the text suitable for showing next to the failed action.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if errors.As(err, &e) {
		switch e.Kind {
		case KindNetwork:
			return "Could not reach the server. Please check your connection and try again."
		case KindServer:
			return "The server had a problem. Please try again."
		case KindAuth:
			return "Your session is no longer valid. Please sign in again."
		}
	}
	return err.Error()
}
