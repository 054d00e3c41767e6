package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a bridge operation failure.
type Kind string

const (
	// KindTransport is a network failure before any response was obtained.
	KindTransport Kind = "transport"
	// KindRemoteAPI is a non-2xx response or an explicit remote error body.
	KindRemoteAPI Kind = "remote_api"
	// KindValidation is an unmet precondition (no start date, malformed template event).
	KindValidation Kind = "validation"
	// KindNotFound means no mapping exists for the requested entity.
	KindNotFound Kind = "not_found"
	// KindState means a remote resource count invariant was violated.
	KindState Kind = "state"
)

// Error is the structured failure carried by every bridge operation.
// StatusCode and Body are only set for remote API failures.
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	StatusCode int
	Body       string

	cause error
}

// Kind sentinels for errors.Is matching.
var (
	ErrTransport  = &Error{Kind: KindTransport}
	ErrRemoteAPI  = &Error{Kind: KindRemoteAPI}
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrState      = &Error{Kind: KindState}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op == "" {
		return msg
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, domain.ErrNotFound) without caring about op or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

// KindOf returns the kind of a bridge error, or the empty kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusCodeOf returns the remote status code of a bridge error, if any.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func NewTransport(op string, cause error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: cause.Error(), cause: cause}
}

func NewRemoteAPI(op string, statusCode int, body, message string) *Error {
	return &Error{Kind: KindRemoteAPI, Op: op, Message: message, StatusCode: statusCode, Body: body}
}

func NewValidation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func NewNotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

func NewState(op, message string) *Error {
	return &Error{Kind: KindState, Op: op, Message: message}
}
