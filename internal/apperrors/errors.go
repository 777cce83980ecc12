// Package apperrors defines the error kinds RowQuest distinguishes and how they map to HTTP responses.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how callers should react to it.
type Kind string

const (
	// ConfigurationInvalid marks setup bugs: empty routes, non-monotonic waypoints, zero journey length.
	ConfigurationInvalid Kind = "configuration_invalid"
	// RemoteCallFailed marks failures of the database, cache, storage or webhook collaborators.
	RemoteCallFailed Kind = "remote_call_failed"
	NotFound         Kind = "not_found"
	InvalidInput     Kind = "invalid_input"
	Forbidden        Kind = "forbidden"
)

// Error is a classified error carrying the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error from a message.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap classifies err. It returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Remote wraps a collaborator failure as RemoteCallFailed unless it is already classified.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: RemoteCallFailed, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in the chain, or RemoteCallFailed.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return RemoteCallFailed
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// ToStatusCode maps an error kind to the HTTP status used for default responses.
func ToStatusCode(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case InvalidInput:
		return http.StatusBadRequest
	case Forbidden:
		return http.StatusForbidden
	case RemoteCallFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
