// Package perr defines the small error taxonomy shared by every core
// component: a Kind tag an HTTP layer can map to a status code, and a
// wrapped cause for logging. Core code never exposes stack traces;
// wrapping with %w is enough for internal diagnostics.
package perr

import (
	"errors"
	"fmt"
)

// Kind is a short, machine-readable error classification.
type Kind string

const (
	BadRequest   Kind = "bad_request"
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	NotFound     Kind = "not_found"
	Conflict     Kind = "conflict"
	Unsupported  Kind = "unsupported"
	IO           Kind = "io"
	Internal     Kind = "internal"
)

// Error pairs a Kind with a message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func New(kind Kind, msg string) error               { return new_(kind, msg, nil) }
func Wrap(kind Kind, msg string, cause error) error { return new_(kind, msg, cause) }

func NewBadRequest(msg string) error             { return New(BadRequest, msg) }
func NewUnauthorized(msg string) error           { return New(Unauthorized, msg) }
func NewForbidden(msg string) error              { return New(Forbidden, msg) }
func NewNotFound(msg string) error               { return New(NotFound, msg) }
func NewConflict(msg string) error               { return New(Conflict, msg) }
func NewUnsupported(msg string) error            { return New(Unsupported, msg) }
func WrapIO(msg string, cause error) error       { return Wrap(IO, msg, cause) }
func WrapInternal(msg string, cause error) error { return Wrap(Internal, msg, cause) }

// KindOf extracts the Kind of err, defaulting to Internal for untagged
// errors (e.g. plain I/O errors bubbled up from the standard library).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// BadQuery is returned by the search parser; it carries the byte offset
// of the offending token so callers can report a precise location.
type BadQuery struct {
	Offset  int
	Message string
}

func (e *BadQuery) Error() string {
	return fmt.Sprintf("bad query at offset %d: %s", e.Offset, e.Message)
}
