// Package scoutererr defines the error-kind taxonomy shared across Scouter's
// subsystems so callers can branch on failure class without string matching.
package scoutererr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the subsystem concern that produced it.
type Kind string

const (
	KindConfig      Kind = "config"
	KindTransport   Kind = "transport"
	KindSerializer  Kind = "serialization"
	KindStorage     Kind = "storage"
	KindSchema      Kind = "schema"
	KindConcurrency Kind = "concurrency"
	KindPolicy      Kind = "policy"
)

// Error wraps an underlying cause with a Kind so callers can type-switch
// or use errors.As to recover the classification.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("scouter: %s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("scouter: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// Sentinel errors used where callers need to branch without wrapping context.
var (
	ErrWrongEntityKind = errors.New("wrong entity kind for profile family")
	ErrQueueClosed     = errors.New("queue has been shut down")
	ErrUnknownFeature  = errors.New("feature not declared on profile")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
)
