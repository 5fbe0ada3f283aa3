// Package apperr defines the error taxonomy shared by the bot framework and the game engine.
package apperr

import (
	"errors"
	"strings"
)

// Kind classifies an error for logging and recovery decisions.
type Kind string

const (
	// KindUnknown is reported for errors outside the taxonomy.
	KindUnknown Kind = "UNKNOWN"
	// KindStateTransition marks illegal game state transitions: double start,
	// double finish, missing session, empty review queue.
	KindStateTransition Kind = "STATE_TRANSITION"
	// KindConfiguration marks malformed handler, gate or transform declarations.
	KindConfiguration Kind = "CONFIGURATION"
	// KindPersistenceLoad marks snapshots that exist but cannot be decoded.
	KindPersistenceLoad Kind = "PERSISTENCE_LOAD"
	// KindJoinResolution marks join tokens that are unknown or already consumed.
	KindJoinResolution Kind = "JOIN_RESOLUTION"
)

// Error carries a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds a classified error. A nil err yields an error whose message is the kind itself.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is a shorthand for E with a plain message.
func Errorf(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(strings.ToLower(string(e.Kind)))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Code exposes the kind as a machine readable code for structured logs.
func (e *Error) Code() string {
	if e == nil {
		return ""
	}
	return string(e.Kind)
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
