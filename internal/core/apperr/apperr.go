// Package apperr defines the error taxonomy for remote operations and the
// classifier that maps backend error codes onto it.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the failure class of a remote operation error.
type Kind int

const (
	KindUnknown    Kind = iota // Unclassified, retried like Business
	KindNetwork                // Connectivity lost or probe failed, recoverable
	KindAuth                   // Unauthorized/forbidden, retrying cannot help
	KindValidation             // Bad input or constraint violation, retrying cannot help
	KindBusiness               // Generic remote failure, retryable up to budget
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// Error wraps a remote failure with its classified kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewNetwork wraps err as a network error.
func NewNetwork(msg string, err error) *Error {
	return &Error{Kind: KindNetwork, Msg: msg, Err: err}
}

// NewAuth wraps err as an auth error.
func NewAuth(msg string, err error) *Error {
	return &Error{Kind: KindAuth, Msg: msg, Err: err}
}

// NewValidation wraps err as a validation error.
func NewValidation(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Err: err}
}

// KindOf returns the classified kind for err. A wrapped *Error keeps its
// original kind; anything else goes through the message classifier.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Classify(err)
}

// Retryable reports whether retrying the failed operation could change the
// outcome. Auth and validation failures are final, and so is work that was
// canceled: something deliberately superseded it.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindAuth, KindValidation:
		return false
	default:
		return true
	}
}
