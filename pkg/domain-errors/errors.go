// Package domainerrors provides coded errors for the lending domain.
//
// Core operations never return bare booleans or untyped errors: every failure
// carries a Code so the request boundary can translate it into a distinct
// client-visible status. Expected business failures (invalid input, not found,
// no copies free, ...) are recoverable by the caller; CodeInternalConsistency
// marks a broken invariant and is surfaced as a server error.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeInvalidInput marks a missing or malformed required field.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound marks a reference to an id that does not exist.
	CodeNotFound Code = "not_found"
	// CodeDuplicateIdentifier marks a uniqueness violation on a borrower's
	// national identifier.
	CodeDuplicateIdentifier Code = "duplicate_identifier"
	// CodeUnavailable marks a loan attempt against an item with no free copies.
	CodeUnavailable Code = "unavailable"
	// CodeConflict marks a deletion blocked by open loans.
	CodeConflict Code = "conflict"
	// CodeAlreadyClosed marks a second close attempt on a closed loan.
	CodeAlreadyClosed Code = "already_closed"
	// CodeInternalConsistency marks a violated store invariant, e.g.
	// available copies outside [0, total]. Not recoverable by the caller.
	CodeInternalConsistency Code = "internal_consistency"
	// CodeInternal marks an unexpected infrastructure failure.
	CodeInternal Code = "internal"
	// CodeTimeout marks a transaction aborted by context cancellation.
	CodeTimeout Code = "timeout"
)

// Error is a domain error with a classification code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping the chain intact.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the code of the outermost domain error, or CodeInternal for
// unclassified errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost domain error, or a generic
// message for unclassified errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its client-visible HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeUnavailable, CodeAlreadyClosed:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateIdentifier, CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
