// Package plan holds the pure part of the plan mutation engine: operation
// decoding, validation, application and the final integrity pass.  Nothing
// in this package performs I/O.
package plan

import (
	"errors"
	"fmt"
)

// Code is the machine-readable error code returned to clients.
type Code string

// Error codes.  The first group belongs to the validation class and always
// carries the index of the offending operation when raised inside a batch.
const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeDuplicateID      Code = "DUPLICATE_ID"
	CodeTableNotFound    Code = "TABLE_NOT_FOUND"
	CodeGuestNotFound    Code = "GUEST_NOT_FOUND"
	CodeSeatOccupied     Code = "SEAT_OCCUPIED"
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED"
	CodeTableHasGuests   Code = "TABLE_HAS_GUESTS"
	CodeInvalidSeat      Code = "INVALID_SEAT"
	CodeGuestNotSeated   Code = "GUEST_NOT_SEATED"
	CodeIntegrity        Code = "INTEGRITY_VIOLATION"

	CodeForbidden       Code = "FORBIDDEN"
	CodeLocked          Code = "LOCKED"
	CodeVersionConflict Code = "VERSION_CONFLICT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInternal        Code = "INTERNAL"
)

// Class groups codes by how they propagate to the caller.
type Class int

const (
	ClassValidation Class = iota
	ClassAuthorization
	ClassConflict
	ClassNotFound
	ClassInternal
)

// Error is a domain failure.  OpIndex is set when the failure is tied to a
// specific operation of a batch.
type Error struct {
	Code    Code
	Message string
	OpIndex *int
	Details map[string]any
}

func (e *Error) Error() string {
	if e.OpIndex != nil {
		return fmt.Sprintf("%s: op %d: %s", e.Code, *e.OpIndex, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Class reports the propagation class of the error.
func (e *Error) Class() Class {
	switch e.Code {
	case CodeForbidden:
		return ClassAuthorization
	case CodeLocked, CodeVersionConflict:
		return ClassConflict
	case CodeNotFound:
		return ClassNotFound
	case CodeInternal:
		return ClassInternal
	}
	return ClassValidation
}

// AtOp returns a copy of the error bound to operation index i.
func (e *Error) AtOp(i int) *Error {
	cp := *e
	cp.OpIndex = &i
	return &cp
}

// NewError builds an Error.  details may be nil.
func NewError(code Code, msg string, details map[string]any) *Error {
	return &Error{Code: code, Message: msg, Details: details}
}

// Errorf builds an Error without details from a format string.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// HasCode reports whether err is a plan error with the given code.
func HasCode(err error, code Code) bool {
	pe, ok := AsError(err)
	return ok && pe.Code == code
}
