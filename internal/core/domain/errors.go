package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Member errors
var (
	ErrMemberNotFound = errors.New("member not found")
)

// Allocation errors
var (
	// ErrAllocationExhausted means the year's sequence no longer fits the configured width.
	ErrAllocationExhausted = errors.New("membership id sequence exhausted")
	// ErrAllocationConflict means a concurrent writer took the identifier first.
	ErrAllocationConflict = errors.New("membership id allocation conflict")
)

// InvalidDateError reports a malformed or inconsistent date input.
type InvalidDateError struct {
	Field  string
	Value  string
	Reason string
}

func (e InvalidDateError) Error() string {
	switch {
	case e.Field == "":
		return "invalid date: " + e.Reason
	case e.Value == "":
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	default:
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
}

// Is enables errors.Is matching on InvalidDateError regardless of its fields.
func (e InvalidDateError) Is(target error) bool {
	switch target.(type) {
	case InvalidDateError, *InvalidDateError:
		return true
	}
	return false
}

// ErrInvalidDate is the sentinel for errors.Is checks.
var ErrInvalidDate = InvalidDateError{}
