package query

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes builder and iteration errors.
type ErrorCode string

const (
	// ErrCodeUnknownMethod indicates Call was given a name with no known verb.
	ErrCodeUnknownMethod ErrorCode = "UNKNOWN_METHOD"

	// ErrCodeInvalidDirection indicates a sort with zero direction.
	ErrCodeInvalidDirection ErrorCode = "INVALID_DIRECTION"

	// ErrCodeEmptyOption indicates an in/nin option key with an empty list.
	ErrCodeEmptyOption ErrorCode = "EMPTY_OPTION"

	// ErrCodeNoSelectedFields indicates a projection without selected fields.
	ErrCodeNoSelectedFields ErrorCode = "NO_SELECTED_FIELDS"

	// ErrCodeInvalidArgument indicates Call arguments of the wrong shape.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeUnsupported indicates the adapter lacks an optional capability.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
)

// ErrIndexOutOfRange is returned by At and Pop for indexes with no row.
var ErrIndexOutOfRange = errors.New("index out of range")

// Error is a builder or iteration error.
type Error struct {
	Code    ErrorCode
	Message string

	// Method is the Call name that failed, when there was one.
	Method string

	// Field is the canonical field involved, when there was one.
	Field string
}

func (e *Error) Error() string {
	switch {
	case e.Method != "":
		return fmt.Sprintf("%s: %s (method=%s)", e.Code, e.Message, e.Method)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// IsInvocationError reports whether err came from an unknown Call method.
// Uses errors.As to handle wrapped errors.
func IsInvocationError(err error) bool {
	return hasCode(err, ErrCodeUnknownMethod)
}

// IsInvalidDirection reports whether err came from a zero sort direction.
func IsInvalidDirection(err error) bool {
	return hasCode(err, ErrCodeInvalidDirection)
}

// IsEmptyOption reports whether err came from an empty in/nin option list.
func IsEmptyOption(err error) bool {
	return hasCode(err, ErrCodeEmptyOption)
}

// IsNoSelectedFields reports whether err came from a projection without
// selected fields.
func IsNoSelectedFields(err error) bool {
	return hasCode(err, ErrCodeNoSelectedFields)
}

func noSelectedFields() error {
	return &Error{Code: ErrCodeNoSelectedFields, Message: "no fields selected for projection"}
}
