package codec

import (
	"errors"
	"fmt"
)

// InvalidLabelError indicates a label that is not part of the label space.
type InvalidLabelError struct {
	message string
}

func (e *InvalidLabelError) Error() string {
	return e.message
}

// NewInvalidLabelError creates a new InvalidLabelError with a formatted message.
func NewInvalidLabelError(format string, args ...interface{}) *InvalidLabelError {
	return &InvalidLabelError{message: fmt.Sprintf(format, args...)}
}

// IsInvalidLabelError checks if an error is an InvalidLabelError.
func IsInvalidLabelError(err error) bool {
	var target *InvalidLabelError
	return errors.As(err, &target)
}

// ConflictingLabelError indicates the reserved "none" label was combined
// with real condition labels.
type ConflictingLabelError struct {
	message string
}

func (e *ConflictingLabelError) Error() string {
	return e.message
}

// NewConflictingLabelError creates a new ConflictingLabelError with a formatted message.
func NewConflictingLabelError(format string, args ...interface{}) *ConflictingLabelError {
	return &ConflictingLabelError{message: fmt.Sprintf(format, args...)}
}

// IsConflictingLabelError checks if an error is a ConflictingLabelError.
func IsConflictingLabelError(err error) bool {
	var target *ConflictingLabelError
	return errors.As(err, &target)
}

// InvalidCompositeError indicates a non-positive value was passed to decode.
type InvalidCompositeError struct {
	message string
}

func (e *InvalidCompositeError) Error() string {
	return e.message
}

// NewInvalidCompositeError creates a new InvalidCompositeError with a formatted message.
func NewInvalidCompositeError(format string, args ...interface{}) *InvalidCompositeError {
	return &InvalidCompositeError{message: fmt.Sprintf(format, args...)}
}

// IsInvalidCompositeError checks if an error is an InvalidCompositeError.
func IsInvalidCompositeError(err error) bool {
	var target *InvalidCompositeError
	return errors.As(err, &target)
}

// PrecisionBoundaryError signals a composite value outside the exactly
// representable range. Encode returns it fatally when a product overflows
// uint64; DecodeLog returns it as an advisory alongside a best-effort
// label set when the recovered composite exceeds PrecisionBoundary.
type PrecisionBoundaryError struct {
	message string
}

func (e *PrecisionBoundaryError) Error() string {
	return e.message
}

// NewPrecisionBoundaryError creates a new PrecisionBoundaryError with a formatted message.
func NewPrecisionBoundaryError(format string, args ...interface{}) *PrecisionBoundaryError {
	return &PrecisionBoundaryError{message: fmt.Sprintf(format, args...)}
}

// IsPrecisionBoundaryError checks if an error is a PrecisionBoundaryError.
func IsPrecisionBoundaryError(err error) bool {
	var target *PrecisionBoundaryError
	return errors.As(err, &target)
}
