package artifact

import (
	"errors"
	"fmt"
)

// FormatError indicates an artifact that violates its schema contract:
// an unsupported format version, inconsistent field lengths, or a
// mismatch between companion artifacts.
type FormatError struct {
	message string
}

func (e *FormatError) Error() string {
	return e.message
}

// NewFormatError creates a new FormatError with a formatted message.
func NewFormatError(format string, args ...interface{}) *FormatError {
	return &FormatError{message: fmt.Sprintf(format, args...)}
}

// IsFormatError checks if an error is a FormatError.
func IsFormatError(err error) bool {
	var target *FormatError
	return errors.As(err, &target)
}
