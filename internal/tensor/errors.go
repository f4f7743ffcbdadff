package tensor

import (
	"errors"
	"fmt"
)

// IndexOutOfRangeError indicates a caller or callee index outside the
// declared component count.
type IndexOutOfRangeError struct {
	message string
}

func (e *IndexOutOfRangeError) Error() string {
	return e.message
}

// NewIndexOutOfRangeError creates a new IndexOutOfRangeError with a formatted message.
func NewIndexOutOfRangeError(format string, args ...interface{}) *IndexOutOfRangeError {
	return &IndexOutOfRangeError{message: fmt.Sprintf(format, args...)}
}

// IsIndexOutOfRangeError checks if an error is an IndexOutOfRangeError.
func IsIndexOutOfRangeError(err error) bool {
	var target *IndexOutOfRangeError
	return errors.As(err, &target)
}
