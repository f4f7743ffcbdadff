package aggregate

import (
	"errors"
	"fmt"
)

// MergeError indicates node inputs that cannot be combined into a
// single session.
type MergeError struct {
	message string
}

func (e *MergeError) Error() string {
	return e.message
}

// NewMergeError creates a new MergeError with a formatted message.
func NewMergeError(format string, args ...interface{}) *MergeError {
	return &MergeError{message: fmt.Sprintf(format, args...)}
}

// IsMergeError checks if an error is a MergeError.
func IsMergeError(err error) bool {
	var target *MergeError
	return errors.As(err, &target)
}
