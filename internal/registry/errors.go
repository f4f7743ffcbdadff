package registry

import (
	"errors"
	"fmt"
)

// RegistryError indicates an invalid registration or a components.yaml
// file that violates its contract.
type RegistryError struct {
	message string
}

func (e *RegistryError) Error() string {
	return e.message
}

// NewRegistryError creates a new RegistryError with a formatted message.
func NewRegistryError(format string, args ...interface{}) *RegistryError {
	return &RegistryError{message: fmt.Sprintf(format, args...)}
}

// IsRegistryError checks if an error is a RegistryError.
func IsRegistryError(err error) bool {
	var target *RegistryError
	return errors.As(err, &target)
}
