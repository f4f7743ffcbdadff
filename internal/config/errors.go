package config

import (
	"errors"
	"fmt"
)

// ConfigError indicates a configuration file that violates its
// contract.
type ConfigError struct {
	message string
}

func (e *ConfigError) Error() string {
	return e.message
}

// NewConfigError creates a new ConfigError with a formatted message.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{message: fmt.Sprintf(format, args...)}
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
