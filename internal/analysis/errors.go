package analysis

import (
	"errors"
	"fmt"
)

// InsufficientDataError indicates too few usable data points for an
// analysis to produce a meaningful result. It aborts only the analysis
// that raised it; independent analyses continue.
type InsufficientDataError struct {
	Analysis  string
	Available int
	Required  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s analysis: %d points available, %d required",
		e.Analysis, e.Available, e.Required)
}

// NewInsufficientDataError creates a new InsufficientDataError for the named analysis.
func NewInsufficientDataError(analysis string, available, required int) *InsufficientDataError {
	return &InsufficientDataError{Analysis: analysis, Available: available, Required: required}
}

// IsInsufficientDataError checks if an error is an InsufficientDataError.
func IsInsufficientDataError(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}
