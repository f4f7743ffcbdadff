package analysis

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/moolen/primeline/internal/artifact"
)

// WriteReport stores a report next to its session artifacts, named
// analysis_<id>.json by the session store.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis report: %w", err)
	}
	return artifact.WriteFileAtomic(path, data)
}

// ReadReport loads a stored report.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse analysis report %s: %w", path, err)
	}
	return &r, nil
}
