package artifact

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

const (
	// EventFormatVersion is written to every new event artifact.
	EventFormatVersion = "3.1"

	// AdjacencyFormatVersion is written to every new adjacency artifact.
	AdjacencyFormatVersion = "2.0"

	// eventFormatConstraint accepts the 2.x and 3.x event generations.
	// 3.1 added the exact composites array; pre-3.1 composites are
	// derived from the log values at load time.
	eventFormatConstraint = ">= 2.0, < 4.0"

	// adjacencyFormatConstraint accepts only the 2.x adjacency layout.
	adjacencyFormatConstraint = ">= 2.0, < 3.0"
)

// checkFormatVersion gates a declared artifact version against a
// constraint range.
func checkFormatVersion(declared, constraint string) (*version.Version, error) {
	if declared == "" {
		return nil, NewFormatError("artifact is missing metadata.format_version")
	}
	v, err := version.NewVersion(declared)
	if err != nil {
		return nil, NewFormatError("invalid format_version %q: %v", declared, err)
	}
	c, err := version.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	if !c.Check(v) {
		return nil, NewFormatError("unsupported format_version %q, supported range is %q", declared, constraint)
	}
	return v, nil
}
