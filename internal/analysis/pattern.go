package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/moolen/primeline/internal/logging"
)

const (
	// DefaultPatternModes is the number of dominant modes reported.
	DefaultPatternModes = 4

	// minPatternRows is the smallest number of nonzero time rows a
	// decomposition needs.
	minPatternRows = 2
)

// PatternExtractor reports the dominant temporal error modes as the
// leading singular values of the flattened time-by-pair matrix.
type PatternExtractor struct {
	modes  int
	logger *logging.Logger
}

// NewPatternExtractor creates an extractor truncated to the given number
// of modes. Non-positive values select DefaultPatternModes.
func NewPatternExtractor(modes int) *PatternExtractor {
	if modes <= 0 {
		modes = DefaultPatternModes
	}
	return &PatternExtractor{
		modes:  modes,
		logger: logging.GetLogger("analysis.pattern"),
	}
}

// Extract decomposes the matrix and returns the singular values in
// descending order, truncated to min(modes, min(rows, cols)). A matrix
// with fewer than 2 nonzero rows yields an InsufficientDataError.
func (p *PatternExtractor) Extract(m *mat.Dense) (*PatternReport, error) {
	if m == nil {
		return nil, fmt.Errorf("matrix must not be nil")
	}
	rows, cols := m.Dims()

	nonzero := 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if m.At(i, j) != 0 {
				nonzero++
				break
			}
		}
	}
	if nonzero < minPatternRows {
		return nil, NewInsufficientDataError("pattern", nonzero, minPatternRows)
	}

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDNone); !ok {
		return nil, fmt.Errorf("singular value decomposition did not converge")
	}

	values := svd.Values(nil)
	if len(values) > p.modes {
		values = values[:p.modes]
	}
	p.logger.Debug("extracted %d modes from %dx%d matrix (%d nonzero rows)", len(values), rows, cols, nonzero)
	return &PatternReport{
		SingularValues: values,
		Rows:           rows,
		Cols:           cols,
	}, nil
}
