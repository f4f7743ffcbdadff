package analysis

import (
	"gonum.org/v1/gonum/stat"

	"github.com/moolen/primeline/internal/logging"
)

// DefaultSigmaMultiplier places the anomaly threshold at three standard
// deviations above the mean.
const DefaultSigmaMultiplier = 3.0

// AnomalyDetector classifies events against a mean plus sigma-multiple
// threshold over the LogValue series.
type AnomalyDetector struct {
	multiplier float64
	logger     *logging.Logger
}

// NewAnomalyDetector creates a detector with the given sigma multiplier.
// Non-positive values select DefaultSigmaMultiplier.
func NewAnomalyDetector(multiplier float64) *AnomalyDetector {
	if multiplier <= 0 {
		multiplier = DefaultSigmaMultiplier
	}
	return &AnomalyDetector{
		multiplier: multiplier,
		logger:     logging.GetLogger("analysis.anomaly"),
	}
}

// Detect computes threshold = mean + multiplier*stddev (sample standard
// deviation) and reports every index whose value strictly exceeds it, in
// original order. A zero-variance series yields zero anomalies; that is a
// normal outcome, not an error, so Detect never fails.
func (d *AnomalyDetector) Detect(values []float64) *AnomalyReport {
	report := &AnomalyReport{Indices: []int{}}
	if len(values) == 0 {
		return report
	}

	report.Mean = stat.Mean(values, nil)
	if len(values) >= 2 {
		report.StdDev = stat.StdDev(values, nil)
	}
	report.Threshold = report.Mean + d.multiplier*report.StdDev

	for i, v := range values {
		if v > report.Threshold {
			report.Indices = append(report.Indices, i)
		}
	}
	report.Count = len(report.Indices)

	d.logger.Debug("threshold %v over %d values, %d anomalies", report.Threshold, len(values), report.Count)
	return report
}
