package analysis

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/moolen/primeline/internal/logging"
)

const (
	// DefaultSampleCount is the resampling grid size for the spectrum.
	DefaultSampleCount = 128

	// minSpectralPoints is the smallest series worth a spectrum.
	minSpectralPoints = 4
)

// SpectralAnalyzer detects periodicity in the error weight series by
// resampling it onto a uniform grid and computing the discrete Fourier
// magnitude spectrum of the positive-frequency bins.
type SpectralAnalyzer struct {
	sampleCount int
	logger      *logging.Logger
}

// NewSpectralAnalyzer creates an analyzer with the given grid size.
// Non-positive values select DefaultSampleCount.
func NewSpectralAnalyzer(sampleCount int) *SpectralAnalyzer {
	if sampleCount <= 0 {
		sampleCount = DefaultSampleCount
	}
	return &SpectralAnalyzer{
		sampleCount: sampleCount,
		logger:      logging.GetLogger("analysis.spectral"),
	}
}

// Analyze resamples the (time, value) series with linear interpolation and
// returns its normalized magnitude spectrum. Fewer than 4 input points, or
// a series with no time span, yields an InsufficientDataError.
func (a *SpectralAnalyzer) Analyze(times, values []float64) (*SpectralReport, error) {
	if len(times) < minSpectralPoints {
		return nil, NewInsufficientDataError("spectral", len(times), minSpectralPoints)
	}
	if len(times) != len(values) {
		return nil, fmt.Errorf("times and values disagree in length: %d vs %d", len(times), len(values))
	}
	if times[len(times)-1] <= 0 {
		// All events share one instant, there is nothing to resample.
		return nil, NewInsufficientDataError("spectral", 1, 2)
	}

	series, dt, err := Resample(times, values, a.sampleCount)
	if err != nil {
		return nil, err
	}

	points, normalized := magnitudeSpectrum(series, dt)
	a.logger.Debug("computed spectrum over %d samples, dt=%vs, %d bins", a.sampleCount, dt, len(points))
	return &SpectralReport{
		Points:        points,
		SampleCount:   a.sampleCount,
		SampleSpacing: dt,
		Normalized:    normalized,
	}, nil
}

// AnalyzeCounts runs the spectrum directly over a fixed-width
// count-per-bin series, skipping interpolation. binWidth is the bin
// duration in seconds and doubles as the sample spacing.
func (a *SpectralAnalyzer) AnalyzeCounts(counts []float64, binWidth float64) (*SpectralReport, error) {
	if len(counts) < minSpectralPoints {
		return nil, NewInsufficientDataError("spectral", len(counts), minSpectralPoints)
	}
	if binWidth <= 0 {
		return nil, fmt.Errorf("bin width must be positive, got %v", binWidth)
	}

	points, normalized := magnitudeSpectrum(counts, binWidth)
	return &SpectralReport{
		Points:        points,
		SampleCount:   len(counts),
		SampleSpacing: binWidth,
		Normalized:    normalized,
	}, nil
}

// magnitudeSpectrum keeps bins [1, n/2]. Bin 0 is the DC offset and
// carries no periodicity. Amplitudes are divided by the maximum retained
// magnitude unless that maximum is 0.
func magnitudeSpectrum(series []float64, dt float64) ([]SpectralPoint, bool) {
	n := len(series)
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, series)

	points := make([]SpectralPoint, 0, n/2)
	maxMag := 0.0
	for k := 1; k <= n/2; k++ {
		mag := cmplx.Abs(coeffs[k])
		points = append(points, SpectralPoint{
			FrequencyHz: float64(k) / (float64(n) * dt),
			Amplitude:   mag,
		})
		if mag > maxMag {
			maxMag = mag
		}
	}

	if maxMag == 0 {
		return points, false
	}
	for i := range points {
		points[i].Amplitude /= maxMag
	}
	return points, true
}
