package analysis

import (
	"fmt"
	"math"
	"sort"
)

// Resample maps an unevenly sampled series onto count uniformly spaced
// points across [0, times[last]] using first-order interpolation. Grid
// points outside the observed range clamp to the nearest endpoint value.
// It returns the resampled series and the derived uniform spacing.
// Times must be ascending; the artifact loader guarantees that for event
// timestamps.
func Resample(times, values []float64, count int) ([]float64, float64, error) {
	if len(times) != len(values) {
		return nil, 0, fmt.Errorf("times and values disagree in length: %d vs %d", len(times), len(values))
	}
	if len(times) == 0 {
		return nil, 0, fmt.Errorf("cannot resample an empty series")
	}
	if count < 2 {
		return nil, 0, fmt.Errorf("sample count must be at least 2, got %d", count)
	}
	if !sort.Float64sAreSorted(times) {
		return nil, 0, fmt.Errorf("times must be in ascending order")
	}
	maxT := times[len(times)-1]
	if maxT <= 0 {
		return nil, 0, fmt.Errorf("series spans no time, last timestamp is %v", maxT)
	}

	dt := maxT / float64(count-1)
	out := make([]float64, count)
	for i := range out {
		out[i] = interpolate(times, values, float64(i)*dt)
	}
	return out, dt, nil
}

func interpolate(times, values []float64, x float64) float64 {
	n := len(times)
	if x <= times[0] {
		return values[0]
	}
	if x >= times[n-1] {
		return values[n-1]
	}
	// Smallest i with times[i] >= x; bounded to [1, n-1] by the clamps above.
	i := sort.SearchFloat64s(times, x)
	t0, t1 := times[i-1], times[i]
	if t1 == t0 {
		return values[i]
	}
	frac := (x - t0) / (t1 - t0)
	return values[i-1] + frac*(values[i]-values[i-1])
}

// CountSeries discretizes event times into fixed-width occupancy counts,
// the input form of the count-per-bin spectrum variant. The final partial
// bin is kept.
func CountSeries(times []float64, binWidth float64) ([]float64, error) {
	if binWidth <= 0 {
		return nil, fmt.Errorf("bin width must be positive, got %v", binWidth)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("cannot bin an empty series")
	}

	maxT := times[0]
	for _, t := range times[1:] {
		if t > maxT {
			maxT = t
		}
	}
	bins := int(math.Floor(maxT/binWidth)) + 1
	counts := make([]float64, bins)
	for _, t := range times {
		idx := int(math.Floor(t / binWidth))
		if idx < 0 {
			idx = 0
		}
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return counts, nil
}
