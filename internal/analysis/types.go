package analysis

import "time"

// SpectralPoint is one positive-frequency bin of the magnitude spectrum.
type SpectralPoint struct {
	FrequencyHz float64 `json:"freq_hz"`
	Amplitude   float64 `json:"amplitude"`
}

// SpectralReport is the output of the spectral analysis.
type SpectralReport struct {
	Points        []SpectralPoint `json:"points"`
	SampleCount   int             `json:"sample_count"`
	SampleSpacing float64         `json:"sample_spacing_s"`
	// Normalized is false only for an all-zero spectrum, which is left
	// unnormalized rather than divided by zero.
	Normalized bool `json:"normalized"`
}

// PatternReport carries the singular value profile of the time-by-pair
// matrix, ordered descending.
type PatternReport struct {
	SingularValues []float64 `json:"singular_values"`
	Rows           int       `json:"rows"`
	Cols           int       `json:"cols"`
}

// AnomalyReport lists the events whose LogValue strictly exceeds the
// threshold, in original time order.
type AnomalyReport struct {
	Threshold float64 `json:"threshold"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Count     int     `json:"count"`
	Indices   []int   `json:"indices"`
}

// TransitionReport holds the row-stochastic propagation matrix. Rows with
// no outgoing transitions stay all-zero.
type TransitionReport struct {
	Matrix      [][]float64 `json:"matrix"`
	Transitions int         `json:"transitions"`
}

// LabelCount is one decoded label with its occurrence count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ComponentStat aggregates one component's error involvement.
type ComponentStat struct {
	Component string  `json:"component"`
	Index     int     `json:"index"`
	Events    int     `json:"events"`
	Weight    float64 `json:"weight"`
}

// StatsReport is the per-session statistics digest.
type StatsReport struct {
	TotalEvents int          `json:"total_events"`
	ErrorEvents int          `json:"error_events"`
	TotalWeight float64      `json:"total_weight"`
	Labels      []LabelCount `json:"labels"`
	// TopCallers ranks components by error weight produced, TopCallees by
	// error weight received.
	TopCallers []ComponentStat `json:"top_callers"`
	TopCallees []ComponentStat `json:"top_callees"`
}

// Report is the full pipeline output for one session.
type Report struct {
	SessionID      string    `json:"session_id,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	EventCount     int       `json:"event_count"`
	ComponentCount int       `json:"component_count"`

	Spectral    *SpectralReport   `json:"spectral,omitempty"`
	Patterns    *PatternReport    `json:"patterns,omitempty"`
	Anomalies   *AnomalyReport    `json:"anomalies,omitempty"`
	Transitions *TransitionReport `json:"transitions,omitempty"`
	Stats       *StatsReport      `json:"stats,omitempty"`

	// Skipped maps an analysis name to the reason it did not run.
	Skipped map[string]string `json:"skipped,omitempty"`
}
