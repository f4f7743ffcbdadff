package analysis

import (
	"github.com/moolen/primeline/internal/logging"
	"github.com/moolen/primeline/internal/tensor"
)

// TransitionModel estimates how error conditions propagate between
// components: when event i carries an error and event i+1 does too, the
// error is modeled as handed off from event i's callee (where it was
// received) to event i+1's caller (where it is next raised).
type TransitionModel struct {
	logger *logging.Logger
}

// NewTransitionModel creates a transition model builder.
func NewTransitionModel() *TransitionModel {
	return &TransitionModel{logger: logging.GetLogger("analysis.transition")}
}

// Build counts hand-offs between adjacent events where both LogValues are
// nonzero, then row-normalizes the counts into an n x n row-stochastic
// matrix. Rows that never propagated stay all-zero. This is an empirical
// first-order estimate; no smoothing is applied.
func (m *TransitionModel) Build(events []tensor.Event, n int) (*TransitionReport, error) {
	if n <= 0 {
		return nil, tensor.NewIndexOutOfRangeError("component count must be positive, got %d", n)
	}

	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}

	transitions := 0
	for i := 0; i+1 < len(events); i++ {
		cur, next := events[i], events[i+1]
		if cur.LogValue == 0 || next.LogValue == 0 {
			continue
		}
		if cur.Callee < 0 || cur.Callee >= n {
			return nil, tensor.NewIndexOutOfRangeError("event %d: callee index %d outside [0, %d)", i, cur.Callee, n)
		}
		if next.Caller < 0 || next.Caller >= n {
			return nil, tensor.NewIndexOutOfRangeError("event %d: caller index %d outside [0, %d)", i+1, next.Caller, n)
		}
		matrix[cur.Callee][next.Caller]++
		transitions++
	}

	for _, row := range matrix {
		var sum float64
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue
		}
		for j := range row {
			row[j] /= sum
		}
	}

	m.logger.Debug("built transition matrix from %d events, %d hand-offs", len(events), transitions)
	return &TransitionReport{Matrix: matrix, Transitions: transitions}, nil
}
