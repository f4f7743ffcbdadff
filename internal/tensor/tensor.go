// Package tensor holds the shared event record and the sparse error
// tensor the analyses consume. The tensor is built once per session from
// a closed event list and is immutable afterwards; every analysis reads a
// reduction or projection of it, so concurrent readers need no locking.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Event is one observation on a directed call. Caller and Callee are
// 0-based indices into the session's component list. Composite is the
// exact prime product; LogValue is its natural log, the form every
// aggregation works in.
type Event struct {
	Time      float64
	Caller    int
	Callee    int
	Composite uint64
	LogValue  float64
}

// ErrorTensor is a sparse n x n x T structure where T is the event count.
// Each event occupies its own temporal slot, so only the observed
// (caller, callee, slot) cells are materialized, never the dense cube.
type ErrorTensor struct {
	n     int
	cells []cell
	total float64
}

type cell struct {
	caller int
	callee int
	value  float64
}

// Build ingests an ordered event list into a tensor over n components.
// It fails with an IndexOutOfRangeError on the first event whose caller
// or callee falls outside [0, n). Batch-level leniency belongs to the
// artifact loader; by the time events reach Build they are trusted.
func Build(events []Event, n int) (*ErrorTensor, error) {
	if n <= 0 {
		return nil, NewIndexOutOfRangeError("component count must be positive, got %d", n)
	}

	t := &ErrorTensor{
		n:     n,
		cells: make([]cell, 0, len(events)),
	}
	for i, e := range events {
		if e.Caller < 0 || e.Caller >= n {
			return nil, NewIndexOutOfRangeError("event %d: caller index %d outside [0, %d)", i, e.Caller, n)
		}
		if e.Callee < 0 || e.Callee >= n {
			return nil, NewIndexOutOfRangeError("event %d: callee index %d outside [0, %d)", i, e.Callee, n)
		}
		t.cells = append(t.cells, cell{caller: e.Caller, callee: e.Callee, value: e.LogValue})
		t.total += e.LogValue
	}
	return t, nil
}

// N returns the component count.
func (t *ErrorTensor) N() int {
	return t.n
}

// T returns the number of temporal slots, one per ingested event.
func (t *ErrorTensor) T() int {
	return len(t.cells)
}

// TotalWeight returns the sum of every cell's LogValue. The conservation
// invariant ties it to the sum over ReduceOverTime.
func (t *ErrorTensor) TotalWeight() float64 {
	return t.total
}

// ReduceOverTime sums the time axis into an n x n caller-by-callee
// matrix. Cells with no events stay zero.
func (t *ErrorTensor) ReduceOverTime() *mat.Dense {
	m := mat.NewDense(t.n, t.n, nil)
	for _, c := range t.cells {
		m.Set(c.caller, c.callee, m.At(c.caller, c.callee)+c.value)
	}
	return m
}

// ProjectCaller sums every LogValue produced by component i across all
// callees and slots.
func (t *ErrorTensor) ProjectCaller(i int) (float64, error) {
	if i < 0 || i >= t.n {
		return 0, NewIndexOutOfRangeError("caller index %d outside [0, %d)", i, t.n)
	}
	var sum float64
	for _, c := range t.cells {
		if c.caller == i {
			sum += c.value
		}
	}
	return sum, nil
}

// ProjectCallee sums every LogValue received by component j across all
// callers and slots.
func (t *ErrorTensor) ProjectCallee(j int) (float64, error) {
	if j < 0 || j >= t.n {
		return 0, NewIndexOutOfRangeError("callee index %d outside [0, %d)", j, t.n)
	}
	var sum float64
	for _, c := range t.cells {
		if c.callee == j {
			sum += c.value
		}
	}
	return sum, nil
}

// CallerTotals returns ProjectCaller for every component in one pass.
func (t *ErrorTensor) CallerTotals() []float64 {
	totals := make([]float64, t.n)
	for _, c := range t.cells {
		totals[c.caller] += c.value
	}
	return totals
}

// CalleeTotals returns ProjectCallee for every component in one pass.
func (t *ErrorTensor) CalleeTotals() []float64 {
	totals := make([]float64, t.n)
	for _, c := range t.cells {
		totals[c.callee] += c.value
	}
	return totals
}

// Values returns the LogValue series in slot order.
func (t *ErrorTensor) Values() []float64 {
	values := make([]float64, len(t.cells))
	for i, c := range t.cells {
		values[i] = c.value
	}
	return values
}

// FlattenSpatial reshapes the tensor into a T x (n*n) matrix with one row
// per time slot and one column per (caller, callee) pair, row-major by
// caller. It feeds the pattern extraction and errors on an empty tensor,
// which has no rows to decompose.
func (t *ErrorTensor) FlattenSpatial() (*mat.Dense, error) {
	if len(t.cells) == 0 {
		return nil, fmt.Errorf("cannot flatten a tensor with no events")
	}
	m := mat.NewDense(len(t.cells), t.n*t.n, nil)
	for slot, c := range t.cells {
		m.Set(slot, c.caller*t.n+c.callee, c.value)
	}
	return m, nil
}
