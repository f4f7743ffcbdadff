package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/primeline/internal/tensor"
)

func TestTransitionHandoffs(t *testing.T) {
	// Error weight moves callee(i) -> caller(i+1) for adjacent error pairs.
	events := []tensor.Event{
		{Caller: 0, Callee: 1, LogValue: 0.7},
		{Caller: 1, Callee: 2, LogValue: 0.7},
		{Caller: 0, Callee: 1, LogValue: 0.5},
		{Caller: 2, Callee: 0, LogValue: 0.9},
	}

	report, err := NewTransitionModel().Build(events, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Transitions)

	// Row 1 split its hand-offs between components 1 and 2.
	assert.InDelta(t, 0.5, report.Matrix[1][1], 1e-12)
	assert.InDelta(t, 0.5, report.Matrix[1][2], 1e-12)
	// Row 2 always handed off to component 0.
	assert.InDelta(t, 1.0, report.Matrix[2][0], 1e-12)
}

func TestTransitionRowStochastic(t *testing.T) {
	events := []tensor.Event{
		{Caller: 0, Callee: 1, LogValue: 1},
		{Caller: 1, Callee: 0, LogValue: 1},
		{Caller: 0, Callee: 2, LogValue: 1},
		{Caller: 2, Callee: 1, LogValue: 1},
		{Caller: 1, Callee: 2, LogValue: 1},
	}

	report, err := NewTransitionModel().Build(events, 3)
	require.NoError(t, err)

	for i, row := range report.Matrix {
		var sum float64
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
	}
}

func TestTransitionSkipsCleanEvents(t *testing.T) {
	// A zero LogValue breaks the chain on either side of the pair.
	events := []tensor.Event{
		{Caller: 0, Callee: 1, LogValue: 0.7},
		{Caller: 1, Callee: 2, LogValue: 0},
		{Caller: 2, Callee: 0, LogValue: 0.7},
	}

	report, err := NewTransitionModel().Build(events, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Transitions)
	for i, row := range report.Matrix {
		for j, v := range row {
			assert.Equal(t, 0.0, v, "cell (%d,%d)", i, j)
		}
	}
}

func TestTransitionZeroRowsStayZero(t *testing.T) {
	events := []tensor.Event{
		{Caller: 0, Callee: 1, LogValue: 1},
		{Caller: 1, Callee: 2, LogValue: 1},
	}

	report, err := NewTransitionModel().Build(events, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Transitions)

	// Components 0, 2 and 3 never handed an error off.
	for _, i := range []int{0, 2, 3} {
		for j, v := range report.Matrix[i] {
			assert.Equal(t, 0.0, v, "cell (%d,%d)", i, j)
		}
	}
}

func TestTransitionValidation(t *testing.T) {
	t.Run("rejects bad component count", func(t *testing.T) {
		_, err := NewTransitionModel().Build(nil, 0)
		require.Error(t, err)
		assert.True(t, tensor.IsIndexOutOfRangeError(err))
	})

	t.Run("rejects out-of-range hand-off", func(t *testing.T) {
		events := []tensor.Event{
			{Caller: 0, Callee: 5, LogValue: 1},
			{Caller: 1, Callee: 0, LogValue: 1},
		}
		_, err := NewTransitionModel().Build(events, 3)
		require.Error(t, err)
		assert.True(t, tensor.IsIndexOutOfRangeError(err))
	})
}
