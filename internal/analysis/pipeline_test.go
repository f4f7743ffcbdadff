package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/tensor"
)

func pipelineInput() Input {
	return Input{
		SessionID:  "test-session",
		Components: []string{"auth", "db", "cache"},
		Events: []tensor.Event{
			{Time: 0.0, Caller: 0, Callee: 1, Composite: 2, LogValue: math.Log(2)},
			{Time: 1.0, Caller: 1, Callee: 2, Composite: 14, LogValue: math.Log(14)},
			{Time: 2.5, Caller: 2, Callee: 0, Composite: 1, LogValue: 0},
			{Time: 3.0, Caller: 0, Callee: 1, Composite: 7, LogValue: math.Log(7)},
			{Time: 4.5, Caller: 1, Callee: 2, Composite: 2, LogValue: math.Log(2)},
		},
	}
}

func TestPipelineRun(t *testing.T) {
	c, err := codec.NewCodec(codec.DefaultLabelSpace())
	require.NoError(t, err)

	report, err := NewPipeline(c).Run(context.Background(), pipelineInput())
	require.NoError(t, err)

	assert.Equal(t, "test-session", report.SessionID)
	assert.Equal(t, 5, report.EventCount)
	assert.Equal(t, 3, report.ComponentCount)
	assert.Empty(t, report.Skipped)

	require.NotNil(t, report.Spectral)
	assert.Len(t, report.Spectral.Points, DefaultSampleCount/2)

	require.NotNil(t, report.Patterns)
	assert.NotEmpty(t, report.Patterns.SingularValues)

	require.NotNil(t, report.Anomalies)
	require.NotNil(t, report.Transitions)
	require.NotNil(t, report.Stats)
	assert.Equal(t, 5, report.Stats.TotalEvents)
}

func TestPipelineRecordsSkips(t *testing.T) {
	c, err := codec.NewCodec(codec.DefaultLabelSpace())
	require.NoError(t, err)

	input := Input{
		SessionID:  "sparse",
		Components: []string{"auth", "db"},
		Events: []tensor.Event{
			{Time: 0, Caller: 0, Callee: 1, Composite: 2, LogValue: math.Log(2)},
		},
	}

	report, err := NewPipeline(c).Run(context.Background(), input)
	require.NoError(t, err)

	// Spectral needs 4 points, pattern needs 2 nonzero rows; both skip.
	assert.Contains(t, report.Skipped, "spectral")
	assert.Contains(t, report.Skipped, "pattern")
	assert.Nil(t, report.Spectral)
	assert.Nil(t, report.Patterns)

	// Independent analyses still complete.
	require.NotNil(t, report.Anomalies)
	require.NotNil(t, report.Transitions)
	require.NotNil(t, report.Stats)
	assert.Equal(t, 1, report.Stats.TotalEvents)
}

func TestPipelineEmptySession(t *testing.T) {
	c, err := codec.NewCodec(codec.DefaultLabelSpace())
	require.NoError(t, err)

	report, err := NewPipeline(c).Run(context.Background(), Input{
		SessionID:  "empty",
		Components: []string{"auth"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, report.EventCount)
	assert.Contains(t, report.Skipped, "spectral")
	assert.Contains(t, report.Skipped, "pattern")
	assert.Equal(t, 0, report.Anomalies.Count)
	assert.Equal(t, 0, report.Transitions.Transitions)
	assert.Equal(t, 0, report.Stats.TotalEvents)
}

func TestPipelineBuildFailure(t *testing.T) {
	c, err := codec.NewCodec(codec.DefaultLabelSpace())
	require.NoError(t, err)

	_, err = NewPipeline(c).Run(context.Background(), Input{
		Components: []string{"auth"},
		Events:     []tensor.Event{{Caller: 7, Callee: 0}},
	})
	require.Error(t, err)
	assert.True(t, tensor.IsIndexOutOfRangeError(err))
}

func TestPipelineOptions(t *testing.T) {
	c, err := codec.NewCodec(codec.DefaultLabelSpace())
	require.NoError(t, err)

	pipe := NewPipeline(c, WithSampleCount(16), WithModes(2), WithTopN(1))
	report, err := pipe.Run(context.Background(), pipelineInput())
	require.NoError(t, err)

	require.NotNil(t, report.Spectral)
	assert.Len(t, report.Spectral.Points, 8)
	require.NotNil(t, report.Patterns)
	assert.Len(t, report.Patterns.SingularValues, 2)
	require.NotNil(t, report.Stats)
	assert.Len(t, report.Stats.TopCallers, 1)
}

func TestPipelineCountBins(t *testing.T) {
	c, err := codec.NewCodec(codec.DefaultLabelSpace())
	require.NoError(t, err)

	pipe := NewPipeline(c, WithCountBins(1.0))
	report, err := pipe.Run(context.Background(), pipelineInput())
	require.NoError(t, err)

	require.NotNil(t, report.Spectral)
	// Events span [0, 4.5]: five one-second occupancy bins.
	assert.Equal(t, 5, report.Spectral.SampleCount)
	assert.InDelta(t, 1.0, report.Spectral.SampleSpacing, 1e-12)
}
