package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/tensor"
)

func statsTestCodec(t *testing.T) *codec.Codec {
	t.Helper()
	c, err := codec.NewCodec(codec.DefaultLabelSpace())
	require.NoError(t, err)
	return c
}

func TestBuildStats(t *testing.T) {
	components := []string{"auth", "db", "cache"}
	events := []tensor.Event{
		{Time: 0, Caller: 0, Callee: 1, Composite: 14, LogValue: math.Log(14)},
		{Time: 1, Caller: 1, Callee: 2, Composite: 2, LogValue: math.Log(2)},
		{Time: 2, Caller: 0, Callee: 1, Composite: 1, LogValue: 0},
	}

	report, err := BuildStats(events, components, statsTestCodec(t), 0)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalEvents)
	assert.Equal(t, 2, report.ErrorEvents)
	assert.InDelta(t, math.Log(14)+math.Log(2), report.TotalWeight, 1e-12)

	require.Len(t, report.Labels, 2)
	assert.Equal(t, LabelCount{Label: "timeout", Count: 2}, report.Labels[0])
	assert.Equal(t, LabelCount{Label: "network_error", Count: 1}, report.Labels[1])

	require.Len(t, report.TopCallers, 2)
	assert.Equal(t, "auth", report.TopCallers[0].Component)
	assert.Equal(t, 2, report.TopCallers[0].Events)
	assert.InDelta(t, math.Log(14), report.TopCallers[0].Weight, 1e-12)
	assert.Equal(t, "db", report.TopCallers[1].Component)

	require.Len(t, report.TopCallees, 2)
	assert.Equal(t, "db", report.TopCallees[0].Component)
	assert.InDelta(t, math.Log(14), report.TopCallees[0].Weight, 1e-12)
	assert.Equal(t, "cache", report.TopCallees[1].Component)
}

func TestBuildStatsTopNTruncation(t *testing.T) {
	components := []string{"a", "b", "c"}
	events := []tensor.Event{
		{Caller: 0, Callee: 1, Composite: 2, LogValue: math.Log(2)},
		{Caller: 1, Callee: 2, Composite: 3, LogValue: math.Log(3)},
		{Caller: 2, Callee: 0, Composite: 5, LogValue: math.Log(5)},
	}

	report, err := BuildStats(events, components, statsTestCodec(t), 1)
	require.NoError(t, err)

	require.Len(t, report.TopCallers, 1)
	assert.Equal(t, "c", report.TopCallers[0].Component)
	require.Len(t, report.TopCallees, 1)
	assert.Equal(t, "a", report.TopCallees[0].Component)
}

func TestBuildStatsEmpty(t *testing.T) {
	report, err := BuildStats(nil, []string{"a"}, statsTestCodec(t), 0)
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalEvents)
	assert.Empty(t, report.Labels)
	assert.Empty(t, report.TopCallers)
	assert.Empty(t, report.TopCallees)
}

func TestBuildStatsValidation(t *testing.T) {
	events := []tensor.Event{{Caller: 3, Callee: 0, Composite: 2, LogValue: 1}}
	_, err := BuildStats(events, []string{"a", "b"}, statsTestCodec(t), 0)
	require.Error(t, err)
	assert.True(t, tensor.IsIndexOutOfRangeError(err))
}
