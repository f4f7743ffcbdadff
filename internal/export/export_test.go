package export

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/tensor"
)

var exportStart = time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

func exportFixture(t *testing.T) (*Exporter, *artifact.SessionEvents) {
	t.Helper()
	space := codec.DefaultLabelSpace()
	dec, err := codec.NewCodec(space)
	require.NoError(t, err)

	s := &artifact.SessionEvents{
		SessionID:  "sess-export",
		Start:      exportStart,
		Space:      space,
		Components: []string{"auth", "db", "cache"},
		Events: []tensor.Event{
			{Time: 0.5, Caller: 0, Callee: 1, Composite: 2, LogValue: math.Log(2)},
			{Time: 10, Caller: 1, Callee: 2, Composite: 1, LogValue: 0},
			{Time: 90, Caller: 2, Callee: 0, Composite: 14, LogValue: math.Log(14)},
			{Time: 200, Caller: 0, Callee: 2, Composite: 7, LogValue: math.Log(7)},
		},
	}
	return NewExporter(dec), s
}

func TestRowsNoFilter(t *testing.T) {
	e, s := exportFixture(t)
	rows, err := e.Rows(s, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	first := rows[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "auth", first.Caller)
	assert.Equal(t, "db", first.Callee)
	assert.Equal(t, uint64(2), first.Composite)
	assert.Equal(t, []string{"timeout"}, first.Labels)
	assert.Equal(t, "2025-11-03T10:00:00.5Z", first.AbsTime)

	assert.Equal(t, []string{"none"}, rows[1].Labels)
	assert.Equal(t, []string{"timeout", "network_error"}, rows[2].Labels)
}

func TestRowsTimeFilter(t *testing.T) {
	e, s := exportFixture(t)

	rows, err := e.Rows(s, Filter{Start: exportStart.Add(60 * time.Second)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Index)
	assert.Equal(t, 3, rows[1].Index)

	rows, err = e.Rows(s, Filter{End: exportStart.Add(100 * time.Second)})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	rows, err = e.Rows(s, Filter{
		Start: exportStart.Add(60 * time.Second),
		End:   exportStart.Add(100 * time.Second),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Index)
}

func TestRowsLabelFilter(t *testing.T) {
	e, s := exportFixture(t)

	rows, err := e.Rows(s, Filter{Labels: []string{"network_error"}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Index)
	assert.Equal(t, 3, rows[1].Index)

	// "unknown" can never be in the space but is a legal filter value.
	rows, err = e.Rows(s, Filter{Labels: []string{codec.LabelUnknown}})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = e.Rows(s, Filter{Labels: []string{"frobnicate"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label space")
}

func TestRowsComponentFilter(t *testing.T) {
	e, s := exportFixture(t)

	rows, err := e.Rows(s, Filter{Component: "auth"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.True(t, r.Caller == "auth" || r.Callee == "auth")
	}

	_, err = e.Rows(s, Filter{Component: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not part of this session")
}

func TestRowsFilterValidation(t *testing.T) {
	e, s := exportFixture(t)

	t.Run("time filter without session start", func(t *testing.T) {
		noStart := *s
		noStart.Start = time.Time{}
		_, err := e.Rows(&noStart, Filter{Start: exportStart})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no start time")
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := e.Rows(s, Filter{
			Start: exportStart.Add(time.Hour),
			End:   exportStart,
		})
		assert.Error(t, err)
	})
}

func TestWriteCSV(t *testing.T) {
	e, s := exportFixture(t)
	rows, err := e.Rows(s, Filter{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "index,time,abs_time,caller,callee,composite,log_value,labels", lines[0])

	fields := strings.Split(lines[3], ",")
	require.Len(t, fields, 8)
	assert.Equal(t, "2", fields[0])
	assert.Equal(t, "90", fields[1])
	assert.Equal(t, "2025-11-03T10:01:30Z", fields[2])
	assert.Equal(t, "cache", fields[3])
	assert.Equal(t, "auth", fields[4])
	assert.Equal(t, "14", fields[5])
	assert.Equal(t, strconv.FormatFloat(math.Log(14), 'f', -1, 64), fields[6])
	assert.Equal(t, "timeout|network_error", fields[7])
}

func TestWriteJSONL(t *testing.T) {
	e, s := exportFixture(t)
	rows, err := e.Rows(s, Filter{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	var decoded Row
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	assert.Equal(t, 1, decoded.Index)
	assert.Equal(t, "db", decoded.Caller)
	assert.Equal(t, []string{"none"}, decoded.Labels)
	assert.Equal(t, uint64(1), decoded.Composite)
}

func TestWriteElastic(t *testing.T) {
	e, s := exportFixture(t)
	rows, err := e.Rows(s, Filter{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteElastic(&buf, rows, ""))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 8)
	assert.Contains(t, lines[0], `"_index":"primeline"`)

	var doc Row
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, 0, doc.Index)

	buf.Reset()
	require.NoError(t, WriteElastic(&buf, rows[:1], "errors-2025"))
	assert.Contains(t, buf.String(), `"_index":"errors-2025"`)
}

func TestWriteDispatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, nil, ""))
	assert.Contains(t, buf.String(), "index,time")

	err := Write(&buf, Format("xml"), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}

func TestParseTimeBound(t *testing.T) {
	tm, err := ParseTimeBound("", "start")
	require.NoError(t, err)
	assert.True(t, tm.IsZero())

	tm, err = ParseTimeBound("1762164000", "start")
	require.NoError(t, err)
	assert.True(t, tm.Equal(time.Unix(1762164000, 0)))

	_, err = ParseTimeBound("-5", "start")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")

	tm, err = ParseTimeBound("2025-11-03", "start")
	require.NoError(t, err)
	assert.Equal(t, 2025, tm.Year())
	assert.Equal(t, time.November, tm.Month())

	_, err = ParseTimeBound("@@@@", "end")
	assert.Error(t, err)
}
