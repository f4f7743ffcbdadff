package artifact

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/tensor"
)

func sampleSession(t *testing.T) *SessionEvents {
	t.Helper()
	space := codec.DefaultLabelSpace()
	enc, err := codec.NewCodec(space)
	require.NoError(t, err)

	composite, err := enc.Encode([]string{"timeout", "network_error"})
	require.NoError(t, err)

	return &SessionEvents{
		SessionID:   "sess-roundtrip",
		Start:       time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
		Description: "checkout outage",
		Space:       space,
		Components:  []string{"auth", "db", "cache"},
		Events: []tensor.Event{
			{Time: 0.5, Caller: 0, Callee: 1, Composite: 2, LogValue: math.Log(2)},
			{Time: 1.25, Caller: 1, Callee: 2, Composite: composite, LogValue: math.Log(float64(composite))},
			{Time: 3.0, Caller: 2, Callee: 0, Composite: 7, LogValue: math.Log(7)},
		},
	}
}

func writeEventDocument(t *testing.T, doc *EventDocument) string {
	t.Helper()
	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestEventArtifactRoundTrip(t *testing.T) {
	s := sampleSession(t)
	path := filepath.Join(t.TempDir(), "events_sess-roundtrip.json")
	require.NoError(t, WriteEvents(path, s))

	loaded, report, err := LoadEvents(path)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Empty(t, report.Rejected)
	assert.Empty(t, report.Advisories)
	assert.Equal(t, 3, report.Accepted)

	assert.Equal(t, s.SessionID, loaded.SessionID)
	assert.True(t, s.Start.Equal(loaded.Start), "start time should survive the round trip")
	assert.Equal(t, s.Description, loaded.Description)
	assert.Equal(t, s.Components, loaded.Components)
	assert.Equal(t, s.Events, loaded.Events)
	assert.Equal(t, s.Space.PrimeMap(), loaded.Space.PrimeMap())
}

func TestBuildEventDocumentLayout(t *testing.T) {
	s := sampleSession(t)
	doc, err := BuildEventDocument(s)
	require.NoError(t, err)

	assert.Equal(t, EventFormatVersion, doc.Metadata.FormatVersion)
	assert.Equal(t, 3, doc.Metadata.NEvents)
	assert.Equal(t, 3, doc.Metadata.NComponents)
	assert.Equal(t, []string{"time", "caller", "callee", "log_value"}, doc.EventsSchema)

	require.Len(t, doc.Events, 3)
	require.Len(t, doc.Timestamps, 3)
	require.Len(t, doc.Composites, 3)
	for i, row := range doc.Events {
		require.Len(t, row, 4)
		assert.Equal(t, doc.Timestamps[i], row[0])
	}
	assert.Equal(t, []uint64{2, s.Events[1].Composite, 7}, doc.Composites)
}

func TestBuildEventDocumentDerivesMissingComposites(t *testing.T) {
	s := sampleSession(t)
	s.Events = []tensor.Event{{Time: 1, Caller: 0, Callee: 1, LogValue: math.Log(14)}}

	doc, err := BuildEventDocument(s)
	require.NoError(t, err)
	assert.Equal(t, []uint64{14}, doc.Composites)
}

func TestBuildEventDocumentValidation(t *testing.T) {
	t.Run("nil session", func(t *testing.T) {
		_, err := BuildEventDocument(nil)
		assert.Error(t, err)
	})

	t.Run("no components", func(t *testing.T) {
		s := sampleSession(t)
		s.Components = nil
		_, err := BuildEventDocument(s)
		assert.True(t, IsFormatError(err))
	})

	t.Run("index outside component range", func(t *testing.T) {
		s := sampleSession(t)
		s.Events[0].Callee = 9
		_, err := BuildEventDocument(s)
		assert.True(t, IsFormatError(err))
	})

	t.Run("events out of order", func(t *testing.T) {
		s := sampleSession(t)
		s.Events[2].Time = 0.1
		_, err := BuildEventDocument(s)
		assert.True(t, IsFormatError(err))
	})
}

func TestParseEventsDerivesCompositesForOlderFormats(t *testing.T) {
	s := sampleSession(t)
	doc, err := BuildEventDocument(s)
	require.NoError(t, err)
	doc.Metadata.FormatVersion = "3.0"
	doc.Composites = nil

	loaded, report, err := LoadEvents(writeEventDocument(t, doc))
	require.NoError(t, err)
	assert.Empty(t, report.Rejected)
	assert.Empty(t, report.Advisories)
	assert.Equal(t, s.Events, loaded.Events)
}

func TestParseEventsPrecisionAdvisory(t *testing.T) {
	big := 54 * math.Ln2 // composite near 2^54, past the exact range
	doc := &EventDocument{
		Metadata:   EventMetadata{FormatVersion: "3.0"},
		PrimeMap:   map[string]uint64{"timeout": 2},
		Components: []string{"a", "b"},
		Events:     [][]float64{{1, 0, 1, big}},
	}

	loaded, report, err := LoadEvents(writeEventDocument(t, doc))
	require.NoError(t, err)
	assert.Empty(t, report.Rejected)
	require.Len(t, report.Advisories, 1)
	assert.Contains(t, report.Advisories[0], "precision boundary")
	require.Len(t, loaded.Events, 1)
	assert.Greater(t, loaded.Events[0].Composite, codec.PrecisionBoundary)
}

func TestParseEventsRejectsMalformedRecords(t *testing.T) {
	ln2 := math.Ln2
	doc := &EventDocument{
		Metadata:   EventMetadata{FormatVersion: EventFormatVersion},
		PrimeMap:   map[string]uint64{"timeout": 2},
		Components: []string{"a", "b"},
		Events: [][]float64{
			{0.0, 0, 1, ln2},
			{0.5, 0},
			{0.6, 0.5, 1, ln2},
			{0.7, 5, 1, ln2},
			{-1.0, 0, 1, ln2},
			{0.8, 0, 1, -0.5},
			{0.9, 0, 1, ln2},
			{0.2, 0, 1, ln2},
		},
		Composites: []uint64{2, 2, 2, 2, 2, 2, 2, 2},
	}

	loaded, report, err := LoadEvents(writeEventDocument(t, doc))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Accepted)
	require.Len(t, loaded.Events, 2)
	assert.Equal(t, 0.0, loaded.Events[0].Time)
	assert.Equal(t, 0.9, loaded.Events[1].Time)

	rejected := make(map[int]string, len(report.Rejected))
	for _, r := range report.Rejected {
		rejected[r.Index] = r.Reason
	}
	require.Len(t, rejected, 6)
	assert.Contains(t, rejected[1], "expected 4 fields")
	assert.Contains(t, rejected[2], "not an integer")
	assert.Contains(t, rejected[3], "outside")
	assert.Contains(t, rejected[4], "invalid time")
	assert.Contains(t, rejected[5], "invalid log value")
	assert.Contains(t, rejected[7], "earlier than the preceding event")
}

func TestParseEventsRejectsCompositeLogMismatch(t *testing.T) {
	doc := &EventDocument{
		Metadata:   EventMetadata{FormatVersion: EventFormatVersion},
		PrimeMap:   map[string]uint64{"timeout": 2, "file_not_found": 5},
		Components: []string{"a", "b"},
		Events: [][]float64{
			{0.0, 0, 1, math.Log(2)},
			{1.0, 0, 1, math.Log(2)},
		},
		Composites: []uint64{2, 5},
	}

	_, report, err := LoadEvents(writeEventDocument(t, doc))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accepted)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, 1, report.Rejected[0].Index)
	assert.Contains(t, report.Rejected[0].Reason, "disagrees with composite")
}

func TestParseEventsOneBased(t *testing.T) {
	doc := &EventDocument{
		Metadata:   EventMetadata{FormatVersion: EventFormatVersion},
		PrimeMap:   map[string]uint64{"timeout": 2},
		Components: []string{"a", "b"},
		Events:     [][]float64{{0.5, 1, 2, math.Ln2}},
		Composites: []uint64{2},
	}
	path := writeEventDocument(t, doc)

	loaded, report, err := LoadEvents(path, OneBased())
	require.NoError(t, err)
	assert.Empty(t, report.Rejected)
	require.Len(t, loaded.Events, 1)
	assert.Equal(t, 0, loaded.Events[0].Caller)
	assert.Equal(t, 1, loaded.Events[0].Callee)

	// Without the translation the callee index falls outside the range.
	_, report, err = LoadEvents(path)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Accepted)
	require.Len(t, report.Rejected, 1)
	assert.Contains(t, report.Rejected[0].Reason, "outside")
}

func TestParseEventsArtifactLevelFailures(t *testing.T) {
	base := func() *EventDocument {
		return &EventDocument{
			Metadata:   EventMetadata{FormatVersion: EventFormatVersion},
			PrimeMap:   map[string]uint64{"timeout": 2},
			Components: []string{"a", "b"},
			Events:     [][]float64{{0.5, 0, 1, math.Ln2}},
			Composites: []uint64{2},
		}
	}

	cases := []struct {
		name   string
		mutate func(*EventDocument)
	}{
		{"version too old", func(d *EventDocument) { d.Metadata.FormatVersion = "1.0" }},
		{"version too new", func(d *EventDocument) { d.Metadata.FormatVersion = "4.0" }},
		{"version missing", func(d *EventDocument) { d.Metadata.FormatVersion = "" }},
		{"version garbage", func(d *EventDocument) { d.Metadata.FormatVersion = "latest" }},
		{"no components", func(d *EventDocument) { d.Components = nil }},
		{"component count mismatch", func(d *EventDocument) { d.Metadata.NComponents = 5 }},
		{"event count mismatch", func(d *EventDocument) { d.Metadata.NEvents = 9 }},
		{"timestamps length mismatch", func(d *EventDocument) { d.Timestamps = []float64{0.5, 0.6} }},
		{"composites length mismatch", func(d *EventDocument) { d.Composites = []uint64{2, 2} }},
		{"non-prime in prime map", func(d *EventDocument) { d.PrimeMap["bad"] = 4 }},
		{"unsorted timestamps", func(d *EventDocument) {
			d.Events = [][]float64{{0.5, 0, 1, math.Ln2}, {0.1, 0, 1, math.Ln2}}
			d.Timestamps = []float64{0.5, 0.1}
			d.Composites = []uint64{2, 2}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := base()
			tc.mutate(doc)
			_, _, err := LoadEvents(writeEventDocument(t, doc))
			assert.True(t, IsFormatError(err), "expected a FormatError, got %v", err)
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "events.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
		_, _, err := LoadEvents(path)
		assert.True(t, IsFormatError(err))
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadEvents(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
		assert.False(t, IsFormatError(err))
	})
}

func TestParseEventsTimestampColumnAgreement(t *testing.T) {
	doc := &EventDocument{
		Metadata:   EventMetadata{FormatVersion: EventFormatVersion},
		PrimeMap:   map[string]uint64{"timeout": 2},
		Components: []string{"a", "b"},
		Events: [][]float64{
			{0.5, 0, 1, math.Ln2},
			{7.0, 0, 1, math.Ln2},
		},
		Timestamps: []float64{0.5, 1.0},
		Composites: []uint64{2, 2},
	}

	_, report, err := LoadEvents(writeEventDocument(t, doc))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accepted)
	require.Len(t, report.Rejected, 1)
	assert.Contains(t, report.Rejected[0].Reason, "disagrees with timestamps")
}
