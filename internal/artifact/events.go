// Package artifact reads and writes the persisted file families: the
// event artifact (a session's prime map, component list, and event
// tuples) and the adjacency artifact (declared dependencies weighted by
// relation primes). Loading is lenient per record and strict per
// artifact: malformed records are rejected individually and the batch
// continues, while schema-level violations fail the whole load with a
// FormatError.
package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/logging"
	"github.com/moolen/primeline/internal/tensor"
)

const (
	// timeTolerance bounds the allowed disagreement between an event
	// row's time column and the timestamps array.
	timeTolerance = 1e-9

	// logTolerance bounds the allowed disagreement between a stored log
	// value and the log of its stored composite.
	logTolerance = 1e-9
)

// EventMetadata describes one session's event artifact.
type EventMetadata struct {
	SessionID      string  `json:"session_id,omitempty"`
	Timestamp      string  `json:"timestamp"`
	StartTimestamp float64 `json:"start_timestamp"`
	NEvents        int     `json:"n_events"`
	NComponents    int     `json:"n_components"`
	FormatVersion  string  `json:"format_version"`
	Description    string  `json:"description,omitempty"`
}

// EventDocument is the raw JSON layout of an event artifact. Events rows
// are [time, caller, callee, log_value]; the parallel composites array
// carries the exact integers, which float64 rows could not hold past
// 2^53.
type EventDocument struct {
	Metadata     EventMetadata     `json:"metadata"`
	PrimeMap     map[string]uint64 `json:"prime_map"`
	Components   []string          `json:"components"`
	Timestamps   []float64         `json:"timestamps"`
	Events       [][]float64       `json:"events"`
	EventsSchema []string          `json:"events_schema,omitempty"`
	Composites   []uint64          `json:"composites,omitempty"`
}

// SessionEvents is the in-memory form of one session's event artifact.
type SessionEvents struct {
	SessionID   string
	Start       time.Time
	Description string
	Space       *codec.LabelSpace
	Components  []string
	Events      []tensor.Event
}

// RecordError ties a rejected record to its reason.
type RecordError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// LoadReport summarizes a lenient load: how many records were accepted,
// which were rejected and why, and any precision advisories.
type LoadReport struct {
	Accepted   int
	Rejected   []RecordError
	Advisories []string
}

// LoadOption configures artifact loading.
type LoadOption func(*loadOptions)

type loadOptions struct {
	oneBased bool
}

// OneBased translates incoming 1-based caller/callee indices to the
// internal 0-based convention, exactly once at this boundary.
func OneBased() LoadOption {
	return func(o *loadOptions) { o.oneBased = true }
}

// LoadEvents reads, validates, and translates an event artifact file.
func LoadEvents(path string, opts ...LoadOption) (*SessionEvents, *LoadReport, error) {
	f, err := NewFileReader().Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ParseEvents(f, opts...)
}

// ParseEvents decodes an event artifact from a reader. Schema violations
// fail the load; malformed records are rejected individually on the
// returned LoadReport and the remaining records load normally.
func ParseEvents(r io.Reader, opts ...LoadOption) (*SessionEvents, *LoadReport, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.GetLogger("artifact.events")

	var doc EventDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, NewFormatError("failed to decode event artifact: %v", err)
	}
	if _, err := checkFormatVersion(doc.Metadata.FormatVersion, eventFormatConstraint); err != nil {
		return nil, nil, err
	}

	space, err := codec.LabelSpaceFromPrimes(doc.PrimeMap)
	if err != nil {
		return nil, nil, NewFormatError("invalid prime map: %v", err)
	}
	if len(doc.Components) == 0 {
		return nil, nil, NewFormatError("artifact declares no components")
	}
	if doc.Metadata.NComponents > 0 && doc.Metadata.NComponents != len(doc.Components) {
		return nil, nil, NewFormatError("metadata declares %d components, artifact lists %d",
			doc.Metadata.NComponents, len(doc.Components))
	}
	if doc.Metadata.NEvents > 0 && doc.Metadata.NEvents != len(doc.Events) {
		return nil, nil, NewFormatError("metadata declares %d events, artifact lists %d",
			doc.Metadata.NEvents, len(doc.Events))
	}
	if len(doc.Timestamps) > 0 && len(doc.Timestamps) != len(doc.Events) {
		return nil, nil, NewFormatError("timestamps length %d disagrees with events length %d",
			len(doc.Timestamps), len(doc.Events))
	}
	if len(doc.Composites) > 0 && len(doc.Composites) != len(doc.Events) {
		return nil, nil, NewFormatError("composites length %d disagrees with events length %d",
			len(doc.Composites), len(doc.Events))
	}
	if !sort.Float64sAreSorted(doc.Timestamps) {
		return nil, nil, NewFormatError("timestamps must be monotone non-decreasing")
	}

	n := len(doc.Components)
	report := &LoadReport{}
	reject := func(i int, format string, args ...interface{}) {
		report.Rejected = append(report.Rejected, RecordError{Index: i, Reason: fmt.Sprintf(format, args...)})
	}

	events := make([]tensor.Event, 0, len(doc.Events))
	lastTime := math.Inf(-1)
	for i, row := range doc.Events {
		if len(row) != 4 {
			reject(i, "expected 4 fields, got %d", len(row))
			continue
		}
		t, logValue := row[0], row[3]

		caller, ok := toIndex(row[1])
		if !ok {
			reject(i, "caller index %v is not an integer", row[1])
			continue
		}
		callee, ok := toIndex(row[2])
		if !ok {
			reject(i, "callee index %v is not an integer", row[2])
			continue
		}
		if o.oneBased {
			caller--
			callee--
		}
		if caller < 0 || caller >= n {
			reject(i, "caller index %d outside [0, %d)", caller, n)
			continue
		}
		if callee < 0 || callee >= n {
			reject(i, "callee index %d outside [0, %d)", callee, n)
			continue
		}
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			reject(i, "invalid time %v", t)
			continue
		}
		if len(doc.Timestamps) > 0 && math.Abs(t-doc.Timestamps[i]) > timeTolerance {
			reject(i, "event time %v disagrees with timestamps[%d]=%v", t, i, doc.Timestamps[i])
			continue
		}
		if math.IsNaN(logValue) || math.IsInf(logValue, 0) || logValue < 0 {
			reject(i, "invalid log value %v", logValue)
			continue
		}

		var composite uint64
		if len(doc.Composites) > 0 {
			composite = doc.Composites[i]
			if composite == 0 {
				reject(i, "composite must be positive")
				continue
			}
			if math.Abs(codec.LogValue(composite)-logValue) > logTolerance {
				reject(i, "log value %v disagrees with composite %d", logValue, composite)
				continue
			}
		} else {
			composite, ok = deriveComposite(logValue)
			if !ok {
				reject(i, "log value %v does not map to a representable composite", logValue)
				continue
			}
			if composite > codec.PrecisionBoundary {
				report.Advisories = append(report.Advisories, fmt.Sprintf(
					"event %d: derived composite %d exceeds the 2^53 precision boundary, decode is best-effort", i, composite))
			}
		}

		if t < lastTime {
			reject(i, "time %v is earlier than the preceding event", t)
			continue
		}
		lastTime = t

		events = append(events, tensor.Event{
			Time:      t,
			Caller:    caller,
			Callee:    callee,
			Composite: composite,
			LogValue:  logValue,
		})
	}
	report.Accepted = len(events)

	if len(report.Rejected) > 0 {
		logger.WarnWithFields("rejected malformed event records",
			logging.Field("rejected", len(report.Rejected)),
			logging.Field("accepted", report.Accepted))
	}

	return &SessionEvents{
		SessionID:   doc.Metadata.SessionID,
		Start:       UnixSecondsToTime(doc.Metadata.StartTimestamp),
		Description: doc.Metadata.Description,
		Space:       space,
		Components:  doc.Components,
		Events:      events,
	}, report, nil
}

// WriteEvents persists a session's events as a format 3.1 artifact,
// written atomically.
func WriteEvents(path string, s *SessionEvents) error {
	doc, err := BuildEventDocument(s)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal event artifact: %w", err)
	}
	return WriteFileAtomic(path, data)
}

// BuildEventDocument validates a session and lays out its artifact
// document.
func BuildEventDocument(s *SessionEvents) (*EventDocument, error) {
	if s == nil || s.Space == nil {
		return nil, fmt.Errorf("session and label space must not be nil")
	}
	if len(s.Components) == 0 {
		return nil, NewFormatError("session declares no components")
	}

	n := len(s.Components)
	doc := &EventDocument{
		Metadata: EventMetadata{
			SessionID:      s.SessionID,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
			StartTimestamp: TimeToUnixSeconds(s.Start),
			NEvents:        len(s.Events),
			NComponents:    n,
			FormatVersion:  EventFormatVersion,
			Description:    s.Description,
		},
		PrimeMap:     s.Space.PrimeMap(),
		Components:   append([]string(nil), s.Components...),
		Timestamps:   make([]float64, 0, len(s.Events)),
		Events:       make([][]float64, 0, len(s.Events)),
		EventsSchema: []string{"time", "caller", "callee", "log_value"},
		Composites:   make([]uint64, 0, len(s.Events)),
	}

	lastTime := math.Inf(-1)
	for i, e := range s.Events {
		if e.Caller < 0 || e.Caller >= n || e.Callee < 0 || e.Callee >= n {
			return nil, NewFormatError("event %d: indices (%d, %d) outside [0, %d)", i, e.Caller, e.Callee, n)
		}
		if e.Time < lastTime {
			return nil, NewFormatError("event %d: time %v is earlier than the preceding event", i, e.Time)
		}
		lastTime = e.Time

		composite := e.Composite
		if composite == 0 {
			var ok bool
			composite, ok = deriveComposite(e.LogValue)
			if !ok {
				return nil, NewFormatError("event %d: log value %v does not map to a representable composite", i, e.LogValue)
			}
		}

		doc.Timestamps = append(doc.Timestamps, e.Time)
		doc.Events = append(doc.Events, []float64{e.Time, float64(e.Caller), float64(e.Callee), e.LogValue})
		doc.Composites = append(doc.Composites, composite)
	}
	return doc, nil
}

// deriveComposite recovers the integer composite from a log value.
func deriveComposite(logValue float64) (uint64, bool) {
	raw := math.Round(math.Exp(logValue))
	if math.IsNaN(raw) || raw < 1 || raw >= float64(math.MaxUint64) {
		return 0, false
	}
	return uint64(raw), true
}

func toIndex(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// UnixSecondsToTime converts a start_timestamp field to a UTC time.
// Zero means the artifact did not record a start.
func UnixSecondsToTime(ts float64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// TimeToUnixSeconds converts a time to the start_timestamp field form.
func TimeToUnixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}
