// Package export renders decoded session events for external tools:
// CSV for spreadsheets and dataframe loaders, JSON Lines for stream
// processors, and Elasticsearch bulk NDJSON for direct indexing.
// Filters never drop silently: a component or label name that cannot
// match anything is an error, not an empty result.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/logging"
)

// Format selects the output rendering.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSONL   Format = "jsonl"
	FormatElastic Format = "elastic"

	// DefaultElasticIndex is the bulk index used when none is given.
	DefaultElasticIndex = "primeline"
)

// Filter restricts which events are exported. Zero times leave that
// bound open.
type Filter struct {
	Start     time.Time
	End       time.Time
	Labels    []string
	Component string
}

// Row is one decoded, filtered event.
type Row struct {
	Index     int      `json:"index"`
	Time      float64  `json:"time"`
	AbsTime   string   `json:"abs_time,omitempty"`
	Caller    string   `json:"caller"`
	Callee    string   `json:"callee"`
	Composite uint64   `json:"composite"`
	LogValue  float64  `json:"log_value"`
	Labels    []string `json:"labels"`
}

// Exporter decodes and filters a session's events.
type Exporter struct {
	dec    *codec.Codec
	logger *logging.Logger
}

// NewExporter creates an exporter over the given codec. The codec's
// label space must be the one the session was recorded with.
func NewExporter(dec *codec.Codec) *Exporter {
	return &Exporter{
		dec:    dec,
		logger: logging.GetLogger("export"),
	}
}

// Rows applies the filter and decodes the surviving events in order.
func (e *Exporter) Rows(s *artifact.SessionEvents, f Filter) ([]Row, error) {
	if s == nil {
		return nil, fmt.Errorf("session events must not be nil")
	}
	if err := e.validateFilter(s, f); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(s.Events))
	for i, ev := range s.Events {
		var abs time.Time
		if !s.Start.IsZero() {
			abs = s.Start.Add(time.Duration(ev.Time * float64(time.Second)))
		}
		if !f.Start.IsZero() && abs.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && abs.After(f.End) {
			continue
		}

		labels, err := e.dec.Decode(ev.Composite)
		if err != nil {
			return nil, fmt.Errorf("failed to decode event %d: %w", i, err)
		}
		if len(f.Labels) > 0 && !containsAny(labels, f.Labels) {
			continue
		}

		caller := s.Components[ev.Caller]
		callee := s.Components[ev.Callee]
		if f.Component != "" && caller != f.Component && callee != f.Component {
			continue
		}

		row := Row{
			Index:     i,
			Time:      ev.Time,
			Caller:    caller,
			Callee:    callee,
			Composite: ev.Composite,
			LogValue:  ev.LogValue,
			Labels:    labels,
		}
		if !abs.IsZero() {
			row.AbsTime = abs.UTC().Format(time.RFC3339Nano)
		}
		rows = append(rows, row)
	}

	e.logger.DebugWithFields("filtered events for export",
		logging.Field("total", len(s.Events)),
		logging.Field("exported", len(rows)))
	return rows, nil
}

func (e *Exporter) validateFilter(s *artifact.SessionEvents, f Filter) error {
	if (!f.Start.IsZero() || !f.End.IsZero()) && s.Start.IsZero() {
		return fmt.Errorf("session records no start time, time filters cannot be applied")
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return fmt.Errorf("end bound %s precedes start bound %s",
			f.End.Format(time.RFC3339), f.Start.Format(time.RFC3339))
	}
	if f.Component != "" && !containsString(s.Components, f.Component) {
		return fmt.Errorf("component %q is not part of this session (components: %s)",
			f.Component, strings.Join(s.Components, ", "))
	}
	space := s.Space
	for _, label := range f.Labels {
		if label == codec.LabelUnknown {
			continue
		}
		if _, ok := space.PrimeOf(label); !ok {
			return fmt.Errorf("label %q is not part of this session's label space", label)
		}
	}
	return nil
}

// Write renders rows in the given format. index applies only to the
// elastic format; empty falls back to DefaultElasticIndex.
func Write(w io.Writer, format Format, rows []Row, index string) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatJSONL:
		return WriteJSONL(w, rows)
	case FormatElastic:
		return WriteElastic(w, rows, index)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteCSV renders rows as CSV with a fixed header. Labels are joined
// with "|" inside one cell.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "time", "abs_time", "caller", "callee", "composite", "log_value", "labels"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.Index),
			strconv.FormatFloat(r.Time, 'f', -1, 64),
			r.AbsTime,
			r.Caller,
			r.Callee,
			strconv.FormatUint(r.Composite, 10),
			strconv.FormatFloat(r.LogValue, 'f', -1, 64),
			strings.Join(r.Labels, "|"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", r.Index, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL renders one JSON object per line.
func WriteJSONL(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write jsonl row %d: %w", r.Index, err)
		}
	}
	return nil
}

type bulkAction struct {
	Index bulkIndex `json:"index"`
}

type bulkIndex struct {
	Index string `json:"_index"`
}

// WriteElastic renders Elasticsearch bulk NDJSON: an action line
// followed by the document line, per event.
func WriteElastic(w io.Writer, rows []Row, index string) error {
	if index == "" {
		index = DefaultElasticIndex
	}
	enc := json.NewEncoder(w)
	action := bulkAction{Index: bulkIndex{Index: index}}
	for _, r := range rows {
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("failed to write bulk action for row %d: %w", r.Index, err)
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write bulk document for row %d: %w", r.Index, err)
		}
	}
	return nil
}

func containsAny(haystack, needles []string) bool {
	for _, needle := range needles {
		if containsString(haystack, needle) {
			return true
		}
	}
	return false
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
