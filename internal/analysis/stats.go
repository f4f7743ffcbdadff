package analysis

import (
	"sort"

	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/tensor"
)

// DefaultTopN bounds the offender rankings in the stats digest.
const DefaultTopN = 10

// BuildStats produces the per-session statistics digest: decoded label
// occurrence totals, per-component error weight rollups, and top-N
// offender rankings by weight produced and received.
func BuildStats(events []tensor.Event, components []string, dec *codec.Codec, topN int) (*StatsReport, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	n := len(components)
	if n == 0 && len(events) > 0 {
		return nil, tensor.NewIndexOutOfRangeError("no components declared for %d events", len(events))
	}

	report := &StatsReport{
		Labels:     []LabelCount{},
		TopCallers: []ComponentStat{},
		TopCallees: []ComponentStat{},
	}
	labelCounts := map[string]int{}
	callers := make([]ComponentStat, n)
	callees := make([]ComponentStat, n)
	for i, name := range components {
		callers[i] = ComponentStat{Component: name, Index: i}
		callees[i] = ComponentStat{Component: name, Index: i}
	}

	for i, e := range events {
		if e.Caller < 0 || e.Caller >= n {
			return nil, tensor.NewIndexOutOfRangeError("event %d: caller index %d outside [0, %d)", i, e.Caller, n)
		}
		if e.Callee < 0 || e.Callee >= n {
			return nil, tensor.NewIndexOutOfRangeError("event %d: callee index %d outside [0, %d)", i, e.Callee, n)
		}

		report.TotalEvents++
		report.TotalWeight += e.LogValue
		if e.LogValue != 0 {
			report.ErrorEvents++
		}
		callers[e.Caller].Events++
		callers[e.Caller].Weight += e.LogValue
		callees[e.Callee].Events++
		callees[e.Callee].Weight += e.LogValue

		// A zero composite never leaves the loader; treat it as the identity.
		composite := e.Composite
		if composite == 0 {
			composite = 1
		}
		labels, err := dec.Decode(composite)
		if err != nil {
			return nil, err
		}
		for _, label := range labels {
			if label != codec.LabelNone {
				labelCounts[label]++
			}
		}
	}

	for label, count := range labelCounts {
		report.Labels = append(report.Labels, LabelCount{Label: label, Count: count})
	}
	sort.Slice(report.Labels, func(i, j int) bool {
		if report.Labels[i].Count != report.Labels[j].Count {
			return report.Labels[i].Count > report.Labels[j].Count
		}
		return report.Labels[i].Label < report.Labels[j].Label
	})

	report.TopCallers = rankComponents(callers, topN)
	report.TopCallees = rankComponents(callees, topN)
	return report, nil
}

// rankComponents orders by weight, then event count, then index, and
// drops components with no involvement at all.
func rankComponents(stats []ComponentStat, topN int) []ComponentStat {
	ranked := make([]ComponentStat, 0, len(stats))
	for _, s := range stats {
		if s.Events > 0 {
			ranked = append(ranked, s)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Weight != ranked[j].Weight {
			return ranked[i].Weight > ranked[j].Weight
		}
		if ranked[i].Events != ranked[j].Events {
			return ranked[i].Events > ranked[j].Events
		}
		return ranked[i].Index < ranked[j].Index
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
