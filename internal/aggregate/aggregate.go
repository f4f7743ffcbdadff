// Package aggregate merges event and adjacency artifacts collected on
// several nodes into one session. Components are renamed to
// "<node>::<component>" so indices from different nodes never collide,
// events are re-based onto absolute time and sorted globally, and the
// earliest event becomes the start of the merged session.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/logging"
	"github.com/moolen/primeline/internal/session"
	"github.com/moolen/primeline/internal/tensor"
)

// NodeInput names one node's exported artifacts. AdjacencyPath may be
// empty when the node exported events only.
type NodeInput struct {
	NodeID        string
	EventsPath    string
	AdjacencyPath string
}

// Result holds the merged session together with the per-node load
// reports collected on the way in. Adjacency is nil when no input
// carried an adjacency artifact.
type Result struct {
	Events    *artifact.SessionEvents
	Adjacency *artifact.Adjacency
	Reports   map[string]*artifact.LoadReport
}

// Write stores the merged artifacts under the given session handle and
// stamps both with its id.
func (r *Result) Write(sess *session.Session) error {
	r.Events.SessionID = sess.ID
	if err := artifact.WriteEvents(sess.EventsPath(), r.Events); err != nil {
		return fmt.Errorf("failed to write merged events: %w", err)
	}
	if r.Adjacency != nil {
		r.Adjacency.SessionID = sess.ID
		if err := artifact.WriteAdjacency(sess.AdjacencyPath(), r.Adjacency); err != nil {
			return fmt.Errorf("failed to write merged adjacency: %w", err)
		}
	}
	return nil
}

type nodeData struct {
	input  NodeInput
	events *artifact.SessionEvents
	report *artifact.LoadReport
	adj    *artifact.Adjacency
}

// Merger combines artifacts from several nodes.
type Merger struct {
	logger *logging.Logger
}

// NewMerger creates a Merger.
func NewMerger() *Merger {
	return &Merger{logger: logging.GetLogger("aggregate")}
}

// Merge loads every input in parallel and combines them into a single
// event artifact plus, when at least one node carries one, a single
// adjacency artifact.
//
// Label conflicts keep the assignment of the earliest node and log a
// warning. A prime bound to different labels on different nodes cannot
// be reconciled and fails the merge, because composites from the later
// node would decode through the wrong label.
func (m *Merger) Merge(ctx context.Context, inputs []NodeInput, opts ...artifact.LoadOption) (*Result, error) {
	if len(inputs) == 0 {
		return nil, NewMergeError("no node inputs to merge")
	}
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if in.NodeID == "" {
			return nil, NewMergeError("node id must not be empty")
		}
		if _, dup := seen[in.NodeID]; dup {
			return nil, NewMergeError("duplicate node id %q", in.NodeID)
		}
		seen[in.NodeID] = struct{}{}
	}

	nodes := make([]nodeData, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			events, report, err := artifact.LoadEvents(in.EventsPath, opts...)
			if err != nil {
				return fmt.Errorf("node %s: %w", in.NodeID, err)
			}
			nd := nodeData{input: in, events: events, report: report}
			if in.AdjacencyPath != "" {
				adj, err := artifact.LoadAdjacency(in.AdjacencyPath)
				if err != nil {
					return fmt.Errorf("node %s: %w", in.NodeID, err)
				}
				if err := artifact.CheckConsistency(events, adj); err != nil {
					return fmt.Errorf("node %s: %w", in.NodeID, err)
				}
				nd.adj = adj
			}
			nodes[i] = nd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m.combine(nodes)
}

func (m *Merger) combine(nodes []nodeData) (*Result, error) {
	result := &Result{Reports: make(map[string]*artifact.LoadReport, len(nodes))}

	primeMap := make(map[string]uint64)
	labelByPrime := make(map[uint64]string)
	relations := make(map[string]uint64)
	relationByPrime := make(map[uint64]string)
	var components []string
	offsets := make([]int, len(nodes))

	for i, nd := range nodes {
		result.Reports[nd.input.NodeID] = nd.report

		for _, label := range sortedKeys(nd.events.Space.PrimeMap()) {
			prime, _ := nd.events.Space.PrimeOf(label)
			if prev, ok := primeMap[label]; ok {
				if prev != prime {
					m.logger.WarnWithFields("conflicting prime for label, keeping the first assignment",
						logging.Field("node", nd.input.NodeID),
						logging.Field("label", label),
						logging.Field("kept", prev),
						logging.Field("ignored", prime))
				}
				continue
			}
			if owner, taken := labelByPrime[prime]; taken {
				return nil, NewMergeError("prime %d is bound to both %q and %q, the label spaces cannot merge", prime, owner, label)
			}
			primeMap[label] = prime
			labelByPrime[prime] = label
		}

		offsets[i] = len(components)
		for _, name := range nd.events.Components {
			components = append(components, nd.input.NodeID+"::"+name)
		}

		if nd.adj == nil {
			continue
		}
		for _, kind := range sortedKeys(nd.adj.Relations) {
			prime := nd.adj.Relations[kind]
			if prev, ok := relations[kind]; ok {
				if prev != prime {
					m.logger.WarnWithFields("conflicting prime for relation, keeping the first assignment",
						logging.Field("node", nd.input.NodeID),
						logging.Field("relation", kind),
						logging.Field("kept", prev),
						logging.Field("ignored", prime))
				}
				continue
			}
			if owner, taken := relationByPrime[prime]; taken {
				return nil, NewMergeError("relation prime %d is bound to both %q and %q, the relation maps cannot merge", prime, owner, kind)
			}
			relations[kind] = prime
			relationByPrime[prime] = kind
		}
	}

	space, err := codec.LabelSpaceFromPrimes(primeMap)
	if err != nil {
		return nil, fmt.Errorf("merged prime map is invalid: %w", err)
	}

	events, start := m.mergeEvents(nodes, offsets)
	result.Events = &artifact.SessionEvents{
		Start:       start,
		Description: fmt.Sprintf("aggregated from %d nodes", len(nodes)),
		Space:       space,
		Components:  components,
		Events:      events,
	}

	if edges, any := mergeEdges(nodes, offsets); any {
		result.Adjacency = &artifact.Adjacency{
			Nodes:     components,
			Relations: relations,
			Edges:     edges,
		}
	}

	m.logger.InfoWithFields("merged node sessions",
		logging.Field("nodes", len(nodes)),
		logging.Field("components", len(components)),
		logging.Field("events", len(events)))
	return result, nil
}

// mergeEvents lifts every event onto absolute time using its node's
// session start, sorts the union, and re-bases the relative timestamps
// onto the earliest event. Ties keep node input order.
func (m *Merger) mergeEvents(nodes []nodeData, offsets []int) ([]tensor.Event, time.Time) {
	type absEvent struct {
		abs   float64
		event tensor.Event
	}

	var all []absEvent
	for i, nd := range nodes {
		base := 0.0
		if !nd.events.Start.IsZero() {
			base = artifact.TimeToUnixSeconds(nd.events.Start)
		}
		for _, ev := range nd.events.Events {
			all = append(all, absEvent{
				abs: base + ev.Time,
				event: tensor.Event{
					Caller:    ev.Caller + offsets[i],
					Callee:    ev.Callee + offsets[i],
					Composite: ev.Composite,
					LogValue:  ev.LogValue,
				},
			})
		}
	}
	if len(all) == 0 {
		return nil, earliestStart(nodes)
	}

	sort.SliceStable(all, func(a, b int) bool { return all[a].abs < all[b].abs })

	t0 := all[0].abs
	events := make([]tensor.Event, len(all))
	for i, ae := range all {
		ae.event.Time = ae.abs - t0
		events[i] = ae.event
	}
	return events, artifact.UnixSecondsToTime(t0)
}

// mergeEdges remaps every node's edges into the merged index space.
// Node offsets keep the ranges disjoint and the loader rejects
// repeated cells, so no two edges can land on the same merged cell.
func mergeEdges(nodes []nodeData, offsets []int) ([]artifact.Edge, bool) {
	any := false
	var edges []artifact.Edge
	for i, nd := range nodes {
		if nd.adj == nil {
			continue
		}
		any = true
		for _, e := range nd.adj.Edges {
			edges = append(edges, artifact.Edge{
				Row:   e.Row + offsets[i],
				Col:   e.Col + offsets[i],
				Prime: e.Prime,
			})
		}
	}
	if !any {
		return nil, false
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].Row != edges[b].Row {
			return edges[a].Row < edges[b].Row
		}
		return edges[a].Col < edges[b].Col
	})
	return edges, true
}

// earliestStart picks the earliest non-zero session start, for merges
// that carry no events at all.
func earliestStart(nodes []nodeData) time.Time {
	var earliest time.Time
	for _, nd := range nodes {
		s := nd.events.Start
		if s.IsZero() {
			continue
		}
		if earliest.IsZero() || s.Before(earliest) {
			earliest = s
		}
	}
	return earliest
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
