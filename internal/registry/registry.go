// Package registry keeps the ordered component catalog behind
// components.yaml: which components exist, what they are, and which
// components they depend on through which relation kind. Registration
// order fixes the row each component occupies in every derived matrix,
// so the catalog is the single source of the adjacency artifact.
package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/logging"
)

const (
	// DefaultFileName is the catalog file written next to the session data.
	DefaultFileName = "components.yaml"

	// FileVersion is written to every catalog file.
	FileVersion = "1.0"

	// DefaultRelation is assumed when a dependency declares no kind.
	DefaultRelation = "sync"
)

// TypedDependency links a component to one of its callees through a
// relation kind.
type TypedDependency struct {
	Callee   string `yaml:"callee"`
	Relation string `yaml:"relation"`
}

// Component is one catalog entry.
type Component struct {
	Name              string            `yaml:"name"`
	Type              string            `yaml:"type"`
	Signature         string            `yaml:"signature"`
	Dependencies      []string          `yaml:"dependencies"`
	TypedDependencies []TypedDependency `yaml:"typed_dependencies"`
	RegistrationOrder int               `yaml:"registration_order"`
}

type catalogFile struct {
	Version         string          `yaml:"version"`
	TotalComponents int             `yaml:"total_components"`
	Components      []Component     `yaml:"components"`
	Adjacency       *adjacencyBlock `yaml:"adjacency_matrix,omitempty"`
}

// adjacencyBlock mirrors the artifact layout inside the catalog so the
// file stays readable without loading the JSON artifact.
type adjacencyBlock struct {
	Nodes          []string          `yaml:"nodes"`
	CSR            csrBlock          `yaml:"csr_format"`
	RelationPrimes map[string]uint64 `yaml:"relation_prime_map"`
}

type csrBlock struct {
	Data    []uint64 `yaml:"data"`
	Indices []int    `yaml:"indices"`
	RowPtrs []int    `yaml:"row_ptrs"`
}

// Registry is the in-memory catalog bound to one components.yaml path.
type Registry struct {
	path      string
	relations map[string]uint64
	byName    map[string]*Component
	counter   int
	logger    *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithRelationPrimes replaces the default relation prime map.
func WithRelationPrimes(relations map[string]uint64) Option {
	return func(r *Registry) {
		r.relations = make(map[string]uint64, len(relations))
		for name, prime := range relations {
			r.relations[name] = prime
		}
	}
}

// New opens the catalog at path, loading any existing file. A missing
// file yields an empty catalog bound to that path.
func New(path string, opts ...Option) (*Registry, error) {
	if path == "" {
		path = DefaultFileName
	}
	r := &Registry{
		path:      path,
		relations: DefaultRelationPrimes(),
		byName:    make(map[string]*Component),
		logger:    logging.GetLogger("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := validateRelationPrimes(r.relations); err != nil {
		return nil, err
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the catalog file path the registry is bound to.
func (r *Registry) Path() string {
	return r.path
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	return len(r.byName)
}

// RelationPrimes returns a copy of the configured relation prime map.
func (r *Registry) RelationPrimes() map[string]uint64 {
	relations := make(map[string]uint64, len(r.relations))
	for name, prime := range r.relations {
		relations[name] = prime
	}
	return relations
}

// Register adds a component or updates an existing one in place. An
// update keeps the original registration order. Dependencies carrying
// an unknown relation kind are rejected against the configured map; an
// empty kind falls back to DefaultRelation.
func (r *Registry) Register(name, componentType, signature string, deps ...TypedDependency) (*Component, error) {
	if name == "" {
		return nil, NewRegistryError("component name must not be empty")
	}

	seen := make(map[TypedDependency]bool, len(deps))
	typed := make([]TypedDependency, 0, len(deps))
	plain := make([]string, 0, len(deps))
	for _, dep := range deps {
		if dep.Callee == "" {
			return nil, NewRegistryError("component %q declares a dependency with no callee", name)
		}
		if dep.Callee == name {
			return nil, NewRegistryError("component %q cannot depend on itself", name)
		}
		if dep.Relation == "" {
			dep.Relation = DefaultRelation
		}
		if _, known := r.relations[dep.Relation]; !known {
			return nil, NewRegistryError("component %q uses unknown relation kind %q (known: %s)",
				name, dep.Relation, strings.Join(r.relationKinds(), ", "))
		}
		if seen[dep] {
			continue
		}
		seen[dep] = true
		typed = append(typed, dep)
		if !containsString(plain, dep.Callee) {
			plain = append(plain, dep.Callee)
		}
	}

	if existing, ok := r.byName[name]; ok {
		existing.Type = componentType
		existing.Signature = signature
		existing.Dependencies = plain
		existing.TypedDependencies = typed
		r.logger.DebugWithFields("updated component registration",
			logging.Field("component", name),
			logging.Field("order", existing.RegistrationOrder))
		return existing, nil
	}

	c := &Component{
		Name:              name,
		Type:              componentType,
		Signature:         signature,
		Dependencies:      plain,
		TypedDependencies: typed,
		RegistrationOrder: r.counter,
	}
	r.counter++
	r.byName[name] = c
	r.logger.DebugWithFields("registered component",
		logging.Field("component", name),
		logging.Field("order", c.RegistrationOrder))
	return c, nil
}

// Get returns a copy of the named catalog entry.
func (r *Registry) Get(name string) (Component, bool) {
	c, ok := r.byName[name]
	if !ok {
		return Component{}, false
	}
	return *c, true
}

// Components returns catalog entries in registration order, optionally
// filtered by component type.
func (r *Registry) Components(typeFilter string) []Component {
	out := make([]Component, 0, len(r.byName))
	for _, c := range r.byName {
		if typeFilter != "" && c.Type != typeFilter {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegistrationOrder != out[j].RegistrationOrder {
			return out[i].RegistrationOrder < out[j].RegistrationOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MissingDependencies lists declared callees that are not registered.
// The adjacency build silently leaves such edges out, so callers
// wanting strictness check this first.
func (r *Registry) MissingDependencies() []string {
	var problems []string
	for _, c := range r.Components("") {
		for _, dep := range c.TypedDependencies {
			if _, ok := r.byName[dep.Callee]; !ok {
				problems = append(problems, fmt.Sprintf("component %q depends on unregistered %q", c.Name, dep.Callee))
			}
		}
	}
	return problems
}

// Adjacency builds the declared dependency matrix in registration
// order. A pair linked through several relation kinds carries each
// relation prime once in its combined weight.
func (r *Registry) Adjacency() *artifact.Adjacency {
	ordered := r.Components("")
	nodes := make([]string, len(ordered))
	index := make(map[string]int, len(ordered))
	for i, c := range ordered {
		nodes[i] = c.Name
		index[c.Name] = i
	}

	cells := make(map[[2]int]uint64)
	for i, c := range ordered {
		for _, dep := range c.TypedDependencies {
			j, ok := index[dep.Callee]
			if !ok {
				continue
			}
			key := [2]int{i, j}
			prime := r.relations[dep.Relation]
			if prev, merged := cells[key]; merged {
				cells[key] = codec.LCM(prev, prime)
			} else {
				cells[key] = prime
			}
		}
	}

	edges := make([]artifact.Edge, 0, len(cells))
	for key, weight := range cells {
		edges = append(edges, artifact.Edge{Row: key[0], Col: key[1], Prime: weight})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Row != edges[j].Row {
			return edges[i].Row < edges[j].Row
		}
		return edges[i].Col < edges[j].Col
	})

	return &artifact.Adjacency{
		Nodes:     nodes,
		Relations: r.RelationPrimes(),
		Edges:     edges,
	}
}

// ExportAdjacency writes the adjacency artifact for the current catalog.
func (r *Registry) ExportAdjacency(path string) error {
	return artifact.WriteAdjacency(path, r.Adjacency())
}

// Save writes the catalog atomically, embedding the derived adjacency
// block so the file stands on its own.
func (r *Registry) Save() error {
	file := catalogFile{
		Version:         FileVersion,
		TotalComponents: r.Len(),
		Components:      r.Components(""),
	}

	block := &adjacencyBlock{
		Nodes:          []string{},
		CSR:            csrBlock{Data: []uint64{}, Indices: []int{}, RowPtrs: []int{0}},
		RelationPrimes: r.RelationPrimes(),
	}
	if r.Len() > 0 {
		doc, err := artifact.BuildAdjacencyDocument(r.Adjacency())
		if err != nil {
			return err
		}
		block.Nodes = doc.Nodes
		block.CSR = csrBlock{Data: doc.CSR.Data, Indices: doc.CSR.Indices, RowPtrs: doc.CSR.RowPtrs}
	}
	file.Adjacency = block

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal component catalog: %w", err)
	}
	if err := artifact.WriteFileAtomic(r.path, data); err != nil {
		return err
	}
	r.logger.InfoWithFields("wrote component catalog",
		logging.Field("path", r.path),
		logging.Field("components", r.Len()))
	return nil
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read component catalog %s: %w", r.path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return NewRegistryError("failed to parse component catalog %s: %v", r.path, err)
	}
	for i := range file.Components {
		c := file.Components[i]
		if c.Name == "" {
			return NewRegistryError("catalog entry %d has no name", i)
		}
		if _, dup := r.byName[c.Name]; dup {
			return NewRegistryError("catalog lists component %q twice", c.Name)
		}
		clone := c
		r.byName[c.Name] = &clone
		if c.RegistrationOrder >= r.counter {
			r.counter = c.RegistrationOrder + 1
		}
	}
	if file.TotalComponents > 0 && file.TotalComponents != len(file.Components) {
		r.logger.WarnWithFields("catalog total_components disagrees with entry count",
			logging.Field("declared", file.TotalComponents),
			logging.Field("entries", len(file.Components)))
	}
	return nil
}

func (r *Registry) relationKinds() []string {
	kinds := make([]string, 0, len(r.relations))
	for kind := range r.relations {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
