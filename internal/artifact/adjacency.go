package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/moolen/primeline/internal/codec"
)

// AdjacencyMetadata describes an adjacency artifact.
type AdjacencyMetadata struct {
	SessionID     string `json:"session_id,omitempty"`
	Timestamp     string `json:"timestamp"`
	NComponents   int    `json:"n_components"`
	FormatVersion string `json:"format_version"`
}

// CSRMatrix is the compressed sparse row layout of the adjacency
// weights.
type CSRMatrix struct {
	Data    []uint64 `json:"data"`
	Indices []int    `json:"indices"`
	RowPtrs []int    `json:"row_ptrs"`
}

// AdjacencyDocument is the raw JSON layout of an adjacency artifact.
// The CSR block and the triples list carry the same cells twice; a load
// fails when both are present and they disagree.
type AdjacencyDocument struct {
	Metadata       AdjacencyMetadata `json:"metadata"`
	Nodes          []string          `json:"nodes"`
	RelationPrimes map[string]uint64 `json:"relation_prime_map"`
	CSR            *CSRMatrix        `json:"adjacency_csr,omitempty"`
	Triples        [][]uint64        `json:"adjacency_triples,omitempty"`
	TriplesSchema  []string          `json:"triples_schema,omitempty"`
}

// Edge is one directed dependency cell. Prime holds the product of the
// relation primes present on the edge.
type Edge struct {
	Row   int
	Col   int
	Prime uint64
}

// Adjacency is the in-memory form of an adjacency artifact.
type Adjacency struct {
	SessionID string
	Nodes     []string
	Relations map[string]uint64
	Edges     []Edge
}

// Weight returns the stored weight of cell (row, col), or zero when the
// edge is absent.
func (a *Adjacency) Weight(row, col int) uint64 {
	for _, e := range a.Edges {
		if e.Row == row && e.Col == col {
			return e.Prime
		}
	}
	return 0
}

// EdgeRelations decodes an edge weight into the relation names whose
// primes divide it, ordered by prime. Factors outside the relation map
// report as "unknown".
func (a *Adjacency) EdgeRelations(weight uint64) []string {
	if weight < 2 {
		return nil
	}
	type relation struct {
		name  string
		prime uint64
	}
	relations := make([]relation, 0, len(a.Relations))
	for name, prime := range a.Relations {
		relations = append(relations, relation{name: name, prime: prime})
	}
	sort.Slice(relations, func(i, j int) bool { return relations[i].prime < relations[j].prime })

	var names []string
	residue := weight
	for _, r := range relations {
		if r.prime < 2 {
			continue
		}
		if residue%r.prime == 0 {
			names = append(names, r.name)
			for residue%r.prime == 0 {
				residue /= r.prime
			}
		}
	}
	if residue > 1 {
		names = append(names, codec.LabelUnknown)
	}
	return names
}

// LoadAdjacency reads and validates an adjacency artifact file.
func LoadAdjacency(path string) (*Adjacency, error) {
	f, err := NewFileReader().Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseAdjacency(f)
}

// ParseAdjacency decodes an adjacency artifact from a reader. Either
// the CSR block or the triples list may stand alone; when both are
// present they must agree cell for cell.
func ParseAdjacency(r io.Reader) (*Adjacency, error) {
	var doc AdjacencyDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, NewFormatError("failed to decode adjacency artifact: %v", err)
	}
	if _, err := checkFormatVersion(doc.Metadata.FormatVersion, adjacencyFormatConstraint); err != nil {
		return nil, err
	}
	if len(doc.Nodes) == 0 {
		return nil, NewFormatError("artifact declares no nodes")
	}
	n := len(doc.Nodes)
	if doc.Metadata.NComponents > 0 && doc.Metadata.NComponents != n {
		return nil, NewFormatError("metadata declares %d components, artifact lists %d",
			doc.Metadata.NComponents, n)
	}
	if err := validateRelations(doc.RelationPrimes); err != nil {
		return nil, err
	}

	var (
		fromCSR     []Edge
		fromTriples []Edge
		hasCSR      bool
		hasTriples  bool
	)
	if doc.CSR != nil {
		edges, err := edgesFromCSR(doc.CSR, n)
		if err != nil {
			return nil, err
		}
		fromCSR, hasCSR = edges, true
	}
	if len(doc.Triples) > 0 {
		edges, err := edgesFromTriples(doc.Triples, n)
		if err != nil {
			return nil, err
		}
		fromTriples, hasTriples = edges, true
	}

	var edges []Edge
	switch {
	case hasCSR && hasTriples:
		if err := compareEdges(fromCSR, fromTriples); err != nil {
			return nil, err
		}
		edges = fromCSR
	case hasCSR:
		edges = fromCSR
	case hasTriples:
		edges = fromTriples
	}

	primes := sortedPrimes(doc.RelationPrimes)
	for _, e := range edges {
		if e.Prime < 2 {
			return nil, NewFormatError("cell (%d, %d) holds weight %d, want at least 2", e.Row, e.Col, e.Prime)
		}
		if residue := factorResidue(e.Prime, primes); residue > 1 {
			return nil, NewFormatError("cell (%d, %d) weight %d has factor %d outside the relation prime map",
				e.Row, e.Col, e.Prime, residue)
		}
	}

	relations := make(map[string]uint64, len(doc.RelationPrimes))
	for name, prime := range doc.RelationPrimes {
		relations[name] = prime
	}
	return &Adjacency{
		SessionID: doc.Metadata.SessionID,
		Nodes:     doc.Nodes,
		Relations: relations,
		Edges:     edges,
	}, nil
}

// WriteAdjacency persists the adjacency as a format 2.0 artifact,
// written atomically.
func WriteAdjacency(path string, a *Adjacency) error {
	doc, err := BuildAdjacencyDocument(a)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal adjacency artifact: %w", err)
	}
	return WriteFileAtomic(path, data)
}

// BuildAdjacencyDocument validates the adjacency and lays out both the
// CSR block and the triples list. Duplicate cells merge through the
// least common multiple of their weights.
func BuildAdjacencyDocument(a *Adjacency) (*AdjacencyDocument, error) {
	if a == nil {
		return nil, fmt.Errorf("adjacency must not be nil")
	}
	if len(a.Nodes) == 0 {
		return nil, NewFormatError("adjacency declares no nodes")
	}
	if err := validateRelations(a.Relations); err != nil {
		return nil, err
	}

	n := len(a.Nodes)
	cells := make(map[[2]int]uint64, len(a.Edges))
	for i, e := range a.Edges {
		if e.Row < 0 || e.Row >= n || e.Col < 0 || e.Col >= n {
			return nil, NewFormatError("edge %d: indices (%d, %d) outside [0, %d)", i, e.Row, e.Col, n)
		}
		if e.Prime < 2 {
			return nil, NewFormatError("edge %d: weight %d must be at least 2", i, e.Prime)
		}
		key := [2]int{e.Row, e.Col}
		if prev, ok := cells[key]; ok {
			cells[key] = codec.LCM(prev, e.Prime)
		} else {
			cells[key] = e.Prime
		}
	}

	keys := make([][2]int, 0, len(cells))
	for key := range cells {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	csr := &CSRMatrix{
		Data:    make([]uint64, 0, len(keys)),
		Indices: make([]int, 0, len(keys)),
		RowPtrs: make([]int, n+1),
	}
	triples := make([][]uint64, 0, len(keys))
	idx := 0
	for row := 0; row < n; row++ {
		for idx < len(keys) && keys[idx][0] == row {
			key := keys[idx]
			csr.Data = append(csr.Data, cells[key])
			csr.Indices = append(csr.Indices, key[1])
			triples = append(triples, []uint64{uint64(key[0]), uint64(key[1]), cells[key]})
			idx++
		}
		csr.RowPtrs[row+1] = idx
	}

	relations := make(map[string]uint64, len(a.Relations))
	for name, prime := range a.Relations {
		relations[name] = prime
	}
	return &AdjacencyDocument{
		Metadata: AdjacencyMetadata{
			SessionID:     a.SessionID,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			NComponents:   n,
			FormatVersion: AdjacencyFormatVersion,
		},
		Nodes:          append([]string(nil), a.Nodes...),
		RelationPrimes: relations,
		CSR:            csr,
		Triples:        triples,
		TriplesSchema:  []string{"row", "col", "prime"},
	}, nil
}

// CheckConsistency verifies that an event artifact and an adjacency
// artifact describe the same component universe, in the same order.
func CheckConsistency(events *SessionEvents, adj *Adjacency) error {
	if events == nil || adj == nil {
		return fmt.Errorf("both artifacts must be present")
	}
	if len(events.Components) != len(adj.Nodes) {
		return NewFormatError("event artifact lists %d components, adjacency lists %d",
			len(events.Components), len(adj.Nodes))
	}
	for i, name := range events.Components {
		if adj.Nodes[i] != name {
			return NewFormatError("component %d diverges between artifacts: %q vs %q", i, name, adj.Nodes[i])
		}
	}
	return nil
}

func validateRelations(relations map[string]uint64) error {
	names := make([]string, 0, len(relations))
	for name := range relations {
		names = append(names, name)
	}
	sort.Strings(names)

	byPrime := make(map[uint64]string, len(names))
	for _, name := range names {
		prime := relations[name]
		if !codec.IsPrime(prime) {
			return NewFormatError("relation %q maps to %d, which is not prime", name, prime)
		}
		if other, ok := byPrime[prime]; ok {
			return NewFormatError("relations %q and %q share prime %d", other, name, prime)
		}
		byPrime[prime] = name
	}
	return nil
}

func edgesFromCSR(csr *CSRMatrix, n int) ([]Edge, error) {
	if len(csr.RowPtrs) != n+1 {
		return nil, NewFormatError("csr row_ptrs length %d does not match %d nodes", len(csr.RowPtrs), n)
	}
	if csr.RowPtrs[0] != 0 {
		return nil, NewFormatError("csr row_ptrs must start at 0")
	}
	if len(csr.Data) != len(csr.Indices) {
		return nil, NewFormatError("csr data length %d disagrees with indices length %d",
			len(csr.Data), len(csr.Indices))
	}
	if csr.RowPtrs[n] != len(csr.Data) {
		return nil, NewFormatError("csr row_ptrs end at %d, data holds %d cells", csr.RowPtrs[n], len(csr.Data))
	}

	edges := make([]Edge, 0, len(csr.Data))
	for row := 0; row < n; row++ {
		lo, hi := csr.RowPtrs[row], csr.RowPtrs[row+1]
		if lo > hi || hi > len(csr.Data) {
			return nil, NewFormatError("csr row_ptrs must be non-decreasing and bounded by the data length")
		}
		prevCol := -1
		for i := lo; i < hi; i++ {
			col := csr.Indices[i]
			if col < 0 || col >= n {
				return nil, NewFormatError("csr column %d outside [0, %d)", col, n)
			}
			if col <= prevCol {
				return nil, NewFormatError("csr columns must be strictly increasing within row %d", row)
			}
			prevCol = col
			edges = append(edges, Edge{Row: row, Col: col, Prime: csr.Data[i]})
		}
	}
	return edges, nil
}

func edgesFromTriples(triples [][]uint64, n int) ([]Edge, error) {
	edges := make([]Edge, 0, len(triples))
	for i, triple := range triples {
		if len(triple) != 3 {
			return nil, NewFormatError("triple %d: expected 3 fields, got %d", i, len(triple))
		}
		if triple[0] >= uint64(n) || triple[1] >= uint64(n) {
			return nil, NewFormatError("triple %d: indices (%d, %d) outside [0, %d)", i, triple[0], triple[1], n)
		}
		edges = append(edges, Edge{Row: int(triple[0]), Col: int(triple[1]), Prime: triple[2]})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Row != edges[j].Row {
			return edges[i].Row < edges[j].Row
		}
		return edges[i].Col < edges[j].Col
	})
	for i := 1; i < len(edges); i++ {
		if edges[i].Row == edges[i-1].Row && edges[i].Col == edges[i-1].Col {
			return nil, NewFormatError("triple list repeats cell (%d, %d)", edges[i].Row, edges[i].Col)
		}
	}
	return edges, nil
}

func compareEdges(fromCSR, fromTriples []Edge) error {
	if len(fromCSR) != len(fromTriples) {
		return NewFormatError("csr block holds %d cells, triples list holds %d", len(fromCSR), len(fromTriples))
	}
	for i := range fromCSR {
		if fromCSR[i] != fromTriples[i] {
			return NewFormatError("cell (%d, %d) disagrees between csr and triples",
				fromCSR[i].Row, fromCSR[i].Col)
		}
	}
	return nil
}

func factorResidue(weight uint64, primes []uint64) uint64 {
	residue := weight
	for _, p := range primes {
		if p < 2 {
			continue
		}
		for residue%p == 0 {
			residue /= p
		}
	}
	return residue
}

func sortedPrimes(relations map[string]uint64) []uint64 {
	primes := make([]uint64, 0, len(relations))
	for _, p := range relations {
		primes = append(primes, p)
	}
	sort.Slice(primes, func(i, j int) bool { return primes[i] < primes[j] })
	return primes
}
