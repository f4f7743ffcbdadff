package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAdjacency() *Adjacency {
	return &Adjacency{
		SessionID: "sess-adj",
		Nodes:     []string{"auth", "db", "cache"},
		Relations: map[string]uint64{"sync": 2, "async": 3, "rpc": 5},
		Edges: []Edge{
			{Row: 0, Col: 1, Prime: 2},
			{Row: 0, Col: 2, Prime: 6},
			{Row: 2, Col: 1, Prime: 5},
		},
	}
}

func writeAdjacencyDocument(t *testing.T, doc *AdjacencyDocument) string {
	t.Helper()
	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "adjacency.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestAdjacencyRoundTrip(t *testing.T) {
	a := sampleAdjacency()
	path := filepath.Join(t.TempDir(), "adjacency_sess-adj.json")
	require.NoError(t, WriteAdjacency(path, a))

	loaded, err := LoadAdjacency(path)
	require.NoError(t, err)
	assert.Equal(t, a.SessionID, loaded.SessionID)
	assert.Equal(t, a.Nodes, loaded.Nodes)
	assert.Equal(t, a.Relations, loaded.Relations)
	assert.Equal(t, a.Edges, loaded.Edges)
}

func TestBuildAdjacencyDocumentLayout(t *testing.T) {
	doc, err := BuildAdjacencyDocument(sampleAdjacency())
	require.NoError(t, err)

	assert.Equal(t, AdjacencyFormatVersion, doc.Metadata.FormatVersion)
	assert.Equal(t, 3, doc.Metadata.NComponents)

	require.NotNil(t, doc.CSR)
	assert.Equal(t, []uint64{2, 6, 5}, doc.CSR.Data)
	assert.Equal(t, []int{1, 2, 1}, doc.CSR.Indices)
	assert.Equal(t, []int{0, 2, 2, 3}, doc.CSR.RowPtrs)

	assert.Equal(t, [][]uint64{{0, 1, 2}, {0, 2, 6}, {2, 1, 5}}, doc.Triples)
	assert.Equal(t, []string{"row", "col", "prime"}, doc.TriplesSchema)
}

func TestBuildAdjacencyDocumentMergesDuplicateCells(t *testing.T) {
	a := sampleAdjacency()
	a.Edges = []Edge{
		{Row: 0, Col: 1, Prime: 2},
		{Row: 0, Col: 1, Prime: 6},
	}

	doc, err := BuildAdjacencyDocument(a)
	require.NoError(t, err)
	// lcm(2, 6) keeps the shared sync prime at multiplicity one.
	assert.Equal(t, []uint64{6}, doc.CSR.Data)
	assert.Equal(t, [][]uint64{{0, 1, 6}}, doc.Triples)
}

func TestBuildAdjacencyDocumentValidation(t *testing.T) {
	t.Run("nil adjacency", func(t *testing.T) {
		_, err := BuildAdjacencyDocument(nil)
		assert.Error(t, err)
	})

	t.Run("no nodes", func(t *testing.T) {
		a := sampleAdjacency()
		a.Nodes = nil
		_, err := BuildAdjacencyDocument(a)
		assert.True(t, IsFormatError(err))
	})

	t.Run("edge outside node range", func(t *testing.T) {
		a := sampleAdjacency()
		a.Edges[0].Col = 7
		_, err := BuildAdjacencyDocument(a)
		assert.True(t, IsFormatError(err))
	})

	t.Run("weight below two", func(t *testing.T) {
		a := sampleAdjacency()
		a.Edges[0].Prime = 1
		_, err := BuildAdjacencyDocument(a)
		assert.True(t, IsFormatError(err))
	})

	t.Run("non-prime relation", func(t *testing.T) {
		a := sampleAdjacency()
		a.Relations["batch"] = 9
		_, err := BuildAdjacencyDocument(a)
		assert.True(t, IsFormatError(err))
	})

	t.Run("relations sharing a prime", func(t *testing.T) {
		a := sampleAdjacency()
		a.Relations["stream"] = 2
		_, err := BuildAdjacencyDocument(a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "share prime")
	})
}

func TestParseAdjacencyTriplesOnly(t *testing.T) {
	doc, err := BuildAdjacencyDocument(sampleAdjacency())
	require.NoError(t, err)
	doc.CSR = nil

	loaded, err := LoadAdjacency(writeAdjacencyDocument(t, doc))
	require.NoError(t, err)
	assert.Equal(t, sampleAdjacency().Edges, loaded.Edges)
}

func TestParseAdjacencyCSROnly(t *testing.T) {
	doc, err := BuildAdjacencyDocument(sampleAdjacency())
	require.NoError(t, err)
	doc.Triples = nil

	loaded, err := LoadAdjacency(writeAdjacencyDocument(t, doc))
	require.NoError(t, err)
	assert.Equal(t, sampleAdjacency().Edges, loaded.Edges)
}

func TestParseAdjacencyRepresentationMismatch(t *testing.T) {
	doc, err := BuildAdjacencyDocument(sampleAdjacency())
	require.NoError(t, err)
	doc.Triples[1][2] = 3

	_, err = LoadAdjacency(writeAdjacencyDocument(t, doc))
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
	assert.Contains(t, err.Error(), "disagrees between csr and triples")
}

func TestParseAdjacencyArtifactLevelFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AdjacencyDocument)
	}{
		{"version too old", func(d *AdjacencyDocument) { d.Metadata.FormatVersion = "1.0" }},
		{"version too new", func(d *AdjacencyDocument) { d.Metadata.FormatVersion = "3.0" }},
		{"version missing", func(d *AdjacencyDocument) { d.Metadata.FormatVersion = "" }},
		{"no nodes", func(d *AdjacencyDocument) { d.Nodes = nil }},
		{"component count mismatch", func(d *AdjacencyDocument) { d.Metadata.NComponents = 7 }},
		{"row_ptrs wrong length", func(d *AdjacencyDocument) { d.CSR.RowPtrs = []int{0, 3} }},
		{"row_ptrs not starting at zero", func(d *AdjacencyDocument) { d.CSR.RowPtrs = []int{1, 2, 2, 3} }},
		{"row_ptrs decreasing", func(d *AdjacencyDocument) { d.CSR.RowPtrs = []int{0, 2, 1, 3} }},
		{"data indices length mismatch", func(d *AdjacencyDocument) { d.CSR.Indices = []int{1, 2} }},
		{"row_ptrs data length mismatch", func(d *AdjacencyDocument) { d.CSR.RowPtrs = []int{0, 2, 2, 2} }},
		{"column outside range", func(d *AdjacencyDocument) { d.CSR.Indices[0] = 5 }},
		{"columns not increasing in row", func(d *AdjacencyDocument) {
			d.CSR.Indices = []int{2, 1, 1}
			d.Triples = nil
		}},
		{"weight with undeclared factor", func(d *AdjacencyDocument) {
			d.CSR.Data[0] = 7
			d.Triples[0][2] = 7
			d.RelationPrimes = map[string]uint64{"sync": 2, "async": 3}
		}},
		{"weight below two", func(d *AdjacencyDocument) {
			d.CSR.Data[0] = 1
			d.Triples[0][2] = 1
		}},
		{"triple with wrong arity", func(d *AdjacencyDocument) {
			d.Triples[0] = []uint64{0, 1}
		}},
		{"triples repeating a cell", func(d *AdjacencyDocument) {
			d.CSR = nil
			d.Triples = [][]uint64{{0, 1, 2}, {0, 1, 3}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := BuildAdjacencyDocument(sampleAdjacency())
			require.NoError(t, err)
			tc.mutate(doc)
			_, err = LoadAdjacency(writeAdjacencyDocument(t, doc))
			assert.True(t, IsFormatError(err), "expected a FormatError, got %v", err)
		})
	}
}

func TestAdjacencyWeight(t *testing.T) {
	a := sampleAdjacency()
	assert.Equal(t, uint64(6), a.Weight(0, 2))
	assert.Equal(t, uint64(2), a.Weight(0, 1))
	assert.Equal(t, uint64(0), a.Weight(1, 0))
}

func TestAdjacencyEdgeRelations(t *testing.T) {
	a := sampleAdjacency()
	assert.Equal(t, []string{"sync"}, a.EdgeRelations(2))
	assert.Equal(t, []string{"sync", "async"}, a.EdgeRelations(6))
	assert.Equal(t, []string{"rpc", "unknown"}, a.EdgeRelations(35))
	assert.Nil(t, a.EdgeRelations(1))
}

func TestCheckConsistency(t *testing.T) {
	s := sampleSession(t)
	a := sampleAdjacency()

	assert.NoError(t, CheckConsistency(s, a))

	t.Run("count mismatch", func(t *testing.T) {
		short := sampleAdjacency()
		short.Nodes = short.Nodes[:2]
		err := CheckConsistency(s, short)
		assert.True(t, IsFormatError(err))
	})

	t.Run("order mismatch", func(t *testing.T) {
		swapped := sampleAdjacency()
		swapped.Nodes = []string{"db", "auth", "cache"}
		err := CheckConsistency(s, swapped)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "diverges")
	})

	t.Run("nil inputs", func(t *testing.T) {
		assert.Error(t, CheckConsistency(nil, a))
		assert.Error(t, CheckConsistency(s, nil))
	})
}
