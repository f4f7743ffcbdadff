package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeInputFromPathStoreNaming(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events_node-a.json")
	require.NoError(t, os.WriteFile(eventsPath, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adjacency_node-a.json"), []byte("{}"), 0o644))

	input := nodeInputFromPath(eventsPath)
	assert.Equal(t, "node-a", input.NodeID)
	assert.Equal(t, eventsPath, input.EventsPath)
	assert.Equal(t, filepath.Join(dir, "adjacency_node-a.json"), input.AdjacencyPath)
}

func TestNodeInputFromPathWithoutSibling(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events_node-b.json")
	require.NoError(t, os.WriteFile(eventsPath, []byte("{}"), 0o644))

	input := nodeInputFromPath(eventsPath)
	assert.Equal(t, "node-b", input.NodeID)
	assert.Empty(t, input.AdjacencyPath)
}

func TestNodeInputFromPathPlainName(t *testing.T) {
	input := nodeInputFromPath("/data/edge-west.json")
	assert.Equal(t, "edge-west", input.NodeID)
	assert.Equal(t, "/data/edge-west.json", input.EventsPath)
	assert.Empty(t, input.AdjacencyPath)
}
