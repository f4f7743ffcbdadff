package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteFileAtomic(path, []byte("{}")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	require.NoError(t, WriteFileAtomic(path, []byte("[]")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not survive the rename")
}

func TestFileReaderOpen(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileReader().Open(filepath.Join(dir, "absent.json"))
		assert.Error(t, err)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := NewFileReader().Open(dir)
		assert.Error(t, err)
	})

	t.Run("regular file", func(t *testing.T) {
		path := filepath.Join(dir, "events.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		f, err := NewFileReader().Open(path)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	})
}

func TestDirectoryWalkerFindsNestedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events_a.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "events_b.JSON"), []byte("{}"), 0o644))

	paths, err := NewDirectoryWalker().WalkJSON(dir)
	require.NoError(t, err)
	assert.Len(t, paths, 2, "extension matching is case insensitive")
}
