package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomicReplacesContentAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	require.NoError(t, WriteAtomic(path, []byte("new"), 0o640))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not linger")
}

func TestWriteIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.json")

	changed, err := WriteIfChanged(path, []byte("{}"), 0o644)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = WriteIfChanged(path, []byte("{}"), 0o644)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestWriteIfMissingKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "c.yaml")

	wrote, err := WriteIfMissing(path, []byte("first"), 0o644)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = WriteIfMissing(path, []byte("second"), 0o644)
	require.NoError(t, err)
	assert.False(t, wrote)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestEncodeJSONDoesNotEscapeHTML(t *testing.T) {
	data, err := EncodeJSON(map[string]string{"k": "<a>&"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"k\": \"<a>&\"\n}\n", string(data))
}

func TestMapKeysSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, MapKeysSorted(map[string]int{"b": 1, "a": 2}))
	assert.Equal(t, []string{"x"}, DedupeStrings([]string{"x", "x"}))
}
