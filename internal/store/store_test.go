package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/codr/internal/graph"
	"github.com/skelly-dev/codr/internal/metadata"
	"github.com/skelly-dev/codr/internal/parser"
)

func sampleSets(root string) metadata.RecordSets {
	a := filepath.Join(root, "a.ts")
	b := filepath.Join(root, "b.ts")
	return metadata.RecordSets{
		Functions: []parser.FunctionMetadata{
			{Name: "helper", Kind: parser.KindFunction, FilePath: a, StartLine: 1, EndLine: 3},
			{Name: "main", Kind: parser.KindFunction, FilePath: b, StartLine: 2, EndLine: 5},
		},
		Classes: []parser.ClassMetadata{
			{Name: "Widget", FilePath: a, StartLine: 5, EndLine: 9},
		},
		Files: []parser.FileMetadata{
			{FilePath: a, Language: "typescript"},
			{FilePath: b, Language: "typescript"},
		},
		CallGraph: []metadata.CallGraphNode{
			{Key: graph.NodeKey(a, "helper"), FunctionName: "helper", FilePath: a, CalledBy: []string{graph.NodeKey(b, "main")}, Resolved: true},
			{Key: graph.NodeKey(b, "main"), FunctionName: "main", FilePath: b, Calls: []string{graph.NodeKey(a, "helper")}, Resolved: true},
		},
	}
}

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := Open(root, Options{})
	require.NoError(t, err)
	return s, s.Root()
}

func TestSnapshotBeforePublishIsUninitialized(t *testing.T) {
	s, _ := openStore(t)

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrUninitialized)

	_, err = s.Load(metadata.KindFunctions)
	assert.ErrorIs(t, err, ErrUninitialized)
}

func TestPublishWritesGenerationAndCurrent(t *testing.T) {
	s, root := openStore(t)

	m, err := s.Publish(context.Background(), sampleSets(root), Manifest{BuildID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Generation)
	assert.Equal(t, 2, m.Counts["functions"])

	current, err := os.ReadFile(filepath.Join(s.Dir(), CurrentFile))
	require.NoError(t, err)
	assert.Equal(t, "gen-000001\n", string(current))

	for _, kind := range metadata.Kinds {
		assert.FileExists(t, filepath.Join(s.Dir(), "gen-000001", string(kind)+".json"))
	}
	assert.FileExists(t, filepath.Join(s.Dir(), "gen-000001", ManifestFile))
}

func TestSnapshotIndexes(t *testing.T) {
	s, root := openStore(t)
	_, err := s.Publish(context.Background(), sampleSets(root), Manifest{})
	require.NoError(t, err)

	snap, err := s.Snapshot()
	require.NoError(t, err)

	require.Len(t, snap.FunctionsNamed("helper"), 1)
	assert.Empty(t, snap.FunctionsNamed("nope"))
	require.Len(t, snap.ClassesNamed("Widget"), 1)

	f, ok := snap.FileContaining("b.ts")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "b.ts"), f.FilePath)
	_, ok = snap.FileContaining("")
	assert.False(t, ok)

	node, ok := snap.Node(graph.NodeKey(filepath.Join(root, "b.ts"), "main"))
	require.True(t, ok)
	assert.Equal(t, "main", node.FunctionName)
	assert.Len(t, snap.NodesNamed("helper"), 1)
}

func TestSnapshotLoadsFromDiskInFreshStore(t *testing.T) {
	s, root := openStore(t)
	_, err := s.Publish(context.Background(), sampleSets(root), Manifest{BuildID: "disk"})
	require.NoError(t, err)

	other, err := Open(root, Options{})
	require.NoError(t, err)
	snap, err := other.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, "disk", snap.Manifest.BuildID)
	assert.Equal(t, sampleSets(root), snap.RecordSets())
}

func TestLoadUnknownKind(t *testing.T) {
	s, root := openStore(t)
	_, err := s.Publish(context.Background(), sampleSets(root), Manifest{})
	require.NoError(t, err)

	_, err = s.Load(metadata.Kind("widgets"))
	assert.ErrorIs(t, err, ErrUnknownKind)

	records, err := s.Load(metadata.KindClasses)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRepublishIsByteIdenticalAndPrunes(t *testing.T) {
	s, root := openStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Publish(ctx, sampleSets(root), Manifest{})
		require.NoError(t, err)
	}

	gen, err := s.Generation()
	require.NoError(t, err)
	assert.Equal(t, 3, gen)

	assert.NoDirExists(t, filepath.Join(s.Dir(), "gen-000001"))
	for _, kind := range metadata.Kinds {
		prev, err := os.ReadFile(filepath.Join(s.Dir(), "gen-000002", string(kind)+".json"))
		require.NoError(t, err)
		next, err := os.ReadFile(filepath.Join(s.Dir(), "gen-000003", string(kind)+".json"))
		require.NoError(t, err)
		assert.Equal(t, prev, next, string(kind))
	}
}

func TestMarkStaleClearedByPublish(t *testing.T) {
	s, root := openStore(t)
	ctx := context.Background()
	_, err := s.Publish(ctx, sampleSets(root), Manifest{})
	require.NoError(t, err)

	target := filepath.Join(root, "a.ts")
	require.NoError(t, s.MarkStale(target))
	require.NoError(t, s.MarkStale(target))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.IsStale(target))
	assert.False(t, snap.IsStale(filepath.Join(root, "b.ts")))
	assert.Equal(t, []string{target}, snap.StaleFiles())

	_, err = s.Publish(ctx, sampleSets(root), Manifest{})
	require.NoError(t, err)
	snap, err = s.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.IsStale(target))
}

func TestPublishHonoursCancellation(t *testing.T) {
	s, root := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Publish(ctx, sampleSets(root), Manifest{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrUninitialized)
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "staging dir must be removed")
}

func TestConcurrentReadersDuringPublish(t *testing.T) {
	s, root := openStore(t)
	ctx := context.Background()
	_, err := s.Publish(ctx, sampleSets(root), Manifest{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				snap, err := s.Snapshot()
				if assert.NoError(t, err) {
					assert.Len(t, snap.Functions, 2)
				}
			}
		}()
	}
	for i := 0; i < 3; i++ {
		_, err := s.Publish(ctx, sampleSets(root), Manifest{})
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestRegistryReusesStores(t *testing.T) {
	reg, err := NewRegistry(1, Options{})
	require.NoError(t, err)

	first := t.TempDir()
	a, err := reg.Get(first)
	require.NoError(t, err)
	again, err := reg.Get(first + string(filepath.Separator))
	require.NoError(t, err)
	assert.Same(t, a, again)

	b, err := reg.Get(t.TempDir())
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 1, reg.Len())
}
