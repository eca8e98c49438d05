package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/codr/internal/cli"
	"github.com/skelly-dev/codr/internal/indexer"
	"github.com/skelly-dev/codr/internal/query"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// codr runs the command tree in the current working directory.
func codr(t *testing.T, args ...string) []byte {
	t.Helper()
	cmd := cli.NewRootCommand(version)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--json", "--log-level", "error"}, args...))
	require.NoError(t, cmd.Execute(), out.String())
	return out.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestInitBuildQueryEditFlow(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.ts"), "export function helper() {\n  return 1;\n}\n")
	mustWriteFile(t, filepath.Join(root, "b.ts"), "import { helper } from './a';\n\nfunction main() {\n  helper();\n  unknownFn();\n}\n")
	t.Chdir(root)

	codr(t, "init", "--no-build")
	assert.FileExists(t, filepath.Join(root, ".codr.yaml"))

	first := decode[indexer.Report](t, codr(t, "build"))
	assert.Equal(t, 1, first.Generation)
	assert.Equal(t, 2, first.Processed)
	assert.Equal(t, 2, first.Edges)

	callgraph1, err := os.ReadFile(filepath.Join(root, ".codr", "metadata", "gen-000001", "callgraph.json"))
	require.NoError(t, err)

	second := decode[indexer.Report](t, codr(t, "build"))
	assert.Equal(t, 2, second.Generation)
	callgraph2, err := os.ReadFile(filepath.Join(root, ".codr", "metadata", "gen-000002", "callgraph.json"))
	require.NoError(t, err)
	assert.Equal(t, string(callgraph1), string(callgraph2), "rebuilds of an unchanged tree are byte-identical")

	hood := decode[query.NeighborhoodResult](t, codr(t, "callgraph", "main"))
	require.True(t, hood.Found)
	require.Len(t, hood.Callees, 2)
	assert.Equal(t, "helper", hood.Callees[0].FunctionName)
	assert.True(t, hood.Callees[0].Resolved)
	assert.Equal(t, "unknownFn", hood.Callees[1].FunctionName)
	assert.False(t, hood.Callees[1].Resolved)

	codr(t, "insert", "a.ts", "4", "export function extra() {\n  return helper();\n}")
	stale := decode[query.FunctionResult](t, codr(t, "function", "helper"))
	assert.True(t, stale.Stale)

	third := decode[indexer.Report](t, codr(t, "build"))
	assert.Equal(t, 3, third.Generation)
	assert.Equal(t, 3, third.Functions)

	helper := decode[query.NeighborhoodResult](t, codr(t, "callgraph", "helper"))
	require.Len(t, helper.Callers, 2)
	assert.Equal(t, "extra", helper.Callers[0].FunctionName)
	assert.Equal(t, "main", helper.Callers[1].FunctionName)
	assert.False(t, helper.Stale)

	_, err = os.Stat(filepath.Join(root, ".codr", "metadata", "gen-000001"))
	assert.True(t, os.IsNotExist(err), "generations beyond the retention window are pruned")
}
