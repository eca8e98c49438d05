package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockParser struct {
	lang string
	exts []string
	err  error
}

func (m mockParser) Language() string {
	return m.lang
}

func (m mockParser) Extensions() []string {
	return m.exts
}

func (m mockParser) Parse(filename string, content []byte) (*FileAnalysis, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &FileAnalysis{
		Entities: []Entity{
			{Name: "mock", Kind: KindFunction, StartLine: 1, EndLine: 1, SourceText: "x"},
		},
		Functions: []FunctionFacts{{
			Index:     0,
			Calls:     []string{"b", "a", "b"},
			CallSites: []CallSite{{Name: "b", Line: 3}, {Name: "a", Line: 2}, {Name: "b", Line: 1}},
		}},
		Imports: []string{"./z", "./a", "./z"},
	}, nil
}

func TestRegistryGetParserForFile(t *testing.T) {
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	p, ok := r.GetParserForFile("demo.MOCK")
	require.True(t, ok, "expected parser for .MOCK extension")
	assert.Equal(t, "mock", p.Language())

	_, ok = r.GetParserForFile("demo.txt")
	assert.False(t, ok)
	assert.Equal(t, []string{".mock"}, r.SupportedExtensions())
	assert.Equal(t, []string{"mock"}, r.Languages())
}

func TestParseFileNormalizesAnalysis(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "demo.mock")
	mustWriteFile(t, path, "line1\nline2\n")

	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	analysis, err := r.ParseFile(path)
	require.NoError(t, err)

	assert.Equal(t, path, analysis.Path)
	assert.Equal(t, "mock", analysis.Language)
	assert.Equal(t, int64(12), analysis.SizeBytes)
	assert.Equal(t, 3, analysis.LineCount)
	assert.Len(t, analysis.Hash, 16)
	assert.Equal(t, []string{"./a", "./z"}, analysis.Imports)
	assert.Equal(t, path, analysis.Entities[0].FilePath)
	assert.Equal(t, []string{"a", "b"}, analysis.Functions[0].Calls)
	assert.Equal(t, []CallSite{{Name: "b", Line: 1}, {Name: "a", Line: 2}}, analysis.Functions[0].CallSites)
}

func TestParseFileUnsupportedAndFailure(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(mockParser{lang: "broken", exts: []string{".bad"}, err: ErrParseFailure})

	_, err := r.ParseFile(filepath.Join(root, "x.txt"))
	assert.True(t, errors.Is(err, ErrUnsupportedFile))

	bad := filepath.Join(root, "x.bad")
	mustWriteFile(t, bad, "?")
	_, err = r.ParseFile(bad)
	assert.True(t, errors.Is(err, ErrParseFailure))

	_, err = r.ParseFile(filepath.Join(root, "missing.bad"))
	assert.True(t, os.IsNotExist(err))
}

func TestSourceLines(t *testing.T) {
	lines := SplitLines("a\nb\nc\nd")
	assert.Equal(t, "b\nc", SourceLines(lines, 2, 3))
	assert.Equal(t, "d", SourceLines(lines, 4, 9))
	assert.Equal(t, "", SourceLines(lines, 3, 2))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("arrow_function")
	require.NoError(t, err)
	assert.Equal(t, KindArrowFunction, k)
	assert.True(t, k.IsCallable())
	assert.False(t, KindClass.IsCallable())

	_, err = ParseKind("struct")
	assert.Error(t, err)
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
