// Package query answers context lookups against the current metadata snapshot.
// Lookups are total: a miss is a result with Found unset, not an error.
package query

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/skelly-dev/codr/internal/fileutil"
	"github.com/skelly-dev/codr/internal/graph"
	"github.com/skelly-dev/codr/internal/metadata"
	"github.com/skelly-dev/codr/internal/parser"
	"github.com/skelly-dev/codr/internal/store"
)

// Result wraps a single record lookup.
type Result[T any] struct {
	Found      bool   `json:"found"`
	Record     T      `json:"record"`
	Source     string `json:"source,omitempty"`
	Generation int    `json:"generation"`
	// Stale is set when the record's file changed after the generation was built.
	Stale bool `json:"stale"`
}

type FunctionResult = Result[parser.FunctionMetadata]
type ClassResult = Result[parser.ClassMetadata]
type FileResult = Result[parser.FileMetadata]

// FunctionsResult carries every function sharing a name.
type FunctionsResult struct {
	Found      bool                      `json:"found"`
	Records    []parser.FunctionMetadata `json:"records"`
	Generation int                       `json:"generation"`
	Stale      bool                      `json:"stale"`
}

// NeighborhoodResult is a node with its direct callers and callees, each sorted by key.
type NeighborhoodResult struct {
	Found      bool                     `json:"found"`
	Node       metadata.CallGraphNode   `json:"node"`
	Callers    []metadata.CallGraphNode `json:"callers"`
	Callees    []metadata.CallGraphNode `json:"callees"`
	Generation int                      `json:"generation"`
	Stale      bool                     `json:"stale"`
}

type options struct {
	source bool
}

type Option func(*options)

// WithSource attaches the current on-disk text of the record's line range and
// checks the file's content hash against the indexed one.
func WithSource() Option {
	return func(o *options) { o.source = true }
}

// Snapshotter is the part of the store the service reads from.
type Snapshotter interface {
	Snapshot() (*store.Snapshot, error)
}

// Service is read-only and safe for concurrent use.
type Service struct {
	store Snapshotter
}

func New(s Snapshotter) *Service {
	return &Service{store: s}
}

// Function returns the declaration the call graph resolves name to: the first
// top-level match in walk order, else the first match of any kind.
func (s *Service) Function(name string, opts ...Option) (FunctionResult, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return FunctionResult{}, err
	}
	res := FunctionResult{Generation: snap.Generation()}
	matches := snap.FunctionsNamed(name)
	if len(matches) == 0 {
		return res, nil
	}
	rec, _ := primaryFunction(matches)
	res.Found, res.Record = true, rec
	res.Source, res.Stale, err = inspect(snap, rec.FilePath, rec.StartLine, rec.EndLine, build(opts))
	return res, err
}

// Functions returns every function named name.
func (s *Service) Functions(name string) (FunctionsResult, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return FunctionsResult{}, err
	}
	matches := snap.FunctionsNamed(name)
	res := FunctionsResult{Found: len(matches) > 0, Records: matches, Generation: snap.Generation()}
	for _, m := range matches {
		if snap.IsStale(m.FilePath) {
			res.Stale = true
		}
	}
	return res, nil
}

func (s *Service) Class(name string, opts ...Option) (ClassResult, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return ClassResult{}, err
	}
	res := ClassResult{Generation: snap.Generation()}
	matches := snap.ClassesNamed(name)
	if len(matches) == 0 {
		return res, nil
	}
	rec, _ := primaryFunction(matches)
	res.Found, res.Record = true, rec
	res.Source, res.Stale, err = inspect(snap, rec.FilePath, rec.StartLine, rec.EndLine, build(opts))
	return res, err
}

// File returns the first file, in path order, whose path contains fragment.
func (s *Service) File(fragment string, opts ...Option) (FileResult, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return FileResult{}, err
	}
	res := FileResult{Generation: snap.Generation()}
	rec, ok := snap.FileContaining(fragment)
	if !ok {
		return res, nil
	}
	res.Found, res.Record = true, rec
	res.Source, res.Stale, err = inspect(snap, rec.FilePath, 1, rec.LineCount, build(opts))
	return res, err
}

// CallNeighborhood looks up a node by key ("file::name") or by function name.
// A bare name prefers a resolved node; keys without a node are skipped.
func (s *Service) CallNeighborhood(nameOrKey string) (NeighborhoodResult, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return NeighborhoodResult{}, err
	}
	res := NeighborhoodResult{
		Generation: snap.Generation(),
		Callers:    []metadata.CallGraphNode{},
		Callees:    []metadata.CallGraphNode{},
	}

	node, ok := findNode(snap, nameOrKey)
	if !ok {
		return res, nil
	}
	res.Found, res.Node = true, node
	res.Callers = resolveKeys(snap, node.CalledBy)
	res.Callees = resolveKeys(snap, node.Calls)
	res.Stale = snap.IsStale(node.FilePath)
	return res, nil
}

func findNode(snap *store.Snapshot, nameOrKey string) (metadata.CallGraphNode, bool) {
	if strings.Contains(nameOrKey, graph.KeySeparator) {
		return snap.Node(nameOrKey)
	}
	if rec, ok := primaryFunction(snap.FunctionsNamed(nameOrKey)); ok && !rec.Nested {
		if n, ok := snap.Node(graph.NodeKey(rec.FilePath, nameOrKey)); ok {
			return n, true
		}
	}
	candidates := snap.NodesNamed(nameOrKey)
	for _, n := range candidates {
		if n.Resolved {
			return n, true
		}
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return metadata.CallGraphNode{}, false
}

// primaryFunction picks the record the symbol table resolves calls to: the
// first top-level declaration in walk order, else the first match.
func primaryFunction(matches []parser.FunctionMetadata) (parser.FunctionMetadata, bool) {
	if len(matches) == 0 {
		return parser.FunctionMetadata{}, false
	}
	for _, m := range matches {
		if !m.Nested {
			return m, true
		}
	}
	return matches[0], true
}

func resolveKeys(snap *store.Snapshot, keys []string) []metadata.CallGraphNode {
	out := make([]metadata.CallGraphNode, 0, len(keys))
	for _, key := range keys {
		if n, ok := snap.Node(key); ok {
			out = append(out, n)
		}
	}
	return out
}

func build(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// inspect reports staleness and, when requested, reads the current text of lines start..end.
func inspect(snap *store.Snapshot, path string, start, end int, o options) (string, bool, error) {
	stale := snap.IsStale(path)
	if !o.source {
		return "", stale, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", true, nil
	}
	if err != nil {
		return "", stale, fmt.Errorf("read source %s: %w", path, err)
	}

	if file, ok := snap.FileByPath(path); ok && file.Hash != "" {
		hash, err := fileutil.HashFile(path)
		if err != nil {
			return "", stale, fmt.Errorf("hash %s: %w", path, err)
		}
		if hash != file.Hash {
			stale = true
		}
	}
	return parser.SourceLines(parser.SplitLines(string(content)), start, end), stale, nil
}
