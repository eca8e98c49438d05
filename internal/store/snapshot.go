package store

import (
	"strings"

	"github.com/skelly-dev/codr/internal/metadata"
	"github.com/skelly-dev/codr/internal/parser"
)

// Snapshot is an immutable, indexed view of one published generation.
type Snapshot struct {
	Manifest  Manifest
	Functions []parser.FunctionMetadata
	Classes   []parser.ClassMetadata
	Files     []parser.FileMetadata
	CallGraph []metadata.CallGraphNode

	functionsByName map[string][]int
	classesByName   map[string][]int
	filesByPath     map[string]int
	nodesByKey      map[string]int
	nodesByName     map[string][]int
	stale           map[string]bool
}

func newSnapshot(m Manifest, sets metadata.RecordSets) *Snapshot {
	s := &Snapshot{
		Manifest:        m,
		Functions:       sets.Functions,
		Classes:         sets.Classes,
		Files:           sets.Files,
		CallGraph:       sets.CallGraph,
		functionsByName: make(map[string][]int),
		classesByName:   make(map[string][]int),
		filesByPath:     make(map[string]int, len(sets.Files)),
		nodesByKey:      make(map[string]int, len(sets.CallGraph)),
		nodesByName:     make(map[string][]int),
	}
	for i, f := range s.Functions {
		s.functionsByName[f.Name] = append(s.functionsByName[f.Name], i)
	}
	for i, c := range s.Classes {
		s.classesByName[c.Name] = append(s.classesByName[c.Name], i)
	}
	for i, f := range s.Files {
		s.filesByPath[f.FilePath] = i
	}
	for i, n := range s.CallGraph {
		s.nodesByKey[n.Key] = i
		s.nodesByName[n.FunctionName] = append(s.nodesByName[n.FunctionName], i)
	}
	return s
}

// Generation returns the generation number the snapshot was published as.
func (s *Snapshot) Generation() int {
	return s.Manifest.Generation
}

// RecordSets returns the four record sets backing the snapshot.
func (s *Snapshot) RecordSets() metadata.RecordSets {
	return metadata.RecordSets{
		Functions: s.Functions,
		Classes:   s.Classes,
		Files:     s.Files,
		CallGraph: s.CallGraph,
	}
}

// FunctionsNamed returns every function record with the exact name, in record order.
func (s *Snapshot) FunctionsNamed(name string) []parser.FunctionMetadata {
	idx := s.functionsByName[name]
	out := make([]parser.FunctionMetadata, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Functions[i])
	}
	return out
}

func (s *Snapshot) ClassesNamed(name string) []parser.ClassMetadata {
	idx := s.classesByName[name]
	out := make([]parser.ClassMetadata, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Classes[i])
	}
	return out
}

func (s *Snapshot) FileByPath(path string) (parser.FileMetadata, bool) {
	i, ok := s.filesByPath[path]
	if !ok {
		return parser.FileMetadata{}, false
	}
	return s.Files[i], true
}

// FileContaining returns the first file, in walk order, whose path contains fragment.
func (s *Snapshot) FileContaining(fragment string) (parser.FileMetadata, bool) {
	if fragment == "" {
		return parser.FileMetadata{}, false
	}
	for _, f := range s.Files {
		if strings.Contains(f.FilePath, fragment) {
			return f, true
		}
	}
	return parser.FileMetadata{}, false
}

func (s *Snapshot) Node(key string) (metadata.CallGraphNode, bool) {
	i, ok := s.nodesByKey[key]
	if !ok {
		return metadata.CallGraphNode{}, false
	}
	return s.CallGraph[i], true
}

// NodesNamed returns nodes whose function name matches, sorted by key.
func (s *Snapshot) NodesNamed(name string) []metadata.CallGraphNode {
	idx := s.nodesByName[name]
	out := make([]metadata.CallGraphNode, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.CallGraph[i])
	}
	return out
}

// Records returns the record set for kind.
func (s *Snapshot) Records(kind metadata.Kind) (any, error) {
	switch kind {
	case metadata.KindFunctions:
		return s.Functions, nil
	case metadata.KindClasses:
		return s.Classes, nil
	case metadata.KindFiles:
		return s.Files, nil
	case metadata.KindCallGraph:
		return s.CallGraph, nil
	}
	return nil, unknownKind(kind)
}
