// Package metadata turns phase-one analyses and the call graph into the
// persisted record sets. Every generator is pure and independent of the others.
package metadata

import (
	"sort"

	"github.com/skelly-dev/codr/internal/fileutil"
	"github.com/skelly-dev/codr/internal/graph"
	"github.com/skelly-dev/codr/internal/parser"
)

// Kind names one record set.
type Kind string

const (
	KindFunctions Kind = "functions"
	KindClasses   Kind = "classes"
	KindFiles     Kind = "files"
	KindCallGraph Kind = "callgraph"
)

// Kinds lists every record set in publish order.
var Kinds = []Kind{KindFunctions, KindClasses, KindFiles, KindCallGraph}

// CallGraphNode is the persisted record for one call-graph node.
type CallGraphNode struct {
	Key          string           `json:"key"`
	FunctionName string           `json:"function_name"`
	FilePath     string           `json:"file_path"`
	Calls        []string         `json:"calls"`
	CalledBy     []string         `json:"called_by"`
	CallSites    []graph.CallSite `json:"call_sites"`
	Resolved     bool             `json:"resolved"`
}

// RecordSets bundles the four record sets produced by one build.
type RecordSets struct {
	Functions []parser.FunctionMetadata
	Classes   []parser.ClassMetadata
	Files     []parser.FileMetadata
	CallGraph []CallGraphNode
}

// Functions generates one record per callable, methods included.
func Functions(analyses []*parser.FileAnalysis) []parser.FunctionMetadata {
	out := make([]parser.FunctionMetadata, 0)
	for _, a := range analyses {
		imported := fileutil.ToSet(a.NamedImports)
		for _, facts := range a.Functions {
			ent := a.Entities[facts.Index]
			out = append(out, parser.FunctionMetadata{
				Name:             ent.Name,
				Kind:             ent.Kind,
				FilePath:         a.Path,
				StartLine:        ent.StartLine,
				EndLine:          ent.EndLine,
				Parent:           ent.Parent,
				Nested:           ent.Nested,
				IsExported:       facts.IsExported,
				IsAsync:          facts.IsAsync,
				IsArrow:          ent.Kind == parser.KindArrowFunction,
				Parameters:       nonNil(facts.Parameters),
				ReturnType:       facts.ReturnType,
				Docstring:        facts.Docstring,
				Calls:            nonNil(facts.Calls),
				ImportsUsed:      intersect(facts.VariablesRead, imported),
				VariablesRead:    nonNil(facts.VariablesRead),
				VariablesWritten: nonNil(facts.VariablesWritten),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lessLocation(out[i].FilePath, out[i].StartLine, out[i].Name, out[j].FilePath, out[j].StartLine, out[j].Name)
	})
	return out
}

// Classes generates one record per class.
func Classes(analyses []*parser.FileAnalysis) []parser.ClassMetadata {
	out := make([]parser.ClassMetadata, 0)
	for _, a := range analyses {
		for _, facts := range a.Classes {
			ent := a.Entities[facts.Index]
			out = append(out, parser.ClassMetadata{
				Name:       ent.Name,
				FilePath:   a.Path,
				StartLine:  ent.StartLine,
				EndLine:    ent.EndLine,
				IsExported: facts.IsExported,
				Extends:    facts.Extends,
				Implements: nonNil(facts.Implements),
				Properties: nonNil(facts.Properties),
				Methods:    nonNil(facts.Methods),
				Docstring:  facts.Docstring,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lessLocation(out[i].FilePath, out[i].StartLine, out[i].Name, out[j].FilePath, out[j].StartLine, out[j].Name)
	})
	return out
}

// Files generates one record per successfully analysed file, in walk order.
func Files(analyses []*parser.FileAnalysis) []parser.FileMetadata {
	out := make([]parser.FileMetadata, 0, len(analyses))
	for _, a := range analyses {
		functions := make([]string, 0)
		classes := make([]string, 0)
		for _, ent := range a.Entities {
			if !ent.Named() || ent.Nested || ent.Parent != "" {
				continue
			}
			if ent.Kind == parser.KindClass {
				classes = append(classes, ent.Name)
			} else if ent.Kind.IsCallable() {
				functions = append(functions, ent.Name)
			}
		}

		out = append(out, parser.FileMetadata{
			FilePath:     a.Path,
			Language:     a.Language,
			SizeBytes:    a.SizeBytes,
			LineCount:    a.LineCount,
			Hash:         a.Hash,
			Imports:      nonNil(a.Imports),
			Exports:      nonNil(a.Exports),
			Functions:    functions,
			Classes:      classes,
			Dependencies: nonNil(a.Dependencies),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fileutil.ComparePaths(out[i].FilePath, out[j].FilePath) < 0
	})
	return out
}

// CallGraph flattens g into records sorted by key.
func CallGraph(g *graph.Graph) []CallGraphNode {
	nodes := g.Nodes()
	out := make([]CallGraphNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, CallGraphNode{
			Key:          n.Key,
			FunctionName: n.FunctionName,
			FilePath:     n.FilePath,
			Calls:        n.Calls(),
			CalledBy:     n.CalledBy(),
			CallSites:    n.CallSites(),
			Resolved:     n.Resolved,
		})
	}
	return out
}

func lessLocation(fileA string, lineA int, nameA string, fileB string, lineB int, nameB string) bool {
	if c := fileutil.ComparePaths(fileA, fileB); c != 0 {
		return c < 0
	}
	if lineA != lineB {
		return lineA < lineB
	}
	return nameA < nameB
}

// intersect returns the members of values found in set, in the order of values.
func intersect(values []string, set map[string]bool) []string {
	out := make([]string, 0)
	for _, v := range values {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
