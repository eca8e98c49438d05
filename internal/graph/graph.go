package graph

import (
	"sort"
	"strings"

	"github.com/skelly-dev/codr/internal/parser"
)

// KeySeparator joins file path and function name in a node key.
const KeySeparator = "::"

// NodeKey builds the "{file}::{name}" address of a call-graph node.
func NodeKey(file, name string) string {
	return file + KeySeparator + name
}

// ParseNodeKey splits a node key into file and function name.
func ParseNodeKey(key string) (file, name string) {
	idx := strings.LastIndex(key, KeySeparator)
	if idx == -1 {
		return "", key
	}
	return key[:idx], key[idx+len(KeySeparator):]
}

// CallSite is the first place a caller invokes a given callee.
type CallSite struct {
	Callee string `json:"callee"`
	Line   int    `json:"line"`
}

// Node represents one callable in the call graph
type Node struct {
	Key          string
	FunctionName string
	FilePath     string
	// Resolved is false for nodes that exist only as unresolved call targets.
	Resolved bool

	calls    map[string]bool
	calledBy map[string]bool
	sites    []CallSite
}

// Calls returns the keys this node calls, sorted.
func (n *Node) Calls() []string {
	return sortedKeys(n.calls)
}

// CalledBy returns the keys calling this node, sorted.
func (n *Node) CalledBy() []string {
	return sortedKeys(n.calledBy)
}

// CallSites returns the first call site per callee in discovery order.
func (n *Node) CallSites() []CallSite {
	out := make([]CallSite, len(n.sites))
	copy(out, n.sites)
	return out
}

// Edge is one resolved caller -> callee relation.
type Edge struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

// Graph is the phase-two call graph.
type Graph struct {
	table *SymbolTable
	nodes map[string]*Node
	edges []Edge
}

// Build resolves every bare call site in analyses against table.
// Callees missing from the table fall back to the caller's own file.
func Build(analyses []*parser.FileAnalysis, table *SymbolTable) *Graph {
	g := &Graph{table: table, nodes: make(map[string]*Node)}

	// First pass: materialize a node for every named callable.
	for _, a := range analyses {
		for _, facts := range a.Functions {
			ent := a.Entities[facts.Index]
			if ent.Named() {
				g.node(NodeKey(a.Path, ent.Name), ent.Name, a.Path).Resolved = true
			}
		}
	}

	// Second pass: edges.
	for _, a := range analyses {
		for _, facts := range a.Functions {
			ent := a.Entities[facts.Index]
			for _, site := range facts.CallSites {
				g.link(a.Path, ent.Name, site)
			}
		}
		for _, site := range a.AnonymousCallSites {
			g.link(a.Path, parser.Anonymous, site)
		}
	}

	sort.SliceStable(g.edges, func(i, j int) bool {
		if g.edges[i].Caller != g.edges[j].Caller {
			return g.edges[i].Caller < g.edges[j].Caller
		}
		return g.edges[i].Callee < g.edges[j].Callee
	})
	return g
}

func (g *Graph) link(file, callerName string, site parser.CallSite) {
	if site.Name == "" || site.Name == parser.Anonymous {
		return
	}

	callerKey := NodeKey(file, callerName)
	caller := g.node(callerKey, callerName, file)
	if callerName == parser.Anonymous {
		caller.Resolved = true
	}

	calleeFile := file
	if g.table != nil {
		if declared, ok := g.table.Lookup(site.Name); ok {
			calleeFile = declared
		}
	}
	calleeKey := NodeKey(calleeFile, site.Name)
	callee := g.node(calleeKey, site.Name, calleeFile)

	if caller.calls[calleeKey] {
		return
	}
	caller.calls[calleeKey] = true
	callee.calledBy[callerKey] = true
	caller.sites = append(caller.sites, CallSite{Callee: calleeKey, Line: site.Line})
	g.edges = append(g.edges, Edge{Caller: callerKey, Callee: calleeKey, File: file, Line: site.Line})
}

func (g *Graph) node(key, name, file string) *Node {
	if n, ok := g.nodes[key]; ok {
		return n
	}
	n := &Node{
		Key:          key,
		FunctionName: name,
		FilePath:     file,
		calls:        make(map[string]bool),
		calledBy:     make(map[string]bool),
	}
	g.nodes[key] = n
	return n
}

// Node returns the node stored under key.
func (g *Graph) Node(key string) (*Node, bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// Nodes returns every node sorted by key.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Key < nodes[j].Key
	})
	return nodes
}

// Edges returns deduplicated edges sorted by caller then callee.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

func (g *Graph) EdgeCount() int { return len(g.edges) }

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
