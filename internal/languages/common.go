package languages

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/skelly-dev/codr/internal/parser"
)

// source bundles the raw bytes and split lines of the file being extracted.
type source struct {
	content []byte
	lines   []string
}

func newSource(content []byte) source {
	return source{content: content, lines: parser.SplitLines(string(content))}
}

func (s source) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return node.Content(s.content)
}

func (s source) entity(node *sitter.Node, name string, kind parser.Kind) parser.Entity {
	start, end := nodeLines(node)
	if strings.TrimSpace(name) == "" {
		name = parser.Anonymous
	}
	return parser.Entity{
		Name:       name,
		Kind:       kind,
		StartLine:  start,
		EndLine:    end,
		SourceText: parser.SourceLines(s.lines, start, end),
	}
}

func nodeLines(node *sitter.Node) (start, end int) {
	start = int(node.StartPoint().Row) + 1
	end = int(node.EndPoint().Row) + 1
	if end < start {
		end = start
	}
	return start, end
}

func lineOf(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// isField reports whether child sits in the named field of parent.
func isField(parent *sitter.Node, field string, child *sitter.Node) bool {
	if parent == nil {
		return false
	}
	return sameNode(parent.ChildByFieldName(field), child)
}

func hasChildType(node *sitter.Node, types ...string) bool {
	return childOfType(node, types...) != nil
}

func childOfType(node *sitter.Node, types ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		for _, t := range types {
			if child.Type() == t {
				return child
			}
		}
	}
	return nil
}

func trimQuotes(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 {
		switch raw[0] {
		case '"', '\'', '`':
			if raw[len(raw)-1] == raw[0] {
				return raw[1 : len(raw)-1]
			}
		}
	}
	return raw
}

func trimTypeAnnotation(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, ":")
	raw = strings.TrimPrefix(raw, "->")
	return strings.TrimSpace(raw)
}

// syntaxError describes the first ERROR or MISSING node under root.
func syntaxError(filename string, root *sitter.Node) error {
	line := 0
	var find func(n *sitter.Node) bool
	find = func(n *sitter.Node) bool {
		if n == nil {
			return false
		}
		if n.IsMissing() || n.Type() == "ERROR" {
			line = lineOf(n)
			return true
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if find(n.Child(i)) {
				return true
			}
		}
		return false
	}
	find(root)
	return fmt.Errorf("%w: %s: syntax error near line %d", parser.ErrParseFailure, filepath.Base(filename), line)
}

// bodyFacts accumulates what a callable body references.
type bodyFacts struct {
	calls     []string
	callSites []parser.CallSite
	read      []string
	written   []string
}

func (f *bodyFacts) apply(facts *parser.FunctionFacts) {
	facts.Calls = f.calls
	facts.CallSites = f.callSites
	facts.VariablesRead = f.read
	facts.VariablesWritten = f.written
}

func isLocalImport(spec string) bool {
	return strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/")
}

func cleanDocComment(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "/**")
	raw = strings.TrimSuffix(raw, "*/")

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		out = append(out, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
