package languages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/codr/internal/parser"
)

func analyze(t *testing.T, filename, src string) *parser.FileAnalysis {
	t.Helper()
	r := NewDefaultRegistry()
	p, ok := r.GetParserForFile(filename)
	require.True(t, ok, "no parser for %s", filename)
	analysis, err := r.ParseContent(p, filename, []byte(src))
	require.NoError(t, err)
	return analysis
}

func entityNamed(t *testing.T, a *parser.FileAnalysis, name string) (int, parser.Entity) {
	t.Helper()
	for i, e := range a.Entities {
		if e.Name == name {
			return i, e
		}
	}
	t.Fatalf("entity %q not found in %+v", name, a.Entities)
	return -1, parser.Entity{}
}

func functionFacts(t *testing.T, a *parser.FileAnalysis, name string) parser.FunctionFacts {
	t.Helper()
	idx, _ := entityNamed(t, a, name)
	for _, f := range a.Functions {
		if f.Index == idx {
			return f
		}
	}
	t.Fatalf("no function facts for %q", name)
	return parser.FunctionFacts{}
}

func classFacts(t *testing.T, a *parser.FileAnalysis, name string) parser.ClassFacts {
	t.Helper()
	idx, _ := entityNamed(t, a, name)
	for _, c := range a.Classes {
		if c.Index == idx {
			return c
		}
	}
	t.Fatalf("no class facts for %q", name)
	return parser.ClassFacts{}
}

func entityNames(a *parser.FileAnalysis) []string {
	names := make([]string, 0, len(a.Entities))
	for _, e := range a.Entities {
		names = append(names, e.Name)
	}
	return names
}
