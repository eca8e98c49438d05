package graph

import (
	"sort"

	"github.com/skelly-dev/codr/internal/parser"
)

// SymbolTable maps callable names to the file that declared them first.
type SymbolTable struct {
	files  map[string]string
	claims map[string][]string // every file claiming a name, walk order
}

// Conflict describes a name declared by more than one file.
type Conflict struct {
	Name   string   `json:"name"`
	Winner string   `json:"winner"`
	Others []string `json:"others"`
}

// BuildSymbolTable is phase one: it scans analyses in walk order and records each
// named, non-nested function, arrow function or method. The first writer wins.
func BuildSymbolTable(analyses []*parser.FileAnalysis) *SymbolTable {
	t := &SymbolTable{
		files:  make(map[string]string),
		claims: make(map[string][]string),
	}
	for _, a := range analyses {
		for _, ent := range a.Entities {
			if !ent.Kind.IsCallable() || !ent.Named() || ent.Nested {
				continue
			}
			if _, ok := t.files[ent.Name]; !ok {
				t.files[ent.Name] = a.Path
			}
			if !containsString(t.claims[ent.Name], a.Path) {
				t.claims[ent.Name] = append(t.claims[ent.Name], a.Path)
			}
		}
	}
	return t
}

// Lookup returns the declaring file for name.
func (t *SymbolTable) Lookup(name string) (string, bool) {
	file, ok := t.files[name]
	return file, ok
}

func (t *SymbolTable) Len() int {
	return len(t.files)
}

// Conflicts lists names claimed by several files, sorted by name.
func (t *SymbolTable) Conflicts() []Conflict {
	out := make([]Conflict, 0)
	for name, files := range t.claims {
		if len(files) < 2 {
			continue
		}
		out = append(out, Conflict{Name: name, Winner: files[0], Others: append([]string{}, files[1:]...)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
