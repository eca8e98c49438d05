package languages

import "github.com/skelly-dev/codr/internal/parser"

// NewDefaultRegistry creates a registry with all supported language parsers
func NewDefaultRegistry() *parser.Registry {
	r := parser.NewRegistry()

	r.Register(NewPythonParser())
	r.Register(NewTypeScriptParser())

	return r
}
