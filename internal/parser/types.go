package parser

import (
	"fmt"
	"strings"
)

// Anonymous is the name recorded for entities without a resolvable name.
const Anonymous = "<anonymous>"

// Kind represents the type of extracted entity
type Kind string

const (
	KindFunction      Kind = "function"
	KindArrowFunction Kind = "arrow_function"
	KindMethod        Kind = "method"
	KindClass         Kind = "class"
)

// IsCallable reports whether entities of this kind have a body that can call other code.
func (k Kind) IsCallable() bool {
	switch k {
	case KindFunction, KindArrowFunction, KindMethod:
		return true
	}
	return false
}

// ParseKind converts a serialized kind back into a Kind.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(raw)); k {
	case KindFunction, KindArrowFunction, KindMethod, KindClass:
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", raw)
}

// Entity is an immutable snapshot of a syntactic unit at extraction time.
type Entity struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	FilePath   string `json:"file_path"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	SourceText string `json:"source_text"`
	Parent     string `json:"parent,omitempty"` // enclosing class for methods
	Nested     bool   `json:"nested,omitempty"` // declared inside another callable's body
}

// Named reports whether the entity has a resolvable name.
func (e Entity) Named() bool {
	return e.Name != "" && e.Name != Anonymous
}

// CallSite captures a bare-identifier invocation discovered inside a callable body.
type CallSite struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Parameter describes one declared parameter of a callable.
type Parameter struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Default  string `json:"default,omitempty"`
}

// FunctionMetadata is the persisted record for a function, arrow function or method.
type FunctionMetadata struct {
	Name             string      `json:"name"`
	Kind             Kind        `json:"kind"`
	FilePath         string      `json:"file_path"`
	StartLine        int         `json:"start_line"`
	EndLine          int         `json:"end_line"`
	Parent           string      `json:"parent,omitempty"`
	Nested           bool        `json:"nested,omitempty"`
	IsExported       bool        `json:"is_exported"`
	IsAsync          bool        `json:"is_async"`
	IsArrow          bool        `json:"is_arrow"`
	Parameters       []Parameter `json:"parameters"`
	ReturnType       string      `json:"return_type,omitempty"`
	Docstring        string      `json:"docstring,omitempty"`
	Calls            []string    `json:"calls"`
	ImportsUsed      []string    `json:"imports_used"`
	VariablesRead    []string    `json:"variables_read"`
	VariablesWritten []string    `json:"variables_written"`
}

// Property describes a class field.
type Property struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Access   string `json:"access,omitempty"`
	Default  string `json:"default,omitempty"`
	IsStatic bool   `json:"is_static,omitempty"`
}

// MethodRef locates a method inside its class.
type MethodRef struct {
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	IsStatic  bool   `json:"is_static,omitempty"`
	Access    string `json:"access,omitempty"`
}

// ClassMetadata is the persisted record for a class.
type ClassMetadata struct {
	Name       string      `json:"name"`
	FilePath   string      `json:"file_path"`
	StartLine  int         `json:"start_line"`
	EndLine    int         `json:"end_line"`
	IsExported bool        `json:"is_exported"`
	Extends    string      `json:"extends,omitempty"`
	Implements []string    `json:"implements"`
	Properties []Property  `json:"properties"`
	Methods    []MethodRef `json:"methods"`
	Docstring  string      `json:"docstring,omitempty"`
}

// FileMetadata is the persisted record for a source file.
type FileMetadata struct {
	FilePath     string   `json:"file_path"`
	Language     string   `json:"language"`
	SizeBytes    int64    `json:"size_bytes"`
	LineCount    int      `json:"line_count"`
	Hash         string   `json:"hash"`
	Imports      []string `json:"imports"`
	Exports      []string `json:"exports"`
	Functions    []string `json:"functions"`
	Classes      []string `json:"classes"`
	Dependencies []string `json:"dependencies"`
}

// FunctionFacts holds what the extractor learned about one callable in a single traversal.
// Index points at the matching entry of FileAnalysis.Entities.
type FunctionFacts struct {
	Index            int
	IsExported       bool
	IsAsync          bool
	Parameters       []Parameter
	ReturnType       string
	Docstring        string
	Calls            []string   // every callee name, including member calls
	CallSites        []CallSite // bare-identifier calls only
	VariablesRead    []string
	VariablesWritten []string
}

// ClassFacts holds class-level facts gathered during extraction.
type ClassFacts struct {
	Index      int
	IsExported bool
	Extends    string
	Implements []string
	Properties []Property
	Methods    []MethodRef
	Docstring  string
}

// FileAnalysis is the phase-one output for one file.
type FileAnalysis struct {
	Path         string
	Language     string
	SizeBytes    int64
	LineCount    int
	Hash         string
	Entities     []Entity
	Functions    []FunctionFacts
	Classes      []ClassFacts
	Imports      []string // module specifiers
	NamedImports []string // local bindings introduced by imports
	Exports      []string
	Dependencies []string // local/relative imports

	// AnonymousCallSites are bare calls made by unbound callables (callbacks,
	// field initializers) that sit outside every named callable body.
	AnonymousCallSites []CallSite
}

// ParseIssue captures non-fatal walk and parse problems encountered during a build.
type ParseIssue struct {
	File     string `json:"file"`
	Language string `json:"language,omitempty"`
	Severity string `json:"severity"` // warning | error
	Message  string `json:"message"`
}
