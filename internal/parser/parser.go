package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrParseFailure marks a file whose syntax tree could not be built cleanly.
	ErrParseFailure = errors.New("parse failure")
	// ErrUnsupportedFile is returned for files no registered parser handles.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// LanguageParser defines the capability each language must implement
type LanguageParser interface {
	// Language returns the language name (e.g., "typescript", "python")
	Language() string

	// Extensions returns file extensions this parser handles
	Extensions() []string

	// Parse extracts entities and per-file facts from source code.
	// Implementations must be safe for concurrent use.
	Parse(filename string, content []byte) (*FileAnalysis, error)
}

// Registry holds all registered language parsers
type Registry struct {
	parsers   map[string]LanguageParser // language name -> parser
	extToLang map[string]string         // extension -> language name
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	return &Registry{
		parsers:   make(map[string]LanguageParser),
		extToLang: make(map[string]string),
	}
}

// Register adds a language parser to the registry
func (r *Registry) Register(p LanguageParser) {
	lang := p.Language()
	r.parsers[lang] = p
	for _, ext := range p.Extensions() {
		r.extToLang[strings.ToLower(ext)] = lang
	}
}

// GetParserForFile returns the appropriate parser for a file
func (r *Registry) GetParserForFile(filename string) (LanguageParser, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	lang, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	parser, ok := r.parsers[lang]
	return parser, ok
}

// Supports reports whether some registered parser handles the file's extension.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.GetParserForFile(filename)
	return ok
}

// SupportedExtensions returns all supported file extensions, sorted
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Languages returns the registered language names, sorted
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.parsers))
	for lang := range r.parsers {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// ParseFile reads and parses a single file.
func (r *Registry) ParseFile(path string) (*FileAnalysis, error) {
	parser, ok := r.GetParserForFile(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFile)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.ParseContent(parser, path, content)
}

// ParseContent runs parser over already-read content and fills the file-level fields.
func (r *Registry) ParseContent(parser LanguageParser, path string, content []byte) (*FileAnalysis, error) {
	analysis, err := parser.Parse(path, content)
	if err != nil {
		return nil, err
	}

	analysis.Path = path
	if analysis.Language == "" {
		analysis.Language = parser.Language()
	}
	analysis.SizeBytes = int64(len(content))
	analysis.LineCount = len(SplitLines(string(content)))
	analysis.Hash = hashContent(content)
	analysis.Imports = normalizeStrings(analysis.Imports)
	analysis.NamedImports = normalizeStrings(analysis.NamedImports)
	analysis.Exports = normalizeStrings(analysis.Exports)
	analysis.Dependencies = normalizeStrings(analysis.Dependencies)
	analysis.AnonymousCallSites = normalizeCallSites(analysis.AnonymousCallSites)
	for i := range analysis.Entities {
		analysis.Entities[i].FilePath = path
	}
	for i := range analysis.Functions {
		analysis.Functions[i].Calls = normalizeStrings(analysis.Functions[i].Calls)
		analysis.Functions[i].VariablesRead = normalizeStrings(analysis.Functions[i].VariablesRead)
		analysis.Functions[i].VariablesWritten = normalizeStrings(analysis.Functions[i].VariablesWritten)
		analysis.Functions[i].CallSites = normalizeCallSites(analysis.Functions[i].CallSites)
	}
	return analysis, nil
}

// SplitLines splits file content into lines the same way the mutation service does.
func SplitLines(content string) []string {
	return strings.Split(content, "\n")
}

// SourceLines returns the verbatim text of lines start..end (1-based, inclusive).
func SourceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func hashContent(content []byte) string {
	h := sha256.New()
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))[:16] // short hash
}

func normalizeStrings(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

// normalizeCallSites keeps the first occurrence of each callee name, ordered by line.
func normalizeCallSites(values []CallSite) []CallSite {
	if len(values) == 0 {
		return nil
	}

	sort.SliceStable(values, func(i, j int) bool {
		return values[i].Line < values[j].Line
	})

	seen := make(map[string]bool, len(values))
	out := make([]CallSite, 0, len(values))
	for _, value := range values {
		value.Name = strings.TrimSpace(value.Name)
		if value.Name == "" || seen[value.Name] {
			continue
		}
		seen[value.Name] = true
		out = append(out, value)
	}
	return out
}
