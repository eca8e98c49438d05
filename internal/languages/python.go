package languages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/skelly-dev/codr/internal/parser"
)

// PythonParser implements parsing for Python source files
type PythonParser struct{}

// NewPythonParser creates a new Python parser
func NewPythonParser() *PythonParser {
	return &PythonParser{}
}

func (p *PythonParser) Language() string {
	return "python"
}

func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyw"}
}

func (p *PythonParser) Parse(filename string, content []byte) (*parser.FileAnalysis, error) {
	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(python.GetLanguage())

	tree, err := sp.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", parser.ErrParseFailure, filepath.Base(filename), err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(filename, root)
	}

	x := &pyExtractor{
		src: newSource(content),
		out: &parser.FileAnalysis{Language: "python"},
	}
	x.visit(root, pyScope{classIdx: -1})
	x.markExported()
	return x.out, nil
}

type pyScope struct {
	class      string
	classIdx   int  // index into FileAnalysis.Classes, -1 outside a class body
	inBody     bool // inside a callable body
	decorators []string
}

type pyExtractor struct {
	src     source
	out     *parser.FileAnalysis
	all     []string // module-level __all__ entries
	hasAll  bool
	topDefs []string // top-level entity names in source order
}

func (x *pyExtractor) visit(node *sitter.Node, sc pyScope) {
	if node == nil || !node.IsNamed() {
		return
	}

	switch node.Type() {
	case "import_statement":
		x.collectImport(node)
		return

	case "import_from_statement":
		x.collectFromImport(node)
		return

	case "decorated_definition":
		decorators := make([]string, 0)
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "decorator" {
				decorators = append(decorators, strings.TrimSpace(strings.TrimPrefix(x.src.text(child), "@")))
			}
		}
		sc.decorators = decorators
		x.visit(node.ChildByFieldName("definition"), sc)
		return

	case "function_definition":
		kind := parser.KindFunction
		if sc.class != "" {
			kind = parser.KindMethod
		}
		x.function(node, node, x.src.text(node.ChildByFieldName("name")), kind, sc)
		return

	case "class_definition":
		x.class(node, sc)
		return

	case "assignment":
		if x.assignment(node, sc) {
			return
		}

	case "lambda":
		body := node.ChildByFieldName("body")
		if !sc.inBody {
			facts := x.bodyFacts(body)
			x.out.AnonymousCallSites = append(x.out.AnonymousCallSites, facts.callSites...)
		}
		x.visit(body, pyScope{classIdx: -1, inBody: true})
		return
	}

	inner := pyScope{class: sc.class, classIdx: sc.classIdx, inBody: sc.inBody}
	for i := 0; i < int(node.ChildCount()); i++ {
		x.visit(node.Child(i), inner)
	}
}

// assignment handles `name = lambda ...` and module-level `__all__`. It reports
// whether the node was fully consumed.
func (x *pyExtractor) assignment(node *sitter.Node, sc pyScope) bool {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" {
		return false
	}
	name := x.src.text(left)

	if name == "__all__" && !sc.inBody && sc.class == "" {
		x.hasAll = true
		for i := 0; i < int(right.NamedChildCount()); i++ {
			if item := right.NamedChild(i); item.Type() == "string" {
				x.all = append(x.all, trimQuotes(x.src.text(item)))
			}
		}
		return true
	}

	if right.Type() != "lambda" || sc.class != "" {
		return false
	}
	x.function(right, node, name, parser.KindArrowFunction, sc)
	return true
}

func (x *pyExtractor) function(fn, rng *sitter.Node, name string, kind parser.Kind, sc pyScope) {
	ent := x.src.entity(rng, name, kind)
	ent.Nested = sc.inBody
	if kind == parser.KindMethod {
		ent.Parent = sc.class
	}

	body := fn.ChildByFieldName("body")
	facts := parser.FunctionFacts{
		Index:      len(x.out.Entities),
		IsAsync:    hasChildType(fn, "async"),
		Parameters: x.parameters(fn.ChildByFieldName("parameters")),
		ReturnType: trimTypeAnnotation(x.src.text(fn.ChildByFieldName("return_type"))),
	}
	if fn.Type() == "function_definition" {
		facts.Docstring = x.docstring(body)
	}
	bf := x.bodyFacts(body)
	bf.apply(&facts)

	x.out.Entities = append(x.out.Entities, ent)
	x.out.Functions = append(x.out.Functions, facts)
	if !ent.Nested && ent.Parent == "" {
		x.topDefs = append(x.topDefs, ent.Name)
	}

	if kind == parser.KindMethod && sc.classIdx >= 0 {
		x.out.Classes[sc.classIdx].Methods = append(x.out.Classes[sc.classIdx].Methods, parser.MethodRef{
			Name:      ent.Name,
			StartLine: ent.StartLine,
			EndLine:   ent.EndLine,
			IsStatic:  hasDecorator(sc.decorators, "staticmethod", "classmethod"),
			Access:    pyAccess(ent.Name),
		})
	}

	x.visit(body, pyScope{classIdx: -1, inBody: true})
}

func (x *pyExtractor) class(node *sitter.Node, sc pyScope) {
	ent := x.src.entity(node, x.src.text(node.ChildByFieldName("name")), parser.KindClass)
	ent.Nested = sc.inBody

	body := node.ChildByFieldName("body")
	facts := parser.ClassFacts{
		Index:      len(x.out.Entities),
		Implements: []string{},
		Properties: []parser.Property{},
		Methods:    []parser.MethodRef{},
		Docstring:  x.docstring(body),
	}
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			base := supers.NamedChild(i)
			if base.Type() == "keyword_argument" || base.Type() == "comment" {
				continue
			}
			if facts.Extends == "" {
				facts.Extends = x.src.text(base)
			} else {
				facts.Implements = append(facts.Implements, x.src.text(base))
			}
		}
	}

	x.out.Entities = append(x.out.Entities, ent)
	classIdx := len(x.out.Classes)
	x.out.Classes = append(x.out.Classes, facts)
	if !ent.Nested {
		x.topDefs = append(x.topDefs, ent.Name)
	}
	if body == nil {
		return
	}

	member := pyScope{class: ent.Name, classIdx: classIdx, inBody: sc.inBody}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "expression_statement" {
			if assign := childOfType(child, "assignment"); assign != nil {
				x.property(classIdx, assign)
				x.visit(assign.ChildByFieldName("right"), pyScope{classIdx: -1, inBody: sc.inBody})
				continue
			}
		}
		x.visit(child, member)
	}
}

func (x *pyExtractor) property(classIdx int, assign *sitter.Node) {
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	name := x.src.text(left)
	x.out.Classes[classIdx].Properties = append(x.out.Classes[classIdx].Properties, parser.Property{
		Name:    name,
		Type:    x.src.text(assign.ChildByFieldName("type")),
		Access:  pyAccess(name),
		Default: x.src.text(assign.ChildByFieldName("right")),
	})
}

func (x *pyExtractor) parameters(list *sitter.Node) []parser.Parameter {
	params := make([]parser.Parameter, 0)
	if list == nil {
		return params
	}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		child := list.NamedChild(i)
		switch child.Type() {
		case "identifier", "list_splat_pattern", "dictionary_splat_pattern":
			params = append(params, parser.Parameter{Name: x.src.text(child)})
		case "typed_parameter":
			name := ""
			if child.NamedChildCount() > 0 {
				name = x.src.text(child.NamedChild(0))
			}
			params = append(params, parser.Parameter{
				Name: name,
				Type: x.src.text(child.ChildByFieldName("type")),
			})
		case "default_parameter", "typed_default_parameter":
			params = append(params, parser.Parameter{
				Name:     x.src.text(child.ChildByFieldName("name")),
				Type:     x.src.text(child.ChildByFieldName("type")),
				Optional: true,
				Default:  x.src.text(child.ChildByFieldName("value")),
			})
		}
	}
	return params
}

func (x *pyExtractor) docstring(body *sitter.Node) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	expr := first.NamedChild(0)
	if expr.Type() != "string" {
		return ""
	}
	return cleanPyDocstring(x.src.text(expr))
}

func (x *pyExtractor) bodyFacts(body *sitter.Node) bodyFacts {
	var f bodyFacts
	if body == nil {
		return f
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call":
			callee := n.ChildByFieldName("function")
			if callee != nil {
				switch callee.Type() {
				case "identifier":
					name := x.src.text(callee)
					f.calls = append(f.calls, name)
					f.callSites = append(f.callSites, parser.CallSite{Name: name, Line: lineOf(n)})
				case "attribute":
					if attr := callee.ChildByFieldName("attribute"); attr != nil {
						f.calls = append(f.calls, x.src.text(attr))
					}
				}
			}
		case "identifier":
			switch pyIdentifierRole(n) {
			case roleWritten:
				f.written = append(f.written, x.src.text(n))
			case roleRead:
				f.read = append(f.read, x.src.text(n))
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return f
}

type identifierRole int

const (
	roleRead identifierRole = iota
	roleWritten
	roleIgnored
)

func pyIdentifierRole(ident *sitter.Node) identifierRole {
	parent := ident.Parent()
	if parent == nil {
		return roleRead
	}
	switch parent.Type() {
	case "attribute":
		if isField(parent, "attribute", ident) {
			return roleIgnored
		}
	case "keyword_argument":
		if isField(parent, "name", ident) {
			return roleIgnored
		}
	case "function_definition", "class_definition":
		if isField(parent, "name", ident) {
			return roleIgnored
		}
	case "assignment", "augmented_assignment", "for_statement":
		if isField(parent, "left", ident) {
			return roleWritten
		}
	case "pattern_list", "tuple_pattern":
		if grand := parent.Parent(); grand != nil && isField(grand, "left", parent) {
			return roleWritten
		}
	}
	return roleRead
}

func (x *pyExtractor) collectImport(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) != "name" {
			continue
		}
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			module := strings.TrimSpace(x.src.text(child))
			x.addImport(module)
			// `import a.b` binds a.
			x.out.NamedImports = append(x.out.NamedImports, strings.Split(module, ".")[0])
		case "aliased_import":
			x.addImport(x.src.text(child.ChildByFieldName("name")))
			x.out.NamedImports = append(x.out.NamedImports, x.src.text(child.ChildByFieldName("alias")))
		}
	}
}

func (x *pyExtractor) collectFromImport(node *sitter.Node) {
	module := strings.TrimSpace(x.src.text(node.ChildByFieldName("module_name")))
	x.addImport(module)

	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) != "name" {
			continue
		}
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name", "identifier":
			x.out.NamedImports = append(x.out.NamedImports, x.src.text(child))
		case "aliased_import":
			x.out.NamedImports = append(x.out.NamedImports, x.src.text(child.ChildByFieldName("alias")))
		}
	}
}

func (x *pyExtractor) addImport(module string) {
	if module == "" {
		return
	}
	x.out.Imports = append(x.out.Imports, module)
	if strings.HasPrefix(module, ".") {
		x.out.Dependencies = append(x.out.Dependencies, module)
	}
}

// markExported applies __all__ when present, otherwise the leading-underscore convention.
func (x *pyExtractor) markExported() {
	exported := make(map[string]bool)
	if x.hasAll {
		for _, name := range x.all {
			exported[name] = true
		}
		x.out.Exports = append(x.out.Exports, x.all...)
	} else {
		for _, name := range x.topDefs {
			if name != parser.Anonymous && !strings.HasPrefix(name, "_") {
				exported[name] = true
				x.out.Exports = append(x.out.Exports, name)
			}
		}
	}

	for i := range x.out.Functions {
		ent := x.out.Entities[x.out.Functions[i].Index]
		x.out.Functions[i].IsExported = !ent.Nested && ent.Parent == "" && exported[ent.Name]
	}
	for i := range x.out.Classes {
		ent := x.out.Entities[x.out.Classes[i].Index]
		x.out.Classes[i].IsExported = !ent.Nested && exported[ent.Name]
	}
}

func pyAccess(name string) string {
	switch {
	case strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__"):
		return "public"
	case strings.HasPrefix(name, "__"):
		return "private"
	case strings.HasPrefix(name, "_"):
		return "protected"
	}
	return "public"
}

func hasDecorator(decorators []string, names ...string) bool {
	for _, d := range decorators {
		for _, name := range names {
			if d == name {
				return true
			}
		}
	}
	return false
}

func cleanPyDocstring(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "rRbBuU")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			s = s[len(q) : len(s)-len(q)]
			break
		}
	}

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
