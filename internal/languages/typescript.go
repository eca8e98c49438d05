package languages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/skelly-dev/codr/internal/parser"
)

// TypeScriptParser implements parsing for TypeScript/JavaScript source files
type TypeScriptParser struct{}

// NewTypeScriptParser creates a new TypeScript/JavaScript parser
func NewTypeScriptParser() *TypeScriptParser {
	return &TypeScriptParser{}
}

func (t *TypeScriptParser) Language() string {
	return "typescript"
}

func (t *TypeScriptParser) Extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}

func grammarFor(filename string) (*sitter.Language, string) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tsx":
		return tsx.GetLanguage(), "typescript"
	case ".ts":
		return typescript.GetLanguage(), "typescript"
	default:
		return javascript.GetLanguage(), "javascript"
	}
}

// Parse builds a fresh tree-sitter parser per call; sitter.Parser is not safe to share.
func (t *TypeScriptParser) Parse(filename string, content []byte) (*parser.FileAnalysis, error) {
	grammar, lang := grammarFor(filename)

	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(grammar)

	tree, err := p.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", parser.ErrParseFailure, filepath.Base(filename), err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(filename, root)
	}

	x := &tsExtractor{
		src:      newSource(content),
		out:      &parser.FileAnalysis{Language: lang},
		exported: make(map[string]bool),
	}
	x.visit(root, tsScope{})
	x.markExported()
	return x.out, nil
}

type tsScope struct {
	class    string       // enclosing class for methods
	inBody   bool         // inside a callable body
	exported bool         // declared by an export statement
	anchor   *sitter.Node // node a JSDoc block would precede
}

type tsExtractor struct {
	src      source
	out      *parser.FileAnalysis
	exported map[string]bool // local names exported by clause or default
}

func (x *tsExtractor) visit(node *sitter.Node, sc tsScope) {
	// Keyword tokens share type names with real nodes ("class", "function").
	if node == nil || !node.IsNamed() {
		return
	}

	switch node.Type() {
	case "import_statement":
		x.collectImport(node)
		return

	case "export_statement":
		x.visitExport(node, sc)
		return

	case "function_declaration", "generator_function_declaration":
		name := x.src.text(node.ChildByFieldName("name"))
		x.function(node, node, name, parser.KindFunction, sc)
		return

	case "class_declaration", "abstract_class_declaration", "class":
		name := x.src.text(node.ChildByFieldName("name"))
		x.class(node, node, name, sc)
		return

	case "lexical_declaration", "variable_declaration":
		x.visitDeclarations(node, sc)
		return

	case "method_definition":
		// Class bodies record their own methods, so this is an object-literal method.
		name := x.src.text(node.ChildByFieldName("name"))
		x.function(node, node, name, parser.KindMethod, tsScope{inBody: sc.inBody})
		return

	case "arrow_function", "function_expression", "function", "generator_function":
		// Unbound callable: its calls belong to the enclosing callable, or to
		// the file's anonymous caller when it sits outside every body.
		body := node.ChildByFieldName("body")
		if !sc.inBody {
			facts := x.bodyFacts(body)
			x.out.AnonymousCallSites = append(x.out.AnonymousCallSites, facts.callSites...)
		}
		x.visit(body, tsScope{inBody: true})
		return
	}

	x.visitChildren(node, tsScope{class: sc.class, inBody: sc.inBody})
}

func (x *tsExtractor) visitChildren(node *sitter.Node, sc tsScope) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		x.visit(node.Child(i), sc)
	}
}

func (x *tsExtractor) visitExport(node *sitter.Node, sc tsScope) {
	isDefault := hasChildType(node, "default")
	if isDefault {
		x.out.Exports = append(x.out.Exports, "default")
	}

	if source := node.ChildByFieldName("source"); source != nil {
		// Re-export: names belong to another module.
		x.addImport(trimQuotes(x.src.text(source)))
		if clause := childOfType(node, "export_clause"); clause != nil {
			for _, spec := range x.exportSpecifiers(clause) {
				x.out.Exports = append(x.out.Exports, spec.exported)
			}
		}
		return
	}

	if clause := childOfType(node, "export_clause"); clause != nil {
		for _, spec := range x.exportSpecifiers(clause) {
			x.out.Exports = append(x.out.Exports, spec.exported)
			x.exported[spec.local] = true
		}
		return
	}

	inner := tsScope{exported: !sc.inBody, anchor: node, inBody: sc.inBody}

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		x.out.Exports = append(x.out.Exports, x.declaredNames(decl)...)
		x.visit(decl, inner)
		return
	}

	value := node.ChildByFieldName("value")
	if value == nil {
		return
	}
	switch value.Type() {
	case "identifier":
		x.exported[x.src.text(value)] = true
	case "arrow_function":
		x.function(value, node, parser.Anonymous, parser.KindArrowFunction, inner)
	case "function_expression", "function", "generator_function":
		x.function(value, node, x.src.text(value.ChildByFieldName("name")), parser.KindFunction, inner)
	case "class":
		x.class(value, node, x.src.text(value.ChildByFieldName("name")), inner)
	default:
		x.visit(value, tsScope{inBody: sc.inBody})
	}
}

type exportSpec struct {
	local    string
	exported string
}

func (x *tsExtractor) exportSpecifiers(clause *sitter.Node) []exportSpec {
	specs := make([]exportSpec, 0)
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		if child.Type() != "export_specifier" {
			continue
		}
		local := x.src.text(child.ChildByFieldName("name"))
		exported := local
		if alias := x.src.text(child.ChildByFieldName("alias")); alias != "" {
			exported = alias
		}
		if local != "" {
			specs = append(specs, exportSpec{local: local, exported: exported})
		}
	}
	return specs
}

func (x *tsExtractor) declaredNames(decl *sitter.Node) []string {
	switch decl.Type() {
	case "lexical_declaration", "variable_declaration":
		names := make([]string, 0)
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			child := decl.NamedChild(i)
			if child.Type() != "variable_declarator" {
				continue
			}
			if name := child.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				names = append(names, x.src.text(name))
			}
		}
		return names
	}
	if name := x.src.text(decl.ChildByFieldName("name")); name != "" {
		return []string{name}
	}
	return nil
}

func (x *tsExtractor) visitDeclarations(node *sitter.Node, sc tsScope) {
	anchor := sc.anchor
	if anchor == nil {
		anchor = node
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		value := decl.ChildByFieldName("value")
		if value == nil {
			continue
		}

		name := ""
		if nameNode != nil && nameNode.Type() == "identifier" {
			name = x.src.text(nameNode)
		}
		inner := tsScope{inBody: sc.inBody, exported: sc.exported, anchor: anchor}

		switch value.Type() {
		case "arrow_function", "function_expression", "function", "generator_function":
			x.function(value, decl, name, parser.KindArrowFunction, inner)
		case "class":
			x.class(value, decl, name, inner)
		case "call_expression":
			x.collectRequire(nameNode, value)
			x.visit(value, tsScope{inBody: sc.inBody})
		default:
			x.visit(value, tsScope{inBody: sc.inBody})
		}
	}
}

// function records a callable entity. fn carries the parameters and body; rng
// supplies the line range (the declarator for arrow functions).
func (x *tsExtractor) function(fn, rng *sitter.Node, name string, kind parser.Kind, sc tsScope) {
	ent := x.src.entity(rng, name, kind)
	ent.Nested = sc.inBody
	if kind == parser.KindMethod {
		ent.Parent = sc.class
	}

	anchor := sc.anchor
	if anchor == nil {
		anchor = rng
	}

	body := fn.ChildByFieldName("body")
	facts := parser.FunctionFacts{
		Index:      len(x.out.Entities),
		IsExported: sc.exported && !sc.inBody,
		IsAsync:    hasChildType(fn, "async"),
		Parameters: x.parameters(fn),
		ReturnType: trimTypeAnnotation(x.src.text(fn.ChildByFieldName("return_type"))),
		Docstring:  x.docComment(anchor),
	}
	bf := x.bodyFacts(body)
	bf.apply(&facts)

	x.out.Entities = append(x.out.Entities, ent)
	x.out.Functions = append(x.out.Functions, facts)

	x.visit(body, tsScope{inBody: true})
}

func (x *tsExtractor) class(node, rng *sitter.Node, name string, sc tsScope) {
	ent := x.src.entity(rng, name, parser.KindClass)
	ent.Nested = sc.inBody

	anchor := sc.anchor
	if anchor == nil {
		anchor = rng
	}

	facts := parser.ClassFacts{
		Index:      len(x.out.Entities),
		IsExported: sc.exported && !sc.inBody,
		Implements: []string{},
		Properties: []parser.Property{},
		Methods:    []parser.MethodRef{},
		Docstring:  x.docComment(anchor),
	}
	x.heritage(node, &facts)

	x.out.Entities = append(x.out.Entities, ent)
	classIdx := len(x.out.Classes)
	x.out.Classes = append(x.out.Classes, facts)

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}

	member := tsScope{class: ent.Name, inBody: sc.inBody}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "method_definition":
			methodName := x.src.text(child.ChildByFieldName("name"))
			start, end := nodeLines(child)
			x.out.Classes[classIdx].Methods = append(x.out.Classes[classIdx].Methods, parser.MethodRef{
				Name:      methodName,
				StartLine: start,
				EndLine:   end,
				IsStatic:  hasChildType(child, "static"),
				Access:    x.memberAccess(child, methodName),
			})
			x.function(child, child, methodName, parser.KindMethod, member)

		case "public_field_definition", "field_definition":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				nameNode = child.ChildByFieldName("property")
			}
			propName := x.src.text(nameNode)
			value := child.ChildByFieldName("value")
			x.out.Classes[classIdx].Properties = append(x.out.Classes[classIdx].Properties, parser.Property{
				Name:     propName,
				Type:     trimTypeAnnotation(x.src.text(child.ChildByFieldName("type"))),
				Access:   x.memberAccess(child, propName),
				Default:  x.src.text(value),
				IsStatic: hasChildType(child, "static"),
			})
			x.visit(value, tsScope{inBody: sc.inBody})

		default:
			x.visit(child, member)
		}
	}
}

func (x *tsExtractor) heritage(node *sitter.Node, facts *parser.ClassFacts) {
	h := childOfType(node, "class_heritage")
	if h == nil {
		return
	}
	for i := 0; i < int(h.ChildCount()); i++ {
		child := h.Child(i)
		switch child.Type() {
		case "extends_clause":
			value := child.ChildByFieldName("value")
			if value == nil && child.NamedChildCount() > 0 {
				value = child.NamedChild(0)
			}
			facts.Extends = x.src.text(value)
		case "implements_clause":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				facts.Implements = append(facts.Implements, x.src.text(child.NamedChild(j)))
			}
		default:
			// The JavaScript grammar puts the superclass expression directly under class_heritage.
			if child.IsNamed() && facts.Extends == "" {
				facts.Extends = x.src.text(child)
			}
		}
	}
}

func (x *tsExtractor) memberAccess(node *sitter.Node, name string) string {
	if mod := childOfType(node, "accessibility_modifier"); mod != nil {
		return strings.TrimSpace(x.src.text(mod))
	}
	if strings.HasPrefix(name, "#") {
		return "private"
	}
	return "public"
}

func (x *tsExtractor) parameters(fn *sitter.Node) []parser.Parameter {
	params := make([]parser.Parameter, 0)
	if single := fn.ChildByFieldName("parameter"); single != nil {
		return append(params, parser.Parameter{Name: x.src.text(single)})
	}

	list := fn.ChildByFieldName("parameters")
	if list == nil {
		return params
	}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		child := list.NamedChild(i)
		switch child.Type() {
		case "required_parameter", "optional_parameter":
			def := x.src.text(child.ChildByFieldName("value"))
			params = append(params, parser.Parameter{
				Name:     x.src.text(child.ChildByFieldName("pattern")),
				Type:     trimTypeAnnotation(x.src.text(child.ChildByFieldName("type"))),
				Optional: child.Type() == "optional_parameter" || def != "",
				Default:  def,
			})
		case "assignment_pattern":
			params = append(params, parser.Parameter{
				Name:     x.src.text(child.ChildByFieldName("left")),
				Optional: true,
				Default:  x.src.text(child.ChildByFieldName("right")),
			})
		case "identifier", "rest_pattern", "object_pattern", "array_pattern":
			params = append(params, parser.Parameter{Name: x.src.text(child)})
		}
	}
	return params
}

// docComment returns the JSDoc block directly above anchor, if any.
func (x *tsExtractor) docComment(anchor *sitter.Node) string {
	prev := anchor.PrevSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	raw := x.src.text(prev)
	if !strings.HasPrefix(raw, "/**") {
		return ""
	}
	if lineOf(anchor)-int(prev.EndPoint().Row)-1 > 1 {
		return ""
	}
	return cleanDocComment(raw)
}

func (x *tsExtractor) bodyFacts(body *sitter.Node) bodyFacts {
	var f bodyFacts
	if body == nil {
		return f
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call_expression":
			callee := n.ChildByFieldName("function")
			if callee != nil {
				switch callee.Type() {
				case "identifier":
					name := x.src.text(callee)
					f.calls = append(f.calls, name)
					f.callSites = append(f.callSites, parser.CallSite{Name: name, Line: lineOf(n)})
				case "member_expression":
					if prop := callee.ChildByFieldName("property"); prop != nil {
						f.calls = append(f.calls, x.src.text(prop))
					}
				}
			}
		case "identifier":
			name := x.src.text(n)
			if tsWritten(n) {
				f.written = append(f.written, name)
			} else {
				f.read = append(f.read, name)
			}
			return
		case "shorthand_property_identifier":
			f.read = append(f.read, x.src.text(n))
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return f
}

func tsWritten(ident *sitter.Node) bool {
	parent := ident.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "variable_declarator":
		return isField(parent, "name", ident)
	case "assignment_expression", "augmented_assignment_expression":
		return isField(parent, "left", ident)
	}
	return false
}

func (x *tsExtractor) collectImport(node *sitter.Node) {
	spec := trimQuotes(x.src.text(node.ChildByFieldName("source")))

	if clause := childOfType(node, "import_clause"); clause != nil {
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			child := clause.NamedChild(i)
			switch child.Type() {
			case "identifier":
				x.out.NamedImports = append(x.out.NamedImports, x.src.text(child))
			case "namespace_import":
				if id := childOfType(child, "identifier"); id != nil {
					x.out.NamedImports = append(x.out.NamedImports, x.src.text(id))
				}
			case "named_imports":
				for j := 0; j < int(child.NamedChildCount()); j++ {
					item := child.NamedChild(j)
					if item.Type() != "import_specifier" {
						continue
					}
					local := x.src.text(item.ChildByFieldName("alias"))
					if local == "" {
						local = x.src.text(item.ChildByFieldName("name"))
					}
					x.out.NamedImports = append(x.out.NamedImports, local)
				}
			}
		}
	}

	// import x = require("y")
	if req := childOfType(node, "import_require_clause"); req != nil {
		if id := childOfType(req, "identifier"); id != nil {
			x.out.NamedImports = append(x.out.NamedImports, x.src.text(id))
		}
		if spec == "" {
			spec = trimQuotes(x.src.text(req.ChildByFieldName("source")))
		}
	}

	x.addImport(spec)
}

// collectRequire records `const x = require("y")` and its destructured bindings.
func (x *tsExtractor) collectRequire(nameNode, call *sitter.Node) {
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.Type() != "identifier" || x.src.text(callee) != "require" {
		return
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 || args.NamedChild(0).Type() != "string" {
		return
	}
	x.addImport(trimQuotes(x.src.text(args.NamedChild(0))))

	if nameNode == nil {
		return
	}
	switch nameNode.Type() {
	case "identifier":
		x.out.NamedImports = append(x.out.NamedImports, x.src.text(nameNode))
	case "object_pattern":
		for i := 0; i < int(nameNode.NamedChildCount()); i++ {
			child := nameNode.NamedChild(i)
			switch child.Type() {
			case "shorthand_property_identifier_pattern":
				x.out.NamedImports = append(x.out.NamedImports, x.src.text(child))
			case "pair_pattern":
				x.out.NamedImports = append(x.out.NamedImports, x.src.text(child.ChildByFieldName("value")))
			}
		}
	}
}

func (x *tsExtractor) addImport(spec string) {
	if spec == "" {
		return
	}
	x.out.Imports = append(x.out.Imports, spec)
	if isLocalImport(spec) {
		x.out.Dependencies = append(x.out.Dependencies, spec)
	}
}

// markExported flags top-level entities named by `export { ... }` or `export default name`.
func (x *tsExtractor) markExported() {
	if len(x.exported) == 0 {
		return
	}
	for i := range x.out.Functions {
		ent := x.out.Entities[x.out.Functions[i].Index]
		if !ent.Nested && ent.Parent == "" && x.exported[ent.Name] {
			x.out.Functions[i].IsExported = true
		}
	}
	for i := range x.out.Classes {
		ent := x.out.Entities[x.out.Classes[i].Index]
		if !ent.Nested && x.exported[ent.Name] {
			x.out.Classes[i].IsExported = true
		}
	}
}
