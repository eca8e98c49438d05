package languages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/codr/internal/parser"
)

const serviceTS = `import { helper } from "./util";
import * as fs from "fs";

/** Adds numbers. */
export function add(a: number, b = 2): number {
  const total = a + b;
  helper(total);
  return total;
}

export const double = async (x: number) => {
  return add(x, x);
};

class Box extends Base implements Shape {
  private size: number = 1;
  static make() { return new Box(); }
  area(): number { return this.size * 2; }
}

export { Box as Container };
`

func TestTypeScriptExtractsEntitiesInSourceOrder(t *testing.T) {
	a := analyze(t, "/repo/service.ts", serviceTS)

	assert.Equal(t, "typescript", a.Language)
	assert.Equal(t, []string{"add", "double", "Box", "make", "area"}, entityNames(a))

	_, add := entityNamed(t, a, "add")
	assert.Equal(t, parser.KindFunction, add.Kind)
	assert.Equal(t, 5, add.StartLine)
	assert.Equal(t, 9, add.EndLine)
	assert.Equal(t, "/repo/service.ts", add.FilePath)

	_, double := entityNamed(t, a, "double")
	assert.Equal(t, parser.KindArrowFunction, double.Kind)
	assert.Equal(t, 11, double.StartLine)
	assert.Equal(t, 13, double.EndLine)

	_, area := entityNamed(t, a, "area")
	assert.Equal(t, parser.KindMethod, area.Kind)
	assert.Equal(t, "Box", area.Parent)
	assert.Equal(t, 18, area.StartLine)
}

func TestTypeScriptSourceTextIsVerbatimLines(t *testing.T) {
	a := analyze(t, "/repo/service.ts", serviceTS)
	lines := parser.SplitLines(serviceTS)

	for _, e := range a.Entities {
		assert.Equal(t, parser.SourceLines(lines, e.StartLine, e.EndLine), e.SourceText, e.Name)
		assert.LessOrEqual(t, e.StartLine, e.EndLine)
	}
}

func TestTypeScriptFunctionFacts(t *testing.T) {
	a := analyze(t, "/repo/service.ts", serviceTS)

	add := functionFacts(t, a, "add")
	assert.True(t, add.IsExported)
	assert.False(t, add.IsAsync)
	assert.Equal(t, "Adds numbers.", add.Docstring)
	assert.Equal(t, "number", add.ReturnType)
	require.Len(t, add.Parameters, 2)
	assert.Equal(t, parser.Parameter{Name: "a", Type: "number"}, add.Parameters[0])
	assert.Equal(t, parser.Parameter{Name: "b", Optional: true, Default: "2"}, add.Parameters[1])
	assert.Equal(t, []string{"helper"}, add.Calls)
	assert.Equal(t, []parser.CallSite{{Name: "helper", Line: 7}}, add.CallSites)
	assert.Contains(t, add.VariablesWritten, "total")
	assert.Contains(t, add.VariablesRead, "helper")
	assert.Contains(t, add.VariablesRead, "a")

	double := functionFacts(t, a, "double")
	assert.True(t, double.IsExported)
	assert.True(t, double.IsAsync)
	assert.Equal(t, []parser.CallSite{{Name: "add", Line: 12}}, double.CallSites)
}

func TestTypeScriptClassFactsAndExportClause(t *testing.T) {
	a := analyze(t, "/repo/service.ts", serviceTS)

	box := classFacts(t, a, "Box")
	assert.True(t, box.IsExported, "export clause should mark the local class exported")
	assert.Equal(t, "Base", box.Extends)
	assert.Equal(t, []string{"Shape"}, box.Implements)
	require.Len(t, box.Properties, 1)
	assert.Equal(t, "size", box.Properties[0].Name)
	assert.Equal(t, "number", box.Properties[0].Type)
	assert.Equal(t, "private", box.Properties[0].Access)
	assert.Equal(t, "1", box.Properties[0].Default)
	require.Len(t, box.Methods, 2)
	assert.Equal(t, "make", box.Methods[0].Name)
	assert.True(t, box.Methods[0].IsStatic)
	assert.Equal(t, "public", box.Methods[1].Access)

	assert.Equal(t, []string{"Container", "add", "double"}, a.Exports)
	assert.Equal(t, []string{"./util", "fs"}, a.Imports)
	assert.Equal(t, []string{"fs", "helper"}, a.NamedImports)
	assert.Equal(t, []string{"./util"}, a.Dependencies)
}

func TestTypeScriptNestedFunctionsAreMarked(t *testing.T) {
	a := analyze(t, "/repo/nested.js", `function outer() {
  function inner() { leaf(); }
  inner();
}
`)

	assert.Equal(t, "javascript", a.Language)
	_, outer := entityNamed(t, a, "outer")
	_, inner := entityNamed(t, a, "inner")
	assert.False(t, outer.Nested)
	assert.True(t, inner.Nested)

	facts := functionFacts(t, a, "outer")
	assert.Equal(t, []parser.CallSite{{Name: "leaf", Line: 2}, {Name: "inner", Line: 3}}, facts.CallSites)
}

func TestTypeScriptUnboundCallbacksBecomeAnonymousCallers(t *testing.T) {
	a := analyze(t, "/repo/routes.js", `app.get("/", () => handle());
function handle() { return 1; }
`)

	assert.Equal(t, []string{"handle"}, entityNames(a))
	assert.Equal(t, []parser.CallSite{{Name: "handle", Line: 1}}, a.AnonymousCallSites)
}

func TestTypeScriptObjectLiteralMethodsAreCallers(t *testing.T) {
	a := analyze(t, "/repo/api.ts", `function main() {}
main();
const api = {
  run() {
    helper();
  },
};
`)

	assert.Equal(t, []string{"main", "run"}, entityNames(a))
	_, run := entityNamed(t, a, "run")
	assert.Equal(t, parser.KindMethod, run.Kind)
	assert.Equal(t, "", run.Parent)
	assert.False(t, run.Nested)
	assert.Equal(t, 4, run.StartLine)
	assert.Equal(t, 6, run.EndLine)

	assert.Equal(t, []parser.CallSite{{Name: "helper", Line: 5}}, functionFacts(t, a, "run").CallSites)
	assert.Empty(t, functionFacts(t, a, "main").CallSites)
	assert.Empty(t, a.AnonymousCallSites, "module-level statements are not callers")
}

func TestTypeScriptDefaultExportWithoutName(t *testing.T) {
	a := analyze(t, "/repo/default.ts", "export default () => 1;\n")

	require.Len(t, a.Entities, 1)
	assert.Equal(t, parser.Anonymous, a.Entities[0].Name)
	assert.Equal(t, parser.KindArrowFunction, a.Entities[0].Kind)
	assert.False(t, a.Entities[0].Named())
	assert.Equal(t, []string{"default"}, a.Exports)
}

func TestTypeScriptRequireCountsAsImport(t *testing.T) {
	a := analyze(t, "/repo/cjs.cjs", `const { readFile } = require("fs");
const path = require("path");
`)

	assert.Equal(t, []string{"fs", "path"}, a.Imports)
	assert.Equal(t, []string{"path", "readFile"}, a.NamedImports)
	assert.Empty(t, a.Entities)
}

func TestTypeScriptSyntaxErrorIsParseFailure(t *testing.T) {
	_, err := NewTypeScriptParser().Parse("/repo/broken.ts", []byte("function (\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrParseFailure))
}
