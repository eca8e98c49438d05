package languages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/codr/internal/parser"
)

const servicePy = `import os
from .util import helper as h, other
from typing import List

__all__ = ["Service", "run"]


class Service(Base, Mixin):
    """Service docs."""

    _cache = {}
    __secret: int = 0

    @staticmethod
    def build():
        return Service()

    async def fetch(self, key: str, retries=3):
        data = h(key)
        self.count += 1
        return data


def run(x):
    def inner():
        return x
    return inner()


square = lambda n: n * n


def _private():
    pass
`

func TestPythonExtractsEntities(t *testing.T) {
	a := analyze(t, "/repo/service.py", servicePy)

	assert.Equal(t, "python", a.Language)
	assert.Equal(t, []string{"Service", "build", "fetch", "run", "inner", "square", "_private"}, entityNames(a))

	_, svc := entityNamed(t, a, "Service")
	assert.Equal(t, parser.KindClass, svc.Kind)
	assert.Equal(t, 8, svc.StartLine)
	assert.Equal(t, 21, svc.EndLine)

	_, build := entityNamed(t, a, "build")
	assert.Equal(t, parser.KindMethod, build.Kind)
	assert.Equal(t, "Service", build.Parent)
	assert.Equal(t, 15, build.StartLine)
	assert.Equal(t, 16, build.EndLine)

	_, inner := entityNamed(t, a, "inner")
	assert.Equal(t, parser.KindFunction, inner.Kind)
	assert.True(t, inner.Nested)

	_, square := entityNamed(t, a, "square")
	assert.Equal(t, parser.KindArrowFunction, square.Kind)
	assert.Equal(t, 30, square.StartLine)
	assert.Equal(t, "square = lambda n: n * n", square.SourceText)
}

func TestPythonClassFacts(t *testing.T) {
	a := analyze(t, "/repo/service.py", servicePy)

	svc := classFacts(t, a, "Service")
	assert.True(t, svc.IsExported)
	assert.Equal(t, "Base", svc.Extends)
	assert.Equal(t, []string{"Mixin"}, svc.Implements)
	assert.Equal(t, "Service docs.", svc.Docstring)

	require.Len(t, svc.Properties, 2)
	assert.Equal(t, parser.Property{Name: "_cache", Access: "protected", Default: "{}"}, svc.Properties[0])
	assert.Equal(t, parser.Property{Name: "__secret", Type: "int", Access: "private", Default: "0"}, svc.Properties[1])

	require.Len(t, svc.Methods, 2)
	assert.Equal(t, "build", svc.Methods[0].Name)
	assert.True(t, svc.Methods[0].IsStatic)
	assert.Equal(t, "fetch", svc.Methods[1].Name)
	assert.False(t, svc.Methods[1].IsStatic)
}

func TestPythonFunctionFacts(t *testing.T) {
	a := analyze(t, "/repo/service.py", servicePy)

	fetch := functionFacts(t, a, "fetch")
	assert.True(t, fetch.IsAsync)
	assert.False(t, fetch.IsExported, "methods are not module exports")
	require.Len(t, fetch.Parameters, 3)
	assert.Equal(t, parser.Parameter{Name: "key", Type: "str"}, fetch.Parameters[1])
	assert.Equal(t, parser.Parameter{Name: "retries", Optional: true, Default: "3"}, fetch.Parameters[2])
	assert.Equal(t, []parser.CallSite{{Name: "h", Line: 19}}, fetch.CallSites)
	assert.Equal(t, []string{"data"}, fetch.VariablesWritten)
	assert.Equal(t, []string{"data", "h", "key", "self"}, fetch.VariablesRead)

	run := functionFacts(t, a, "run")
	assert.True(t, run.IsExported)
	assert.Equal(t, []parser.CallSite{{Name: "inner", Line: 27}}, run.CallSites)

	assert.False(t, functionFacts(t, a, "_private").IsExported)
	assert.False(t, functionFacts(t, a, "square").IsExported, "__all__ overrides the underscore convention")
}

func TestPythonImportsAndExports(t *testing.T) {
	a := analyze(t, "/repo/service.py", servicePy)

	assert.Equal(t, []string{".util", "os", "typing"}, a.Imports)
	assert.Equal(t, []string{"List", "h", "os", "other"}, a.NamedImports)
	assert.Equal(t, []string{".util"}, a.Dependencies)
	assert.Equal(t, []string{"Service", "run"}, a.Exports)
}

func TestPythonExportsFollowUnderscoreConventionWithoutAll(t *testing.T) {
	a := analyze(t, "/repo/mod.py", `def public():
    pass


def _hidden():
    pass
`)

	assert.Equal(t, []string{"public"}, a.Exports)
	assert.True(t, functionFacts(t, a, "public").IsExported)
	assert.False(t, functionFacts(t, a, "_hidden").IsExported)
}

func TestPythonSyntaxErrorIsParseFailure(t *testing.T) {
	_, err := NewPythonParser().Parse("/repo/broken.py", []byte("def broken(:\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrParseFailure))
}
