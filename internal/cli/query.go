package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codr/internal/fileutil"
	"github.com/skelly-dev/codr/internal/metadata"
	"github.com/skelly-dev/codr/internal/parser"
	"github.com/skelly-dev/codr/internal/query"
)

// ErrNotFound is returned when a lookup has no match, so the process exits non-zero.
var ErrNotFound = errors.New("not found")

func openQuery(cmd *cobra.Command) (*env, *query.Service, error) {
	e, err := loadEnv(cmd, "")
	if err != nil {
		return nil, nil, err
	}
	st, err := e.store()
	if err != nil {
		return nil, nil, err
	}
	return e, query.New(st), nil
}

func sourceOption(cmd *cobra.Command) ([]query.Option, error) {
	withSource, err := OptionalBoolFlag(cmd, "source", false)
	if err != nil || !withSource {
		return nil, err
	}
	return []query.Option{query.WithSource()}, nil
}

func RunFunction(cmd *cobra.Command, args []string) error {
	e, svc, err := openQuery(cmd)
	if err != nil {
		return err
	}
	all, err := OptionalBoolFlag(cmd, "all", false)
	if err != nil {
		return err
	}
	name := args[0]

	if all {
		res, err := svc.Functions(name)
		if err != nil {
			return err
		}
		if e.asJSON {
			if err := fileutil.PrintJSON(e.out, res); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(e.out, "functions named %s (%d)\n", name, len(res.Records))
			for _, fn := range res.Records {
				printFunction(e.out, e.root, fn)
			}
		}
		return notFound(res.Found, "function", name)
	}

	opts, err := sourceOption(cmd)
	if err != nil {
		return err
	}
	res, err := svc.Function(name, opts...)
	if err != nil {
		return err
	}
	if e.asJSON {
		if err := fileutil.PrintJSON(e.out, res); err != nil {
			return err
		}
	} else if res.Found {
		printFunction(e.out, e.root, res.Record)
		printFooter(e.out, res.Source, res.Stale)
	}
	return notFound(res.Found, "function", name)
}

func RunClass(cmd *cobra.Command, args []string) error {
	e, svc, err := openQuery(cmd)
	if err != nil {
		return err
	}
	opts, err := sourceOption(cmd)
	if err != nil {
		return err
	}
	res, err := svc.Class(args[0], opts...)
	if err != nil {
		return err
	}
	if e.asJSON {
		if err := fileutil.PrintJSON(e.out, res); err != nil {
			return err
		}
	} else if res.Found {
		printClass(e.out, e.root, res.Record)
		printFooter(e.out, res.Source, res.Stale)
	}
	return notFound(res.Found, "class", args[0])
}

func RunFile(cmd *cobra.Command, args []string) error {
	e, svc, err := openQuery(cmd)
	if err != nil {
		return err
	}
	res, err := svc.File(args[0])
	if err != nil {
		return err
	}
	if e.asJSON {
		if err := fileutil.PrintJSON(e.out, res); err != nil {
			return err
		}
	} else if res.Found {
		f := res.Record
		fmt.Fprintf(e.out, "file %s (%s, %d lines, %d bytes)\n", relPath(e.root, f.FilePath), f.Language, f.LineCount, f.SizeBytes)
		printList(e.out, "imports", f.Imports)
		printList(e.out, "exports", f.Exports)
		printList(e.out, "functions", f.Functions)
		printList(e.out, "classes", f.Classes)
		printList(e.out, "dependencies", f.Dependencies)
		printFooter(e.out, "", res.Stale)
	}
	return notFound(res.Found, "file", args[0])
}

func RunCallGraph(cmd *cobra.Command, args []string) error {
	e, svc, err := openQuery(cmd)
	if err != nil {
		return err
	}
	res, err := svc.CallNeighborhood(args[0])
	if err != nil {
		return err
	}
	if e.asJSON {
		if err := fileutil.PrintJSON(e.out, res); err != nil {
			return err
		}
	} else if res.Found {
		fmt.Fprintf(e.out, "%s\n", nodeLabel(e.root, res.Node))
		fmt.Fprintf(e.out, "callers (%d)\n", len(res.Callers))
		for _, n := range res.Callers {
			fmt.Fprintf(e.out, "  %s\n", nodeLabel(e.root, n))
		}
		fmt.Fprintf(e.out, "callees (%d)\n", len(res.Callees))
		for _, n := range res.Callees {
			fmt.Fprintf(e.out, "  %s\n", nodeLabel(e.root, n))
		}
		printFooter(e.out, "", res.Stale)
	}
	return notFound(res.Found, "function", args[0])
}

func notFound(found bool, what, name string) error {
	if found {
		return nil
	}
	return fmt.Errorf("%s %q: %w", what, name, ErrNotFound)
}

func printFunction(w io.Writer, root string, fn parser.FunctionMetadata) {
	name := fn.Name
	if fn.Parent != "" {
		name = fn.Parent + "." + fn.Name
	}
	fmt.Fprintf(w, "%s %s %s:%d-%d\n", fn.Kind, name, relPath(root, fn.FilePath), fn.StartLine, fn.EndLine)

	var flags []string
	if fn.IsExported {
		flags = append(flags, "exported")
	}
	if fn.IsAsync {
		flags = append(flags, "async")
	}
	if len(flags) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(flags, " "))
	}

	params := make([]string, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		params = append(params, formatParameter(p))
	}
	fmt.Fprintf(w, "  signature: (%s)", strings.Join(params, ", "))
	if fn.ReturnType != "" {
		fmt.Fprintf(w, " -> %s", fn.ReturnType)
	}
	fmt.Fprintln(w)
	if fn.Docstring != "" {
		fmt.Fprintf(w, "  doc: %s\n", firstLine(fn.Docstring))
	}
	printList(w, "calls", fn.Calls)
	printList(w, "imports used", fn.ImportsUsed)
	printList(w, "reads", fn.VariablesRead)
	printList(w, "writes", fn.VariablesWritten)
}

func printClass(w io.Writer, root string, cls parser.ClassMetadata) {
	fmt.Fprintf(w, "class %s %s:%d-%d\n", cls.Name, relPath(root, cls.FilePath), cls.StartLine, cls.EndLine)
	if cls.IsExported {
		fmt.Fprintln(w, "  exported")
	}
	if cls.Extends != "" {
		fmt.Fprintf(w, "  extends: %s\n", cls.Extends)
	}
	printList(w, "implements", cls.Implements)
	if cls.Docstring != "" {
		fmt.Fprintf(w, "  doc: %s\n", firstLine(cls.Docstring))
	}
	for _, p := range cls.Properties {
		line := p.Name
		if p.Type != "" {
			line += ": " + p.Type
		}
		if p.Default != "" {
			line += " = " + p.Default
		}
		if p.Access != "" {
			line = p.Access + " " + line
		}
		if p.IsStatic {
			line = "static " + line
		}
		fmt.Fprintf(w, "  property %s\n", line)
	}
	for _, m := range cls.Methods {
		fmt.Fprintf(w, "  method %s %d-%d\n", m.Name, m.StartLine, m.EndLine)
	}
}

func printFooter(w io.Writer, source string, stale bool) {
	if stale {
		fmt.Fprintln(w, newStyles(w).warning.Render("  stale: file changed since the last build"))
	}
	if source != "" {
		fmt.Fprintln(w, "---")
		fmt.Fprintln(w, source)
	}
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s: %s\n", label, SummarizePaths(items, 12))
}

func formatParameter(p parser.Parameter) string {
	out := p.Name
	if p.Optional && p.Default == "" {
		out += "?"
	}
	if p.Type != "" {
		out += ": " + p.Type
	}
	if p.Default != "" {
		out += " = " + p.Default
	}
	return out
}

func nodeLabel(root string, n metadata.CallGraphNode) string {
	label := fmt.Sprintf("%s (%s)", n.FunctionName, relPath(root, n.FilePath))
	if !n.Resolved {
		label += " [unresolved]"
	}
	return label
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
