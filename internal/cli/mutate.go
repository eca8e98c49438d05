package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codr/internal/fileutil"
	"github.com/skelly-dev/codr/internal/mutate"
)

func RunDelete(cmd *cobra.Command, args []string) error {
	e, svc, err := openMutator(cmd)
	if err != nil {
		return err
	}
	start, err := parseLine("start", args[1])
	if err != nil {
		return err
	}
	end, err := parseLine("end", args[2])
	if err != nil {
		return err
	}
	res, err := svc.DeleteRange(e.resolveFile(args[0]), start, end)
	if err != nil {
		return err
	}
	return printMutation(cmd, e, res, fmt.Sprintf("deleted %d line(s)", res.LinesChanged))
}

func RunInsert(cmd *cobra.Command, args []string) error {
	e, svc, err := openMutator(cmd)
	if err != nil {
		return err
	}
	start, err := parseLine("start", args[1])
	if err != nil {
		return err
	}
	content := args[2]
	if content == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		content = string(data)
	}
	res, err := svc.InsertAt(e.resolveFile(args[0]), start, content)
	if err != nil {
		return err
	}
	return printMutation(cmd, e, res, fmt.Sprintf("inserted %d line(s)", res.LinesChanged))
}

func openMutator(cmd *cobra.Command) (*env, *mutate.Service, error) {
	e, err := loadEnv(cmd, "")
	if err != nil {
		return nil, nil, err
	}
	st, err := e.store()
	if err != nil {
		return nil, nil, err
	}
	return e, mutate.New(st), nil
}

func printMutation(cmd *cobra.Command, e *env, res mutate.Result, verb string) error {
	if e.asJSON {
		return fileutil.PrintJSON(e.out, res)
	}
	fmt.Fprintf(e.out, "%s in %s (%d -> %d lines)\n", verb, relPath(e.root, res.Path), res.LinesBefore, res.LinesAfter)
	showDiff, err := OptionalBoolFlag(cmd, "diff", false)
	if err != nil {
		return err
	}
	if showDiff {
		renderDiff(e.out, res.Diff)
	}
	return nil
}

func parseLine(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s line %q: %w", name, raw, mutate.ErrInvalidRange)
	}
	return n, nil
}
