package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codr/internal/fileutil"
	"github.com/skelly-dev/codr/internal/ignore"
	"github.com/skelly-dev/codr/internal/languages"
	"github.com/skelly-dev/codr/internal/store"
	"github.com/skelly-dev/codr/internal/walker"
)

type StatusSummary struct {
	RootPath     string         `json:"root_path"`
	MetadataDir  string         `json:"metadata_dir"`
	Initialized  bool           `json:"initialized"`
	Generation   int            `json:"generation,omitempty"`
	BuildID      string         `json:"build_id,omitempty"`
	BuiltAt      *time.Time     `json:"built_at,omitempty"`
	Counts       map[string]int `json:"counts,omitempty"`
	Clean        bool           `json:"clean"`
	ChangedFiles []string       `json:"changed_files,omitempty"`
	DeletedFiles []string       `json:"deleted_files,omitempty"`
	NewFiles     []string       `json:"new_files,omitempty"`
	StaleFiles   []string       `json:"stale_files,omitempty"`
	Suggestions  []string       `json:"suggestions,omitempty"`
}

func RunStatus(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, "")
	if err != nil {
		return err
	}
	st, err := e.store()
	if err != nil {
		return err
	}

	summary := StatusSummary{RootPath: e.root, MetadataDir: st.Dir()}
	snap, err := st.Snapshot()
	switch {
	case errors.Is(err, store.ErrUninitialized):
		summary.Suggestions = append(summary.Suggestions, "run `codr build` to create the index")
		return printStatus(e, summary)
	case err != nil:
		return err
	}

	summary.Initialized = true
	summary.Generation = snap.Generation()
	summary.BuildID = snap.Manifest.BuildID
	builtAt := snap.Manifest.CreatedAt
	summary.BuiltAt = &builtAt
	summary.Counts = snap.Manifest.Counts
	summary.StaleFiles = relPaths(e.root, snap.StaleFiles())

	indexed := make(map[string]bool, len(snap.Files))
	for _, f := range snap.Files {
		indexed[f.FilePath] = true
		hash, err := fileutil.HashFile(f.FilePath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			summary.DeletedFiles = append(summary.DeletedFiles, relPath(e.root, f.FilePath))
		case err != nil:
			return fmt.Errorf("failed to hash %s: %w", f.FilePath, err)
		case hash != f.Hash:
			summary.ChangedFiles = append(summary.ChangedFiles, relPath(e.root, f.FilePath))
		}
	}

	newFiles, err := unindexedFiles(e, indexed)
	if err != nil {
		return err
	}
	summary.NewFiles = newFiles

	summary.Clean = len(summary.ChangedFiles)+len(summary.DeletedFiles)+len(summary.NewFiles)+len(summary.StaleFiles) == 0
	if !summary.Clean {
		summary.Suggestions = append(summary.Suggestions, "run `codr build` to refresh the index")
	}
	return printStatus(e, summary)
}

// unindexedFiles walks root the way a build would and reports files the
// current generation does not know about.
func unindexedFiles(e *env, indexed map[string]bool) ([]string, error) {
	matcher, err := ignore.Load(e.root, e.cfg.Ignore, e.cfg.RespectGitignore)
	if err != nil {
		return nil, err
	}
	registry := languages.NewDefaultRegistry()
	accept := func(path string) bool {
		p, ok := registry.GetParserForFile(path)
		return ok && e.cfg.LanguageEnabled(p.Language())
	}

	var out []string
	for path, err := range walker.Walk(e.root, walker.Options{
		Ignore:         matcher,
		Accept:         accept,
		FollowSymlinks: e.cfg.FollowSymlinks,
	}) {
		if err != nil {
			e.logger.Debug("walk problem", "error", err)
			continue
		}
		if !indexed[path] {
			out = append(out, relPath(e.root, path))
		}
	}
	sort.Strings(out)
	return out, nil
}

func printStatus(e *env, summary StatusSummary) error {
	if e.asJSON {
		return fileutil.PrintJSON(e.out, summary)
	}
	st := newStyles(e.out)

	if !summary.Initialized {
		fmt.Fprintf(e.out, "%s no index at %s\n", st.warning.Render("uninitialized:"), summary.MetadataDir)
	} else {
		fmt.Fprintf(e.out, "%s %d (%s)\n", st.title.Render("generation"), summary.Generation, summary.BuildID)
		fmt.Fprintf(e.out, "built: %s\n", summary.BuiltAt.Local().Format(time.RFC3339))
		keys := fileutil.MapKeysSorted(summary.Counts)
		for _, key := range keys {
			fmt.Fprintf(e.out, "  %s: %d\n", key, summary.Counts[key])
		}
		if summary.Clean {
			fmt.Fprintln(e.out, st.ok.Render("index is up to date"))
		}
		for _, group := range []struct {
			label string
			paths []string
		}{
			{"changed files", summary.ChangedFiles},
			{"deleted files", summary.DeletedFiles},
			{"new files", summary.NewFiles},
			{"stale files", summary.StaleFiles},
		} {
			if len(group.paths) > 0 {
				fmt.Fprintf(e.out, "%s (%d): %s\n", group.label, len(group.paths), SummarizePaths(group.paths, 8))
			}
		}
	}
	for _, suggestion := range summary.Suggestions {
		fmt.Fprintf(e.out, "%s %s\n", st.muted.Render("hint:"), suggestion)
	}
	return nil
}

func relPaths(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, relPath(root, p))
	}
	return out
}
