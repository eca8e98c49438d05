package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codr/internal/config"
	"github.com/skelly-dev/codr/internal/fileutil"
	"github.com/skelly-dev/codr/internal/ignore"
	"github.com/skelly-dev/codr/internal/languages"
	"github.com/skelly-dev/codr/internal/walker"
)

func RunInit(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, "")
	if err != nil {
		return err
	}

	data, err := config.Default().Marshal()
	if err != nil {
		return err
	}
	cfgPath := filepath.Join(e.root, config.FileName)
	written, err := fileutil.WriteIfMissing(cfgPath, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", cfgPath, err)
	}
	if written {
		fmt.Fprintf(e.out, "Wrote %s\n", cfgPath)
	}

	if entry := gitignoreEntry(e.cfg.MetadataDir); entry != "" {
		added, err := ensureGitignoreEntry(filepath.Join(e.root, ".gitignore"), entry)
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintf(e.out, "Added %s to .gitignore\n", entry)
		}
	}

	noBuild, err := OptionalBoolFlag(cmd, "no-build", false)
	if err != nil || noBuild {
		return err
	}
	if !hasSourceFiles(e) {
		fmt.Fprintln(e.out, "No supported source files yet; run `codr build` once there are.")
		return nil
	}

	fmt.Fprintln(e.out, "Running initial build...")
	return buildIndex(cmd, e)
}

// gitignoreEntry is the top-level directory holding the metadata, e.g. ".codr/".
func gitignoreEntry(metadataDir string) string {
	if metadataDir == "" || filepath.IsAbs(metadataDir) {
		return ""
	}
	first := strings.Split(filepath.ToSlash(filepath.Clean(metadataDir)), "/")[0]
	if first == "." || first == ".." {
		return ""
	}
	return first + "/"
}

func ensureGitignoreEntry(path, entry string) (bool, error) {
	existing := ""
	if data, err := os.ReadFile(path); err == nil {
		existing = string(data)
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, line := range strings.Split(existing, "\n") {
		if strings.TrimSpace(line) == entry {
			return false, nil
		}
	}

	updated := entry + "\n"
	if existing != "" {
		updated = fileutil.EnsureTrailingNewline(existing) + updated
	}
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func hasSourceFiles(e *env) bool {
	matcher, err := ignore.Load(e.root, e.cfg.Ignore, e.cfg.RespectGitignore)
	if err != nil {
		return false
	}
	registry := languages.NewDefaultRegistry()
	for path, err := range walker.Walk(e.root, walker.Options{
		Ignore: matcher,
		Accept: registry.Supports,
	}) {
		if err == nil && path != "" {
			return true
		}
	}
	return false
}
