package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codr/internal/fileutil"
)

const (
	HookStart = "# >>> codr build hook >>>"
	HookEnd   = "# <<< codr build hook <<<"
)

func RunInstallHook(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, "")
	if err != nil {
		return err
	}

	repoRoot, gitDir, err := ResolveGitPaths(e.root)
	if err != nil {
		return err
	}

	hookPath := filepath.Join(gitDir, "hooks", "pre-commit")
	if err := os.MkdirAll(filepath.Dir(hookPath), 0755); err != nil {
		return fmt.Errorf("failed to create hook directory: %w", err)
	}

	existing := ""
	if data, err := os.ReadFile(hookPath); err == nil {
		existing = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read existing hook: %w", err)
	}

	updated := UpsertHook(existing, repoRoot, e.cfg.MetadataDir)
	changed, err := fileutil.WriteIfChanged(hookPath, []byte(updated), 0755)
	if err != nil {
		return fmt.Errorf("failed to write hook: %w", err)
	}
	if !changed {
		fmt.Fprintf(e.out, "Pre-commit hook at %s is up to date\n", hookPath)
		return nil
	}

	fmt.Fprintf(e.out, "Installed pre-commit hook at %s\n", hookPath)
	return nil
}

func ResolveGitPaths(workingDir string) (repoRoot string, gitDir string, err error) {
	repoRootOut, err := exec.Command("git", "-C", workingDir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", "", fmt.Errorf("not inside a git repository")
	}

	gitDirOut, err := exec.Command("git", "-C", workingDir, "rev-parse", "--git-dir").Output()
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve git directory: %w", err)
	}

	repoRoot = strings.TrimSpace(string(repoRootOut))
	gitDir = strings.TrimSpace(string(gitDirOut))
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(repoRoot, gitDir)
	}
	return repoRoot, gitDir, nil
}

// UpsertHook replaces the codr block in existingHook, or appends one.
func UpsertHook(existingHook, repoRoot, metadataDir string) string {
	block := BuildHookBlock(repoRoot, metadataDir)

	if existingHook == "" {
		return "#!/bin/sh\n\n" + block + "\n"
	}

	start := strings.Index(existingHook, HookStart)
	end := strings.Index(existingHook, HookEnd)
	if start >= 0 && end >= start {
		end += len(HookEnd)
		updated := existingHook[:start] + block + existingHook[end:]
		return fileutil.EnsureTrailingNewline(updated)
	}

	base := fileutil.EnsureTrailingNewline(existingHook)
	if !strings.HasPrefix(base, "#!") {
		base = "#!/bin/sh\n" + base
	}
	return base + "\n" + block + "\n"
}

// BuildHookBlock rebuilds only when the project was already initialized.
func BuildHookBlock(repoRoot, metadataDir string) string {
	return fmt.Sprintf(
		"%s\nrepo_root=%q\nmetadata_dir=\"$repo_root/%s\"\nif command -v codr >/dev/null 2>&1; then\n  if [ -f \"$metadata_dir/CURRENT\" ]; then\n    (cd \"$repo_root\" && codr build --log-level warn) || exit 1\n  fi\nfi\n%s",
		HookStart,
		repoRoot,
		filepath.ToSlash(metadataDir),
		HookEnd,
	)
}
