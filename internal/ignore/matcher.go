package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/skelly-dev/codr/internal/fileutil"
)

// FileName is the project-level ignore file read from the repository root.
const FileName = ".codrignore"

// DefaultRules are always applied first; user negations can override them.
var DefaultRules = []string{
	".git/",
	".codr/",
	"node_modules/",
	"dist/",
	"build/",
	"out/",
	".next/",
	".vercel/",
	".vscode/",
	".idea/",
	".github/",
	"coverage/",
	"__pycache__/",
	".venv/",
	"venv/",
	".mypy_cache/",
	"vendor/",
	"target/",
}

type rule struct {
	pattern  string
	compiled glob.Glob
	negated  bool
	dirOnly  bool
	anchored bool
}

// Matcher applies gitignore-like rules with "last rule wins" behavior.
type Matcher struct {
	rules     []rule
	gitignore *gitignore.GitIgnore
}

// NewMatcher builds a matcher from user-provided ignore lines.
// Default excludes are prepended and can be overridden by user negation rules.
// Lines that fail to compile are dropped.
func NewMatcher(userRules []string) *Matcher {
	all := make([]string, 0, len(DefaultRules)+len(userRules))
	all = append(all, DefaultRules...)
	all = append(all, userRules...)

	rules := make([]rule, 0, len(all))
	for _, line := range all {
		if parsed, ok := parseRule(line); ok {
			rules = append(rules, parsed)
		}
	}

	return &Matcher{rules: rules}
}

// Load builds a matcher for root from extra patterns, the root's .codrignore
// and, when withGitignore is set, the root's .gitignore. Repeated lines are kept once.
func Load(root string, extra []string, withGitignore bool) (*Matcher, error) {
	lines := append([]string{}, extra...)

	fileRules, err := ReadRules(filepath.Join(root, FileName))
	if err != nil {
		return nil, err
	}
	lines = fileutil.DedupeStrings(append(lines, fileRules...))

	m := NewMatcher(lines)
	if withGitignore {
		path := filepath.Join(root, ".gitignore")
		if _, err := os.Stat(path); err == nil {
			gi, err := gitignore.CompileIgnoreFile(path)
			if err != nil {
				return nil, fmt.Errorf("compile %s: %w", path, err)
			}
			m.gitignore = gi
		}
	}
	return m, nil
}

// ReadRules returns the non-empty lines of an ignore file. A missing file yields no rules.
func ReadRules(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	lines := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// ShouldIgnore returns true when relPath should be excluded.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = normalizePath(relPath)
	if relPath == "" {
		return false
	}

	ignored := false
	if m.gitignore != nil {
		candidate := relPath
		if isDir {
			candidate += "/"
		}
		ignored = m.gitignore.MatchesPath(candidate)
	}
	for _, rule := range m.rules {
		if ruleMatches(rule, relPath, isDir) {
			ignored = !rule.negated
		}
	}
	return ignored
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	parsed := rule{}
	if strings.HasPrefix(line, "!") {
		parsed.negated = true
		line = strings.TrimPrefix(line, "!")
	}
	if strings.HasPrefix(line, "/") {
		parsed.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if strings.HasSuffix(line, "/") {
		parsed.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	line = normalizePath(line)
	if line == "" {
		return rule{}, false
	}
	compiled, err := glob.Compile(line, '/')
	if err != nil {
		return rule{}, false
	}
	parsed.pattern = line
	parsed.compiled = compiled
	return parsed, true
}

func ruleMatches(rule rule, relPath string, isDir bool) bool {
	if rule.dirOnly {
		return matchDirectoryPattern(rule, relPath, isDir)
	}

	if rule.anchored {
		return rule.compiled.Match(relPath)
	}

	if strings.Contains(rule.pattern, "/") {
		parts := strings.Split(relPath, "/")
		for i := range parts {
			if rule.compiled.Match(strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}

	for _, segment := range strings.Split(relPath, "/") {
		if rule.compiled.Match(segment) {
			return true
		}
	}
	return false
}

// matchDirectoryPattern reports whether relPath is, or sits below, a directory the rule names.
func matchDirectoryPattern(rule rule, relPath string, isDir bool) bool {
	parts := strings.Split(relPath, "/")
	dirs := len(parts)
	if !isDir {
		dirs--
	}
	for i := 0; i < dirs; i++ {
		prefix := strings.Join(parts[:i+1], "/")
		if rule.compiled.Match(prefix) {
			return true
		}
		if rule.anchored || strings.Contains(rule.pattern, "/") {
			continue
		}
		if rule.compiled.Match(parts[i]) {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")
	return path
}
