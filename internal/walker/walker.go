// Package walker enumerates the source files of a project.
package walker

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/skelly-dev/codr/internal/ignore"
)

// ErrSymlinkCycle is reported when a followed symlink leads back to a directory already visited.
var ErrSymlinkCycle = errors.New("symlink cycle")

// Options controls a walk.
type Options struct {
	// Ignore excludes paths relative to the root. Nil applies the default rules only.
	Ignore *ignore.Matcher
	// Accept filters regular files, usually by extension. Nil accepts every file.
	Accept func(path string) bool
	// FollowSymlinks descends into symlinked directories and yields symlinked files.
	FollowSymlinks bool
}

// Walk lazily yields absolute, cleaned paths of accepted files under root.
// Directory entries are visited in lexical order so the sequence is stable for a
// fixed filesystem snapshot. Non-fatal problems are yielded as ("", err) and the
// walk continues; the consumer stops it by breaking out of the loop.
func Walk(root string, opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		abs, err := filepath.Abs(root)
		if err != nil {
			yield("", fmt.Errorf("resolve root %s: %w", root, err))
			return
		}
		abs = filepath.Clean(abs)

		info, err := os.Stat(abs)
		if err != nil {
			yield("", err)
			return
		}
		if !info.IsDir() {
			if accept(opts, abs) {
				yield(abs, nil)
			}
			return
		}

		matcher := opts.Ignore
		if matcher == nil {
			matcher = ignore.NewMatcher(nil)
		}

		w := &walk{
			root:    abs,
			opts:    opts,
			matcher: matcher,
			visited: make(map[string]bool),
			yield:   yield,
		}
		w.dir(abs)
	}
}

// Files drains Walk into a slice, collecting non-fatal errors separately.
func Files(root string, opts Options) ([]string, []error) {
	files := make([]string, 0)
	var errs []error
	for path, err := range Walk(root, opts) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, path)
	}
	return files, errs
}

type walk struct {
	root    string
	opts    Options
	matcher *ignore.Matcher
	visited map[string]bool // canonical directory paths
	yield   func(string, error) bool
}

// dir walks one directory and reports whether the consumer wants more.
func (w *walk) dir(path string) bool {
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return w.yield("", fmt.Errorf("resolve %s: %w", path, err))
	}
	if w.visited[canonical] {
		return w.yield("", fmt.Errorf("%w: %s", ErrSymlinkCycle, path))
	}
	w.visited[canonical] = true

	entries, err := os.ReadDir(path)
	if err != nil {
		return w.yield("", fmt.Errorf("read dir %s: %w", path, err))
	}

	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		isDir, isFile, err := w.classify(child, entry)
		if err != nil {
			if !w.yield("", err) {
				return false
			}
			continue
		}
		if !isDir && !isFile {
			continue
		}

		rel, err := filepath.Rel(w.root, child)
		if err != nil {
			if !w.yield("", err) {
				return false
			}
			continue
		}
		if w.matcher.ShouldIgnore(rel, isDir) {
			continue
		}

		if isDir {
			if !w.dir(child) {
				return false
			}
			continue
		}
		if accept(w.opts, child) && !w.yield(child, nil) {
			return false
		}
	}
	return true
}

// classify resolves an entry to directory or regular file, honouring FollowSymlinks.
func (w *walk) classify(path string, entry fs.DirEntry) (isDir, isFile bool, err error) {
	mode := entry.Type()
	if mode&fs.ModeSymlink == 0 {
		return entry.IsDir(), mode.IsRegular(), nil
	}
	if !w.opts.FollowSymlinks {
		return false, false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, false, fmt.Errorf("follow symlink %s: %w", path, err)
	}
	return info.IsDir(), info.Mode().IsRegular(), nil
}

func accept(opts Options, path string) bool {
	return opts.Accept == nil || opts.Accept(path)
}
