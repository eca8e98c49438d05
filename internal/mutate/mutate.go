// Package mutate edits source files by line range. It never re-extracts; callers
// rebuild the index when they want fresh metadata.
package mutate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skelly-dev/codr/internal/fileutil"
	"github.com/skelly-dev/codr/internal/parser"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidRange = errors.New("invalid line range")
)

const (
	OpDelete = "delete"
	OpInsert = "insert"
)

// Error describes a failed mutation. Err is one of the package sentinels or an I/O error.
type Error struct {
	Op    string
	Path  string
	Start int
	End   int
	Err   error
}

func (e *Error) Error() string {
	if e.Op == OpInsert {
		return fmt.Sprintf("%s %s at line %d: %v", e.Op, e.Path, e.Start, e.Err)
	}
	return fmt.Sprintf("%s %s lines %d-%d: %v", e.Op, e.Path, e.Start, e.End, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result reports a successful mutation.
type Result struct {
	Path         string `json:"path"`
	LinesBefore  int    `json:"lines_before"`
	LinesAfter   int    `json:"lines_after"`
	LinesChanged int    `json:"lines_changed"`
	Diff         string `json:"diff"`
}

// StaleMarker is told about every file the service rewrites.
type StaleMarker interface {
	MarkStale(path string) error
}

// Service applies line edits. It does no locking; callers serialize edits per file.
type Service struct {
	stale StaleMarker
}

// New returns a service. A nil marker skips staleness tracking.
func New(stale StaleMarker) *Service {
	return &Service{stale: stale}
}

// DeleteRange removes lines start..end (1-based, inclusive).
func (s *Service) DeleteRange(path string, start, end int) (Result, error) {
	fail := func(err error) (Result, error) {
		return Result{}, &Error{Op: OpDelete, Path: path, Start: start, End: end, Err: err}
	}

	lines, mode, err := readLines(path)
	if err != nil {
		return fail(err)
	}
	if start < 1 || end < start || end > len(lines) {
		return fail(fmt.Errorf("%w: file has %d lines", ErrInvalidRange, len(lines)))
	}

	updated := make([]string, 0, len(lines)-(end-start+1))
	updated = append(updated, lines[:start-1]...)
	updated = append(updated, lines[end:]...)

	patch, err := deletionDiff(path, lines, start, end)
	if err != nil {
		return fail(err)
	}
	if err := s.write(path, updated, mode); err != nil {
		return fail(err)
	}
	return Result{
		Path:         path,
		LinesBefore:  len(lines),
		LinesAfter:   len(updated),
		LinesChanged: end - start + 1,
		Diff:         patch,
	}, nil
}

// InsertAt places content before line start, so start == N+1 appends.
// Content containing newlines becomes several lines.
func (s *Service) InsertAt(path string, start int, content string) (Result, error) {
	fail := func(err error) (Result, error) {
		return Result{}, &Error{Op: OpInsert, Path: path, Start: start, End: start, Err: err}
	}

	lines, mode, err := readLines(path)
	if err != nil {
		return fail(err)
	}
	if start < 1 || start > len(lines)+1 {
		return fail(fmt.Errorf("%w: file has %d lines", ErrInvalidRange, len(lines)))
	}

	inserted := parser.SplitLines(content)
	updated := make([]string, 0, len(lines)+len(inserted))
	updated = append(updated, lines[:start-1]...)
	updated = append(updated, inserted...)
	updated = append(updated, lines[start-1:]...)

	patch, err := insertionDiff(path, lines, start, inserted)
	if err != nil {
		return fail(err)
	}
	if err := s.write(path, updated, mode); err != nil {
		return fail(err)
	}
	return Result{
		Path:         path,
		LinesBefore:  len(lines),
		LinesAfter:   len(updated),
		LinesChanged: len(inserted),
		Diff:         patch,
	}, nil
}

func readLines(path string) ([]string, os.FileMode, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, ErrFileNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%w: is a directory", ErrFileNotFound)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return parser.SplitLines(string(data)), info.Mode().Perm(), nil
}

// write marks the file stale, then replaces it through a temp file in the same
// directory. A failed mark leaves the file untouched.
func (s *Service) write(path string, lines []string, mode os.FileMode) error {
	if s.stale != nil {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if err := s.stale.MarkStale(abs); err != nil {
			return err
		}
	}
	return fileutil.WriteAtomic(path, []byte(strings.Join(lines, "\n")), mode)
}
