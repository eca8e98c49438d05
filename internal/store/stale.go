package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/skelly-dev/codr/internal/fileutil"
)

type staleState struct {
	Files []string `json:"files"`
}

// MarkStale records that path changed on disk after the current generation was built.
// The mark is dropped by the next publish.
func (s *Store) MarkStale(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	abs = filepath.Clean(abs)

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.readStale()
	if err != nil {
		return err
	}
	set := fileutil.ToSet(files)
	if set[abs] {
		return nil
	}
	set[abs] = true

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	data, err := fileutil.EncodeJSON(staleState{Files: fileutil.MapKeysSorted(set)})
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(filepath.Join(s.dir, StaleFile), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", StaleFile, err)
	}
	return nil
}

// StaleFiles returns the files marked stale since the last publish, sorted.
func (s *Store) StaleFiles() ([]string, error) {
	return s.readStale()
}

func (s *Store) readStale() ([]string, error) {
	var state staleState
	err := readJSON(filepath.Join(s.dir, StaleFile), &state)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(state.Files)
	return state.Files, nil
}

// IsStale reports whether path was mutated after this snapshot's generation was built.
func (s *Snapshot) IsStale(path string) bool {
	return s.stale[filepath.Clean(path)]
}

// StaleFiles lists the stale paths known when the snapshot was taken.
func (s *Snapshot) StaleFiles() []string {
	return fileutil.MapKeysSorted(s.stale)
}
