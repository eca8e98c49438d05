// Package store persists published metadata generations and serves the
// current one as an immutable, indexed snapshot.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/skelly-dev/codr/internal/fileutil"
	"github.com/skelly-dev/codr/internal/metadata"
)

const (
	CurrentFile  = "CURRENT"
	ManifestFile = "manifest.json"
	StaleFile    = "stale.json"

	DefaultDir               = ".codr/metadata"
	DefaultRetainGenerations = 2

	generationPrefix = "gen-"
	stagingPrefix    = ".staging-"
)

var (
	// ErrUninitialized is returned when no generation has been published yet.
	ErrUninitialized = errors.New("metadata store uninitialized")
	ErrUnknownKind   = errors.New("unknown record kind")
)

func unknownKind(kind metadata.Kind) error {
	return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Options controls where a store lives and how much history it keeps.
type Options struct {
	// Dir is the metadata directory, relative to the project root unless absolute.
	Dir               string
	RetainGenerations int
}

// Store owns the metadata directory of one project root.
type Store struct {
	root   string
	dir    string
	retain int

	mu      sync.Mutex // serializes publish and stale writes
	current atomic.Pointer[Snapshot]
}

// Open returns a store for root. Nothing is read until the first snapshot is requested.
func Open(root string, opts Options) (*Store, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(absRoot, dir)
	}
	retain := opts.RetainGenerations
	if retain < 1 {
		retain = DefaultRetainGenerations
	}
	return &Store{root: filepath.Clean(absRoot), dir: filepath.Clean(dir), retain: retain}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) Dir() string { return s.dir }

// Publish writes sets as a new generation and makes it current. Readers holding
// the previous snapshot keep a consistent view; new readers see the new one.
func (s *Store) Publish(ctx context.Context, sets metadata.RecordSets, manifest Manifest) (Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create metadata dir: %w", err)
	}
	generations, err := s.generations()
	if err != nil {
		return Manifest{}, err
	}
	next := 1
	if len(generations) > 0 {
		next = generations[len(generations)-1] + 1
	}
	manifest.fill(next, s.root, sets)

	staging, err := os.MkdirTemp(s.dir, stagingPrefix)
	if err != nil {
		return Manifest{}, fmt.Errorf("create staging dir: %w", err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(staging)
		}
	}()

	files := map[string]any{
		recordFile(metadata.KindFunctions): sets.Functions,
		recordFile(metadata.KindClasses):   sets.Classes,
		recordFile(metadata.KindFiles):     sets.Files,
		recordFile(metadata.KindCallGraph): sets.CallGraph,
		ManifestFile:                       manifest,
	}
	for _, name := range fileutil.MapKeysSorted(files) {
		if err := ctx.Err(); err != nil {
			return Manifest{}, err
		}
		data, err := fileutil.EncodeJSON(files[name])
		if err != nil {
			return Manifest{}, fmt.Errorf("encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(staging, name), data, 0o644); err != nil {
			return Manifest{}, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return Manifest{}, err
	}

	genName := generationName(next)
	if err := os.Rename(staging, filepath.Join(s.dir, genName)); err != nil {
		return Manifest{}, fmt.Errorf("publish %s: %w", genName, err)
	}
	published = true

	if err := fileutil.WriteAtomic(filepath.Join(s.dir, CurrentFile), []byte(genName+"\n"), 0o644); err != nil {
		return Manifest{}, fmt.Errorf("update %s: %w", CurrentFile, err)
	}
	s.current.Store(newSnapshot(manifest, sets))

	if err := os.Remove(filepath.Join(s.dir, StaleFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Manifest{}, fmt.Errorf("clear %s: %w", StaleFile, err)
	}
	if err := s.prune(next); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// Snapshot returns the current generation. It reloads from disk when another
// process has published since the cached snapshot was taken.
func (s *Store) Snapshot() (*Snapshot, error) {
	base, err := s.base()
	if err != nil {
		return nil, err
	}

	stale, err := s.readStale()
	if err != nil {
		return nil, err
	}
	view := *base
	view.stale = fileutil.ToSet(stale)
	return &view, nil
}

// base returns the cached snapshot unless CURRENT names a newer generation.
// A generation pruned between reading CURRENT and loading it triggers a retry.
func (s *Store) base() (*Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		gen, err := s.currentGeneration()
		if err != nil {
			return nil, err
		}
		cached := s.current.Load()
		if cached != nil && cached.Generation() >= gen {
			return cached, nil
		}
		loaded, err := s.loadGeneration(gen)
		if errors.Is(err, os.ErrNotExist) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		s.current.CompareAndSwap(cached, loaded)
		return loaded, nil
	}
	return nil, lastErr
}

// Load returns one record set of the current generation.
func (s *Store) Load(kind metadata.Kind) (any, error) {
	if !validKind(kind) {
		return nil, unknownKind(kind)
	}
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Records(kind)
}

// Generation returns the current generation number, or ErrUninitialized.
func (s *Store) Generation() (int, error) {
	return s.currentGeneration()
}

func (s *Store) currentGeneration() (int, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, CurrentFile))
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrUninitialized
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", CurrentFile, err)
	}
	gen, ok := parseGenerationName(strings.TrimSpace(string(data)))
	if !ok {
		return 0, fmt.Errorf("corrupt %s: %q", CurrentFile, strings.TrimSpace(string(data)))
	}
	return gen, nil
}

func (s *Store) loadGeneration(gen int) (*Snapshot, error) {
	dir := filepath.Join(s.dir, generationName(gen))

	var manifest Manifest
	if err := readJSON(filepath.Join(dir, ManifestFile), &manifest); err != nil {
		return nil, err
	}
	migrateManifest(&manifest)

	var sets metadata.RecordSets
	targets := []struct {
		kind metadata.Kind
		into any
	}{
		{metadata.KindFunctions, &sets.Functions},
		{metadata.KindClasses, &sets.Classes},
		{metadata.KindFiles, &sets.Files},
		{metadata.KindCallGraph, &sets.CallGraph},
	}
	for _, target := range targets {
		if err := readJSON(filepath.Join(dir, recordFile(target.kind)), target.into); err != nil {
			return nil, err
		}
	}
	return newSnapshot(manifest, sets), nil
}

// generations lists published generation numbers in ascending order.
func (s *Store) generations() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list metadata dir: %w", err)
	}
	out := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if gen, ok := parseGenerationName(entry.Name()); ok {
			out = append(out, gen)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (s *Store) prune(current int) error {
	generations, err := s.generations()
	if err != nil {
		return err
	}
	if len(generations) <= s.retain {
		return nil
	}
	for _, gen := range generations[:len(generations)-s.retain] {
		if gen == current {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, generationName(gen))); err != nil {
			return fmt.Errorf("prune %s: %w", generationName(gen), err)
		}
	}
	return nil
}

func migrateManifest(m *Manifest) {
	if m.Version == "" {
		m.Version = CurrentManifestVersion
	}
	if m.ParserVersion == "" {
		m.ParserVersion = CurrentParserVersion
	}
	if m.Counts == nil {
		m.Counts = map[string]int{}
	}
}

func readJSON(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func recordFile(kind metadata.Kind) string {
	return string(kind) + ".json"
}

func validKind(kind metadata.Kind) bool {
	for _, k := range metadata.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func generationName(gen int) string {
	return fmt.Sprintf("%s%06d", generationPrefix, gen)
}

func parseGenerationName(name string) (int, bool) {
	if !strings.HasPrefix(name, generationPrefix) {
		return 0, false
	}
	gen, err := strconv.Atoi(strings.TrimPrefix(name, generationPrefix))
	if err != nil || gen < 1 {
		return 0, false
	}
	return gen, true
}
