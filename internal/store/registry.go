package store

import (
	"fmt"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultRegistrySize = 16

// Registry caches open stores keyed by absolute project root.
type Registry struct {
	mu    sync.Mutex
	opts  Options
	cache *lru.Cache[string, *Store]
}

func NewRegistry(size int, opts Options) (*Registry, error) {
	if size < 1 {
		size = DefaultRegistrySize
	}
	cache, err := lru.New[string, *Store](size)
	if err != nil {
		return nil, fmt.Errorf("create store cache: %w", err)
	}
	return &Registry{opts: opts, cache: cache}, nil
}

// Get returns the store for root, opening it on first use.
func (r *Registry) Get(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	abs = filepath.Clean(abs)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.cache.Get(abs); ok {
		return s, nil
	}
	s, err := Open(abs, r.opts)
	if err != nil {
		return nil, err
	}
	r.cache.Add(abs, s)
	return s, nil
}

func (r *Registry) Len() int {
	return r.cache.Len()
}
