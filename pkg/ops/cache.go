package ops

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/uvkit/pkg/uv"
	"github.com/google/uuid"
)

// DefaultCacheSize is how many solvers a cache holds before it starts
// over.
const DefaultCacheSize = 5

// ErrNotCached is returned by SolverCache.Export for unknown keys.
var ErrNotCached = errors.New("ops: no cached solver")

// CacheKey identifies a cached solver by mesh and operation.
type CacheKey struct {
	Mesh uuid.UUID
	Kind Kind
}

// SolverCache keeps saved unwrap solvers between operations so a repeated
// solve continues where the last one stopped. It is safe for concurrent
// use.
type SolverCache struct {
	mu      sync.Mutex
	max     int
	solvers map[CacheKey]*uv.UnwrapSolver
}

// NewSolverCache returns a cache holding up to max solvers. When a new key
// would exceed max the cache is emptied first. max <= 0 means
// DefaultCacheSize.
func NewSolverCache(max int) *SolverCache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &SolverCache{max: max, solvers: make(map[CacheKey]*uv.UnwrapSolver)}
}

// Get returns the saved solver for key, or nil.
func (c *SolverCache) Get(key CacheKey) *uv.UnwrapSolver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.solvers[key]
}

// Put saves s and stores it under key.
func (c *SolverCache) Put(key CacheKey, s *uv.UnwrapSolver) {
	s.Save()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.solvers[key]; !ok && len(c.solvers) >= c.max {
		clear(c.solvers)
	}
	c.solvers[key] = s
}

// Delete drops the solver for key.
func (c *SolverCache) Delete(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.solvers, key)
}

// Len returns the number of cached solvers.
func (c *SolverCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.solvers)
}

// Clear empties the cache.
func (c *SolverCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.solvers)
}

// Export encodes the solver under key as msgpack.
func (c *SolverCache) Export(key CacheKey) ([]byte, error) {
	s := c.Get(key)
	if s == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotCached, key.Mesh, key.Kind)
	}
	return s.Save().Encode()
}

// Import decodes a solver written by Export and stores it under key.
func (c *SolverCache) Import(key CacheKey, data []byte, opts ...uv.Option) error {
	snap, err := uv.DecodeSolverSnapshot(data)
	if err != nil {
		return fmt.Errorf("ops: import solver: %w", err)
	}
	c.Put(key, uv.NewUnwrapSolverFromSnapshot(snap, opts...))
	return nil
}
