package memory

import (
	"fmt"
	"sort"
	"sync"
)

// Hit is one nearest-neighbour result
type Hit struct {
	Index    int
	Distance float32
}

// Vector index backends
const (
	IndexFlat      = "flat"
	IndexSQLiteVec = "sqlite_vec"
)

// VectorIndex is a nearest-neighbour index over fixed-length vectors.
// Positions are assigned in insertion order starting at zero.
type VectorIndex interface {
	Add(vectors ...[]float32) error
	Search(query []float32, k int) ([]Hit, error)
	Len() int
	Reset()
}

// NewVectorIndex creates an index for the named backend. An empty backend
// selects the flat index.
func NewVectorIndex(backend string, dims int) (VectorIndex, error) {
	switch backend {
	case "", IndexFlat:
		return NewFlatIndex(dims), nil
	case IndexSQLiteVec:
		return newSQLiteVecIndex(dims)
	}
	return nil, fmt.Errorf("unknown vector index backend %q", backend)
}

// FlatIndex is an exact L2 nearest-neighbour index. It is built once and is
// safe for concurrent searches.
type FlatIndex struct {
	dims    int
	vectors [][]float32
	mu      sync.RWMutex
}

// NewFlatIndex creates an empty index for vectors of dims length
func NewFlatIndex(dims int) *FlatIndex {
	return &FlatIndex{dims: dims}
}

// Add appends vectors; their positions are the indices returned by Search
func (f *FlatIndex) Add(vectors ...[]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, v := range vectors {
		if len(v) != f.dims {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), f.dims)
		}
	}
	f.vectors = append(f.vectors, vectors...)
	return nil
}

// Len returns the number of indexed vectors
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Reset drops every vector
func (f *FlatIndex) Reset() {
	f.mu.Lock()
	f.vectors = nil
	f.mu.Unlock()
}

// Search returns up to k hits ordered by ascending distance. Fewer than k
// hits are returned when the index is smaller.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dims {
		return nil, fmt.Errorf("query has %d dimensions, want %d", len(query), f.dims)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k > len(f.vectors) {
		k = len(f.vectors)
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		var d float32
		for j := range v {
			diff := v[j] - query[j]
			d += diff * diff
		}
		hits[i] = Hit{Index: i, Distance: d}
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	return hits[:k], nil
}
