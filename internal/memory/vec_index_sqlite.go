//go:build sqlite_vec && cgo

package memory

import (
	"database/sql"
	"fmt"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// registers vec0 with every go-sqlite3 connection
	sqlite_vec.Auto()
}

// SQLiteVecIndex keeps vectors in an in-memory vec0 virtual table
type SQLiteVecIndex struct {
	db   *sql.DB
	dims int
	n    int
	mu   sync.RWMutex
}

func newSQLiteVecIndex(dims int) (VectorIndex, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	// a second connection would see a different :memory: database
	db.SetMaxOpenConns(1)

	idx := &SQLiteVecIndex{db: db, dims: dims}
	if err := idx.create(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (s *SQLiteVecIndex) create() error {
	q := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS vec_items USING vec0(embedding float[%d])", s.dims)
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("sqlite-vec extension not available: %w", err)
	}
	return nil
}

// Add inserts vectors in one transaction
func (s *SQLiteVecIndex) Add(vectors ...[]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO vec_items(rowid, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, v := range vectors {
		if len(v) != s.dims {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), s.dims)
		}
		blob, err := sqlite_vec.SerializeFloat32(v)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(s.n+i+1, blob); err != nil {
			return fmt.Errorf("failed to insert vector %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.n += len(vectors)
	return nil
}

// Search runs a KNN query; vec0 reports L2 distance, squared here to match FlatIndex
func (s *SQLiteVecIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != s.dims {
		return nil, fmt.Errorf("query has %d dimensions, want %d", len(query), s.dims)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	k = min(k, s.n)
	if k <= 0 {
		return []Hit{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query("SELECT rowid, distance FROM vec_items WHERE embedding MATCH ? AND k = ? ORDER BY distance", blob, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, k)
	for rows.Next() {
		var (
			rowid int
			dist  float64
		)
		if err := rows.Scan(&rowid, &dist); err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Index: rowid - 1, Distance: float32(dist * dist)})
	}
	return hits, rows.Err()
}

// Len returns the number of indexed vectors
func (s *SQLiteVecIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}

// Reset empties the table
func (s *SQLiteVecIndex) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM vec_items"); err == nil {
		s.n = 0
	}
}
