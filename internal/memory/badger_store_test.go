package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestBadgerStorePutGet tests round-tripping a document
func TestBadgerStorePutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "doc:1", testDoc{Name: "linen", Score: 3}))

	var got testDoc
	require.NoError(t, store.Get(ctx, "doc:1", &got))
	assert.Equal(t, testDoc{Name: "linen", Score: 3}, got)
}

// TestBadgerStoreMissingKey tests that a missing key maps to ErrNotFound
func TestBadgerStoreMissingKey(t *testing.T) {
	store := newTestStore(t)

	var got testDoc
	err := store.Get(context.Background(), "doc:missing", &got)
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestBadgerStoreQuery tests prefix scans with a predicate
func TestBadgerStoreQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "doc:a", testDoc{Name: "a", Score: 1}))
	require.NoError(t, store.Put(ctx, "doc:b", testDoc{Name: "b", Score: 5}))
	require.NoError(t, store.Put(ctx, "doc:c", testDoc{Name: "c", Score: 4}))
	require.NoError(t, store.Put(ctx, "other:d", testDoc{Name: "d", Score: 5}))

	rows, err := store.Query(ctx, "doc:", func(key string, value []byte) bool {
		var d testDoc
		return json.Unmarshal(value, &d) == nil && d.Score >= 4
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var first testDoc
	require.NoError(t, json.Unmarshal(rows[0], &first))
	assert.Equal(t, "b", first.Name)

	n, err := store.Count(ctx, "doc:")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, store.Delete(ctx, "doc:a"))
	n, err = store.Count(ctx, "doc:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
