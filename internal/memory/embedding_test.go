package memory

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSimpleEmbeddingDeterministic tests stable unit-length output
func TestSimpleEmbeddingDeterministic(t *testing.T) {
	e := NewSimpleEmbedding(64)
	ctx := context.Background()

	a, err := e.Generate(ctx, "navy wool blazer formal")
	require.NoError(t, err)
	b, err := e.Generate(ctx, "navy wool blazer formal")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

// TestSimpleEmbeddingSimilarity tests that shared words raise similarity
func TestSimpleEmbeddingSimilarity(t *testing.T) {
	e := NewSimpleEmbedding(384)
	ctx := context.Background()

	q, _ := e.Generate(ctx, "formal blazer")
	near, _ := e.Generate(ctx, "navy blazer formal business")
	far, _ := e.Generate(ctx, "beach sandals summer")

	assert.Greater(t, CosineSimilarity(q, near), CosineSimilarity(q, far))
}

// TestSimpleEmbeddingEmpty tests that empty text yields a zero vector
func TestSimpleEmbeddingEmpty(t *testing.T) {
	v, err := NewSimpleEmbedding(8).Generate(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

// TestHTTPEmbedding tests the remote client against a stub server
func TestHTTPEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Inputs []string `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		out := make([][]float32, len(body.Inputs))
		for i := range out {
			out[i] = []float32{1, 0, 0}
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.EmbeddingURL = srv.URL
	cfg.EmbeddingDimensions = 3

	gen := NewEmbeddingGenerator(cfg)
	require.IsType(t, &HTTPEmbedding{}, gen)

	vecs, err := gen.GenerateBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 0}, {1, 0, 0}}, vecs)
}
