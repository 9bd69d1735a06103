package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stilya/stilya/internal/memory"
	"github.com/stilya/stilya/internal/models"
)

func newTestWardrobe(t *testing.T) *WardrobeAgent {
	t.Helper()
	cfg := DefaultWardrobeConfig()
	cfg.CatalogSize = 200
	a := NewWardrobeAgent(memory.NewSimpleEmbedding(128), cfg)
	require.True(t, a.Initialize(context.Background()))
	return a
}

func wardrobeItems(t *testing.T, resp *Response) []map[string]interface{} {
	t.Helper()
	items, ok := resp.Result["items"].([]map[string]interface{})
	require.True(t, ok, "items has type %T", resp.Result["items"])
	return items
}

// TestSampleCatalogDeterministic tests the catalog generator
func TestSampleCatalogDeterministic(t *testing.T) {
	a := GenerateSampleCatalog(50, 7)
	b := GenerateSampleCatalog(50, 7)
	require.Len(t, a, 50)
	assert.Equal(t, a, b)
	assert.Equal(t, "item_000001", a[0].ID)
	for _, item := range a {
		assert.NotEmpty(t, item.Color)
		assert.LessOrEqual(t, len(item.Color), 2)
		assert.Len(t, item.Style, 1)
	}
}

// TestWardrobeSearch tests similarity ranking and confidence
func TestWardrobeSearch(t *testing.T) {
	a := newTestWardrobe(t)
	req := NewRequest("u1", models.AgentTypeWardrobe, "find items",
		map[string]interface{}{"search_query": "formal navy blazer"},
		map[string]interface{}{"top_k": 5})

	resp := SafeExecute(context.Background(), a, req, time.Second, nil)
	require.True(t, resp.Success, resp.Message)

	items := wardrobeItems(t, resp)
	require.Len(t, items, 5)
	assert.Equal(t, 1.0, resp.ConfidenceValue())

	prev := 2.0
	for i, entry := range items {
		score := entry["similarity_score"].(float64)
		assert.LessOrEqual(t, score, prev)
		assert.Greater(t, score, 0.0)
		assert.Equal(t, i+1, entry["rank"])
		prev = score
	}
}

// TestWardrobeSearchWithFilters tests filter intersection on search results
func TestWardrobeSearchWithFilters(t *testing.T) {
	a := newTestWardrobe(t)
	req := NewRequest("u1", models.AgentTypeWardrobe, "search",
		map[string]interface{}{"search_query": "casual cotton shirt"},
		map[string]interface{}{
			"top_k":   10,
			"filters": map[string]interface{}{"category": []interface{}{"shirt"}, "season": "all_season"},
		})

	resp, err := a.ProcessRequest(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Success)

	for _, entry := range wardrobeItems(t, resp) {
		item := entry["item"].(map[string]interface{})
		assert.Equal(t, "shirt", item["category"])
		assert.Equal(t, "all_season", item["season"])
	}
}

// TestWardrobeEdgeCases tests empty queries, clamping and unknown tasks
func TestWardrobeEdgeCases(t *testing.T) {
	a := newTestWardrobe(t)
	ctx := context.Background()

	resp, err := a.ProcessRequest(ctx, NewRequest("u1", models.AgentTypeWardrobe, "search", nil, nil))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Search query is required", resp.Message)

	resp, err = a.ProcessRequest(ctx, NewRequest("u1", models.AgentTypeWardrobe, "search",
		map[string]interface{}{"search_query": "boots"}, map[string]interface{}{"top_k": 5000}))
	require.NoError(t, err)
	assert.Len(t, wardrobeItems(t, resp), 200)

	resp, err = a.ProcessRequest(ctx, NewRequest("u1", models.AgentTypeWardrobe, "dance", nil, nil))
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

// TestWardrobeFilter tests the index-free filter path
func TestWardrobeFilter(t *testing.T) {
	a := newTestWardrobe(t)
	ctx := context.Background()

	resp, err := a.ProcessRequest(ctx, NewRequest("u1", models.AgentTypeWardrobe, "filter items", nil,
		map[string]interface{}{"filters": map[string]interface{}{"color": "navy", "occasion": []string{"business"}}}))
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, 1.0, resp.ConfidenceValue())

	items := wardrobeItems(t, resp)
	assert.Equal(t, len(items), resp.Result["total_count"])
	for _, item := range items {
		assert.Contains(t, item["color"], "navy")
		assert.Contains(t, item["occasion"], "business")
	}

	resp, err = a.ProcessRequest(ctx, NewRequest("u1", models.AgentTypeWardrobe, "filter", nil, nil))
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

// TestWardrobeRecommend tests preference queries with occasion filtering
func TestWardrobeRecommend(t *testing.T) {
	a := newTestWardrobe(t)

	resp, err := a.ProcessRequest(context.Background(), NewRequest("u1", models.AgentTypeWardrobe, "recommend outfit",
		map[string]interface{}{
			"occasion":    "business meeting",
			"preferences": map[string]interface{}{"style": []interface{}{"classic"}, "color_preferences": "navy"},
		}, nil))
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, "business meeting classic navy", resp.Result["query"])

	for _, entry := range wardrobeItems(t, resp) {
		item := entry["item"].(map[string]interface{})
		assert.Contains(t, item["occasion"], "business")
	}
}

// TestWardrobeNotReady tests fail-fast behaviour before initialization and after cleanup
func TestWardrobeNotReady(t *testing.T) {
	a := NewWardrobeAgent(memory.NewSimpleEmbedding(16), nil)
	ctx := context.Background()

	assert.False(t, a.HealthCheck(ctx))
	_, err := a.ProcessRequest(ctx, NewRequest("u1", models.AgentTypeWardrobe, "search", nil, nil))
	assert.ErrorIs(t, err, ErrNotReady)

	require.True(t, a.Initialize(ctx))
	require.True(t, a.Initialize(ctx))
	assert.True(t, a.HealthCheck(ctx))

	a.Cleanup(ctx)
	a.Cleanup(ctx)
	assert.False(t, a.HealthCheck(ctx))

	broken := NewWardrobeAgent(nil, nil)
	assert.False(t, broken.Initialize(ctx))
	assert.False(t, broken.HealthCheck(ctx))
}
