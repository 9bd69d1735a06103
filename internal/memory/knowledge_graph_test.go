package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stilya/stilya/internal/models"
)

func graphEntries() []*models.KnowledgeEntry {
	return []*models.KnowledgeEntry{
		{EntryID: "e1", Category: "color_theory", Concepts: map[string][]string{"colors": {"navy", "white"}, "styles": {"classic"}}},
		{EntryID: "e2", Category: "fashion_guide", Concepts: map[string][]string{"colors": {"navy"}, "styles": {"formal"}}},
		{EntryID: "e3", Category: "seasonal", Concepts: map[string][]string{"seasons": {"summer"}}},
	}
}

// TestMemoryKnowledgeGraphRelated tests co-occurrence ranking
func TestMemoryKnowledgeGraphRelated(t *testing.T) {
	g := NewMemoryKnowledgeGraph()
	ctx := context.Background()
	for _, e := range graphEntries() {
		require.NoError(t, g.UpsertEntry(ctx, e))
	}

	related, err := g.RelatedConcepts(ctx, "navy", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"classic", "formal", "white"}, related)

	related, err = g.RelatedConcepts(ctx, "navy", 1)
	require.NoError(t, err)
	assert.Len(t, related, 1)

	// re-upserting replaces the entry's concepts
	require.NoError(t, g.UpsertEntry(ctx, &models.KnowledgeEntry{EntryID: "e2", Concepts: map[string][]string{"seasons": {"winter"}}}))
	related, err = g.RelatedConcepts(ctx, "navy", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"classic", "white"}, related)
}

// TestDgraphKnowledgeGraph tests the Dgraph graph against a local alpha
func TestDgraphKnowledgeGraph(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	g, err := NewDgraphKnowledgeGraph(DefaultConfig())
	if err != nil {
		t.Skipf("Skipping test - Dgraph not available: %v", err)
	}
	defer g.Close()

	ctx := context.Background()
	for _, e := range graphEntries() {
		require.NoError(t, g.UpsertEntry(ctx, e))
	}

	related, err := g.RelatedConcepts(ctx, "navy", 5)
	require.NoError(t, err)
	assert.Contains(t, related, "formal")
}
