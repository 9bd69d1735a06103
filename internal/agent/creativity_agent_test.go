package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stilya/stilya/internal/models"
)

func item(id, category, material string, colors, styles, occasions []string) models.FashionItem {
	return models.FashionItem{
		ID:       id,
		Name:     id,
		Category: category,
		Material: material,
		Pattern:  "solid",
		Color:    colors,
		Style:    styles,
		Occasion: occasions,
	}
}

func creativeOutfits(t *testing.T, resp *Response) []map[string]interface{} {
	t.Helper()
	outfits, ok := resp.Result["creative_outfits"].([]map[string]interface{})
	require.True(t, ok, "creative_outfits has type %T", resp.Result["creative_outfits"])
	return outfits
}

// TestCreativityBreakdownWeights tests the fixed axis weighting
func TestCreativityBreakdownWeights(t *testing.T) {
	full := CreativityBreakdown{1, 1, 1, 1, 1}
	assert.InDelta(t, 1.0, full.Score(), 1e-9)

	noveltyOnly := CreativityBreakdown{Novelty: 1}
	assert.InDelta(t, 0.3, noveltyOnly.Score(), 1e-9)

	// novelty with no coherence loses to moderate novelty with full coherence
	wild := CreativityBreakdown{Novelty: 1, Innovation: 0.4}
	steady := CreativityBreakdown{Novelty: 0.6, Innovation: 0.4, Coherence: 1, AestheticHarmony: 1}
	assert.Greater(t, steady.Score(), wild.Score())

	assert.Equal(t, 1.0, CreativityBreakdown{Novelty: 5}.Score())
}

// TestCreativityGenerate tests generation over the sample catalog
func TestCreativityGenerate(t *testing.T) {
	a := NewCreativityAgent(nil)
	require.True(t, a.Initialize(context.Background()))

	catalog := GenerateSampleCatalog(120, 42)
	req := NewRequest("u1", models.AgentTypeCreativity, "generate_creative_outfit",
		map[string]interface{}{"available_items": catalog, "cultural_context": "western"},
		map[string]interface{}{"creativity_level": "high"})

	resp, err := a.ProcessRequest(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)

	outfits := creativeOutfits(t, resp)
	require.NotEmpty(t, outfits)
	assert.LessOrEqual(t, len(outfits), 10)

	prev := 1.0
	for _, o := range outfits {
		score := o["creativity_score"].(float64)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, prev)
		prev = score

		outfit := o["outfit"].(models.OutfitRecommendation)
		assert.Len(t, outfit.Items, 2)
		assert.NotEqual(t, outfit.Items[0].ID, outfit.Items[1].ID)
		assert.GreaterOrEqual(t, outfit.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, outfit.ConfidenceScore, 1.0)
	}

	conf := resp.ConfidenceValue()
	assert.InDelta(t, resp.Result["average_creativity_score"].(float64), conf, 1e-9)

	again, err := a.ProcessRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, outfits, creativeOutfits(t, again))
}

// TestCreativityStrategies tests which patterns fire for a small pool
func TestCreativityStrategies(t *testing.T) {
	items := []models.FashionItem{
		item("a", "shirt", "silk", []string{"white"}, []string{"modern"}, []string{"business"}),
		item("b", "jacket", "leather", []string{"black"}, []string{"vintage"}, []string{"party"}),
		item("c", "pants", "cotton", []string{"navy"}, []string{"classic"}, []string{"business"}),
		item("d", "sweater", "wool", []string{"gray"}, []string{"trendy"}, []string{"casual"}),
	}

	patterns := func(combos []Combination) map[string]int {
		out := map[string]int{}
		for _, c := range combos {
			out[c.Pattern]++
		}
		return out
	}

	high := patterns(generateCombinations(items, explorationFactor("high"), "western", HeuristicCreativityScorer{}, 10))
	assert.Equal(t, 1, high[patternUnexpectedPairs], "modern x vintage")
	assert.Equal(t, 1, high[patternCulturalBridge], "classic x modern")
	assert.Equal(t, 1, high[patternTemporalFusion], "vintage x trendy")
	assert.Equal(t, 2, high[patternMaterialContrast], "silk/leather and cotton/wool")
	assert.Zero(t, high[patternColorAdventure])

	low := patterns(generateCombinations(items, explorationFactor("low"), "western", HeuristicCreativityScorer{}, 10))
	assert.Zero(t, low[patternUnexpectedPairs])
	assert.Equal(t, 0.6, explorationFactor("unknown"))
}

// TestCreativityGenerateNoItems tests the empty pool error
func TestCreativityGenerateNoItems(t *testing.T) {
	a := NewCreativityAgent(nil)
	resp, err := a.ProcessRequest(context.Background(),
		NewRequest("u1", models.AgentTypeCreativity, "generate_creative_outfit", nil, nil))
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

// TestCreativityAcceptsWardrobeEntries tests seeding from search results
func TestCreativityAcceptsWardrobeEntries(t *testing.T) {
	catalog := GenerateSampleCatalog(30, 1)
	entries := make([]map[string]interface{}, len(catalog))
	for i := range catalog {
		entries[i] = map[string]interface{}{"item": catalog[i].ToMap(), "similarity_score": 0.5}
	}

	items := fashionItems(entries)
	require.Len(t, items, len(catalog))
	assert.Equal(t, catalog[3].ID, items[3].ID)
	assert.Equal(t, catalog[3].Color, items[3].Color)

	generic := []interface{}{catalog[0].ToMap(), "not an item"}
	assert.Len(t, fashionItems(generic), 1)
}

// TestCreativityScoreTask tests the scoring task and target
func TestCreativityScoreTask(t *testing.T) {
	a := NewCreativityAgent(nil)
	outfit := map[string]interface{}{
		"items": []models.FashionItem{
			item("a", "dress", "silk", []string{"red"}, []string{"bohemian"}, []string{"party"}),
			item("b", "jacket", "denim", []string{"blue"}, []string{"traditional"}, []string{"casual"}),
		},
	}
	req := NewRequest("u1", models.AgentTypeCreativity, "creativity_score",
		map[string]interface{}{"outfit": outfit}, nil)

	resp, err := a.ProcessRequest(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Success)

	score := resp.Result["creativity_score"].(float64)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.Equal(t, score >= CreativityTarget, resp.Result["meets_target"])
	assert.Equal(t, 1.0, resp.ConfidenceValue())

	breakdown := resp.Result["scoring_breakdown"].(CreativityBreakdown)
	assert.Equal(t, 0.8, breakdown.Novelty, "dress/jacket is a novel pair")
}

// TestCreativityInnovativeCombination tests deterministic deviation selection
func TestCreativityInnovativeCombination(t *testing.T) {
	a := NewCreativityAgent(nil)
	catalog := GenerateSampleCatalog(80, 3)
	req := NewRequest("u1", models.AgentTypeCreativity, "innovative_combination",
		map[string]interface{}{"items": catalog},
		map[string]interface{}{"base_style": "classic", "deviation_level": 0.3})

	first, err := a.ProcessRequest(context.Background(), req)
	require.NoError(t, err)
	second, err := a.ProcessRequest(context.Background(), req)
	require.NoError(t, err)

	require.True(t, first.Success)
	assert.Equal(t, first.Result, second.Result)
	assert.LessOrEqual(t, first.Result["combinations_count"].(int), 10)
}

// TestCreativityCulturalFusionAndDeviation tests the remaining tasks
func TestCreativityCulturalFusionAndDeviation(t *testing.T) {
	a := NewCreativityAgent(nil)
	items := []models.FashionItem{
		item("a", "shirt", "silk", []string{"white"}, []string{"modern"}, []string{"business"}),
		item("b", "dress", "cotton", []string{"red"}, []string{"classic"}, []string{"party"}),
		item("c", "pants", "wool", []string{"navy"}, []string{"traditional"}, []string{"formal"}),
	}

	resp, err := a.ProcessRequest(context.Background(), NewRequest("u1", models.AgentTypeCreativity, "cultural fusion",
		map[string]interface{}{"items": items}, map[string]interface{}{"fusion_intensity": 1.0}))
	require.NoError(t, err)
	require.True(t, resp.Success)
	fusions := resp.Result["cultural_fusions"].([]map[string]interface{})
	require.NotEmpty(t, fusions)
	for _, f := range fusions {
		pair := f["items"].([]models.FashionItem)
		assert.NotEqual(t, pair[0].ID, pair[1].ID)
	}

	resp, err = a.ProcessRequest(context.Background(), NewRequest("u1", models.AgentTypeCreativity, "style_deviation",
		map[string]interface{}{"base_outfit": map[string]interface{}{"items": items}},
		map[string]interface{}{"patterns": []string{"proportional_play", "cultural_fusion"}}))
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, 2, resp.Result["patterns_applied"])
	assert.Equal(t, 0.85, resp.ConfidenceValue())
}
