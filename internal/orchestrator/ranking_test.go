package orchestrator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/stilya/stilya/internal/agent"
	"github.com/stilya/stilya/internal/models"
)

func candidate(id string, conf float64, style string) models.Candidate {
	return models.Candidate{
		Type:        models.CandidateWardrobeItem,
		SourceAgent: models.AgentTypeWardrobe,
		Content:     map[string]interface{}{"item": map[string]interface{}{"id": id, "style": style}},
		Confidence:  conf,
	}
}

func ids(cands []models.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Content["item"].(map[string]interface{})["id"].(string)
	}
	return out
}

// TestHeuristicRank tests boosts, clamping, tie order and the limit
func TestHeuristicRank(t *testing.T) {
	cands := []models.Candidate{
		candidate("a", 0.5, "casual"),
		candidate("b", 0.5, "Formal"),
		candidate("c", 0.95, "formal wedding"),
		candidate("d", 0.55, "vintage"),
		candidate("e", 0.5, "casual"),
	}
	rc := RankingContext{
		StylePreferences: []string{"formal"},
		Occasion:         "Wedding",
		StyleHistory:     []models.StyleHistoryEntry{{Style: "vintage"}},
	}

	ranked := HeuristicRank(cands, rc, 4)
	if diff := cmp.Diff([]string{"c", "d", "b", "a"}, ids(ranked)); diff != "" {
		t.Errorf("rank order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1.0, ranked[0].FinalScore)
	assert.InDelta(t, 0.6, ranked[1].FinalScore, 1e-9)
	assert.InDelta(t, 0.6, ranked[2].FinalScore, 1e-9)

	// input is untouched
	assert.Zero(t, cands[0].FinalScore)
}

// TestSynthesize tests candidate extraction per agent type
func TestSynthesize(t *testing.T) {
	conf := func(v float64) *float64 { return &v }
	results := []stageResult{
		{models.AgentTypeWardrobe, &agent.Response{Success: true, Confidence: conf(0.9), Result: map[string]interface{}{
			"items": []interface{}{map[string]interface{}{"rank": 1}, "skip"},
		}}},
		{models.AgentTypeVisual, &agent.Response{Success: true, Confidence: conf(0.5), Result: map[string]interface{}{}}},
		{models.AgentTypeEmpathy, &agent.Response{Success: true, Confidence: conf(0.7), Result: map[string]interface{}{
			"suggestions": []map[string]interface{}{{"tip": "a"}, {"tip": "b"}},
		}}},
		{models.AgentTypeCreativity, &agent.Response{Success: false}},
	}

	rec := synthesize(results, RankingContext{}, HeuristicRank)
	if assert.NotNil(t, rec) {
		assert.InDelta(t, 0.7, rec.OverallConfidence, 1e-9)
		assert.Equal(t, 3, rec.Metadata.TotalCandidates)
		assert.Equal(t, []models.AgentType{models.AgentTypeWardrobe, models.AgentTypeVisual, models.AgentTypeEmpathy},
			rec.Metadata.AgentsInvolved)
		assert.Equal(t, models.CandidateWardrobeItem, rec.Recommendations[0].Type)
		assert.Equal(t, models.CandidateEmpatheticAdvice, rec.Recommendations[1].Type)
		assert.Contains(t, rec.Recommendations[1].Content, "suggestion")
	}

	assert.Nil(t, synthesize(results[3:], RankingContext{}, HeuristicRank))
}
