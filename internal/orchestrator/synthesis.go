package orchestrator

import (
	"sort"

	"github.com/stilya/stilya/internal/agent"
	"github.com/stilya/stilya/internal/models"
)

// Per-agent candidate limits
const (
	wardrobeCandidates   = 5
	creativityCandidates = 3
)

// stageResult is one agent's response in stage order
type stageResult struct {
	agentType models.AgentType
	response  *agent.Response
}

// synthesize flattens successful results into candidates, ranks them and
// averages the confidence of the agents that answered. A nil recommendation
// means no agent contributed.
func synthesize(results []stageResult, rc RankingContext, rank RankFunc) *models.Recommendation {
	var (
		candidates []models.Candidate
		involved   []models.AgentType
		breakdown  = map[models.AgentType]float64{}
		total      float64
	)

	for _, r := range results {
		if r.response == nil || !r.response.Success {
			continue
		}
		conf := r.response.ConfidenceValue()
		involved = append(involved, r.agentType)
		breakdown[r.agentType] = conf
		total += conf
		candidates = append(candidates, extractCandidates(r.agentType, r.response, conf)...)
	}

	if len(involved) == 0 {
		return nil
	}

	ranked := rank(candidates, rc, maxRecommendations)
	if ranked == nil {
		ranked = []models.Candidate{}
	}
	return &models.Recommendation{
		Recommendations:   ranked,
		OverallConfidence: total / float64(len(involved)),
		Metadata: models.RecommendationMetadata{
			AgentsInvolved:      involved,
			ConfidenceBreakdown: breakdown,
			TotalCandidates:     len(candidates),
		},
	}
}

func extractCandidates(t models.AgentType, resp *agent.Response, conf float64) []models.Candidate {
	var (
		kind    models.CandidateType
		key     string
		entries []map[string]interface{}
	)

	switch t {
	case models.AgentTypeWardrobe:
		kind, key = models.CandidateWardrobeItem, "item"
		entries = head(asMaps(resp.Result["items"]), wardrobeCandidates)
	case models.AgentTypeCreativity:
		kind, key = models.CandidateCreativeOutfit, "combination"
		entries = head(asMaps(resp.Result["creative_outfits"]), creativityCandidates)
	case models.AgentTypeEmpathy:
		kind, key = models.CandidateEmpatheticAdvice, "suggestion"
		entries = asMaps(resp.Result["suggestions"])
	default:
		return nil
	}

	out := make([]models.Candidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.Candidate{
			Type:        kind,
			SourceAgent: t,
			Content:     map[string]interface{}{key: e},
			Confidence:  conf,
		})
	}
	return out
}

func asMaps(v interface{}) []map[string]interface{} {
	switch s := v.(type) {
	case []map[string]interface{}:
		return s
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(s))
		for _, e := range s {
			if m, ok := e.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func sortedMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortAgentTypes(types []models.AgentType) {
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
}
