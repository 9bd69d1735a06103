package orchestrator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/stilya/stilya/internal/models"
)

// maxRecommendations is the number of candidates kept after ranking
const maxRecommendations = 10

// RankingContext carries the user signals a ranker may boost on
type RankingContext struct {
	StylePreferences []string
	Occasion         string
	StyleHistory     []models.StyleHistoryEntry
}

// RankFunc orders candidates and returns at most limit of them
type RankFunc func(candidates []models.Candidate, rc RankingContext, limit int) []models.Candidate

// Boosts applied by HeuristicRank
const (
	stylePreferenceBoost = 0.1
	occasionBoost        = 0.1
	styleHistoryBoost    = 0.05
)

// HeuristicRank scores each candidate from its source confidence plus
// keyword boosts on its serialized content, then sorts descending. Ties keep
// the higher source confidence first, then the original order.
func HeuristicRank(candidates []models.Candidate, rc RankingContext, limit int) []models.Candidate {
	ranked := make([]models.Candidate, len(candidates))
	copy(ranked, candidates)

	occasion := strings.ToLower(rc.Occasion)
	for i := range ranked {
		text := serialized(ranked[i].Content)
		score := ranked[i].Confidence

		if containsAny(text, rc.StylePreferences) {
			score += stylePreferenceBoost
		}
		if occasion != "" && strings.Contains(text, occasion) {
			score += occasionBoost
		}
		for _, h := range rc.StyleHistory {
			if h.Style != "" && strings.Contains(text, strings.ToLower(h.Style)) {
				score += styleHistoryBoost
				break
			}
		}
		ranked[i].FinalScore = min(1, score)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		return ranked[i].Confidence > ranked[j].Confidence
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func serialized(content map[string]interface{}) string {
	data, err := json.Marshal(content)
	if err != nil {
		return strings.ToLower(fmt.Sprint(content))
	}
	return strings.ToLower(string(data))
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
