package agent

import "github.com/stilya/stilya/internal/models"

// LearningScorer assigns the learning agent's confidences
type LearningScorer interface {
	// ProfileConfidence scores a user model; found is false for a new user
	ProfileConfidence(p *models.UserProfile, found bool) float64
	// AnalysisConfidence scores a feedback analysis over samples entries
	AnalysisConfidence(samples int) float64
	// ExperimentConfidence scores an A/B action; an is set only for analyze
	ExperimentConfidence(action string, an *ABAnalysis) float64
	// FineTuneConfidence scores a training round over samples entries
	FineTuneConfidence(samples int) float64
}

// HeuristicLearningScorer scores by history depth and sample counts
type HeuristicLearningScorer struct{}

// ProfileConfidence grows with rated history and saturates at 0.95
func (HeuristicLearningScorer) ProfileConfidence(p *models.UserProfile, found bool) float64 {
	if !found || p == nil {
		return 0.3
	}
	rated := 0
	for _, h := range p.StyleHistory {
		if h.Rating > 0 {
			rated++
		}
	}
	return min(0.95, 0.5+0.05*float64(rated)+0.01*float64(len(p.StyleHistory)))
}

// AnalysisConfidence reaches 1 at a hundred samples. An empty window is
// reported with full confidence.
func (HeuristicLearningScorer) AnalysisConfidence(samples int) float64 {
	if samples == 0 {
		return 1
	}
	return min(1, float64(samples)/100)
}

// ExperimentConfidence is 0.95 for a significant result and 0.5 otherwise;
// bookkeeping actions are certain
func (HeuristicLearningScorer) ExperimentConfidence(action string, an *ABAnalysis) float64 {
	if action != "analyze" || an == nil {
		return 1
	}
	if an.Significant {
		return 0.95
	}
	return 0.5
}

// FineTuneConfidence reaches 1 at a thousand samples
func (HeuristicLearningScorer) FineTuneConfidence(samples int) float64 {
	return 0.5 + 0.5*min(1, float64(samples)/1000)
}
