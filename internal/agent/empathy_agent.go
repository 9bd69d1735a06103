package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/models"
)

// EmpathyTarget is the empathy level a recommendation should exceed
const EmpathyTarget = 0.9

// EmpathyAgent reads mood and cultural context and phrases supportive advice
type EmpathyAgent struct {
	*Base
	scorer EmpathyScorer
	kb     *psychologyKnowledgeBase
	mu     sync.RWMutex
}

// NewEmpathyAgent creates an empathy agent; a nil scorer uses the lexicon scorer
func NewEmpathyAgent(scorer EmpathyScorer) *EmpathyAgent {
	if scorer == nil {
		scorer = LexiconEmpathyScorer{}
	}
	return &EmpathyAgent{
		Base:   NewBase(models.AgentTypeEmpathy, "Empathy & Cultural Agent"),
		scorer: scorer,
	}
}

// Initialize loads the psychology knowledge base
func (a *EmpathyAgent) Initialize(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.kb == nil {
		a.kb = newPsychologyKnowledgeBase()
	}
	log.Info().Str("agent", a.Name()).Msg("Empathy agent initialized")
	return true
}

// ProcessRequest routes the task to an empathy handler
func (a *EmpathyAgent) ProcessRequest(ctx context.Context, req *Request) (*Response, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.kb == nil {
		return nil, ErrNotReady
	}

	handler, ok := matchRoute(req.TaskDescription, []route[func(*Request) *Response]{
		{"analyze mood", a.handleMood},
		{"emotional feedback", a.handleFeedback},
		{"cultural context", a.handleCulture},
		{"empathetic recommendation", a.handleEmpathetic},
		{"psychology insight", a.handlePsychology},
		{"emotional styling", a.handleStyling},
	})
	if !ok {
		return a.Fail(fmt.Sprintf("Unknown empathy task: %s", req.TaskDescription)), nil
	}
	return handler(req), nil
}

func (a *EmpathyAgent) handleMood(req *Request) *Response {
	text := stringParam(req.Context, "user_text", "")
	if text == "" {
		return a.Fail("User text is required for mood analysis")
	}

	mood := a.scorer.AnalyzeMood(text)
	return a.Succeed(map[string]interface{}{
		"mood_analysis":       mood,
		"psychology_insights": a.kb.moodInsights(mood.PrimaryMood),
		"empathy_score":       mood.Confidence,
		"recommendations":     moodRecommendations(mood.PrimaryMood),
	}, mood.Confidence, "Mood analysis completed: "+mood.PrimaryMood)
}

// handleFeedback reads the mood behind feedback comments
func (a *EmpathyAgent) handleFeedback(req *Request) *Response {
	text := stringParam(req.Context, "feedback_text", "")
	if text == "" {
		return a.Fail("Feedback text is required")
	}

	mood := a.scorer.AnalyzeMood(text)
	rating := intParam(req.Context, "rating", 3)
	return a.Succeed(map[string]interface{}{
		"mood_analysis":   mood,
		"rating":          rating,
		"needs_attention": rating <= 2 || mood.PrimaryMood == "angry" || mood.PrimaryMood == "sad",
		"emotional_needs": emotionalNeeds(mood.PrimaryMood, nil),
	}, mood.Confidence, "Feedback emotion: "+mood.PrimaryMood)
}

func (a *EmpathyAgent) handleCulture(req *Request) *Response {
	indicators := mapParam(req.Context, "cultural_indicators")
	var signals []string
	if indicators != nil {
		signals = append(signals, stringParam(indicators, "text", ""))
		if prefs, ok := indicators["preferences"]; ok {
			signals = append(signals, fmt.Sprint(prefs))
		}
	}

	culture := a.scorer.AnalyzeCulture(strings.Join(signals, " "))
	return a.Succeed(map[string]interface{}{
		"cultural_analysis":          culture,
		"cultural_insights":          a.kb.culturalInsights(culture.PrimaryCulture),
		"cultural_sensitivity_score": culture.Confidence,
		"recommendations":            culturalRecommendations[culture.PrimaryCulture],
	}, culture.Confidence, "Cultural analysis completed")
}

// handleEmpathetic composes the advice consumed during synthesis. Mood may
// arrive as a mood_state map or as free text under mood.
func (a *EmpathyAgent) handleEmpathetic(req *Request) *Response {
	primaryMood := "neutral"
	if state := mapParam(req.Context, "mood_state"); state != nil {
		primaryMood = stringParam(state, "primary_mood", primaryMood)
	} else if text := stringParam(req.Context, "mood", ""); text != "" {
		primaryMood = a.scorer.AnalyzeMood(text).PrimaryMood
		if primaryMood == "neutral" {
			primaryMood = strings.ToLower(text)
		}
	}

	var considerations []string
	switch c := req.Context["cultural_context"].(type) {
	case map[string]interface{}:
		considerations = stringSlice(c["considerations"])
	case string:
		if c != "" {
			considerations = considerationsFor(strings.ToLower(c))
		}
	}

	situation := stringParam(req.Context, "current_situation", stringParam(req.Context, "occasion", ""))
	needs := emotionalNeeds(primaryMood, stringSlice(req.Context["personal_challenges"]))

	rec := &EmpatheticRecommendation{
		PersonalMessage:        personalMessage(primaryMood, situation),
		EmotionalNeeds:         needs,
		SupportiveElements:     supportiveFor(needs),
		EmpathyTechniques:      []string{"active_listening", "validation", "encouragement"},
		CulturalConsiderations: considerations,
	}
	level := a.scorer.EmpathyLevel(rec)

	return a.Succeed(map[string]interface{}{
		"empathetic_recommendations": rec,
		"empathy_level":              level,
		"meets_target":               level > EmpathyTarget,
		"personalized_message":       rec.PersonalMessage,
		"supportive_elements":        rec.SupportiveElements,
		"suggestions":                suggestions(rec, primaryMood),
	}, level, fmt.Sprintf("Empathetic recommendations generated (empathy level: %.2f)", level))
}

// suggestions flattens the recommendation into advice entries, message first
func suggestions(rec *EmpatheticRecommendation, mood string) []map[string]interface{} {
	out := []map[string]interface{}{{
		"advice": rec.PersonalMessage,
		"mood":   mood,
	}}
	for _, e := range rec.SupportiveElements {
		out = append(out, map[string]interface{}{
			"advice": e.Element,
			"reason": e.Reason,
			"need":   e.Need,
		})
	}
	for _, c := range rec.CulturalConsiderations {
		out = append(out, map[string]interface{}{
			"advice": c,
			"reason": "cultural consideration",
		})
	}
	return out
}

func (a *EmpathyAgent) handlePsychology(req *Request) *Response {
	query := stringParam(req.Context, "psychology_query", "")
	if query == "" {
		return a.Fail("Psychology query is required")
	}

	insights := a.kb.retrieve(query)
	var themes, advice []string
	for _, in := range insights {
		content := strings.ToLower(in["content"].(string))
		for _, t := range insightThemes {
			if strings.Contains(content, t.phrase) {
				themes = append(themes, t.theme)
				advice = append(advice, t.advice)
			}
		}
	}
	themes = uniq(themes)
	sort.Strings(themes)

	confidence := min(1, float64(len(insights))*0.2)
	return a.Succeed(map[string]interface{}{
		"psychology_insights": map[string]interface{}{
			"themes":        themes,
			"insights":      insights,
			"insight_count": len(insights),
		},
		"source_count":      len(insights),
		"confidence_score":  confidence,
		"actionable_advice": uniq(advice),
	}, confidence, "Psychology insights retrieved successfully")
}

func (a *EmpathyAgent) handleStyling(req *Request) *Response {
	target := stringParam(req.Context, "target_emotion", "confident")
	current := stringParam(req.Context, "current_emotion", "neutral")

	techniques, ok := emotionalTechniques[target]
	if !ok {
		techniques = []string{"balanced_approach"}
	}
	rationale := fmt.Sprintf("To transition from feeling %s to %s, we'll use styling techniques that psychologically support this emotional shift.", current, target)
	outcome := fmt.Sprintf("You should feel more %s and aligned with your emotional goals.", target)

	return a.Succeed(map[string]interface{}{
		"styling_plan": map[string]interface{}{
			"techniques":         techniques,
			"rationale":          rationale,
			"expected_outcome":   outcome,
			"timeline":           "immediate_to_gradual",
			"styling_goals":      stringSlice(req.Context["styling_goals"]),
			"success_indicators": []string{"increased_" + target, "positive_self_perception"},
		},
		"emotional_transition":    current + " -> " + target,
		"styling_techniques":      techniques,
		"psychological_rationale": rationale,
		"expected_outcome":        outcome,
	}, 0.85, "Emotional styling plan created")
}

// Cleanup drops the knowledge base
func (a *EmpathyAgent) Cleanup(ctx context.Context) {
	a.mu.Lock()
	a.kb = nil
	a.mu.Unlock()
	log.Info().Str("agent", a.Name()).Msg("Empathy agent cleaned up")
}

// HealthCheck requires a loaded knowledge base
func (a *EmpathyAgent) HealthCheck(ctx context.Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Base.HealthCheck(ctx) && a.kb != nil && a.kb.healthy()
}
