package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/stilya/stilya/internal/agent"
	"github.com/stilya/stilya/internal/models"
)

// call is one planned agent invocation
type call struct {
	agentType models.AgentType
	request   *agent.Request
}

// runStage executes calls concurrently and returns their responses in call
// order once every call has finished
func (c *Coordinator) runStage(ctx context.Context, name string, calls []call) []stageResult {
	ctx, span := c.tracer.Start(ctx, "stage."+name)
	defer span.End()
	span.SetAttributes(attribute.Int("stilya.stage.calls", len(calls)))

	results := make([]stageResult, len(calls))
	var g errgroup.Group
	if c.config.MaxConcurrentAgents > 0 {
		g.SetLimit(c.config.MaxConcurrentAgents)
	}
	for i, cl := range calls {
		g.Go(func() error {
			results[i] = stageResult{agentType: cl.agentType, response: c.execute(ctx, cl.agentType, cl.request)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// userContext is the best-effort context gathered before stage 1
type userContext struct {
	profile   models.UserProfile
	knowledge map[string]interface{}
}

func (c *Coordinator) gatherContext(ctx context.Context, req *models.OrchestratorRequest, allowed func(models.AgentType) bool) userContext {
	uc := userContext{profile: models.UserProfile{UserID: req.UserID}}
	occasion := contextString(req, "occasion")

	var calls []call
	if allowed(models.AgentTypeLearning) {
		calls = append(calls, call{models.AgentTypeLearning, agent.NewRequest(req.UserID, models.AgentTypeLearning,
			"get_user_profile",
			map[string]interface{}{"user_id": req.UserID},
			map[string]interface{}{"include_history": true})})
	}
	if allowed(models.AgentTypeKnowledge) && occasion != "" {
		calls = append(calls, call{models.AgentTypeKnowledge, agent.NewRequest(req.UserID, models.AgentTypeKnowledge,
			"search_knowledge", nil,
			map[string]interface{}{"query": occasion})})
	}

	for _, r := range c.runStage(ctx, "context", calls) {
		if !r.response.Success {
			continue
		}
		switch r.agentType {
		case models.AgentTypeLearning:
			if p, ok := r.response.Result["user_profile"]; ok {
				_ = decodeInto(p, &uc.profile)
			}
			if h, ok := r.response.Result["style_history"]; ok {
				var history []models.StyleHistoryEntry
				if decodeInto(h, &history) == nil {
					uc.profile.StyleHistory = history
				}
			}
		case models.AgentTypeKnowledge:
			uc.knowledge = r.response.Result
		}
	}
	return uc
}

// decodeInto converts in-process values or JSON-shaped maps into out
func decodeInto(v interface{}, out interface{}) error {
	switch t := v.(type) {
	case *models.UserProfile:
		if p, ok := out.(*models.UserProfile); ok && t != nil {
			*p = *t
			return nil
		}
	case []models.StyleHistoryEntry:
		if h, ok := out.(*[]models.StyleHistoryEntry); ok {
			*h = t
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func stage1Calls(req *models.OrchestratorRequest, allowed func(models.AgentType) bool) []call {
	var calls []call
	if allowed(models.AgentTypeWardrobe) {
		calls = append(calls, call{models.AgentTypeWardrobe, agent.NewRequest(req.UserID, models.AgentTypeWardrobe,
			"find items",
			map[string]interface{}{
				"search_query": searchQuery(req),
				"occasion":     contextString(req, "occasion"),
				"preferences":  req.Preferences,
			},
			map[string]interface{}{
				"top_k":             20,
				"budget_range":      req.Context["budget_range"],
				"style_preferences": stylePreferences(req),
			})})
	}
	if url := contextString(req, "image_url"); url != "" && allowed(models.AgentTypeVisual) {
		calls = append(calls, call{models.AgentTypeVisual, agent.NewRequest(req.UserID, models.AgentTypeVisual,
			"analyze_image", nil,
			map[string]interface{}{"image_url": url})})
	}
	return calls
}

func stage2Calls(req *models.OrchestratorRequest, uc userContext, stage1 []stageResult, allowed func(models.AgentType) bool) []call {
	occasion := contextString(req, "occasion")
	culture := uc.profile.CulturalBackground
	if c := contextString(req, "cultural_context"); c != "" {
		culture = c
	}

	var calls []call
	if allowed(models.AgentTypeCreativity) {
		var items interface{}
		for _, r := range stage1 {
			if r.agentType == models.AgentTypeWardrobe && r.response.Success {
				items = r.response.Result["items"]
			}
		}
		level := "medium"
		if l, ok := req.Preferences["creativity_level"].(string); ok && l != "" {
			level = l
		}
		calls = append(calls, call{models.AgentTypeCreativity, agent.NewRequest(req.UserID, models.AgentTypeCreativity,
			"generate_creative_outfit",
			map[string]interface{}{
				"available_items":  items,
				"occasion":         occasion,
				"cultural_context": culture,
			},
			map[string]interface{}{"creativity_level": level, "max_combinations": 10})})
	}
	if allowed(models.AgentTypeEmpathy) {
		calls = append(calls, call{models.AgentTypeEmpathy, agent.NewRequest(req.UserID, models.AgentTypeEmpathy,
			"empathetic_recommendation",
			map[string]interface{}{
				"user_id":          req.UserID,
				"occasion":         occasion,
				"mood":             contextString(req, "mood"),
				"cultural_context": culture,
			},
			map[string]interface{}{"empathy_level": "high"})})
	}
	return calls
}

// searchQuery prefers the free-text query and falls back to the occasion
// plus style preferences
func searchQuery(req *models.OrchestratorRequest) string {
	if q := strings.TrimSpace(req.UserQuery); q != "" {
		return q
	}
	parts := []string{contextString(req, "occasion")}
	parts = append(parts, stylePreferences(req)...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

func contextString(req *models.OrchestratorRequest, key string) string {
	if s, ok := req.Context[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// stylePreferences reads style_preferences from the context, then the style
// preference
func stylePreferences(req *models.OrchestratorRequest) []string {
	for _, v := range []interface{}{req.Context["style_preferences"], req.Preferences["style"]} {
		switch s := v.(type) {
		case []string:
			return s
		case []interface{}:
			out := make([]string, 0, len(s))
			for _, e := range s {
				if str, ok := e.(string); ok && str != "" {
					out = append(out, str)
				}
			}
			return out
		case string:
			if s != "" {
				return []string{s}
			}
		}
	}
	return nil
}
