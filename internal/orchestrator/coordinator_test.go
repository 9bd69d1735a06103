package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stilya/stilya/internal/agent"
	"github.com/stilya/stilya/internal/models"
)

// stubAgent answers with a scripted handler and records the tasks it saw
type stubAgent struct {
	*agent.Base
	process func(s *stubAgent, ctx context.Context, req *agent.Request) (*agent.Response, error)
	initOK  bool
	healthy bool

	mu       sync.Mutex
	requests []*agent.Request
}

func newStub(t models.AgentType, process func(s *stubAgent, ctx context.Context, req *agent.Request) (*agent.Response, error)) *stubAgent {
	return &stubAgent{
		Base:    agent.NewBase(t, string(t)+" stub"),
		process: process,
		initOK:  true,
		healthy: true,
	}
}

func (s *stubAgent) Initialize(ctx context.Context) bool  { return s.initOK }
func (s *stubAgent) Cleanup(ctx context.Context)          {}
func (s *stubAgent) HealthCheck(ctx context.Context) bool { return s.initOK && s.healthy }

func (s *stubAgent) ProcessRequest(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.process(s, ctx, req)
}

func (s *stubAgent) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubAgent) tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.TaskDescription
	}
	return out
}

func wardrobeStub(conf float64, styles ...string) *stubAgent {
	return newStub(models.AgentTypeWardrobe, func(s *stubAgent, ctx context.Context, req *agent.Request) (*agent.Response, error) {
		items := make([]map[string]interface{}, len(styles))
		for i, style := range styles {
			items[i] = map[string]interface{}{
				"item":             map[string]interface{}{"id": fmt.Sprintf("item_%d", i), "style": []string{style}},
				"similarity_score": 0.5,
				"rank":             i + 1,
			}
		}
		return s.Succeed(map[string]interface{}{"items": items}, conf, "found"), nil
	})
}

func creativityStub(conf float64, n int) *stubAgent {
	return newStub(models.AgentTypeCreativity, func(s *stubAgent, ctx context.Context, req *agent.Request) (*agent.Response, error) {
		outfits := make([]map[string]interface{}, n)
		for i := range outfits {
			outfits[i] = map[string]interface{}{"outfit_id": fmt.Sprintf("creative_%d", i+1)}
		}
		return s.Succeed(map[string]interface{}{"creative_outfits": outfits}, conf, "generated"), nil
	})
}

func blockingStub(t models.AgentType) *stubAgent {
	return newStub(t, func(s *stubAgent, ctx context.Context, req *agent.Request) (*agent.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func testConfig() *Config {
	return &Config{
		AgentTimeout:        time.Second,
		MaxConcurrentAgents: 6,
		Cache:               DefaultCacheConfig(),
		Queue:               &QueueConfig{Workers: 1, QueueSize: 16, TaskTimeout: time.Second},
		ShutdownTimeout:     time.Second,
	}
}

func newTestCoordinator(t *testing.T, cfg *Config, stubs ...*stubAgent) *Coordinator {
	t.Helper()
	registry := agent.NewRegistry()
	for _, s := range stubs {
		require.NoError(t, registry.Register(s))
	}
	c := NewCoordinator(registry, nil, cfg)
	c.Initialize(context.Background())
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return c
}

func formalRequest() *models.OrchestratorRequest {
	return &models.OrchestratorRequest{
		UserID:  "u1",
		Context: map[string]interface{}{"occasion": "gala", "style_preferences": []string{"formal"}},
	}
}

func totalCalls(stubs ...*stubAgent) int {
	n := 0
	for _, s := range stubs {
		n += s.calls()
	}
	return n
}

// TestHandleRecommendationRanking tests candidate extraction, boosts and the confidence mean
func TestHandleRecommendationRanking(t *testing.T) {
	wardrobe := wardrobeStub(0.8, "formal", "casual", "casual", "casual", "casual")
	creativity := creativityStub(0.6, 3)
	c := newTestCoordinator(t, testConfig(), wardrobe, creativity)

	resp := c.HandleRecommendation(context.Background(), formalRequest())
	require.True(t, resp.Success)
	require.NotNil(t, resp.Recommendation)
	assert.InDelta(t, 0.7, resp.ConfidenceScore, 1e-9)
	assert.False(t, resp.ProcessingDetails.CacheHit)
	assert.Nil(t, resp.ProcessingDetails.Error)

	want := []models.AgentType{models.AgentTypeWardrobe, models.AgentTypeCreativity}
	if diff := cmp.Diff(want, resp.AgentsInvolved); diff != "" {
		t.Errorf("agents involved mismatch (-want +got):\n%s", diff)
	}

	recs := resp.Recommendation.Recommendations
	require.Len(t, recs, 8)
	assert.Equal(t, 8, resp.Recommendation.Metadata.TotalCandidates)
	assert.InDelta(t, 0.9, recs[0].FinalScore, 1e-9)
	assert.Equal(t, models.CandidateWardrobeItem, recs[0].Type)
	for _, r := range recs[1:5] {
		assert.InDelta(t, 0.8, r.FinalScore, 1e-9)
		assert.Equal(t, models.AgentTypeWardrobe, r.SourceAgent)
	}
	for _, r := range recs[5:] {
		assert.InDelta(t, 0.6, r.FinalScore, 1e-9)
		assert.Equal(t, models.CandidateCreativeOutfit, r.Type)
		assert.Contains(t, r.Content, "combination")
	}

	// creativity is seeded with the wardrobe items
	require.Equal(t, 1, creativity.calls())
	assert.NotNil(t, creativity.requests[0].Context["available_items"])
	assert.Equal(t, "generate_creative_outfit", creativity.requests[0].TaskDescription)

	assert.Equal(t, models.AgentStatusError, resp.ProcessingDetails.AgentStatuses[models.AgentTypeEmpathy])
}

// TestHandleRecommendationCache tests cache hits and TTL expiry
func TestHandleRecommendationCache(t *testing.T) {
	wardrobe := wardrobeStub(0.8, "formal")
	creativity := creativityStub(0.6, 1)
	c := newTestCoordinator(t, testConfig(), wardrobe, creativity)

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c.cache = newCacheWithClock(DefaultCacheConfig(), clock.now)
	ctx := context.Background()

	first := c.HandleRecommendation(ctx, formalRequest())
	require.NotNil(t, first.Recommendation)
	calls := totalCalls(wardrobe, creativity)
	require.Equal(t, 2, calls)

	second := c.HandleRecommendation(ctx, formalRequest())
	assert.True(t, second.ProcessingDetails.CacheHit)
	assert.NotEqual(t, first.ProcessingDetails.RequestID, second.ProcessingDetails.RequestID)
	assert.Equal(t, calls, totalCalls(wardrobe, creativity))
	assert.Equal(t, first.ConfidenceScore, second.ConfidenceScore)
	if diff := cmp.Diff(first.Recommendation, second.Recommendation); diff != "" {
		t.Errorf("cached recommendation differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Explanation, second.Explanation)

	clock.advance(61 * time.Minute)
	third := c.HandleRecommendation(ctx, formalRequest())
	assert.False(t, third.ProcessingDetails.CacheHit)
	assert.Equal(t, 2*calls, totalCalls(wardrobe, creativity))

	assert.InDelta(t, 1.0/3.0, c.GetPerformanceMetrics().CacheHitRate, 1e-9)
}

// TestHandleRecommendationCulturalContext tests that requests differing only
// in cultural context are computed separately
func TestHandleRecommendationCulturalContext(t *testing.T) {
	empathy := newStub(models.AgentTypeEmpathy, func(s *stubAgent, ctx context.Context, req *agent.Request) (*agent.Response, error) {
		advice := "culture " + req.Context["cultural_context"].(string)
		return s.Succeed(map[string]interface{}{
			"suggestions": []map[string]interface{}{{"advice": advice}},
		}, 0.7, "advised"), nil
	})
	c := newTestCoordinator(t, testConfig(), wardrobeStub(0.8, "formal"), empathy)
	ctx := context.Background()

	request := func(culture string) *models.OrchestratorRequest {
		req := formalRequest()
		req.Context["cultural_context"] = culture
		return req
	}
	advice := func(resp *models.OrchestratorResponse) string {
		for _, r := range resp.Recommendation.Recommendations {
			if r.Type == models.CandidateEmpatheticAdvice {
				return r.Content["suggestion"].(map[string]interface{})["advice"].(string)
			}
		}
		return ""
	}

	eastern := c.HandleRecommendation(ctx, request("eastern"))
	require.NotNil(t, eastern.Recommendation)
	assert.Equal(t, "culture eastern", advice(eastern))

	nordic := c.HandleRecommendation(ctx, request("scandinavian"))
	require.NotNil(t, nordic.Recommendation)
	assert.False(t, nordic.ProcessingDetails.CacheHit)
	assert.Equal(t, 2, empathy.calls())
	assert.Equal(t, "culture scandinavian", advice(nordic))

	again := c.HandleRecommendation(ctx, request("eastern"))
	assert.True(t, again.ProcessingDetails.CacheHit)
	assert.Equal(t, 2, empathy.calls())
}

// TestHandleRecommendationAgentTimeout tests that a slow agent is left out
func TestHandleRecommendationAgentTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.AgentTimeout = 50 * time.Millisecond
	c := newTestCoordinator(t, cfg, wardrobeStub(0.8, "formal", "casual"), blockingStub(models.AgentTypeCreativity))

	resp := c.HandleRecommendation(context.Background(), formalRequest())
	require.True(t, resp.Success)
	require.NotNil(t, resp.Recommendation)
	assert.InDelta(t, 0.8, resp.ConfidenceScore, 1e-9)
	assert.Equal(t, []models.AgentType{models.AgentTypeWardrobe}, resp.AgentsInvolved)
	assert.Equal(t, models.AgentStatusTimeout, resp.ProcessingDetails.AgentStatuses[models.AgentTypeCreativity])
	for _, r := range resp.Recommendation.Recommendations {
		assert.Equal(t, models.AgentTypeWardrobe, r.SourceAgent)
	}
}

// TestHandleRecommendationAllAgentsFail tests the empty synthesis result
func TestHandleRecommendationAllAgentsFail(t *testing.T) {
	cfg := testConfig()
	cfg.AgentTimeout = 30 * time.Millisecond
	wardrobe := blockingStub(models.AgentTypeWardrobe)
	c := newTestCoordinator(t, cfg, wardrobe, blockingStub(models.AgentTypeCreativity))

	resp := c.HandleRecommendation(context.Background(), formalRequest())
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Recommendation)
	assert.Equal(t, 0.0, resp.ConfidenceScore)
	assert.NotNil(t, resp.AgentsInvolved)
	assert.Empty(t, resp.AgentsInvolved)
	require.NotNil(t, resp.ProcessingDetails.Error)
	assert.Equal(t, models.ErrorCodeSynthesisFailure, resp.ProcessingDetails.Error.ErrorCode)

	// failures are not cached
	resp = c.HandleRecommendation(context.Background(), formalRequest())
	assert.False(t, resp.ProcessingDetails.CacheHit)
	assert.Equal(t, 2, wardrobe.calls())
}

// TestHandleRecommendationInvalid tests rejection of requests without a user
func TestHandleRecommendationInvalid(t *testing.T) {
	wardrobe := wardrobeStub(0.8, "formal")
	c := newTestCoordinator(t, testConfig(), wardrobe)

	resp := c.HandleRecommendation(context.Background(), &models.OrchestratorRequest{UserID: "  "})
	assert.False(t, resp.Success)
	require.NotNil(t, resp.ProcessingDetails.Error)
	assert.Equal(t, models.ErrorCodeInvalidRequest, resp.ProcessingDetails.Error.ErrorCode)
	assert.Equal(t, 0, wardrobe.calls())

	resp = c.HandleRecommendation(context.Background(), nil)
	assert.False(t, resp.Success)
}

// TestHandleRecommendationUnavailableAgent tests that agents failing init are never invoked
func TestHandleRecommendationUnavailableAgent(t *testing.T) {
	broken := creativityStub(0.9, 2)
	broken.initOK = false
	c := newTestCoordinator(t, testConfig(), wardrobeStub(0.8, "formal"), broken)

	resp := c.HandleRecommendation(context.Background(), formalRequest())
	require.NotNil(t, resp.Recommendation)
	assert.Equal(t, 0, broken.calls())
	assert.InDelta(t, 0.8, resp.ConfidenceScore, 1e-9)
	assert.Equal(t, models.AgentStatusError, resp.ProcessingDetails.AgentStatuses[models.AgentTypeCreativity])
}

// TestHandleRecommendationRequiredAgents tests restricting the participating agents
func TestHandleRecommendationRequiredAgents(t *testing.T) {
	wardrobe := wardrobeStub(0.8, "formal")
	creativity := creativityStub(0.6, 2)
	c := newTestCoordinator(t, testConfig(), wardrobe, creativity)

	req := formalRequest()
	req.RequiredAgents = []models.AgentType{models.AgentTypeWardrobe}
	resp := c.HandleRecommendation(context.Background(), req)
	require.NotNil(t, resp.Recommendation)
	assert.Equal(t, 0, creativity.calls())
	assert.Equal(t, []models.AgentType{models.AgentTypeWardrobe}, resp.AgentsInvolved)
}

func learningStub() *stubAgent {
	return newStub(models.AgentTypeLearning, func(s *stubAgent, ctx context.Context, req *agent.Request) (*agent.Response, error) {
		switch req.TaskDescription {
		case "collect_feedback", "analyze_recommendation", "update_personalization":
			return s.Succeed(map[string]interface{}{"feedback_processed": true}, 0.8, "ok"), nil
		}
		return s.Fail("unsupported"), nil
	})
}

// TestHandleFeedback tests routing, cache invalidation and learning follow-ups
func TestHandleFeedback(t *testing.T) {
	learning := learningStub()
	empathy := newStub(models.AgentTypeEmpathy, func(s *stubAgent, ctx context.Context, req *agent.Request) (*agent.Response, error) {
		if req.TaskDescription != "Analyze emotional feedback" {
			return s.Fail("unsupported"), nil
		}
		return s.SucceedWithoutScore(map[string]interface{}{}, "ok"), nil
	})
	c := newTestCoordinator(t, testConfig(), wardrobeStub(0.8, "formal"), learning, empathy)
	ctx := context.Background()

	rec := c.HandleRecommendation(ctx, formalRequest())
	require.NotNil(t, rec.Recommendation)

	result, err := c.HandleFeedback(ctx, &models.UserFeedback{
		UserID:   "u1",
		Rating:   1,
		Comments: "the colors were wrong",
	})
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.True(t, result.LearningImpact)
	assert.Equal(t, 1, result.CacheInvalidated)
	assert.Equal(t, []models.AgentType{models.AgentTypeEmpathy, models.AgentTypeLearning}, result.AgentsUpdated)

	again := c.HandleRecommendation(ctx, formalRequest())
	assert.False(t, again.ProcessingDetails.CacheHit)

	require.Eventually(t, func() bool {
		tasks := learning.tasks()
		return containsTask(tasks, "analyze_recommendation") && containsTask(tasks, "update_personalization")
	}, time.Second, 10*time.Millisecond)

	m := c.GetPerformanceMetrics()
	assert.EqualValues(t, 1, m.FeedbackReceived)
	assert.InDelta(t, 0.02, m.UserSatisfaction, 1e-9)
}

func containsTask(tasks []string, task string) bool {
	for _, t := range tasks {
		if t == task {
			return true
		}
	}
	return false
}

// TestHandleFeedbackWithoutComments tests that empathy is skipped and mild ratings queue nothing extra
func TestHandleFeedbackWithoutComments(t *testing.T) {
	learning := learningStub()
	empathy := newStub(models.AgentTypeEmpathy, func(s *stubAgent, ctx context.Context, req *agent.Request) (*agent.Response, error) {
		return s.SucceedWithoutScore(map[string]interface{}{}, "ok"), nil
	})
	c := newTestCoordinator(t, testConfig(), learning, empathy)

	result, err := c.HandleFeedback(context.Background(), &models.UserFeedback{UserID: "u1", Rating: 4})
	require.NoError(t, err)
	assert.False(t, result.LearningImpact)
	assert.Equal(t, []models.AgentType{models.AgentTypeLearning}, result.AgentsUpdated)
	assert.Equal(t, 0, empathy.calls())
	assert.Equal(t, []string{"collect_feedback"}, learning.tasks())

	fb, ok := learning.requests[0].Context["feedback_data"].(*models.UserFeedback)
	require.True(t, ok)
	assert.Equal(t, 4, fb.Rating)
}

// TestHandleFeedbackInvalid tests validation errors
func TestHandleFeedbackInvalid(t *testing.T) {
	c := newTestCoordinator(t, testConfig(), learningStub())

	_, err := c.HandleFeedback(context.Background(), &models.UserFeedback{UserID: "u1", Rating: 9})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.HandleFeedback(context.Background(), &models.UserFeedback{Rating: 3})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.HandleFeedback(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

// TestGetSystemHealth tests the healthy threshold
func TestGetSystemHealth(t *testing.T) {
	stubs := []*stubAgent{
		wardrobeStub(0.8, "formal"),
		creativityStub(0.6, 1),
		learningStub(),
		newStub(models.AgentTypeEmpathy, nil),
		newStub(models.AgentTypeKnowledge, nil),
	}
	c := newTestCoordinator(t, testConfig(), stubs...)
	ctx := context.Background()

	stubs[4].healthy = false
	h := c.GetSystemHealth(ctx)
	assert.InDelta(t, 0.8, h.OverallHealth, 1e-9)
	assert.Equal(t, "healthy", h.Status)
	assert.False(t, h.Agents[models.AgentTypeKnowledge])

	stubs[3].healthy = false
	h = c.GetSystemHealth(ctx)
	assert.InDelta(t, 0.6, h.OverallHealth, 1e-9)
	assert.Equal(t, "degraded", h.Status)
}

// TestCoordinatorShutdown tests that loops, workers and agent calls stop cleanly
func TestCoordinatorShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.MetricsInterval = 5 * time.Millisecond
	cfg.HealthInterval = 5 * time.Millisecond
	cfg.CacheCleanupInterval = 5 * time.Millisecond

	registry := agent.NewRegistry()
	require.NoError(t, registry.Register(wardrobeStub(0.8, "formal")))
	require.NoError(t, registry.Register(learningStub()))

	c := NewCoordinator(registry, nil, cfg)
	ready := c.Initialize(context.Background())
	assert.True(t, ready[models.AgentTypeWardrobe])

	resp := c.HandleRecommendation(context.Background(), formalRequest())
	require.NotNil(t, resp.Recommendation)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, c.Shutdown(context.Background()))
	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, 0, c.cache.Len())
	assert.EqualValues(t, 0, c.GetPerformanceMetrics().TotalRecommendations)
}
