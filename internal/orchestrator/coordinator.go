package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stilya/stilya/internal/agent"
	"github.com/stilya/stilya/internal/models"
)

// ErrInvalidRequest is returned for malformed feedback
var ErrInvalidRequest = errors.New("invalid request")

// Config holds coordinator configuration
type Config struct {
	AgentTimeout        time.Duration
	MaxConcurrentAgents int

	Cache *CacheConfig
	Queue *QueueConfig

	MetricsInterval      time.Duration
	HealthInterval       time.Duration
	CacheCleanupInterval time.Duration
	ShutdownTimeout      time.Duration

	// Rank replaces HeuristicRank when set
	Rank RankFunc
}

// DefaultConfig returns default coordinator configuration
func DefaultConfig() *Config {
	return &Config{
		AgentTimeout:         30 * time.Second,
		MaxConcurrentAgents:  6,
		Cache:                DefaultCacheConfig(),
		Queue:                DefaultQueueConfig(),
		MetricsInterval:      60 * time.Second,
		HealthInterval:       300 * time.Second,
		CacheCleanupInterval: 1800 * time.Second,
		ShutdownTimeout:      10 * time.Second,
	}
}

// Coordinator runs agents in stages and synthesizes their results into a
// ranked recommendation. It owns the recommendation cache and metrics.
type Coordinator struct {
	registry *agent.Registry
	limiter  *agent.Limiter
	config   *Config
	cache    *Cache
	metrics  *Metrics
	rank     RankFunc
	tracer   trace.Tracer

	ready       map[models.AgentType]bool
	queue       *LearningQueue
	initialized bool
	stopLoops   context.CancelFunc
	loops       sync.WaitGroup
	mu          sync.RWMutex
}

// NewCoordinator creates a coordinator over the registered agents. The
// limiter may be nil.
func NewCoordinator(registry *agent.Registry, limiter *agent.Limiter, config *Config) *Coordinator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AgentTimeout <= 0 {
		config.AgentTimeout = 30 * time.Second
	}
	rank := config.Rank
	if rank == nil {
		rank = HeuristicRank
	}

	return &Coordinator{
		registry: registry,
		limiter:  limiter,
		config:   config,
		cache:    NewCache(config.Cache),
		metrics:  NewMetrics(),
		rank:     rank,
		tracer:   otel.Tracer("stilya/orchestrator"),
		ready:    map[models.AgentType]bool{},
	}
}

// Initialize initializes every agent, starts the learning queue and the
// maintenance loops. Agents that fail to initialize stay registered but are
// treated as unavailable.
func (c *Coordinator) Initialize(ctx context.Context) map[models.AgentType]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return copyReady(c.ready)
	}

	log.Info().Msg("Initializing coordinator")
	c.ready = c.registry.InitializeAll(ctx)
	c.metrics.Reset()

	c.queue = NewLearningQueue(func(ctx context.Context, req *agent.Request) *agent.Response {
		return c.execute(ctx, models.AgentTypeLearning, req)
	}, c.config.Queue)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.stopLoops = cancel
	c.startMaintenance(loopCtx)

	c.initialized = true

	ready := 0
	for _, ok := range c.ready {
		if ok {
			ready++
		}
	}
	log.Info().Int("agents_ready", ready).Int("agents_registered", len(c.ready)).Msg("Coordinator initialized")
	return copyReady(c.ready)
}

func copyReady(m map[models.AgentType]bool) map[models.AgentType]bool {
	out := make(map[models.AgentType]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// execute runs one agent call behind SafeExecute. Unregistered or
// uninitialized agents yield a failed response without being invoked.
func (c *Coordinator) execute(ctx context.Context, t models.AgentType, req *agent.Request) *agent.Response {
	c.mu.RLock()
	ready := c.ready[t]
	c.mu.RUnlock()

	a, ok := c.registry.Get(t)
	if !ok || !ready {
		return &agent.Response{
			AgentType: t,
			Status:    models.AgentStatusError,
			Result:    map[string]interface{}{},
			Message:   fmt.Sprintf("Agent %s not available", t),
			Metadata:  map[string]interface{}{"error_code": models.ErrorCodeAgentUnavailable},
		}
	}

	resp := agent.SafeExecute(ctx, a, req, c.config.AgentTimeout, c.limiter)
	c.metrics.RecordAgent(t, resp.ProcessingTime, resp.Success, resp.Confidence)
	return resp
}

func (c *Coordinator) allowed(req *models.OrchestratorRequest) func(models.AgentType) bool {
	if len(req.RequiredAgents) == 0 {
		return func(models.AgentType) bool { return true }
	}
	set := make(map[models.AgentType]bool, len(req.RequiredAgents))
	for _, t := range req.RequiredAgents {
		set[t] = true
	}
	return func(t models.AgentType) bool { return set[t] }
}

// HandleRecommendation answers a recommendation request. Agent failures
// lower the confidence; only a request without a user id is rejected.
func (c *Coordinator) HandleRecommendation(ctx context.Context, req *models.OrchestratorRequest) *models.OrchestratorResponse {
	start := time.Now()
	requestID := "req_" + uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "HandleRecommendation")
	defer span.End()
	span.SetAttributes(attribute.String("stilya.request_id", requestID))

	if req == nil || strings.TrimSpace(req.UserID) == "" {
		span.SetStatus(codes.Error, "missing user id")
		c.metrics.RecordRequest(time.Since(start), false)
		return rejected(requestID, start, "user_id is required")
	}
	span.SetAttributes(attribute.String("stilya.user_id", req.UserID))

	logger := log.With().Str("request_id", requestID).Str("user_id", req.UserID).Logger()
	logger.Info().Msg("Processing recommendation request")

	key := CacheKey(req)
	if cached, ok := c.cache.Get(key); ok {
		cached.ProcessingDetails.RequestID = requestID
		cached.ProcessingDetails.CacheHit = true
		cached.ProcessingDetails.ProcessingTime = time.Since(start).Seconds()
		c.metrics.RecordRequest(time.Since(start), true)
		span.SetAttributes(attribute.Bool("stilya.cache_hit", true))
		logger.Info().Msg("Returning cached recommendation")
		return cached
	}

	allowed := c.allowed(req)
	uc := c.gatherContext(ctx, req, allowed)
	stage1 := c.runStage(ctx, "independent", stage1Calls(req, allowed))
	stage2 := c.runStage(ctx, "dependent", stage2Calls(req, uc, stage1, allowed))
	results := append(stage1, stage2...)

	rc := RankingContext{
		StylePreferences: stylePreferences(req),
		Occasion:         contextString(req, "occasion"),
		StyleHistory:     uc.profile.StyleHistory,
	}
	rec := synthesize(results, rc, c.rank)

	details := models.ProcessingDetails{
		RequestID:      requestID,
		AgentsInvolved: []models.AgentType{},
		AgentStatuses:  make(map[models.AgentType]models.AgentStatus, len(results)),
	}
	for _, r := range results {
		details.AgentStatuses[r.agentType] = r.response.Status
	}

	resp := &models.OrchestratorResponse{
		Success:        true,
		AgentsInvolved: []models.AgentType{},
	}
	if rec == nil {
		resp.Explanation = "No agent produced a usable result"
		details.Error = &models.ErrorResponse{
			ErrorCode: models.ErrorCodeSynthesisFailure,
			Message:   resp.Explanation,
			Timestamp: time.Now().UTC(),
		}
		logger.Warn().Int("agents_called", len(results)).Msg("Synthesis produced no recommendation")
	} else {
		resp.Recommendation = rec
		resp.ConfidenceScore = min(1, max(0, rec.OverallConfidence))
		resp.AgentsInvolved = rec.Metadata.AgentsInvolved
		details.AgentsInvolved = rec.Metadata.AgentsInvolved
		resp.Explanation = explain(rec)
	}

	details.ProcessingTime = time.Since(start).Seconds()
	resp.ProcessingDetails = details

	if rec != nil {
		c.cache.Set(key, req.UserID, resp)
		c.submitLearning(req, requestID, rec, allowed)
	}
	c.metrics.RecordRequest(time.Since(start), true)

	span.SetAttributes(
		attribute.Float64("stilya.confidence", resp.ConfidenceScore),
		attribute.Int("stilya.agents_involved", len(resp.AgentsInvolved)),
	)
	logger.Info().
		Float64("confidence", resp.ConfidenceScore).
		Float64("processing_time", details.ProcessingTime).
		Msg("Recommendation request completed")
	return resp
}

func rejected(requestID string, start time.Time, message string) *models.OrchestratorResponse {
	return &models.OrchestratorResponse{
		Success:        false,
		Explanation:    message,
		AgentsInvolved: []models.AgentType{},
		ProcessingDetails: models.ProcessingDetails{
			RequestID:      requestID,
			ProcessingTime: time.Since(start).Seconds(),
			AgentsInvolved: []models.AgentType{},
			Error: &models.ErrorResponse{
				ErrorCode: models.ErrorCodeInvalidRequest,
				Message:   message,
				Timestamp: time.Now().UTC(),
			},
		},
	}
}

func explain(rec *models.Recommendation) string {
	names := make([]string, len(rec.Metadata.AgentsInvolved))
	for i, t := range rec.Metadata.AgentsInvolved {
		names[i] = string(t)
	}
	return fmt.Sprintf("%d recommendations from %s (confidence %.2f)",
		len(rec.Recommendations), strings.Join(names, ", "), rec.OverallConfidence)
}

// submitLearning queues the recommendation for the learning agent. The
// outcome is never awaited.
func (c *Coordinator) submitLearning(req *models.OrchestratorRequest, requestID string, rec *models.Recommendation, allowed func(models.AgentType) bool) {
	if !allowed(models.AgentTypeLearning) {
		return
	}
	c.mu.RLock()
	q := c.queue
	c.mu.RUnlock()
	if q == nil {
		return
	}

	lr := agent.NewRequest(req.UserID, models.AgentTypeLearning, "analyze_recommendation",
		map[string]interface{}{
			"user_id":           req.UserID,
			"recommendation_id": requestID,
			"occasion":          contextString(req, "occasion"),
			"styles":            recommendedStyles(rec),
			"confidence":        rec.OverallConfidence,
		},
		map[string]interface{}{"update_user_model": true})
	lr.Priority = models.PriorityLow

	if err := q.Submit(lr); err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("Failed to queue learning analysis")
	}
}

// recommendedStyles collects style values from ranked candidates in order
func recommendedStyles(rec *models.Recommendation) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(v interface{}, underStyle bool)
	walk = func(v interface{}, underStyle bool) {
		switch t := v.(type) {
		case map[string]interface{}:
			for _, k := range sortedMapKeys(t) {
				walk(t[k], k == "style")
			}
		case []interface{}:
			for _, e := range t {
				walk(e, underStyle)
			}
		case []string:
			for _, e := range t {
				walk(e, underStyle)
			}
		case string:
			if underStyle && t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	for _, cand := range rec.Recommendations {
		var generic map[string]interface{}
		if decodeInto(cand.Content, &generic) == nil {
			walk(generic, false)
		}
	}
	return out
}

// HandleFeedback forwards feedback to the learning agent, and to the empathy
// agent when it carries comments, then drops the user's cached responses
func (c *Coordinator) HandleFeedback(ctx context.Context, fb *models.UserFeedback) (*models.FeedbackResult, error) {
	if fb == nil {
		return nil, fmt.Errorf("%w: feedback is required", ErrInvalidRequest)
	}
	if err := fb.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ctx, span := c.tracer.Start(ctx, "HandleFeedback")
	defer span.End()
	span.SetAttributes(attribute.String("stilya.user_id", fb.UserID), attribute.Int("stilya.rating", fb.Rating))

	log.Info().Str("user_id", fb.UserID).Int("rating", fb.Rating).Msg("Processing user feedback")

	calls := []call{{models.AgentTypeLearning, agent.NewRequest(fb.UserID, models.AgentTypeLearning,
		"collect_feedback", map[string]interface{}{"feedback_data": fb}, nil)}}
	if fb.Comments != "" {
		calls = append(calls, call{models.AgentTypeEmpathy, agent.NewRequest(fb.UserID, models.AgentTypeEmpathy,
			"Analyze emotional feedback",
			map[string]interface{}{
				"user_id":       fb.UserID,
				"feedback_text": fb.Comments,
				"rating":        fb.Rating,
			}, nil)})
	}

	result := &models.FeedbackResult{
		Processed:      true,
		AgentsUpdated:  []models.AgentType{},
		LearningImpact: fb.Rating <= 2,
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for _, cl := range calls {
		g.Go(func() error {
			resp := c.execute(ctx, cl.agentType, cl.request)
			if resp.Success {
				mu.Lock()
				result.AgentsUpdated = append(result.AgentsUpdated, cl.agentType)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	sortAgentTypes(result.AgentsUpdated)

	c.metrics.RecordFeedback(fb.Rating)
	result.CacheInvalidated = c.cache.InvalidateUser(fb.UserID)

	if result.LearningImpact {
		c.submitAdjustment(fb.UserID)
	}

	log.Info().
		Str("user_id", fb.UserID).
		Int("agents_updated", len(result.AgentsUpdated)).
		Int("cache_invalidated", result.CacheInvalidated).
		Msg("Feedback processing completed")
	return result, nil
}

// submitAdjustment asks the learning agent to refresh the user model after
// a poor rating
func (c *Coordinator) submitAdjustment(userID string) {
	c.mu.RLock()
	q := c.queue
	c.mu.RUnlock()
	if q == nil {
		return
	}

	req := agent.NewRequest(userID, models.AgentTypeLearning, "update_personalization",
		map[string]interface{}{"user_id": userID},
		map[string]interface{}{"update_type": "incremental"})
	req.Priority = models.PriorityHigh
	if err := q.Submit(req); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to queue personalization adjustment")
	}
}

// GetPerformanceMetrics returns a metrics snapshot
func (c *Coordinator) GetPerformanceMetrics() PerformanceMetrics {
	c.metrics.Refresh()
	s := c.metrics.Snapshot()
	s.CacheHitRate = c.cache.HitRate()

	c.mu.RLock()
	if c.queue != nil {
		s.LearningQueue = c.queue.Metrics()
	}
	c.mu.RUnlock()
	return s
}

// GetSystemHealth health-checks every registered agent
func (c *Coordinator) GetSystemHealth(ctx context.Context) models.SystemHealth {
	checks := c.registry.HealthCheckAll(ctx)

	healthy := 0
	for _, ok := range checks {
		if ok {
			healthy++
		}
	}

	h := models.SystemHealth{
		Agents:    checks,
		Status:    "degraded",
		CheckedAt: time.Now().UTC(),
	}
	if len(checks) > 0 {
		h.OverallHealth = float64(healthy) / float64(len(checks))
	}
	if h.OverallHealth >= 0.8 {
		h.Status = "healthy"
	}
	return h
}

// Shutdown stops the loops, drains the learning queue, cleans up every agent
// and clears the cache and metrics
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = false
	stop, q := c.stopLoops, c.queue
	c.mu.Unlock()

	log.Info().Msg("Shutting down coordinator")

	stop()
	c.loops.Wait()

	var err error
	if q != nil {
		if qerr := q.Shutdown(c.config.ShutdownTimeout); qerr != nil {
			err = fmt.Errorf("failed to drain learning queue: %w", qerr)
		}
	}

	c.registry.CleanupAll(ctx)

	c.mu.Lock()
	c.queue = nil
	c.ready = map[models.AgentType]bool{}
	c.mu.Unlock()

	c.cache.Clear()
	c.metrics.Reset()

	log.Info().Msg("Coordinator shutdown completed")
	return err
}
