package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/memory"
	"github.com/stilya/stilya/internal/models"
)

// LearningConfig configures feedback windows and fine-tuning
type LearningConfig struct {
	FeedbackWindow     time.Duration
	MinTrainingSamples int
	LearningRate       float64
}

// DefaultLearningConfig returns default learning configuration
func DefaultLearningConfig() *LearningConfig {
	return &LearningConfig{
		FeedbackWindow:     7 * 24 * time.Hour,
		MinTrainingSamples: 10,
		LearningRate:       0.001,
	}
}

// ModelPerformance is refreshed by fine-tuning and metrics requests
type ModelPerformance struct {
	RecommendationAccuracy float64 `json:"recommendation_accuracy"`
	UserEngagement         float64 `json:"user_engagement"`
	RetentionRate          float64 `json:"retention_rate"`
}

type learningMetrics struct {
	TotalFeedbackCollected  int              `json:"total_feedback_collected"`
	AverageUserSatisfaction float64          `json:"average_user_satisfaction"`
	PersonalizationAccuracy float64          `json:"personalization_accuracy"`
	ABTestsActive           int              `json:"ab_tests_active"`
	LearningRate            float64          `json:"learning_rate"`
	ModelPerformance        ModelPerformance `json:"model_performance"`
	ModelVersions           map[string]int   `json:"model_versions"`
}

// LearningAgent collects feedback, keeps user profiles and runs experiments
type LearningAgent struct {
	*Base
	config *LearningConfig
	scorer LearningScorer

	mem     *memory.Service
	ownsMem bool

	feedback        memory.FeedbackLog
	personalization *PersonalizationEngine
	experiments     *ABTestManager
	mu              sync.RWMutex

	metrics   learningMetrics
	metricsMu sync.Mutex
}

// NewLearningAgent creates a learning agent over the memory service. With a
// nil service an in-memory one is opened on Initialize.
func NewLearningAgent(mem *memory.Service, scorer LearningScorer, config *LearningConfig) *LearningAgent {
	if config == nil {
		config = DefaultLearningConfig()
	}
	if scorer == nil {
		scorer = HeuristicLearningScorer{}
	}
	return &LearningAgent{
		Base:   NewBase(models.AgentTypeLearning, "Learning & Feedback Agent"),
		config: config,
		scorer: scorer,
		mem:    mem,
	}
}

// Initialize wires the feedback log, profile store and experiment store
func (a *LearningAgent) Initialize(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.feedback != nil {
		return true
	}

	if a.mem == nil {
		mem, err := memory.Open(nil)
		if err != nil {
			log.Error().Err(err).Str("agent", a.Name()).Msg("Failed to open learning stores")
			a.SetStatus(models.AgentStatusError)
			return false
		}
		a.mem, a.ownsMem = mem, true
	}

	a.feedback = a.mem.Feedback
	a.personalization = NewPersonalizationEngine(a.mem.Profiles, a.scorer)
	a.experiments = NewABTestManager(a.mem.Store)

	a.metricsMu.Lock()
	a.metrics = learningMetrics{LearningRate: a.config.LearningRate, ModelVersions: map[string]int{}}
	if stats, err := a.feedback.Stats(ctx, time.Time{}); err == nil {
		a.metrics.TotalFeedbackCollected = int(stats.Total)
		a.metrics.AverageUserSatisfaction = stats.AverageRating
	}
	a.metricsMu.Unlock()

	a.SetStatus(models.AgentStatusIdle)
	log.Info().Str("agent", a.Name()).Msg("Learning agent initialized")
	return true
}

// ProcessRequest routes on the task description
func (a *LearningAgent) ProcessRequest(ctx context.Context, req *Request) (*Response, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.feedback == nil {
		return nil, ErrNotReady
	}

	handler, ok := matchRoute(req.TaskDescription, []route[func(context.Context, *Request) (*Response, error)]{
		{"get user profile", a.handleProfile},
		{"collect feedback", a.handleCollect},
		{"analyze feedback", a.handleAnalyze},
		{"update personalization", a.handlePersonalization},
		{"ab test", a.handleABTest},
		{"fine tune", a.handleFineTune},
		{"learning metrics", a.handleMetrics},
		{"analyze recommendation", a.handleRecommendation},
	})
	if !ok {
		return a.Fail(fmt.Sprintf("Unknown learning task: %s", req.TaskDescription)), nil
	}
	return handler(ctx, req)
}

func requestUser(req *Request) string {
	return lookupString(req, "user_id", req.UserID)
}

func (a *LearningAgent) handleProfile(ctx context.Context, req *Request) (*Response, error) {
	userID := requestUser(req)
	if userID == "" {
		return a.Fail("User ID is required"), nil
	}
	p, found, err := a.personalization.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	return a.Succeed(map[string]interface{}{
		"user_profile":  p,
		"style_history": p.StyleHistory,
		"profile_found": found,
	}, a.scorer.ProfileConfidence(p, found), fmt.Sprintf("Loaded profile for %s", userID)), nil
}

// feedbackFrom decodes feedback_data, which may be a struct or a JSON-like map
func feedbackFrom(v interface{}) (*models.UserFeedback, error) {
	switch t := v.(type) {
	case *models.UserFeedback:
		fb := *t
		return &fb, nil
	case models.UserFeedback:
		return &t, nil
	case map[string]interface{}:
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		var fb models.UserFeedback
		if err := json.Unmarshal(raw, &fb); err != nil {
			return nil, fmt.Errorf("invalid feedback data: %w", err)
		}
		return &fb, nil
	}
	return nil, fmt.Errorf("unsupported feedback data %T", v)
}

func (a *LearningAgent) handleCollect(ctx context.Context, req *Request) (*Response, error) {
	raw, ok := lookup(req, "feedback_data")
	if !ok {
		return a.Fail("Feedback data is required"), nil
	}
	fb, err := feedbackFrom(raw)
	if err != nil {
		return a.Fail(err.Error()), nil
	}
	if fb.UserID == "" {
		fb.UserID = req.UserID
	}
	if err := fb.Validate(); err != nil {
		return a.Fail(err.Error()), nil
	}
	if fb.FeedbackID == "" {
		fb.FeedbackID = "fb_" + uuid.NewString()
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now().UTC()
	}

	if _, err := a.feedback.Append(ctx, fb); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	a.metricsMu.Lock()
	a.metrics.TotalFeedbackCollected++
	n := float64(a.metrics.TotalFeedbackCollected)
	a.metrics.AverageUserSatisfaction = (a.metrics.AverageUserSatisfaction*(n-1) + float64(fb.Rating)) / n
	a.metricsMu.Unlock()

	adjusted, err := a.personalization.RecordFeedback(ctx, fb)
	if err != nil {
		log.Warn().Err(err).Str("user_id", fb.UserID).Msg("Personalization adjustment failed")
	}

	log.Info().Str("feedback_id", fb.FeedbackID).Str("user_id", fb.UserID).Int("rating", fb.Rating).Msg("Feedback stored")
	return a.Succeed(map[string]interface{}{
		"feedback_id":             fb.FeedbackID,
		"feedback_processed":      true,
		"learning_impact":         learningImpact(fb),
		"personalization_updated": adjusted,
	}, 1.0, "Feedback collected and processed successfully"), nil
}

// learningImpact favours extreme ratings and detailed comments
func learningImpact(fb *models.UserFeedback) float64 {
	rating := math.Abs(float64(fb.Rating)-3) / 2
	detail := min(1, float64(len(fb.Comments))/100)
	return (rating + detail) / 2
}

// parseWindow accepts "7d" style day counts or Go durations
func parseWindow(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

// FeedbackAnalysis summarizes a window of feedback
type FeedbackAnalysis struct {
	Summary           map[string]interface{} `json:"feedback_summary"`
	Trends            map[string]string      `json:"trends"`
	UserSegments      map[string]int         `json:"user_segments"`
	ImprovementAreas  []string               `json:"improvement_areas"`
	SatisfactionScore float64                `json:"satisfaction_score"`
}

func analyzeFeedback(items []*models.UserFeedback) *FeedbackAnalysis {
	ratings := make([]float64, len(items))
	types := map[string]int{}
	for i, f := range items {
		ratings[i] = float64(f.Rating)
		types[string(f.FeedbackType)]++
	}
	avg := meanF(ratings)

	engagement := "stable"
	if avg > 3.5 {
		engagement = "increasing"
	}

	// compare the newer half of the window against the older half
	satisfaction := "stable"
	if half := len(ratings) / 2; half > 0 {
		older, newer := meanF(ratings[:half]), meanF(ratings[half:])
		switch {
		case newer-older > 0.25:
			satisfaction = "improving"
		case older-newer > 0.25:
			satisfaction = "declining"
		}
	}

	return &FeedbackAnalysis{
		Summary: map[string]interface{}{
			"total_feedback":    len(items),
			"average_rating":    avg,
			"rating_std":        math.Sqrt(variance(ratings)),
			"type_distribution": types,
		},
		Trends:            map[string]string{"satisfaction_trend": satisfaction, "engagement_trend": engagement},
		UserSegments:      segmentUsers(items),
		ImprovementAreas:  improvementAreas(items),
		SatisfactionScore: avg / 5,
	}
}

var improvementKeywords = []struct {
	area     string
	keywords []string
}{
	{"color_recommendations", []string{"color", "colour"}},
	{"size_fitting", []string{"size", "fit"}},
	{"style_matching", []string{"style"}},
	{"price_consideration", []string{"price", "expensive", "cost"}},
}

// improvementAreas scans comments of ratings two or less
func improvementAreas(items []*models.UserFeedback) []string {
	var areas []string
	for _, f := range items {
		if f.Rating > 2 {
			continue
		}
		c := strings.ToLower(f.Comments)
		for _, k := range improvementKeywords {
			for _, kw := range k.keywords {
				if strings.Contains(c, kw) {
					areas = append(areas, k.area)
					break
				}
			}
		}
	}
	areas = uniq(areas)
	sort.Strings(areas)
	return areas
}

func segmentUsers(items []*models.UserFeedback) map[string]int {
	byUser := map[string][]float64{}
	for _, f := range items {
		byUser[f.UserID] = append(byUser[f.UserID], float64(f.Rating))
	}
	seg := map[string]int{"highly_satisfied": 0, "satisfied": 0, "neutral": 0, "dissatisfied": 0}
	for _, ratings := range byUser {
		switch avg := meanF(ratings); {
		case avg >= 4.5:
			seg["highly_satisfied"]++
		case avg >= 3.5:
			seg["satisfied"]++
		case avg >= 2.5:
			seg["neutral"]++
		default:
			seg["dissatisfied"]++
		}
	}
	return seg
}

func (a *LearningAgent) handleAnalyze(ctx context.Context, req *Request) (*Response, error) {
	window := parseWindow(stringParam(req.Parameters, "time_range", ""), a.config.FeedbackWindow)
	userID := stringParam(req.Parameters, "user_id", "")

	items, err := a.feedback.Since(ctx, time.Now().Add(-window), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}
	if len(items) == 0 {
		return a.Succeed(map[string]interface{}{
			"message": "No feedback data found for the specified criteria",
		}, a.scorer.AnalysisConfidence(0), "No feedback to analyze"), nil
	}

	an := analyzeFeedback(items)
	return a.Succeed(map[string]interface{}{
		"feedback_summary":   an.Summary,
		"trends":             an.Trends,
		"user_segments":      an.UserSegments,
		"improvement_areas":  an.ImprovementAreas,
		"satisfaction_score": an.SatisfactionScore,
	}, a.scorer.AnalysisConfidence(len(items)), fmt.Sprintf("Analyzed %d feedback entries", len(items))), nil
}

func (a *LearningAgent) handlePersonalization(ctx context.Context, req *Request) (*Response, error) {
	userID := requestUser(req)
	if userID == "" {
		return a.Fail("User ID is required for personalization update"), nil
	}
	updateType := stringParam(req.Parameters, "update_type", "incremental")

	up, err := a.personalization.UpdateUserModel(ctx, userID, updateType)
	if err != nil {
		return nil, err
	}

	a.metricsMu.Lock()
	if a.metrics.PersonalizationAccuracy == 0 {
		a.metrics.PersonalizationAccuracy = up.Confidence
	} else {
		a.metrics.PersonalizationAccuracy = 0.9*a.metrics.PersonalizationAccuracy + 0.1*up.Confidence
	}
	a.metricsMu.Unlock()

	return a.Succeed(map[string]interface{}{
		"user_id":              userID,
		"update_type":          updateType,
		"model_updated":        true,
		"accuracy_improvement": max(0, up.Confidence-up.PreviousConf),
		"new_preferences":      up.Preferences,
		"confidence_score":     up.Confidence,
	}, up.Confidence, "Personalization model updated successfully"), nil
}

func (a *LearningAgent) handleABTest(ctx context.Context, req *Request) (*Response, error) {
	action := stringParam(req.Parameters, "action", "status")
	testID := stringParam(req.Parameters, "test_id", "")

	switch action {
	case "create":
		t, err := a.experiments.Create(ctx,
			stringParam(req.Parameters, "test_name", ""),
			stringParam(req.Parameters, "description", ""),
			stringSlice(req.Parameters["variants"]))
		if err != nil {
			return a.Fail(fmt.Sprintf("A/B test creation failed: %v", err)), nil
		}
		return a.Succeed(map[string]interface{}{"test": t, "test_id": t.TestID}, a.scorer.ExperimentConfidence(action, nil), "A/B test created"), nil

	case "assign", "convert":
		userID := requestUser(req)
		if testID == "" || userID == "" {
			return a.Fail("test_id and user_id are required"), nil
		}
		var variant string
		var err error
		if action == "assign" {
			variant, err = a.experiments.Assign(ctx, testID, userID)
		} else {
			variant, err = a.experiments.Convert(ctx, testID, userID)
		}
		if err != nil {
			return a.Fail(fmt.Sprintf("A/B test %s failed: %v", action, err)), nil
		}
		return a.Succeed(map[string]interface{}{"test_id": testID, "user_id": userID, "variant": variant}, a.scorer.ExperimentConfidence(action, nil), "A/B test "+action+" recorded"), nil

	case "analyze":
		if testID == "" {
			return a.Fail("test_id is required"), nil
		}
		an, err := a.experiments.Analyze(ctx, testID)
		if err != nil {
			return a.Fail(fmt.Sprintf("A/B test analysis failed: %v", err)), nil
		}
		return a.Succeed(map[string]interface{}{"analysis": an}, a.scorer.ExperimentConfidence(action, an), "A/B test analyzed"), nil

	case "stop":
		if testID == "" {
			return a.Fail("test_id is required"), nil
		}
		t, err := a.experiments.Stop(ctx, testID)
		if err != nil {
			return a.Fail(fmt.Sprintf("A/B test stop failed: %v", err)), nil
		}
		return a.Succeed(map[string]interface{}{"test": t}, a.scorer.ExperimentConfidence(action, nil), "A/B test stopped"), nil

	case "status":
		tests, err := a.experiments.List(ctx)
		if err != nil {
			return nil, err
		}
		active := 0
		for _, t := range tests {
			if t.Status == "active" {
				active++
			}
		}
		a.metricsMu.Lock()
		a.metrics.ABTestsActive = active
		a.metricsMu.Unlock()
		return a.Succeed(map[string]interface{}{"tests": tests, "active_tests": active}, a.scorer.ExperimentConfidence(action, nil), fmt.Sprintf("%d active A/B tests", active)), nil
	}
	return a.Fail(fmt.Sprintf("Unknown A/B testing action: %s", action)), nil
}

// handleFineTune simulates a training round over recent feedback. The
// validation metrics are computed from the ratings themselves.
func (a *LearningAgent) handleFineTune(ctx context.Context, req *Request) (*Response, error) {
	modelType := stringParam(req.Parameters, "model_type", "recommendation")
	size := intParam(req.Parameters, "training_data_size", 1000)

	items, err := a.feedback.Since(ctx, time.Time{}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load training data: %w", err)
	}
	if len(items) > size {
		items = items[len(items)-size:]
	}
	if len(items) < a.config.MinTrainingSamples {
		return a.Fail(fmt.Sprintf("Insufficient training data for fine-tuning: %d samples, need %d", len(items), a.config.MinTrainingSamples)), nil
	}

	positive, total := 0, 0.0
	for _, f := range items {
		total += float64(f.Rating)
		if f.Rating >= 4 {
			positive++
		}
	}
	n := float64(len(items))
	accuracy := total / n / 5
	improvement := min(0.15, a.config.LearningRate*10*math.Log2(n))

	a.metricsMu.Lock()
	a.metrics.ModelVersions[modelType]++
	version := fmt.Sprintf("%s-v%d", modelType, a.metrics.ModelVersions[modelType])
	a.metrics.ModelPerformance.RecommendationAccuracy = accuracy
	a.metricsMu.Unlock()

	return a.Succeed(map[string]interface{}{
		"model_type":              modelType,
		"training_samples":        len(items),
		"fine_tuning_success":     true,
		"performance_improvement": improvement,
		"new_model_version":       version,
		"validation_metrics": map[string]float64{
			"accuracy":      accuracy,
			"positive_rate": float64(positive) / n,
		},
	}, a.scorer.FineTuneConfidence(len(items)), "Model fine-tuning completed"), nil
}

func (a *LearningAgent) handleMetrics(ctx context.Context, req *Request) (*Response, error) {
	recent, err := a.feedback.Stats(ctx, time.Now().Add(-a.config.FeedbackWindow))
	if err != nil {
		return nil, err
	}
	overall, err := a.feedback.Stats(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	month, err := a.feedback.Since(ctx, time.Now().Add(-30*24*time.Hour), "")
	if err != nil {
		return nil, err
	}

	commented, perUser := 0, map[string]int{}
	for _, f := range month {
		if f.Comments != "" {
			commented++
		}
		perUser[f.UserID]++
	}
	returning := 0
	for _, n := range perUser {
		if n > 1 {
			returning++
		}
	}

	a.metricsMu.Lock()
	if len(month) > 0 {
		a.metrics.ModelPerformance.UserEngagement = float64(commented) / float64(len(month))
	}
	if len(perUser) > 0 {
		a.metrics.ModelPerformance.RetentionRate = float64(returning) / float64(len(perUser))
	}
	m := a.metrics
	m.ModelVersions = make(map[string]int, len(a.metrics.ModelVersions))
	for k, v := range a.metrics.ModelVersions {
		m.ModelVersions[k] = v
	}
	a.metricsMu.Unlock()

	trend := "stable"
	switch {
	case recent.Total > 0 && recent.AverageRating-overall.AverageRating > 0.1:
		trend = "improving"
	case recent.Total > 0 && overall.AverageRating-recent.AverageRating > 0.1:
		trend = "declining"
	}

	var metrics interface{} = m
	if kind := stringParam(req.Parameters, "metric_type", "all"); kind != "all" {
		raw, _ := json.Marshal(m)
		var all map[string]interface{}
		_ = json.Unmarshal(raw, &all)
		metrics = map[string]interface{}{kind: all[kind]}
	}

	return a.Succeed(map[string]interface{}{
		"learning_metrics":  metrics,
		"last_updated":      time.Now().UTC(),
		"performance_trend": trend,
		"recommendations":   learningRecommendations(m, overall),
	}, 1.0, "Learning metrics retrieved successfully"), nil
}

func learningRecommendations(m learningMetrics, overall *memory.FeedbackStats) []string {
	var out []string
	if overall.Total < 100 {
		out = append(out, "Collect more feedback before the next fine-tuning round")
	}
	if overall.Total > 0 && overall.AverageRating < 3.5 {
		out = append(out, "Review low-rated recommendations for recurring improvement areas")
	}
	if m.ABTestsActive == 0 {
		out = append(out, "Start an A/B test to compare ranking variants")
	}
	if m.ModelPerformance.UserEngagement < 0.2 {
		out = append(out, "Prompt users for comments to improve feedback detail")
	}
	if out == nil {
		out = []string{"Learning pipeline is healthy"}
	}
	return out
}

// handleRecommendation records the styles of a delivered recommendation in
// the user's history so later feedback can be attributed to them
func (a *LearningAgent) handleRecommendation(ctx context.Context, req *Request) (*Response, error) {
	userID := requestUser(req)
	if userID == "" {
		return a.Fail("User ID is required"), nil
	}
	recID := lookupString(req, "recommendation_id", "")
	occasion := lookupString(req, "occasion", "")
	var styles []string
	if v, ok := lookup(req, "styles"); ok {
		styles = stringSlice(v)
	}

	added, err := a.personalization.RecordRecommendation(ctx, userID, recID, occasion, styles)
	if err != nil {
		return nil, err
	}
	return a.Succeed(map[string]interface{}{
		"user_id":               userID,
		"recommendation_id":     recID,
		"history_entries_added": added,
	}, 0.8, "Recommendation recorded for learning"), nil
}

// Cleanup releases an owned memory service
func (a *LearningAgent) Cleanup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ownsMem && a.mem != nil {
		if err := a.mem.Close(); err != nil {
			log.Warn().Err(err).Str("agent", a.Name()).Msg("Failed to close learning stores")
		}
		a.mem, a.ownsMem = nil, false
	}
	a.feedback, a.personalization, a.experiments = nil, nil, nil
	log.Info().Str("agent", a.Name()).Msg("Learning agent cleaned up")
}

// HealthCheck requires the feedback log
func (a *LearningAgent) HealthCheck(ctx context.Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.feedback != nil && a.Base.HealthCheck(ctx)
}
