package orchestrator

import (
	"sync"
	"time"

	"github.com/stilya/stilya/internal/models"
)

// confidenceWindow is the number of recent confidences kept per agent
const confidenceWindow = 100

// AgentMetrics tracks one agent's calls
type AgentMetrics struct {
	RequestsProcessed   int64     `json:"requests_processed"`
	SuccessfulRequests  int64     `json:"successful_requests"`
	SuccessRate         float64   `json:"success_rate"`
	AverageResponseTime float64   `json:"average_response_time"`
	AverageConfidence   float64   `json:"average_confidence"`
	ConfidenceScores    []float64 `json:"confidence_scores"`
}

// PerformanceMetrics is a snapshot of coordinator metrics
type PerformanceMetrics struct {
	StartTime                 time.Time                          `json:"start_time"`
	UptimeSeconds             float64                            `json:"uptime_seconds"`
	TotalRecommendations      int64                              `json:"total_recommendations"`
	SuccessfulRecommendations int64                              `json:"successful_recommendations"`
	SuccessRate               float64                            `json:"success_rate"`
	AverageResponseTime       float64                            `json:"average_response_time"`
	CacheHitRate              float64                            `json:"cache_hit_rate"`
	UserSatisfaction          float64                            `json:"user_satisfaction"`
	FeedbackReceived          int64                              `json:"feedback_received"`
	Agents                    map[models.AgentType]*AgentMetrics `json:"agent_metrics"`
	LearningQueue             QueueMetrics                       `json:"learning_queue"`
}

// Metrics accumulates request, agent and feedback statistics
type Metrics struct {
	start        time.Time
	total        int64
	successful   int64
	avgLatency   float64
	satisfaction float64
	feedback     int64
	agents       map[models.AgentType]*AgentMetrics
	mu           sync.Mutex
}

// NewMetrics creates zeroed metrics for every known agent type
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.Reset()
	return m
}

// Reset clears every counter and restarts the uptime clock
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.start = time.Now()
	m.total, m.successful, m.feedback = 0, 0, 0
	m.avgLatency, m.satisfaction = 0, 0
	m.agents = make(map[models.AgentType]*AgentMetrics)
	for _, t := range models.AllAgentTypes() {
		m.agents[t] = &AgentMetrics{ConfidenceScores: []float64{}}
	}
}

// RecordRequest folds one recommendation into the running averages
func (m *Metrics) RecordRequest(latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if success {
		m.successful++
	}
	m.avgLatency += (latency.Seconds() - m.avgLatency) / float64(m.total)
}

// RecordAgent folds one agent call into that agent's metrics
func (m *Metrics) RecordAgent(t models.AgentType, processingTime float64, success bool, confidence *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[t]
	if !ok {
		a = &AgentMetrics{ConfidenceScores: []float64{}}
		m.agents[t] = a
	}

	a.RequestsProcessed++
	if success {
		a.SuccessfulRequests++
	}
	n := float64(a.RequestsProcessed)
	a.SuccessRate = float64(a.SuccessfulRequests) / n
	a.AverageResponseTime += (processingTime - a.AverageResponseTime) / n

	if confidence != nil {
		a.ConfidenceScores = append(a.ConfidenceScores, *confidence)
		if len(a.ConfidenceScores) > confidenceWindow {
			a.ConfidenceScores = a.ConfidenceScores[len(a.ConfidenceScores)-confidenceWindow:]
		}
	}
}

// RecordFeedback moves the satisfaction estimate a tenth of the way toward rating/5
func (m *Metrics) RecordFeedback(rating int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.feedback++
	m.satisfaction = 0.9*m.satisfaction + 0.1*float64(rating)/5
}

// Refresh recomputes per-agent average confidence from the ring buffers
func (m *Metrics) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.agents {
		a.AverageConfidence = 0
		if len(a.ConfidenceScores) > 0 {
			sum := 0.0
			for _, c := range a.ConfidenceScores {
				sum += c
			}
			a.AverageConfidence = sum / float64(len(a.ConfidenceScores))
		}
	}
}

// Snapshot returns a deep copy of the current metrics
func (m *Metrics) Snapshot() PerformanceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := PerformanceMetrics{
		StartTime:                 m.start,
		UptimeSeconds:             time.Since(m.start).Seconds(),
		TotalRecommendations:      m.total,
		SuccessfulRecommendations: m.successful,
		AverageResponseTime:       m.avgLatency,
		UserSatisfaction:          m.satisfaction,
		FeedbackReceived:          m.feedback,
		Agents:                    make(map[models.AgentType]*AgentMetrics, len(m.agents)),
	}
	if m.total > 0 {
		s.SuccessRate = float64(m.successful) / float64(m.total)
	}
	for t, a := range m.agents {
		cp := *a
		cp.ConfidenceScores = append([]float64{}, a.ConfidenceScores...)
		s.Agents[t] = &cp
	}
	return s
}
