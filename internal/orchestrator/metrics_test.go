package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stilya/stilya/internal/models"
)

// TestMetricsRecord tests running averages and the confidence window
func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest(100*time.Millisecond, true)
	m.RecordRequest(300*time.Millisecond, false)

	for i := 0; i < confidenceWindow+20; i++ {
		conf := 0.2
		if i >= 20 {
			conf = 0.6
		}
		m.RecordAgent(models.AgentTypeWardrobe, 0.5, i%2 == 0, &conf)
	}
	m.RecordAgent(models.AgentTypeWardrobe, 0.5, false, nil)
	m.Refresh()

	s := m.Snapshot()
	assert.EqualValues(t, 2, s.TotalRecommendations)
	assert.InDelta(t, 0.5, s.SuccessRate, 1e-9)
	assert.InDelta(t, 0.2, s.AverageResponseTime, 1e-9)

	w := s.Agents[models.AgentTypeWardrobe]
	require.NotNil(t, w)
	assert.EqualValues(t, confidenceWindow+21, w.RequestsProcessed)
	assert.Len(t, w.ConfidenceScores, confidenceWindow)
	assert.InDelta(t, 0.6, w.AverageConfidence, 1e-9)
	assert.InDelta(t, 0.5, w.AverageResponseTime, 1e-9)

	// snapshots are detached from the live metrics
	w.ConfidenceScores[0] = 99
	assert.InDelta(t, 0.6, m.Snapshot().Agents[models.AgentTypeWardrobe].ConfidenceScores[0], 1e-9)

	for _, at := range models.AllAgentTypes() {
		assert.Contains(t, s.Agents, at)
	}
}

// TestMetricsFeedback tests the exponential satisfaction estimate
func TestMetricsFeedback(t *testing.T) {
	m := NewMetrics()
	m.RecordFeedback(5)
	m.RecordFeedback(5)

	s := m.Snapshot()
	assert.EqualValues(t, 2, s.FeedbackReceived)
	assert.InDelta(t, 0.19, s.UserSatisfaction, 1e-9)

	m.Reset()
	assert.Zero(t, m.Snapshot().UserSatisfaction)
}
