package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stilya/stilya/internal/agent"
	"github.com/stilya/stilya/internal/models"
)

func queueRequest() *agent.Request {
	return agent.NewRequest("u1", models.AgentTypeLearning, "analyze_recommendation", nil, nil)
}

// TestLearningQueueFull tests non-blocking submission and draining
func TestLearningQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	q := NewLearningQueue(func(ctx context.Context, req *agent.Request) *agent.Response {
		started <- struct{}{}
		<-release
		return &agent.Response{Success: true}
	}, &QueueConfig{Workers: 1, QueueSize: 1, TaskTimeout: time.Second})

	require.NoError(t, q.Submit(queueRequest()))
	<-started

	require.NoError(t, q.Submit(queueRequest()))
	assert.ErrorIs(t, q.Submit(queueRequest()), ErrQueueFull)

	m := q.Metrics()
	assert.EqualValues(t, 2, m.Submitted)
	assert.EqualValues(t, 1, m.Dropped)
	assert.Equal(t, 1, m.Pending)

	close(release)
	require.NoError(t, q.Shutdown(time.Second))
	assert.ErrorIs(t, q.Submit(queueRequest()), ErrQueueClosed)

	m = q.Metrics()
	assert.EqualValues(t, 2, m.Completed)
	assert.Equal(t, 0, m.Pending)
	require.NoError(t, q.Shutdown(time.Second))
}

// TestLearningQueueShutdownTimeout tests that stuck tasks are cancelled
func TestLearningQueueShutdownTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	q := NewLearningQueue(func(ctx context.Context, req *agent.Request) *agent.Response {
		close(started)
		<-ctx.Done()
		return &agent.Response{Success: false, Message: ctx.Err().Error()}
	}, &QueueConfig{Workers: 1, QueueSize: 4, TaskTimeout: time.Minute})

	require.NoError(t, q.Submit(queueRequest()))
	<-started

	err := q.Shutdown(20 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.EqualValues(t, 1, q.Metrics().Failed)
}

// TestLearningQueuePriority tests that high priority work is taken first
func TestLearningQueuePriority(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	order := make(chan string, 3)
	q := NewLearningQueue(func(ctx context.Context, req *agent.Request) *agent.Response {
		if req.TaskDescription == "block" {
			started <- struct{}{}
			<-release
		}
		order <- req.TaskDescription
		return &agent.Response{Success: true}
	}, &QueueConfig{Workers: 1, QueueSize: 4, TaskTimeout: time.Second})

	blocker := queueRequest()
	blocker.TaskDescription = "block"
	require.NoError(t, q.Submit(blocker))
	<-started

	low := queueRequest()
	low.TaskDescription = "low"
	low.Priority = models.PriorityLow
	high := queueRequest()
	high.TaskDescription = "high"
	high.Priority = models.PriorityHigh
	require.NoError(t, q.Submit(low))
	require.NoError(t, q.Submit(high))

	close(release)
	require.NoError(t, q.Shutdown(time.Second))
	close(order)

	var got []string
	for task := range order {
		got = append(got, task)
	}
	assert.Equal(t, []string{"block", "high", "low"}, got)
}
