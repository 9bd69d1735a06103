package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stilya/stilya/internal/models"
)

// stubAgent is a configurable agent used across the package tests
type stubAgent struct {
	*Base
	process func(ctx context.Context, req *Request) (*Response, error)
	initOK  bool
	healthy bool
	cleaned int
}

func newStubAgent(t models.AgentType, process func(ctx context.Context, req *Request) (*Response, error)) *stubAgent {
	return &stubAgent{
		Base:    NewBase(t, string(t)+" stub"),
		process: process,
		initOK:  true,
		healthy: true,
	}
}

func (s *stubAgent) Initialize(ctx context.Context) bool { return s.initOK }
func (s *stubAgent) Cleanup(ctx context.Context)         { s.cleaned++ }
func (s *stubAgent) HealthCheck(ctx context.Context) bool {
	return s.healthy
}
func (s *stubAgent) ProcessRequest(ctx context.Context, req *Request) (*Response, error) {
	return s.process(ctx, req)
}

func testRequest(t models.AgentType) *Request {
	return NewRequest("u1", t, "test", nil, nil)
}

// TestSafeExecuteSuccess tests confidence clamping and timing
func TestSafeExecuteSuccess(t *testing.T) {
	a := newStubAgent(models.AgentTypeWardrobe, func(ctx context.Context, req *Request) (*Response, error) {
		resp := &Response{Success: true, Result: map[string]interface{}{"ok": true}}
		v := 1.7
		resp.Confidence = &v
		return resp, nil
	})

	resp := SafeExecute(context.Background(), a, testRequest(models.AgentTypeWardrobe), time.Second, nil)
	require.True(t, resp.Success)
	assert.Equal(t, models.AgentStatusCompleted, resp.Status)
	assert.Equal(t, 1.0, resp.ConfidenceValue())
	assert.GreaterOrEqual(t, resp.ProcessingTime, 0.0)
	assert.Equal(t, models.AgentStatusCompleted, a.Status())
}

// TestSafeExecuteTimeout tests that a hung agent produces a timeout response
func TestSafeExecuteTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := newStubAgent(models.AgentTypeCreativity, func(ctx context.Context, req *Request) (*Response, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil, ctx.Err()
	})

	resp := SafeExecute(context.Background(), a, testRequest(models.AgentTypeCreativity), 20*time.Millisecond, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, models.AgentStatusTimeout, resp.Status)
	assert.Equal(t, "Agent creativity stub timed out", resp.Message)
	assert.Nil(t, resp.Confidence)

	// let the abandoned goroutine finish before the leak check
	time.Sleep(50 * time.Millisecond)
}

// TestSafeExecuteFailedResponse tests that a rejected request keeps the agent healthy
func TestSafeExecuteFailedResponse(t *testing.T) {
	ctx := context.Background()
	a := NewCreativityAgent(nil)
	require.True(t, a.Initialize(ctx))
	require.True(t, a.HealthCheck(ctx))

	req := NewRequest("u1", models.AgentTypeCreativity, "generate_creative_outfit", nil, nil)
	resp := SafeExecute(ctx, a, req, time.Second, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, models.AgentStatusCompleted, resp.Status)
	assert.Equal(t, models.AgentStatusCompleted, a.Status())
	assert.True(t, a.HealthCheck(ctx))

	// a returned error still faults the agent
	broken := newStubAgent(models.AgentTypeEmpathy, func(ctx context.Context, req *Request) (*Response, error) {
		return nil, errors.New("boom")
	})
	SafeExecute(ctx, broken, testRequest(models.AgentTypeEmpathy), time.Second, nil)
	assert.False(t, broken.Base.HealthCheck(ctx))
}

// TestSafeExecuteError tests conversion of returned errors
func TestSafeExecuteError(t *testing.T) {
	a := newStubAgent(models.AgentTypeEmpathy, func(ctx context.Context, req *Request) (*Response, error) {
		return nil, errors.New("boom")
	})

	resp := SafeExecute(context.Background(), a, testRequest(models.AgentTypeEmpathy), time.Second, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, models.AgentStatusError, resp.Status)
	assert.Equal(t, "Agent empathy stub failed: boom", resp.Message)
	assert.NotNil(t, resp.Result)
}

// TestSafeExecutePanic tests that panics never escape
func TestSafeExecutePanic(t *testing.T) {
	a := newStubAgent(models.AgentTypeVisual, func(ctx context.Context, req *Request) (*Response, error) {
		panic("nil map")
	})

	resp := SafeExecute(context.Background(), a, testRequest(models.AgentTypeVisual), time.Second, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, models.AgentStatusError, resp.Status)
	assert.Contains(t, resp.Message, "panic: nil map")
}

// TestSafeExecuteNotReady tests the not-ready fast path
func TestSafeExecuteNotReady(t *testing.T) {
	a := newStubAgent(models.AgentTypeWardrobe, func(ctx context.Context, req *Request) (*Response, error) {
		return nil, ErrNotReady
	})

	resp := SafeExecute(context.Background(), a, testRequest(models.AgentTypeWardrobe), time.Second, nil)
	assert.Equal(t, models.AgentStatusError, resp.Status)
	assert.Contains(t, resp.Message, "not ready")
}

// TestSafeExecuteRateLimited tests that a starved limiter times out
func TestSafeExecuteRateLimited(t *testing.T) {
	limiter := NewLimiter()
	limiter.SetLimit(models.AgentTypeLearning, 0.001, 1)
	require.True(t, limiter.Allow(models.AgentTypeLearning))

	a := newStubAgent(models.AgentTypeLearning, func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Success: true}, nil
	})

	resp := SafeExecute(context.Background(), a, testRequest(models.AgentTypeLearning), 20*time.Millisecond, limiter)
	assert.Equal(t, models.AgentStatusTimeout, resp.Status)

	limiter.SetLimit(models.AgentTypeLearning, 0, 0)
	resp = SafeExecute(context.Background(), a, testRequest(models.AgentTypeLearning), time.Second, limiter)
	assert.True(t, resp.Success)
}
