package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stilya/stilya/internal/models"
)

// ErrNotReady is returned by agents whose resources are not loaded
var ErrNotReady = errors.New("agent not ready")

// Agent is the capability contract every worker implements
type Agent interface {
	Name() string
	Type() models.AgentType

	// Initialize loads models and indices. It is idempotent and leaves the
	// agent not ready when it returns false.
	Initialize(ctx context.Context) bool

	// ProcessRequest answers a single request. Returned errors are faults and
	// are converted into error responses by SafeExecute.
	ProcessRequest(ctx context.Context, request *Request) (*Response, error)

	// Cleanup releases resources and may be called more than once
	Cleanup(ctx context.Context)

	// HealthCheck is cheap and side-effect free
	HealthCheck(ctx context.Context) bool
}

// Request is a single agent invocation
type Request struct {
	RequestID       string                 `json:"request_id"`
	UserID          string                 `json:"user_id"`
	Timestamp       time.Time              `json:"timestamp"`
	Priority        models.RequestPriority `json:"priority"`
	AgentType       models.AgentType       `json:"agent_type"`
	TaskDescription string                 `json:"task_description"`
	Context         map[string]interface{} `json:"context"`
	Parameters      map[string]interface{} `json:"parameters"`
}

// NewRequest creates a request with a fresh id and normal priority
func NewRequest(userID string, agentType models.AgentType, task string, reqCtx, params map[string]interface{}) *Request {
	if reqCtx == nil {
		reqCtx = map[string]interface{}{}
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	return &Request{
		RequestID:       uuid.NewString(),
		UserID:          userID,
		Timestamp:       time.Now(),
		Priority:        models.PriorityNormal,
		AgentType:       agentType,
		TaskDescription: task,
		Context:         reqCtx,
		Parameters:      params,
	}
}

// Response is produced exactly once per Request
type Response struct {
	Success        bool                   `json:"success"`
	AgentType      models.AgentType       `json:"agent_type"`
	Status         models.AgentStatus     `json:"status"`
	Result         map[string]interface{} `json:"result"`
	Confidence     *float64               `json:"confidence"`
	ProcessingTime float64                `json:"processing_time"`
	Message        string                 `json:"message"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// ConfidenceValue returns the confidence or zero when the task has no score
func (r *Response) ConfidenceValue() float64 {
	if r == nil || r.Confidence == nil {
		return 0
	}
	return *r.Confidence
}

// Confidence clamps v into [0,1] and returns a pointer suitable for a Response
func Confidence(v float64) *float64 {
	c := clamp01(v)
	return &c
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
