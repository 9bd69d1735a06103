package agent

import (
	"context"
	"sync"
	"time"

	"github.com/stilya/stilya/internal/models"
)

// Base carries the identity and lifecycle status shared by every agent.
// Concrete agents embed a *Base and override HealthCheck when they own resources.
type Base struct {
	name      string
	agentType models.AgentType
	status    models.AgentStatus
	mu        sync.RWMutex
}

// NewBase creates an idle base
func NewBase(agentType models.AgentType, name string) *Base {
	return &Base{
		name:      name,
		agentType: agentType,
		status:    models.AgentStatusIdle,
	}
}

// Name returns the human readable agent name
func (b *Base) Name() string { return b.name }

// Type returns the agent capability
func (b *Base) Type() models.AgentType { return b.agentType }

// Status returns the current lifecycle status
func (b *Base) Status() models.AgentStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// SetStatus records a lifecycle transition
func (b *Base) SetStatus(status models.AgentStatus) {
	b.mu.Lock()
	b.status = status
	b.mu.Unlock()
}

// HealthCheck reports healthy unless the last request faulted
func (b *Base) HealthCheck(ctx context.Context) bool {
	return b.Status() != models.AgentStatusError
}

// Succeed builds a successful response with a confidence score
func (b *Base) Succeed(result map[string]interface{}, confidence float64, message string) *Response {
	resp := b.response(true, result, message)
	resp.Confidence = Confidence(confidence)
	return resp
}

// SucceedWithoutScore builds a successful response for tasks that have no score
func (b *Base) SucceedWithoutScore(result map[string]interface{}, message string) *Response {
	return b.response(true, result, message)
}

// Fail builds an unsuccessful response
func (b *Base) Fail(message string) *Response {
	return b.response(false, nil, message)
}

func (b *Base) response(success bool, result map[string]interface{}, message string) *Response {
	if result == nil {
		result = map[string]interface{}{}
	}
	return &Response{
		Success:   success,
		AgentType: b.agentType,
		Status:    b.Status(),
		Result:    result,
		Message:   message,
		Metadata: map[string]interface{}{
			"agent_name": b.name,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
}

// StatusSetter is implemented by agents that expose lifecycle transitions
type StatusSetter interface {
	SetStatus(status models.AgentStatus)
}
