package agent

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/stilya/stilya/internal/models"
)

// Limiter throttles calls per agent type with a token bucket
type Limiter struct {
	limiters map[models.AgentType]*rate.Limiter
	mu       sync.RWMutex
}

// NewLimiter creates a limiter with no limits configured
func NewLimiter() *Limiter {
	return &Limiter{
		limiters: make(map[models.AgentType]*rate.Limiter),
	}
}

// SetLimit configures requests per second for an agent. A non-positive rps
// removes the limit.
func (l *Limiter) SetLimit(agentType models.AgentType, rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rps <= 0 {
		delete(l.limiters, agentType)
		return
	}
	if burst < 1 {
		burst = 1
	}
	l.limiters[agentType] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Allow reports whether a call may proceed now
func (l *Limiter) Allow(agentType models.AgentType) bool {
	limiter := l.get(agentType)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

// Wait blocks until a call is allowed or ctx is done
func (l *Limiter) Wait(ctx context.Context, agentType models.AgentType) error {
	limiter := l.get(agentType)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (l *Limiter) get(agentType models.AgentType) *rate.Limiter {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiters[agentType]
}
