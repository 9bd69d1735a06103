package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/models"
)

// Registry maps each capability to exactly one agent
type Registry struct {
	agents map[models.AgentType]Agent
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[models.AgentType]Agent),
	}
}

// Register adds an agent. Registering a second agent for a type is rejected.
func (r *Registry) Register(agent Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if agent == nil {
		return fmt.Errorf("cannot register nil agent")
	}

	agentType := agent.Type()
	if _, exists := r.agents[agentType]; exists {
		return fmt.Errorf("agent of type %s already registered", agentType)
	}

	r.agents[agentType] = agent
	log.Info().Str("agent_type", string(agentType)).Str("agent_name", agent.Name()).Msg("Agent registered")
	return nil
}

// Get returns the agent for a type
func (r *Registry) Get(agentType models.AgentType) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentType]
	return a, ok
}

// All returns every registered agent ordered by type
func (r *Registry) All() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Type() < agents[j].Type() })
	return agents
}

// Types returns the registered capabilities in order
func (r *Registry) Types() []models.AgentType {
	all := r.All()
	types := make([]models.AgentType, len(all))
	for i, a := range all {
		types[i] = a.Type()
	}
	return types
}

// InitializeAll initializes every agent. A panicking agent is recorded as failed.
func (r *Registry) InitializeAll(ctx context.Context) map[models.AgentType]bool {
	return r.each(ctx, "initialize", func(ctx context.Context, a Agent) bool {
		return a.Initialize(ctx)
	})
}

// HealthCheckAll checks every agent
func (r *Registry) HealthCheckAll(ctx context.Context) map[models.AgentType]bool {
	return r.each(ctx, "health check", func(ctx context.Context, a Agent) bool {
		return a.HealthCheck(ctx)
	})
}

// CleanupAll releases every agent's resources
func (r *Registry) CleanupAll(ctx context.Context) {
	r.each(ctx, "cleanup", func(ctx context.Context, a Agent) bool {
		a.Cleanup(ctx)
		return true
	})
}

func (r *Registry) each(ctx context.Context, op string, fn func(context.Context, Agent) bool) map[models.AgentType]bool {
	results := make(map[models.AgentType]bool)
	for _, a := range r.All() {
		ok := guard(ctx, a, op, fn)
		results[a.Type()] = ok
		if ok {
			log.Debug().Str("agent_type", string(a.Type())).Str("op", op).Msg("Agent op succeeded")
		} else {
			log.Error().Str("agent_type", string(a.Type())).Str("op", op).Msg("Agent op failed")
		}
	}
	return results
}

func guard(ctx context.Context, a Agent, op string, fn func(context.Context, Agent) bool) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("agent_type", string(a.Type())).Str("op", op).Interface("panic", rec).Msg("Agent panicked")
			ok = false
		}
	}()
	return fn(ctx, a)
}
