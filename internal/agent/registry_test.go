package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stilya/stilya/internal/models"
)

type panickyAgent struct{ *stubAgent }

func (p *panickyAgent) Initialize(ctx context.Context) bool { panic("model file missing") }

func noop(ctx context.Context, req *Request) (*Response, error) { return &Response{Success: true}, nil }

// TestRegistryRegister tests nil and duplicate rejection
func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newStubAgent(models.AgentTypeWardrobe, noop)))
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(newStubAgent(models.AgentTypeWardrobe, noop)))

	a, ok := r.Get(models.AgentTypeWardrobe)
	require.True(t, ok)
	assert.Equal(t, models.AgentTypeWardrobe, a.Type())

	_, ok = r.Get(models.AgentTypeVisual)
	assert.False(t, ok)
}

// TestRegistryBulkOps tests that one failing agent does not block others
func TestRegistryBulkOps(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	good := newStubAgent(models.AgentTypeWardrobe, noop)
	failing := newStubAgent(models.AgentTypeVisual, noop)
	failing.initOK = false
	failing.healthy = false
	bad := &panickyAgent{newStubAgent(models.AgentTypeEmpathy, noop)}

	require.NoError(t, r.Register(good))
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(bad))

	initResults := r.InitializeAll(ctx)
	assert.Equal(t, map[models.AgentType]bool{
		models.AgentTypeWardrobe: true,
		models.AgentTypeVisual:   false,
		models.AgentTypeEmpathy:  false,
	}, initResults)

	health := r.HealthCheckAll(ctx)
	assert.True(t, health[models.AgentTypeWardrobe])
	assert.False(t, health[models.AgentTypeVisual])

	r.CleanupAll(ctx)
	r.CleanupAll(ctx)
	assert.Equal(t, 2, good.cleaned)

	assert.Equal(t, []models.AgentType{models.AgentTypeEmpathy, models.AgentTypeVisual, models.AgentTypeWardrobe}, r.Types())
}
