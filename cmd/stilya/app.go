package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/agent"
	"github.com/stilya/stilya/internal/config"
	"github.com/stilya/stilya/internal/memory"
	"github.com/stilya/stilya/internal/orchestrator"
	"github.com/stilya/stilya/internal/telemetry"
)

// app owns the stores, agents and coordinator for one CLI invocation
type app struct {
	cfg         *config.Config
	mem         *memory.Service
	coordinator *orchestrator.Coordinator
	ready       map[string]bool

	stopTelemetry func(context.Context) error
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadPath(configPath)
	}
	return config.Load()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	setLevel(cfg.LogLevel)

	stopTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	mem, err := memory.Open(cfg.Memory())
	if err != nil {
		_ = stopTelemetry(ctx)
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	registry := agent.NewRegistry()
	agents := []agent.Agent{
		agent.NewWardrobeAgent(mem.Embedding, cfg.Wardrobe()),
		agent.NewCreativityAgent(agent.HeuristicCreativityScorer{}),
		agent.NewEmpathyAgent(agent.LexiconEmpathyScorer{}),
		agent.NewVisualAgent(mem.Embedding, memory.NewColorLayoutEmbedding(), agent.VisualStyleRules{}, cfg.Visual()),
		agent.NewKnowledgeAgent(mem.Store, mem.Graph, agent.KeywordKnowledgeAnalyzer{}, cfg.KnowledgeAgent()),
		agent.NewLearningAgent(mem, agent.HeuristicLearningScorer{}, cfg.LearningAgent()),
	}
	for _, a := range agents {
		if err := registry.Register(a); err != nil {
			_ = mem.Close()
			_ = stopTelemetry(ctx)
			return nil, err
		}
	}

	coordinator := orchestrator.NewCoordinator(registry, cfg.Limiter(), cfg.Coordinator())
	ready := map[string]bool{}
	for t, ok := range coordinator.Initialize(ctx) {
		ready[string(t)] = ok
		if !ok {
			log.Warn().Str("agent_type", string(t)).Msg("Agent failed to initialize")
		}
	}

	return &app{
		cfg:           cfg,
		mem:           mem,
		coordinator:   coordinator,
		ready:         ready,
		stopTelemetry: stopTelemetry,
	}, nil
}

// Close shuts the coordinator down before closing the stores it uses
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.coordinator.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.mem.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	if err := a.stopTelemetry(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// withApp runs fn with an initialized app and tears it down afterwards.
// SIGINT and SIGTERM cancel the context passed to fn.
func withApp(parent context.Context, fn func(ctx context.Context, a *app) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)
	if err := a.Close(context.WithoutCancel(ctx)); err != nil {
		log.Error().Err(err).Msg("Shutdown finished with errors")
	}
	return runErr
}
