package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Service bundles the stores used by the agents
type Service struct {
	Store     Store
	Feedback  FeedbackLog
	Profiles  ProfileStore
	Graph     KnowledgeGraph
	Embedding EmbeddingGenerator

	config    *Config
	startTime time.Time
}

// Stats contains storage statistics
type Stats struct {
	Documents     int           `json:"documents"`
	Profiles      int64         `json:"profiles"`
	FeedbackTotal int64         `json:"feedback_total"`
	Uptime        time.Duration `json:"uptime"`
}

// CompactionResult contains results from a compaction pass
type CompactionResult struct {
	FeedbackPruned int64         `json:"feedback_pruned"`
	Duration       time.Duration `json:"duration"`
}

// Open creates every store. Redis and Dgraph are optional: when disabled or
// unreachable the Badger-backed profile store and the in-process graph are
// used instead.
func Open(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	store, err := NewBadgerStore(config.BadgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}

	feedback, err := NewSQLiteFeedbackLog(config.SQLitePath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create feedback log: %w", err)
	}

	var profiles ProfileStore = NewKVProfileStore(store)
	if config.RedisEnabled {
		redisStore, err := NewRedisProfileStore(config)
		if err != nil {
			log.Warn().Err(err).Str("addr", config.RedisURL).Msg("Redis unavailable, keeping profiles in the local store")
		} else {
			profiles = redisStore
		}
	}

	var graph KnowledgeGraph = NewMemoryKnowledgeGraph()
	if config.DgraphEnabled {
		dgraph, err := NewDgraphKnowledgeGraph(config)
		if err != nil {
			log.Warn().Err(err).Str("addr", config.DgraphAlphaURL).Msg("Dgraph unavailable, using in-process knowledge graph")
		} else {
			graph = dgraph
		}
	}

	return &Service{
		Store:     store,
		Feedback:  feedback,
		Profiles:  profiles,
		Graph:     graph,
		Embedding: NewEmbeddingGenerator(config),
		config:    config,
		startTime: time.Now(),
	}, nil
}

// Compact prunes feedback older than the retention window
func (s *Service) Compact(ctx context.Context) (*CompactionResult, error) {
	start := time.Now()
	result := &CompactionResult{}

	if s.config.RetentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(s.config.RetentionDays) * 24 * time.Hour)
		n, err := s.Feedback.Prune(ctx, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to prune feedback: %w", err)
		}
		result.FeedbackPruned = n
	}

	result.Duration = time.Since(start)
	return result, nil
}

// GetStats returns storage statistics
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	docs, err := s.Store.Count(ctx, "")
	if err != nil {
		return nil, err
	}
	profiles, _ := s.Profiles.Count(ctx)
	fb, err := s.Feedback.Stats(ctx, time.Time{})
	if err != nil {
		return nil, err
	}

	return &Stats{
		Documents:     docs,
		Profiles:      profiles,
		FeedbackTotal: fb.Total,
		Uptime:        time.Since(s.startTime),
	}, nil
}

// Close closes every store
func (s *Service) Close() error {
	var errs []error

	if err := s.Profiles.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Graph.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Feedback.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Store.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing memory service: %w", errors.Join(errs...))
	}
	return nil
}
