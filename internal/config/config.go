// Package config loads Stilya configuration from an optional TOML file and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/stilya/stilya/internal/agent"
	"github.com/stilya/stilya/internal/memory"
	"github.com/stilya/stilya/internal/models"
	"github.com/stilya/stilya/internal/orchestrator"
)

// Config holds all configuration for the recommendation core
type Config struct {
	LogLevel    string            `toml:"log_level"`
	Agents      AgentsConfig      `toml:"agents"`
	Cache       CacheConfig       `toml:"cache"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Learning    LearningConfig    `toml:"learning"`
	Storage     StorageConfig     `toml:"storage"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Knowledge   KnowledgeConfig   `toml:"knowledge"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
}

type AgentsConfig struct {
	Timeout       time.Duration `toml:"timeout"`
	MaxConcurrent int           `toml:"max_concurrent"`
	// RateLimit is requests per second per agent, 0 disables
	RateLimit       float64 `toml:"rate_limit"`
	RateBurst       int     `toml:"rate_burst"`
	CatalogSize     int     `toml:"catalog_size"`
	CatalogSeed     int64   `toml:"catalog_seed"`
	SearchTopK      int     `toml:"search_top_k"`
	IndexBackend    string  `toml:"index_backend"`
	ImageFetchLimit int64   `toml:"image_fetch_limit"`
}

type CacheConfig struct {
	TTL        time.Duration `toml:"ttl"`
	MaxEntries int           `toml:"max_entries"`
	TrimTo     int           `toml:"trim_to"`
}

type MaintenanceConfig struct {
	MetricsInterval      time.Duration `toml:"metrics_interval"`
	HealthInterval       time.Duration `toml:"health_interval"`
	CacheCleanupInterval time.Duration `toml:"cache_cleanup_interval"`
	ShutdownTimeout      time.Duration `toml:"shutdown_timeout"`
}

type LearningConfig struct {
	Workers            int           `toml:"workers"`
	QueueSize          int           `toml:"queue_size"`
	TaskTimeout        time.Duration `toml:"task_timeout"`
	FeedbackWindow     time.Duration `toml:"feedback_window"`
	MinTrainingSamples int           `toml:"min_training_samples"`
	LearningRate       float64       `toml:"learning_rate"`
}

type StorageConfig struct {
	// Empty paths keep the store in memory
	BadgerPath    string        `toml:"badger_path"`
	SQLitePath    string        `toml:"sqlite_path"`
	RedisEnabled  bool          `toml:"redis_enabled"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	ProfileTTL    time.Duration `toml:"profile_ttl"`
	DgraphEnabled bool          `toml:"dgraph_enabled"`
	DgraphAddr    string        `toml:"dgraph_addr"`
	RetentionDays int           `toml:"retention_days"`
}

type EmbeddingConfig struct {
	Dimensions int    `toml:"dimensions"`
	URL        string `toml:"url"`
	Model      string `toml:"model"`
}

type KnowledgeConfig struct {
	Dirs  []string `toml:"dirs"`
	Watch bool     `toml:"watch"`
}

type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Default returns the default configuration
func Default() *Config {
	coord := orchestrator.DefaultConfig()
	mem := memory.DefaultConfig()
	wardrobe := agent.DefaultWardrobeConfig()
	learning := agent.DefaultLearningConfig()

	return &Config{
		LogLevel: "warn",
		Agents: AgentsConfig{
			Timeout:         coord.AgentTimeout,
			MaxConcurrent:   coord.MaxConcurrentAgents,
			RateBurst:       10,
			CatalogSize:     wardrobe.CatalogSize,
			CatalogSeed:     wardrobe.CatalogSeed,
			SearchTopK:      wardrobe.TopK,
			IndexBackend:    wardrobe.IndexBackend,
			ImageFetchLimit: agent.DefaultVisualConfig().FetchLimit,
		},
		Cache: CacheConfig{
			TTL:        coord.Cache.TTL,
			MaxEntries: coord.Cache.MaxEntries,
			TrimTo:     coord.Cache.TrimTo,
		},
		Maintenance: MaintenanceConfig{
			MetricsInterval:      coord.MetricsInterval,
			HealthInterval:       coord.HealthInterval,
			CacheCleanupInterval: coord.CacheCleanupInterval,
			ShutdownTimeout:      coord.ShutdownTimeout,
		},
		Learning: LearningConfig{
			Workers:            coord.Queue.Workers,
			QueueSize:          coord.Queue.QueueSize,
			TaskTimeout:        coord.Queue.TaskTimeout,
			FeedbackWindow:     learning.FeedbackWindow,
			MinTrainingSamples: learning.MinTrainingSamples,
			LearningRate:       learning.LearningRate,
		},
		Storage: StorageConfig{
			BadgerPath:    mem.BadgerPath,
			SQLitePath:    mem.SQLitePath,
			RedisEnabled:  mem.RedisEnabled,
			RedisAddr:     mem.RedisURL,
			RedisDB:       mem.RedisDB,
			ProfileTTL:    mem.ProfileTTL,
			DgraphEnabled: mem.DgraphEnabled,
			DgraphAddr:    mem.DgraphAlphaURL,
			RetentionDays: mem.RetentionDays,
		},
		Embedding: EmbeddingConfig{
			Dimensions: mem.EmbeddingDimensions,
			URL:        mem.EmbeddingURL,
			Model:      mem.EmbeddingModel,
		},
		Knowledge: KnowledgeConfig{
			Dirs:  agent.DefaultKnowledgeConfig().Dirs,
			Watch: false,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "stilya",
		},
	}
}

// Load reads the file named by STILYA_CONFIG, if any, and then applies
// environment overrides
func Load() (*Config, error) {
	return LoadPath(envStr("STILYA_CONFIG", ""))
}

// LoadPath reads a TOML file over the defaults and applies environment
// overrides. An empty path or a missing file yields the defaults.
func LoadPath(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = envStr("STILYA_LOG_LEVEL", c.LogLevel)

	c.Agents.Timeout = envDuration("STILYA_AGENT_TIMEOUT", c.Agents.Timeout)
	c.Agents.MaxConcurrent = envInt("STILYA_MAX_CONCURRENT_AGENTS", c.Agents.MaxConcurrent)
	c.Agents.RateLimit = envFloat("STILYA_AGENT_RATE_LIMIT", c.Agents.RateLimit)
	c.Agents.CatalogSize = envInt("STILYA_CATALOG_SIZE", c.Agents.CatalogSize)
	c.Agents.IndexBackend = envStr("STILYA_INDEX_BACKEND", c.Agents.IndexBackend)

	c.Cache.TTL = envDuration("STILYA_CACHE_TTL", c.Cache.TTL)
	c.Cache.MaxEntries = envInt("STILYA_CACHE_MAX_ENTRIES", c.Cache.MaxEntries)

	c.Learning.Workers = envInt("STILYA_LEARNING_WORKERS", c.Learning.Workers)
	c.Learning.QueueSize = envInt("STILYA_LEARNING_QUEUE_SIZE", c.Learning.QueueSize)

	c.Storage.BadgerPath = envStr("STILYA_BADGER_PATH", c.Storage.BadgerPath)
	c.Storage.SQLitePath = envStr("STILYA_SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.RedisEnabled = envBool("STILYA_REDIS_ENABLED", c.Storage.RedisEnabled)
	c.Storage.RedisAddr = envStr("STILYA_REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.RedisPassword = envStr("STILYA_REDIS_PASSWORD", c.Storage.RedisPassword)
	c.Storage.RedisDB = envInt("STILYA_REDIS_DB", c.Storage.RedisDB)
	c.Storage.DgraphEnabled = envBool("STILYA_DGRAPH_ENABLED", c.Storage.DgraphEnabled)
	c.Storage.DgraphAddr = envStr("STILYA_DGRAPH_ADDR", c.Storage.DgraphAddr)

	c.Embedding.URL = envStr("STILYA_EMBEDDING_URL", c.Embedding.URL)
	c.Embedding.Dimensions = envInt("STILYA_EMBEDDING_DIMENSIONS", c.Embedding.Dimensions)

	if dirs := envStr("STILYA_KNOWLEDGE_DIRS", ""); dirs != "" {
		c.Knowledge.Dirs = strings.Split(dirs, string(os.PathListSeparator))
	}
	c.Knowledge.Watch = envBool("STILYA_KNOWLEDGE_WATCH", c.Knowledge.Watch)

	c.Telemetry.Enabled = envBool("OTEL_ENABLED", c.Telemetry.Enabled)
	c.Telemetry.OTLPEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = envStr("OTEL_SERVICE_NAME", c.Telemetry.ServiceName)
}

// Memory returns the storage configuration
func (c *Config) Memory() *memory.Config {
	mem := memory.DefaultConfig()
	mem.BadgerPath = c.Storage.BadgerPath
	mem.SQLitePath = c.Storage.SQLitePath
	mem.RedisEnabled = c.Storage.RedisEnabled
	mem.RedisURL = c.Storage.RedisAddr
	mem.RedisPassword = c.Storage.RedisPassword
	mem.RedisDB = c.Storage.RedisDB
	mem.ProfileTTL = c.Storage.ProfileTTL
	mem.DgraphEnabled = c.Storage.DgraphEnabled
	mem.DgraphAlphaURL = c.Storage.DgraphAddr
	mem.EmbeddingDimensions = c.Embedding.Dimensions
	mem.EmbeddingURL = c.Embedding.URL
	mem.EmbeddingModel = c.Embedding.Model
	mem.RetentionDays = c.Storage.RetentionDays
	return mem
}

// Coordinator returns the orchestration configuration
func (c *Config) Coordinator() *orchestrator.Config {
	return &orchestrator.Config{
		AgentTimeout:        c.Agents.Timeout,
		MaxConcurrentAgents: c.Agents.MaxConcurrent,
		Cache: &orchestrator.CacheConfig{
			TTL:        c.Cache.TTL,
			MaxEntries: c.Cache.MaxEntries,
			TrimTo:     c.Cache.TrimTo,
		},
		Queue: &orchestrator.QueueConfig{
			Workers:     c.Learning.Workers,
			QueueSize:   c.Learning.QueueSize,
			TaskTimeout: c.Learning.TaskTimeout,
		},
		MetricsInterval:      c.Maintenance.MetricsInterval,
		HealthInterval:       c.Maintenance.HealthInterval,
		CacheCleanupInterval: c.Maintenance.CacheCleanupInterval,
		ShutdownTimeout:      c.Maintenance.ShutdownTimeout,
	}
}

// Wardrobe returns the item index configuration
func (c *Config) Wardrobe() *agent.WardrobeConfig {
	w := agent.DefaultWardrobeConfig()
	w.CatalogSize = c.Agents.CatalogSize
	w.CatalogSeed = c.Agents.CatalogSeed
	w.TopK = c.Agents.SearchTopK
	w.IndexBackend = c.Agents.IndexBackend
	return w
}

// Visual returns the image agent configuration
func (c *Config) Visual() *agent.VisualConfig {
	v := agent.DefaultVisualConfig()
	v.FetchLimit = c.Agents.ImageFetchLimit
	return v
}

// KnowledgeAgent returns the knowledge agent configuration
func (c *Config) KnowledgeAgent() *agent.KnowledgeConfig {
	k := agent.DefaultKnowledgeConfig()
	k.Dirs = c.Knowledge.Dirs
	k.Watch = c.Knowledge.Watch
	return k
}

// LearningAgent returns the learning agent configuration
func (c *Config) LearningAgent() *agent.LearningConfig {
	return &agent.LearningConfig{
		FeedbackWindow:     c.Learning.FeedbackWindow,
		MinTrainingSamples: c.Learning.MinTrainingSamples,
		LearningRate:       c.Learning.LearningRate,
	}
}

// Limiter returns a per-agent limiter, or nil when rate limiting is off
func (c *Config) Limiter() *agent.Limiter {
	if c.Agents.RateLimit <= 0 {
		return nil
	}
	l := agent.NewLimiter()
	for _, t := range models.AllAgentTypes() {
		l.SetLimit(t, c.Agents.RateLimit, c.Agents.RateBurst)
	}
	return l
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
