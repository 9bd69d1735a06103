package memory

import (
	"context"
	"errors"
	"time"

	"github.com/stilya/stilya/internal/models"
)

// ErrNotFound is returned when a key or record does not exist
var ErrNotFound = errors.New("not found")

// Store is the persistent key-value/document store used for knowledge
// entries, personalization models and A/B tests
type Store interface {
	// Put serializes value as JSON under key
	Put(ctx context.Context, key string, value interface{}) error

	// Get decodes the value under key into out, ErrNotFound when missing
	Get(ctx context.Context, key string, out interface{}) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Query visits every record under prefix; match returning false skips it.
	// Returns the raw JSON values that matched in key order.
	Query(ctx context.Context, prefix string, match func(key string, value []byte) bool) ([][]byte, error)

	// Count returns the number of keys under prefix
	Count(ctx context.Context, prefix string) (int, error)

	Close() error
}

// FeedbackLog is the durable history of user feedback
type FeedbackLog interface {
	// Append stores feedback and returns its sequence number
	Append(ctx context.Context, feedback *models.UserFeedback) (int64, error)

	// Since returns feedback newer than since, optionally for one user
	Since(ctx context.Context, since time.Time, userID string) ([]*models.UserFeedback, error)

	// Stats aggregates ratings newer than since
	Stats(ctx context.Context, since time.Time) (*FeedbackStats, error)

	// Prune deletes feedback older than before
	Prune(ctx context.Context, before time.Time) (int64, error)

	Close() error
}

// FeedbackStats summarizes stored feedback
type FeedbackStats struct {
	Total         int64   `json:"total"`
	AverageRating float64 `json:"average_rating"`
	LowRatings    int64   `json:"low_ratings"`
}

// ProfileStore holds user profiles and style history
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, profile *models.UserProfile) error
	DeleteProfile(ctx context.Context, userID string) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// KnowledgeGraph links knowledge entries to the concepts they mention
type KnowledgeGraph interface {
	// UpsertEntry records the entry and its concept edges
	UpsertEntry(ctx context.Context, entry *models.KnowledgeEntry) error

	// RelatedConcepts returns concepts that co-occur with concept, most frequent first
	RelatedConcepts(ctx context.Context, concept string, limit int) ([]string, error)

	Close() error
}

// EmbeddingGenerator creates vector embeddings for text
type EmbeddingGenerator interface {
	// Generate creates an embedding vector for text
	Generate(ctx context.Context, text string) ([]float32, error)

	// GenerateBatch creates embeddings for multiple texts
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector dimensionality
	Dimensions() int
}

// Config holds storage configuration
type Config struct {
	// BadgerDB configuration, empty path runs in memory
	BadgerPath string

	// SQLite feedback log, empty path runs in memory
	SQLitePath string

	// Redis configuration
	RedisEnabled  bool
	RedisURL      string
	RedisPassword string
	RedisDB       int
	ProfileTTL    time.Duration

	// Dgraph configuration
	DgraphEnabled  bool
	DgraphAlphaURL string

	// Embedding configuration
	EmbeddingDimensions int
	EmbeddingURL        string
	EmbeddingModel      string

	// Feedback rows older than this are pruned by Compact
	RetentionDays int
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		BadgerPath:          "",
		SQLitePath:          "",
		RedisEnabled:        false,
		RedisURL:            "localhost:6379",
		RedisDB:             0,
		ProfileTTL:          30 * 24 * time.Hour,
		DgraphEnabled:       false,
		DgraphAlphaURL:      "localhost:9080",
		EmbeddingDimensions: 384,
		EmbeddingModel:      "sentence-transformers/all-MiniLM-L6-v2",
		RetentionDays:       90,
	}
}
