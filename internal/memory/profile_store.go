package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/stilya/stilya/internal/models"
)

const profilePrefix = "stilya:profile:"

// RedisProfileStore implements ProfileStore using Redis hashes
type RedisProfileStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProfileStore connects to Redis and verifies the connection
func NewRedisProfileStore(config *Config) (*RedisProfileStore, error) {
	if config == nil {
		config = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisURL,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisProfileStore{client: client, ttl: config.ProfileTTL}, nil
}

// GetProfile loads a profile, ErrNotFound when absent
func (s *RedisProfileStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	raw, err := s.client.HGet(ctx, profilePrefix+userID, "profile").Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

// SaveProfile writes the profile and refreshes its TTL
func (s *RedisProfileStore) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	profile.UpdatedAt = time.Now()
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	key := profilePrefix + profile.UserID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"profile":    data,
		"updated_at": profile.UpdatedAt.Unix(),
		"cultural":   profile.CulturalBackground,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}
	return nil
}

// DeleteProfile removes a profile
func (s *RedisProfileStore) DeleteProfile(ctx context.Context, userID string) error {
	return s.client.Del(ctx, profilePrefix+userID).Err()
}

// Count returns the number of stored profiles
func (s *RedisProfileStore) Count(ctx context.Context) (int64, error) {
	iter := s.client.Scan(ctx, 0, profilePrefix+"*", 0).Iterator()
	count := int64(0)
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// Close closes the Redis connection
func (s *RedisProfileStore) Close() error {
	return s.client.Close()
}

// KVProfileStore keeps profiles in a Store when Redis is not configured
type KVProfileStore struct {
	store Store
}

// NewKVProfileStore wraps store
func NewKVProfileStore(store Store) *KVProfileStore {
	return &KVProfileStore{store: store}
}

// GetProfile loads a profile, ErrNotFound when absent
func (s *KVProfileStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := s.store.Get(ctx, profilePrefix+userID, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveProfile writes the profile
func (s *KVProfileStore) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	profile.UpdatedAt = time.Now()
	return s.store.Put(ctx, profilePrefix+profile.UserID, profile)
}

// DeleteProfile removes a profile
func (s *KVProfileStore) DeleteProfile(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, profilePrefix+userID)
}

// Count returns the number of stored profiles
func (s *KVProfileStore) Count(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx, profilePrefix)
	return int64(n), err
}

// Close is a no-op; the underlying store is owned by the caller
func (s *KVProfileStore) Close() error { return nil }
