package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stilya/stilya/internal/models"
)

func exerciseProfileStore(t *testing.T, store ProfileStore, userID string) {
	ctx := context.Background()

	_, err := store.GetProfile(ctx, userID)
	require.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)

	profile := &models.UserProfile{
		UserID:             userID,
		Preferences:        map[string]interface{}{"style": "minimalist"},
		StyleHistory:       []models.StyleHistoryEntry{{Style: "classic"}},
		CulturalBackground: "scandinavian",
		SatisfactionScores: []int{4, 5},
	}
	require.NoError(t, store.SaveProfile(ctx, profile))

	got, err := store.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "scandinavian", got.CulturalBackground)
	assert.Equal(t, "minimalist", got.Preferences["style"])
	assert.Equal(t, []int{4, 5}, got.SatisfactionScores)
	assert.False(t, got.UpdatedAt.IsZero())

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	require.NoError(t, store.DeleteProfile(ctx, userID))
	_, err = store.GetProfile(ctx, userID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestKVProfileStore tests the Badger-backed profile store
func TestKVProfileStore(t *testing.T) {
	exerciseProfileStore(t, NewKVProfileStore(newTestStore(t)), "u-kv")
}

// TestRedisProfileStore tests the Redis store against a local server
func TestRedisProfileStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	store, err := NewRedisProfileStore(DefaultConfig())
	if err != nil {
		t.Skipf("Skipping test - Redis not available: %v", err)
	}
	defer store.Close()

	exerciseProfileStore(t, store, "u-redis-test")
}
