package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stilya/stilya/internal/models"
)

func newTestFeedbackLog(t *testing.T) *SQLiteFeedbackLog {
	t.Helper()
	l, err := NewSQLiteFeedbackLog(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

// TestFeedbackLogAppendAndQuery tests windowed and per-user reads
func TestFeedbackLogAppendAndQuery(t *testing.T) {
	l := newTestFeedbackLog(t)
	ctx := context.Background()
	now := time.Now()

	entries := []*models.UserFeedback{
		{FeedbackID: "f1", UserID: "u1", Rating: 5, FeedbackType: models.FeedbackLove, Timestamp: now.Add(-48 * time.Hour)},
		{FeedbackID: "f2", UserID: "u2", Rating: 2, FeedbackType: models.FeedbackDislike, Comments: "wrong color", Timestamp: now.Add(-time.Hour)},
		{FeedbackID: "f3", UserID: "u1", Rating: 4, FeedbackType: models.FeedbackLike, Timestamp: now},
	}
	for _, fb := range entries {
		_, err := l.Append(ctx, fb)
		require.NoError(t, err)
	}

	recent, err := l.Since(ctx, now.Add(-24*time.Hour), "")
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "f2", recent[0].FeedbackID)
	assert.Equal(t, "wrong color", recent[0].Comments)

	mine, err := l.Since(ctx, time.Time{}, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	stats, err := l.Stats(ctx, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 1, stats.LowRatings)
	assert.InDelta(t, 11.0/3.0, stats.AverageRating, 1e-9)
}

// TestFeedbackLogPrune tests retention pruning
func TestFeedbackLogPrune(t *testing.T) {
	l := newTestFeedbackLog(t)
	ctx := context.Background()
	now := time.Now()

	_, err := l.Append(ctx, &models.UserFeedback{FeedbackID: "old", UserID: "u1", Rating: 3, FeedbackType: models.FeedbackNeutral, Timestamp: now.AddDate(0, 0, -100)})
	require.NoError(t, err)
	_, err = l.Append(ctx, &models.UserFeedback{FeedbackID: "new", UserID: "u1", Rating: 3, FeedbackType: models.FeedbackNeutral, Timestamp: now})
	require.NoError(t, err)

	n, err := l.Prune(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rest, err := l.Since(ctx, time.Time{}, "")
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "new", rest[0].FeedbackID)
}

// TestFeedbackLogInMemory tests the in-memory fallback
func TestFeedbackLogInMemory(t *testing.T) {
	l, err := NewSQLiteFeedbackLog("")
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append(context.Background(), &models.UserFeedback{UserID: "u1", Rating: 1, FeedbackType: models.FeedbackDislike})
	require.NoError(t, err)

	stats, err := l.Stats(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Total)
}
