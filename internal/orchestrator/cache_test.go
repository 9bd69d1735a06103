package orchestrator

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stilya/stilya/internal/models"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func response(id string) *models.OrchestratorResponse {
	return &models.OrchestratorResponse{Success: true, Explanation: id}
}

// TestCacheTTL tests expiry on read and in Cleanup
func TestCacheTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newCacheWithClock(&CacheConfig{TTL: time.Hour, MaxEntries: 10, TrimTo: 8}, clock.now)

	c.Set("a", "u1", response("a"))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Explanation)

	// returned copies do not alias the stored entry
	got.Explanation = "mutated"
	got, _ = c.Get("a")
	assert.Equal(t, "a", got.Explanation)

	clock.advance(59 * time.Minute)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clock.advance(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	c.Set("b", "u1", response("b"))
	clock.advance(2 * time.Hour)
	c.Set("c", "u1", response("c"))
	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 1, c.Len())

	assert.InDelta(t, 3.0/4.0, c.HitRate(), 1e-9)
}

// TestCacheDeepCopy tests that nested recommendation content is not shared
func TestCacheDeepCopy(t *testing.T) {
	c := NewCache(nil)
	orig := &models.OrchestratorResponse{
		Success: true,
		Recommendation: &models.Recommendation{
			Recommendations: []models.Candidate{{
				Type:        models.CandidateWardrobeItem,
				SourceAgent: models.AgentTypeWardrobe,
				Content: map[string]interface{}{
					"item": map[string]interface{}{"name": "Navy Blazer", "color": []string{"navy"}},
				},
				FinalScore: 0.9,
			}},
			OverallConfidence: 0.8,
			Metadata: models.RecommendationMetadata{
				AgentsInvolved:      []models.AgentType{models.AgentTypeWardrobe},
				ConfidenceBreakdown: map[models.AgentType]float64{models.AgentTypeWardrobe: 0.8},
			},
		},
		AgentsInvolved: []models.AgentType{models.AgentTypeWardrobe},
	}
	want := orig.Clone()

	c.Set("k", "u1", orig)
	orig.Recommendation.Recommendations[0].Content["item"].(map[string]interface{})["name"] = "changed"

	got, ok := c.Get("k")
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cached response changed through the caller's copy (-want +got):\n%s", diff)
	}

	got.Recommendation.Recommendations = got.Recommendation.Recommendations[:0]
	got.Recommendation.Metadata.ConfidenceBreakdown[models.AgentTypeWardrobe] = 0
	again, _ := c.Get("k")
	if diff := cmp.Diff(want, again); diff != "" {
		t.Errorf("cached response changed through a returned copy (-want +got):\n%s", diff)
	}
}

// TestCacheTrim tests that overflow keeps the newest entries
func TestCacheTrim(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newCacheWithClock(&CacheConfig{TTL: time.Hour, MaxEntries: 10, TrimTo: 8}, clock.now)

	for i := 0; i < 11; i++ {
		c.Set(fmt.Sprintf("k%02d", i), "u1", response(fmt.Sprint(i)))
		clock.advance(time.Second)
	}
	assert.Equal(t, 8, c.Len())

	for i := 0; i < 3; i++ {
		_, ok := c.Get(fmt.Sprintf("k%02d", i))
		assert.False(t, ok, "k%02d should be trimmed", i)
	}
	_, ok := c.Get("k10")
	assert.True(t, ok)
}

// TestCacheInvalidateUser tests per-user invalidation
func TestCacheInvalidateUser(t *testing.T) {
	c := NewCache(nil)
	c.Set("a", "u1", response("a"))
	c.Set("b", "u1", response("b"))
	c.Set("c", "u2", response("c"))

	assert.Equal(t, 2, c.InvalidateUser("u1"))
	assert.Equal(t, 0, c.InvalidateUser("u1"))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0.0, c.HitRate())
}

// TestCacheKey tests that keys ignore map order and separate users
func TestCacheKey(t *testing.T) {
	a := &models.OrchestratorRequest{
		UserID:      "u1",
		Context:     map[string]interface{}{"occasion": "wedding", "mood": "happy"},
		Preferences: map[string]interface{}{"style": []string{"classic"}, "colors": "navy"},
	}
	b := &models.OrchestratorRequest{
		UserID:      "u1",
		Context:     map[string]interface{}{"mood": "happy", "occasion": "wedding"},
		Preferences: map[string]interface{}{"colors": "navy", "style": []string{"classic"}},
	}
	assert.Equal(t, CacheKey(a), CacheKey(b))
	assert.Len(t, CacheKey(a), 32)

	b.UserID = "u2"
	assert.NotEqual(t, CacheKey(a), CacheKey(b))

	b.UserID = "u1"
	b.Context["occasion"] = "office"
	assert.NotEqual(t, CacheKey(a), CacheKey(b))

	b.Context["occasion"] = "wedding"
	a.Context["cultural_context"] = "eastern"
	b.Context["cultural_context"] = "scandinavian"
	assert.NotEqual(t, CacheKey(a), CacheKey(b))

	b.Context["cultural_context"] = "eastern"
	assert.Equal(t, CacheKey(a), CacheKey(b))
}
