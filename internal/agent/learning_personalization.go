package agent

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/memory"
	"github.com/stilya/stilya/internal/models"
)

// Profile history bounds
const (
	maxStyleHistory       = 50
	maxSatisfactionScores = 100
)

// PersonalizationEngine maintains per-user preference models in the
// profile store
type PersonalizationEngine struct {
	profiles memory.ProfileStore
	scorer   LearningScorer

	// serializes read-modify-write of profiles
	mu sync.Mutex
}

// NewPersonalizationEngine creates an engine over profiles
func NewPersonalizationEngine(profiles memory.ProfileStore, scorer LearningScorer) *PersonalizationEngine {
	if scorer == nil {
		scorer = HeuristicLearningScorer{}
	}
	return &PersonalizationEngine{profiles: profiles, scorer: scorer}
}

// Profile loads a profile; a missing profile yields an empty one and false
func (e *PersonalizationEngine) Profile(ctx context.Context, userID string) (*models.UserProfile, bool, error) {
	p, err := e.profiles.GetProfile(ctx, userID)
	if errors.Is(err, memory.ErrNotFound) {
		return newProfile(userID), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load profile: %w", err)
	}
	if p.Preferences == nil {
		p.Preferences = map[string]interface{}{}
	}
	return p, true, nil
}

func newProfile(userID string) *models.UserProfile {
	return &models.UserProfile{
		UserID:             userID,
		Preferences:        map[string]interface{}{},
		StyleHistory:       []models.StyleHistoryEntry{},
		SatisfactionScores: []int{},
	}
}

// modify loads, mutates and saves a profile under the engine lock
func (e *PersonalizationEngine) modify(ctx context.Context, userID string, fn func(p *models.UserProfile)) (*models.UserProfile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, _, err := e.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	fn(p)
	if err := e.profiles.SaveProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return p, nil
}

// PersonalizationUpdate is the outcome of a model update
type PersonalizationUpdate struct {
	Preferences    map[string]interface{} `json:"updated_preferences"`
	Confidence     float64                `json:"confidence"`
	PreviousConf   float64                `json:"previous_confidence"`
	HistoryEntries int                    `json:"history_entries"`
}

// UpdateUserModel recomputes preferred and avoided styles from the rated
// style history. A full update also recomputes preferred occasions.
func (e *PersonalizationEngine) UpdateUserModel(ctx context.Context, userID, updateType string) (*PersonalizationUpdate, error) {
	var prev float64
	p, err := e.modify(ctx, userID, func(p *models.UserProfile) {
		prev = e.scorer.ProfileConfidence(p, true)
		derivePreferences(p, updateType == "full")
	})
	if err != nil {
		return nil, err
	}
	return &PersonalizationUpdate{
		Preferences:    p.Preferences,
		Confidence:     e.scorer.ProfileConfidence(p, true),
		PreviousConf:   prev,
		HistoryEntries: len(p.StyleHistory),
	}, nil
}

// derivePreferences ranks styles by mean rating. Styles averaging four or
// more are preferred and those averaging two or less are avoided.
func derivePreferences(p *models.UserProfile, full bool) {
	type agg struct{ sum, n int }
	styles := map[string]*agg{}
	occasions := map[string]int{}
	for _, h := range p.StyleHistory {
		if h.Occasion != "" {
			occasions[h.Occasion]++
		}
		if h.Rating == 0 || h.Style == "" {
			continue
		}
		a := styles[h.Style]
		if a == nil {
			a = &agg{}
			styles[h.Style] = a
		}
		a.sum += h.Rating
		a.n++
	}

	var preferred, avoided []string
	for _, s := range sortedKeys(styles) {
		mean := float64(styles[s].sum) / float64(styles[s].n)
		switch {
		case mean >= 4:
			preferred = append(preferred, s)
		case mean <= 2:
			avoided = append(avoided, s)
		}
	}
	sort.SliceStable(preferred, func(i, j int) bool { return styles[preferred[i]].n > styles[preferred[j]].n })

	if preferred != nil {
		p.Preferences["preferred_styles"] = preferred
	}
	if avoided != nil {
		p.Preferences["avoided_styles"] = avoided
	} else {
		delete(p.Preferences, "avoided_styles")
	}
	if full && len(occasions) > 0 {
		p.Preferences["frequent_occasions"] = topCounted(occasions, 3)
	}
}

func topCounted(counts map[string]int, n int) []string {
	keys := sortedKeys(counts)
	sort.SliceStable(keys, func(i, j int) bool { return counts[keys[i]] > counts[keys[j]] })
	return head(keys, n)
}

// RecordFeedback rates the history entries of the recommendation and keeps
// the satisfaction score. Ratings of two or less re-derive preferences at
// once so the disliked styles are avoided on the next request.
func (e *PersonalizationEngine) RecordFeedback(ctx context.Context, fb *models.UserFeedback) (adjusted bool, err error) {
	_, err = e.modify(ctx, fb.UserID, func(p *models.UserProfile) {
		for i := range p.StyleHistory {
			if fb.RecommendationID != "" && p.StyleHistory[i].RecommendationID == fb.RecommendationID {
				p.StyleHistory[i].Rating = fb.Rating
			}
		}
		p.SatisfactionScores = append(p.SatisfactionScores, fb.Rating)
		if n := len(p.SatisfactionScores); n > maxSatisfactionScores {
			p.SatisfactionScores = p.SatisfactionScores[n-maxSatisfactionScores:]
		}
		if fb.Rating <= 2 {
			derivePreferences(p, false)
			adjusted = true
		}
	})
	if adjusted && err == nil {
		log.Info().Str("user_id", fb.UserID).Int("rating", fb.Rating).Msg("User model adjusted for negative feedback")
	}
	return adjusted, err
}

// RecordRecommendation appends the recommended styles to the user's history
func (e *PersonalizationEngine) RecordRecommendation(ctx context.Context, userID, recommendationID, occasion string, styles []string) (int, error) {
	now := time.Now().UTC()
	styles = uniq(styles)
	_, err := e.modify(ctx, userID, func(p *models.UserProfile) {
		for _, s := range styles {
			p.StyleHistory = append(p.StyleHistory, models.StyleHistoryEntry{
				Style:            s,
				Occasion:         occasion,
				RecommendationID: recommendationID,
				Timestamp:        now,
			})
		}
		if n := len(p.StyleHistory); n > maxStyleHistory {
			p.StyleHistory = p.StyleHistory[n-maxStyleHistory:]
		}
	})
	if err != nil {
		return 0, err
	}
	return len(styles), nil
}

const abTestPrefix = "abtest/"

// ABTest is an experiment comparing recommendation variants
type ABTest struct {
	TestID       string            `json:"test_id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Variants     []string          `json:"variants"`
	StartDate    time.Time         `json:"start_date"`
	Status       string            `json:"status"`
	Participants int               `json:"participants"`
	Exposures    map[string]int    `json:"exposures"`
	Conversions  map[string]int    `json:"conversions"`
	Assigned     map[string]string `json:"assigned"`
}

// ABTestManager persists experiments in the document store
type ABTestManager struct {
	store memory.Store
	mu    sync.Mutex
}

// NewABTestManager creates a manager over store
func NewABTestManager(store memory.Store) *ABTestManager {
	return &ABTestManager{store: store}
}

// Create starts a test; two variants A and B are used when none are given
func (m *ABTestManager) Create(ctx context.Context, name, description string, variants []string) (*ABTest, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("test name is required")
	}
	if len(variants) == 0 {
		variants = []string{"A", "B"}
	}
	if len(variants) < 2 {
		return nil, errors.New("at least two variants are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.store.Count(ctx, abTestPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to count tests: %w", err)
	}
	t := &ABTest{
		TestID:      fmt.Sprintf("test_%03d", n+1),
		Name:        name,
		Description: description,
		Variants:    uniq(variants),
		StartDate:   time.Now().UTC(),
		Status:      "active",
		Exposures:   map[string]int{},
		Conversions: map[string]int{},
		Assigned:    map[string]string{},
	}
	if err := m.store.Put(ctx, abTestPrefix+t.TestID, t); err != nil {
		return nil, fmt.Errorf("failed to store test: %w", err)
	}
	log.Info().Str("test_id", t.TestID).Str("name", name).Msg("A/B test created")
	return t, nil
}

// Get loads a test by id
func (m *ABTestManager) Get(ctx context.Context, testID string) (*ABTest, error) {
	var t ABTest
	if err := m.store.Get(ctx, abTestPrefix+testID, &t); err != nil {
		return nil, fmt.Errorf("test %s: %w", testID, err)
	}
	return &t, nil
}

// List returns every test in id order
func (m *ABTestManager) List(ctx context.Context) ([]*ABTest, error) {
	raw, err := m.store.Query(ctx, abTestPrefix, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*ABTest, 0, len(raw))
	for _, r := range raw {
		var t ABTest
		if err := json.Unmarshal(r, &t); err != nil {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

// variantFor hashes user and test name so assignment is stable
func variantFor(userID, testName string, variants []string) string {
	sum := md5.Sum([]byte(userID + "_" + testName))
	return variants[binary.BigEndian.Uint64(sum[8:])%uint64(len(variants))]
}

func (m *ABTestManager) update(ctx context.Context, testID string, fn func(t *ABTest) error) (*ABTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.Get(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, abTestPrefix+testID, t); err != nil {
		return nil, fmt.Errorf("failed to store test: %w", err)
	}
	return t, nil
}

// Assign returns the user's variant, counting a participant the first time
func (m *ABTestManager) Assign(ctx context.Context, testID, userID string) (string, error) {
	var variant string
	_, err := m.update(ctx, testID, func(t *ABTest) error {
		if t.Assigned == nil {
			t.Assigned = map[string]string{}
		}
		if v, ok := t.Assigned[userID]; ok {
			variant = v
			return nil
		}
		variant = variantFor(userID, t.Name, t.Variants)
		t.Assigned[userID] = variant
		t.Participants++
		t.Exposures[variant]++
		return nil
	})
	return variant, err
}

// Convert records a conversion for the user's assigned variant
func (m *ABTestManager) Convert(ctx context.Context, testID, userID string) (string, error) {
	var variant string
	_, err := m.update(ctx, testID, func(t *ABTest) error {
		v, ok := t.Assigned[userID]
		if !ok {
			return fmt.Errorf("user %s is not enrolled in %s", userID, testID)
		}
		variant = v
		t.Conversions[v]++
		return nil
	})
	return variant, err
}

// Stop marks a test completed
func (m *ABTestManager) Stop(ctx context.Context, testID string) (*ABTest, error) {
	return m.update(ctx, testID, func(t *ABTest) error {
		t.Status = "completed"
		return nil
	})
}

// VariantResult is the conversion summary of one variant
type VariantResult struct {
	Variant        string  `json:"variant"`
	Exposures      int     `json:"exposures"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}

// ABAnalysis compares the best variant against the control
type ABAnalysis struct {
	TestID      string          `json:"test_id"`
	Variants    []VariantResult `json:"variants"`
	Winner      string          `json:"winner"`
	Lift        float64         `json:"lift"`
	ZScore      float64         `json:"z_score"`
	Significant bool            `json:"significant"`
}

// Analyze runs a two-proportion z-test of the best variant against the
// first (control) variant
func (m *ABTestManager) Analyze(ctx context.Context, testID string) (*ABAnalysis, error) {
	t, err := m.Get(ctx, testID)
	if err != nil {
		return nil, err
	}

	out := &ABAnalysis{TestID: testID}
	for _, v := range t.Variants {
		r := VariantResult{Variant: v, Exposures: t.Exposures[v], Conversions: t.Conversions[v]}
		if r.Exposures > 0 {
			r.ConversionRate = float64(r.Conversions) / float64(r.Exposures)
		}
		out.Variants = append(out.Variants, r)
	}

	control := out.Variants[0]
	best := control
	for _, r := range out.Variants[1:] {
		if r.ConversionRate > best.ConversionRate {
			best = r
		}
	}
	out.Winner = best.Variant
	if control.ConversionRate > 0 {
		out.Lift = (best.ConversionRate - control.ConversionRate) / control.ConversionRate
	}

	if best.Variant != control.Variant && best.Exposures > 0 && control.Exposures > 0 {
		pooled := float64(best.Conversions+control.Conversions) / float64(best.Exposures+control.Exposures)
		se := math.Sqrt(pooled * (1 - pooled) * (1/float64(best.Exposures) + 1/float64(control.Exposures)))
		if se > 0 {
			out.ZScore = (best.ConversionRate - control.ConversionRate) / se
		}
	}
	out.Significant = math.Abs(out.ZScore) > 1.96
	return out, nil
}
