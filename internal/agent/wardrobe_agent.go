package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/memory"
	"github.com/stilya/stilya/internal/models"
)

// filterKeys are the attributes with precomputed value -> item index sets
var filterKeys = []string{"category", "color", "occasion", "style", "material", "brand"}

// WardrobeConfig configures the item index agent
type WardrobeConfig struct {
	CatalogSize int
	CatalogSeed int64
	TopK        int

	// IndexBackend selects the vector index, flat when empty
	IndexBackend string

	// Catalog replaces the generated sample catalog when set
	Catalog []models.FashionItem
}

// DefaultWardrobeConfig returns default wardrobe configuration
func DefaultWardrobeConfig() *WardrobeConfig {
	return &WardrobeConfig{
		CatalogSize:  1000,
		CatalogSeed:  42,
		TopK:         10,
		IndexBackend: memory.IndexFlat,
	}
}

// WardrobeAgent answers similarity and filter queries over the catalog
type WardrobeAgent struct {
	*Base
	embedder memory.EmbeddingGenerator
	config   *WardrobeConfig

	items   []models.FashionItem
	index   memory.VectorIndex
	filters map[string]map[string][]int
	ready   bool
	mu      sync.RWMutex
}

// NewWardrobeAgent creates an uninitialized wardrobe agent
func NewWardrobeAgent(embedder memory.EmbeddingGenerator, config *WardrobeConfig) *WardrobeAgent {
	if config == nil {
		config = DefaultWardrobeConfig()
	}
	return &WardrobeAgent{
		Base:     NewBase(models.AgentTypeWardrobe, "Wardrobe Agent"),
		embedder: embedder,
		config:   config,
	}
}

// Initialize loads the catalog, embeds item descriptions and builds the
// index and filter sets
func (a *WardrobeAgent) Initialize(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ready {
		return true
	}

	if err := a.load(ctx); err != nil {
		log.Error().Err(err).Str("agent", a.Name()).Msg("Failed to initialize wardrobe agent")
		a.items, a.index, a.filters = nil, nil, nil
		a.SetStatus(models.AgentStatusError)
		return false
	}

	a.ready = true
	a.SetStatus(models.AgentStatusIdle)
	log.Info().Str("agent", a.Name()).Int("items", len(a.items)).Msg("Wardrobe agent initialized")
	return true
}

func (a *WardrobeAgent) load(ctx context.Context) error {
	if a.embedder == nil {
		return fmt.Errorf("no embedding generator configured")
	}

	items := a.config.Catalog
	if len(items) == 0 {
		items = GenerateSampleCatalog(a.config.CatalogSize, a.config.CatalogSeed)
	}
	if len(items) == 0 {
		return fmt.Errorf("catalog is empty")
	}

	descriptions := make([]string, len(items))
	for i := range items {
		descriptions[i] = items[i].Description()
	}

	vectors, err := a.embedder.GenerateBatch(ctx, descriptions)
	if err != nil {
		return fmt.Errorf("failed to embed catalog: %w", err)
	}

	index, err := memory.NewVectorIndex(a.config.IndexBackend, a.embedder.Dimensions())
	if err != nil {
		return err
	}
	if err := index.Add(vectors...); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	a.items = items
	a.index = index
	a.filters = buildFilterSets(items)
	return nil
}

func buildFilterSets(items []models.FashionItem) map[string]map[string][]int {
	sets := make(map[string]map[string][]int, len(filterKeys))
	for _, key := range filterKeys {
		sets[key] = make(map[string][]int)
	}

	for i := range items {
		for _, key := range filterKeys {
			for _, v := range itemValues(&items[i], key) {
				v = strings.ToLower(v)
				sets[key][v] = append(sets[key][v], i)
			}
		}
	}
	return sets
}

func itemValues(item *models.FashionItem, key string) []string {
	switch key {
	case "category":
		return []string{item.Category}
	case "subcategory":
		return []string{item.Subcategory}
	case "color":
		return item.Color
	case "occasion":
		return item.Occasion
	case "style":
		return item.Style
	case "material":
		return []string{item.Material}
	case "brand":
		return []string{item.Brand}
	case "price_range":
		return []string{item.PriceRange}
	case "season":
		return []string{item.Season}
	case "pattern":
		return []string{item.Pattern}
	}
	return nil
}

// ProcessRequest routes on the task description
func (a *WardrobeAgent) ProcessRequest(ctx context.Context, req *Request) (*Response, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.ready {
		return nil, ErrNotReady
	}

	handler, ok := matchRoute(req.TaskDescription, []route[func(context.Context, *Request) (*Response, error)]{
		{"search", a.handleSearch},
		{"find", a.handleSearch},
		{"filter", a.handleFilter},
		{"recommend", a.handleRecommend},
	})
	if !ok {
		return a.Fail(fmt.Sprintf("Unknown task: %s", req.TaskDescription)), nil
	}
	return handler(ctx, req)
}

func (a *WardrobeAgent) handleSearch(ctx context.Context, req *Request) (*Response, error) {
	query := stringParam(req.Context, "search_query", stringParam(req.Parameters, "search_query", ""))
	if strings.TrimSpace(query) == "" {
		return a.Fail("Search query is required"), nil
	}

	topK := intParam(req.Parameters, "top_k", a.config.TopK)
	if topK <= 0 {
		topK = a.config.TopK
	}
	if topK > len(a.items) {
		topK = len(a.items)
	}

	vec, err := a.embedder.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	start := time.Now()
	hits, err := a.index.Search(vec, min(topK*2, len(a.items)))
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}
	searchMs := float64(time.Since(start).Microseconds()) / 1000

	distances := make(map[int]float32, len(hits))
	indices := make([]int, len(hits))
	for i, h := range hits {
		indices[i] = h.Index
		distances[h.Index] = h.Distance
	}

	filtered := a.applyFilters(indices, mapParam(req.Parameters, "filters"))

	results := make([]map[string]interface{}, 0, topK)
	for i, idx := range filtered {
		if i >= topK {
			break
		}
		results = append(results, map[string]interface{}{
			"item":             a.items[idx].ToMap(),
			"similarity_score": 1.0 / (1.0 + float64(distances[idx])),
			"rank":             i + 1,
		})
	}

	confidence := 0.0
	if len(results) > 0 {
		confidence = float64(len(results)) / float64(topK)
	}

	return a.Succeed(map[string]interface{}{
		"items":          results,
		"total_found":    len(filtered),
		"search_time_ms": searchMs,
		"query":          query,
	}, confidence, fmt.Sprintf("Found %d items in %.2fms", len(results), searchMs)), nil
}

func (a *WardrobeAgent) handleFilter(ctx context.Context, req *Request) (*Response, error) {
	filters := mapParam(req.Parameters, "filters")
	if len(filters) == 0 {
		return a.Fail("Filters are required"), nil
	}

	all := make([]int, len(a.items))
	for i := range all {
		all[i] = i
	}

	matched := a.applyFilters(all, filters)
	items := make([]map[string]interface{}, len(matched))
	for i, idx := range matched {
		items[i] = a.items[idx].ToMap()
	}

	return a.Succeed(map[string]interface{}{
		"items":           items,
		"total_count":     len(items),
		"filters_applied": filters,
	}, 1.0, fmt.Sprintf("Filtered %d items", len(items))), nil
}

func (a *WardrobeAgent) handleRecommend(ctx context.Context, req *Request) (*Response, error) {
	prefs := mapParam(req.Context, "preferences")
	occasion := stringParam(req.Context, "occasion", "casual")

	search := NewRequest(req.UserID, models.AgentTypeWardrobe, "search items",
		map[string]interface{}{"search_query": buildPreferenceQuery(prefs, occasion)},
		map[string]interface{}{"top_k": 20},
	)

	// only filter on occasions the catalog knows, "business meeting" -> business
	var known []string
	for _, word := range strings.Fields(strings.ToLower(occasion)) {
		if _, ok := a.filters["occasion"][word]; ok {
			known = append(known, word)
		}
	}
	if len(known) > 0 {
		search.Parameters["filters"] = map[string]interface{}{"occasion": known}
	}

	return a.handleSearch(ctx, search)
}

func buildPreferenceQuery(prefs map[string]interface{}, occasion string) string {
	parts := []string{occasion}
	if prefs != nil {
		parts = append(parts, stringSlice(prefs["style"])...)
		parts = append(parts, stringSlice(prefs["color_preferences"])...)
		parts = append(parts, stringSlice(prefs["material"])...)
	}
	return strings.Join(parts, " ")
}

// applyFilters keeps indices matching every filter, preserving input order
func (a *WardrobeAgent) applyFilters(indices []int, filters map[string]interface{}) []int {
	if len(filters) == 0 {
		return indices
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := indices
	for _, key := range keys {
		var values []string
		for _, v := range stringSlice(filters[key]) {
			values = append(values, strings.ToLower(v))
		}
		if len(values) == 0 {
			continue
		}

		var keep func(idx int) bool
		if sets, ok := a.filters[key]; ok {
			allowed := make(map[int]struct{})
			for _, v := range values {
				for _, idx := range sets[v] {
					allowed[idx] = struct{}{}
				}
			}
			keep = func(idx int) bool {
				_, ok := allowed[idx]
				return ok
			}
		} else {
			keep = func(idx int) bool {
				return matchesFilter(&a.items[idx], key, values)
			}
		}

		next := make([]int, 0, len(out))
		for _, idx := range out {
			if keep(idx) {
				next = append(next, idx)
			}
		}
		out = next
	}
	return out
}

// matchesFilter is the linear-scan predicate for keys without a filter set
func matchesFilter(item *models.FashionItem, key string, values []string) bool {
	for _, have := range itemValues(item, key) {
		have = strings.ToLower(have)
		for _, want := range values {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Items returns the loaded catalog
func (a *WardrobeAgent) Items() []models.FashionItem {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.items
}

// Cleanup drops the catalog and index
func (a *WardrobeAgent) Cleanup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.index != nil {
		a.index.Reset()
	}
	a.items, a.index, a.filters = nil, nil, nil
	a.ready = false
	log.Info().Str("agent", a.Name()).Msg("Wardrobe agent cleaned up")
}

// HealthCheck requires a loaded catalog and index
func (a *WardrobeAgent) HealthCheck(ctx context.Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready && a.index != nil && a.index.Len() > 0 && len(a.items) > 0
}
