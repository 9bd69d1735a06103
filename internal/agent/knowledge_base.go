package agent

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/memory"
	"github.com/stilya/stilya/internal/models"
)

const knowledgePrefix = "knowledge/"

// Integration modes
const (
	IntegrationMerge = "merge"
	IntegrationSkip  = "skip"
)

// KnowledgeBase stores knowledge entries in the document store and mirrors
// their concepts into the knowledge graph
type KnowledgeBase struct {
	store memory.Store
	graph memory.KnowledgeGraph

	filesProcessed int
	lastUpdated    time.Time
	mu             sync.Mutex
}

// NewKnowledgeBase creates a knowledge base over store. A nil graph falls
// back to the in-process graph.
func NewKnowledgeBase(store memory.Store, graph memory.KnowledgeGraph) *KnowledgeBase {
	if graph == nil {
		graph = memory.NewMemoryKnowledgeGraph()
	}
	return &KnowledgeBase{store: store, graph: graph}
}

// IntegrationResult reports what an integration changed
type IntegrationResult struct {
	EntryID         string  `json:"entry_id"`
	EntriesAdded    int     `json:"entries_added"`
	EntriesUpdated  int     `json:"entries_updated"`
	DuplicatesFound int     `json:"duplicates_found"`
	QualityScore    float64 `json:"quality_score"`
}

// knowledgeEntryID hashes the canonical JSON of data. Entries naming a
// source file are identified by that file so that re-ingesting a changed
// file updates its entry.
func knowledgeEntryID(data map[string]interface{}) (string, error) {
	key := interface{}(data)
	if src, ok := data["source_file"].(string); ok && src != "" {
		key = map[string]interface{}{"source_file": src}
	}
	raw, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("failed to encode knowledge data: %w", err)
	}
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])[:12], nil
}

// Integrate adds data as an entry or, when an entry with the same id exists,
// merges into it (merge mode) or leaves it untouched (skip mode)
func (kb *KnowledgeBase) Integrate(ctx context.Context, data, source map[string]interface{}, mode string) (*IntegrationResult, error) {
	if mode == "" {
		mode = IntegrationMerge
	}
	if mode != IntegrationMerge && mode != IntegrationSkip {
		return nil, fmt.Errorf("unknown integration mode %q", mode)
	}

	id, err := knowledgeEntryID(data)
	if err != nil {
		return nil, err
	}
	if source == nil {
		source = map[string]interface{}{}
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	var existing models.KnowledgeEntry
	err = kb.store.Get(ctx, knowledgePrefix+id, &existing)
	found := err == nil
	if err != nil && !errors.Is(err, memory.ErrNotFound) {
		return nil, fmt.Errorf("failed to load knowledge entry: %w", err)
	}

	if found && mode == IntegrationSkip {
		return &IntegrationResult{EntryID: id, DuplicatesFound: 1}, nil
	}

	now := time.Now().UTC()
	entry := &models.KnowledgeEntry{
		EntryID:    id,
		Category:   stringParam(data, "category", "general"),
		Content:    data,
		Concepts:   conceptMap(data["concepts"]),
		SourceInfo: source,
		Metadata:   mapParam(data, "metadata"),
		Timestamp:  now,
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]interface{}{}
	}

	result := &IntegrationResult{EntryID: id}
	if found {
		entry.Content = mergeMaps(existing.Content, entry.Content)
		entry.Metadata = mergeMaps(existing.Metadata, entry.Metadata)
		if len(source) == 0 {
			entry.SourceInfo = existing.SourceInfo
		}
		result.EntriesUpdated = 1
	} else {
		result.EntriesAdded = 1
	}

	if err := kb.store.Put(ctx, knowledgePrefix+id, entry); err != nil {
		return nil, fmt.Errorf("failed to store knowledge entry: %w", err)
	}
	if err := kb.graph.UpsertEntry(ctx, entry); err != nil {
		log.Warn().Err(err).Str("entry_id", id).Msg("Failed to update knowledge graph")
	}

	if src, _ := source["source_file"].(string); src != "" {
		kb.filesProcessed++
	}
	kb.lastUpdated = now
	result.QualityScore = knowledgeQuality(entry)
	return result, nil
}

func mergeMaps(base, over map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// conceptMap accepts concepts decoded from JSON or built in process
func conceptMap(v interface{}) map[string][]string {
	out := map[string][]string{}
	switch t := v.(type) {
	case map[string][]string:
		for k, names := range t {
			out[k] = names
		}
	case map[string]interface{}:
		for k, names := range t {
			if s := stringSlice(names); len(s) > 0 {
				out[k] = s
			}
		}
	}
	return out
}

// knowledgeQuality rewards concept richness, a specific category, a known
// source and metadata
func knowledgeQuality(e *models.KnowledgeEntry) float64 {
	score := min(0.4, float64(conceptCount(e.Concepts))/10)
	if e.Category != "general" {
		score += 0.3
	}
	if len(e.SourceInfo) > 0 {
		score += 0.2
	}
	if len(e.Metadata) > 0 {
		score += 0.1
	}
	return min(1, score)
}

// KnowledgeHit is one search result
type KnowledgeHit struct {
	EntryID        string              `json:"entry_id"`
	Category       string              `json:"category"`
	ContentSummary string              `json:"content_summary"`
	RelevanceScore float64             `json:"relevance_score"`
	Concepts       map[string][]string `json:"concepts"`
	Source         string              `json:"source"`
}

// KnowledgeSearch is the outcome of a search
type KnowledgeSearch struct {
	Results         []KnowledgeHit `json:"results"`
	TotalMatches    int            `json:"total_matches"`
	Confidence      float64        `json:"confidence"`
	RelatedConcepts []string       `json:"related_concepts"`
}

// Search scores every entry against query and returns at most limit hits
// with relevance above 0.1, best first
func (kb *KnowledgeBase) Search(ctx context.Context, query string, limit int) (*KnowledgeSearch, error) {
	entries, err := kb.entries(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(q)

	hits := []KnowledgeHit{}
	for _, e := range entries {
		score := relevance(e, q, words)
		if score <= 0.1 {
			continue
		}
		source, _ := e.SourceInfo["source_file"].(string)
		if source == "" {
			source = "unknown"
		}
		hits = append(hits, KnowledgeHit{
			EntryID:        e.EntryID,
			Category:       e.Category,
			ContentSummary: fmt.Sprintf("%s content with %d key concepts", titleWords(e.Category), conceptCount(e.Concepts)),
			RelevanceScore: score,
			Concepts:       e.Concepts,
			Source:         source,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].RelevanceScore > hits[j].RelevanceScore })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := &KnowledgeSearch{Results: hits, TotalMatches: len(hits), RelatedConcepts: kb.related(ctx, words, hits)}
	if len(hits) > 0 {
		sum := 0.0
		for _, h := range hits {
			sum += h.RelevanceScore
		}
		out.Confidence = sum / float64(len(hits))
	}
	return out, nil
}

func relevance(e *models.KnowledgeEntry, query string, words []string) float64 {
	if query == "" {
		return 0
	}
	score := 0.0
	if strings.Contains(strings.ToLower(e.Category), query) {
		score += 0.3
	}

	for _, kind := range sortedKeys(e.Concepts) {
		for _, c := range e.Concepts[kind] {
			c = strings.ToLower(c)
			for _, w := range words {
				if strings.Contains(c, w) {
					score += 0.2
					break
				}
			}
		}
	}

	if meta, err := json.Marshal(e.Metadata); err == nil {
		text := strings.ToLower(string(meta))
		for _, w := range words {
			if strings.Contains(text, w) {
				score += 0.1
			}
		}
	}
	return min(1, score)
}

// related collects concepts of the top three hits, then asks the graph for
// neighbours of the query words
func (kb *KnowledgeBase) related(ctx context.Context, words []string, hits []KnowledgeHit) []string {
	var out []string
	for _, h := range head(hits, 3) {
		for _, kind := range sortedKeys(h.Concepts) {
			out = append(out, h.Concepts[kind]...)
		}
	}
	for _, w := range words {
		names, err := kb.graph.RelatedConcepts(ctx, w, 5)
		if err != nil {
			log.Debug().Err(err).Str("concept", w).Msg("Related concept lookup failed")
			continue
		}
		out = append(out, names...)
	}

	out = uniq(out)
	for i := 0; i < len(out); i++ {
		if contains(words, out[i]) {
			out = append(out[:i], out[i+1:]...)
			i--
		}
	}
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (kb *KnowledgeBase) entries(ctx context.Context) ([]*models.KnowledgeEntry, error) {
	raw, err := kb.store.Query(ctx, knowledgePrefix, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge entries: %w", err)
	}
	out := make([]*models.KnowledgeEntry, 0, len(raw))
	for _, r := range raw {
		var e models.KnowledgeEntry
		if err := json.Unmarshal(r, &e); err != nil {
			log.Warn().Err(err).Msg("Skipping corrupt knowledge entry")
			continue
		}
		out = append(out, &e)
	}
	return out, nil
}

// Size returns the number of stored entries
func (kb *KnowledgeBase) Size(ctx context.Context) (int, error) {
	return kb.store.Count(ctx, knowledgePrefix)
}

// KnowledgeStats summarizes the knowledge base
type KnowledgeStats struct {
	TotalEntries    int        `json:"total_entries"`
	FilesProcessed  int        `json:"files_processed"`
	CategoriesCount int        `json:"categories_count"`
	Categories      []string   `json:"categories"`
	LastUpdated     *time.Time `json:"last_updated"`
}

// Stats reports entry and category counts
func (kb *KnowledgeBase) Stats(ctx context.Context) (*KnowledgeStats, error) {
	entries, err := kb.entries(ctx)
	if err != nil {
		return nil, err
	}
	cats := make([]string, 0, len(entries))
	for _, e := range entries {
		cats = append(cats, e.Category)
	}
	cats = uniq(cats)
	sort.Strings(cats)

	kb.mu.Lock()
	defer kb.mu.Unlock()
	stats := &KnowledgeStats{
		TotalEntries:    len(entries),
		FilesProcessed:  kb.filesProcessed,
		CategoriesCount: len(cats),
		Categories:      cats,
	}
	if !kb.lastUpdated.IsZero() {
		t := kb.lastUpdated
		stats.LastUpdated = &t
	}
	return stats, nil
}
