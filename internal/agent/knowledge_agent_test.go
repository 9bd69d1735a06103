package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stilya/stilya/internal/models"
)

func newTestKnowledge(t *testing.T, cfg *KnowledgeConfig) *KnowledgeAgent {
	t.Helper()
	if cfg == nil {
		cfg = DefaultKnowledgeConfig()
		cfg.Dirs = nil
	}
	a := NewKnowledgeAgent(nil, nil, nil, cfg)
	require.True(t, a.Initialize(context.Background()))
	t.Cleanup(func() { a.Cleanup(context.Background()) })
	return a
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func knowledgeRequest(task string, params map[string]interface{}) *Request {
	return NewRequest("u1", models.AgentTypeKnowledge, task, nil, params)
}

// TestKnowledgeCategorize tests keyword categorization and its fallbacks
func TestKnowledgeCategorize(t *testing.T) {
	var an KeywordKnowledgeAnalyzer

	cat := an.Categorize("Pick a color palette where every hue and shade is matching")
	assert.Equal(t, "color_theory", cat.Category)
	assert.Equal(t, 0.98, cat.Confidence)
	assert.Equal(t, []string{"color", "palette", "hue", "shade", "matching"}, cat.Keywords)

	assert.Equal(t, "general", an.Categorize("hello world").Category)
	assert.Equal(t, 0.3, an.Categorize("hello world").Confidence)
	assert.Equal(t, "unknown", an.Categorize("  ").Category)
}

// TestKnowledgeExtractConcepts tests vocabulary matches, phrases and entities
func TestKnowledgeExtractConcepts(t *testing.T) {
	ext := KeywordKnowledgeAnalyzer{}.ExtractConcepts("A navy wool coat with black leather shoes for formal winter events by Burberry")

	assert.Equal(t, []string{"coat", "shoes"}, ext.Concepts["fashion_items"])
	assert.Equal(t, []string{"black"}, ext.Concepts["colors"])
	assert.Equal(t, []string{"wool", "leather"}, ext.Concepts["materials"])
	assert.Equal(t, []string{"fashion_items", "colors", "materials", "styles", "seasons"}, ext.Topics)
	assert.Contains(t, ext.KeyPhrases, "wool coat")
	require.Len(t, ext.Entities, 1)
	assert.Equal(t, "Burberry", ext.Entities[0].Text)
	assert.Equal(t, 0.95, ext.Confidence)

	empty := KeywordKnowledgeAnalyzer{}.ExtractConcepts("")
	assert.Empty(t, empty.Concepts)
	assert.Zero(t, empty.Confidence)
}

// TestKnowledgeIntegrateModes tests add, merge and skip integration
func TestKnowledgeIntegrateModes(t *testing.T) {
	a := newTestKnowledge(t, nil)
	ctx := context.Background()
	data := map[string]interface{}{
		"category": "fashion_guide",
		"concepts": map[string]interface{}{"styles": []interface{}{"business", "formal"}},
		"metadata": map[string]interface{}{"title": "Business dress code"},
	}

	resp, err := a.ProcessRequest(ctx, knowledgeRequest("integrate_knowledge", map[string]interface{}{
		"knowledge_data": data,
		"source_info":    map[string]interface{}{"author": "stylist"},
	}))
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, 1, resp.Result["entries_added"])
	assert.Equal(t, 1, resp.Result["knowledge_base_size"])
	assert.InDelta(t, 0.2+0.3+0.2+0.1, resp.Result["integration_quality"], 1e-9)

	resp, err = a.ProcessRequest(ctx, knowledgeRequest("integrate_knowledge", map[string]interface{}{"knowledge_data": data}))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Result["entries_updated"])
	assert.Equal(t, 1, resp.Result["knowledge_base_size"])

	resp, err = a.ProcessRequest(ctx, knowledgeRequest("integrate_knowledge", map[string]interface{}{
		"knowledge_data": data, "integration_mode": "skip",
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Result["duplicates_found"])
	assert.Equal(t, 0, resp.Result["entries_added"])

	resp, err = a.ProcessRequest(ctx, knowledgeRequest("integrate_knowledge", map[string]interface{}{
		"knowledge_data": data, "integration_mode": "overwrite",
	}))
	require.NoError(t, err)
	assert.False(t, resp.Success)

	resp, err = a.ProcessRequest(ctx, knowledgeRequest("integrate_knowledge", nil))
	require.NoError(t, err)
	assert.Equal(t, "Knowledge data is required for integration", resp.Message)
}

// TestKnowledgeSearch tests relevance scoring and related concepts
func TestKnowledgeSearch(t *testing.T) {
	a := newTestKnowledge(t, nil)
	ctx := context.Background()

	for _, d := range []map[string]interface{}{
		{"category": "fashion_guide", "concepts": map[string][]string{"styles": {"business", "formal"}, "colors": {"navy"}}},
		{"category": "seasonal", "concepts": map[string][]string{"seasons": {"summer"}, "materials": {"linen"}}},
	} {
		_, err := a.ProcessRequest(ctx, knowledgeRequest("integrate knowledge", map[string]interface{}{"knowledge_data": d}))
		require.NoError(t, err)
	}

	resp, err := a.ProcessRequest(ctx, NewRequest("u1", models.AgentTypeKnowledge, "search_knowledge",
		nil, map[string]interface{}{"query": "business"}))
	require.NoError(t, err)
	require.True(t, resp.Success)

	hits := resp.Result["results"].([]KnowledgeHit)
	require.Len(t, hits, 1)
	assert.Equal(t, "fashion_guide", hits[0].Category)
	assert.InDelta(t, 0.2, hits[0].RelevanceScore, 1e-9)
	assert.Equal(t, "Fashion Guide content with 3 key concepts", hits[0].ContentSummary)
	assert.Equal(t, []string{"navy", "formal"}, resp.Result["related_concepts"])

	resp, err = a.ProcessRequest(ctx, knowledgeRequest("search knowledge", map[string]interface{}{"query": "seasonal"}))
	require.NoError(t, err)
	hits = resp.Result["results"].([]KnowledgeHit)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.3, hits[0].RelevanceScore, 1e-9)

	resp, err = a.ProcessRequest(ctx, knowledgeRequest("search knowledge", nil))
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

// TestKnowledgeScanDirectory tests detection, scanning and auto-processing
func TestKnowledgeScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "style_guide.md"), "Linen shirts and cotton pants suit a casual summer style.")
	writeFile(t, filepath.Join(dir, "nested", "colors.yaml"), "palette:\n  - navy\n  - white\nmatching_rule: pair black with white\n")
	writeFile(t, filepath.Join(dir, "photo.png"), "not really an image")

	a := newTestKnowledge(t, nil)
	ctx := context.Background()

	resp, err := a.ProcessRequest(ctx, knowledgeRequest("detect_files", map[string]interface{}{
		"directory_path": dir, "file_types": []string{"md", "yaml"},
	}))
	require.NoError(t, err)
	files := resp.Result["detected_files"].([]KnowledgeFile)
	require.Len(t, files, 1, "only the guide clears the confidence threshold")
	assert.Equal(t, "style_guide.md", files[0].Name)
	assert.NotEmpty(t, files[0].SizeHuman)

	resp, err = a.ProcessRequest(ctx, knowledgeRequest("scan_directory", map[string]interface{}{
		"directory_path": dir, "auto_process": true,
	}))
	require.NoError(t, err)
	scan := resp.Result["scan_results"].(*ScanResult)
	assert.Equal(t, 2, scan.TotalFiles)
	assert.Equal(t, 2, scan.KnowledgeEntriesCreated)
	assert.Equal(t, map[string]int{"md": 1, "yaml": 1}, scan.FilesByType)

	resp, err = a.ProcessRequest(ctx, knowledgeRequest("search knowledge", map[string]interface{}{"query": "linen"}))
	require.NoError(t, err)
	hits := resp.Result["results"].([]KnowledgeHit)
	require.NotEmpty(t, hits)
	assert.True(t, strings.HasSuffix(hits[0].Source, "style_guide.md"))

	// rescanning updates entries in place
	resp, err = a.ProcessRequest(ctx, knowledgeRequest("update_knowledge_base", map[string]interface{}{"directory_path": dir}))
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Result["entries_created"])
	assert.Equal(t, 2, resp.Result["knowledge_base_size"])

	resp, err = a.ProcessRequest(ctx, knowledgeRequest("knowledge_metrics", nil))
	require.NoError(t, err)
	stats := resp.Result["knowledge_base_stats"].(*KnowledgeStats)
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 4, stats.FilesProcessed)
}

// TestKnowledgeCategorizeFile tests file-based categorization requests
func TestKnowledgeCategorizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "care.txt")
	writeFile(t, path, "Wash wool gently and store knitwear folded. Careful storage and regular maintenance keep it clean.")

	a := newTestKnowledge(t, nil)
	resp, err := a.ProcessRequest(context.Background(), knowledgeRequest("categorize_document", map[string]interface{}{"file_path": path}))
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, "care_instructions", resp.Result["category"])
	assert.Equal(t, path, resp.Result["file_path"])

	resp, err = a.ProcessRequest(context.Background(), knowledgeRequest("categorize document", nil))
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

// TestKnowledgeWatcher tests initial ingestion and pickup of new files
func TestKnowledgeWatcher(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "trends.md"), "Vintage denim jackets are back this spring.")

	cfg := DefaultKnowledgeConfig()
	cfg.Dirs = []string{dir, filepath.Join(dir, "missing")}
	cfg.Watch = true
	cfg.WatchDebounce = 20 * time.Millisecond
	a := newTestKnowledge(t, cfg)
	ctx := context.Background()

	search := func(q string) int {
		resp, err := a.ProcessRequest(ctx, knowledgeRequest("search knowledge", map[string]interface{}{"query": q}))
		require.NoError(t, err)
		return resp.Result["total_matches"].(int)
	}
	assert.Equal(t, 1, search("denim"))

	writeFile(t, filepath.Join(dir, "silk_care.md"), "Silk blouses need a cool hand wash.")
	assert.Eventually(t, func() bool { return search("silk") == 1 }, 2*time.Second, 20*time.Millisecond)
}

// TestKnowledgeLifecycle tests readiness and idempotent cleanup
func TestKnowledgeLifecycle(t *testing.T) {
	cfg := DefaultKnowledgeConfig()
	cfg.Dirs = nil
	a := NewKnowledgeAgent(nil, nil, nil, cfg)
	ctx := context.Background()

	_, err := a.ProcessRequest(ctx, knowledgeRequest("search knowledge", nil))
	assert.ErrorIs(t, err, ErrNotReady)

	require.True(t, a.Initialize(ctx))
	require.True(t, a.Initialize(ctx))
	assert.True(t, a.HealthCheck(ctx))

	a.Cleanup(ctx)
	a.Cleanup(ctx)
	assert.False(t, a.HealthCheck(ctx))
}
