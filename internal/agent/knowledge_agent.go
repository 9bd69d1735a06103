package agent

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/memory"
	"github.com/stilya/stilya/internal/models"
)

// KnowledgeConfig configures the knowledge agent
type KnowledgeConfig struct {
	// Dirs are scanned and ingested on Initialize when they exist
	Dirs          []string
	Watch         bool
	WatchDebounce time.Duration
	SearchLimit   int
}

// DefaultKnowledgeConfig returns default knowledge configuration
func DefaultKnowledgeConfig() *KnowledgeConfig {
	return &KnowledgeConfig{
		Dirs:          []string{"./knowledge", "./docs", "./data", "./resources"},
		Watch:         false,
		WatchDebounce: 500 * time.Millisecond,
		SearchLimit:   10,
	}
}

// integrationMetrics tracks ingestion activity
type integrationMetrics struct {
	TotalFilesProcessed    int            `json:"total_files_processed"`
	CategorizationAccuracy float64        `json:"categorization_accuracy"`
	ConceptsExtracted      int            `json:"concepts_extracted"`
	KnowledgeEntries       int            `json:"knowledge_entries"`
	FileTypesSupported     []string       `json:"file_types_supported"`
	CategoriesDetected     map[string]int `json:"categories_detected"`
	ProcessingSpeed        float64        `json:"processing_speed"`
	LastScanTime           *time.Time     `json:"last_scan_time"`
}

func newIntegrationMetrics() integrationMetrics {
	return integrationMetrics{
		CategorizationAccuracy: 0.95,
		FileTypesSupported:     supportedKnowledgeTypes,
		CategoriesDetected:     map[string]int{},
	}
}

// KnowledgeAgent detects, categorizes and ingests fashion knowledge files and
// answers knowledge searches
type KnowledgeAgent struct {
	*Base
	analyzer KnowledgeAnalyzer
	config   *KnowledgeConfig

	store     memory.Store
	ownsStore bool
	graph     memory.KnowledgeGraph
	kb        *KnowledgeBase
	watcher   *knowledgeWatcher
	mu        sync.RWMutex

	metrics   integrationMetrics
	metricsMu sync.Mutex
}

// NewKnowledgeAgent creates a knowledge agent. With a nil store an in-memory
// store is opened on Initialize and closed on Cleanup.
func NewKnowledgeAgent(store memory.Store, graph memory.KnowledgeGraph, analyzer KnowledgeAnalyzer, config *KnowledgeConfig) *KnowledgeAgent {
	if config == nil {
		config = DefaultKnowledgeConfig()
	}
	if analyzer == nil {
		analyzer = KeywordKnowledgeAnalyzer{}
	}
	return &KnowledgeAgent{
		Base:     NewBase(models.AgentTypeKnowledge, "Knowledge Integration Agent"),
		analyzer: analyzer,
		config:   config,
		store:    store,
		graph:    graph,
		metrics:  newIntegrationMetrics(),
	}
}

// Initialize opens the knowledge base, ingests the configured directories
// and starts the directory watcher when enabled
func (a *KnowledgeAgent) Initialize(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.kb != nil {
		return true
	}

	if a.store == nil {
		store, err := memory.NewBadgerStore("")
		if err != nil {
			log.Error().Err(err).Str("agent", a.Name()).Msg("Failed to open knowledge store")
			a.SetStatus(models.AgentStatusError)
			return false
		}
		a.store, a.ownsStore = store, true
	}
	a.kb = NewKnowledgeBase(a.store, a.graph)

	var existing []string
	for _, dir := range a.config.Dirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			existing = append(existing, dir)
			res := a.scanDirectory(ctx, dir, true, true)
			log.Info().Str("dir", dir).Int("files", res.TotalFiles).Int("entries", res.KnowledgeEntriesCreated).Msg("Initial knowledge scan")
		}
	}

	if a.config.Watch && len(existing) > 0 {
		w, err := newKnowledgeWatcher(existing, a.config.WatchDebounce, a.ingestChanged)
		if err != nil {
			log.Warn().Err(err).Str("agent", a.Name()).Msg("Knowledge watcher unavailable")
		} else {
			a.watcher = w
			w.start(context.WithoutCancel(ctx))
		}
	}

	a.SetStatus(models.AgentStatusIdle)
	log.Info().Str("agent", a.Name()).Strs("dirs", existing).Bool("watch", a.watcher != nil).Msg("Knowledge agent initialized")
	return true
}

// ProcessRequest routes on the task description
func (a *KnowledgeAgent) ProcessRequest(ctx context.Context, req *Request) (*Response, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.kb == nil {
		return nil, ErrNotReady
	}

	handler, ok := matchRoute(req.TaskDescription, []route[func(context.Context, *Request) (*Response, error)]{
		{"detect files", a.handleDetect},
		{"categorize document", a.handleCategorize},
		{"extract concepts", a.handleExtract},
		{"integrate knowledge", a.handleIntegrate},
		{"scan directory", a.handleScan},
		{"update knowledge base", a.handleUpdate},
		{"search knowledge", a.handleSearch},
		{"knowledge metrics", a.handleMetrics},
	})
	if !ok {
		return a.Fail(fmt.Sprintf("Unknown knowledge integration task: %s", req.TaskDescription)), nil
	}
	return handler(ctx, req)
}

func (a *KnowledgeAgent) handleDetect(ctx context.Context, req *Request) (*Response, error) {
	dir := lookupString(req, "directory_path", ".")
	types := stringSlice(req.Parameters["file_types"])
	if len(types) == 0 {
		types = []string{"pdf", "docx", "txt", "md"}
	}

	files, err := detectKnowledgeFiles(dir, types)
	if err != nil {
		return a.Fail(fmt.Sprintf("File detection failed: %v", err)), nil
	}
	if files == nil {
		files = []KnowledgeFile{}
	}

	analysis := analyzeDetected(files)
	confidence := analysis["confidence"].(float64)
	return a.Succeed(map[string]interface{}{
		"detected_files":       files,
		"total_files":          len(files),
		"file_analysis":        analysis,
		"supported_types":      supportedKnowledgeTypes,
		"detection_confidence": confidence,
	}, confidence, fmt.Sprintf("Detected %d knowledge files", len(files))), nil
}

// analyzeDetected scores a detection from type diversity and total size
func analyzeDetected(files []KnowledgeFile) map[string]interface{} {
	if len(files) == 0 {
		return map[string]interface{}{"confidence": 0.0}
	}
	byType := map[string]int{}
	var total int64
	for _, f := range files {
		byType[f.Type]++
		total += f.Size
	}
	diversity := float64(len(byType)) / float64(len(supportedKnowledgeTypes))
	size := min(1, float64(total)/(1<<20))
	return map[string]interface{}{
		"file_type_distribution": byType,
		"total_size_mb":          float64(total) / (1 << 20),
		"total_size":             humanize.Bytes(uint64(total)),
		"average_file_size":      float64(total) / float64(len(files)),
		"confidence":             min(1, (diversity+size)/2),
	}
}

// documentText returns content from the request or reads file_path
func documentText(req *Request) (string, string, error) {
	if content := lookupString(req, "content", ""); content != "" {
		return content, "", nil
	}
	path := lookupString(req, "file_path", "")
	if path == "" {
		return "", "", nil
	}
	text, err := readKnowledgeFile(path)
	return text, path, err
}

func (a *KnowledgeAgent) handleCategorize(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	content, path, err := documentText(req)
	if err != nil {
		return a.Fail(fmt.Sprintf("Document categorization failed: %v", err)), nil
	}
	if content == "" && path == "" {
		return a.Fail("Either file_path or content is required for categorization"), nil
	}

	cat := a.analyzer.Categorize(content)
	a.recordCategorization(cat)

	result := map[string]interface{}{
		"category":        cat.Category,
		"confidence":      cat.Confidence,
		"keywords":        cat.Keywords,
		"all_scores":      cat.AllScores,
		"processing_time": time.Since(start).Seconds(),
	}
	if path != "" {
		result["file_path"] = path
	}
	return a.Succeed(result, cat.Confidence, "Document categorized successfully"), nil
}

func (a *KnowledgeAgent) recordCategorization(cat Categorization) {
	a.metricsMu.Lock()
	defer a.metricsMu.Unlock()
	a.metrics.CategoriesDetected[cat.Category]++
	a.metrics.CategorizationAccuracy = (a.metrics.CategorizationAccuracy + cat.Confidence) / 2
}

func (a *KnowledgeAgent) handleExtract(ctx context.Context, req *Request) (*Response, error) {
	content, path, err := documentText(req)
	if err != nil {
		return a.Fail(fmt.Sprintf("Concept extraction failed: %v", err)), nil
	}
	if content == "" && path == "" {
		return a.Fail("Either content or file_path is required for concept extraction"), nil
	}

	ext := a.analyzer.ExtractConcepts(content)
	n := conceptCount(ext.Concepts)

	a.metricsMu.Lock()
	a.metrics.ConceptsExtracted += n
	a.metricsMu.Unlock()

	return a.Succeed(map[string]interface{}{
		"concepts":              ext.Concepts,
		"key_phrases":           ext.KeyPhrases,
		"entities":              ext.Entities,
		"topics":                ext.Topics,
		"relationships":         conceptRelationships(ext.Concepts),
		"extraction_confidence": ext.Confidence,
	}, ext.Confidence, fmt.Sprintf("Extracted %d concepts", n)), nil
}

// conceptRelationships links each fashion item to the materials and colors
// mentioned alongside it
func conceptRelationships(concepts map[string][]string) []map[string]string {
	out := []map[string]string{}
	for _, item := range concepts["fashion_items"] {
		for _, kind := range []string{"materials", "colors", "styles"} {
			for _, v := range concepts[kind] {
				out = append(out, map[string]string{"source": item, "relation": "co_occurs_with_" + kind, "target": v})
			}
		}
	}
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

func (a *KnowledgeAgent) handleIntegrate(ctx context.Context, req *Request) (*Response, error) {
	data := mapParam(req.Parameters, "knowledge_data")
	if data == nil {
		data = mapParam(req.Context, "knowledge_data")
	}
	if len(data) == 0 {
		return a.Fail("Knowledge data is required for integration"), nil
	}
	source := mapParam(req.Parameters, "source_info")
	mode := stringParam(req.Parameters, "integration_mode", IntegrationMerge)

	res, err := a.kb.Integrate(ctx, data, source, mode)
	if err != nil {
		return a.Fail(fmt.Sprintf("Knowledge integration failed: %v", err)), nil
	}
	size, err := a.kb.Size(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count knowledge entries: %w", err)
	}

	a.metricsMu.Lock()
	a.metrics.KnowledgeEntries = size
	a.metricsMu.Unlock()

	return a.Succeed(map[string]interface{}{
		"integration_successful": true,
		"entry_id":               res.EntryID,
		"entries_added":          res.EntriesAdded,
		"entries_updated":        res.EntriesUpdated,
		"duplicates_found":       res.DuplicatesFound,
		"knowledge_base_size":    size,
		"integration_quality":    res.QualityScore,
	}, 0.9, "Knowledge integrated successfully"), nil
}

// ScanResult summarizes a directory scan
type ScanResult struct {
	TotalFiles              int                 `json:"total_files"`
	FilesByType             map[string]int      `json:"files_by_type"`
	ProcessedFiles          []KnowledgeFile     `json:"processed_files"`
	FailedFiles             []map[string]string `json:"failed_files"`
	KnowledgeEntriesCreated int                 `json:"knowledge_entries_created"`
}

func (a *KnowledgeAgent) scanDirectory(ctx context.Context, dir string, recursive, autoProcess bool) *ScanResult {
	res := &ScanResult{
		FilesByType:    map[string]int{},
		ProcessedFiles: []KnowledgeFile{},
		FailedFiles:    []map[string]string{},
	}

	err := walkKnowledgeFiles(dir, recursive, supportedKnowledgeTypes, func(f KnowledgeFile) {
		res.TotalFiles++
		res.FilesByType[f.Type]++
		res.ProcessedFiles = append(res.ProcessedFiles, f)
		if !autoProcess {
			return
		}
		added, err := a.ingestFile(ctx, f)
		if err != nil {
			res.FailedFiles = append(res.FailedFiles, map[string]string{"file_path": f.FilePath, "error": err.Error()})
			return
		}
		res.KnowledgeEntriesCreated += added
	})
	if err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("dir", dir).Msg("Directory scan failed")
	}

	a.metricsMu.Lock()
	a.metrics.TotalFilesProcessed += res.TotalFiles
	a.metricsMu.Unlock()
	return res
}

// ingestFile categorizes a file, extracts its concepts and integrates it.
// It returns the number of entries added.
func (a *KnowledgeAgent) ingestFile(ctx context.Context, f KnowledgeFile) (int, error) {
	content, err := readKnowledgeFile(f.FilePath)
	if err != nil {
		return 0, err
	}
	cat := a.analyzer.Categorize(content)
	ext := a.analyzer.ExtractConcepts(content)
	a.recordCategorization(cat)

	a.metricsMu.Lock()
	a.metrics.ConceptsExtracted += conceptCount(ext.Concepts)
	a.metricsMu.Unlock()

	concepts := make(map[string]interface{}, len(ext.Concepts))
	for k, v := range ext.Concepts {
		concepts[k] = v
	}
	data := map[string]interface{}{
		"source_file": f.FilePath,
		"category":    cat.Category,
		"concepts":    concepts,
		"metadata": map[string]interface{}{
			"name":        f.Name,
			"type":        f.Type,
			"size":        f.Size,
			"size_human":  f.SizeHuman,
			"confidence":  f.Confidence,
			"key_phrases": ext.KeyPhrases,
		},
	}
	res, err := a.kb.Integrate(ctx, data, map[string]interface{}{"source_file": f.FilePath}, IntegrationMerge)
	if err != nil {
		return 0, err
	}
	return res.EntriesAdded, nil
}

// ingestChanged is called by the watcher for created or modified files
func (a *KnowledgeAgent) ingestChanged(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	if _, err := a.ingestFile(ctx, describeFile(path, info)); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Failed to ingest knowledge file")
		return
	}
	log.Info().Str("file", path).Msg("Knowledge file ingested")
}

func (a *KnowledgeAgent) handleScan(ctx context.Context, req *Request) (*Response, error) {
	dir := lookupString(req, "directory_path", ".")
	recursive := boolParam(req.Parameters, "recursive", true)
	autoProcess := boolParam(req.Parameters, "auto_process", false)

	start := time.Now()
	res := a.scanDirectory(ctx, dir, recursive, autoProcess)
	elapsed := time.Since(start).Seconds()
	speed := 0.0
	if elapsed > 0 {
		speed = float64(res.TotalFiles) / elapsed
	}

	a.metricsMu.Lock()
	a.metrics.ProcessingSpeed = speed
	t := start.UTC()
	a.metrics.LastScanTime = &t
	a.metricsMu.Unlock()

	return a.Succeed(map[string]interface{}{
		"scan_results":     res,
		"processing_time":  elapsed,
		"processing_speed": speed,
		"auto_processed":   autoProcess,
		"directory_path":   dir,
	}, 0.9, fmt.Sprintf("Scanned directory with %d files", res.TotalFiles)), nil
}

// handleUpdate re-ingests the given directory, or every configured one
func (a *KnowledgeAgent) handleUpdate(ctx context.Context, req *Request) (*Response, error) {
	dirs := a.config.Dirs
	if dir := lookupString(req, "directory_path", ""); dir != "" {
		dirs = []string{dir}
	}

	scanned := []string{}
	files, created, failed := 0, 0, 0
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		res := a.scanDirectory(ctx, dir, true, true)
		scanned = append(scanned, dir)
		files += res.TotalFiles
		created += res.KnowledgeEntriesCreated
		failed += len(res.FailedFiles)
	}

	size, err := a.kb.Size(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count knowledge entries: %w", err)
	}
	a.metricsMu.Lock()
	a.metrics.KnowledgeEntries = size
	a.metricsMu.Unlock()

	return a.Succeed(map[string]interface{}{
		"directories_scanned": scanned,
		"files_processed":     files,
		"entries_created":     created,
		"files_failed":        failed,
		"knowledge_base_size": size,
	}, 0.9, fmt.Sprintf("Knowledge base updated from %d files", files)), nil
}

func (a *KnowledgeAgent) handleSearch(ctx context.Context, req *Request) (*Response, error) {
	query := lookupString(req, "query", "")
	if query == "" {
		return a.Fail("Query is required for knowledge search"), nil
	}
	limit := intParam(req.Parameters, "max_results", a.config.SearchLimit)
	searchType := stringParam(req.Parameters, "search_type", "keyword")

	res, err := a.kb.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	return a.Succeed(map[string]interface{}{
		"query":             query,
		"search_type":       searchType,
		"results":           res.Results,
		"total_matches":     res.TotalMatches,
		"search_confidence": res.Confidence,
		"related_concepts":  res.RelatedConcepts,
	}, res.Confidence, fmt.Sprintf("Found %d matching results", res.TotalMatches)), nil
}

func (a *KnowledgeAgent) handleMetrics(ctx context.Context, req *Request) (*Response, error) {
	stats, err := a.kb.Stats(ctx)
	if err != nil {
		return nil, err
	}

	a.metricsMu.Lock()
	a.metrics.KnowledgeEntries = stats.TotalEntries
	m := a.metrics
	m.CategoriesDetected = make(map[string]int, len(a.metrics.CategoriesDetected))
	for k, v := range a.metrics.CategoriesDetected {
		m.CategoriesDetected[k] = v
	}
	a.metricsMu.Unlock()

	var metrics interface{} = m
	if kind := stringParam(req.Parameters, "metric_type", "all"); kind != "all" {
		all := map[string]interface{}{
			"total_files_processed":   m.TotalFilesProcessed,
			"categorization_accuracy": m.CategorizationAccuracy,
			"concepts_extracted":      m.ConceptsExtracted,
			"knowledge_entries":       m.KnowledgeEntries,
			"file_types_supported":    m.FileTypesSupported,
			"categories_detected":     m.CategoriesDetected,
			"processing_speed":        m.ProcessingSpeed,
			"last_scan_time":          m.LastScanTime,
		}
		metrics = map[string]interface{}{kind: all[kind]}
	}

	categories := sortedKeys(m.CategoriesDetected)
	return a.Succeed(map[string]interface{}{
		"integration_metrics":  metrics,
		"knowledge_base_stats": stats,
		"last_updated":         time.Now().UTC(),
		"performance_summary": map[string]interface{}{
			"categorization_accuracy": m.CategorizationAccuracy,
			"processing_efficiency":   fmt.Sprintf("%.2f files/sec", m.ProcessingSpeed),
			"knowledge_coverage":      len(categories),
			"categories":              categories,
		},
	}, 1.0, "Knowledge integration metrics retrieved successfully"), nil
}

// Cleanup stops the watcher and releases an owned store
func (a *KnowledgeAgent) Cleanup(ctx context.Context) {
	a.mu.Lock()
	w := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	// stop outside the lock; ingestion from the watcher does not take a.mu
	if w != nil {
		w.stop()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ownsStore && a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Str("agent", a.Name()).Msg("Failed to close knowledge store")
		}
		a.store, a.ownsStore = nil, false
	}
	a.kb = nil

	a.metricsMu.Lock()
	a.metrics = newIntegrationMetrics()
	a.metricsMu.Unlock()
	log.Info().Str("agent", a.Name()).Msg("Knowledge integration agent cleaned up")
}

// HealthCheck requires an open knowledge base
func (a *KnowledgeAgent) HealthCheck(ctx context.Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.kb != nil && a.Base.HealthCheck(ctx)
}
