package agent

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/memory"
	"github.com/stilya/stilya/internal/models"
)

// VisualConfig configures image loading
type VisualConfig struct {
	FetchLimit   int64
	FetchTimeout time.Duration
	SamplePixels int
	PaletteSize  int
}

// DefaultVisualConfig returns default visual configuration
func DefaultVisualConfig() *VisualConfig {
	return &VisualConfig{
		FetchLimit:   10 << 20,
		FetchTimeout: 10 * time.Second,
		SamplePixels: 4096,
		PaletteSize:  5,
	}
}

// VisualAgent extracts colors, texture, composition and embeddings from images
type VisualAgent struct {
	*Base
	text       memory.EmbeddingGenerator
	images     memory.ImageEmbedder
	classifier StyleClassifier
	config     *VisualConfig

	loader *imageLoader
	mu     sync.RWMutex
}

// NewVisualAgent creates a visual agent. A nil image embedder falls back to
// the color layout embedding and a nil classifier to the rule-based one.
func NewVisualAgent(text memory.EmbeddingGenerator, images memory.ImageEmbedder, classifier StyleClassifier, config *VisualConfig) *VisualAgent {
	if config == nil {
		config = DefaultVisualConfig()
	}
	if images == nil {
		images = memory.NewColorLayoutEmbedding()
	}
	if classifier == nil {
		classifier = VisualStyleRules{}
	}
	return &VisualAgent{
		Base:       NewBase(models.AgentTypeVisual, "Visual Agent"),
		text:       text,
		images:     images,
		classifier: classifier,
		config:     config,
	}
}

// Initialize prepares the image loader
func (a *VisualAgent) Initialize(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loader == nil {
		a.loader = newImageLoader(a.config.FetchLimit, a.config.FetchTimeout)
		log.Info().Str("agent", a.Name()).Int("image_dims", a.images.Dimensions()).Msg("Visual agent initialized")
	}
	a.SetStatus(models.AgentStatusIdle)
	return true
}

// ProcessRequest routes on the task description
func (a *VisualAgent) ProcessRequest(ctx context.Context, req *Request) (*Response, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.loader == nil {
		return nil, ErrNotReady
	}

	handler, ok := matchRoute(req.TaskDescription, []route[func(context.Context, *Request) (*Response, error)]{
		{"analyze image", a.handleAnalyze},
		{"extract features", a.handleExtract},
		{"compare images", a.handleCompare},
		{"detect pose", a.handlePose},
		{"clip embedding", a.handleEmbedding},
		{"embedding", a.handleEmbedding},
	})
	if !ok {
		return a.Fail(fmt.Sprintf("Unknown task: %s", req.TaskDescription)), nil
	}
	return handler(ctx, req)
}

func (a *VisualAgent) loadImage(ctx context.Context, req *Request, prefix string) (image.Image, error) {
	return a.loader.load(ctx, lookupString(req, prefix+"_data", ""), lookupString(req, prefix+"_url", ""))
}

func hasImage(req *Request, prefix string) bool {
	return lookupString(req, prefix+"_data", "") != "" || lookupString(req, prefix+"_url", "") != ""
}

func (a *VisualAgent) handleAnalyze(ctx context.Context, req *Request) (*Response, error) {
	if !hasImage(req, "image") {
		return a.Fail("Image data or URL is required"), nil
	}
	img, err := a.loadImage(ctx, req, "image")
	if err != nil {
		log.Warn().Err(err).Str("agent", a.Name()).Msg("Failed to load image")
		return a.Fail(fmt.Sprintf("Failed to load image: %v", err)), nil
	}

	pixels := samplePixels(img, a.config.SamplePixels)
	colors := dominantColors(pixels, a.config.PaletteSize)
	gray := newGrayPlane(img)
	pattern := detectPattern(textureFeatures(gray))
	comp := analyzeComposition(img, gray)

	scores := a.classifier.Classify(colors, pattern, comp)
	top := topStyles(scores, 3)
	primary := ""
	topScore := 0.0
	if len(top) > 0 {
		primary, topScore = top[0].Style, top[0].Score
	}

	confidence := (0.9 + pattern.PatternConfidence + min(1, topScore+0.5)) / 3

	return a.Succeed(map[string]interface{}{
		"colors": map[string]interface{}{
			"dominant_colors": colors,
			"color_palette":   colorPalette(colors),
		},
		"patterns": pattern,
		"style": map[string]interface{}{
			"style_scores":  scores,
			"top_styles":    top,
			"primary_style": primary,
		},
		"composition": comp,
	}, confidence, "Image analysis completed successfully"), nil
}

func (a *VisualAgent) handleExtract(ctx context.Context, req *Request) (*Response, error) {
	img, err := a.loadImage(ctx, req, "image")
	if err != nil {
		return a.Fail(fmt.Sprintf("Failed to load image: %v", err)), nil
	}

	requested := stringSlice(req.Parameters["features"])
	if len(requested) == 0 {
		requested = []string{"all"}
	}
	want := func(name string) bool { return contains(requested, "all") || contains(requested, name) }

	features := map[string]interface{}{}
	if want("clip_embedding") || want("image_embedding") {
		vec, err := a.images.EmbedImage(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("failed to embed image: %w", err)
		}
		features["image_embedding"] = vec
	}
	if want("color_histogram") {
		features["color_histogram"] = colorHistogram(samplePixels(img, a.config.SamplePixels))
	}
	if want("texture_features") {
		features["texture_features"] = textureFeatures(newGrayPlane(img))
	}

	return a.Succeed(map[string]interface{}{"features": features}, 1.0, "Feature extraction completed"), nil
}

func (a *VisualAgent) handleCompare(ctx context.Context, req *Request) (*Response, error) {
	first, err1 := a.loadImage(ctx, req, "image1")
	second, err2 := a.loadImage(ctx, req, "image2")
	if err1 != nil || err2 != nil {
		return a.Fail("Failed to load one or both images"), nil
	}

	v1, err := a.images.EmbedImage(ctx, first)
	if err != nil {
		return nil, fmt.Errorf("failed to embed image: %w", err)
	}
	v2, err := a.images.EmbedImage(ctx, second)
	if err != nil {
		return nil, fmt.Errorf("failed to embed image: %w", err)
	}
	similarity := memory.CosineSimilarity(v1, v2)

	colorSim := histogramCorrelation(
		colorHistogram(samplePixels(first, a.config.SamplePixels)),
		colorHistogram(samplePixels(second, a.config.SamplePixels)),
	)
	compSim := compositionSimilarity(
		analyzeComposition(first, newGrayPlane(first)),
		analyzeComposition(second, newGrayPlane(second)),
	)

	abs := similarity
	if abs < 0 {
		abs = -abs
	}
	return a.Succeed(map[string]interface{}{
		"overall_similarity":     similarity,
		"color_similarity":       colorSim,
		"composition_similarity": compSim,
		"similarity_category":    similarityCategory(similarity),
	}, abs, "Image comparison completed"), nil
}

func (a *VisualAgent) handlePose(ctx context.Context, req *Request) (*Response, error) {
	img, err := a.loadImage(ctx, req, "image")
	if err != nil {
		return a.Fail(fmt.Sprintf("Failed to load image: %v", err)), nil
	}
	pose := estimatePose(analyzeComposition(img, newGrayPlane(img)))
	return a.Succeed(map[string]interface{}{"pose_info": pose}, pose.Confidence, "Pose detection completed"), nil
}

func (a *VisualAgent) handleEmbedding(ctx context.Context, req *Request) (*Response, error) {
	result := map[string]interface{}{}

	if hasImage(req, "image") {
		img, err := a.loadImage(ctx, req, "image")
		if err != nil {
			log.Warn().Err(err).Str("agent", a.Name()).Msg("Skipping unreadable image")
		} else {
			vec, err := a.images.EmbedImage(ctx, img)
			if err != nil {
				return nil, fmt.Errorf("failed to embed image: %w", err)
			}
			result["image_embedding"] = vec
		}
	}

	if text := stringParam(req.Context, "text", stringParam(req.Parameters, "text", "")); text != "" && a.text != nil {
		vec, err := a.text.Generate(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text: %w", err)
		}
		result["text_embedding"] = vec
	}

	if len(result) == 0 {
		return a.Fail("No valid image or text provided"), nil
	}
	return a.Succeed(result, 1.0, "Embeddings generated"), nil
}

// Cleanup drops the image loader
func (a *VisualAgent) Cleanup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loader != nil {
		a.loader.client.CloseIdleConnections()
	}
	a.loader = nil
	log.Info().Str("agent", a.Name()).Msg("Visual agent cleaned up")
}

// HealthCheck requires an initialized loader
func (a *VisualAgent) HealthCheck(ctx context.Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loader != nil && a.Base.HealthCheck(ctx)
}
