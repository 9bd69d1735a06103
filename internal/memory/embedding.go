package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// HTTPEmbedding calls a sentence-transformers style HTTP service
type HTTPEmbedding struct {
	apiURL     string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewHTTPEmbedding creates a remote embedding generator
func NewHTTPEmbedding(config *Config) *HTTPEmbedding {
	if config == nil {
		config = DefaultConfig()
	}
	return &HTTPEmbedding{
		apiURL:     strings.TrimRight(config.EmbeddingURL, "/"),
		model:      config.EmbeddingModel,
		dimensions: config.EmbeddingDimensions,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate creates an embedding vector for text
func (e *HTTPEmbedding) Generate(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}
	return embeddings[0], nil
}

// GenerateBatch creates embeddings for multiple texts
func (e *HTTPEmbedding) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"inputs": texts,
		"model":  e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding API error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	for i, v := range result {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(v), e.dimensions)
		}
	}
	return result, nil
}

// Dimensions returns the embedding vector dimensionality
func (e *HTTPEmbedding) Dimensions() int {
	return e.dimensions
}

// SimpleEmbedding is a deterministic word-hashing embedding used when no
// embedding service is configured
type SimpleEmbedding struct {
	dimensions int
}

// NewSimpleEmbedding creates a hash-based embedding generator
func NewSimpleEmbedding(dimensions int) *SimpleEmbedding {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &SimpleEmbedding{dimensions: dimensions}
}

// Generate hashes each word into a few buckets, weighting earlier words more,
// and normalizes the result to a unit vector
func (e *SimpleEmbedding) Generate(ctx context.Context, text string) ([]float32, error) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	embedding := make([]float32, e.dimensions)
	for i, word := range words {
		hash := simpleHash(word)
		weight := float32(1.0 / (1.0 + float64(i)/float64(len(words))))
		// spread each word over a handful of buckets so that short
		// descriptions still overlap on shared words
		for j := uint32(0); j < 4; j++ {
			idx := (hash + j*2654435761) % uint32(e.dimensions)
			embedding[idx] += weight
		}
	}

	normalize(embedding)
	return embedding, nil
}

// GenerateBatch creates embeddings for multiple texts
func (e *SimpleEmbedding) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Generate(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

// Dimensions returns the embedding vector dimensionality
func (e *SimpleEmbedding) Dimensions() int {
	return e.dimensions
}

// NewEmbeddingGenerator returns the remote generator when a URL is configured
func NewEmbeddingGenerator(config *Config) EmbeddingGenerator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.EmbeddingURL != "" {
		return NewHTTPEmbedding(config)
	}
	return NewSimpleEmbedding(config.EmbeddingDimensions)
}

func simpleHash(s string) uint32 {
	hash := uint32(0)
	for _, c := range s {
		hash = hash*31 + uint32(c)
	}
	return hash
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	mag := float32(math.Sqrt(sum))
	if mag == 0 {
		return
	}
	for i := range v {
		v[i] /= mag
	}
}

// CosineSimilarity returns the cosine of the angle between a and b
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
