package agent

import (
	"github.com/stilya/stilya/internal/models"
)

// Creativity axis weights
const (
	weightNovelty    = 0.3
	weightInnovation = 0.25
	weightCoherence  = 0.2
	weightCultural   = 0.15
	weightAesthetic  = 0.1

	// CreativityTarget is the score an outfit must reach to count as creative
	CreativityTarget = 0.84
)

// CreativityBreakdown holds the per-axis scores of an outfit
type CreativityBreakdown struct {
	Novelty          float64 `json:"novelty"`
	Innovation       float64 `json:"innovation"`
	Coherence        float64 `json:"coherence"`
	CulturalFusion   float64 `json:"cultural_fusion"`
	AestheticHarmony float64 `json:"aesthetic_harmony"`
}

// Score combines the axes with fixed weights. There is no coherence floor:
// a highly novel but incoherent outfit is held back by the weighting alone.
func (b CreativityBreakdown) Score() float64 {
	return clamp01(b.Novelty*weightNovelty +
		b.Innovation*weightInnovation +
		b.Coherence*weightCoherence +
		b.CulturalFusion*weightCultural +
		b.AestheticHarmony*weightAesthetic)
}

// CreativityScorer rates outfits and generated combinations
type CreativityScorer interface {
	Breakdown(items []models.FashionItem, culturalContext string) CreativityBreakdown
	CombinationScore(c *Combination, culturalContext string) float64
}

// culturalStyleMatrix maps a culture to the styles it embraces
var culturalStyleMatrix = map[string]map[string]float64{
	"western":       {"minimalist": 0.9, "bohemian": 0.7, "classic": 0.85, "modern": 0.95},
	"eastern":       {"traditional": 0.95, "modern": 0.8, "fusion": 0.9, "contemporary": 0.75},
	"mediterranean": {"casual": 0.9, "elegant": 0.85, "colorful": 0.95, "relaxed": 0.9},
	"scandinavian":  {"minimalist": 0.95, "functional": 0.9, "clean": 0.95, "neutral": 0.9},
}

var cultureOrder = []string{"western", "eastern", "mediterranean", "scandinavian"}

var novelCategoryPairs = pairSet(
	[2]string{"formal", "casual"},
	[2]string{"dress", "jacket"},
	[2]string{"accessories", "shoes"},
	[2]string{"traditional", "modern"},
	[2]string{"vintage", "contemporary"},
)

var compatibleStyles = []map[string]bool{
	set("classic", "elegant", "sophisticated"),
	set("casual", "relaxed", "comfortable"),
	set("modern", "contemporary", "minimalist"),
	set("bohemian", "artistic", "creative"),
	set("vintage", "retro", "traditional"),
}

var compatibleOccasions = []map[string]bool{
	set("casual", "vacation", "weekend"),
	set("business", "formal", "professional"),
	set("party", "evening", "social"),
	set("sports", "active", "fitness"),
}

// patternNovelty is the novelty credited to each generation strategy
var patternNovelty = map[string]float64{
	patternUnexpectedPairs:  0.9,
	patternCulturalBridge:   0.85,
	patternTemporalFusion:   0.8,
	patternMaterialContrast: 0.75,
	patternColorAdventure:   0.8,
}

// HeuristicCreativityScorer scores outfits with attribute-diversity rules
type HeuristicCreativityScorer struct{}

// Breakdown scores every axis
func (HeuristicCreativityScorer) Breakdown(items []models.FashionItem, culturalContext string) CreativityBreakdown {
	return CreativityBreakdown{
		Novelty:          noveltyScore(items),
		Innovation:       innovationScore(items),
		Coherence:        semanticCoherence(items),
		CulturalFusion:   culturalFusionScore(items, culturalContext),
		AestheticHarmony: aestheticHarmony(items),
	}
}

// CombinationScore rates a generated combination before outfit scoring
func (HeuristicCreativityScorer) CombinationScore(c *Combination, culturalContext string) float64 {
	innovation := min(1, float64(len(c.InnovationAspects))*0.3)
	novelty, ok := patternNovelty[c.Pattern]
	if !ok {
		novelty = 0.5
	}

	coherence := 0.5
	if len(c.Items) >= 2 {
		var factors []float64
		if len(uniq(allOccasions(c.Items))) > 0 {
			factors = append(factors, 0.7)
		}
		if len(uniq(allColors(c.Items))) <= 4 {
			factors = append(factors, 0.8)
		}
		coherence = meanOr(factors, 0.5)
	}

	var appeal []float64
	if distinctCategories(c.Items) {
		appeal = append(appeal, 0.8)
	}
	appeal = append(appeal, min(1, float64(len(uniq(allStyles(c.Items))))*0.3))
	aesthetic := meanOr(appeal, 0.6)

	cultural := 0.9
	if c.Pattern == patternCulturalBridge {
		cultural = 0.8
	}

	// generation weights differ from outfit weights: coherence and
	// aesthetics matter more while a combination is still a candidate
	return clamp01(innovation*0.1 + novelty*0.3 + coherence*0.25 + aesthetic*0.2 + cultural*0.15)
}

func noveltyScore(items []models.FashionItem) float64 {
	if len(items) < 2 {
		return 0
	}

	var factors []float64
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if novelCategoryPairs[pairKey(items[i].Category, items[j].Category)] {
				factors = append(factors, 0.8)
			} else {
				factors = append(factors, 0.3)
			}
		}
	}

	switch colors := len(uniq(allColors(items))); {
	case colors > 3:
		factors = append(factors, 0.7)
	case colors == 1:
		factors = append(factors, 0.6)
	}
	if len(uniq(allStyles(items))) > 2 {
		factors = append(factors, 0.8)
	}
	return meanOr(factors, 0.5)
}

func innovationScore(items []models.FashionItem) float64 {
	var materials, patterns []string
	for _, it := range items {
		if it.Material != "" {
			materials = append(materials, it.Material)
		}
		if it.Pattern != "" {
			patterns = append(patterns, it.Pattern)
		}
	}

	var factors []float64
	if len(uniq(materials)) > 2 {
		factors = append(factors, 0.8)
	}
	if len(uniq(patterns)) > 1 && !contains(patterns, "solid") {
		factors = append(factors, 0.9)
	}
	if len(uniq(allOccasions(items))) > 1 {
		factors = append(factors, 0.7)
	}
	return meanOr(factors, 0.4)
}

func semanticCoherence(items []models.FashionItem) float64 {
	if len(items) < 2 {
		return 0.5
	}
	return mean([]float64{
		colorHarmony(allColors(items)),
		styleCoherence(allStyles(items)),
		occasionCoherence(allOccasions(items)),
	})
}

func culturalFusionScore(items []models.FashionItem, culturalContext string) float64 {
	var elements []float64
	for _, it := range items {
		for _, culture := range cultureOrder {
			if culture == culturalContext {
				continue
			}
			match := 0.0
			for _, s := range it.Style {
				match += culturalStyleMatrix[culture][s]
			}
			if match > 0.3 {
				elements = append(elements, match)
			}
		}
	}
	if len(elements) == 0 {
		return 0.2
	}
	return min(1, mean(elements))
}

func aestheticHarmony(items []models.FashionItem) float64 {
	proportion := 0.6
	if distinctCategories(items) {
		proportion = 0.8
	}
	return mean([]float64{
		colorHarmony(allColors(items)),
		styleCoherence(allStyles(items)),
		proportion,
	})
}

func colorHarmony(colors []string) float64 {
	if len(colors) <= 1 {
		return 1
	}
	switch len(uniq(colors)) {
	case 1:
		return 0.9
	case 2:
		return 0.8
	case 3:
		return 0.7
	}
	return 0.5
}

func styleCoherence(styles []string) float64 {
	if len(styles) <= 1 {
		return 1
	}
	unique := uniq(styles)
	for _, group := range compatibleStyles {
		if allIn(unique, group) {
			return 0.9
		}
	}
	if len(unique) <= 3 {
		return 0.6
	}
	return 0.4
}

func occasionCoherence(occasions []string) float64 {
	if len(occasions) <= 1 {
		return 1
	}
	unique := uniq(occasions)
	for _, group := range compatibleOccasions {
		if allIn(unique, group) {
			return 0.9
		}
	}
	if len(unique) <= 3 {
		return 0.7
	}
	return 0.5
}

func allColors(items []models.FashionItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Color...)
	}
	return out
}

func allStyles(items []models.FashionItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Style...)
	}
	return out
}

func allOccasions(items []models.FashionItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Occasion...)
	}
	return out
}

func distinctCategories(items []models.FashionItem) bool {
	seen := map[string]bool{}
	for _, it := range items {
		if seen[it.Category] {
			return false
		}
		seen[it.Category] = true
	}
	return true
}

// uniq returns values without duplicates in first-seen order
func uniq(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func allIn(values []string, group map[string]bool) bool {
	for _, v := range values {
		if !group[v] {
			return false
		}
	}
	return true
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func pairSet(pairs ...[2]string) map[[2]string]bool {
	m := make(map[[2]string]bool, len(pairs))
	for _, p := range pairs {
		m[pairKey(p[0], p[1])] = true
	}
	return m
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanOr(values []float64, def float64) float64 {
	if len(values) == 0 {
		return def
	}
	return mean(values)
}
