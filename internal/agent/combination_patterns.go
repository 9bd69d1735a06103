package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stilya/stilya/internal/models"
)

const (
	patternUnexpectedPairs  = "unexpected_pairs"
	patternCulturalBridge   = "cultural_bridge"
	patternTemporalFusion   = "temporal_fusion"
	patternMaterialContrast = "material_contrast"
	patternColorAdventure   = "color_adventure"
)

// Combination is a candidate outfit produced by one generation strategy
type Combination struct {
	Items             []models.FashionItem
	Pattern           string
	Description       string
	Occasion          string
	InnovationAspects []string
	Score             float64
}

// explorationFactors scale how far generation strays from safe pairings
var explorationFactors = map[string]float64{
	"low":     0.3,
	"medium":  0.6,
	"high":    0.9,
	"extreme": 1.2,
}

func explorationFactor(level string) float64 {
	if f, ok := explorationFactors[strings.ToLower(level)]; ok {
		return f
	}
	return 0.6
}

var styleDistances = map[[2]string]float64{
	pairKey("formal", "casual"):       0.9,
	pairKey("modern", "vintage"):      0.8,
	pairKey("bohemian", "minimalist"): 0.85,
	pairKey("traditional", "trendy"):  0.9,
	pairKey("edgy", "elegant"):        0.7,
}

func styleDistance(a, b string) float64 {
	if d, ok := styleDistances[pairKey(a, b)]; ok {
		return d
	}
	return 0.5
}

var materialContrasts = [][2]string{
	{"leather", "silk"},
	{"cotton", "wool"},
	{"denim", "satin"},
	{"linen", "velvet"},
	{"cashmere", "polyester"},
}

var adventurousColors = pairSet(
	[2]string{"purple", "red"},
	[2]string{"blue", "orange"},
	[2]string{"green", "yellow"},
	[2]string{"green", "pink"},
	[2]string{"purple", "yellow"},
)

// grouped buckets items by a multi-valued attribute, keys in sorted order
type grouped struct {
	keys   []string
	groups map[string][]models.FashionItem
}

func groupBy(items []models.FashionItem, values func(*models.FashionItem) []string) grouped {
	g := grouped{groups: map[string][]models.FashionItem{}}
	for i := range items {
		for _, v := range values(&items[i]) {
			if v == "" {
				continue
			}
			if _, ok := g.groups[v]; !ok {
				g.keys = append(g.keys, v)
			}
			g.groups[v] = append(g.groups[v], items[i])
		}
	}
	sort.Strings(g.keys)
	return g
}

// union returns the items of every named group, deduplicated by id
func (g grouped) union(names ...string) []models.FashionItem {
	seen := map[string]bool{}
	var out []models.FashionItem
	for _, name := range names {
		for _, it := range g.groups[name] {
			if !seen[it.ID] {
				seen[it.ID] = true
				out = append(out, it)
			}
		}
	}
	return out
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// crossPairs pairs the first n of a with the first n of b, skipping
// identical items, and stops after limit pairs
func crossPairs(a, b []models.FashionItem, n, limit int, build func(x, y models.FashionItem) Combination) []Combination {
	var out []Combination
	for _, x := range head(a, n) {
		for _, y := range head(b, n) {
			if x.ID == y.ID {
				continue
			}
			out = append(out, build(x, y))
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// generateCombinations runs every strategy, scores the pool and keeps the best limit
func generateCombinations(items []models.FashionItem, exploration float64, culturalContext string, scorer CreativityScorer, limit int) []Combination {
	var pool []Combination
	pool = append(pool, unexpectedPairs(items, exploration)...)
	pool = append(pool, culturalBridges(items)...)
	pool = append(pool, temporalFusions(items)...)
	pool = append(pool, materialContrastPairs(items)...)
	pool = append(pool, colorAdventures(items, exploration)...)

	for i := range pool {
		pool[i].Score = scorer.CombinationScore(&pool[i], culturalContext)
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })

	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}

func unexpectedPairs(items []models.FashionItem, exploration float64) []Combination {
	styles := groupBy(items, func(it *models.FashionItem) []string { return it.Style })

	var out []Combination
	for i, s1 := range styles.keys {
		for _, s2 := range styles.keys[i+1:] {
			if styleDistance(s1, s2)*exploration <= 0.5 {
				continue
			}
			out = append(out, crossPairs(styles.groups[s1], styles.groups[s2], 3, 5-len(out), func(x, y models.FashionItem) Combination {
				return Combination{
					Items:             []models.FashionItem{x, y},
					Pattern:           patternUnexpectedPairs,
					Description:       fmt.Sprintf("Unexpected fusion of %s and %s", s1, s2),
					Occasion:          "creative_expression",
					InnovationAspects: []string{"style_mixing", "unexpected_pairing"},
				}
			})...)
			if len(out) >= 5 {
				return out
			}
		}
	}
	return out
}

func culturalBridges(items []models.FashionItem) []Combination {
	styles := groupBy(items, func(it *models.FashionItem) []string { return it.Style })
	traditional := styles.union("traditional", "classic")
	modern := styles.union("modern", "contemporary")

	return crossPairs(traditional, modern, 3, 4, func(x, y models.FashionItem) Combination {
		return Combination{
			Items:             []models.FashionItem{x, y},
			Pattern:           patternCulturalBridge,
			Description:       "Cultural bridge between traditional and modern aesthetics",
			Occasion:          "cultural_event",
			InnovationAspects: []string{"cultural_fusion", "temporal_bridge"},
		}
	})
}

func temporalFusions(items []models.FashionItem) []Combination {
	styles := groupBy(items, func(it *models.FashionItem) []string { return it.Style })
	vintage := styles.union("vintage", "retro")
	contemporary := styles.union("contemporary", "trendy")

	return crossPairs(vintage, contemporary, 3, 4, func(x, y models.FashionItem) Combination {
		return Combination{
			Items:             []models.FashionItem{x, y},
			Pattern:           patternTemporalFusion,
			Description:       "Temporal fusion of vintage charm and contemporary edge",
			Occasion:          "fashion_forward",
			InnovationAspects: []string{"temporal_mixing", "era_fusion"},
		}
	})
}

func materialContrastPairs(items []models.FashionItem) []Combination {
	materials := groupBy(items, func(it *models.FashionItem) []string { return []string{it.Material} })

	var out []Combination
	for _, pair := range materialContrasts {
		m1, m2 := pair[0], pair[1]
		out = append(out, crossPairs(materials.groups[m1], materials.groups[m2], 2, 4-len(out), func(x, y models.FashionItem) Combination {
			return Combination{
				Items:             []models.FashionItem{x, y},
				Pattern:           patternMaterialContrast,
				Description:       fmt.Sprintf("Texture contrast between %s and %s", m1, m2),
				Occasion:          "artistic_expression",
				InnovationAspects: []string{"material_mixing", "texture_contrast"},
			}
		})...)
		if len(out) >= 4 {
			break
		}
	}
	return out
}

func colorAdventures(items []models.FashionItem, exploration float64) []Combination {
	colors := groupBy(items, func(it *models.FashionItem) []string { return it.Color })

	var out []Combination
	for i, c1 := range colors.keys {
		for _, c2 := range colors.keys[i+1:] {
			boldness := 0.3
			if adventurousColors[pairKey(c1, c2)] {
				boldness = 1.0
			}
			if boldness*exploration <= 0.5 {
				continue
			}
			out = append(out, crossPairs(colors.groups[c1], colors.groups[c2], 2, 4-len(out), func(x, y models.FashionItem) Combination {
				return Combination{
					Items:             []models.FashionItem{x, y},
					Pattern:           patternColorAdventure,
					Description:       fmt.Sprintf("Bold color adventure with %s and %s", c1, c2),
					Occasion:          "bold_statement",
					InnovationAspects: []string{"color_mixing", "bold_combinations"},
				}
			})...)
			if len(out) >= 4 {
				return out
			}
		}
	}
	return out
}

// deviationPatterns are the style-deviation techniques offered for a base outfit
var deviationPatterns = []struct {
	name        string
	technique   string
	description string
	potential   float64
}{
	{"contrasting_textures", "material_mixing", "Mix smooth materials (silk, cotton) with textured ones (wool, leather)", 0.8},
	{"color_temperature_mix", "color_mixing", "Combine warm colors (red, orange, yellow) with cool colors (blue, green, purple)", 0.85},
	{"formal_casual_blend", "formality_mixing", "Blend formal elements (blazer, dress shoes) with casual ones (jeans, sneakers)", 0.9},
	{"proportional_play", "silhouette_play", "Play with proportions: oversized top with fitted bottom, or vice versa", 0.75},
	{"cultural_fusion", "cultural_blending", "Blend elements from different cultures while maintaining respect and authenticity", 0.95},
}
