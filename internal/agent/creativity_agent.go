package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/models"
)

// CreativityAgent generates and scores outfits that deliberately cross
// style, material, color and cultural boundaries
type CreativityAgent struct {
	*Base
	scorer CreativityScorer
}

// NewCreativityAgent creates a creativity agent; a nil scorer uses the heuristic one
func NewCreativityAgent(scorer CreativityScorer) *CreativityAgent {
	if scorer == nil {
		scorer = HeuristicCreativityScorer{}
	}
	return &CreativityAgent{
		Base:   NewBase(models.AgentTypeCreativity, "Creativity Agent"),
		scorer: scorer,
	}
}

// Initialize has nothing to load
func (a *CreativityAgent) Initialize(ctx context.Context) bool {
	log.Info().Str("agent", a.Name()).Msg("Creativity agent initialized")
	return true
}

// ProcessRequest routes the task to a creativity handler
func (a *CreativityAgent) ProcessRequest(ctx context.Context, req *Request) (*Response, error) {
	handler, ok := matchRoute(req.TaskDescription, []route[func(*Request) *Response]{
		{"generate creative outfit", a.handleGenerate},
		{"innovative combination", a.handleInnovative},
		{"cultural fusion", a.handleCulturalFusion},
		{"style deviation", a.handleStyleDeviation},
		{"creativity score", a.handleScore},
	})
	if !ok {
		return a.Fail(fmt.Sprintf("Unknown task: %s", req.TaskDescription)), nil
	}
	return handler(req), nil
}

func (a *CreativityAgent) handleGenerate(req *Request) *Response {
	raw, _ := lookup(req, "available_items")
	if raw == nil {
		raw, _ = lookup(req, "wardrobe_items")
	}
	items := fashionItems(raw)
	if len(items) == 0 {
		return a.Fail("No items available for creative outfit generation")
	}

	culture := stringParam(req.Context, "cultural_context", "western")
	level := stringParam(req.Parameters, "creativity_level", "high")

	combos := generateCombinations(items, explorationFactor(level), culture, a.scorer, 10)

	outfits := make([]map[string]interface{}, 0, len(combos))
	total := 0.0
	for i, c := range combos {
		breakdown := a.scorer.Breakdown(c.Items, culture)
		score := breakdown.Score()
		total += score

		outfit := models.OutfitRecommendation{
			OutfitID:         fmt.Sprintf("creative_%d", i+1),
			Items:            stripEmbeddings(c.Items),
			StyleDescription: c.Description,
			Occasion:         c.Occasion,
			ConfidenceScore:  clamp01(c.Score),
			CreativityScore:  &score,
			Explanation:      fmt.Sprintf("Generated with the %s pattern", strings.ReplaceAll(c.Pattern, "_", " ")),
			StylingTips:      stylingTips(c),
		}
		outfits = append(outfits, map[string]interface{}{
			"outfit":             outfit,
			"creativity_score":   score,
			"scoring_breakdown":  breakdown,
			"innovation_aspects": c.InnovationAspects,
		})
	}

	sort.SliceStable(outfits, func(i, j int) bool {
		return outfits[i]["creativity_score"].(float64) > outfits[j]["creativity_score"].(float64)
	})

	avg := 0.0
	if len(outfits) > 0 {
		avg = total / float64(len(outfits))
	}

	return a.Succeed(map[string]interface{}{
		"creative_outfits":         outfits,
		"average_creativity_score": avg,
		"total_combinations":       len(outfits),
		"creativity_level":         level,
	}, min(1, avg), fmt.Sprintf("Generated %d creative outfits", len(outfits)))
}

func (a *CreativityAgent) handleInnovative(req *Request) *Response {
	raw, _ := lookup(req, "items")
	items := fashionItems(raw)
	if len(items) == 0 {
		return a.Fail("Items are required for innovative combinations")
	}

	baseStyle := stringParam(req.Parameters, "base_style", "classic")
	level := floatParam(req.Parameters, "deviation_level", 0.3)

	var base, deviating []models.FashionItem
	for _, it := range items {
		if contains(it.Style, baseStyle) {
			base = append(base, it)
		} else if deviationScore(it, baseStyle) >= level {
			deviating = append(deviating, it)
		}
	}

	var combos []map[string]interface{}
	var scores []float64
	for _, b := range head(base, 3) {
		for _, d := range head(deviating, 5) {
			pair := []models.FashionItem{b, d}
			innovation := pairInnovation(pair)
			coherence := semanticCoherence(pair)
			overall := (innovation + coherence) / 2
			scores = append(scores, overall)
			combos = append(combos, map[string]interface{}{
				"items":               stripEmbeddings(pair),
				"innovation_score":    innovation,
				"semantic_coherence":  coherence,
				"overall_score":       overall,
				"deviation_technique": fmt.Sprintf("%s base with %s accent", baseStyle, strings.Join(d.Style, "/")),
			})
			if len(combos) >= 10 {
				break
			}
		}
		if len(combos) >= 10 {
			break
		}
	}

	return a.Succeed(map[string]interface{}{
		"innovative_combinations": combos,
		"base_style":              baseStyle,
		"target_deviation":        level,
		"combinations_count":      len(combos),
	}, mean(scores), fmt.Sprintf("Created %d innovative combinations", len(combos)))
}

func (a *CreativityAgent) handleCulturalFusion(req *Request) *Response {
	raw, _ := lookup(req, "items")
	items := fashionItems(raw)
	primary := stringParam(req.Parameters, "primary_culture", "western")
	secondary := stringParam(req.Parameters, "secondary_culture", "eastern")
	intensity := floatParam(req.Parameters, "fusion_intensity", 0.5)

	culturalMatch := func(it models.FashionItem, culture string) float64 {
		sum := 0.0
		for _, s := range it.Style {
			sum += culturalStyleMatrix[culture][s]
		}
		return sum
	}

	var primaryItems, secondaryItems []models.FashionItem
	for _, it := range items {
		if culturalMatch(it, primary) > 0.5 {
			primaryItems = append(primaryItems, it)
		}
		if culturalMatch(it, secondary) > 0.5 {
			secondaryItems = append(secondaryItems, it)
		}
	}

	type fusion struct {
		items []models.FashionItem
		score float64
	}
	var fusions []fusion
	for _, p := range head(primaryItems, 5) {
		for _, s := range head(secondaryItems, 5) {
			if p.ID == s.ID {
				continue
			}
			score := (culturalMatch(p, primary) + culturalMatch(s, secondary)) / 2 * intensity
			fusions = append(fusions, fusion{items: []models.FashionItem{p, s}, score: score})
		}
	}
	sort.SliceStable(fusions, func(i, j int) bool { return fusions[i].score > fusions[j].score })
	if len(fusions) > 8 {
		fusions = fusions[:8]
	}

	out := make([]map[string]interface{}, len(fusions))
	var scores []float64
	for i, f := range fusions {
		var authenticity []float64
		var styles []string
		for _, it := range f.items {
			authenticity = append(authenticity, max(culturalMatch(it, primary), culturalMatch(it, secondary)))
			styles = append(styles, it.Style...)
		}
		auth := min(1, mean(authenticity))
		innovation := min(1, float64(len(uniq(styles)))/4)
		harmony := (auth + innovation) / 2
		scores = append(scores, harmony)
		out[i] = map[string]interface{}{
			"items":                 stripEmbeddings(f.items),
			"fusion_score":          f.score,
			"cultural_authenticity": auth,
			"fusion_innovation":     innovation,
			"cultural_harmony":      harmony,
		}
	}

	return a.Succeed(map[string]interface{}{
		"cultural_fusions":  out,
		"primary_culture":   primary,
		"secondary_culture": secondary,
		"fusion_intensity":  intensity,
		"total_fusions":     len(out),
	}, mean(scores), fmt.Sprintf("Created %d cultural fusions", len(out)))
}

func (a *CreativityAgent) handleStyleDeviation(req *Request) *Response {
	raw, ok := lookup(req, "base_outfit")
	if !ok {
		return a.Fail("Base outfit is required for style deviation")
	}
	base, _ := raw.(map[string]interface{})
	items := fashionItems(base["items"])

	wanted := stringSlice(req.Parameters["patterns"])
	if len(wanted) == 0 {
		wanted = []string{"all"}
	}
	all := contains(wanted, "all")

	var suggestions []map[string]interface{}
	for _, p := range deviationPatterns {
		if !all && !contains(wanted, p.name) {
			continue
		}
		suggestions = append(suggestions, map[string]interface{}{
			"pattern":              p.name,
			"technique":            p.technique,
			"description":          p.description,
			"innovation_potential": p.potential,
			"applies_to_items":     len(items),
		})
	}

	return a.Succeed(map[string]interface{}{
		"deviation_suggestions": suggestions,
		"patterns_applied":      len(suggestions),
		"base_outfit":           base,
	}, 0.85, fmt.Sprintf("Suggested %d style deviations", len(suggestions)))
}

func (a *CreativityAgent) handleScore(req *Request) *Response {
	raw, ok := lookup(req, "outfit")
	if !ok {
		return a.Fail("Outfit is required for creativity scoring")
	}

	var items []models.FashionItem
	switch o := raw.(type) {
	case models.OutfitRecommendation:
		items = o.Items
	case *models.OutfitRecommendation:
		items = o.Items
	case map[string]interface{}:
		items = fashionItems(o["items"])
	default:
		items = fashionItems(raw)
	}

	culture := "western"
	if sc := mapParam(req.Context, "scoring_context"); sc != nil {
		culture = stringParam(sc, "cultural_context", culture)
	}

	breakdown := a.scorer.Breakdown(items, culture)
	score := breakdown.Score()
	return a.Succeed(map[string]interface{}{
		"creativity_score":  score,
		"scoring_breakdown": breakdown,
		"meets_target":      score >= CreativityTarget,
		"target_score":      CreativityTarget,
	}, 1.0, fmt.Sprintf("Creativity score: %.3f", score))
}

// Cleanup is a no-op
func (a *CreativityAgent) Cleanup(ctx context.Context) {}

// deviationScore places an item between 0.3 and 1.0 away from the base style,
// stable for a given item and base
func deviationScore(it models.FashionItem, baseStyle string) float64 {
	h := fnv.New32a()
	h.Write([]byte(it.ID + "|" + baseStyle))
	return 0.3 + 0.7*float64(h.Sum32()%1000)/999
}

func pairInnovation(items []models.FashionItem) float64 {
	if len(items) < 2 {
		return 0
	}
	var factors []float64
	switch styles := len(uniq(allStyles(items))); {
	case styles > 2:
		factors = append(factors, 0.8)
	case styles == 2:
		factors = append(factors, 0.6)
	}
	if distinctCategories(items) {
		factors = append(factors, 0.9)
	}
	if len(uniq(allColors(items))) > 3 {
		factors = append(factors, 0.7)
	}
	return meanOr(factors, 0.4)
}

func stylingTips(c Combination) []string {
	tips := make([]string, 0, len(c.InnovationAspects)+1)
	for _, aspect := range c.InnovationAspects {
		switch aspect {
		case "style_mixing", "unexpected_pairing":
			tips = append(tips, "Anchor the contrast with one neutral accessory")
		case "cultural_fusion", "temporal_bridge":
			tips = append(tips, "Let one traditional piece lead and keep the rest modern")
		case "temporal_mixing", "era_fusion":
			tips = append(tips, "Pair the vintage piece with clean contemporary lines")
		case "material_mixing", "texture_contrast":
			tips = append(tips, "Keep colors close so the texture contrast stands out")
		case "color_mixing", "bold_combinations":
			tips = append(tips, "Balance bold colors with a neutral base layer")
		}
	}
	return uniq(tips)
}

// fashionItems accepts typed items, generic maps, or wardrobe search entries
// holding the item under "item"
func fashionItems(v interface{}) []models.FashionItem {
	switch items := v.(type) {
	case nil:
		return nil
	case []models.FashionItem:
		return items
	case []*models.FashionItem:
		out := make([]models.FashionItem, 0, len(items))
		for _, it := range items {
			if it != nil {
				out = append(out, *it)
			}
		}
		return out
	}

	maps := mapSlice(v)
	out := make([]models.FashionItem, 0, len(maps))
	for _, m := range maps {
		if inner, ok := m["item"]; ok {
			switch it := inner.(type) {
			case models.FashionItem:
				out = append(out, it)
				continue
			case map[string]interface{}:
				m = it
			}
		}
		var item models.FashionItem
		data, err := json.Marshal(m)
		if err != nil {
			continue
		}
		if err := json.Unmarshal(data, &item); err != nil || item.ID == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func stripEmbeddings(items []models.FashionItem) []models.FashionItem {
	out := make([]models.FashionItem, len(items))
	for i, it := range items {
		it.Embedding = nil
		out[i] = it
	}
	return out
}
