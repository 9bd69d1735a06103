package agent

import (
	"fmt"
	"math/rand"

	"github.com/stilya/stilya/internal/models"
)

var (
	catalogCategories = []string{"shirt", "pants", "dress", "jacket", "shoes", "accessories"}
	catalogSubcats    = map[string][]string{
		"shirt":       {"button_down", "polo", "t_shirt", "blouse", "tank_top"},
		"pants":       {"jeans", "chinos", "dress_pants", "joggers", "shorts"},
		"dress":       {"casual", "formal", "cocktail", "maxi", "mini"},
		"jacket":      {"blazer", "denim", "leather", "bomber", "cardigan"},
		"shoes":       {"sneakers", "dress_shoes", "boots", "sandals", "heels"},
		"accessories": {"belt", "watch", "bag", "jewelry", "hat"},
	}
	catalogColors    = []string{"black", "white", "navy", "gray", "brown", "red", "blue", "green"}
	catalogPatterns  = []string{"solid", "striped", "plaid", "polka_dot", "floral", "geometric"}
	catalogMaterials = []string{"cotton", "wool", "polyester", "silk", "leather", "denim"}
	catalogOccasions = []string{"casual", "business", "formal", "party", "sports", "vacation"}
	catalogStyles    = []string{"classic", "modern", "vintage", "minimalist", "bohemian", "trendy"}
	catalogSeasons   = []string{"spring", "summer", "fall", "winter"}
	catalogPrices    = []string{"low", "mid", "high"}
)

// GenerateSampleCatalog builds a deterministic demonstration catalog
func GenerateSampleCatalog(size int, seed int64) []models.FashionItem {
	rng := rand.New(rand.NewSource(seed))
	items := make([]models.FashionItem, 0, size)

	for i := 1; i <= size; i++ {
		category := catalogCategories[rng.Intn(len(catalogCategories))]
		subs := catalogSubcats[category]
		sub := subs[rng.Intn(len(subs))]

		season := "all_season"
		if rng.Float64() <= 0.3 {
			season = catalogSeasons[rng.Intn(len(catalogSeasons))]
		}

		items = append(items, models.FashionItem{
			ID:          fmt.Sprintf("item_%06d", i),
			Name:        titleWords(sub) + " " + titleWords(category),
			Category:    category,
			Subcategory: sub,
			Brand:       fmt.Sprintf("Brand %d", 1+rng.Intn(49)),
			Color:       sample(rng, catalogColors, 1+rng.Intn(2)),
			Pattern:     catalogPatterns[rng.Intn(len(catalogPatterns))],
			Material:    catalogMaterials[rng.Intn(len(catalogMaterials))],
			Season:      season,
			Occasion:    sample(rng, catalogOccasions, 1+rng.Intn(2)),
			Style:       sample(rng, catalogStyles, 1),
			PriceRange:  catalogPrices[rng.Intn(len(catalogPrices))],
			ImageURL:    fmt.Sprintf("https://example.com/images/item_%06d.jpg", i),
		})
	}

	return items
}

// sample picks n distinct values
func sample(rng *rand.Rand, values []string, n int) []string {
	perm := rng.Perm(len(values))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = values[perm[i]]
	}
	return out
}
