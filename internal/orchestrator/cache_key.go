package orchestrator

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/stilya/stilya/internal/models"
)

// requestFields are the outcome-affecting fields of a request
type requestFields struct {
	UserID           string                 `json:"user_id"`
	Query            string                 `json:"user_query"`
	Occasion         string                 `json:"occasion"`
	Mood             string                 `json:"mood"`
	Preferences      map[string]interface{} `json:"preferences"`
	StylePreferences []string               `json:"style_preferences"`
	BudgetRange      interface{}            `json:"budget_range"`
	ImageURL         string                 `json:"image_url"`
	CulturalContext  string                 `json:"cultural_context"`
	RequiredAgents   []models.AgentType     `json:"required_agents"`
}

func fieldsOf(req *models.OrchestratorRequest) requestFields {
	return requestFields{
		UserID:           req.UserID,
		Query:            req.UserQuery,
		Occasion:         contextString(req, "occasion"),
		Mood:             contextString(req, "mood"),
		Preferences:      req.Preferences,
		StylePreferences: stylePreferences(req),
		BudgetRange:      req.Context["budget_range"],
		ImageURL:         contextString(req, "image_url"),
		CulturalContext:  contextString(req, "cultural_context"),
		RequiredAgents:   req.RequiredAgents,
	}
}

// CacheKey fingerprints a request. encoding/json writes map keys sorted, so
// equal requests hash equally regardless of map iteration order.
func CacheKey(req *models.OrchestratorRequest) string {
	fields := fieldsOf(req)
	data, err := json.Marshal(fields)
	if err != nil {
		// fmt also prints maps in key order
		data = []byte(fmt.Sprintf("%v", fields))
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
