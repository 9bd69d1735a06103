package models

import (
	"fmt"
	"strings"
	"time"
)

// AgentType identifies an agent capability
type AgentType string

const (
	AgentTypeWardrobe   AgentType = "wardrobe"
	AgentTypeVisual     AgentType = "visual"
	AgentTypeCreativity AgentType = "creativity"
	AgentTypeEmpathy    AgentType = "empathy"
	AgentTypeLearning   AgentType = "learning"
	AgentTypeKnowledge  AgentType = "knowledge"
)

// AllAgentTypes returns every known capability in a stable order
func AllAgentTypes() []AgentType {
	return []AgentType{
		AgentTypeWardrobe,
		AgentTypeVisual,
		AgentTypeCreativity,
		AgentTypeEmpathy,
		AgentTypeLearning,
		AgentTypeKnowledge,
	}
}

// AgentStatus is the lifecycle state reported by an agent
type AgentStatus string

const (
	AgentStatusIdle       AgentStatus = "idle"
	AgentStatusProcessing AgentStatus = "processing"
	AgentStatusCompleted  AgentStatus = "completed"
	AgentStatusError      AgentStatus = "error"
	AgentStatusTimeout    AgentStatus = "timeout"
)

// RequestPriority orders agent requests
type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityNormal RequestPriority = "normal"
	PriorityHigh   RequestPriority = "high"
	PriorityUrgent RequestPriority = "urgent"
)

// FashionItem is an immutable catalog record owned by the wardrobe agent
type FashionItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Brand       string    `json:"brand,omitempty"`
	Color       []string  `json:"color"`
	Pattern     string    `json:"pattern,omitempty"`
	Material    string    `json:"material,omitempty"`
	Season      string    `json:"season,omitempty"`
	Occasion    []string  `json:"occasion"`
	Style       []string  `json:"style"`
	PriceRange  string    `json:"price_range,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// Description builds the text that is embedded into the item index
func (i *FashionItem) Description() string {
	parts := []string{i.Name, i.Category}
	if i.Subcategory != "" {
		parts = append(parts, strings.ReplaceAll(i.Subcategory, "_", " "))
	}
	parts = append(parts, i.Color...)
	if i.Pattern != "" {
		parts = append(parts, i.Pattern)
	}
	if i.Material != "" {
		parts = append(parts, i.Material)
	}
	parts = append(parts, i.Occasion...)
	parts = append(parts, i.Style...)
	return strings.Join(parts, " ")
}

// ToMap converts the item into the generic payload shape used in agent results
func (i *FashionItem) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":          i.ID,
		"name":        i.Name,
		"category":    i.Category,
		"subcategory": i.Subcategory,
		"brand":       i.Brand,
		"color":       i.Color,
		"pattern":     i.Pattern,
		"material":    i.Material,
		"season":      i.Season,
		"occasion":    i.Occasion,
		"style":       i.Style,
		"price_range": i.PriceRange,
		"image_url":   i.ImageURL,
	}
}

// OutfitRecommendation is a composite of catalog items produced during synthesis
type OutfitRecommendation struct {
	OutfitID         string        `json:"outfit_id"`
	Items            []FashionItem `json:"items"`
	StyleDescription string        `json:"style_description"`
	Occasion         string        `json:"occasion"`
	ConfidenceScore  float64       `json:"confidence_score"`
	CreativityScore  *float64      `json:"creativity_score,omitempty"`
	Explanation      string        `json:"explanation"`
	StylingTips      []string      `json:"styling_tips"`
}

// FeedbackType classifies user feedback
type FeedbackType string

const (
	FeedbackLike    FeedbackType = "like"
	FeedbackDislike FeedbackType = "dislike"
	FeedbackLove    FeedbackType = "love"
	FeedbackNeutral FeedbackType = "neutral"
)

// UserFeedback is submitted by a user about a recommendation
type UserFeedback struct {
	FeedbackID       string       `json:"feedback_id,omitempty"`
	UserID           string       `json:"user_id"`
	RecommendationID string       `json:"recommendation_id"`
	Rating           int          `json:"rating"`
	FeedbackType     FeedbackType `json:"feedback_type"`
	Comments         string       `json:"comments,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
}

// Validate checks the feedback invariants
func (f *UserFeedback) Validate() error {
	if f.UserID == "" {
		return fmt.Errorf("feedback user_id is required")
	}
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("feedback rating must be between 1 and 5, got %d", f.Rating)
	}
	switch f.FeedbackType {
	case FeedbackLike, FeedbackDislike, FeedbackLove, FeedbackNeutral:
	case "":
		f.FeedbackType = FeedbackNeutral
	default:
		return fmt.Errorf("unknown feedback type %q", f.FeedbackType)
	}
	return nil
}

// StyleHistoryEntry records a style the user engaged with
type StyleHistoryEntry struct {
	Style            string    `json:"style"`
	Occasion         string    `json:"occasion,omitempty"`
	RecommendationID string    `json:"recommendation_id,omitempty"`
	Rating           int       `json:"rating,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// UserProfile holds learned preferences for a user
type UserProfile struct {
	UserID             string                 `json:"user_id"`
	Preferences        map[string]interface{} `json:"preferences"`
	StyleHistory       []StyleHistoryEntry    `json:"style_history"`
	CulturalBackground string                 `json:"cultural_background,omitempty"`
	SatisfactionScores []int                  `json:"satisfaction_scores"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// KnowledgeEntry is a unit of fashion knowledge held by the knowledge base
type KnowledgeEntry struct {
	EntryID    string                 `json:"entry_id"`
	Category   string                 `json:"category"`
	Content    map[string]interface{} `json:"content"`
	Concepts   map[string][]string    `json:"concepts"`
	SourceInfo map[string]interface{} `json:"source_info"`
	Metadata   map[string]interface{} `json:"metadata"`
	Timestamp  time.Time              `json:"timestamp"`
}

// CandidateType tags a synthesized candidate with its origin
type CandidateType string

const (
	CandidateWardrobeItem     CandidateType = "wardrobe_item"
	CandidateCreativeOutfit   CandidateType = "creative_outfit"
	CandidateEmpatheticAdvice CandidateType = "empathetic_advice"
)

// Candidate is one ranked entry of a recommendation
type Candidate struct {
	Type        CandidateType          `json:"type"`
	SourceAgent AgentType              `json:"source_agent"`
	Content     map[string]interface{} `json:"content"`
	Confidence  float64                `json:"confidence"`
	FinalScore  float64                `json:"final_score"`
}

// Recommendation is the synthesized, ranked output of a request
type Recommendation struct {
	Recommendations   []Candidate            `json:"recommendations"`
	OverallConfidence float64                `json:"overall_confidence"`
	Metadata          RecommendationMetadata `json:"synthesis_metadata"`
}

// RecommendationMetadata describes how a recommendation was assembled
type RecommendationMetadata struct {
	AgentsInvolved      []AgentType           `json:"agents_involved"`
	ConfidenceBreakdown map[AgentType]float64 `json:"confidence_breakdown"`
	TotalCandidates     int                   `json:"total_candidates"`
}

// OrchestratorRequest is the user-facing recommendation request
type OrchestratorRequest struct {
	UserID         string                 `json:"user_id"`
	UserQuery      string                 `json:"user_query"`
	Context        map[string]interface{} `json:"context"`
	Preferences    map[string]interface{} `json:"preferences"`
	RequiredAgents []AgentType            `json:"required_agents,omitempty"`
}

// OrchestratorResponse is returned for every recommendation request
type OrchestratorResponse struct {
	Success           bool              `json:"success"`
	Recommendation    *Recommendation   `json:"recommendation"`
	Explanation       string            `json:"explanation"`
	ConfidenceScore   float64           `json:"confidence_score"`
	AgentsInvolved    []AgentType       `json:"agents_involved"`
	ProcessingDetails ProcessingDetails `json:"processing_details"`
}

// ProcessingDetails carries per-request execution facts
type ProcessingDetails struct {
	RequestID      string                    `json:"request_id"`
	ProcessingTime float64                   `json:"processing_time"`
	CacheHit       bool                      `json:"cache_hit"`
	AgentsInvolved []AgentType               `json:"agents_involved"`
	AgentStatuses  map[AgentType]AgentStatus `json:"agent_statuses,omitempty"`
	Error          *ErrorResponse            `json:"error,omitempty"`
}

// ErrorCode is a machine readable failure class
type ErrorCode string

const (
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeAgentTimeout     ErrorCode = "AGENT_TIMEOUT"
	ErrorCodeAgentFault       ErrorCode = "AGENT_FAULT"
	ErrorCodeAgentUnavailable ErrorCode = "AGENT_UNAVAILABLE"
	ErrorCodeSynthesisFailure ErrorCode = "SYNTHESIS_FAILURE"
)

// ErrorResponse describes a rejected or failed request
type ErrorResponse struct {
	ErrorCode ErrorCode              `json:"error_code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// FeedbackResult is returned after feedback is processed
type FeedbackResult struct {
	Processed        bool        `json:"feedback_processed"`
	AgentsUpdated    []AgentType `json:"agents_updated"`
	LearningImpact   bool        `json:"learning_impact"`
	CacheInvalidated int         `json:"cache_invalidated"`
}

// SystemHealth aggregates agent health checks
type SystemHealth struct {
	OverallHealth float64            `json:"overall_health"`
	Status        string             `json:"status"`
	Agents        map[AgentType]bool `json:"agents"`
	CheckedAt     time.Time          `json:"checked_at"`
}
