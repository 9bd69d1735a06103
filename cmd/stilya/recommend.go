package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stilya/stilya/internal/models"
)

var recommendOpts struct {
	query    string
	occasion string
	mood     string
	styles   []string
	budget   string
	imageURL string
	culture  string
	agents   []string
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Produce one recommendation and print it as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			resp := a.coordinator.HandleRecommendation(ctx, buildRequest(userID, recommendOpts.query))
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("failed to encode response: %w", err)
			}
			if !resp.Success {
				return fmt.Errorf("request rejected: %s", resp.Explanation)
			}
			return nil
		})
	},
}

var feedbackOpts struct {
	rating         int
	feedbackType   string
	comments       string
	recommendation string
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Submit a rating for a recommendation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			result, err := a.coordinator.HandleFeedback(ctx, &models.UserFeedback{
				UserID:           userID,
				RecommendationID: feedbackOpts.recommendation,
				Rating:           feedbackOpts.rating,
				FeedbackType:     models.FeedbackType(feedbackOpts.feedbackType),
				Comments:         feedbackOpts.comments,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		})
	},
}

func init() {
	f := recommendCmd.Flags()
	f.StringVarP(&recommendOpts.query, "query", "q", "", "Free-text request")
	f.StringVar(&recommendOpts.occasion, "occasion", "", "Occasion, e.g. wedding or business")
	f.StringVar(&recommendOpts.mood, "mood", "", "How the user feels")
	f.StringSliceVar(&recommendOpts.styles, "style", nil, "Preferred styles (repeatable)")
	f.StringVar(&recommendOpts.budget, "budget", "", "Budget range, e.g. mid_range")
	f.StringVar(&recommendOpts.imageURL, "image-url", "", "Reference image for visual analysis")
	f.StringVar(&recommendOpts.culture, "culture", "", "Cultural context")
	f.StringSliceVar(&recommendOpts.agents, "agents", nil, "Restrict the participating agents")

	ff := feedbackCmd.Flags()
	ff.IntVarP(&feedbackOpts.rating, "rating", "r", 0, "Rating from 1 to 5")
	ff.StringVar(&feedbackOpts.feedbackType, "type", "", "like, dislike, love or neutral")
	ff.StringVarP(&feedbackOpts.comments, "comments", "m", "", "Free-text comments")
	ff.StringVar(&feedbackOpts.recommendation, "recommendation", "", "Request id of the rated recommendation")
	_ = feedbackCmd.MarkFlagRequired("rating")
}

// buildRequest turns the recommend flags into a coordinator request
func buildRequest(user, query string) *models.OrchestratorRequest {
	req := &models.OrchestratorRequest{
		UserID:      user,
		UserQuery:   query,
		Context:     map[string]interface{}{},
		Preferences: map[string]interface{}{},
	}
	setIf(req.Context, "occasion", recommendOpts.occasion)
	setIf(req.Context, "mood", recommendOpts.mood)
	setIf(req.Context, "budget_range", recommendOpts.budget)
	setIf(req.Context, "image_url", recommendOpts.imageURL)
	setIf(req.Context, "cultural_context", recommendOpts.culture)
	if len(recommendOpts.styles) > 0 {
		req.Context["style_preferences"] = recommendOpts.styles
		req.Preferences["style"] = recommendOpts.styles
	}
	for _, t := range recommendOpts.agents {
		req.RequiredAgents = append(req.RequiredAgents, models.AgentType(t))
	}
	return req
}

func setIf(m map[string]interface{}, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func parseRating(s string) (int, error) {
	r, err := strconv.Atoi(s)
	if err != nil || r < 1 || r > 5 {
		return 0, fmt.Errorf("rating must be a number from 1 to 5")
	}
	return r, nil
}
