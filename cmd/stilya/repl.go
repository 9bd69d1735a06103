package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stilya/stilya/internal/models"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive recommendation session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.Context())
	},
}

// session holds the context carried between REPL turns
type session struct {
	occasion string
	mood     string
	styles   []string
	lastID   string
}

func runREPL(ctx context.Context) error {
	printBanner()
	return withApp(ctx, func(ctx context.Context, a *app) error {
		printReady(a.ready)

		s := &session{}
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print(color.CyanString("You: "))
			if !scanner.Scan() {
				return scanner.Err()
			}
			if ctx.Err() != nil {
				return nil
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			if strings.HasPrefix(input, "/") {
				if done := handleCommand(ctx, a, s, input); done {
					return nil
				}
				continue
			}

			recommendOpts.occasion, recommendOpts.mood, recommendOpts.styles = s.occasion, s.mood, s.styles
			resp := a.coordinator.HandleRecommendation(ctx, buildRequest(userID, input))
			s.lastID = resp.ProcessingDetails.RequestID
			printRecommendation(resp)
		}
	})
}

// handleCommand runs a slash command and reports whether the session ends
func handleCommand(ctx context.Context, a *app, s *session, cmd string) bool {
	parts := strings.Fields(cmd)
	arg := strings.TrimSpace(strings.TrimPrefix(cmd, parts[0]))

	switch parts[0] {
	case "/help":
		fmt.Println("\nCommands: /occasion <name> /mood <text> /style <a,b> /feedback <1-5> [comments]")
		fmt.Println("          /health /metrics /clear /exit")
		fmt.Println()
	case "/occasion":
		s.occasion = arg
		fmt.Printf("✓ Occasion set to %q\n\n", arg)
	case "/mood":
		s.mood = arg
		fmt.Printf("✓ Mood set to %q\n\n", arg)
	case "/style":
		s.styles = nil
		for _, st := range strings.Split(arg, ",") {
			if st = strings.TrimSpace(st); st != "" {
				s.styles = append(s.styles, st)
			}
		}
		fmt.Printf("✓ Styles set to %v\n\n", s.styles)
	case "/clear":
		*s = session{}
		fmt.Println("✓ Session cleared")
		fmt.Println()
	case "/feedback":
		handleFeedback(ctx, a, s, parts)
	case "/health":
		printHealth(a.coordinator.GetSystemHealth(ctx))
	case "/metrics":
		printMetrics(a)
	case "/exit", "/quit":
		fmt.Println("Goodbye!")
		return true
	default:
		fmt.Printf("Unknown command %s, try /help\n\n", parts[0])
	}
	return false
}

func handleFeedback(ctx context.Context, a *app, s *session, parts []string) {
	if len(parts) < 2 {
		fmt.Println("\nUsage: /feedback <1-5> [comments]")
		fmt.Println()
		return
	}
	rating, err := parseRating(parts[1])
	if err != nil {
		fmt.Printf("%s %v\n\n", color.RedString("✗"), err)
		return
	}

	result, err := a.coordinator.HandleFeedback(ctx, &models.UserFeedback{
		UserID:           userID,
		RecommendationID: s.lastID,
		Rating:           rating,
		Comments:         strings.Join(parts[2:], " "),
	})
	if err != nil {
		fmt.Printf("%s %v\n\n", color.RedString("✗"), err)
		return
	}
	fmt.Printf("%s Feedback recorded, %d agents updated, %d cached answers dropped\n\n",
		color.GreenString("✓"), len(result.AgentsUpdated), result.CacheInvalidated)
}

func printRecommendation(resp *models.OrchestratorResponse) {
	fmt.Println()
	if !resp.Success {
		fmt.Printf("%s %s\n\n", color.RedString("✗"), resp.Explanation)
		return
	}
	if resp.Recommendation == nil {
		fmt.Printf("%s %s\n\n", color.YellowString("⚠"), resp.Explanation)
		return
	}

	for i, c := range resp.Recommendation.Recommendations {
		fmt.Printf("%2d. %s %s %s\n", i+1,
			color.New(color.Bold).Sprintf("%-18s", c.Type),
			color.MagentaString("%.2f", c.FinalScore),
			summarize(c))
	}

	cached := ""
	if resp.ProcessingDetails.CacheHit {
		cached = " | cached"
	}
	fmt.Printf("\n⏱ %.2fs | confidence %.2f | %s%s\n\n",
		resp.ProcessingDetails.ProcessingTime, resp.ConfidenceScore, resp.Explanation, cached)
}

// summarize picks a readable line out of a candidate's content
func summarize(c models.Candidate) string {
	var content map[string]interface{}
	data, err := json.Marshal(c.Content)
	if err != nil || json.Unmarshal(data, &content) != nil {
		return ""
	}

	paths := [][]string{
		{"item", "item", "name"},
		{"combination", "outfit", "style_description"},
		{"suggestion", "advice"},
	}
	for _, path := range paths {
		var v interface{} = content
		for _, key := range path {
			m, ok := v.(map[string]interface{})
			if !ok {
				v = nil
				break
			}
			v = m[key]
		}
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func printMetrics(a *app) {
	m := a.coordinator.GetPerformanceMetrics()

	fmt.Printf("\nStarted %s | %s recommendations | success %.0f%% | cache hits %.0f%%\n",
		humanize.Time(m.StartTime),
		humanize.Comma(m.TotalRecommendations),
		m.SuccessRate*100, m.CacheHitRate*100)
	fmt.Printf("Average response %.2fs | satisfaction %.2f from %s ratings\n",
		m.AverageResponseTime, m.UserSatisfaction, humanize.Comma(m.FeedbackReceived))
	fmt.Printf("Learning queue: %d pending, %d done, %d failed, %d dropped\n\n",
		m.LearningQueue.Pending, m.LearningQueue.Completed, m.LearningQueue.Failed, m.LearningQueue.Dropped)

	types := make([]string, 0, len(m.Agents))
	for t := range m.Agents {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		am := m.Agents[models.AgentType(t)]
		fmt.Printf("  %-11s %6s calls  success %3.0f%%  confidence %.2f  avg %.3fs\n",
			t, humanize.Comma(am.RequestsProcessed), am.SuccessRate*100, am.AverageConfidence, am.AverageResponseTime)
	}
	fmt.Println()
}

func printReady(ready map[string]bool) {
	types := make([]string, 0, len(ready))
	for t := range ready {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Println("Agents:")
	for _, t := range types {
		if ready[t] {
			printStatus("✓", t, color.FgGreen)
		} else {
			printStatus("✗", t+" (unavailable)", color.FgRed)
		}
	}
	fmt.Println("\nDescribe what you need, or type /help.")
	fmt.Println()
}

func printBanner() {
	fmt.Printf(`
╔═════════════════════════════════════════════════════════╗
║              Stilya Fashion Recommender %s           ║
║        wardrobe · creativity · empathy · learning       ║
╚═════════════════════════════════════════════════════════╝

`, version)
}
