package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stilya/stilya/internal/models"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Initialize every agent and report its health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			h := a.coordinator.GetSystemHealth(ctx)
			if healthJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(h)
			}
			printHealth(h)
			if h.Status != "healthy" {
				return fmt.Errorf("system %s", h.Status)
			}
			return nil
		})
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "Print the report as JSON")
}

func printHealth(h models.SystemHealth) {
	types := make([]string, 0, len(h.Agents))
	for t := range h.Agents {
		types = append(types, string(t))
	}
	sort.Strings(types)

	fmt.Println()
	for _, t := range types {
		if h.Agents[models.AgentType(t)] {
			printStatus("✓", t, color.FgGreen)
		} else {
			printStatus("✗", t, color.FgRed)
		}
	}

	status := color.GreenString(h.Status)
	if h.Status != "healthy" {
		status = color.YellowString(h.Status)
	}
	fmt.Printf("\nOverall: %s (%.0f%%)\n\n", status, h.OverallHealth*100)
}

func printStatus(symbol, message string, attr color.Attribute) {
	fmt.Printf("  %s %s\n", color.New(attr).Sprint(symbol), message)
}
