package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath string
	userID     string
)

var rootCmd = &cobra.Command{
	Use:   "stilya",
	Short: "Multi-agent fashion recommendation core",
	Long: `Stilya coordinates wardrobe, creativity, empathy, visual, knowledge
and learning agents to produce ranked outfit recommendations.

With no arguments, starts the interactive session.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stilya version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (default $STILYA_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "local-user", "User id for requests and feedback")

	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}
