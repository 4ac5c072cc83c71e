package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	serverURL  string
	userID     int64
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "andrate",
	Short: "CLI client for the andrate catalog and library",
	Long: `andrate - CLI client for the andrate catalog and library

Search anime, TV and movies across providers, browse what's trending,
and keep a personal library of statuses and ratings.

Run 'andrated' to start the server daemon.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("ANDRATE_SERVER", "http://localhost:8585"), "Server URL")
	rootCmd.PersistentFlags().Int64Var(&userID, "user", 0, "User ID for library commands (or ANDRATE_USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("andrate {{.Version}}\n")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
