// Package main provides the job-radar command line: the scheduler and HTTP
// API server plus one-shot commands for cycles and stored postings.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-radar/internal/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "jobradar",
	Short: "Job Radar discovery service",
	Long: "Job Radar polls job boards and career pages on a schedule, scores postings " +
		"against your preferences, stores them and alerts on strong matches.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to the JSON config file (env JOBRADAR_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
}

func defaultConfigPath() string {
	if p := os.Getenv("JOBRADAR_CONFIG"); p != "" {
		return p
	}
	return config.DefaultPath
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
