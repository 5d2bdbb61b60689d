// Package main provides the applytrak command: the email functions server, digest runs and
// offline tools for import files.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "applytrak",
	Short:         "ApplyTrak job application tracker",
	Long:          "ApplyTrak serves the transactional email functions, runs goal and analytics digests, and checks or loads application import files.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON config file (optional, environment overrides it)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
