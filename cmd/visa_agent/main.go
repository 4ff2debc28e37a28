// Package main provides the visa_agent command: the navigator API server and
// an applicant-side CLI for browsing routes and running eligibility checks.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/jonathan/visa-navigator/internal/config"
	"github.com/jonathan/visa-navigator/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	apiBaseURL  string
	catalogPath string
	localDBPath string
	verbose     bool

	// appConfig is the CLI configuration after merging the config file and flags.
	appConfig config.Config
	logger    = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "visa_agent",
	Short: "UK visa eligibility navigator",
	Long: `visa_agent serves the navigator API and lets applicants browse UK visa routes,
answer a route's questionnaire, see a live eligibility estimate and request an AI assessment.

Configuration can be loaded from a JSON file using --config. Command-line flags override config file values.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadAppConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "Navigator server base URL (default "+config.DefaultAPIBaseURL+")")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Route catalog JSON file (defaults to the built-in catalog)")
	rootCmd.PersistentFlags().StringVar(&localDBPath, "local-db", "", "SQLite file for the saved session, drafts and history")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()
	logger = logging.Setup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadAppConfig builds appConfig: config file first, then explicit flags.
func loadAppConfig(cmd *cobra.Command, _ []string) error {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIBaseURL = apiBaseURL
	}
	if flags.Changed("catalog") {
		cfg.CatalogPath = catalogPath
	}
	if flags.Changed("local-db") {
		cfg.LocalDBPath = localDBPath
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}

	appConfig = cfg.MergeWithDefaults(config.Config{
		APIBaseURL: envOr("VISA_API_URL", config.DefaultAPIBaseURL),
		APIKey:     os.Getenv("VISA_API_KEY"),
	})
	if appConfig.Verbose {
		logging.SetLevel(slog.LevelDebug)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
