package main

import (
	"fmt"
	"time"

	"github.com/jonathan/visa-navigator/internal/fetch"
	"github.com/jonathan/visa-navigator/internal/guides"
	"github.com/jonathan/visa-navigator/internal/observability"
	"github.com/spf13/cobra"
)

var guideUseBrowser bool

var guideCmd = &cobra.Command{
	Use:   "guide <route-id>",
	Short: "Fetch and summarise the gov.uk guidance pages of a route",
	Long: `Fetch every reference page of a route and print its title and main text.
Pages that render client-side can be loaded in headless Chrome with --use-browser.`,
	Args: cobra.ExactArgs(1),
	RunE: runGuide,
}

func init() {
	guideCmd.Flags().BoolVar(&guideUseBrowser, "use-browser", false, "Use headless Chrome for pages with too little text (requires Chrome)")
	rootCmd.AddCommand(guideCmd)
}

func runGuide(cmd *cobra.Command, args []string) error {
	route, err := lookupRoute(args[0])
	if err != nil {
		return err
	}

	cfg := fetch.DefaultCachedFetcherConfig()
	cfg.SkipCache = true
	cfg.Logger = logger
	if guideUseBrowser || appConfig.UseBrowser {
		cfg.Renderer = &fetch.BrowserRenderer{Timeout: 45 * time.Second, Logger: logger}
	}

	svc := guides.NewService(fetch.NewCachedFetcher(nil, cfg), guides.WithLogger(logger))
	guide, err := svc.Build(cmd.Context(), route)
	if err != nil {
		return fmt.Errorf("failed to build guide for %s: %w", route.ID, err)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintGuide(guide)
	return nil
}
