package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/visa-navigator/internal/assessor"
	"github.com/jonathan/visa-navigator/internal/catalog"
	"github.com/jonathan/visa-navigator/internal/config"
	"github.com/jonathan/visa-navigator/internal/db"
	"github.com/jonathan/visa-navigator/internal/fetch"
	"github.com/jonathan/visa-navigator/internal/guides"
	"github.com/jonathan/visa-navigator/internal/llm"
	"github.com/jonathan/visa-navigator/internal/research"
	"github.com/jonathan/visa-navigator/internal/server"
	"github.com/jonathan/visa-navigator/internal/server/ratelimit"
	"github.com/jonathan/visa-navigator/internal/sessions"
	"github.com/jonathan/visa-navigator/internal/tracing"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the navigator API server",
	Long: `Start the HTTP server exposing accounts, the route catalog, wizard sessions,
AI assessments and route guides.

Requires DATABASE_URL, JWT_SECRET and the API key of the selected LLM_PROVIDER.
Wizard sessions are kept in Redis when REDIS_URL is set and in memory otherwise.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	passwordCfg, err := config.NewPasswordConfig()
	if err != nil {
		return err
	}

	cat, err := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	tracer := tracing.NewOTel()

	llmClient, err := llm.NewClient(ctx, llm.ConfigFor(cfg.LLMProvider), cfg.LLMAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", cfg.LLMProvider, err)
	}
	defer func() { _ = llmClient.Close() }()

	ai := assessor.New(
		llm.WithTracing(llmClient, cfg.LLMProvider, tracer),
		assessor.WithProvider(cfg.LLMProvider),
		assessor.WithTracer(tracer),
		assessor.WithLogger(logger),
	)

	fetchCfg := fetch.DefaultCachedFetcherConfig()
	fetchCfg.CacheTTL = cfg.GuideCacheTTL
	fetchCfg.Logger = logger
	if cfg.GuideUseBrowser {
		fetchCfg.Renderer = &fetch.BrowserRenderer{Timeout: 45 * time.Second, Logger: logger}
	}
	guideOpts := []guides.Option{guides.WithTracer(tracer), guides.WithLogger(logger)}
	if cfg.DiscoveryEnabled() {
		researcher, err := research.NewResearcher(ctx, cfg.SearchAPIKey, cfg.SearchEngineID)
		if err != nil {
			return err
		}
		researcher.SetLogger(logger)
		guideOpts = append(guideOpts, guides.WithDiscoverer(researcher))
	}
	guideSvc := guides.NewService(fetch.NewCachedFetcher(database, fetchCfg), guideOpts...)

	store, closeStore, err := sessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	srv, err := server.New(server.Config{Port: cfg.Port, CORSOrigin: cfg.CORSOrigin}, server.Deps{
		DB:        database,
		Catalog:   cat,
		Assessor:  ai,
		Guides:    guideSvc,
		Sessions:  store,
		JWT:       jwtCfg,
		Passwords: passwordCfg,
		RateLimit: ratelimit.LoadConfig(),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("navigator configured",
		"routes", cat.Len(),
		"llm_provider", cfg.LLMProvider,
		"redis_sessions", cfg.RedisURL != "",
		"guide_browser", cfg.GuideUseBrowser,
		"guide_discovery", cfg.DiscoveryEnabled(),
	)
	return srv.Start(ctx)
}

// sessionStore picks Redis when configured, otherwise an in-memory store.
func sessionStore(ctx context.Context, cfg *config.ServerConfig) (sessions.Store, func(), error) {
	if cfg.RedisURL == "" {
		return sessions.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}
	client, err := sessions.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return sessions.NewRedisStore(client, cfg.SessionTTL), func() { _ = client.Close() }, nil
}
