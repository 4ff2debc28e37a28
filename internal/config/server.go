package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/visa-navigator/internal/llm"
)

// ServerConfig holds configuration for the navigator API server.
type ServerConfig struct {
	Port        int
	DatabaseURL string
	RedisURL    string // empty means in-memory wizard sessions

	LLMProvider llm.Provider
	LLMAPIKey   string

	CatalogPath string
	SessionTTL  time.Duration

	GuideUseBrowser bool
	GuideCacheTTL   time.Duration

	// Programmable Search credentials; guidance discovery is off unless both are set.
	SearchAPIKey   string
	SearchEngineID string

	CORSOrigin string
}

// LoadServerConfig reads server configuration from environment variables.
// DATABASE_URL is required; the API key for the selected LLM_PROVIDER is
// required as well.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CatalogPath: os.Getenv("CATALOG_PATH"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),

		SearchAPIKey:   os.Getenv("GOOGLE_SEARCH_API_KEY"),
		SearchEngineID: os.Getenv("GOOGLE_SEARCH_CX"),
	}

	port, err := envInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	provider, err := llm.ParseProvider(os.Getenv("LLM_PROVIDER"))
	if err != nil {
		return nil, err
	}
	cfg.LLMProvider = provider
	cfg.LLMAPIKey = os.Getenv(APIKeyEnv(provider))

	if cfg.SessionTTL, err = envDuration("SESSION_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.GuideCacheTTL, err = envDuration("GUIDE_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.GuideUseBrowser, err = envBool("GUIDE_USE_BROWSER", false); err != nil {
		return nil, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DiscoveryEnabled reports whether guidance discovery is configured.
func (c *ServerConfig) DiscoveryEnabled() bool {
	return c.SearchAPIKey != "" && c.SearchEngineID != ""
}

// APIKeyEnv names the environment variable holding the key for provider p.
func APIKeyEnv(p llm.Provider) string {
	switch p {
	case llm.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case llm.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// normalize validates the configuration.
func (c *ServerConfig) normalize() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required but not set")
	}
	if c.LLMAPIKey == "" {
		return fmt.Errorf("%s is required for provider %s", APIKeyEnv(c.LLMProvider), c.LLMProvider)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.SessionTTL < time.Minute {
		return fmt.Errorf("SESSION_TTL must be at least 1m, got: %s", c.SessionTTL)
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %v", key, err)
	}
	return b, nil
}
