package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit applied to one class of endpoints.
type EndpointConfig struct {
	Path   string // exact path, or a prefix when it ends with "/"
	Method string
	Limit  int           // requests per Window; zero or less is unlimited
	Window time.Duration // the limit is spread evenly over it
	Burst  int           // bucket capacity; defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTimeout     time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// navigatorEndpoints are tightest where a request costs an LLM call or a
// gov.uk crawl.
var navigatorEndpoints = []EndpointConfig{
	{Path: "/functions/v1/ai-visa-assessment", Method: "POST", Limit: 20, Window: time.Hour, Burst: 3},
	{Path: "/v1/guides/", Method: "GET", Limit: 30, Window: time.Hour, Burst: 5},

	{Path: "/v1/auth/login", Method: "POST", Limit: 10, Window: time.Minute, Burst: 5},
	{Path: "/v1/auth/register", Method: "POST", Limit: 5, Window: time.Minute, Burst: 2},
	{Path: "/v1/users/", Method: "PUT", Limit: 10, Window: time.Minute, Burst: 3},
	{Path: "/v1/users/", Method: "DELETE", Limit: 5, Window: time.Minute, Burst: 2},

	{Path: "/v1/sessions", Method: "POST", Limit: 30, Window: time.Minute, Burst: 10},
	{Path: "/v1/sessions/", Method: "POST", Limit: 240, Window: time.Minute, Burst: 40},
	{Path: "/v1/sessions/", Method: "DELETE", Limit: 30, Window: time.Minute, Burst: 10},
}

// DefaultEndpointConfigs returns a copy of the per-endpoint limits.
func DefaultEndpointConfigs() []EndpointConfig {
	return append([]EndpointConfig(nil), navigatorEndpoints...)
}

// LoadConfig reads RATE_LIMIT_* variables. Unparseable values fall back to
// the defaults rather than failing startup.
func LoadConfig() *Config {
	if !parseEnv("RATE_LIMIT_ENABLED", true, strconv.ParseBool) {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    parseEnv("RATE_LIMIT_DEFAULT_LIMIT", 600, strconv.Atoi),
		DefaultWindow:   parseEnv("RATE_LIMIT_DEFAULT_WINDOW", time.Minute, time.ParseDuration),
		CleanupInterval: parseEnv("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute, time.ParseDuration),
		IdleTimeout:     time.Hour,
		Whitelist:       ipSet(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       ipSet(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

func parseEnv[T any](key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

// ipSet parses a comma-separated address list.
func ipSet(list string) map[string]bool {
	set := map[string]bool{}
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			set[ip] = true
		}
	}
	return set
}
