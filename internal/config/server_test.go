package config

import (
	"testing"
	"time"

	"github.com/jonathan/visa-navigator/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setServerEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "LLM_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY",
		"ANTHROPIC_API_KEY", "CATALOG_PATH", "SESSION_TTL", "GUIDE_USE_BROWSER", "GUIDE_CACHE_TTL", "CORS_ORIGIN",
		"GOOGLE_SEARCH_API_KEY", "GOOGLE_SEARCH_CX",
	} {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	setServerEnv(t, map[string]string{
		"DATABASE_URL":   "postgres://localhost/visa",
		"GEMINI_API_KEY": "g-key",
	})

	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, llm.ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, "g-key", cfg.LLMAPIKey)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.GuideCacheTTL)
	assert.False(t, cfg.GuideUseBrowser)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Empty(t, cfg.RedisURL)
	assert.False(t, cfg.DiscoveryEnabled())
}

func TestLoadServerConfig_Overrides(t *testing.T) {
	setServerEnv(t, map[string]string{
		"PORT":              "9090",
		"DATABASE_URL":      "postgres://localhost/visa",
		"REDIS_URL":         "redis://localhost:6379/0",
		"LLM_PROVIDER":      "Anthropic",
		"ANTHROPIC_API_KEY": "a-key",
		"SESSION_TTL":       "30m",
		"GUIDE_USE_BROWSER": "true",
		"GUIDE_CACHE_TTL":   "6h",
		"CORS_ORIGIN":       "https://app.example.com",

		"GOOGLE_SEARCH_API_KEY": "s-key",
		"GOOGLE_SEARCH_CX":      "engine-1",
	})

	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, llm.ProviderAnthropic, cfg.LLMProvider)
	assert.Equal(t, "a-key", cfg.LLMAPIKey)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 6*time.Hour, cfg.GuideCacheTTL)
	assert.True(t, cfg.GuideUseBrowser)
	assert.Equal(t, "https://app.example.com", cfg.CORSOrigin)
	assert.True(t, cfg.DiscoveryEnabled())
}

func TestLoadServerConfig_Errors(t *testing.T) {
	base := map[string]string{"DATABASE_URL": "postgres://localhost/visa", "GEMINI_API_KEY": "g-key"}

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing database", map[string]string{"GEMINI_API_KEY": "g-key"}, "DATABASE_URL is required"},
		{"missing provider key", map[string]string{"DATABASE_URL": "postgres://x", "LLM_PROVIDER": "openai"}, "OPENAI_API_KEY is required"},
		{"unknown provider", merge(base, "LLM_PROVIDER", "mistral"), "unknown LLM provider"},
		{"bad port", merge(base, "PORT", "eighty"), "invalid PORT"},
		{"port out of range", merge(base, "PORT", "70000"), "PORT out of range"},
		{"bad session ttl", merge(base, "SESSION_TTL", "soon"), "invalid SESSION_TTL"},
		{"short session ttl", merge(base, "SESSION_TTL", "10s"), "SESSION_TTL must be at least"},
		{"bad browser flag", merge(base, "GUIDE_USE_BROWSER", "maybe"), "invalid GUIDE_USE_BROWSER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setServerEnv(t, tt.env)
			cfg, err := LoadServerConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func merge(base map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(base)+1)
	for bk, bv := range base {
		out[bk] = bv
	}
	out[k] = v
	return out
}
