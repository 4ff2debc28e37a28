package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, `{
		"apiBaseUrl": "https://navigator.example.com",
		"apiKey": "anon-key",
		"localDbPath": "/tmp/visa.db",
		"useBrowser": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://navigator.example.com", cfg.APIBaseURL)
	assert.Equal(t, "anon-key", cfg.APIKey)
	assert.Equal(t, "/tmp/visa.db", cfg.LocalDBPath)
	assert.True(t, cfg.UseBrowser)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{"empty path", func(*testing.T) string { return "" }, "config path is empty"},
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.json") }, "failed to read config file"},
		{"invalid json", func(t *testing.T) string { return writeConfig(t, `{ invalid json }`) }, "failed to parse config JSON"},
		{"unknown key", func(t *testing.T) string { return writeConfig(t, `{"apiBaseURL2": "x"}`) }, "unknown field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(tt.path(t))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate(t *testing.T) {
	catalog := writeConfig(t, `{"routes":[]}`)

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, false},
		{"valid urls", Config{APIBaseURL: "http://localhost:8080", AssessmentURL: "https://x.example.com/a"}, false},
		{"bad base url", Config{APIBaseURL: "not a url"}, true},
		{"existing catalog", Config{CatalogPath: catalog}, false},
		{"missing catalog", Config{CatalogPath: filepath.Join(t.TempDir(), "missing.json")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{APIBaseURL: "https://from-file.example.com"}
	merged := cfg.MergeWithDefaults(Config{
		APIBaseURL:  "https://default.example.com",
		APIKey:      "default-key",
		LocalDBPath: "/var/lib/visa.db",
	})

	assert.Equal(t, "https://from-file.example.com", merged.APIBaseURL)
	assert.Equal(t, "default-key", merged.APIKey)
	assert.Equal(t, "/var/lib/visa.db", merged.LocalDBPath)
	assert.Empty(t, merged.CatalogPath)
}

func TestResolvedAssessmentURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/functions/v1/ai-visa-assessment", (&Config{}).ResolvedAssessmentURL())
	assert.Equal(t, "https://n.example.com/functions/v1/ai-visa-assessment",
		(&Config{APIBaseURL: "https://n.example.com"}).ResolvedAssessmentURL())
	assert.Equal(t, "https://edge.example.com/assess",
		(&Config{APIBaseURL: "https://n.example.com", AssessmentURL: "https://edge.example.com/assess"}).ResolvedAssessmentURL())
}
