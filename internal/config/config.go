// Package config provides configuration loading and validation for the CLI
// and the server.
package config

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultAPIBaseURL is the navigator server used when none is configured.
	DefaultAPIBaseURL = "http://localhost:8080"
	// AssessmentPath is the assessment endpoint relative to the API base URL.
	AssessmentPath = "/functions/v1/ai-visa-assessment"
)

// Config is the optional CLI config file. Flags override it and
// MergeWithDefaults fills what both leave empty.
type Config struct {
	APIBaseURL    string `json:"apiBaseUrl,omitempty" validate:"omitempty,url"`
	AssessmentURL string `json:"assessmentUrl,omitempty" validate:"omitempty,url"` // overrides APIBaseURL + AssessmentPath
	APIKey        string `json:"apiKey,omitempty"`                                 // sent as the apikey header

	CatalogPath string `json:"catalogPath,omitempty"` // embedded catalog when empty
	LocalDBPath string `json:"localDbPath,omitempty"` // SQLite file for credentials, drafts and history

	UseBrowser bool `json:"useBrowser,omitempty"`
	Verbose    bool `json:"verbose,omitempty"`
}

// LoadConfig reads a JSON config file. Relative paths resolve against the
// working directory and unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", abs, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// Validate checks URL fields and that a configured catalog file exists.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.CatalogPath == "" {
		return nil
	}
	if _, err := os.Stat(c.CatalogPath); err != nil {
		return fmt.Errorf("config error: catalog file not found: %s", c.CatalogPath)
	}
	return nil
}

// MergeWithDefaults fills empty string fields from defaults. Bools are left
// alone since an unset bool cannot be told apart from false.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	out := *c
	out.APIBaseURL = cmp.Or(out.APIBaseURL, defaults.APIBaseURL)
	out.AssessmentURL = cmp.Or(out.AssessmentURL, defaults.AssessmentURL)
	out.APIKey = cmp.Or(out.APIKey, defaults.APIKey)
	out.CatalogPath = cmp.Or(out.CatalogPath, defaults.CatalogPath)
	out.LocalDBPath = cmp.Or(out.LocalDBPath, defaults.LocalDBPath)
	return out
}

// ResolvedAssessmentURL returns AssessmentURL, or the assessment path under
// the API base URL.
func (c *Config) ResolvedAssessmentURL() string {
	if c.AssessmentURL != "" {
		return c.AssessmentURL
	}
	return cmp.Or(c.APIBaseURL, DefaultAPIBaseURL) + AssessmentPath
}
