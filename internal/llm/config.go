// Package llm provides model configuration and a provider-neutral client
// used to generate AI eligibility assessments.
package llm

import (
	"fmt"
	"maps"
	"strings"
)

// ModelTier is the capability level a caller asks for. Providers map tiers
// to concrete models.
type ModelTier string

const (
	TierLite     ModelTier = "lite"
	TierStandard ModelTier = "standard"
	// TierAdvanced is used for eligibility reasoning and action plans.
	TierAdvanced ModelTier = "advanced"
)

// Provider names an LLM vendor.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

var defaultModels = map[Provider]map[ModelTier]string{
	ProviderGemini: {
		TierLite:     "gemini-2.5-flash-lite",
		TierStandard: "gemini-2.5-flash",
		TierAdvanced: "gemini-2.5-pro",
	},
	ProviderOpenAI: {
		TierLite:     "gpt-4o-mini",
		TierStandard: "gpt-4o",
		TierAdvanced: "gpt-4.1",
	},
	ProviderAnthropic: {
		TierLite:     "claude-3-5-haiku-latest",
		TierStandard: "claude-sonnet-4-5",
		TierAdvanced: "claude-opus-4-1",
	},
}

// ParseProvider parses a provider name, case-insensitively. Empty means Gemini.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProviderGemini, nil
	}
	if _, ok := defaultModels[p]; !ok {
		return "", fmt.Errorf("unknown LLM provider %q (expected gemini, openai or anthropic)", s)
	}
	return p, nil
}

// Config is a provider plus its tier-to-model table.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// ConfigFor returns the default models for p. Unknown providers get Gemini.
func ConfigFor(p Provider) *Config {
	models, ok := defaultModels[p]
	if !ok {
		p, models = ProviderGemini, defaultModels[ProviderGemini]
	}
	return &Config{Provider: p, Models: maps.Clone(models)}
}

// DefaultConfig is ConfigFor(ProviderGemini).
func DefaultConfig() *Config { return ConfigFor(ProviderGemini) }

// DefaultOpenAIConfig is ConfigFor(ProviderOpenAI).
func DefaultOpenAIConfig() *Config { return ConfigFor(ProviderOpenAI) }

// DefaultAnthropicConfig is ConfigFor(ProviderAnthropic).
func DefaultAnthropicConfig() *Config { return ConfigFor(ProviderAnthropic) }

// GetModel returns the model for tier, falling back to the standard and
// then the lite model. It returns "" when none is configured.
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if m := c.Models[t]; m != "" {
			return m
		}
	}
	return ""
}

// WithModel returns a copy of c with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := &Config{Provider: c.Provider, Models: maps.Clone(c.Models)}
	if out.Models == nil {
		out.Models = map[ModelTier]string{}
	}
	out.Models[tier] = model
	return out
}
