// Package llm provides the text-completion clients used for skill extraction.
// The provider is selected by configuration; callers only see the Client interface.
package llm

import (
	"net/http"
	"strings"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderOpenAI is the OpenAI chat completions API
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Config holds the settings needed to build a Client.
type Config struct {
	Provider Provider
	Model    string
	APIKey   string
	// BaseURL overrides the provider endpoint, e.g. for a proxy or compatible gateway.
	BaseURL string
	// HTTPClient replaces the provider SDK's default transport when set.
	HTTPClient *http.Client
}

// defaultModels maps each provider to the model used when none is configured.
var defaultModels = map[Provider]string{
	ProviderOpenAI: "gpt-3.5-turbo",
	ProviderGemini: "gemini-2.5-flash-lite",
}

// DefaultConfig returns an OpenAI configuration without credentials.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Model:    defaultModels[ProviderOpenAI],
	}
}

// ModelName returns the configured model, or the provider default when unset.
func (c *Config) ModelName() string {
	if model := strings.TrimSpace(c.Model); model != "" {
		return model
	}
	return defaultModels[c.Provider]
}
