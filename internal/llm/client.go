package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey is returned when no credential is configured for the provider.
var ErrMissingAPIKey = errors.New("LLM API key not configured")

// Client is an abstraction over LLM providers
type Client interface {
	// Complete sends a system instruction and user text and returns the raw reply text.
	Complete(ctx context.Context, systemInstruction, userText string) (string, error)
	// Model returns the provider model name used for completions
	Model() string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration.
// It returns ErrMissingAPIKey when cfg carries no key.
func NewClient(ctx context.Context, cfg *Config) (Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(cfg), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

// unavailableClient fails every call with a fixed error. It stands in for a provider
// that could not be configured so the server can still serve non-LLM routes.
type unavailableClient struct {
	err error
}

// Unavailable returns a Client whose Complete always fails with err.
func Unavailable(err error) Client {
	if err == nil {
		err = ErrMissingAPIKey
	}
	return &unavailableClient{err: err}
}

func (c *unavailableClient) Complete(context.Context, string, string) (string, error) {
	return "", c.err
}

func (c *unavailableClient) Model() string { return "" }

func (c *unavailableClient) Close() error { return nil }
