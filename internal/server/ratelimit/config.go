package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/resume-screener/internal/config"
)

// EndpointConfig is the limit for requests matching a path and method.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends with "/"
	Method string        // HTTP method
	Limit  int           // requests per window; zero or less means unlimited
	Window time.Duration // refill window
	Burst  int           // bucket capacity, defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// FromSettings converts the ratelimit section of the application config.
// extractOnUpload puts single uploads in the model-backed budget.
func FromSettings(s config.RateLimitConfig, extractOnUpload bool) *Config {
	if !s.Enabled {
		return &Config{Enabled: false}
	}

	window := s.Window
	if window <= 0 {
		window = time.Minute
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    s.DefaultLimit,
		DefaultWindow:   window,
		CleanupInterval: s.CleanupInterval,
		Whitelist:       toSet(s.Whitelist),
		Blacklist:       toSet(s.Blacklist),
		EndpointConfigs: DefaultEndpointConfigs(s.LLMLimit, window, extractOnUpload),
	}
}

// DefaultEndpointConfigs returns the per-route limits. Routes that call the model share
// the llmLimit budget; credential routes get a small fixed budget against guessing.
// Single uploads call the model only when extractOnUpload is set.
func DefaultEndpointConfigs(llmLimit int, window time.Duration, extractOnUpload bool) []EndpointConfig {
	burst := llmLimit / 5
	if burst < 1 {
		burst = 1
	}

	configs := []EndpointConfig{
		// model-backed
		{Path: "/resumes/upload-multiple", Method: http.MethodPost, Limit: llmLimit, Window: window, Burst: burst},
		{Path: "/resumes/extract-skills/", Method: http.MethodPost, Limit: llmLimit, Window: window, Burst: burst},
		{Path: "/jobs/create-job", Method: http.MethodPost, Limit: llmLimit, Window: window, Burst: burst},

		// credentials
		{Path: "/users/login", Method: http.MethodPost, Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/users/register", Method: http.MethodPost, Limit: 10, Window: time.Minute, Burst: 3},
	}
	if extractOnUpload {
		configs = append(configs, EndpointConfig{
			Path: "/resumes/upload-resume", Method: http.MethodPost, Limit: llmLimit, Window: window, Burst: burst,
		})
	}
	return configs
}

func toSet(items []string) map[string]bool {
	result := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result[item] = true
		}
	}
	return result
}
