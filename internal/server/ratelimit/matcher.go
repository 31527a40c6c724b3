package ratelimit

import (
	"net/http"
	"strings"
)

var unlimited = &EndpointConfig{}

// MatchEndpoint returns the configuration for a request, or nil when the default limit
// applies. Exact paths win over prefixes; the health and root routes are never limited.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == http.MethodGet && (path == "/health" || path == "/") {
		return unlimited
	}

	for i := range configs {
		if configs[i].Method == method && configs[i].Path == path {
			return &configs[i]
		}
	}

	for i := range configs {
		c := &configs[i]
		if c.Method == method && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			return c
		}
	}

	return nil
}
