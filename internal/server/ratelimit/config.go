package ratelimit

import (
	"strings"
	"time"

	"github.com/jonathan/job-matcher/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// FromSettings builds a limiter Config from the server settings, adding the
// built-in endpoint limits.
func FromSettings(s config.RateLimitConfig) *Config {
	if !s.Enabled {
		return &Config{Enabled: false}
	}
	window := s.DefaultWindow
	if window <= 0 {
		window = time.Minute
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    s.DefaultLimit,
		DefaultWindow:   window,
		CleanupInterval: s.CleanupInterval,
		Whitelist:       parseIPList(s.Whitelist),
		Blacklist:       parseIPList(s.Blacklist),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Expensive: each call renders pages or calls a model
		{Path: "/api/upload-resume", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/api/match", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},
		{Path: "/api/resume", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/api/scan/stream", Method: "POST", Limit: 6, Window: time.Hour, Burst: 1},

		// Writes
		{Path: "/api/sync-user", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},

		// Listings fan out to the upstream README
		{Path: "/api/get_jobs", Method: "GET", Limit: 60, Window: time.Minute, Burst: 10},
	}
}

// parseIPList turns a list of addresses into a set, ignoring blanks.
func parseIPList(list []string) map[string]bool {
	result := make(map[string]bool, len(list))
	for _, ip := range list {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
