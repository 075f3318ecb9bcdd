package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthConfig holds settings for verifying identity-provider session tokens.
// Tokens are RS256 JWTs signed by keys published at JWKSURL.
type AuthConfig struct {
	JWKSURL           string        `mapstructure:"jwks_url" validate:"omitempty,url"`
	Issuer            string        `mapstructure:"issuer"`
	KeyCacheTTL       time.Duration `mapstructure:"key_cache_ttl"`
	ProviderAPIURL    string        `mapstructure:"provider_api_url" validate:"omitempty,url"`
	ProviderSecretKey string        `mapstructure:"provider_secret_key"`
}

// Enabled reports whether protected routes can verify tokens.
func (c AuthConfig) Enabled() bool {
	return c.JWKSURL != ""
}

// Normalize fills defaults and rejects unusable combinations.
func (c *AuthConfig) Normalize() error {
	c.JWKSURL = strings.TrimSpace(c.JWKSURL)
	c.ProviderAPIURL = strings.TrimRight(strings.TrimSpace(c.ProviderAPIURL), "/")
	if c.KeyCacheTTL <= 0 {
		c.KeyCacheTTL = 10 * time.Minute
	}
	if c.JWKSURL != "" && !strings.HasPrefix(c.JWKSURL, "https://") && !strings.HasPrefix(c.JWKSURL, "http://") {
		return fmt.Errorf("auth.jwks_url must be an http(s) URL, got: %q", c.JWKSURL)
	}
	return nil
}
