package server

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/server/middleware"
)

// DefaultRefetchInterval bounds how often an unknown kid can trigger a JWKS
// refetch.
const DefaultRefetchInterval = 30 * time.Second

// Claims are the identity-provider session claims. Only the registered
// claims are read; the subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// GetUserID returns the token subject.
// This implements the middleware.UserIDGetter interface.
func (c *Claims) GetUserID() string {
	return c.Subject
}

// JWKSVerifier verifies RS256 tokens against a remote JSON Web Key Set.
// Keys are cached for a TTL and the set is refetched early when a token
// names a kid the cache does not know, at most once per refetch interval.
type JWKSVerifier struct {
	url    string
	issuer string
	ttl    time.Duration
	client *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	refetch   *rate.Limiter
	now       func() time.Time
}

// NewJWKSVerifier creates a verifier from the auth settings. client may be
// nil.
func NewJWKSVerifier(cfg config.AuthConfig, client *http.Client) *JWKSVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.KeyCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &JWKSVerifier{
		url:     cfg.JWKSURL,
		issuer:  cfg.Issuer,
		ttl:     ttl,
		client:  client,
		refetch: rate.NewLimiter(rate.Every(DefaultRefetchInterval), 1),
		now:     time.Now,
	}
}

// ValidateToken verifies the signature, expiry and, when configured, the
// issuer. The audience is not checked.
// This implements the middleware.TokenValidator interface.
func (v *JWKSVerifier) ValidateToken(ctx context.Context, tokenString string) (middleware.UserIDGetter, error) {
	claims, err := v.Verify(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Verify parses tokenString and returns its claims.
func (v *JWKSVerifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token string is empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token header has no kid")
		}
		return v.key(ctx, kid)
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("token expired: %w", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("malformed token: %w", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("invalid token signature: %w", err)
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

// key returns the public key for kid, fetching the set when the cache is
// stale or, rate limited, when kid is unknown.
func (v *JWKSVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	stale := v.keys == nil || now.Sub(v.fetchedAt) >= v.ttl
	if !stale {
		if k, ok := v.keys[kid]; ok {
			return k, nil
		}
		if !v.refetch.AllowN(now, 1) {
			return nil, fmt.Errorf("unknown signing key %q", kid)
		}
		logger.Ctx(ctx).Info().Str("kid", kid).Msg("unknown signing key, refetching JWKS")
	}

	keys, err := v.fetch(ctx)
	if err != nil {
		if v.keys == nil {
			return nil, err
		}
		// Keep serving the previous set; the next call retries.
		logger.Ctx(ctx).Warn().Err(err).Msg("JWKS refresh failed")
	} else {
		v.keys = keys
		v.fetchedAt = now
	}

	k, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return k, nil
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *JWKSVerifier) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	if v.url == "" {
		return nil, fmt.Errorf("no JWKS URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch JWKS: status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := rsaPublicKey(k.N, k.E)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("kid", k.Kid).Msg("skipping malformed JWK")
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("JWKS has no usable RSA signing keys")
	}
	return keys, nil
}

func rsaPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(eb)
	if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("unsupported exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp.Int64())}, nil
}
