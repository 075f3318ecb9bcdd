package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonathan/job-matcher/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jwksFixture serves a mutable key set and signs tokens with its keys.
type jwksFixture struct {
	t      *testing.T
	server *httptest.Server
	hits   atomic.Int32

	mu     sync.Mutex
	keys   map[string]*rsa.PrivateKey
	served []string
}

func newJWKSFixture(t *testing.T, kids ...string) *jwksFixture {
	t.Helper()
	f := &jwksFixture{t: t, keys: map[string]*rsa.PrivateKey{}}
	for _, kid := range kids {
		f.addKey(kid, true)
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f.hits.Add(1)
		f.mu.Lock()
		defer f.mu.Unlock()
		set := jwkSet{}
		for _, kid := range f.served {
			pub := f.keys[kid].PublicKey
			set.Keys = append(set.Keys, jwk{
				Kty: "RSA",
				Kid: kid,
				Use: "sig",
				N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(f.server.Close)
	return f
}

// addKey creates a signing key; published keys appear in the JWKS.
func (f *jwksFixture) addKey(kid string, publish bool) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(f.t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[kid] = key
	if publish {
		f.served = append(f.served, kid)
	}
}

func (f *jwksFixture) publish(kid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.served = append(f.served, kid)
}

func (f *jwksFixture) sign(kid string, claims jwt.RegisteredClaims) string {
	f.mu.Lock()
	key := f.keys[kid]
	f.mu.Unlock()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(f.t, err)
	return signed
}

func validClaims(sub string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    "https://clerk.example.com",
		Audience:  jwt.ClaimStrings{"some-frontend"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func (f *jwksFixture) verifier(issuer string) *JWKSVerifier {
	return NewJWKSVerifier(config.AuthConfig{JWKSURL: f.server.URL, Issuer: issuer}, f.server.Client())
}

func TestJWKSVerifier_ValidToken(t *testing.T) {
	f := newJWKSFixture(t, "k1")
	v := f.verifier("https://clerk.example.com")

	got, err := v.ValidateToken(context.Background(), f.sign("k1", validClaims("user_2abc")))
	require.NoError(t, err)
	assert.Equal(t, "user_2abc", got.GetUserID())

	// Second verification is served from the cached key set.
	_, err = v.Verify(context.Background(), f.sign("k1", validClaims("user_2abc")))
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.hits.Load())
}

func TestJWKSVerifier_Rejects(t *testing.T) {
	f := newJWKSFixture(t, "k1")
	f.addKey("rogue", false)

	expired := validClaims("user_1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims("user_1")
	noExpiry.ExpiresAt = nil

	wrongIssuer := validClaims("user_1")
	wrongIssuer.Issuer = "https://evil.example.com"

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("user_1"))
	hs.Header["kid"] = "k1"
	hsToken, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr string
	}{
		{name: "empty", token: "", wantErr: "empty"},
		{name: "malformed", token: "not-a-jwt", wantErr: "malformed"},
		{name: "expired", token: f.sign("k1", expired), wantErr: "token expired"},
		{name: "no expiry", token: f.sign("k1", noExpiry), wantErr: "failed to parse"},
		{name: "wrong issuer", token: f.sign("k1", wrongIssuer), wantErr: "failed to parse"},
		{name: "hmac algorithm", token: hsToken, wantErr: "invalid token signature"},
		{name: "unknown key", token: f.sign("rogue", validClaims("user_1")), wantErr: "unknown signing key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.verifier("https://clerk.example.com").Verify(context.Background(), tt.token)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJWKSVerifier_IssuerOptional(t *testing.T) {
	f := newJWKSFixture(t, "k1")
	claims := validClaims("user_1")
	claims.Issuer = "https://anything.example.com"

	_, err := f.verifier("").Verify(context.Background(), f.sign("k1", claims))
	assert.NoError(t, err)
}

func TestJWKSVerifier_RefetchOnUnknownKid(t *testing.T) {
	f := newJWKSFixture(t, "k1")
	v := f.verifier("")
	ctx := context.Background()

	_, err := v.Verify(ctx, f.sign("k1", validClaims("user_1")))
	require.NoError(t, err)
	require.Equal(t, int32(1), f.hits.Load())

	// The provider rotates in a new key; the first token using it triggers
	// a refetch.
	f.addKey("k2", true)
	_, err = v.Verify(ctx, f.sign("k2", validClaims("user_1")))
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.hits.Load())

	// Unknown kids right after a refetch do not hit the JWKS endpoint again.
	f.addKey("k3", false)
	_, err = v.Verify(ctx, f.sign("k3", validClaims("user_1")))
	require.Error(t, err)
	assert.Equal(t, int32(2), f.hits.Load())

	// Once the interval has passed a refetch is allowed again.
	now := time.Now()
	v.now = func() time.Time { return now.Add(DefaultRefetchInterval + time.Second) }
	f.publish("k3")
	_, err = v.Verify(ctx, f.sign("k3", validClaims("user_1")))
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.hits.Load())
}

func TestJWKSVerifier_TTLExpiry(t *testing.T) {
	f := newJWKSFixture(t, "k1")
	v := f.verifier("")
	ctx := context.Background()

	_, err := v.Verify(ctx, f.sign("k1", validClaims("user_1")))
	require.NoError(t, err)

	now := time.Now()
	v.now = func() time.Time { return now.Add(11 * time.Minute) }
	_, err = v.Verify(ctx, f.sign("k1", validClaims("user_1")))
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.hits.Load())
}

func TestJWKSVerifier_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newJWKSFixture(t, "k1")
	v := NewJWKSVerifier(config.AuthConfig{JWKSURL: srv.URL}, srv.Client())
	_, err := v.Verify(context.Background(), f.sign("k1", validClaims("user_1")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestRSAPublicKey(t *testing.T) {
	_, err := rsaPublicKey("!!", "AQAB")
	assert.Error(t, err)

	_, err = rsaPublicKey("AQAB", base64.RawURLEncoding.EncodeToString([]byte{1}))
	assert.Error(t, err, "exponent 1 is rejected")

	key, err := rsaPublicKey("AQAB", "AQAB")
	require.NoError(t, err)
	assert.Equal(t, 65537, key.E)
}
