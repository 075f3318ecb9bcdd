package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/db"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/tracing"
)

// Sync outcomes reported by /api/sync-user.
const (
	SyncExists  = "EXISTS"
	SyncCreated = "CREATED"
)

// UserStore persists users. *db.DB implements it.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*db.User, error)
	CreateUser(ctx context.Context, u *db.User) (bool, error)
}

// ProviderUser is the profile the identity provider holds for a subject.
type ProviderUser struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// IdentityProvider looks up users on the identity provider's backend API.
type IdentityProvider interface {
	GetUser(ctx context.Context, userID string) (*ProviderUser, error)
}

// UserService mirrors identity-provider users into the local database.
type UserService struct {
	db       UserStore
	provider IdentityProvider
}

// NewUserService creates a new UserService. provider may be nil, in which
// case users are stored with their id only.
func NewUserService(store UserStore, provider IdentityProvider) *UserService {
	return &UserService{db: store, provider: provider}
}

// Sync makes sure userID has a local row and reports whether it was created.
func (s *UserService) Sync(ctx context.Context, userID string) (string, error) {
	existing, err := s.db.GetUser(ctx, userID)
	if err != nil {
		return "", &ErrUserSync{UserID: userID, Err: err}
	}
	if existing != nil {
		return SyncExists, nil
	}

	u := &db.User{ID: userID}
	if s.provider != nil {
		profile, err := s.provider.GetUser(ctx, userID)
		if err != nil {
			return "", &ErrUserSync{UserID: userID, Err: err}
		}
		u.Email = profile.Email
		u.FirstName = profile.FirstName
		u.LastName = profile.LastName
	}

	created, err := s.db.CreateUser(ctx, u)
	if err != nil {
		return "", &ErrUserSync{UserID: userID, Err: err}
	}
	if !created {
		// A concurrent sync won the insert.
		return SyncExists, nil
	}
	logger.Ctx(ctx).Info().Str("user_id", userID).Msg("user created")
	return SyncCreated, nil
}

// ProviderClient calls the identity provider's backend users API with a
// secret key.
type ProviderClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewProviderClient returns a client for cfg, or nil when no secret key is
// configured.
func NewProviderClient(cfg config.AuthConfig, client *http.Client) *ProviderClient {
	if cfg.ProviderSecretKey == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ProviderClient{
		baseURL:   strings.TrimRight(cfg.ProviderAPIURL, "/"),
		secretKey: cfg.ProviderSecretKey,
		client:    client,
	}
}

type providerEmail struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type providerUserResponse struct {
	ID                    string          `json:"id"`
	FirstName             *string         `json:"first_name"`
	LastName              *string         `json:"last_name"`
	PrimaryEmailAddressID string          `json:"primary_email_address_id"`
	EmailAddresses        []providerEmail `json:"email_addresses"`
}

// GetUser fetches one user. The primary email is preferred, then the first.
func (c *ProviderClient) GetUser(ctx context.Context, userID string) (*ProviderUser, error) {
	ctx, span := tracing.Tracer("server").Start(ctx, "ProviderClient.GetUser")
	defer span.End()

	endpoint := c.baseURL + "/users/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("failed to fetch user: status %d", resp.StatusCode)
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return nil, err
	}

	var body providerUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}

	u := &ProviderUser{ID: body.ID}
	if body.FirstName != nil {
		u.FirstName = *body.FirstName
	}
	if body.LastName != nil {
		u.LastName = *body.LastName
	}
	for _, e := range body.EmailAddresses {
		if e.ID == body.PrimaryEmailAddressID {
			u.Email = e.EmailAddress
			break
		}
	}
	if u.Email == "" && len(body.EmailAddresses) > 0 {
		u.Email = body.EmailAddresses[0].EmailAddress
	}
	return u, nil
}
