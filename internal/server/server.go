package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/matching"
	"github.com/jonathan/job-matcher/internal/orchestrator"
	"github.com/jonathan/job-matcher/internal/resume"
	"github.com/jonathan/job-matcher/internal/server/middleware"
	"github.com/jonathan/job-matcher/internal/server/ratelimit"
	"github.com/jonathan/job-matcher/internal/types"
)

// ResumeService is the resume lifecycle the API exposes. *resume.Service
// implements it.
type ResumeService interface {
	Upload(ctx context.Context, userID, filename string, data []byte) (*resume.UploadResult, error)
	Status(ctx context.Context, userID string) (*resume.Status, error)
	Ingest(ctx context.Context, resumeID string, req types.IngestRequest) (*types.IngestResult, error)
	Text(ctx context.Context, userID string) (string, string, error)
}

// ScanFunc runs one scan for a resume, reporting progress through
// onProgress.
type ScanFunc func(ctx context.Context, in orchestrator.ScanInput, onProgress orchestrator.ProgressCallback) (*types.ScanReport, error)

// Deps are the collaborators the handlers call. Verifier may be nil, in
// which case every protected route answers 401. Scan may be nil, which
// disables the streaming scan route.
type Deps struct {
	Users      UserStore
	Provider   IdentityProvider
	Verifier   middleware.TokenValidator
	Listings   orchestrator.ListingSource
	Postings   orchestrator.PostingSource
	Resumes    ResumeService
	Strategies map[string]matching.Strategy
	Scan       ScanFunc
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	cfg             config.ServerConfig
	listingLimit    int
	defaultStrategy string
	deps            Deps
	rateLimiter     *ratelimit.Limiter
	authHandler     *AuthHandler
	validator       *validator.Validate
	allowedOrigins  []string
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:             cfg.Server,
		listingLimit:    cfg.Listings.DefaultLimit,
		defaultStrategy: cfg.Matching.Strategy,
		deps:            deps,
		validator:       validator.New(),
		allowedOrigins:  cfg.Server.AllowedOrigins,
	}
	if s.listingLimit <= 0 {
		s.listingLimit = 40
	}
	if s.defaultStrategy == "" {
		s.defaultStrategy = types.StrategyLLM
	}
	if cfg.Server.RateLimit.Enabled {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.FromSettings(cfg.Server.RateLimit))
	}
	s.authHandler = NewAuthHandler(NewUserService(deps.Users, deps.Provider))

	verifier := deps.Verifier
	if verifier == nil {
		logger.Warn().Msg("auth.jwks_url is not set; protected routes will reject every request")
		verifier = rejectAll{}
	}
	protected := middleware.AuthMiddleware(verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/get_jobs", s.handleGetJobs)

	mux.Handle("POST /api/upload-resume", protected(http.HandlerFunc(s.handleUploadResume)))
	mux.Handle("GET /api/resume-status", protected(http.HandlerFunc(s.handleResumeStatus)))
	mux.Handle("POST /api/sync-user", protected(http.HandlerFunc(s.authHandler.SyncUser)))
	mux.Handle("POST /api/resume", protected(http.HandlerFunc(s.handleIngestResume)))
	mux.Handle("POST /api/match", protected(http.HandlerFunc(s.handleMatch)))
	if deps.Scan != nil {
		mux.Handle("POST /api/scan/stream", protected(http.HandlerFunc(s.handleScanStream)))
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	logger.Info().Msg("server stopped")
	return nil
}

// withCORS adds CORS headers for the configured origins
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(s.allowedOrigins, "*") || slices.Contains(s.allowedOrigins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			logger.Ctx(r.Context()).Warn().
				Str("client", clientID).
				Str("path", r.URL.Path).
				Int("limit", info.Limit).
				Msg("rate limit exceeded")
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging adds request logging and a request-scoped logger
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLog := logger.With("http").With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		ctx := reqLog.WithContext(r.Context())

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		reqLog.Info().
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; forwarded headers are not
// trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	writeJSON(w, http.StatusTooManyRequests, response)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("error encoding JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// rejectAll stands in for a verifier when auth is not configured.
type rejectAll struct{}

func (rejectAll) ValidateToken(context.Context, string) (middleware.UserIDGetter, error) {
	return nil, fmt.Errorf("%w: token verification is not configured", ErrUnauthenticated)
}
