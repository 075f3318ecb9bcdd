package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/matching"
	"github.com/jonathan/job-matcher/internal/orchestrator"
	"github.com/jonathan/job-matcher/internal/resume"
	"github.com/jonathan/job-matcher/internal/server/middleware"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenValidator accepts "token-<user>" and returns <user> as the subject.
type tokenValidator struct{}

type subject string

func (s subject) GetUserID() string { return string(s) }

func (tokenValidator) ValidateToken(_ context.Context, token string) (middleware.UserIDGetter, error) {
	user, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return nil, errors.New("bad token")
	}
	return subject(user), nil
}

type fakeListings struct {
	gotLimit int
	err      error
}

func (f *fakeListings) Fetch(_ context.Context, limit int) ([]types.JobListing, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	jobs := []types.JobListing{
		{Company: "Acme", Role: "SWE Intern", Location: "SF", Link: "https://acme.example/1"},
		{Company: "Globex", Role: "Data Intern", Location: "NYC", Link: types.NoLink},
		{Company: "Initech", Role: "Infra Intern", Location: "Remote", Link: "https://initech.example/1"},
	}
	if limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

type fakePostings map[string]string

func (f fakePostings) Fetch(_ context.Context, url string) (*types.Posting, error) {
	text, ok := f[url]
	if !ok {
		return nil, fmt.Errorf("render %s: 404", url)
	}
	return &types.Posting{URL: url, Text: text}, nil
}

type fakeResumes struct {
	mu       sync.Mutex
	uploads  map[string][]byte
	status   map[string]*resume.Status
	texts    map[string][2]string
	ingested []string
}

func newFakeResumes() *fakeResumes {
	return &fakeResumes{
		uploads: map[string][]byte{},
		status:  map[string]*resume.Status{},
		texts:   map[string][2]string{},
	}
}

func (f *fakeResumes) Upload(_ context.Context, userID, filename string, data []byte) (*resume.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(data) == 0 {
		return nil, resume.ErrEmptyFile
	}
	f.uploads[userID] = data
	return &resume.UploadResult{Message: "Resume uploaded; processing started", ID: "r-" + userID, Filename: filename}, nil
}

func (f *fakeResumes) Status(_ context.Context, userID string) (*resume.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.status[userID]
	if !ok {
		return nil, resume.ErrNoResume
	}
	return st, nil
}

func (f *fakeResumes) Ingest(_ context.Context, resumeID string, _ types.IngestRequest) (*types.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if resumeID == "" {
		resumeID = "generated"
	}
	f.ingested = append(f.ingested, resumeID)
	return &types.IngestResult{ResumeID: resumeID, ChunksStored: 3}, nil
}

func (f *fakeResumes) Text(_ context.Context, userID string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.texts[userID]
	if !ok {
		return "", "", resume.ErrNoResume
	}
	return t[0], t[1], nil
}

// recordingStrategy echoes the request it scored.
type recordingStrategy struct {
	name string
	got  matching.Request
}

func (s *recordingStrategy) Name() string { return s.name }

func (s *recordingStrategy) Match(_ context.Context, req matching.Request) *types.MatchResult {
	s.got = req
	return &types.MatchResult{Strategy: s.name, Score: 77, Evidence: []string{"Go"}, MissingSkills: []string{}}
}

type testServer struct {
	*Server
	listings *fakeListings
	resumes  *fakeResumes
	users    *fakeUserStore
	provider *fakeProvider
	llm      *recordingStrategy
	vector   *recordingStrategy
}

func newTestServer(t *testing.T, mutate ...func(*config.Config, *Deps)) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           8000,
			MaxUploadBytes: 1 << 10,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Listings: config.ListingsConfig{DefaultLimit: 40},
		Matching: config.MatchingConfig{Strategy: types.StrategyLLM},
	}
	ts := &testServer{
		listings: &fakeListings{},
		resumes:  newFakeResumes(),
		users:    newFakeUserStore(),
		provider: &fakeProvider{user: &ProviderUser{Email: "ada@example.com"}},
		llm:      &recordingStrategy{name: types.StrategyLLM},
		vector:   &recordingStrategy{name: types.StrategyVector},
	}
	deps := Deps{
		Users:    ts.users,
		Provider: ts.provider,
		Verifier: tokenValidator{},
		Listings: ts.listings,
		Postings: fakePostings{"https://jobs.example/1": "Backend intern, Go and Postgres"},
		Resumes:  ts.resumes,
		Strategies: map[string]matching.Strategy{
			types.StrategyLLM:    ts.llm,
			types.StrategyVector: ts.vector,
		},
	}
	for _, m := range mutate {
		m(cfg, &deps)
	}
	ts.Server = New(cfg, deps)
	t.Cleanup(func() {
		if ts.rateLimiter != nil {
			ts.rateLimiter.Stop()
		}
	})
	return ts
}

func (ts *testServer) do(method, path, user string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if user != "" {
		req.Header.Set("Authorization", "Bearer token-"+user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) doJSON(method, path, user string, payload any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(payload)
	return ts.do(method, path, user, bytes.NewReader(data), "application/json")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func multipartFile(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/health", "", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestGetJobs(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/get_jobs", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40, ts.listings.gotLimit)
	jobs := decode[[]types.JobListing](t, w)
	require.Len(t, jobs, 3)
	assert.Equal(t, types.NoLink, jobs[1].Link)

	w = ts.do(http.MethodGet, "/api/get_jobs?limit=2", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.JobListing](t, w), 2)

	for _, bad := range []string{"0", "-1", "abc"} {
		w = ts.do(http.MethodGet, "/api/get_jobs?limit="+bad, "", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestGetJobs_UpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.listings.err = errors.New("status 503")

	w := ts.do(http.MethodGet, "/api/get_jobs", "", nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Failed to fetch jobs: status 503", decode[map[string]string](t, w)["error"])
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	ts := newTestServer(t)
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/upload-resume"},
		{http.MethodGet, "/api/resume-status"},
		{http.MethodPost, "/api/sync-user"},
		{http.MethodPost, "/api/resume"},
		{http.MethodPost, "/api/match"},
	}
	for _, r := range routes {
		t.Run(r.path, func(t *testing.T) {
			req := httptest.NewRequest(r.method, r.path, nil)
			req.Header.Set("Authorization", "Bearer forged")
			w := httptest.NewRecorder()
			ts.Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, middleware.InvalidAuthMessage, decode[map[string]string](t, w)["error"])
		})
	}
}

func TestProtectedRoutes_NoVerifier(t *testing.T) {
	ts := newTestServer(t, func(_ *config.Config, d *Deps) { d.Verifier = nil })
	w := ts.do(http.MethodGet, "/api/resume-status", "user_1", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUploadResume(t *testing.T) {
	ts := newTestServer(t)

	body, ct := multipartFile(t, "file", "cv.pdf", []byte("%PDF-1.4"))
	w := ts.do(http.MethodPost, "/api/upload-resume", "user_1", body, ct)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	res := decode[resume.UploadResult](t, w)
	assert.Equal(t, "r-user_1", res.ID)
	assert.Equal(t, "cv.pdf", res.Filename)
	assert.Equal(t, []byte("%PDF-1.4"), ts.resumes.uploads["user_1"])
}

func TestUploadResume_Rejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		field    string
		filename string
		data     []byte
		want     int
	}{
		{name: "not a pdf", field: "file", filename: "cv.docx", data: []byte("x"), want: http.StatusBadRequest},
		{name: "wrong field", field: "resume", filename: "cv.pdf", data: []byte("x"), want: http.StatusBadRequest},
		{name: "empty", field: "file", filename: "cv.pdf", data: nil, want: http.StatusBadRequest},
		{name: "too large", field: "file", filename: "cv.pdf", data: bytes.Repeat([]byte("a"), 4<<10), want: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartFile(t, tt.field, tt.filename, tt.data)
			w := ts.do(http.MethodPost, "/api/upload-resume", "user_1", body, ct)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestResumeStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/resume-status", "user_1", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.resumes.status["user_1"] = &resume.Status{
		Status:   "completed",
		ResumeID: "r1",
		Matches:  []types.JobMatch{{Company: "Acme", MatchDetails: types.MatchDetails{Score: 91}}},
		Research: map[string]string{"Acme": "notes"},
	}
	w = ts.do(http.MethodGet, "/api/resume-status", "user_1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[resume.Status](t, w)
	assert.Equal(t, "completed", st.Status)
	require.Len(t, st.Matches, 1)
	assert.Equal(t, "notes", st.Research["Acme"])
}

func TestSyncUser(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/sync-user", "user_1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, SyncUserResponse{OK: true, Status: SyncCreated}, decode[SyncUserResponse](t, w))

	w = ts.do(http.MethodPost, "/api/sync-user", "user_1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, SyncExists, decode[SyncUserResponse](t, w).Status)
}

func TestSyncUser_ProviderFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.provider.err = errors.New("status 500")

	w := ts.do(http.MethodPost, "/api/sync-user", "user_2", nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to sync user data", decode[map[string]string](t, w)["error"])
}

func TestIngestResume(t *testing.T) {
	ts := newTestServer(t)

	w := ts.doJSON(http.MethodPost, "/api/resume", "user_1", map[string]any{
		"resume_id":   "r-42",
		"resume":      map[string]any{"text": "Go developer", "skills": []string{"Go"}},
		"preferences": map[string]any{"role": []string{"backend"}, "experience_level": "intern"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[types.IngestResult](t, w)
	assert.Equal(t, "r-42", res.ResumeID)
	assert.Equal(t, 3, res.ChunksStored)

	w = ts.doJSON(http.MethodPost, "/api/resume", "user_1", map[string]any{
		"resume": map[string]any{"text": "Go developer"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "validation error")

	w = ts.do(http.MethodPost, "/api/resume", "user_1", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatch_LLMWithText(t *testing.T) {
	ts := newTestServer(t)

	w := ts.doJSON(http.MethodPost, "/api/match", "user_1", MatchRequest{
		JobDescription: "Go backend role",
		ResumeText:     "Go developer",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[types.MatchResult](t, w)
	assert.Equal(t, types.StrategyLLM, res.Strategy)
	assert.Equal(t, 77.0, res.Score)
	assert.Equal(t, "Go backend role", ts.llm.got.JobDescription)
	assert.Equal(t, "Go developer", ts.llm.got.ResumeText)
}

func TestMatch_URLAndUploadedResume(t *testing.T) {
	ts := newTestServer(t)
	ts.resumes.texts["user_1"] = [2]string{"r-uploaded", "Uploaded resume text"}

	w := ts.doJSON(http.MethodPost, "/api/match", "user_1", MatchRequest{
		URL:      "https://jobs.example/1",
		Strategy: types.StrategyVector,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Backend intern, Go and Postgres", ts.vector.got.JobDescription)
	assert.Equal(t, "r-uploaded", ts.vector.got.ResumeID)
	assert.Empty(t, ts.vector.got.ResumeText)
}

func TestMatch_Errors(t *testing.T) {
	ts := newTestServer(t, func(_ *config.Config, d *Deps) {
		delete(d.Strategies, types.StrategyVector)
	})

	tests := []struct {
		name string
		req  MatchRequest
		want int
	}{
		{name: "no job", req: MatchRequest{ResumeText: "x"}, want: http.StatusBadRequest},
		{name: "bad url", req: MatchRequest{URL: "not a url", ResumeText: "x"}, want: http.StatusBadRequest},
		{name: "unknown strategy", req: MatchRequest{JobDescription: "x", ResumeText: "x", Strategy: "magic"}, want: http.StatusBadRequest},
		{name: "strategy not configured", req: MatchRequest{JobDescription: "x", ResumeID: "r", Strategy: types.StrategyVector}, want: http.StatusBadRequest},
		{name: "no resume anywhere", req: MatchRequest{JobDescription: "x"}, want: http.StatusBadRequest},
		{name: "posting fetch fails", req: MatchRequest{URL: "https://jobs.example/missing", ResumeText: "x"}, want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.doJSON(http.MethodPost, "/api/match", "user_1", tt.req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestScanStream(t *testing.T) {
	var got orchestrator.ScanInput
	ts := newTestServer(t, func(_ *config.Config, d *Deps) {
		d.Scan = func(_ context.Context, in orchestrator.ScanInput, onProgress orchestrator.ProgressCallback) (*types.ScanReport, error) {
			got = in
			onProgress(orchestrator.ProgressEvent{Step: "listings", Category: "ingestion", Message: "Found 1 listings"})
			onProgress(orchestrator.ProgressEvent{Step: "scan", Category: "matching", Message: "Scored 1 jobs"})
			return &types.ScanReport{
				Matches:  []types.JobMatch{{Company: "Acme", MatchDetails: types.MatchDetails{Score: 90}}},
				Research: map[string]string{},
			}, orchestrator.ErrStepLimit
		}
	})

	w := ts.doJSON(http.MethodPost, "/api/scan/stream", "user_1", ScanRequest{Limit: 2})
	assert.Equal(t, http.StatusNotFound, w.Code, "no uploaded resume yet")

	ts.resumes.texts["user_1"] = [2]string{"r1", "Go developer"}
	w = ts.doJSON(http.MethodPost, "/api/scan/stream", "user_1", ScanRequest{Limit: 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: step\n"))
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, `"company":"Acme"`)
	assert.Equal(t, orchestrator.ScanInput{ResumeID: "r1", ResumeText: "Go developer", Limit: 2}, got)
}

func TestScanStream_DisabledWithoutScanner(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/scan/stream", "user_1", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/upload-resume", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config, _ *Deps) {
		c.Server.RateLimit = config.RateLimitConfig{
			Enabled:       true,
			DefaultLimit:  1000,
			DefaultWindow: time.Minute,
		}
	})

	// Uploads allow a burst of two per client.
	for i := 0; i < 2; i++ {
		w := ts.do(http.MethodPost, "/api/upload-resume", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	}

	w := ts.do(http.MethodPost, "/api/upload-resume", "", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decode[map[string]any](t, w)["error"])

	// Other endpoints have their own buckets.
	w = ts.do(http.MethodGet, "/api/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExtractClientID(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", ts.extractClientID(req))

	req.RemoteAddr = "garbage"
	assert.Equal(t, "garbage", ts.extractClientID(req))
}

func TestSSEWriter(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, sse.WriteEvent("step", map[string]string{"message": "hello"}))
	sse.WriteError("boom")

	body := w.Body.String()
	assert.Contains(t, body, "event: step\ndata: {\"message\":\"hello\"}\n\n")
	assert.Contains(t, body, "event: error\n")
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config, _ *Deps) {
		c.Server.Port = 0
		c.Server.ShutdownTimeout = time.Second
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
