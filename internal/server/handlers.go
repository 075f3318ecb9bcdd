package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/matching"
	"github.com/jonathan/job-matcher/internal/orchestrator"
	"github.com/jonathan/job-matcher/internal/resume"
	"github.com/jonathan/job-matcher/internal/server/middleware"
	"github.com/jonathan/job-matcher/internal/types"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetJobs returns the newest listings as a JSON array.
func (s *Server) handleGetJobs(w http.ResponseWriter, r *http.Request) {
	limit := s.listingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	jobs, err := s.deps.Listings.Fetch(r.Context(), limit)
	if err != nil {
		err = &ErrUpstream{Op: "Failed to fetch jobs", Err: err}
		logger.Ctx(r.Context()).Error().Err(err).Msg("listing fetch failed")
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if jobs == nil {
		jobs = []types.JobListing{}
	}
	s.jsonResponse(w, http.StatusOK, jobs)
}

// handleUploadResume accepts a multipart PDF in the "file" field and queues
// it for processing.
func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, middleware.InvalidAuthMessage)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorResponse(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "A PDF file is required in the 'file' field")
		return
	}
	defer func() { _ = file.Close() }()

	if !resume.IsPDF(header.Filename) {
		s.errorResponse(w, http.StatusBadRequest, "Only pdf files are allowed")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	res, err := s.deps.Resumes.Upload(r.Context(), userID, header.Filename, data)
	if err != nil {
		status := HTTPStatus(err)
		if status == http.StatusInternalServerError {
			logger.Ctx(r.Context()).Error().Err(err).Str("user_id", userID).Msg("resume upload failed")
			s.errorResponse(w, status, "Failed to upload resume")
			return
		}
		s.errorResponse(w, status, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, res)
}

// handleResumeStatus reports the state of the caller's latest upload.
func (s *Server) handleResumeStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, middleware.InvalidAuthMessage)
		return
	}

	st, err := s.deps.Resumes.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, resume.ErrNoResume) {
			s.errorResponse(w, http.StatusNotFound, "No resume found")
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Str("user_id", userID).Msg("resume status failed")
		s.errorResponse(w, HTTPStatus(err), "Failed to load resume status")
		return
	}
	s.jsonResponse(w, http.StatusOK, st)
}

// IngestResumeRequest is the body of POST /api/resume. ResumeID is optional;
// supplying one replaces the chunks stored under it.
type IngestResumeRequest struct {
	ResumeID string `json:"resume_id,omitempty"`
	types.IngestRequest
}

func (s *Server) handleIngestResume(w http.ResponseWriter, r *http.Request) {
	var req IngestResumeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req.IngestRequest); err != nil {
		verr := extractValidationErrors(err)
		s.errorResponse(w, HTTPStatus(verr), verr.Error())
		return
	}

	res, err := s.deps.Resumes.Ingest(r.Context(), req.ResumeID, req.IngestRequest)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("resume ingest failed")
		s.errorResponse(w, HTTPStatus(err), "Failed to store resume: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// MatchRequest is the body of POST /api/match. One of JobDescription or URL
// is required. Missing resume fields fall back to the caller's latest upload.
type MatchRequest struct {
	JobDescription string `json:"job_description" validate:"required_without=URL"`
	URL            string `json:"url" validate:"omitempty,url"`
	ResumeID       string `json:"resume_id"`
	ResumeText     string `json:"resume_text"`
	Strategy       string `json:"strategy" validate:"omitempty,oneof=vector llm"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, middleware.InvalidAuthMessage)
		return
	}

	var req MatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		verr := extractValidationErrors(err)
		s.errorResponse(w, HTTPStatus(verr), verr.Error())
		return
	}

	name := req.Strategy
	if name == "" {
		name = s.defaultStrategy
	}
	strategy, ok := s.deps.Strategies[name]
	if !ok || strategy == nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("Match strategy %q is not available", name))
		return
	}

	jobText := strings.TrimSpace(req.JobDescription)
	if jobText == "" {
		posting, err := s.deps.Postings.Fetch(r.Context(), req.URL)
		if err != nil {
			err = &ErrUpstream{Op: "Error scraping job posting", Err: err}
			s.errorResponse(w, HTTPStatus(err), err.Error())
			return
		}
		jobText = posting.Text
	}

	mreq := matching.Request{JobDescription: jobText, ResumeID: req.ResumeID, ResumeText: req.ResumeText}
	needsID := name == types.StrategyVector && mreq.ResumeID == ""
	needsText := name == types.StrategyLLM && strings.TrimSpace(mreq.ResumeText) == ""
	if needsID || needsText {
		id, text, err := s.deps.Resumes.Text(r.Context(), userID)
		if err != nil {
			if errors.Is(err, resume.ErrNoResume) {
				s.errorResponse(w, http.StatusBadRequest, "No resume given and no uploaded resume found")
				return
			}
			s.errorResponse(w, HTTPStatus(err), "Failed to load resume")
			return
		}
		if needsID {
			mreq.ResumeID = id
		}
		if needsText {
			mreq.ResumeText = text
		}
	}

	s.jsonResponse(w, http.StatusOK, strategy.Match(r.Context(), mreq))
}

// ScanRequest is the optional body of POST /api/scan/stream.
type ScanRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=100"`
}

// handleScanStream runs a scan over the caller's latest resume and streams
// progress as server-sent events, ending with the report.
func (s *Server) handleScanStream(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, middleware.InvalidAuthMessage)
		return
	}

	var req ScanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if err := s.validator.Struct(req); err != nil {
		verr := extractValidationErrors(err)
		s.errorResponse(w, HTTPStatus(verr), verr.Error())
		return
	}

	resumeID, text, err := s.deps.Resumes.Text(r.Context(), userID)
	if err != nil {
		if errors.Is(err, resume.ErrNoResume) {
			s.errorResponse(w, http.StatusNotFound, "No resume found")
			return
		}
		s.errorResponse(w, HTTPStatus(err), "Failed to load resume")
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	log := logger.Ctx(r.Context())
	log.Info().Str("resume_id", resumeID).Msg("starting streaming scan")

	report, err := s.deps.Scan(r.Context(), orchestrator.ScanInput{ResumeID: resumeID, ResumeText: text, Limit: req.Limit}, func(event orchestrator.ProgressEvent) {
		if werr := sse.WriteEvent("step", event); werr != nil {
			log.Debug().Err(werr).Msg("error writing SSE event")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("streaming scan stopped early")
		if report == nil {
			sse.WriteError(err.Error())
			return
		}
	}
	sse.WriteComplete(report)
}
