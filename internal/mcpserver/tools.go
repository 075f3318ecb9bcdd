package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jonathan/job-matcher/internal/fetch"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/matching"
)

// DefaultJobLimit is the listing count when the caller gives none.
const DefaultJobLimit = 3

type getJobsArgs struct {
	Limit int `mapstructure:"limit"`
}

type scrapeArgs struct {
	URL string `mapstructure:"url"`
}

type matchArgs struct {
	JobDescription string `mapstructure:"job_description"`
	ResumeText     string `mapstructure:"resume_text"`
	ResumeID       string `mapstructure:"resume_id"`
}

type researchArgs struct {
	Company string `mapstructure:"company"`
}

func registerGetGithubJobs(s *server.MCPServer, t *Tools) {
	tool := mcp.NewTool("get_github_jobs",
		mcp.WithDescription("Gets the newest jobs from the summer internships list on GitHub"),
	)
	tool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"limit": map[string]interface{}{"type": "integer", "description": "Number of jobs to return (default: 3)"},
		},
	}
	s.AddTool(tool, t.GetGithubJobs)
}

// GetGithubJobs returns up to limit listings as JSON.
func (t *Tools) GetGithubJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getJobsArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.Limit <= 0 {
		args.Limit = DefaultJobLimit
	}

	jobs, err := t.deps.Listings.Fetch(ctx, args.Limit)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("get_github_jobs failed")
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch jobs: %v", err)), nil
	}
	return jsonResult(jobs)
}

func registerScrapeJobPosting(s *server.MCPServer, t *Tools) {
	tool := mcp.NewTool("scrape_job_posting",
		mcp.WithDescription("Scrapes a job posting URL and returns its cleaned description, requirements and benefits"),
	)
	tool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"url": map[string]interface{}{"type": "string", "description": "The job posting URL"},
		},
		Required: []string{"url"},
	}
	s.AddTool(tool, t.ScrapeJobPosting)
}

// ScrapeJobPosting returns the cleaned posting text.
func (t *Tools) ScrapeJobPosting(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args scrapeArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	url := strings.TrimSpace(args.URL)
	if url == "" {
		return mcp.NewToolResultError("missing required field: url"), nil
	}

	text := t.deps.Postings.FetchInline(ctx, url)
	if fetch.IsInlineError(text) {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

func registerMatchResumeToJob(s *server.MCPServer, t *Tools) {
	tool := mcp.NewTool("match_resume_to_job",
		mcp.WithDescription("Scores how well a resume fits a job description using AI analysis, citing evidence from the resume"),
	)
	tool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"job_description": map[string]interface{}{"type": "string", "description": "The full job description"},
			"resume_text":     map[string]interface{}{"type": "string", "description": "The full text of the resume"},
		},
		Required: []string{"job_description", "resume_text"},
	}
	s.AddTool(tool, t.MatchResumeToJob)
}

// MatchResumeToJob runs the LLM judge. A failed judgement is still a
// result: score 0 with the error in its reason.
func (t *Tools) MatchResumeToJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args matchArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(args.JobDescription) == "" || strings.TrimSpace(args.ResumeText) == "" {
		return mcp.NewToolResultError("missing required fields: job_description, resume_text"), nil
	}

	res := t.deps.Judge.Match(ctx, matching.Request{
		JobDescription: args.JobDescription,
		ResumeText:     args.ResumeText,
	})
	return jsonResult(res)
}

func registerMatchResumeVectors(s *server.MCPServer, t *Tools) {
	tool := mcp.NewTool("match_resume_vectors",
		mcp.WithDescription("Scores a job description against an ingested resume by vector similarity"),
	)
	tool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"job_description": map[string]interface{}{"type": "string", "description": "The full job description"},
			"resume_id":       map[string]interface{}{"type": "string", "description": "ID of an ingested resume"},
		},
		Required: []string{"job_description", "resume_id"},
	}
	s.AddTool(tool, t.MatchResumeVectors)
}

// MatchResumeVectors runs the vector strategy against stored chunks.
func (t *Tools) MatchResumeVectors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args matchArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(args.JobDescription) == "" || strings.TrimSpace(args.ResumeID) == "" {
		return mcp.NewToolResultError("missing required fields: job_description, resume_id"), nil
	}

	res := t.deps.Vector.Match(ctx, matching.Request{
		JobDescription: args.JobDescription,
		ResumeID:       args.ResumeID,
	})
	return jsonResult(res)
}

func registerResearchCompany(s *server.MCPServer, t *Tools) {
	tool := mcp.NewTool("research_company",
		mcp.WithDescription("Searches the web for recent news, culture and interview tips about a company"),
	)
	tool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"company": map[string]interface{}{"type": "string", "description": "The company name"},
		},
		Required: []string{"company"},
	}
	s.AddTool(tool, t.ResearchCompany)
}

// ResearchCompany returns the research notes for a company.
func (t *Tools) ResearchCompany(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args researchArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	company := strings.TrimSpace(args.Company)
	if company == "" {
		return mcp.NewToolResultError("missing required field: company"), nil
	}

	notes, err := t.deps.Researcher.Research(ctx, company)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("company", company).Msg("research_company failed")
		return mcp.NewToolResultError(fmt.Sprintf("Research failed: %v", err)), nil
	}
	return mcp.NewToolResultText(notes), nil
}
