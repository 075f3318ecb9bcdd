package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/mcpserver"
	"github.com/jonathan/job-matcher/internal/types"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the job search tools over MCP on stdin/stdout",
	Long: `Start a Model Context Protocol server on stdio exposing get_github_jobs, scrape_job_posting,
match_resume_to_job, match_resume_vectors and research_company. Tools whose credentials are missing are not offered.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a := newApp(cfg)
	defer a.Close()

	deps := mcpserver.Deps{Listings: a.Listings()}
	postings, err := a.Postings(ctx)
	if err != nil {
		return err
	}
	deps.Postings = postings

	strategies := a.Strategies(ctx)
	if s, ok := strategies[types.StrategyLLM]; ok {
		deps.Judge = s
	}
	if s, ok := strategies[types.StrategyVector]; ok {
		deps.Vector = s
	}
	if r := a.Researcher(ctx); r != nil {
		deps.Researcher = r
	}

	logger.Info().Msg("mcp server listening on stdio")
	return mcpserver.Serve(mcpserver.New(deps))
}
