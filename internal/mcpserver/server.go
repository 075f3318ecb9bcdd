// Package mcpserver exposes the job search tools over the Model Context
// Protocol so an external agent can drive listing, scraping, matching and
// research itself.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/jonathan/job-matcher/internal/matching"
	"github.com/jonathan/job-matcher/internal/orchestrator"
)

const (
	serverName    = "job-agent"
	serverVersion = "1.0.0"
)

// InlineFetcher returns posting text, or an error message in its place.
type InlineFetcher interface {
	FetchInline(ctx context.Context, url string) string
}

// Deps are the collaborators behind the tools. A nil field leaves its tool
// unregistered.
type Deps struct {
	Listings   orchestrator.ListingSource
	Postings   InlineFetcher
	Judge      matching.Strategy
	Vector     matching.Strategy
	Researcher orchestrator.CompanyResearcher
}

// Tools holds the tool handlers. They are exported through New but can be
// called directly.
type Tools struct {
	deps Deps
}

// New builds an MCP server with every tool deps can back.
func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion)
	t := &Tools{deps: deps}

	if deps.Listings != nil {
		registerGetGithubJobs(s, t)
	}
	if deps.Postings != nil {
		registerScrapeJobPosting(s, t)
	}
	if deps.Judge != nil {
		registerMatchResumeToJob(s, t)
	}
	if deps.Vector != nil {
		registerMatchResumeVectors(s, t)
	}
	if deps.Researcher != nil {
		registerResearchCompany(s, t)
	}
	return s
}

// Serve runs s over stdin and stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// decodeArgs copies the request arguments into out. Numbers arrive as
// float64 from JSON and strings are accepted where a number is expected.
func decodeArgs(request mcp.CallToolRequest, out any) error {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		if request.Params.Arguments != nil {
			return fmt.Errorf("invalid arguments format")
		}
		args = map[string]interface{}{}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
