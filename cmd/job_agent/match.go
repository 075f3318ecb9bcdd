package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-matcher/internal/matching"
	"github.com/jonathan/job-matcher/internal/narrator"
	"github.com/jonathan/job-matcher/internal/observability"
	"github.com/jonathan/job-matcher/internal/types"
)

var (
	matchJobFile    string
	matchURL        string
	matchResumeFile string
	matchResumeID   string
	matchStrategy   string
	matchNarrate    bool
	matchJSON       bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score a resume against one job posting",
	Long: `Score a resume against a job description read from --job or scraped from --url.
The llm strategy needs --resume; the vector strategy needs --resume-id of an ingested resume.`,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchJobFile, "job", "", "Path to a job description text file")
	matchCmd.Flags().StringVar(&matchURL, "url", "", "Job posting URL to scrape")
	matchCmd.Flags().StringVarP(&matchResumeFile, "resume", "r", "", "Path to a resume (PDF or text)")
	matchCmd.Flags().StringVar(&matchResumeID, "resume-id", "", "ID of an ingested resume")
	matchCmd.Flags().StringVarP(&matchStrategy, "strategy", "s", "", "Match strategy: vector or llm (default matching.strategy)")
	matchCmd.Flags().BoolVar(&matchNarrate, "narrate", false, "Explain the score with the LLM")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "Print JSON")
	matchCmd.MarkFlagsMutuallyExclusive("job", "url")

	rootCmd.AddCommand(matchCmd)
}

func validateMatchFlags(strategy string) error {
	if matchJobFile == "" && matchURL == "" {
		return fmt.Errorf("one of --job or --url is required")
	}
	switch strategy {
	case types.StrategyVector:
		if matchResumeID == "" {
			return fmt.Errorf("--resume-id is required for the vector strategy")
		}
	case types.StrategyLLM:
		if matchResumeFile == "" {
			return fmt.Errorf("--resume is required for the llm strategy")
		}
	default:
		return fmt.Errorf("unknown match strategy %q", strategy)
	}
	return nil
}

func runMatch(cmd *cobra.Command, _ []string) error {
	strategy := strings.ToLower(matchStrategy)
	if strategy == "" {
		strategy = cfg.Matching.Strategy
	}
	if err := validateMatchFlags(strategy); err != nil {
		return err
	}
	ctx := cmd.Context()

	a := newApp(cfg)
	defer a.Close()

	jobText, err := readText(matchJobFile)
	if err != nil {
		return fmt.Errorf("failed to read job description: %w", err)
	}
	if matchURL != "" {
		postings, err := a.Postings(ctx)
		if err != nil {
			return err
		}
		posting, err := postings.Fetch(ctx, matchURL)
		if err != nil {
			return err
		}
		jobText = posting.Text
	}

	req := matching.Request{JobDescription: jobText, ResumeID: matchResumeID}
	if matchResumeFile != "" {
		if req.ResumeText, err = readResume(ctx, matchResumeFile); err != nil {
			return err
		}
	}

	s, err := a.Strategy(ctx, strategy)
	if err != nil {
		return err
	}
	res := s.Match(ctx, req)

	if matchNarrate && res.Error == "" {
		client, err := a.LLM(ctx)
		if err != nil {
			return err
		}
		if err := narrator.New(client).Annotate(ctx, res); err != nil {
			return fmt.Errorf("failed to explain match: %w", err)
		}
	}

	if matchJSON {
		return printJSON(cmd, res)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintMatchResult(res)
	return nil
}
