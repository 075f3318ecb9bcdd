package main

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/observability"
	"github.com/jonathan/job-matcher/internal/orchestrator"
	"github.com/jonathan/job-matcher/internal/resume"
	"github.com/jonathan/job-matcher/internal/types"
)

var (
	scanResumeFile string
	scanResumeID   string
	scanLimit      int
	scanMarkdown   string
	scanJSON       bool
	scanVerbose    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Score the newest listings against a resume and research the best matches",
	Long: `Fetch the newest listings, scrape and score each posting against the resume, then research every
company whose match is strong enough. With the vector strategy the resume is indexed first.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanResumeFile, "resume", "r", "", "Path to a resume (PDF or text, required)")
	scanCmd.Flags().StringVar(&scanResumeID, "resume-id", "", "ID to index the resume under (vector strategy)")
	scanCmd.Flags().IntVarP(&scanLimit, "limit", "n", 0, "Number of listings to score (default orchestrator.scan_limit)")
	scanCmd.Flags().StringVar(&scanMarkdown, "markdown", "", "Also write the report as Markdown to this path")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the report as JSON")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "Print progress while scanning")
	_ = scanCmd.MarkFlagRequired("resume")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()
	defer startTracing(ctx)()

	text, err := readResume(ctx, scanResumeFile)
	if err != nil {
		return err
	}

	a := newApp(cfg)
	defer a.Close()

	resumeID := scanResumeID
	if cfg.Matching.Strategy == types.StrategyVector {
		if resumeID == "" {
			resumeID = uuid.NewString()
		}
		e, err := a.Embedder(ctx)
		if err != nil {
			return err
		}
		store, err := a.VectorStore(ctx)
		if err != nil {
			return err
		}
		n, err := resume.NewService(resume.Deps{Embedder: e, Store: store}).IndexText(ctx, resumeID, text)
		if err != nil {
			return err
		}
		logger.Info().Str("resume_id", resumeID).Int("chunks", n).Msg("resume indexed")
	}

	newMachine, err := a.machineFactory(ctx)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	var progress orchestrator.ProgressCallback
	if scanVerbose {
		var mu sync.Mutex
		progress = func(event orchestrator.ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			printer.PrintProgress(event)
		}
	}

	report, runErr := newMachine(progress).Run(ctx, orchestrator.ScanInput{
		ResumeID:   resumeID,
		ResumeText: text,
		Limit:      scanLimit,
	})
	if report == nil {
		return runErr
	}
	if runErr != nil {
		if !errors.Is(runErr, orchestrator.ErrStepLimit) {
			return runErr
		}
		logger.Warn().Err(runErr).Msg("scan stopped early; printing partial report")
	}

	if scanMarkdown != "" {
		if err := os.WriteFile(scanMarkdown, []byte(observability.FormatReportMarkdown(report)), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if scanJSON {
		return printJSON(cmd, report)
	}
	printer.PrintScanReport(report)
	return nil
}
