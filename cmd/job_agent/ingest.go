package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-matcher/internal/resume"
	"github.com/jonathan/job-matcher/internal/types"
)

var (
	ingestFile     string
	ingestResumeID string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store a structured resume in the vector store",
	Long: `Read a JSON document with "resume" and "preferences" objects, chunk and embed it and store the
chunks under --resume-id (a new ID when omitted). The printed ID is what the vector strategy matches against.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "Path to the resume JSON file (required)")
	ingestCmd.Flags().StringVar(&ingestResumeID, "resume-id", "", "Resume ID to store the chunks under")
	_ = ingestCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(ingestCmd)
}

// loadIngestRequest reads and validates an ingest document.
func loadIngestRequest(path string) (types.IngestRequest, error) {
	var req types.IngestRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return req, req.Validate()
}

func runIngest(cmd *cobra.Command, _ []string) error {
	req, err := loadIngestRequest(ingestFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a := newApp(cfg)
	defer a.Close()

	e, err := a.Embedder(ctx)
	if err != nil {
		return err
	}
	store, err := a.VectorStore(ctx)
	if err != nil {
		return err
	}

	svc := resume.NewService(resume.Deps{Embedder: e, Store: store})
	res, err := svc.Ingest(ctx, ingestResumeID, req)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}
