package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/job-matcher/internal/resume"
)

// readResume returns the text of a resume file. PDFs go through the PDF
// extractor; anything else is read as plain text.
func readResume(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read resume: %w", err)
	}
	if !resume.IsPDF(path) {
		return string(data), nil
	}

	extractor, err := resume.NewPDFExtractor(ctx)
	if err != nil {
		return "", err
	}
	text, err := extractor.Extract(ctx, data, filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to extract resume text: %w", err)
	}
	return text, nil
}

// readText reads a file, or returns "" for an empty path.
func readText(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
