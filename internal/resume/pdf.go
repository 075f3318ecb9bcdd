package resume

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document/parser"
)

// ErrNoText is returned when a PDF yields no extractable text, as with
// scanned images.
var ErrNoText = errors.New("no text could be extracted from the PDF")

// TextExtractor turns an uploaded file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, uri string) (string, error)
}

// PDFExtractor extracts text with the eino PDF parser.
type PDFExtractor struct {
	parser *pdf.PDFParser
}

// NewPDFExtractor creates an extractor returning the whole document as one
// string.
func NewPDFExtractor(ctx context.Context) (*PDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF parser: %w", err)
	}
	return &PDFExtractor{parser: p}, nil
}

// Extract parses data and joins the text of every returned document.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte, uri string) (string, error) {
	docs, err := e.parser.Parse(ctx, bytes.NewReader(data), parser.WithURI(uri))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF %s: %w", uri, err)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if text := strings.TrimSpace(doc.Content); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoText
	}
	return strings.Join(parts, "\n\n"), nil
}
