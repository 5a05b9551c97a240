// Package extract turns source documents into raw text.
package extract

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/reader"

	"ragqa/internal/domain"
	"ragqa/internal/ragerr"
)

var _ domain.TextExtractor = (*Extractor)(nil)

// Supported lists the file extensions Extract understands.
var Supported = []string{".pdf", ".txt", ".md", ".docx", ".odt"}

// Extractor reads PDFs page by page and concatenates the pages that yield
// text. Plain-text and office formats are read whole.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// IsSupported reports whether path has an extension Extract can handle.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range Supported {
		if ext == s {
			return true
		}
	}
	return false
}

func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return e.extractPDF(ctx, path)
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", ragerr.Wrap(err, ragerr.CodeExtractionReadFailure, "reading text file", ragerr.FieldSource(path))
		}
		return string(b), nil
	case ".docx", ".odt":
		text, _, err := tabula.Open(path).Text()
		if err != nil {
			return "", ragerr.Wrap(err, ragerr.CodeExtractionReadFailure, "extracting document text", ragerr.FieldSource(path))
		}
		return text, nil
	default:
		return "", ragerr.New(ragerr.CodeExtractionUnsupported, "unsupported document format",
			ragerr.FieldSource(path), ragerr.Field("extension", filepath.Ext(path)))
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	r, err := reader.Open(path)
	if err != nil {
		return "", ragerr.Wrap(err, ragerr.CodeExtractionReadFailure, "opening pdf", ragerr.FieldSource(path))
	}
	defer func() { _ = r.Close() }()

	pages, err := r.PageCount()
	if err != nil {
		return "", ragerr.Wrap(err, ragerr.CodeExtractionReadFailure, "counting pdf pages", ragerr.FieldSource(path))
	}

	var sb strings.Builder
	for p := 1; p <= pages; p++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, _, err := tabula.FromReader(r).Pages(p).Text()
		if err != nil {
			return "", ragerr.Wrap(err, ragerr.CodeExtractionReadFailure, "reading pdf page",
				ragerr.FieldSource(path), ragerr.Field("page", p))
		}
		if strings.TrimSpace(text) == "" {
			e.logger.Debug("skipping pdf page without text", "source", path, "page", p)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
