// Package extract pulls plain text out of PDF documents.
package extract

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

// PDFExtractor extracts page text and joins pages with blank lines.
type PDFExtractor struct {
	logger *slog.Logger
}

var _ ingest.Extractor = (*PDFExtractor)(nil)

func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	return &PDFExtractor{logger: logger.With("component", "pdf_extractor")}
}

func (e *PDFExtractor) Extract(_ context.Context, pdfBytes []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeExtractionFailure, "file is not a readable PDF", err)
	}

	var (
		pages      []string
		emptyPages int
	)
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			emptyPages++
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("page extraction failed", "page", i, "error", err)
			emptyPages++
			continue
		}
		if strings.TrimSpace(text) == "" {
			emptyPages++
			continue
		}
		pages = append(pages, text)
	}

	full := strings.Join(pages, "\n\n")
	if strings.TrimSpace(full) == "" {
		return "", apperrors.WithDetail(
			apperrors.CodeExtractionFailure,
			"no text found in PDF; scanned documents need OCR before upload",
			map[string]any{"page_count": total, "empty_pages": emptyPages},
			nil,
		)
	}

	e.logger.Debug("pdf extracted", "pages", total, "empty_pages", emptyPages, "chars", len(full))
	return full, nil
}
