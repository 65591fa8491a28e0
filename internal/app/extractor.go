package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"invoicescan/internal/util"
)

// OCREngine recognizes text in a single raster image.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// PageRenderer rasterizes a PDF into per-page images under dir and returns
// the image paths in page order.
type PageRenderer interface {
	RenderPages(ctx context.Context, pdfPath, dir string) ([]string, error)
}

// extractText produces plain text for one document. PDFs go through the
// text layer first and fall back to rendered-page OCR when the layer is
// (near) empty; images go straight to OCR. OCR is the expensive path and
// only runs when the cheap one is insufficient.
func (a *App) extractText(ctx context.Context, path, mediaType string) (string, error) {
	switch {
	case mediaType == "application/pdf":
		return a.extractPDF(ctx, path)
	case strings.HasPrefix(mediaType, "image/"):
		text, err := a.ocr.Recognize(ctx, path)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
		return text, nil
	default:
		return "", ErrUnsupportedMediaType
	}
}

func (a *App) extractPDF(ctx context.Context, path string) (string, error) {
	logger := util.LoggerFromContext(ctx)

	text, err := a.pdfText(path)
	if err != nil {
		// Unreadable text layer is treated like an empty one; the OCR
		// fallback below gets a chance before the gate rejects.
		logger.Warn("pdf text layer extraction failed", "err", err)
		text = ""
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) >= a.minTextChars {
		return text, nil
	}

	// Scanned or image-only PDF. OCR failure is non-fatal: the request
	// degrades to insufficient text, caught by the gate.
	ocrText, err := a.ocrPDFPages(ctx, path)
	if err != nil {
		logger.Warn("ocr fallback failed", "err", err)
		return text, nil
	}
	return ocrText, nil
}

// ocrPDFPages renders each PDF page into a scratch directory and runs OCR
// over the pages. The scratch directory is removed on every path.
func (a *App) ocrPDFPages(ctx context.Context, path string) (string, error) {
	dir, err := os.MkdirTemp("", "invoicescan-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pages, err := a.renderer.RenderPages(ctx, path, dir)
	if err != nil {
		return "", fmt.Errorf("render pdf pages: %w", err)
	}

	logger := util.LoggerFromContext(ctx)
	texts := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.ocrConcurrency)
	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			text, err := a.ocr.Recognize(gctx, page)
			if err != nil {
				// Keep whatever the other pages produced.
				logger.Warn("page ocr failed", "page", page, "err", err)
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	_ = g.Wait()
	return strings.Join(texts, "\n"), nil
}

// pdfTextLayer concatenates the embedded text of all pages. Pages without
// a readable text object are skipped rather than failing the document.
func pdfTextLayer(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
