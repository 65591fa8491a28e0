package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"invoicescan/internal/util"
	"invoicescan/pkg/ai"
	"invoicescan/pkg/domain"
	"invoicescan/pkg/storage"
	"invoicescan/pkg/store"
)

const extractionSystemPrompt = `You are a data extraction AI specialized in invoice processing.
Extract information from the provided invoice text and return ONLY a valid JSON array.

This invoice is raised from the distributor to the retailer.

Required fields (all must be present):
- Distributor_Name: string
- Retailer_Name: string
- Retailer_Address: string
- Retailer_State: string
- Invoice_Total: number (total invoice amount)
- Water_Total: number (water products total including GST)
- Net_Total: number (Invoice_Total minus Water_Total)
- Invoice_Date: string (format: DD-MM-YYYY)

CRITICAL RULES:
1. Return ONLY a JSON array, nothing else
2. No markdown formatting, no code blocks, no explanations
3. All numeric values must be numbers, not strings
4. If a field cannot be found, use null or empty string
5. Calculate Net_Total as (Invoice_Total - Water_Total)

Example (return exactly in this format):
[{"Distributor_Name":"XYZ Distributors","Retailer_Name":"ABC Supermarket","Retailer_Address":"123 Market Road, Delhi","Retailer_State":"Delhi","Invoice_Total":12500.00,"Water_Total":800.00,"Net_Total":11700.00,"Invoice_Date":"15-01-2025"}]`

// Config holds runtime configuration for the analysis pipeline.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Oracle      ai.ChatCompleter
	OCR         OCREngine
	Renderer    PageRenderer
	Archive     storage.ObjectStore

	MinTextChars   int
	MaxPromptChars int
	OracleRetries  int
	OCRConcurrency int

	// PDFText overrides PDF text-layer extraction. Tests use this seam;
	// when nil the ledongthuc/pdf based extractor is used.
	PDFText func(path string) (string, error)
}

// App runs the document-to-structured-record pipeline and saves reviewed
// invoices. One request equals one pipeline invocation; the App holds no
// per-request state.
type App struct {
	store          store.Store
	oracle         ai.ChatCompleter
	ocr            OCREngine
	renderer       PageRenderer
	archive        storage.ObjectStore
	pdfText        func(path string) (string, error)
	minTextChars   int
	maxPromptChars int
	oracleRetries  int
	ocrConcurrency int
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("chat completer required")
	}
	if cfg.OCR == nil || cfg.Renderer == nil {
		return nil, fmt.Errorf("ocr engine and page renderer required")
	}
	minTextChars := cfg.MinTextChars
	if minTextChars <= 0 {
		minTextChars = 10
	}
	maxPromptChars := cfg.MaxPromptChars
	if maxPromptChars <= 0 {
		maxPromptChars = 15000
	}
	oracleRetries := cfg.OracleRetries
	if oracleRetries < 0 {
		oracleRetries = 0
	}
	ocrConcurrency := cfg.OCRConcurrency
	if ocrConcurrency <= 0 {
		ocrConcurrency = 2
	}
	pdfText := cfg.PDFText
	if pdfText == nil {
		pdfText = pdfTextLayer
	}
	return &App{
		store:          dataStore,
		oracle:         cfg.Oracle,
		ocr:            cfg.OCR,
		renderer:       cfg.Renderer,
		archive:        cfg.Archive,
		pdfText:        pdfText,
		minTextChars:   minTextChars,
		maxPromptChars: maxPromptChars,
		oracleRetries:  oracleRetries,
		ocrConcurrency: ocrConcurrency,
	}, nil
}

// Document is one uploaded file awaiting analysis. Path points at a
// request-scoped temp file owned by the caller.
type Document struct {
	Path      string
	MediaType string
	Filename  string
}

// AnalyzeDocument extracts text from the document, asks the model for
// structured fields, and returns the sanitized records. The model may find
// several invoices in one document; all are returned, though the stock
// review flow saves only the first.
func (a *App) AnalyzeDocument(ctx context.Context, doc Document) ([]Record, error) {
	logger := util.LoggerFromContext(ctx)

	text, err := a.extractText(ctx, doc.Path, doc.MediaType)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < a.minTextChars {
		return nil, ErrInsufficientText
	}
	logger.Info("document text extracted", "file", doc.Filename, "chars", len(text))

	raw, err := a.extractFields(ctx, text)
	if err != nil {
		return nil, err
	}
	records, err := sanitizeResponse(logger, raw)
	if err != nil {
		return nil, err
	}
	a.archiveOriginal(ctx, doc)
	return records, nil
}

// ListInvoices returns recently saved invoices for the review UI.
func (a *App) ListInvoices(limit int) ([]domain.Invoice, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	invoices, err := a.store.ListInvoices(limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// extractFields sends the document text to the model and returns the raw
// reply. Transient transport failures are retried up to oracleRetries
// times; API errors are terminal.
func (a *App) extractFields(ctx context.Context, text string) (string, error) {
	prompt := truncateRunes(text, a.maxPromptChars)
	var lastErr error
	for attempt := 0; attempt <= a.oracleRetries; attempt++ {
		response, err := a.oracle.CompleteChat(ctx, extractionSystemPrompt, prompt)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if !errors.Is(err, ai.ErrUnavailable) || ctx.Err() != nil {
			break
		}
	}
	if errors.Is(lastErr, ai.ErrUnavailable) || errors.Is(lastErr, context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %v", ErrOracleUnavailable, lastErr)
	}
	return "", fmt.Errorf("extract fields: %w", lastErr)
}

// archiveOriginal keeps a copy of the uploaded document in object storage.
// Best-effort: an archive failure never fails the analysis.
func (a *App) archiveOriginal(ctx context.Context, doc Document) {
	if a.archive == nil {
		return
	}
	logger := util.LoggerFromContext(ctx)
	f, err := os.Open(doc.Path)
	if err != nil {
		logger.Warn("archive open failed", "file", doc.Filename, "err", err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		logger.Warn("archive stat failed", "file", doc.Filename, "err", err)
		return
	}
	key := util.NewID() + strings.ToLower(filepath.Ext(doc.Filename))
	if err := a.archive.Put(ctx, key, f, info.Size(), doc.MediaType); err != nil {
		logger.Warn("archive upload failed", "file", doc.Filename, "err", err)
		return
	}
	logger.Info("document archived", "file", doc.Filename, "key", key)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
