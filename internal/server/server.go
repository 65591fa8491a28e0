package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"invoicescan/internal/app"
	"invoicescan/internal/ratelimit"
	"invoicescan/internal/util"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	MaxUploadBytes           int64
	UploadRateLimitPerMinute int
	RedisAddr                string
	RedisPassword            string
	TrustedProxies           []string
}

// Server exposes the upload/review HTTP endpoints.
type Server struct {
	app            *app.App
	limiter        *ratelimit.FixedWindowLimiter
	trusted        *util.TrustedProxies
	maxUploadBytes int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured. Upload rate limiting
// is enabled when a per-minute limit is set; it then requires Redis.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app required")
	}
	s := &Server{
		app:            cfg.App,
		maxUploadBytes: cfg.MaxUploadBytes,
		mux:            http.NewServeMux(),
	}
	if cfg.UploadRateLimitPerMinute > 0 {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "invoicescan:upload",
			cfg.UploadRateLimitPerMinute, time.Minute,
		)
		if err != nil {
			return nil, fmt.Errorf("init upload rate limiter: %w", err)
		}
		s.limiter = limiter
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s.trusted = trusted
	s.routes()
	return s, nil
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/upload", s.handleUpload)
	s.mux.HandleFunc("/save-invoice", s.handleSaveInvoice)
	s.mux.HandleFunc("/invoices", s.handleListInvoices)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.limiter != nil && !s.limiter.Allow(util.ClientIP(r, s.trusted)) {
		writeError(w, http.StatusTooManyRequests, "too many uploads, try again shortly")
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded.")
		return
	}
	defer file.Close()

	// Spool the upload to a request-scoped temp file; the defer releases
	// it on every path.
	tmp, err := os.CreateTemp("", "invoicescan-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "An error occurred during processing")
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, "An error occurred during processing")
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, "An error occurred during processing")
		return
	}

	records, err := s.app.AnalyzeDocument(r.Context(), app.Document{
		Path:      tmp.Name(),
		MediaType: header.Header.Get("Content-Type"),
		Filename:  header.Filename,
	})
	if err != nil {
		writeAnalyzeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result":  records,
		"message": "Document analyzed successfully",
	})
}

func (s *Server) handleSaveInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req app.InvoiceInput
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	inv, err := s.app.SaveInvoice(req)
	if err != nil {
		if errors.Is(err, app.ErrMissingRequiredNames) {
			writeError(w, http.StatusBadRequest, "Distributor and Retailer name are required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to save invoice")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Invoice saved successfully",
		"data":    inv,
	})
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	invoices, err := s.app.ListInvoices(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list invoices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": invoices,
		"count": len(invoices),
	})
}

// writeAnalyzeError maps pipeline errors onto the upload response contract.
func writeAnalyzeError(w http.ResponseWriter, err error) {
	var malformed *app.MalformedResponseError
	switch {
	case errors.Is(err, app.ErrUnsupportedMediaType):
		writeError(w, http.StatusBadRequest, "Unsupported file type. Please upload an image or PDF.")
	case errors.Is(err, app.ErrInsufficientText):
		writeError(w, http.StatusBadRequest, "Could not extract sufficient text from the document. Please ensure the document is clear and readable.")
	case errors.As(err, &malformed):
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":       "Failed to parse AI response",
			"details":     "The AI did not return valid JSON format. Please try uploading the document again.",
			"rawResponse": malformed.Excerpt,
		})
	case errors.Is(err, app.ErrOracleUnavailable):
		writeError(w, http.StatusInternalServerError, "The extraction service is temporarily unavailable. Please try again.")
	default:
		writeError(w, http.StatusInternalServerError, "An error occurred during processing")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
