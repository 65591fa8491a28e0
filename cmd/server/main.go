package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"invoicescan/internal/app"
	"invoicescan/internal/config"
	"invoicescan/internal/server"
	"invoicescan/internal/util"
	"invoicescan/pkg/ai"
	"invoicescan/pkg/storage"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	oracle := ai.NewOpenAIClient(ai.OpenAIConfig{
		BaseURL:     cfg.OracleBaseURL,
		APIKey:      cfg.OracleAPIKey,
		Model:       cfg.OracleModel,
		Temperature: cfg.OracleTemperature,
		Timeout:     time.Duration(cfg.OracleTimeoutSeconds) * time.Second,
	})

	ocr := app.NewCommandOCR(app.CommandOCRConfig{
		OCRCommand:    cfg.OCRCommand,
		RenderCommand: cfg.RenderCommand,
		Language:      cfg.OCRLanguage,
		Timeout:       time.Duration(cfg.OCRTimeoutSeconds) * time.Second,
		Preprocess:    cfg.OCRPreprocess,
	})

	var archive storage.ObjectStore
	if cfg.ArchiveEndpoint != "" {
		archive, err = storage.NewMinioStore(cfg.ArchiveEndpoint, cfg.ArchiveAccessKey,
			cfg.ArchiveSecretKey, cfg.ArchiveBucket, cfg.ArchiveUseSSL)
		if err != nil {
			log.Fatalf("failed to init document archive: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		Oracle:         oracle,
		OCR:            ocr,
		Renderer:       ocr,
		Archive:        archive,
		MinTextChars:   cfg.MinTextChars,
		MaxPromptChars: cfg.MaxPromptChars,
		OracleRetries:  cfg.OracleMaxRetries,
		OCRConcurrency: cfg.OCRConcurrency,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		MaxUploadBytes:           cfg.MaxUploadBytes,
		UploadRateLimitPerMinute: cfg.UploadRateLimitPerMinute,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		TrustedProxies:           cfg.TrustedProxies,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("invoicescan server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
