package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	OracleBaseURL        string  `yaml:"oracleBaseURL"`
	OracleAPIKey         string  `yaml:"oracleAPIKey"`
	OracleModel          string  `yaml:"oracleModel"`
	OracleTemperature    float64 `yaml:"oracleTemperature"`
	OracleTimeoutSeconds int     `yaml:"oracleTimeoutSeconds"`
	OracleMaxRetries     int     `yaml:"oracleMaxRetries"`

	OCRCommand        string `yaml:"ocrCommand"`
	RenderCommand     string `yaml:"renderCommand"`
	OCRLanguage       string `yaml:"ocrLanguage"`
	OCRTimeoutSeconds int    `yaml:"ocrTimeoutSeconds"`
	OCRConcurrency    int    `yaml:"ocrConcurrency"`
	OCRPreprocess     bool   `yaml:"ocrPreprocess"`

	MinTextChars   int `yaml:"minTextChars"`
	MaxPromptChars int `yaml:"maxPromptChars"`

	MaxUploadBytes           int64    `yaml:"maxUploadBytes"`
	UploadRateLimitPerMinute int      `yaml:"uploadRateLimitPerMinute"`
	TrustedProxies           []string `yaml:"trustedProxies"`
	RedisAddr                string   `yaml:"redisAddr"`
	RedisPassword            string   `yaml:"redisPassword"`

	ArchiveEndpoint  string `yaml:"archiveEndpoint"`
	ArchiveAccessKey string `yaml:"archiveAccessKey"`
	ArchiveSecretKey string `yaml:"archiveSecretKey"`
	ArchiveBucket    string `yaml:"archiveBucket"`
	ArchiveUseSSL    bool   `yaml:"archiveUseSSL"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("ORACLE_BASE_URL"); v != "" {
		cfg.OracleBaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OracleAPIKey = v
	}
	if v := os.Getenv("ORACLE_MODEL"); v != "" {
		cfg.OracleModel = v
	}
	if v := os.Getenv("ORACLE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OracleTimeoutSeconds = n
		}
	}
	if v := os.Getenv("ORACLE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OracleMaxRetries = n
		}
	}
	if v := os.Getenv("OCR_COMMAND"); v != "" {
		cfg.OCRCommand = v
	}
	if v := os.Getenv("RENDER_COMMAND"); v != "" {
		cfg.RenderCommand = v
	}
	if v := os.Getenv("OCR_LANGUAGE"); v != "" {
		cfg.OCRLanguage = v
	}
	if v := os.Getenv("OCR_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OCRTimeoutSeconds = n
		}
	}
	if v := os.Getenv("OCR_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OCRConcurrency = n
		}
	}
	if v := os.Getenv("OCR_PREPROCESS"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.OCRPreprocess = enabled
		}
	}
	if v := os.Getenv("UPLOAD_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.UploadRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("ARCHIVE_ENDPOINT"); v != "" {
		cfg.ArchiveEndpoint = v
	}
	if v := os.Getenv("ARCHIVE_ACCESS_KEY"); v != "" {
		cfg.ArchiveAccessKey = v
	}
	if v := os.Getenv("ARCHIVE_SECRET_KEY"); v != "" {
		cfg.ArchiveSecretKey = v
	}
	if v := os.Getenv("ARCHIVE_BUCKET"); v != "" {
		cfg.ArchiveBucket = v
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	return cfg, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
