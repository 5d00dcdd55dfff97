package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/config"
	httpx "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/http"
)

// InitLogger initializes the structured logger and installs it as the default.
func InitLogger(level slog.Level) *slog.Logger {
	logger := NewLogger(os.Stdout, level)
	slog.SetDefault(logger)
	return logger
}

// NewLogger builds the JSON logger used by every binary.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ConfigReport converts the validation result into the report served by /healthz and
// /api/admin/config-check.
func ConfigReport(cfg *config.AppConfig) httpx.ConfigReport {
	if cfg == nil {
		return httpx.ConfigReport{}
	}
	cerr := cfg.Validate()
	if cerr == nil {
		return httpx.ConfigReport{}
	}
	return httpx.ConfigReport{Missing: cerr.Missing, Invalid: cerr.Invalid}
}

// logConfigReport warns about incomplete configuration by variable name.
func logConfigReport(logger *slog.Logger, report httpx.ConfigReport) {
	if report.Complete() {
		return
	}
	logger.Warn("configuration incomplete; dependent operations fail closed",
		"missing", report.Missing,
		"invalid", report.Invalid,
	)
}
