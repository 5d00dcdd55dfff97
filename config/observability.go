package config

import (
	"log/slog"
	"strings"
	"time"
)

const defaultServiceName = "portal-bff"

// ObservabilityConfig groups configuration that controls logging, metrics, tracing and audit.
type ObservabilityConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Metrics ObservabilityMetricsConfig
	Tracing ObservabilityTracingConfig
	Audit   ObservabilityAuditConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Metrics.Sanitize()
	c.Tracing.Sanitize()
	c.Audit.Sanitize()
}

// SlogLevel converts LogLevel, falling back to info for unknown names.
func (c *ObservabilityConfig) SlogLevel() slog.Level {
	level, _ := parseLogLevel(c.LogLevel)
	return level
}

func (c *ObservabilityConfig) validate(v *validator) {
	if _, ok := parseLogLevel(c.LogLevel); !ok {
		v.invalidVar("LOG_LEVEL")
	}
}

func parseLogLevel(s string) (slog.Level, bool) {
	switch s {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ObservabilityMetricsConfig controls the Prometheus endpoint.
type ObservabilityMetricsConfig struct {
	Enabled bool   `env:"OBS_METRICS_ENABLED" envDefault:"false"`
	Addr    string `env:"OBS_METRICS_ADDR"    envDefault:":9090"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.Addr = strings.TrimSpace(c.Addr)
	if c.Addr == "" {
		c.Enabled = false
	}
}

// IsEnabled returns true when the metrics listener should start after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.Addr != ""
}

// ObservabilityTracingConfig controls OTLP trace export.
type ObservabilityTracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	ServiceName string  `env:"OTEL_SERVICE_NAME"           envDefault:"portal-bff"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_RATIO"   envDefault:"1"`
}

// Sanitize normalises tracing settings.
func (c *ObservabilityTracingConfig) Sanitize() {
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	if c.ServiceName = strings.TrimSpace(c.ServiceName); c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.SampleRatio < 0 {
		c.SampleRatio = 0
	}
	if c.SampleRatio > 1 {
		c.SampleRatio = 1
	}
}

// IsEnabled returns true when an exporter endpoint is configured.
func (c *ObservabilityTracingConfig) IsEnabled() bool {
	return c.Endpoint != ""
}

// ObservabilityAuditConfig controls the audit recorder.
type ObservabilityAuditConfig struct {
	QueueSize   int           `env:"AUDIT_QUEUE_SIZE"   envDefault:"256"`
	SinkTimeout time.Duration `env:"AUDIT_SINK_TIMEOUT" envDefault:"5s"`

	// BackendSink forwards audit events to the backend as audit.record calls.
	BackendSink bool `env:"AUDIT_BACKEND_SINK" envDefault:"false"`
}

// Sanitize restores defaults for non-positive values.
func (c *ObservabilityAuditConfig) Sanitize() {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = 5 * time.Second
	}
}
