package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/config"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/audit"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/tracing"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
	Shutdown tracing.ShutdownFunc
}

func buildObservability(ctx context.Context, logger *slog.Logger, cfg config.ObservabilityConfig) (ObservabilityContainer, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	shutdown, err := tracing.Init(ctx, tracing.Options{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return ObservabilityContainer{}, fmt.Errorf("init tracing: %w", err)
	}
	if cfg.Tracing.IsEnabled() {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint, "service", cfg.Tracing.ServiceName)
	}

	return ObservabilityContainer{
		Registry: reg,
		Metrics:  metrics.New(reg),
		Tracer:   tracing.Tracer(),
		Shutdown: shutdown,
	}, nil
}

// AuditConfig contains configuration for the audit recorder.
type AuditConfig struct {
	Audit   config.ObservabilityAuditConfig
	Backend ports.BackendClient // used when Audit.BackendSink is set
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Logger  *slog.Logger
}

// BuildAuditRecorder creates the recorder with a log sink and, optionally, a backend sink.
func BuildAuditRecorder(cfg AuditConfig) *audit.Recorder {
	sinks := []audit.SinkRegistration{
		{Name: "log", Sink: audit.LogSink{Logger: cfg.Logger.With("component", "audit")}},
	}
	if cfg.Audit.BackendSink && cfg.Backend != nil {
		sinks = append(sinks, audit.SinkRegistration{Name: "backend", Sink: audit.BackendSink{Client: cfg.Backend}})
	}
	return audit.NewRecorder(audit.Options{
		Logger:      cfg.Logger.With("component", "audit_recorder"),
		Sinks:       sinks,
		QueueSize:   cfg.Audit.QueueSize,
		SinkTimeout: cfg.Audit.SinkTimeout,
		Metrics:     cfg.Metrics,
		Clock:       cfg.Clock,
	})
}
