// Package audit delivers access-audit events to their sinks without ever blocking or
// failing the request that produced them.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/correlation"
	domainaudit "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/audit"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

const (
	defaultQueueSize   = 256
	defaultSinkTimeout = 5 * time.Second
)

var _ ports.AuditRecorder = (*Recorder)(nil)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink Sink
}

// Options configures the recorder.
type Options struct {
	Logger      *slog.Logger
	Sinks       []SinkRegistration
	QueueSize   int
	SinkTimeout time.Duration
	Metrics     *metrics.Metrics
	Clock       clock.Clock
}

type queued struct {
	ctx context.Context
	ev  domainaudit.Event
}

// Recorder queues events and delivers them to every sink from a single worker.
// A full queue drops the event; sink errors and panics are logged and swallowed.
type Recorder struct {
	logger      *slog.Logger
	sinks       []SinkRegistration
	sinkTimeout time.Duration
	metrics     *metrics.Metrics
	clock       clock.Clock

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

// NewRecorder constructs a recorder and starts its delivery worker.
func NewRecorder(opts Options) *Recorder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "audit")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{Name: name, Sink: entry.Sink})
	}

	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := opts.SinkTimeout
	if timeout <= 0 {
		timeout = defaultSinkTimeout
	}

	r := &Recorder{
		logger:      logger,
		sinks:       sinks,
		sinkTimeout: timeout,
		metrics:     opts.Metrics,
		clock:       clock.OrReal(opts.Clock),
		queue:       make(chan queued, size),
		done:        make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues ev. It never blocks and never panics.
func (r *Recorder) Record(ctx context.Context, ev domainaudit.Event) {
	if r == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("audit record panicked", "panic", fmt.Sprint(rec))
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = r.clock.Now()
	}
	if ev.CorrelationID == "" {
		ev.CorrelationID = correlation.FromContext(ctx)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(ev, "recorder closed")
		return
	}
	select {
	case r.queue <- queued{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		r.drop(ev, "queue full")
	}
}

// Close stops accepting events and waits for queued ones to be delivered, or for ctx.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit drain: %w", ctx.Err())
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for item := range r.queue {
		for _, entry := range r.sinks {
			r.deliver(item, entry)
		}
	}
}

func (r *Recorder) deliver(item queued, entry SinkRegistration) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("audit sink panicked",
				"sink", entry.Name,
				"audit_id", item.ev.ID,
				"panic", fmt.Sprint(rec),
			)
			r.metrics.AuditDrop()
		}
	}()

	ctx, cancel := context.WithTimeout(item.ctx, r.sinkTimeout)
	defer cancel()
	if err := entry.Sink.Write(ctx, item.ev); err != nil {
		r.logger.Warn("audit sink delivery error",
			"sink", entry.Name,
			"audit_id", item.ev.ID,
			"kind", string(item.ev.Kind),
			"error", err,
		)
		r.metrics.AuditDrop()
	}
}

func (r *Recorder) drop(ev domainaudit.Event, reason string) {
	r.logger.Warn("audit event dropped",
		"reason", reason,
		"audit_id", ev.ID,
		"kind", string(ev.Kind),
		"action", ev.Action,
	)
	r.metrics.AuditDrop()
}
