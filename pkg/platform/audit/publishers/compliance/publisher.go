// Package compliance provides the audit publisher for dataset access.
//
// Compliance events (uploads, decryptions) are written synchronously and
// fail closed: if the write fails an error is returned and the calling
// operation must fail. Security and operations events are best effort; a
// failed write is logged and counted but never blocks the caller.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	audit "fedlearn/pkg/platform/audit"
	"fedlearn/pkg/requestcontext"
)

// Publisher emits audit events to a store.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records the event. Only compliance events return a persistence error.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.UserID <= 0 {
		return errors.New("audit event requires UserID")
	}
	if event.Action == "" {
		return errors.New("audit event requires Action")
	}

	start := p.now()
	if event.Timestamp.IsZero() {
		event.Timestamp = start
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.IncPersistFailures(event.Category)
		if event.Category == audit.CategoryCompliance {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"user_id", event.UserID,
				"subject", event.Subject,
				"error", err,
			)
			return fmt.Errorf("compliance audit persistence failed: %w", err)
		}
		p.logger.WarnContext(ctx, "audit event dropped",
			"action", event.Action,
			"category", event.Category,
			"error", err,
		)
		return nil
	}

	p.metrics.ObservePersistDuration(time.Since(start).Seconds())
	p.metrics.IncEventsEmitted(event.Category)
	return nil
}
