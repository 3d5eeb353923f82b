// Package telemetry wraps Sentry tracing for the search and indexing paths.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/logging"
	"github.com/getsentry/sentry-go"
)

const (
	serviceName  = "kbsearch"
	flushTimeout = 5 * time.Second
)

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init configures the global Sentry client and returns a function that
// flushes buffered events. An empty DSN leaves Sentry disabled; every helper
// in this package is then a no-op.
func Init(cfg Config, logger *slog.Logger) (func(), error) {
	logger = logging.OrDefault(logger)
	if cfg.DSN == "" {
		return func() {}, nil
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		TracesSampler:    tracesSampler(cfg.TracesSampleRate),
		Debug:            cfg.Debug,
		ServerName:       serviceName,
	})
	if err != nil {
		logger.Warn("sentry: failed to initialize, continuing without tracing", "error", err)
		return func() {}, nil
	}

	logger.Info("sentry: tracing initialized", "environment", cfg.Environment, "sample_rate", cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// tracesSampler drops health probes and keeps child spans consistent with
// their parent's decision.
func tracesSampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		span := ctx.Span
		if span == nil {
			return rate
		}
		if span.Name == "GET /health" {
			return 0
		}
		var root sentry.SpanID
		if span.ParentSpanID != root {
			if span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// SpanAttributes are the tags service spans carry.
type SpanAttributes struct {
	Role        string
	KnowledgeID string
	SearchMode  string
	Operation   string
}

// Span wraps sentry.Span so callers need not nil-check.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports err on the request's hub.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

// SetData attaches a value such as a hit count to the span.
func (s *Span) SetData(key string, value any) {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
}

func (a SpanAttributes) apply(span *sentry.Span) {
	if a.Role != "" {
		span.SetTag("role", a.Role)
	}
	if a.SearchMode != "" {
		span.SetTag("search_mode", a.SearchMode)
	}
	if a.KnowledgeID != "" {
		span.SetTag("knowledge_id", a.KnowledgeID)
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// StartSpan opens a child of the span in ctx, or a new transaction when ctx
// carries none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

// CaptureError reports err on the hub bound to ctx, falling back to the
// global hub.
func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}
