package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_EmptyDSNIsNoop(t *testing.T) {
	shutdown, err := Init(Config{}, nil)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NotPanics(t, shutdown)
}

func TestTracesSampler(t *testing.T) {
	sampler := tracesSampler(0.25)

	assert.Equal(t, 0.25, sampler(sentry.SamplingContext{}))
	assert.Equal(t, 0.25, sampler(sentry.SamplingContext{Span: &sentry.Span{Name: "POST /search"}}))
	assert.Equal(t, 0.0, sampler(sentry.SamplingContext{Span: &sentry.Span{Name: "GET /health"}}))

	parent := sentry.SpanID{1}
	assert.Equal(t, 1.0, sampler(sentry.SamplingContext{Span: &sentry.Span{
		Name:         "HybridSearchService.HybridSearch",
		ParentSpanID: parent,
		Sampled:      sentry.SampledTrue,
	}}))
	assert.Equal(t, 0.0, sampler(sentry.SamplingContext{Span: &sentry.Span{
		Name:         "HybridSearchService.HybridSearch",
		ParentSpanID: parent,
		Sampled:      sentry.SampledFalse,
	}}))
}

func TestStartSpan_WithoutClient(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "KnowledgeService.Create", SpanAttributes{
		Role:        "admin",
		KnowledgeID: "k1",
		SearchMode:  "hybrid",
		Operation:   "create",
	})
	require.NotNil(t, ctx)

	assert.NotPanics(t, func() {
		span.SetData("results", 3)
		span.SetError(errors.New("boom"))
		span.SetError(nil)
		span.End()
	})

	childCtx, child := StartSpan(ctx, "child", SpanAttributes{})
	assert.NotNil(t, childCtx)
	assert.NotPanics(t, child.End)
}

func TestZeroSpan(t *testing.T) {
	var span Span
	assert.NotPanics(t, func() {
		span.SetData("k", "v")
		span.SetError(errors.New("boom"))
		span.End()
	})
}

func TestCaptureError_WithoutClient(t *testing.T) {
	assert.NotPanics(t, func() {
		CaptureError(context.Background(), errors.New("boom"))
		CaptureError(context.Background(), nil)
	})
}
