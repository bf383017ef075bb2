// Package otel provides an OpenTelemetry trace handler for synthesis runs.
//
// It bridges trace events to OpenTelemetry spans, allowing integration with
// any OTel-compatible backend (Jaeger, Zipkin, OTLP, etc.).
//
// With explicit TracerProvider:
//
//	h := otel.New(otel.WithTracerProvider(tp))
//	ctx = trace.WithHandler(ctx, h)
package otel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/uisynth/trace"
	otelAPI "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/m-mizutani/uisynth"
)

// Option is a functional option for configuring the OTel handler.
type Option func(*handler)

// WithTracerProvider sets an explicit TracerProvider.
// If not set, the global TracerProvider is used.
func WithTracerProvider(tp otelTrace.TracerProvider) Option {
	return func(h *handler) {
		h.tracerProvider = tp
	}
}

// handler implements trace.Handler by bridging events to OpenTelemetry spans.
type handler struct {
	tracerProvider otelTrace.TracerProvider
	tracer         otelTrace.Tracer
}

// New creates a new OTel trace handler.
func New(opts ...Option) trace.Handler {
	h := &handler{}
	for _, opt := range opts {
		opt(h)
	}

	if h.tracerProvider == nil {
		h.tracerProvider = otelAPI.GetTracerProvider()
	}
	h.tracer = h.tracerProvider.Tracer(tracerName)

	return h
}

func endSpan(ctx context.Context, err error) {
	span := otelTrace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (h *handler) StartRun(ctx context.Context, name string) context.Context {
	ctx, _ = h.tracer.Start(ctx, "run:"+name,
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	return ctx
}

func (h *handler) EndRun(ctx context.Context, err error) {
	endSpan(ctx, err)
}

func (h *handler) StartIteration(ctx context.Context, data *trace.IterationData) context.Context {
	name := "iteration"
	if data != nil {
		name = fmt.Sprintf("iteration:%d", data.Iteration)
	}
	ctx, span := h.tracer.Start(ctx, name,
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	if data != nil {
		span.SetAttributes(
			iterationAttr(data.Iteration),
			scoreAttr(data.Score),
			openSizeAttr(data.OpenSize),
		)
	}
	return ctx
}

func (h *handler) EndIteration(ctx context.Context, err error) {
	endSpan(ctx, err)
}

func (h *handler) StartBranch(ctx context.Context, index int) context.Context {
	ctx, span := h.tracer.Start(ctx, fmt.Sprintf("branch:%d", index),
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	span.SetAttributes(branchIndexAttr(index))
	return ctx
}

func (h *handler) EndBranch(ctx context.Context, data *trace.BranchData, err error) {
	if data != nil {
		otelTrace.SpanFromContext(ctx).SetAttributes(
			scoreAttr(data.Score),
			branchGAttr(data.G),
			branchHAttr(data.H),
			rolloutStepsAttr(data.RolloutSteps),
		)
	}
	endSpan(ctx, err)
}

func (h *handler) StartLLMCall(ctx context.Context) context.Context {
	ctx, _ = h.tracer.Start(ctx, "llm_call",
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
	)
	return ctx
}

func (h *handler) EndLLMCall(ctx context.Context, data *trace.LLMCallData, err error) {
	span := otelTrace.SpanFromContext(ctx)
	if data != nil {
		span.SetAttributes(
			llmOracleAttr(data.Oracle),
			llmModelAttr(data.Model),
			llmInputTokensAttr(data.InputTokens),
			llmOutputTokensAttr(data.OutputTokens),
		)
	}
	endSpan(ctx, err)
}

func (h *handler) AddEvent(ctx context.Context, kind string, data any) {
	span := otelTrace.SpanFromContext(ctx)
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			span.AddEvent(kind, otelTrace.WithAttributes(eventDataAttr(string(b))))
			return
		}
	}
	span.AddEvent(kind)
}

func (h *handler) Finish(_ context.Context) error {
	// spans are exported by the TracerProvider's SpanProcessor
	return nil
}
