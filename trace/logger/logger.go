package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/uisynth/trace"
)

// Event represents a trace event type that can be selectively enabled.
type Event int

const (
	// Run enables logging of run start/end.
	Run Event = iota
	// Iteration enables logging of each search iteration.
	Iteration
	// Branch enables logging of branch results (g, h, score).
	Branch
	// LLMRequest enables logging of oracle request details.
	LLMRequest
	// LLMResponse enables logging of oracle response details (function calls, token usage).
	LLMResponse
	// CustomEvent enables logging of in-band events such as rejections and degraded ratings.
	CustomEvent

	eventCount // sentinel for iteration
)

type config struct {
	logger *slog.Logger
	events map[Event]bool
}

// Option configures the logger handler.
type Option func(*config)

// WithLogger sets a custom slog.Logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithEvents enables only the specified event types.
// When not specified, all events are enabled.
func WithEvents(events ...Event) Option {
	return func(c *config) {
		c.events = make(map[Event]bool, len(events))
		for _, e := range events {
			c.events[e] = true
		}
	}
}

// handler implements trace.Handler by logging events via slog.
type handler struct {
	cfg config
}

// New creates a new trace.Handler that logs trace events via slog.
func New(opts ...Option) trace.Handler {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.events == nil {
		cfg.events = make(map[Event]bool, eventCount)
		for i := Event(0); i < eventCount; i++ {
			cfg.events[i] = true
		}
	}

	return &handler{cfg: cfg}
}

func (h *handler) logger() *slog.Logger {
	if h.cfg.logger != nil {
		return h.cfg.logger
	}
	return slog.Default()
}

func (h *handler) enabled(e Event) bool {
	return h.cfg.events[e]
}

type startTimeKey struct{}

func withStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey{}, t)
}

func startTimeFrom(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey{}).(time.Time)
	return t
}

type iterationKey struct{}

func (h *handler) StartRun(ctx context.Context, name string) context.Context {
	if h.enabled(Run) {
		h.logger().InfoContext(ctx, "synthesis run started", slog.String("name", name))
	}
	return withStartTime(ctx, time.Now())
}

func (h *handler) EndRun(ctx context.Context, err error) {
	if !h.enabled(Run) {
		return
	}

	attrs := []any{
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	h.logger().InfoContext(ctx, "synthesis run ended", attrs...)
}

func (h *handler) StartIteration(ctx context.Context, data *trace.IterationData) context.Context {
	ctx = withStartTime(ctx, time.Now())
	if data == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, iterationKey{}, data.Iteration)
	if h.enabled(Iteration) {
		h.logger().InfoContext(ctx, "search iteration",
			slog.Int("iteration", data.Iteration),
			slog.Float64("score", data.Score),
			slog.Int("open_size", data.OpenSize),
			slog.Int("trace_len", data.TraceLen),
		)
	}
	return ctx
}

func (h *handler) EndIteration(ctx context.Context, err error) {
	if !h.enabled(Iteration) || err == nil {
		return
	}
	iter, _ := ctx.Value(iterationKey{}).(int)
	h.logger().WarnContext(ctx, "search iteration failed",
		slog.Int("iteration", iter),
		slog.String("error", err.Error()),
	)
}

func (h *handler) StartBranch(ctx context.Context, index int) context.Context {
	return withStartTime(ctx, time.Now())
}

func (h *handler) EndBranch(ctx context.Context, data *trace.BranchData, err error) {
	if !h.enabled(Branch) {
		return
	}

	attrs := []any{
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}
	if data != nil {
		attrs = append(attrs,
			slog.Int("index", data.Index),
			slog.Float64("g", data.G),
			slog.Float64("h", data.H),
			slog.Float64("score", data.Score),
			slog.Int("rollout_steps", data.RolloutSteps),
			slog.Bool("terminal", data.Terminal),
		)
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	h.logger().InfoContext(ctx, "branch evaluated", attrs...)
}

// StartLLMCall records the start time for duration calculation.
func (h *handler) StartLLMCall(ctx context.Context) context.Context {
	return withStartTime(ctx, time.Now())
}

// EndLLMCall logs oracle call details based on enabled events.
// If either LLMRequest or LLMResponse is enabled, model and token usage are always included.
func (h *handler) EndLLMCall(ctx context.Context, data *trace.LLMCallData, err error) {
	reqEnabled := h.enabled(LLMRequest)
	respEnabled := h.enabled(LLMResponse)
	if !reqEnabled && !respEnabled {
		return
	}

	attrs := []any{
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}

	if data != nil {
		attrs = append(attrs,
			slog.String("oracle", data.Oracle),
			slog.String("model", data.Model),
			slog.Int("input_tokens", data.InputTokens),
			slog.Int("output_tokens", data.OutputTokens),
		)

		if reqEnabled && data.Request != nil {
			attrs = append(attrs, slog.Any("request", data.Request))
		}
		if respEnabled && data.Response != nil {
			attrs = append(attrs, slog.Any("response", data.Response))
		}
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	h.logger().InfoContext(ctx, "llm call", attrs...)
}

func (h *handler) AddEvent(ctx context.Context, kind string, data any) {
	if !h.enabled(CustomEvent) {
		return
	}

	h.logger().InfoContext(ctx, "event",
		slog.String("kind", kind),
		slog.Any("data", data),
	)
}

// Finish is a no-op for the logger handler. Persistence is the Recorder's responsibility.
func (h *handler) Finish(_ context.Context) error {
	return nil
}
