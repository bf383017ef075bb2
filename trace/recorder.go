package trace

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Option is a functional option for configuring a Recorder.
type Option func(*Recorder)

// WithRepository sets the repository for persisting trace data.
func WithRepository(repo Repository) Option {
	return func(r *Recorder) {
		r.repo = repo
	}
}

// WithMetadata sets the metadata for the trace.
func WithMetadata(meta TraceMetadata) Option {
	return func(r *Recorder) {
		r.metadata = meta
	}
}

// WithTraceID sets a custom trace ID.
// If not set or set to an empty string, a UUID v7 is generated automatically.
func WithTraceID(id string) Option {
	return func(r *Recorder) {
		r.traceID = id
	}
}

// WithLogger sets the logger used to report persistence problems.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// Recorder collects tracing data during a run into an in-memory Trace structure.
// Branches append children concurrently, so every mutation holds mu.
type Recorder struct {
	trace    *Trace
	mu       sync.Mutex
	repo     Repository
	metadata TraceMetadata
	traceID  string
	logger   *slog.Logger
}

// New creates a new Recorder with the given options.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// context key types
type handlerKey struct{}
type currentSpanKey struct{}

// WithHandler stores the Handler in the context.
func WithHandler(ctx context.Context, h Handler) context.Context {
	return context.WithValue(ctx, handlerKey{}, h)
}

// HandlerFrom retrieves the Handler from the context. Returns nil if not set.
func HandlerFrom(ctx context.Context) Handler {
	h, _ := ctx.Value(handlerKey{}).(Handler)
	return h
}

func withCurrentSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, currentSpanKey{}, span)
}

func currentSpanFrom(ctx context.Context) *Span {
	s, _ := ctx.Value(currentSpanKey{}).(*Span)
	return s
}

func newSpanID() string {
	return uuid.New().String()
}

// StartRun starts the root run span.
func (r *Recorder) StartRun(ctx context.Context, name string) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	span := &Span{
		SpanID:    newSpanID(),
		Kind:      SpanKindRun,
		Name:      name,
		StartedAt: now,
		Status:    SpanStatusOK,
	}

	traceID := r.traceID
	if traceID == "" {
		traceID = uuid.Must(uuid.NewV7()).String()
	}

	r.trace = &Trace{
		TraceID:   traceID,
		RootSpan:  span,
		Metadata:  r.metadata,
		StartedAt: now,
	}

	return withCurrentSpan(ctx, span)
}

// EndRun ends the root run span.
func (r *Recorder) EndRun(ctx context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != SpanKindRun {
		return
	}

	now := endSpan(span, err)
	if r.trace != nil {
		r.trace.EndedAt = now
	}
}

// StartIteration starts an iteration span as a child of the run span.
func (r *Recorder) StartIteration(ctx context.Context, data *IterationData) context.Context {
	name := "iteration"
	if data != nil {
		name = "iteration_" + strconv.Itoa(data.Iteration)
	}
	return r.startChildSpan(ctx, SpanKindIteration, name, func(s *Span) {
		s.Iteration = data
	})
}

// EndIteration ends the iteration span.
func (r *Recorder) EndIteration(ctx context.Context, err error) {
	r.endKind(ctx, SpanKindIteration, err, nil)
}

// StartBranch starts a branch span as a child of the current iteration.
func (r *Recorder) StartBranch(ctx context.Context, index int) context.Context {
	return r.startChildSpan(ctx, SpanKindBranch, "branch_"+strconv.Itoa(index), nil)
}

// EndBranch ends the branch span with its score.
func (r *Recorder) EndBranch(ctx context.Context, data *BranchData, err error) {
	r.endKind(ctx, SpanKindBranch, err, func(s *Span) {
		s.Branch = data
	})
}

// StartLLMCall starts an llm_call span as a child of the current span.
func (r *Recorder) StartLLMCall(ctx context.Context) context.Context {
	return r.startChildSpan(ctx, SpanKindLLMCall, "llm_call", nil)
}

// EndLLMCall ends the llm_call span with the given data.
func (r *Recorder) EndLLMCall(ctx context.Context, data *LLMCallData, err error) {
	r.endKind(ctx, SpanKindLLMCall, err, func(s *Span) {
		s.LLMCall = data
		if data != nil && data.Oracle != "" {
			s.Name = "llm_call_" + data.Oracle
		}
	})
}

// AddEvent adds an event span as a child of the current span.
func (r *Recorder) AddEvent(ctx context.Context, kind string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent := currentSpanFrom(ctx)
	if parent == nil {
		return
	}

	now := time.Now()
	parent.Children = append(parent.Children, &Span{
		SpanID:    newSpanID(),
		ParentID:  parent.SpanID,
		Kind:      SpanKindEvent,
		Name:      kind,
		StartedAt: now,
		EndedAt:   now,
		Status:    SpanStatusOK,
		Event: &EventData{
			Kind: kind,
			Data: data,
		},
	})
}

// Finish completes the trace and persists it to the Repository.
func (r *Recorder) Finish(ctx context.Context) error {
	r.mu.Lock()
	trace := r.trace
	repo := r.repo
	r.mu.Unlock()

	if trace == nil || repo == nil {
		return nil
	}

	if err := repo.Save(ctx, trace); err != nil {
		r.logger.Warn("failed to save trace", "error", err, "trace_id", trace.TraceID)
		return err
	}

	return nil
}

// Trace returns the current trace data. Returns nil if no trace is active.
func (r *Recorder) Trace() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace
}

func (r *Recorder) startChildSpan(ctx context.Context, kind SpanKind, name string, init func(*Span)) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent := currentSpanFrom(ctx)
	if parent == nil {
		return ctx
	}

	span := &Span{
		SpanID:    newSpanID(),
		ParentID:  parent.SpanID,
		Kind:      kind,
		Name:      name,
		StartedAt: time.Now(),
		Status:    SpanStatusOK,
	}
	if init != nil {
		init(span)
	}

	parent.Children = append(parent.Children, span)
	return withCurrentSpan(ctx, span)
}

func (r *Recorder) endKind(ctx context.Context, kind SpanKind, err error, finish func(*Span)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != kind {
		return
	}
	if finish != nil {
		finish(span)
	}
	endSpan(span, err)
}

func endSpan(span *Span, err error) time.Time {
	now := time.Now()
	span.EndedAt = now
	span.Duration = now.Sub(span.StartedAt)

	if err != nil {
		span.Status = SpanStatusError
		span.Error = err.Error()
	}
	return now
}
