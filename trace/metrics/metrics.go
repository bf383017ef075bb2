// Package metrics provides a trace handler that exports run statistics as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/m-mizutani/uisynth/trace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "uisynth"

type handler struct {
	runs          *prometheus.CounterVec
	iterations    prometheus.Counter
	branchScore   prometheus.Histogram
	rolloutSteps  prometheus.Histogram
	llmCalls      *prometheus.CounterVec
	llmTokens     *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
	events        *prometheus.CounterVec
	openSetLength prometheus.Gauge
}

// New registers the metrics on reg and returns a trace.Handler updating them.
// Registering twice on the same registry panics, so create one handler per registry.
func New(reg prometheus.Registerer) trace.Handler {
	f := promauto.With(reg)
	return &handler{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Synthesis runs by result",
		}, []string{"result"}),
		iterations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Search iterations (open set pops)",
		}),
		branchScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "branch_score",
			Help:      "Score f = g + lambda*h of evaluated branches",
			Buckets:   prometheus.LinearBuckets(-2, 0.25, 17),
		}),
		rolloutSteps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rollout_steps",
			Help:      "Rollout steps actually taken per branch",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),
		llmCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Oracle calls by oracle and status",
		}, []string{"oracle", "status"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by oracle and direction",
		}, []string{"oracle", "direction"}),
		llmDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Oracle call latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"oracle"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "In-band events such as rejections, diagnostics and degraded ratings",
		}, []string{"kind"}),
		openSetLength: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_set_size",
			Help:      "Open set size at the last iteration",
		}),
	}
}

type startTimeKey struct{}

func (h *handler) StartRun(ctx context.Context, name string) context.Context {
	return ctx
}

func (h *handler) EndRun(ctx context.Context, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	h.runs.WithLabelValues(result).Inc()
}

func (h *handler) StartIteration(ctx context.Context, data *trace.IterationData) context.Context {
	h.iterations.Inc()
	if data != nil {
		h.openSetLength.Set(float64(data.OpenSize))
	}
	return ctx
}

func (h *handler) EndIteration(ctx context.Context, err error) {}

func (h *handler) StartBranch(ctx context.Context, index int) context.Context {
	return ctx
}

func (h *handler) EndBranch(ctx context.Context, data *trace.BranchData, err error) {
	if data == nil || err != nil {
		return
	}
	h.branchScore.Observe(data.Score)
	h.rolloutSteps.Observe(float64(data.RolloutSteps))
}

func (h *handler) StartLLMCall(ctx context.Context) context.Context {
	return context.WithValue(ctx, startTimeKey{}, time.Now())
}

func (h *handler) EndLLMCall(ctx context.Context, data *trace.LLMCallData, err error) {
	oracle := "unknown"
	if data != nil && data.Oracle != "" {
		oracle = data.Oracle
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	h.llmCalls.WithLabelValues(oracle, status).Inc()

	if started, ok := ctx.Value(startTimeKey{}).(time.Time); ok {
		h.llmDuration.WithLabelValues(oracle).Observe(time.Since(started).Seconds())
	}

	if data != nil {
		h.llmTokens.WithLabelValues(oracle, "input").Add(float64(data.InputTokens))
		h.llmTokens.WithLabelValues(oracle, "output").Add(float64(data.OutputTokens))
	}
}

func (h *handler) AddEvent(ctx context.Context, kind string, data any) {
	h.events.WithLabelValues(kind).Inc()
}

func (h *handler) Finish(_ context.Context) error {
	return nil
}
