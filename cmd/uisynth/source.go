package main

import (
	"context"
	"time"

	"github.com/m-mizutani/uisynth/trace"
)

// traceSummary is one line of the trace listing.
type traceSummary struct {
	TraceID   string           `json:"trace_id"`
	Name      string           `json:"name"`
	Status    trace.SpanStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Spans     int              `json:"spans"`
}

// traceSource provides access to stored traces, most recent first.
type traceSource interface {
	List(ctx context.Context, limit int) ([]*traceSummary, error)
	Get(ctx context.Context, traceID string) (*trace.Trace, error)
}

func summarize(tr *trace.Trace) *traceSummary {
	s := &traceSummary{
		TraceID:   tr.TraceID,
		StartedAt: tr.StartedAt,
		Duration:  tr.EndedAt.Sub(tr.StartedAt),
	}
	if tr.RootSpan != nil {
		s.Name = tr.RootSpan.Name
		s.Status = tr.RootSpan.Status
		s.Error = tr.RootSpan.Error
		tr.RootSpan.Walk(func(*trace.Span) { s.Spans++ })
	}
	return s
}
