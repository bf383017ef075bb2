package main

import (
	"context"

	"github.com/m-mizutani/uisynth/trace"
	"github.com/m-mizutani/uisynth/trace/sqlite"
)

type sqliteSource struct {
	repo *sqlite.Repository
}

func newSQLiteSource(repo *sqlite.Repository) traceSource {
	return &sqliteSource{repo: repo}
}

func (s *sqliteSource) List(ctx context.Context, limit int) ([]*traceSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*traceSummary, len(rows))
	for i, r := range rows {
		out[i] = &traceSummary{
			TraceID:   r.TraceID,
			Name:      r.Name,
			Status:    r.Status,
			Error:     r.Error,
			StartedAt: r.StartedAt,
			Duration:  r.Duration,
			Spans:     r.Spans,
		}
	}
	return out, nil
}

func (s *sqliteSource) Get(ctx context.Context, traceID string) (*trace.Trace, error) {
	return s.repo.Get(ctx, traceID)
}
