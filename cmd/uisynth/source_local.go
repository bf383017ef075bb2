package main

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth/trace"
)

// localSource reads the directory written by trace.FileRepository.
type localSource struct {
	dir  string
	repo *trace.FileRepository
}

func newLocalSource(dir string) traceSource {
	return &localSource{dir: dir, repo: trace.NewFileRepository(dir)}
}

func (s *localSource) List(ctx context.Context, limit int) ([]*traceSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read directory", goerr.V("dir", s.dir))
	}

	var out []*traceSummary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		tr, err := s.repo.Get(ctx, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			// other JSON files may share the directory
			continue
		}
		out = append(out, summarize(tr))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].TraceID < out[j].TraceID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *localSource) Get(ctx context.Context, traceID string) (*trace.Trace, error) {
	return s.repo.Get(ctx, traceID)
}
