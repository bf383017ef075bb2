package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uisynth/trace"
	"github.com/m-mizutani/uisynth/trace/sqlite"
)

func newRepository(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.New(t.Context(), filepath.Join(t.TempDir(), "traces.db"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func recordRun(t *testing.T, repo trace.Repository, id string, runErr error) {
	t.Helper()
	rec := trace.New(trace.WithRepository(repo), trace.WithTraceID(id))
	ctx := rec.StartRun(context.Background(), "synthesize")

	for i := range 2 {
		iterCtx := rec.StartIteration(ctx, &trace.IterationData{Iteration: i, OpenSize: 1})
		branchCtx := rec.StartBranch(iterCtx, 0)
		llmCtx := rec.StartLLMCall(branchCtx)
		rec.EndLLMCall(llmCtx, &trace.LLMCallData{Oracle: "action", InputTokens: 10}, nil)
		rec.EndBranch(branchCtx, &trace.BranchData{Index: 0, Score: 0.5}, nil)
		rec.EndIteration(iterCtx, nil)
	}
	rec.EndRun(ctx, runErr)
	gt.NoError(t, rec.Finish(ctx)).Required()
}

func TestSaveAndGet(t *testing.T) {
	repo := newRepository(t)
	recordRun(t, repo, "run-1", nil)

	tr, err := repo.Get(t.Context(), "run-1")
	gt.NoError(t, err).Required()
	gt.Equal(t, tr.TraceID, "run-1")
	gt.Equal(t, tr.RootSpan.Name, "synthesize")
	gt.A(t, tr.RootSpan.Children).Length(2)
	gt.Equal(t, tr.RootSpan.Children[1].Iteration.Iteration, 1)

	n, err := repo.CountSpans(t.Context(), "run-1", trace.SpanKindLLMCall)
	gt.NoError(t, err)
	gt.Equal(t, n, 2)
}

func TestSaveReplaces(t *testing.T) {
	repo := newRepository(t)
	recordRun(t, repo, "run-1", nil)
	recordRun(t, repo, "run-1", errors.New("aborted"))

	tr, err := repo.Get(t.Context(), "run-1")
	gt.NoError(t, err).Required()
	gt.Equal(t, tr.RootSpan.Status, trace.SpanStatusError)

	n, err := repo.CountSpans(t.Context(), "run-1", trace.SpanKindIteration)
	gt.NoError(t, err)
	gt.Equal(t, n, 2)
}

func TestList(t *testing.T) {
	repo := newRepository(t)
	recordRun(t, repo, "run-a", nil)
	recordRun(t, repo, "run-b", errors.New("oracle exhausted"))

	list, err := repo.List(t.Context(), 10)
	gt.NoError(t, err).Required()
	gt.A(t, list).Length(2).Required()

	byID := map[string]*sqlite.Summary{}
	for _, s := range list {
		byID[s.TraceID] = s
	}
	gt.Equal(t, byID["run-a"].Status, trace.SpanStatusOK)
	gt.Equal(t, byID["run-b"].Error, "oracle exhausted")
	// root + 2 * (iteration, branch, llm_call)
	gt.Equal(t, byID["run-a"].Spans, 7)

	limited, err := repo.List(t.Context(), 1)
	gt.NoError(t, err)
	gt.A(t, limited).Length(1)
}

func TestGetMissing(t *testing.T) {
	repo := newRepository(t)
	_, err := repo.Get(t.Context(), "nope")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, sqlite.ErrTraceNotFound))
}
