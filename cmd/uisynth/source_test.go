package main_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	main "github.com/m-mizutani/uisynth/cmd/uisynth"
	"github.com/m-mizutani/uisynth/trace"
	"github.com/m-mizutani/uisynth/trace/sqlite"
)

func recordRun(t *testing.T, repo trace.Repository, id string, runErr error) {
	t.Helper()
	rec := trace.New(trace.WithRepository(repo), trace.WithTraceID(id))
	ctx := rec.StartRun(context.Background(), "synthesize")

	for i := range 2 {
		iterCtx := rec.StartIteration(ctx, &trace.IterationData{Iteration: i, OpenSize: 1})
		branchCtx := rec.StartBranch(iterCtx, 0)
		llmCtx := rec.StartLLMCall(branchCtx)
		rec.EndLLMCall(llmCtx, &trace.LLMCallData{Oracle: "action"}, nil)
		rec.EndBranch(branchCtx, &trace.BranchData{Index: 0, Score: 0.5}, nil)
		rec.EndIteration(iterCtx, nil)
	}
	rec.EndRun(ctx, runErr)
	gt.NoError(t, rec.Finish(ctx)).Required()
}

func testSource(t *testing.T, src *main.TestableSource) {
	ctx := t.Context()

	t.Run("list", func(t *testing.T) {
		list, err := src.List(ctx, 0)
		gt.NoError(t, err).Required()
		gt.A(t, list).Length(3).Required()
		for i := 1; i < len(list); i++ {
			gt.False(t, list[i].StartedAt.After(list[i-1].StartedAt))
		}

		byID := map[string]*main.TraceSummary{}
		for _, s := range list {
			byID[s.TraceID] = s
		}
		gt.Equal(t, byID["run-1"].Name, "synthesize")
		gt.Equal(t, byID["run-1"].Status, trace.SpanStatusOK)
		gt.Equal(t, byID["run-1"].Spans, 7)
		gt.Equal(t, byID["run-2"].Status, trace.SpanStatusError)
		gt.S(t, byID["run-2"].Error).Contains("aborted")
	})

	t.Run("limit", func(t *testing.T) {
		list, err := src.List(ctx, 2)
		gt.NoError(t, err)
		gt.A(t, list).Length(2)
	})

	t.Run("get", func(t *testing.T) {
		tr, err := src.Get(ctx, "run-3")
		gt.NoError(t, err).Required()
		gt.Equal(t, tr.TraceID, "run-3")
		gt.A(t, tr.RootSpan.Children).Length(2)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := src.Get(ctx, "run-404")
		gt.True(t, errors.Is(err, trace.ErrNotFound))
	})
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	repo := trace.NewFileRepository(dir)
	recordRun(t, repo, "run-1", nil)
	recordRun(t, repo, "run-2", errors.New("aborted"))
	recordRun(t, repo, "run-3", nil)

	// files that are not traces are ignored
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte(`{"x":1}`), 0600))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0600))
	gt.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0750))

	testSource(t, main.NewLocalSource(dir))

	t.Run("path traversal is rejected", func(t *testing.T) {
		_, err := main.NewLocalSource(dir).Get(t.Context(), "../run-1")
		gt.Error(t, err)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := main.NewLocalSource(filepath.Join(dir, "missing")).List(t.Context(), 10)
		gt.Error(t, err)
	})
}

func TestSQLiteSource(t *testing.T) {
	repo, err := sqlite.New(t.Context(), filepath.Join(t.TempDir(), "traces.db"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = repo.Close() })

	recordRun(t, repo, "run-1", nil)
	recordRun(t, repo, "run-2", errors.New("aborted"))
	recordRun(t, repo, "run-3", nil)

	testSource(t, main.NewSQLiteSource(repo))
}
