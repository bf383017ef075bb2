package trace_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uisynth/trace"
)

func sampleTrace(id string) *trace.Trace {
	now := time.Now()
	return &trace.Trace{
		TraceID: id,
		RootSpan: &trace.Span{
			SpanID:    "root",
			Kind:      trace.SpanKindRun,
			Name:      "synthesize",
			StartedAt: now,
			EndedAt:   now.Add(2 * time.Second),
			Duration:  2 * time.Second,
			Status:    trace.SpanStatusOK,
			Children: []*trace.Span{
				{
					SpanID:    "iter-0",
					ParentID:  "root",
					Kind:      trace.SpanKindIteration,
					Name:      "iteration_0",
					Status:    trace.SpanStatusOK,
					Iteration: &trace.IterationData{Iteration: 0, OpenSize: 1},
					Children: []*trace.Span{
						{
							SpanID:   "llm-1",
							ParentID: "iter-0",
							Kind:     trace.SpanKindLLMCall,
							Name:     "llm_call_action",
							Status:   trace.SpanStatusOK,
							LLMCall: &trace.LLMCallData{
								Oracle:      "action",
								InputTokens: 200,
								Request: &trace.LLMRequest{
									SystemPrompt: "You build UIs.",
									Tools:        []string{"create_function"},
								},
								Response: &trace.LLMResponse{
									FunctionCalls: []*trace.FunctionCall{
										{ID: "call-1", Name: "create_function", Arguments: map[string]any{"name": "Header"}},
									},
								},
							},
						},
					},
				},
			},
		},
		Metadata:  trace.TraceMetadata{Provider: "claude", Model: "test-model"},
		StartedAt: now,
		EndedAt:   now.Add(2 * time.Second),
	}
}

func TestFileRepository(t *testing.T) {
	t.Run("save then get", func(t *testing.T) {
		dir := t.TempDir()
		repo := trace.NewFileRepository(dir)
		gt.NoError(t, repo.Save(t.Context(), sampleTrace("run-1"))).Required()

		loaded, err := repo.Get(t.Context(), "run-1")
		gt.NoError(t, err).Required()
		gt.Equal(t, loaded.Metadata.Model, "test-model")

		iter := loaded.RootSpan.Children[0]
		gt.Equal(t, iter.Iteration.OpenSize, 1)
		gt.Equal(t, iter.Children[0].LLMCall.InputTokens, 200)
		gt.Equal(t, iter.Children[0].LLMCall.Response.FunctionCalls[0].Name, "create_function")

		// only the final file remains
		entries, err := os.ReadDir(dir)
		gt.NoError(t, err).Required()
		gt.A(t, entries).Length(1).Required()
		gt.Equal(t, entries[0].Name(), "run-1.json")
	})

	t.Run("save overwrites", func(t *testing.T) {
		repo := trace.NewFileRepository(t.TempDir())
		tr := sampleTrace("run-1")
		gt.NoError(t, repo.Save(t.Context(), tr)).Required()

		tr.RootSpan.Status = trace.SpanStatusError
		gt.NoError(t, repo.Save(t.Context(), tr)).Required()

		loaded, err := repo.Get(t.Context(), "run-1")
		gt.NoError(t, err).Required()
		gt.Equal(t, loaded.RootSpan.Status, trace.SpanStatusError)
	})

	t.Run("creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "dir")
		gt.NoError(t, trace.NewFileRepository(dir).Save(t.Context(), sampleTrace("run-1"))).Required()

		_, err := os.Stat(filepath.Join(dir, "run-1.json"))
		gt.NoError(t, err)
	})

	t.Run("unsafe ids are rejected", func(t *testing.T) {
		repo := trace.NewFileRepository(t.TempDir())
		for _, id := range []string{"", "../escape", "a/b"} {
			err := repo.Save(t.Context(), sampleTrace(id))
			gt.True(t, errors.Is(err, trace.ErrInvalidTraceID))

			_, err = repo.Get(t.Context(), id)
			gt.True(t, errors.Is(err, trace.ErrInvalidTraceID))
		}
	})

	t.Run("missing trace", func(t *testing.T) {
		_, err := trace.NewFileRepository(t.TempDir()).Get(t.Context(), "run-404")
		gt.True(t, errors.Is(err, trace.ErrNotFound))
	})

	t.Run("non-trace json", func(t *testing.T) {
		dir := t.TempDir()
		gt.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte(`{"x":1}`), 0600)).Required()
		_, err := trace.NewFileRepository(dir).Get(t.Context(), "notes")
		gt.Error(t, err)
	})
}
