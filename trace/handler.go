package trace

import "context"

// Handler is the interface for trace backends.
// Implementations receive lifecycle events during a synthesis run
// and can record, export, or forward them as needed.
type Handler interface {
	// StartRun starts the root span of a synthesis run.
	StartRun(ctx context.Context, name string) context.Context
	// EndRun ends the root span.
	EndRun(ctx context.Context, err error)

	// StartIteration starts a span for one pop-expand-merge cycle of the search.
	StartIteration(ctx context.Context, data *IterationData) context.Context
	// EndIteration ends the iteration span.
	EndIteration(ctx context.Context, err error)

	// StartBranch starts a span for one concurrent branch (first successor plus rollout).
	StartBranch(ctx context.Context, index int) context.Context
	// EndBranch ends the branch span with its result.
	EndBranch(ctx context.Context, data *BranchData, err error)

	// StartLLMCall starts an oracle call span.
	StartLLMCall(ctx context.Context) context.Context
	// EndLLMCall ends an oracle call span with the given data.
	EndLLMCall(ctx context.Context, data *LLMCallData, err error)

	// AddEvent adds an event to the current span.
	AddEvent(ctx context.Context, kind string, data any)

	// Finish completes the trace and performs any final operations.
	Finish(ctx context.Context) error
}
