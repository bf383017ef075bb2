package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/internal"
	"github.com/m-mizutani/uisynth/orchestrator"
	"github.com/m-mizutani/uisynth/preview"
	"github.com/m-mizutani/uisynth/program"
	"github.com/m-mizutani/uisynth/search"
	"github.com/m-mizutani/uisynth/synth"
	"github.com/m-mizutani/uisynth/trace"
	"github.com/m-mizutani/uisynth/validate"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func problem() *synth.Problem {
	return &synth.Problem{
		Goal: "A landing page with a header",
		Pages: []synth.Page{
			{ID: "home", Title: "Home", Description: "Header with the product name"},
		},
	}
}

func fastPolicy(attempts int) synth.Policy {
	return synth.Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

// headerThenSubmit creates a Header stub, uses it from App, then submits.
func headerThenSubmit(ctx context.Context, req *synth.ActionRequest) (program.Action, error) {
	switch {
	case !strings.Contains(req.Source, "function Header"):
		return &program.CreateFunction{Name: "Header", Body: "  return <h1>Acme</h1>;"}, nil
	case !strings.Contains(req.Source, "<Header />"):
		body := "  return <main><Header /></main>;"
		return &program.UpdateFunction{Name: "App", Body: &body}, nil
	default:
		return &program.Submit{Details: "header done"}, nil
	}
}

func approve(ctx context.Context, req *synth.CriticRequest) (*synth.Rating, error) {
	return &synth.Rating{Score: 8, Justification: "on track"}, nil
}

type recorder struct {
	mu        sync.Mutex
	snapshots []*preview.Snapshot
}

func (r *recorder) Notify(ctx context.Context, s *preview.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func TestInitialModel(t *testing.T) {
	m := orchestrator.InitialModel()
	gt.A(t, m.Functions).Length(1).Required()
	gt.Equal(t, m.Functions[0].Name, "App")
	gt.S(t, m.Serialize()).Contains("ReactDOM.createRoot")

	result, err := validate.New().Validate(t.Context(), m.Serialize())
	gt.NoError(t, err).Required()
	gt.True(t, result.OK())

	// every call returns a fresh model
	m.Functions[0].Body = "return null;"
	gt.Equal(t, orchestrator.InitialModel().Functions[0].Body, "  return <div>Loading...</div>;")
}

func TestRunFinished(t *testing.T) {
	rec := &recorder{}
	o := orchestrator.New(headerThenSubmit, approve,
		orchestrator.WithNotifier(rec),
		orchestrator.WithLogger(internal.TestLogger()),
	)

	outcome, err := o.Run(t.Context(), problem())
	gt.NoError(t, err).Required()
	gt.Equal(t, outcome.Status, orchestrator.StatusFinished)
	gt.S(t, outcome.Source).Contains("function Header()")
	gt.S(t, outcome.Source).Contains("<Header />")
	gt.True(t, outcome.Iterations >= 3)
	gt.NotEqual(t, outcome.RunID, "")

	_, isSubmit := outcome.State.Last().Action.(*program.Submit)
	gt.True(t, isSubmit)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	gt.A(t, rec.snapshots).Length(outcome.Iterations).Required()
	gt.Equal(t, rec.snapshots[0].Steps, 0)
	last := rec.snapshots[len(rec.snapshots)-1]
	gt.True(t, last.Terminal)
	gt.Equal(t, last.RunID, outcome.RunID)
	gt.Equal(t, last.Source, outcome.Source)
}

func TestRunUnfinished(t *testing.T) {
	think := func(ctx context.Context, req *synth.ActionRequest) (program.Action, error) {
		return &program.Think{Thought: "still planning"}, nil
	}
	cfg := search.DefaultConfig()
	cfg.MaxIterations = 2

	outcome, err := orchestrator.New(think, approve, orchestrator.WithSearchConfig(cfg)).Run(t.Context(), problem())
	gt.NoError(t, err).Required()
	gt.Equal(t, outcome.Status, orchestrator.StatusUnfinished)
	gt.Equal(t, outcome.Source, "")
	gt.Equal(t, outcome.Iterations, 2)
	gt.Value(t, outcome.State).NotNil()
}

func TestRunZeroIterations(t *testing.T) {
	var calls atomic.Int32
	oracle := func(ctx context.Context, req *synth.ActionRequest) (program.Action, error) {
		calls.Add(1)
		return &program.Submit{}, nil
	}
	cfg := search.DefaultConfig()
	cfg.MaxIterations = 0

	outcome, err := orchestrator.New(oracle, approve, orchestrator.WithSearchConfig(cfg)).Run(t.Context(), problem())
	gt.NoError(t, err).Required()
	gt.Equal(t, outcome.Status, orchestrator.StatusUnfinished)
	gt.Equal(t, outcome.Iterations, 0)
	gt.Equal(t, calls.Load(), int32(0))
}

func TestRunAborted(t *testing.T) {
	t.Run("no action chosen", func(t *testing.T) {
		oracle := func(ctx context.Context, req *synth.ActionRequest) (program.Action, error) {
			return nil, goerr.Wrap(uisynth.ErrNoAction, "model answered with text only")
		}
		outcome, err := orchestrator.New(oracle, approve).Run(t.Context(), problem())
		gt.Error(t, err)
		gt.True(t, errors.Is(err, uisynth.ErrNoAction))
		gt.Value(t, outcome).NotNil().Required()
		gt.Equal(t, outcome.Status, orchestrator.StatusAborted)
		gt.Equal(t, outcome.Source, "")
		gt.True(t, errors.Is(outcome.Err, uisynth.ErrNoAction))
	})

	t.Run("retry ceiling", func(t *testing.T) {
		var calls atomic.Int32
		oracle := func(ctx context.Context, req *synth.ActionRequest) (program.Action, error) {
			calls.Add(1)
			return nil, goerr.New("upstream unavailable", goerr.Tag(uisynth.ErrTagTransient))
		}
		cfg := search.DefaultConfig()
		cfg.NumAlternatives = 1

		outcome, err := orchestrator.New(oracle, approve,
			orchestrator.WithSearchConfig(cfg),
			orchestrator.WithGeneratorOptions(synth.WithGeneratorRetry(fastPolicy(3))),
		).Run(t.Context(), problem())
		gt.Error(t, err)
		gt.Equal(t, outcome.Status, orchestrator.StatusAborted)
		gt.Equal(t, calls.Load(), int32(3))
	})
}

func TestRunNotifierPanic(t *testing.T) {
	boom := orchestrator.NotifierFunc(func(ctx context.Context, s *preview.Snapshot) {
		panic("notifier exploded")
	})
	rec := &recorder{}

	outcome, err := orchestrator.New(headerThenSubmit, approve,
		orchestrator.WithNotifier(boom),
		orchestrator.WithNotifier(rec),
	).Run(t.Context(), problem())
	gt.NoError(t, err).Required()
	gt.Equal(t, outcome.Status, orchestrator.StatusFinished)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	gt.A(t, rec.snapshots).Length(outcome.Iterations)
}

func TestRunInvalidInput(t *testing.T) {
	o := orchestrator.New(headerThenSubmit, approve)

	_, err := o.Run(t.Context(), &synth.Problem{Goal: "nothing"})
	gt.True(t, errors.Is(err, orchestrator.ErrInvalidProblem))

	_, err = o.Run(t.Context(), &synth.Problem{Pages: []synth.Page{{ID: "a"}, {ID: "a"}}})
	gt.True(t, errors.Is(err, orchestrator.ErrInvalidProblem))

	cfg := search.DefaultConfig()
	cfg.NumAlternatives = 0
	_, err = orchestrator.New(headerThenSubmit, approve, orchestrator.WithSearchConfig(cfg)).Run(t.Context(), problem())
	gt.True(t, errors.Is(err, search.ErrInvalidConfig))
}

func TestRunTrace(t *testing.T) {
	rec := trace.New()
	ctx := trace.WithHandler(t.Context(), rec)

	outcome, err := orchestrator.New(headerThenSubmit, approve).Run(ctx, problem())
	gt.NoError(t, err).Required()
	gt.Equal(t, outcome.Status, orchestrator.StatusFinished)

	tr := rec.Trace()
	gt.Value(t, tr.RootSpan).NotNil().Required()
	gt.Equal(t, tr.RootSpan.Kind, trace.SpanKindRun)

	var iterations int
	tr.RootSpan.Walk(func(s *trace.Span) {
		if s.Kind == trace.SpanKindIteration {
			iterations++
		}
	})
	// the popped terminal state is not expanded
	gt.Equal(t, iterations, outcome.Iterations-1)
}
