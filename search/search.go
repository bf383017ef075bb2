// Package search implements a best-first, reward-maximizing search with parallel
// rollout lookahead.
//
// Each iteration pops the open entry with the highest score. Unless the popped state is
// terminal, NumAlternatives branches are expanded concurrently from it. A branch takes one
// successor and then simulates up to NumExplorationSteps further expansions to estimate a
// heuristic h. The successor is scored f = g + Lambda*h, where g is the aggregate reward of
// the parent, and only the successor enters the open set; rollout states are discarded.
package search

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth/trace"
	"golang.org/x/sync/errgroup"
)

// Expander produces one successor of a state. Implementations must not mutate the input.
type Expander[S any] interface {
	Expand(ctx context.Context, state S) (S, error)
}

// ExpanderFunc adapts a function to Expander.
type ExpanderFunc[S any] func(ctx context.Context, state S) (S, error)

func (f ExpanderFunc[S]) Expand(ctx context.Context, state S) (S, error) {
	return f(ctx, state)
}

// Domain binds the engine to a concrete state type.
type Domain[S any] struct {
	Expander Expander[S]
	// Terminal reports whether a state solves the problem.
	Terminal func(S) bool
	// Aggregate is g: the accumulated path reward of a state.
	Aggregate func(S) float64
	// Reward is the reward of the step that produced a state.
	Reward func(S) float64
	// Depth is optional and only used for tracing.
	Depth func(S) int
}

func (d Domain[S]) validate() error {
	if d.Expander == nil {
		return goerr.Wrap(ErrInvalidConfig, "expander is required")
	}
	if d.Terminal == nil || d.Aggregate == nil || d.Reward == nil {
		return goerr.Wrap(ErrInvalidConfig, "terminal, aggregate and reward functions are required")
	}
	return nil
}

// Visit describes one popped state. It is passed to the observer.
type Visit[S any] struct {
	Iteration   int
	State       S
	Score       float64
	OpenSize    int
	VisitedSize int
	Terminal    bool
}

// Observer receives every visit. It runs on the search goroutine and must return quickly.
type Observer[S any] func(ctx context.Context, v Visit[S])

// Result is the outcome of Run. State is the zero value when Found is false.
type Result[S any] struct {
	State      S
	Score      float64
	Found      bool
	Iterations int
	Visited    []Scored[S]
	Open       []Scored[S]
}

type Engine[S any] struct {
	cfg      Config
	domain   Domain[S]
	observer Observer[S]
}

type Option[S any] func(*Engine[S])

// WithConfig replaces the default configuration.
func WithConfig[S any](cfg Config) Option[S] {
	return func(e *Engine[S]) {
		e.cfg = cfg
	}
}

// WithObserver sets a progress observer.
func WithObserver[S any](fn func(ctx context.Context, v Visit[S])) Option[S] {
	return func(e *Engine[S]) {
		e.observer = fn
	}
}

func New[S any](domain Domain[S], options ...Option[S]) (*Engine[S], error) {
	e := &Engine[S]{
		cfg:    DefaultConfig(),
		domain: domain,
	}
	for _, opt := range options {
		opt(e)
	}

	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := domain.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine[S]) Config() Config {
	return e.cfg
}

// Run searches from root. It returns Found=false with a nil error when MaxIterations pops
// pass without a terminal state or the open set runs dry. Any expansion error aborts the run.
func (e *Engine[S]) Run(ctx context.Context, root S) (*Result[S], error) {
	logger := ctxlog.From(ctx)
	th := trace.HandlerFrom(ctx)

	open := &openSet[S]{}
	open.push(root, 0)
	result := &Result[S]{}

	for iter := 0; iter < e.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "search cancelled", goerr.V("iteration", iter))
		}

		current, ok := open.pop()
		if !ok {
			logger.Debug("open set exhausted", "iteration", iter)
			break
		}
		result.Visited = append(result.Visited, current)
		result.Iterations = iter + 1

		terminal := e.domain.Terminal(current.State)
		e.notify(ctx, Visit[S]{
			Iteration:   iter,
			State:       current.State,
			Score:       current.Score,
			OpenSize:    open.len(),
			VisitedSize: len(result.Visited),
			Terminal:    terminal,
		})

		if terminal {
			logger.Info("terminal state found", "iteration", iter, "score", current.Score)
			result.State = current.State
			result.Score = current.Score
			result.Found = true
			result.Open = open.snapshot()
			return result, nil
		}

		iterCtx := ctx
		if th != nil {
			data := &trace.IterationData{Iteration: iter, Score: current.Score, OpenSize: open.len()}
			if e.domain.Depth != nil {
				data.TraceLen = e.domain.Depth(current.State)
			}
			iterCtx = th.StartIteration(ctx, data)
		}

		candidates, err := e.expand(iterCtx, current.State)
		if th != nil {
			th.EndIteration(iterCtx, err)
		}
		if err != nil {
			return nil, goerr.Wrap(err, "branch expansion failed", goerr.V("iteration", iter))
		}

		for _, c := range candidates {
			open.push(c.State, c.Score)
		}
		logger.Debug("iteration done",
			"iteration", iter,
			"popped_score", current.Score,
			"candidates", len(candidates),
			"open", open.len(),
		)
	}

	result.Open = open.snapshot()
	return result, nil
}

// expand runs all branches concurrently and returns their candidates in branch order.
func (e *Engine[S]) expand(ctx context.Context, parent S) ([]Scored[S], error) {
	g := e.domain.Aggregate(parent)
	candidates := make([]Scored[S], e.cfg.NumAlternatives)

	eg, egCtx := errgroup.WithContext(ctx)
	for i := range e.cfg.NumAlternatives {
		eg.Go(func() error {
			c, err := e.branch(egCtx, i, parent, g)
			if err != nil {
				return goerr.Wrap(err, "branch failed", goerr.V("branch", i))
			}
			candidates[i] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (e *Engine[S]) branch(ctx context.Context, index int, parent S, g float64) (c Scored[S], err error) {
	th := trace.HandlerFrom(ctx)
	data := &trace.BranchData{Index: index, G: g}
	if th != nil {
		ctx = th.StartBranch(ctx, index)
		defer func() { th.EndBranch(ctx, data, err) }()
	}

	first, err := e.domain.Expander.Expand(ctx, parent)
	if err != nil {
		return c, err
	}

	h, steps, terminal, err := e.rollout(ctx, first)
	if err != nil {
		return c, err
	}

	score := g + e.cfg.Lambda*h
	data.H = h
	data.Score = score
	data.RolloutSteps = steps
	data.Terminal = terminal

	return Scored[S]{State: first, Score: score}, nil
}

// rollout estimates h from first. The accumulated reward starts with first's own reward;
// steps counts only expansions beyond first.
func (e *Engine[S]) rollout(ctx context.Context, first S) (h float64, steps int, terminal bool, err error) {
	accum := e.domain.Reward(first)

	if e.domain.Terminal(first) {
		return accum + e.cfg.TerminalReward, 0, true, nil
	}

	cur := first
	for steps < e.cfg.NumExplorationSteps {
		next, err := e.domain.Expander.Expand(ctx, cur)
		if err != nil {
			return 0, steps, false, goerr.Wrap(err, "rollout expansion failed", goerr.V("step", steps))
		}
		steps++
		accum += e.domain.Reward(next)

		if e.domain.Terminal(next) {
			accum += e.cfg.TerminalReward
			terminal = true
			break
		}
		cur = next
	}

	if steps == 0 {
		return accum, 0, terminal, nil
	}
	return accum / float64(steps), steps, terminal, nil
}

func (e *Engine[S]) notify(ctx context.Context, v Visit[S]) {
	if e.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ctxlog.From(ctx).Warn("search observer panicked", "panic", fmt.Sprint(r), "iteration", v.Iteration)
		}
	}()
	e.observer(ctx, v)
}
