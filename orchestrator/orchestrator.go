// Package orchestrator runs one synthesis: it seeds the search with a placeholder program,
// drives the engine to completion and reports whether code can be shipped.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth/preview"
	"github.com/m-mizutani/uisynth/program"
	"github.com/m-mizutani/uisynth/search"
	"github.com/m-mizutani/uisynth/synth"
	"github.com/m-mizutani/uisynth/trace"
	"github.com/m-mizutani/uisynth/validate"
)

var ErrInvalidProblem = errors.New("invalid problem")

// Status is the user-visible result class of a run.
type Status string

const (
	StatusFinished   Status = "finished"
	StatusUnfinished Status = "unfinished"
	StatusAborted    Status = "aborted"
)

// Outcome is owned by the orchestrator for the duration of a run. Source is set only when a
// terminal state was found. State is the terminal state, or the best visited state otherwise.
type Outcome struct {
	RunID      string
	Status     Status
	Source     string
	State      *synth.State
	Score      float64
	Iterations int
	Err        error
}

func (o *Outcome) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("run_id", o.RunID),
		slog.String("status", string(o.Status)),
		slog.Int("iterations", o.Iterations),
		slog.Float64("score", o.Score),
	}
	if o.Err != nil {
		attrs = append(attrs, slog.String("error", o.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Notifier is the progress sink. It must not block; panics are recovered.
type Notifier interface {
	Notify(ctx context.Context, s *preview.Snapshot)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, s *preview.Snapshot)

func (f NotifierFunc) Notify(ctx context.Context, s *preview.Snapshot) { f(ctx, s) }

const bootstrap = `ReactDOM.createRoot(document.getElementById("root")).render(<App />);`

// InitialModel returns the seed program: a placeholder App and the fixed bootstrap line.
func InitialModel() *program.Model {
	return &program.Model{
		Functions: []program.FuncDecl{
			{
				Name:       "App",
				ReturnType: "JSX.Element",
				Body:       "  return <div>Loading...</div>;",
			},
		},
		TrailingCode: bootstrap,
	}
}

type Orchestrator struct {
	actionOracle synth.ActionOracle
	criticOracle synth.CriticOracle

	renderer  preview.Renderer
	notifiers []Notifier
	searchCfg search.Config
	validator *validate.Validator
	logger    *slog.Logger

	generatorOptions []synth.GeneratorOption
	criticOptions    []synth.CriticOption
}

type Option func(*Orchestrator)

// WithRenderer sets the preview renderer. Default is preview.NopRenderer.
func WithRenderer(r preview.Renderer) Option {
	return func(o *Orchestrator) {
		o.renderer = r
	}
}

// WithNotifier adds a progress sink. It can be given more than once.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		o.notifiers = append(o.notifiers, n)
	}
}

func WithSearchConfig(cfg search.Config) Option {
	return func(o *Orchestrator) {
		o.searchCfg = cfg
	}
}

func WithValidator(v *validate.Validator) Option {
	return func(o *Orchestrator) {
		o.validator = v
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithGeneratorOptions passes options to the candidate generator, e.g. its retry policy.
func WithGeneratorOptions(options ...synth.GeneratorOption) Option {
	return func(o *Orchestrator) {
		o.generatorOptions = append(o.generatorOptions, options...)
	}
}

// WithCriticOptions passes options to the critic.
func WithCriticOptions(options ...synth.CriticOption) Option {
	return func(o *Orchestrator) {
		o.criticOptions = append(o.criticOptions, options...)
	}
}

func New(actionOracle synth.ActionOracle, criticOracle synth.CriticOracle, options ...Option) *Orchestrator {
	o := &Orchestrator{
		actionOracle: actionOracle,
		criticOracle: criticOracle,
		renderer:     preview.NopRenderer{},
		searchCfg:    search.DefaultConfig(),
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		opt(o)
	}
	if o.validator == nil {
		o.validator = validate.New()
	}
	return o
}

func validateProblem(p *synth.Problem) error {
	if p == nil {
		return goerr.Wrap(ErrInvalidProblem, "problem is required")
	}
	if len(p.Pages) == 0 {
		return goerr.Wrap(ErrInvalidProblem, "at least one page is required")
	}
	seen := make(map[string]struct{}, len(p.Pages))
	for i, page := range p.Pages {
		if page.ID == "" {
			return goerr.Wrap(ErrInvalidProblem, "page id is required", goerr.V("index", i))
		}
		if _, ok := seen[page.ID]; ok {
			return goerr.Wrap(ErrInvalidProblem, "duplicate page id", goerr.V("page", page.ID))
		}
		seen[page.ID] = struct{}{}
	}
	return nil
}

// Run searches for a terminal state of problem. A nil error comes with a finished or unfinished
// outcome. Fatal errors return an aborted outcome together with the error.
func (o *Orchestrator) Run(ctx context.Context, problem *synth.Problem) (outcome *Outcome, err error) {
	if err := validateProblem(problem); err != nil {
		return nil, err
	}
	if o.actionOracle == nil || o.criticOracle == nil {
		return nil, goerr.New("both action and critic oracles are required")
	}

	p := *problem
	if p.InitialModel == nil {
		p.InitialModel = InitialModel()
	}

	outcome = &Outcome{RunID: uuid.NewString()}
	logger := o.logger.With("run_id", outcome.RunID)
	ctx = ctxlog.With(ctx, logger)

	if th := trace.HandlerFrom(ctx); th != nil {
		ctx = th.StartRun(ctx, "synthesize")
		defer func() { th.EndRun(ctx, err) }()
	}

	critic := synth.NewCritic(o.criticOracle, o.criticOptions...)
	gen := synth.NewGenerator(o.actionOracle, critic, o.validator, o.renderer, o.generatorOptions...)

	var best *search.Visit[*synth.State]
	observe := func(ctx context.Context, v search.Visit[*synth.State]) {
		outcome.Iterations = v.Iteration + 1
		if best == nil || v.Score > best.Score {
			best = &v
		}
		o.forward(ctx, outcome.RunID, v)
	}

	engine, err := search.New(synth.Domain(gen, o.validator),
		search.WithConfig[*synth.State](o.searchCfg),
		search.WithObserver(observe),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("starting synthesis",
		"goal", p.Goal,
		"pages", len(p.Pages),
		"config", o.searchCfg,
	)

	result, err := engine.Run(ctx, synth.NewState(&p))
	if err != nil {
		outcome.Status = StatusAborted
		outcome.Err = err
		if best != nil {
			outcome.State = best.State
			outcome.Score = best.Score
		}
		logger.Error("synthesis aborted", "outcome", outcome)
		return outcome, err
	}

	outcome.Iterations = result.Iterations
	if result.Found {
		outcome.Status = StatusFinished
		outcome.State = result.State
		outcome.Score = result.Score
		outcome.Source = result.State.Model().Serialize()
	} else {
		outcome.Status = StatusUnfinished
		if best != nil {
			outcome.State = best.State
			outcome.Score = best.Score
		}
	}

	logger.Info("synthesis done", "outcome", outcome)
	return outcome, nil
}

func (o *Orchestrator) forward(ctx context.Context, runID string, v search.Visit[*synth.State]) {
	if len(o.notifiers) == 0 {
		return
	}

	snap := snapshot(runID, v)
	for _, n := range o.notifiers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					ctxlog.From(ctx).Error("progress notifier panicked", "panic", fmt.Sprint(r))
				}
			}()
			n.Notify(ctx, snap)
		}()
	}
}

func snapshot(runID string, v search.Visit[*synth.State]) *preview.Snapshot {
	s := &preview.Snapshot{
		RunID:     runID,
		Iteration: v.Iteration,
		Score:     v.Score,
		Steps:     len(v.State.Trace),
		Terminal:  v.Terminal,
		Source:    v.State.Model().Serialize(),
		Timestamp: time.Now(),
	}
	if last := v.State.Last(); last != nil {
		s.LastAction = last.Action.String()
		s.LastResult = last.ResultText
		s.Reward = last.Reward
	}
	return s
}
