package synth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/internal/retry"
	"github.com/m-mizutani/uisynth/preview"
	"github.com/m-mizutani/uisynth/program"
	"github.com/m-mizutani/uisynth/trace"
	"github.com/m-mizutani/uisynth/validate"
)

// Generator extends a state by one scored step. It implements search.Expander[*State].
type Generator struct {
	oracle     ActionOracle
	critic     *Critic
	validator  *validate.Validator
	renderer   preview.Renderer
	policy     retry.Policy
	windowSize int
}

type GeneratorOption func(*Generator)

// WithGeneratorRetry replaces the retry policy for action oracle calls.
func WithGeneratorRetry(p Policy) GeneratorOption {
	return func(g *Generator) {
		g.policy = p
	}
}

// WithWindowSize sets how many recent steps the action oracle sees.
func WithWindowSize(n int) GeneratorOption {
	return func(g *Generator) {
		g.windowSize = n
	}
}

func NewGenerator(oracle ActionOracle, critic *Critic, validator *validate.Validator, renderer preview.Renderer, options ...GeneratorOption) *Generator {
	if renderer == nil {
		renderer = preview.NopRenderer{}
	}
	g := &Generator{
		oracle:     oracle,
		critic:     critic,
		validator:  validator,
		renderer:   renderer,
		policy:     DefaultPolicy(),
		windowSize: DefaultWindowSize,
	}
	for _, opt := range options {
		opt(g)
	}
	g.policy.Retryable = retryableActionError
	return g
}

// retryableActionError retries provider errors tagged as transient and malformed tool calls,
// which a fresh call usually fixes. Anything else, such as an auth failure, aborts at once.
func retryableActionError(err error) bool {
	if errors.Is(err, uisynth.ErrNoAction) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return uisynth.IsTransient(err) ||
		errors.Is(err, ErrInvalidArguments) ||
		errors.Is(err, ErrUnknownAction)
}

// Expand asks the action oracle for one action, applies it, and returns the new state with
// the critic's reward already set. Oracle failures that survive the retry policy are returned
// as errors; rejected edits and validation failures are recorded in the new step instead.
func (g *Generator) Expand(ctx context.Context, s *State) (*State, error) {
	logger := ctxlog.From(ctx)

	req := &ActionRequest{
		Problem: s.Problem,
		Focus:   s.Focus(),
		Source:  s.Model().Serialize(),
		Window:  s.Window(g.windowSize),
	}

	action, err := retry.Do(ctx, g.policy, func(ctx context.Context) (program.Action, error) {
		return g.oracle(ctx, req)
	}, retry.WithNotify(func(err error, attempt int, wait time.Duration) {
		logger.Warn("action oracle failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}))
	if err != nil {
		return nil, goerr.Wrap(err, "action oracle failed", goerr.V("steps", len(s.Trace)))
	}
	if action == nil {
		return nil, goerr.Wrap(uisynth.ErrNoAction, "action oracle returned no action", goerr.V("steps", len(s.Trace)))
	}

	step, err := g.perform(ctx, s, action)
	if err != nil {
		return nil, err
	}
	logger.Debug("step performed", "step", step)

	return g.critic.Apply(ctx, s.Extend(step)), nil
}

func (g *Generator) perform(ctx context.Context, s *State, action program.Action) (*Step, error) {
	model := s.Model()
	step := &Step{Action: action, ModelAfter: model}

	switch a := action.(type) {
	case *program.Think:
		step.ResultText = "thought recorded"

	case *program.ChangeFocus:
		if _, ok := s.Problem.Page(a.PageID); !ok {
			step.ResultText = fmt.Sprintf("rejected (%s): no page with id %q", program.RejectNotFound, a.PageID)
			g.event(ctx, "action_rejected", action, string(program.RejectNotFound))
			break
		}
		step.ResultText = "focus changed to page " + a.PageID

	case *program.Submit:
		result, err := g.validator.Validate(ctx, model.Serialize())
		if err != nil {
			return nil, goerr.Wrap(err, "failed to validate submitted program")
		}
		step.Validation = result
		step.ResultText = "submitted; " + result.String()

	case *program.CreateFunction, *program.UpdateFunction, *program.DeleteFunction,
		*program.CreateType, *program.UpdateType, *program.DeleteType:
		if err := g.edit(ctx, step, model, action); err != nil {
			return nil, err
		}

	default:
		panic(fmt.Sprintf("unhandled action type %T", action))
	}

	return step, nil
}

func (g *Generator) edit(ctx context.Context, step *Step, model *program.Model, action program.Action) error {
	next, rej := program.Apply(model, action)
	if rej != nil {
		step.ResultText = rej.String()
		g.event(ctx, "action_rejected", action, string(rej.Reason))
		return nil
	}
	step.ModelAfter = next

	source := next.Serialize()
	result, err := g.validator.Validate(ctx, source)
	if err != nil {
		return goerr.Wrap(err, "failed to validate program", goerr.V("action", action.String()))
	}
	step.Validation = result

	if !result.OK() {
		step.ResultText = "applied " + action.String() + "; " + result.String()
		g.event(ctx, "validation_failed", action, string(result.Status))
		return nil
	}

	rendered, err := g.renderer.Render(ctx, source)
	if err != nil {
		return goerr.Wrap(err, "preview failed", goerr.V("action", action.String()))
	}
	step.Preview = rendered
	step.ResultText = "applied " + action.String() + "; " + result.String() + "; " + rendered.String()
	return nil
}

func (g *Generator) event(ctx context.Context, kind string, action program.Action, reason string) {
	if h := trace.HandlerFrom(ctx); h != nil {
		h.AddEvent(ctx, kind, map[string]any{
			"action": action.String(),
			"reason": reason,
		})
	}
}
