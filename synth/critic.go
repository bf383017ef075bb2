package synth

import (
	"context"
	"math"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/internal/retry"
	"github.com/m-mizutani/uisynth/trace"
)

const (
	// DefaultWindowSize is the number of recent steps shown to the oracles.
	DefaultWindowSize = 10

	// RatingScale is the bound of the critic's raw rating.
	RatingScale = 10
)

// Policy is the retry policy applied to oracle calls.
type Policy = retry.Policy

// DefaultPolicy allows 5 attempts with exponential backoff from 1s up to 30s.
func DefaultPolicy() Policy {
	return retry.DefaultPolicy()
}

// Normalize maps a raw rating onto [-1, 1].
func Normalize(score int) float64 {
	r := float64(score) / RatingScale
	return math.Max(-1, math.Min(1, r))
}

// Critic scores the last step of a state.
type Critic struct {
	oracle     CriticOracle
	policy     retry.Policy
	windowSize int
}

type CriticOption func(*Critic)

// WithCriticRetry replaces the retry policy. Only token-limit failures are retried regardless
// of the policy's own predicate.
func WithCriticRetry(p Policy) CriticOption {
	return func(c *Critic) {
		c.policy = p
	}
}

func WithCriticWindow(n int) CriticOption {
	return func(c *Critic) {
		c.windowSize = n
	}
}

func NewCritic(oracle CriticOracle, options ...CriticOption) *Critic {
	c := &Critic{
		oracle:     oracle,
		policy:     DefaultPolicy(),
		windowSize: DefaultWindowSize,
	}
	for _, opt := range options {
		opt(c)
	}
	c.policy.Retryable = uisynth.IsTokenExceeded
	return c
}

// Score rates the last step of s. It never fails: any oracle error, or exhausting the retry
// budget on token-limit errors, yields the neutral reward 0.
func (c *Critic) Score(ctx context.Context, s *State) float64 {
	last := s.Last()
	if last == nil {
		return 0
	}
	logger := ctxlog.From(ctx)

	var attempt int
	rating, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*Rating, error) {
		// each retry halves the window so an oversized prompt can shrink
		window := max(c.windowSize>>attempt, 1)
		attempt++

		earlier := s.Window(window + 1)[1:]
		return c.oracle(ctx, &CriticRequest{Problem: s.Problem, Last: last, Window: earlier})
	}, retry.WithNotify(func(err error, n int, wait time.Duration) {
		logger.Warn("critic input too large, retrying with a smaller window", "attempt", n, "wait", wait, "error", err)
	}))

	if err != nil {
		logger.Warn("critic failed, using neutral reward", "error", err, "action", last.Action.String())
		if h := trace.HandlerFrom(ctx); h != nil {
			h.AddEvent(ctx, "critic_degraded", map[string]any{
				"action": last.Action.String(),
				"error":  err.Error(),
			})
		}
		return 0
	}

	reward := Normalize(rating.Score)
	logger.Debug("critic rated step",
		"action", last.Action.String(),
		"score", rating.Score,
		"reward", reward,
		"justification", rating.Justification,
	)
	return reward
}

// Apply returns a state whose last step carries its reward. The step is copied, so s is left
// untouched. A state whose last step is already scored is returned as is.
func (c *Critic) Apply(ctx context.Context, s *State) *State {
	last := s.Last()
	if last == nil || last.Scored {
		return s
	}

	scored := *last
	scored.Reward = c.Score(ctx, s)
	scored.Scored = true

	steps := make([]*Step, len(s.Trace))
	copy(steps, s.Trace)
	steps[len(steps)-1] = &scored
	return &State{Problem: s.Problem, Trace: steps}
}
