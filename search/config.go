package search

import (
	"errors"
	"math"

	"github.com/m-mizutani/goerr/v2"
)

const (
	// DefaultNumAlternatives is the default number of branches launched per iteration
	DefaultNumAlternatives = 3
	// DefaultNumExplorationSteps is the default rollout depth after the first successor
	DefaultNumExplorationSteps = 2
	// DefaultLambda is the default weight of the rollout heuristic
	DefaultLambda = 0.5
	// DefaultMaxIterations is the default number of pops before giving up
	DefaultMaxIterations = 20
	// DefaultTerminalReward is the default bonus for reaching a terminal state during rollout
	DefaultTerminalReward = 1.0
)

var ErrInvalidConfig = errors.New("invalid search config")

// Config controls the shape and budget of a search.
type Config struct {
	NumAlternatives     int     `yaml:"num_alternatives" json:"num_alternatives"`
	NumExplorationSteps int     `yaml:"num_exploration_steps" json:"num_exploration_steps"`
	Lambda              float64 `yaml:"lambda" json:"lambda"`
	MaxIterations       int     `yaml:"max_iterations" json:"max_iterations"`
	TerminalReward      float64 `yaml:"terminal_reward" json:"terminal_reward"`
}

func DefaultConfig() Config {
	return Config{
		NumAlternatives:     DefaultNumAlternatives,
		NumExplorationSteps: DefaultNumExplorationSteps,
		Lambda:              DefaultLambda,
		MaxIterations:       DefaultMaxIterations,
		TerminalReward:      DefaultTerminalReward,
	}
}

// Validate checks that every field is usable. MaxIterations may be zero.
func (c Config) Validate() error {
	switch {
	case c.NumAlternatives < 1:
		return goerr.Wrap(ErrInvalidConfig, "num_alternatives must be positive", goerr.V("num_alternatives", c.NumAlternatives))
	case c.NumExplorationSteps < 0:
		return goerr.Wrap(ErrInvalidConfig, "num_exploration_steps must not be negative", goerr.V("num_exploration_steps", c.NumExplorationSteps))
	case c.MaxIterations < 0:
		return goerr.Wrap(ErrInvalidConfig, "max_iterations must not be negative", goerr.V("max_iterations", c.MaxIterations))
	case math.IsNaN(c.Lambda) || math.IsInf(c.Lambda, 0):
		return goerr.Wrap(ErrInvalidConfig, "lambda must be finite", goerr.V("lambda", c.Lambda))
	case math.IsNaN(c.TerminalReward) || math.IsInf(c.TerminalReward, 0):
		return goerr.Wrap(ErrInvalidConfig, "terminal_reward must be finite", goerr.V("terminal_reward", c.TerminalReward))
	}
	return nil
}
