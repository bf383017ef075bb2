package synth

import (
	"github.com/m-mizutani/uisynth/search"
	"github.com/m-mizutani/uisynth/validate"
)

// Domain wires the generator into the search engine. g is the mean reward of the trace and a
// rollout accumulates the reward of each simulated step.
func Domain(gen *Generator, v *validate.Validator) search.Domain[*State] {
	return search.Domain[*State]{
		Expander:  gen,
		Terminal:  IsTerminal(v),
		Aggregate: (*State).MeanReward,
		Reward:    (*State).LastReward,
		Depth:     func(s *State) int { return len(s.Trace) },
	}
}
