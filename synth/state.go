// Package synth binds the search engine to program synthesis: search states made of reasoning
// steps, the candidate generator that extends them through the action oracle, and the critic
// that scores each new step.
package synth

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/uisynth/preview"
	"github.com/m-mizutani/uisynth/program"
	"github.com/m-mizutani/uisynth/validate"
)

// Page is one wireframe page the program must implement.
type Page struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// StyleConstraints carry the visual requirements shared by every page.
type StyleConstraints struct {
	Palette    []string `yaml:"palette" json:"palette,omitempty"`
	Typography string   `yaml:"typography" json:"typography,omitempty"`
	Layout     string   `yaml:"layout" json:"layout,omitempty"`
	Notes      string   `yaml:"notes" json:"notes,omitempty"`
}

func (s StyleConstraints) IsZero() bool {
	return len(s.Palette) == 0 && s.Typography == "" && s.Layout == "" && s.Notes == ""
}

// Problem is the immutable context of a synthesis run.
type Problem struct {
	Goal         string           `yaml:"goal" json:"goal"`
	Pages        []Page           `yaml:"pages" json:"pages"`
	Style        StyleConstraints `yaml:"style" json:"style"`
	InitialModel *program.Model   `yaml:"-" json:"-"`
}

// Page looks up a page by id.
func (p *Problem) Page(id string) (*Page, bool) {
	for i := range p.Pages {
		if p.Pages[i].ID == id {
			return &p.Pages[i], true
		}
	}
	return nil, false
}

// Step is one reasoning step. It is never modified once its reward is set.
type Step struct {
	Action     program.Action
	ResultText string
	ModelAfter *program.Model
	Reward     float64
	Scored     bool

	Validation *validate.Result
	Preview    *preview.Result
}

func (s *Step) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("action", s.Action.String()),
		slog.String("result", s.ResultText),
		slog.Float64("reward", s.Reward),
	)
}

// State is a search state. States are immutable: Extend returns a new one.
type State struct {
	Problem *Problem
	Trace   []*Step
}

// NewState returns the root state of a run.
func NewState(problem *Problem) *State {
	return &State{Problem: problem}
}

// Extend returns a new state with step appended. The receiver is left untouched.
func (s *State) Extend(step *Step) *State {
	trace := make([]*Step, len(s.Trace), len(s.Trace)+1)
	copy(trace, s.Trace)
	return &State{
		Problem: s.Problem,
		Trace:   append(trace, step),
	}
}

// Last returns the most recent step, or nil for the root state.
func (s *State) Last() *Step {
	if len(s.Trace) == 0 {
		return nil
	}
	return s.Trace[len(s.Trace)-1]
}

// Model returns the program as of the last step.
func (s *State) Model() *program.Model {
	if last := s.Last(); last != nil && last.ModelAfter != nil {
		return last.ModelAfter
	}
	if s.Problem != nil && s.Problem.InitialModel != nil {
		return s.Problem.InitialModel
	}
	return &program.Model{}
}

// Focus returns the page the trace last focused on, defaulting to the first page.
func (s *State) Focus() string {
	for i := len(s.Trace) - 1; i >= 0; i-- {
		if f, ok := s.Trace[i].Action.(*program.ChangeFocus); ok && s.Problem != nil {
			if _, exists := s.Problem.Page(f.PageID); exists {
				return f.PageID
			}
		}
	}
	if s.Problem != nil && len(s.Problem.Pages) > 0 {
		return s.Problem.Pages[0].ID
	}
	return ""
}

// MeanReward is the average reward over the trace, 0 when empty.
func (s *State) MeanReward() float64 {
	if len(s.Trace) == 0 {
		return 0
	}
	var sum float64
	for _, step := range s.Trace {
		sum += step.Reward
	}
	return sum / float64(len(s.Trace))
}

// LastReward is the reward of the last step, 0 for the root.
func (s *State) LastReward() float64 {
	if last := s.Last(); last != nil {
		return last.Reward
	}
	return 0
}

// Window returns up to n most recent steps, most recent first.
func (s *State) Window(n int) []*Step {
	if n > len(s.Trace) {
		n = len(s.Trace)
	}
	out := make([]*Step, 0, n)
	for i := len(s.Trace) - 1; i >= len(s.Trace)-n; i-- {
		out = append(out, s.Trace[i])
	}
	return out
}

func (s *State) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("steps", len(s.Trace)),
		slog.Float64("mean_reward", s.MeanReward()),
	}
	if last := s.Last(); last != nil {
		attrs = append(attrs, slog.String("last_action", last.Action.String()))
	}
	return slog.GroupValue(attrs...)
}

// IsTerminal returns the terminal check: the last action is a Submit, the current program
// validates cleanly and the last reward is not negative.
func IsTerminal(v *validate.Validator) func(*State) bool {
	return func(s *State) bool {
		last := s.Last()
		if last == nil {
			return false
		}
		if _, ok := last.Action.(*program.Submit); !ok {
			return false
		}
		if last.Reward < 0 {
			return false
		}
		result, err := v.Validate(context.Background(), s.Model().Serialize())
		if err != nil {
			return false
		}
		return result.OK()
	}
}
