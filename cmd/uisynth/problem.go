package main

import (
	"bytes"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth/search"
	"github.com/m-mizutani/uisynth/synth"
	"gopkg.in/yaml.v3"
)

// problemFile is the YAML layout of a problem definition.
type problemFile struct {
	Goal    string                 `yaml:"goal"`
	Pages   []synth.Page           `yaml:"pages"`
	Style   synth.StyleConstraints `yaml:"style"`
	Globals []string               `yaml:"globals"`
	Search  searchOverrides        `yaml:"search"`
}

// searchOverrides holds the search settings a problem file may pin. Unset fields keep the
// value from defaults or flags.
type searchOverrides struct {
	NumAlternatives     *int     `yaml:"num_alternatives"`
	NumExplorationSteps *int     `yaml:"num_exploration_steps"`
	Lambda              *float64 `yaml:"lambda"`
	MaxIterations       *int     `yaml:"max_iterations"`
	TerminalReward      *float64 `yaml:"terminal_reward"`
}

func (o searchOverrides) apply(cfg search.Config) search.Config {
	if o.NumAlternatives != nil {
		cfg.NumAlternatives = *o.NumAlternatives
	}
	if o.NumExplorationSteps != nil {
		cfg.NumExplorationSteps = *o.NumExplorationSteps
	}
	if o.Lambda != nil {
		cfg.Lambda = *o.Lambda
	}
	if o.MaxIterations != nil {
		cfg.MaxIterations = *o.MaxIterations
	}
	if o.TerminalReward != nil {
		cfg.TerminalReward = *o.TerminalReward
	}
	return cfg
}

func (f *problemFile) problem() *synth.Problem {
	return &synth.Problem{
		Goal:  f.Goal,
		Pages: f.Pages,
		Style: f.Style,
	}
}

func parseProblem(data []byte) (*problemFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f problemFile
	if err := dec.Decode(&f); err != nil {
		return nil, goerr.Wrap(err, "failed to parse problem definition")
	}
	if len(f.Pages) == 0 {
		return nil, goerr.New("problem definition has no pages")
	}
	return &f, nil
}

func loadProblem(path string) (*problemFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read problem file", goerr.V("path", path))
	}
	f, err := parseProblem(data)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid problem file", goerr.V("path", path))
	}
	return f, nil
}
