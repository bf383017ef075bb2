package main

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/uisynth/orchestrator"
	"github.com/m-mizutani/uisynth/search"
	"github.com/m-mizutani/uisynth/synth"
	"github.com/m-mizutani/uisynth/trace"
	"github.com/m-mizutani/uisynth/validate"
	"github.com/urfave/cli/v3"
)

// synthesizer runs one orchestrator per problem with a fresh trace recorder each time.
type synthesizer struct {
	action   synth.ActionOracle
	critic   synth.CriticOracle
	logger   *slog.Logger
	handlers []trace.Handler
	repo     trace.Repository
	metadata trace.TraceMetadata
	options  []orchestrator.Option
}

type synthesizerOption func(*synthesizer)

func withHandlers(handlers ...trace.Handler) synthesizerOption {
	return func(s *synthesizer) {
		s.handlers = append(s.handlers, handlers...)
	}
}

func withRepository(repo trace.Repository) synthesizerOption {
	return func(s *synthesizer) {
		s.repo = repo
	}
}

func withMetadata(meta trace.TraceMetadata) synthesizerOption {
	return func(s *synthesizer) {
		s.metadata = meta
	}
}

func withOrchestratorOptions(options ...orchestrator.Option) synthesizerOption {
	return func(s *synthesizer) {
		s.options = append(s.options, options...)
	}
}

func newSynthesizer(action synth.ActionOracle, critic synth.CriticOracle, logger *slog.Logger, options ...synthesizerOption) *synthesizer {
	s := &synthesizer{
		action: action,
		critic: critic,
		logger: logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *synthesizer) run(ctx context.Context, f *problemFile, cfg search.Config) (*orchestrator.Outcome, error) {
	handlers := append([]trace.Handler{}, s.handlers...)
	if s.repo != nil {
		handlers = append(handlers, trace.New(
			trace.WithRepository(s.repo),
			trace.WithMetadata(s.metadata),
			trace.WithLogger(s.logger),
		))
	}

	var th trace.Handler
	if len(handlers) > 0 {
		th = trace.Multi(handlers...)
		ctx = trace.WithHandler(ctx, th)
	}

	options := append([]orchestrator.Option{
		orchestrator.WithLogger(s.logger),
		orchestrator.WithValidator(validate.New(validate.WithGlobals(f.Globals...))),
	}, s.options...)
	options = append(options, orchestrator.WithSearchConfig(f.Search.apply(cfg)))

	outcome, err := orchestrator.New(s.action, s.critic, options...).Run(ctx, f.problem())

	if th != nil {
		if ferr := th.Finish(context.WithoutCancel(ctx)); ferr != nil {
			s.logger.Warn("failed to save trace", "error", ferr)
		}
	}
	return outcome, err
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "alternatives",
			Value:   search.DefaultNumAlternatives,
			Sources: cli.EnvVars("UISYNTH_ALTERNATIVES"),
			Usage:   "Branches launched per iteration",
		},
		&cli.IntFlag{
			Name:    "exploration-steps",
			Value:   search.DefaultNumExplorationSteps,
			Sources: cli.EnvVars("UISYNTH_EXPLORATION_STEPS"),
			Usage:   "Rollout depth after the first successor",
		},
		&cli.Float64Flag{
			Name:    "lambda",
			Value:   search.DefaultLambda,
			Sources: cli.EnvVars("UISYNTH_LAMBDA"),
			Usage:   "Weight of the rollout heuristic",
		},
		&cli.IntFlag{
			Name:    "max-iterations",
			Value:   search.DefaultMaxIterations,
			Sources: cli.EnvVars("UISYNTH_MAX_ITERATIONS"),
			Usage:   "Maximum number of expanded states",
		},
		&cli.Float64Flag{
			Name:    "terminal-reward",
			Value:   search.DefaultTerminalReward,
			Sources: cli.EnvVars("UISYNTH_TERMINAL_REWARD"),
			Usage:   "Bonus for reaching a terminal state during rollout",
		},
		&cli.IntFlag{
			Name:    "window",
			Value:   synth.DefaultWindowSize,
			Sources: cli.EnvVars("UISYNTH_WINDOW"),
			Usage:   "Recent steps shown to the action and critic models",
		},
		&cli.IntFlag{
			Name:    "token-budget",
			Value:   8000,
			Sources: cli.EnvVars("UISYNTH_TOKEN_BUDGET"),
			Usage:   "Maximum prompt tokens per model call",
		},
	}
}

// searchConfigFrom returns the flag values. Settings pinned in a problem file are applied later
// and take precedence.
func searchConfigFrom(cmd *cli.Command) search.Config {
	return search.Config{
		NumAlternatives:     int(cmd.Int("alternatives")),
		NumExplorationSteps: int(cmd.Int("exploration-steps")),
		Lambda:              cmd.Float64("lambda"),
		MaxIterations:       int(cmd.Int("max-iterations")),
		TerminalReward:      cmd.Float64("terminal-reward"),
	}
}

// synthesizerFrom wires the provider, trace sinks and oracle settings shared by run and mcp.
// The returned cleanup closes what was opened.
func synthesizerFrom(ctx context.Context, cmd *cli.Command, logger *slog.Logger, options ...synthesizerOption) (*synthesizer, func(), error) {
	pcfg := providerConfigFrom(cmd)
	client, err := newLLMClient(ctx, pcfg)
	if err != nil {
		return nil, nil, err
	}

	oracleOpts := []synth.OracleOption{
		synth.WithTokenBudget(int(cmd.Int("token-budget"))),
	}
	window := int(cmd.Int("window"))

	repo, closeRepo, err := traceRepositoryFrom(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	options = append([]synthesizerOption{
		withHandlers(traceLogHandler(logger, cmd.Bool("trace-llm"))),
		withMetadata(trace.TraceMetadata{Provider: pcfg.provider, Model: pcfg.model}),
		withOrchestratorOptions(
			orchestrator.WithGeneratorOptions(synth.WithWindowSize(window)),
			orchestrator.WithCriticOptions(synth.WithCriticWindow(window)),
		),
	}, options...)
	if repo != nil {
		options = append(options, withRepository(repo))
	}

	s := newSynthesizer(
		synth.NewLLMActionOracle(client, oracleOpts...),
		synth.NewLLMCriticOracle(client, oracleOpts...),
		logger,
		options...,
	)
	return s, closeRepo, nil
}
