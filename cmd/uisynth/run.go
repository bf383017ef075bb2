package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth/orchestrator"
	"github.com/m-mizutani/uisynth/preview"
	"github.com/m-mizutani/uisynth/trace/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "problem",
			Aliases:  []string{"p"},
			Required: true,
			Sources:  cli.EnvVars("UISYNTH_PROBLEM"),
			Usage:    "Problem definition YAML file",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Sources: cli.EnvVars("UISYNTH_OUT"),
			Usage:   "Write the program to this file instead of stdout",
		},
		&cli.StringFlag{
			Name:    "preview-addr",
			Sources: cli.EnvVars("UISYNTH_PREVIEW_ADDR"),
			Usage:   "Serve the live preview hub on this address, e.g. :18901",
		},
		&cli.DurationFlag{
			Name:    "preview-timeout",
			Value:   7 * time.Second,
			Sources: cli.EnvVars("UISYNTH_PREVIEW_TIMEOUT"),
			Usage:   "How long to wait for a previewer to render",
		},
	}
	flags = append(flags, providerFlags()...)
	flags = append(flags, searchFlags()...)
	flags = append(flags, traceFlags()...)

	return &cli.Command{
		Name:   "run",
		Usage:  "Synthesize a program for a problem definition",
		Flags:  flags,
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	logger, err := loggerFrom(cmd)
	if err != nil {
		return err
	}

	f, err := loadProblem(cmd.String("problem"))
	if err != nil {
		return err
	}

	var options []synthesizerOption
	if addr := cmd.String("preview-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		hub := preview.NewHub(
			preview.WithTimeout(cmd.Duration("preview-timeout")),
			preview.WithLogger(logger),
		)
		defer func() { _ = hub.Close() }()

		srv := preview.NewServer(hub,
			preview.WithGatherer(reg),
			preview.WithServerLogger(logger),
		)
		srvCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- srv.ListenAndServe(srvCtx, addr) }()
		defer func() {
			cancel()
			if err := <-done; err != nil {
				logger.Warn("preview server stopped with error", "error", err)
			}
		}()

		options = append(options,
			withHandlers(metrics.New(reg)),
			withOrchestratorOptions(
				orchestrator.WithRenderer(hub),
				orchestrator.WithNotifier(hub),
			),
		)
	}

	s, cleanup, err := synthesizerFrom(ctx, cmd, logger, options...)
	if err != nil {
		return err
	}
	defer cleanup()

	outcome, err := s.run(ctx, f, searchConfigFrom(cmd))
	if err != nil {
		return goerr.Wrap(err, "synthesis aborted")
	}
	return writeOutcome(cmd, outcome)
}

func writeOutcome(cmd *cli.Command, outcome *orchestrator.Outcome) error {
	if outcome.Status != orchestrator.StatusFinished {
		return goerr.New("no complete program was found within the iteration limit",
			goerr.V("iterations", outcome.Iterations),
			goerr.V("best_score", outcome.Score),
		)
	}

	if path := cmd.String("out"); path != "" {
		if err := os.WriteFile(path, []byte(outcome.Source), 0600); err != nil {
			return goerr.Wrap(err, "failed to write program", goerr.V("path", path))
		}
		return nil
	}

	if _, err := fmt.Fprint(writerFrom(cmd), outcome.Source); err != nil {
		return goerr.Wrap(err, "failed to write program")
	}
	return nil
}
