package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/uisynth/trace"
	tracelogger "github.com/m-mizutani/uisynth/trace/logger"
	"github.com/m-mizutani/uisynth/trace/sqlite"
	"github.com/urfave/cli/v3"
)

func traceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "trace-dir",
			Sources: cli.EnvVars("UISYNTH_TRACE_DIR"),
			Usage:   "Directory for trace JSON files",
		},
		&cli.StringFlag{
			Name:    "trace-db",
			Sources: cli.EnvVars("UISYNTH_TRACE_DB"),
			Usage:   "SQLite database file for traces",
		},
		&cli.BoolFlag{
			Name:    "trace-llm",
			Sources: cli.EnvVars("UISYNTH_TRACE_LLM"),
			Usage:   "Log every model request and response",
		},
	}
}

// repositories saves a trace to every repository and reports all failures.
type repositories []trace.Repository

func (r repositories) Save(ctx context.Context, tr *trace.Trace) error {
	var errs []error
	for _, repo := range r {
		if err := repo.Save(ctx, tr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func traceRepositoryFrom(ctx context.Context, cmd *cli.Command) (trace.Repository, func(), error) {
	var repos repositories
	cleanup := func() {}

	if dir := cmd.String("trace-dir"); dir != "" {
		repos = append(repos, trace.NewFileRepository(dir))
	}
	if dsn := cmd.String("trace-db"); dsn != "" {
		db, err := sqlite.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		repos = append(repos, db)
		cleanup = func() { _ = db.Close() }
	}

	switch len(repos) {
	case 0:
		return nil, cleanup, nil
	case 1:
		return repos[0], cleanup, nil
	default:
		return repos, cleanup, nil
	}
}

func traceLogHandler(logger *slog.Logger, withLLM bool) trace.Handler {
	events := []tracelogger.Event{tracelogger.Run, tracelogger.Iteration, tracelogger.Branch, tracelogger.CustomEvent}
	if withLLM {
		events = append(events, tracelogger.LLMRequest, tracelogger.LLMResponse)
	}
	return tracelogger.New(
		tracelogger.WithLogger(logger),
		tracelogger.WithEvents(events...),
	)
}
