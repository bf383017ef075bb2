package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth/trace/sqlite"
	"github.com/urfave/cli/v3"
)

func tracesCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "trace-dir",
			Sources: cli.EnvVars("UISYNTH_TRACE_DIR"),
			Usage:   "Directory containing trace JSON files",
		},
		&cli.StringFlag{
			Name:    "trace-db",
			Sources: cli.EnvVars("UISYNTH_TRACE_DB"),
			Usage:   "SQLite database file containing traces",
		},
	}

	return &cli.Command{
		Name:  "traces",
		Usage: "Inspect recorded synthesis traces",
		Flags: flags,
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded traces, most recent first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Maximum number of traces; zero lists all",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withTraceSource(ctx, cmd, func(src traceSource) error {
						list, err := src.List(ctx, int(cmd.Int("limit")))
						if err != nil {
							return err
						}
						return printSummaries(cmd, list)
					})
				},
			},
			{
				Name:      "show",
				Usage:     "Print one trace as JSON",
				ArgsUsage: "<trace-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					traceID := cmd.Args().First()
					if traceID == "" {
						return goerr.New("trace id is required")
					}
					return withTraceSource(ctx, cmd, func(src traceSource) error {
						tr, err := src.Get(ctx, traceID)
						if err != nil {
							return err
						}
						enc := json.NewEncoder(writerFrom(cmd))
						enc.SetIndent("", "  ")
						if err := enc.Encode(tr); err != nil {
							return goerr.Wrap(err, "failed to encode trace")
						}
						return nil
					})
				},
			},
		},
	}
}

func withTraceSource(ctx context.Context, cmd *cli.Command, fn func(traceSource) error) error {
	dir := cmd.String("trace-dir")
	dsn := cmd.String("trace-db")

	switch {
	case dir == "" && dsn == "":
		return goerr.New("either --trace-dir or --trace-db must be specified")
	case dir != "" && dsn != "":
		return goerr.New("--trace-dir and --trace-db are mutually exclusive")
	case dir != "":
		return fn(newLocalSource(dir))
	}

	repo, err := sqlite.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()
	return fn(newSQLiteSource(repo))
}

func printSummaries(cmd *cli.Command, list []*traceSummary) error {
	w := tabwriter.NewWriter(writerFrom(cmd), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRACE ID\tSTARTED\tDURATION\tSTATUS\tSPANS")
	for _, s := range list {
		status := string(s.Status)
		if s.Error != "" {
			status += ": " + s.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			s.TraceID,
			s.StartedAt.Format(time.RFC3339),
			s.Duration.Round(time.Millisecond),
			status,
			s.Spans,
		)
	}
	if err := w.Flush(); err != nil {
		return goerr.Wrap(err, "failed to write trace list")
	}
	return nil
}
