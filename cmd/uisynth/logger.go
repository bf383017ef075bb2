package main

import (
	"io"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return nil, goerr.Wrap(err, "invalid log level", goerr.V("level", level))
	}

	opts := &slog.HandlerOptions{Level: lv}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, goerr.New("invalid log format", goerr.V("format", format))
	}
}

// loggerFrom builds the logger from the root flags. Logs go to stderr so that stdout can carry
// the generated program or MCP frames.
func loggerFrom(cmd *cli.Command) (*slog.Logger, error) {
	return newLogger(cmd.String("log-level"), cmd.String("log-format"), errWriterFrom(cmd))
}
