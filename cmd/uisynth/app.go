package main

import (
	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "uisynth",
		Usage:   "Synthesize a single-file TSX UI program from wireframe pages",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("UISYNTH_LOG_LEVEL"),
				Usage:   "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Sources: cli.EnvVars("UISYNTH_LOG_FORMAT"),
				Usage:   "Log format (text, json)",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			mcpCommand(),
			tracesCommand(),
		},
	}
}
