package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/m-mizutani/uisynth/orchestrator"
	"github.com/m-mizutani/uisynth/search"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
)

const synthesizeToolName = "synthesize"

func mcpCommand() *cli.Command {
	var flags []cli.Flag
	flags = append(flags, providerFlags()...)
	flags = append(flags, searchFlags()...)
	flags = append(flags, traceFlags()...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the synthesize tool over MCP on stdio",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := loggerFrom(cmd)
			if err != nil {
				return err
			}

			s, cleanup, err := synthesizerFrom(ctx, cmd, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := newMCPServer(s, searchConfigFrom(cmd))
			logger.Info("serving MCP on stdio", "tool", synthesizeToolName)
			return server.NewStdioServer(srv).Listen(ctx, os.Stdin, os.Stdout)
		},
	}
}

func newMCPServer(s *synthesizer, cfg search.Config) *server.MCPServer {
	srv := server.NewMCPServer("uisynth", version, server.WithToolCapabilities(false))

	tool := mcp.NewTool(synthesizeToolName,
		mcp.WithDescription("Synthesize a single-file React TSX program that implements the wireframe pages of a problem definition."),
		mcp.WithString("problem_yaml",
			mcp.Required(),
			mcp.Description("Problem definition in YAML with goal, pages[{id,title,description}], optional style and search settings"),
		),
	)
	srv.AddTool(tool, synthesizeHandler(s, cfg))
	return srv
}

// synthesizeHandler reports problems with the input or the run as tool errors so the calling
// agent can react; only protocol-level failures become Go errors.
func synthesizeHandler(s *synthesizer, cfg search.Config) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, ok := req.Params.Arguments["problem_yaml"].(string)
		if !ok || raw == "" {
			return mcp.NewToolResultError("problem_yaml is required"), nil
		}

		f, err := parseProblem([]byte(raw))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		outcome, err := s.run(ctx, f, cfg)
		if errors.Is(err, orchestrator.ErrInvalidProblem) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid problem: %v", err)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("synthesis aborted: %v", err)), nil
		}

		if outcome.Status != orchestrator.StatusFinished {
			msg := fmt.Sprintf("synthesis unfinished after %d iterations (best score %.2f)", outcome.Iterations, outcome.Score)
			if outcome.State != nil {
				msg += "\n\nBest partial program:\n" + outcome.State.Model().Serialize()
			}
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultText(outcome.Source), nil
	}
}
