package main

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/search"
	"github.com/m-mizutani/uisynth/synth"
	"github.com/m-mizutani/uisynth/trace"
	"github.com/m-mizutani/uisynth/trace/sqlite"
	"github.com/mark3labs/mcp-go/server"
)

var (
	NewApp       = newApp
	NewLogger    = newLogger
	ParseProblem = parseProblem
	LoadProblem  = loadProblem
	SearchFlags  = searchFlags
)

type ProblemFile = problemFile
type TraceSummary = traceSummary

func (f *problemFile) Problem() *synth.Problem { return f.problem() }

func (f *problemFile) SearchConfig(cfg search.Config) search.Config { return f.Search.apply(cfg) }

// NewLLMClient uses apiKey for whichever key-based provider is selected.
func NewLLMClient(ctx context.Context, provider, model, apiKey string, rps float64) (uisynth.LLMClient, error) {
	return newLLMClient(ctx, providerConfig{
		provider:     provider,
		model:        model,
		openaiAPIKey: apiKey,
		claudeAPIKey: apiKey,
		rps:          rps,
	})
}

// Synthesizer wraps synthesizer for external tests.
type Synthesizer struct {
	s *synthesizer
}

func NewSynthesizer(action synth.ActionOracle, critic synth.CriticOracle, logger *slog.Logger, repo trace.Repository) *Synthesizer {
	var opts []synthesizerOption
	if repo != nil {
		opts = append(opts, withRepository(repo))
	}
	return &Synthesizer{s: newSynthesizer(action, critic, logger, opts...)}
}

func (s *Synthesizer) Handler(cfg search.Config) server.ToolHandlerFunc {
	return synthesizeHandler(s.s, cfg)
}

func (s *Synthesizer) MCPServer(cfg search.Config) *server.MCPServer {
	return newMCPServer(s.s, cfg)
}

// TestableSource exposes a traceSource for external tests.
type TestableSource struct {
	traceSource
}

func NewLocalSource(dir string) *TestableSource {
	return &TestableSource{traceSource: newLocalSource(dir)}
}

func NewSQLiteSource(repo *sqlite.Repository) *TestableSource {
	return &TestableSource{traceSource: newSQLiteSource(repo)}
}
