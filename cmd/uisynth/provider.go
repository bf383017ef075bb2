package main

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/llm/claude"
	"github.com/m-mizutani/uisynth/llm/gemini"
	"github.com/m-mizutani/uisynth/llm/openai"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

type providerConfig struct {
	provider        string
	model           string
	openaiAPIKey    string
	openaiBaseURL   string
	claudeAPIKey    string
	geminiProjectID string
	geminiLocation  string
	rps             float64
}

func providerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "provider",
			Value:   "openai",
			Sources: cli.EnvVars("UISYNTH_PROVIDER"),
			Usage:   "LLM provider (openai, claude, gemini)",
		},
		&cli.StringFlag{
			Name:    "model",
			Sources: cli.EnvVars("UISYNTH_MODEL"),
			Usage:   "Model name; empty uses the provider default",
		},
		&cli.StringFlag{
			Name:    "openai-api-key",
			Sources: cli.EnvVars("UISYNTH_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Usage:   "OpenAI API key",
		},
		&cli.StringFlag{
			Name:    "openai-base-url",
			Sources: cli.EnvVars("UISYNTH_OPENAI_BASE_URL"),
			Usage:   "OpenAI compatible API endpoint",
		},
		&cli.StringFlag{
			Name:    "claude-api-key",
			Sources: cli.EnvVars("UISYNTH_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"),
			Usage:   "Anthropic API key",
		},
		&cli.StringFlag{
			Name:    "gemini-project-id",
			Sources: cli.EnvVars("UISYNTH_GEMINI_PROJECT_ID"),
			Usage:   "Google Cloud project for Vertex AI",
		},
		&cli.StringFlag{
			Name:    "gemini-location",
			Value:   "us-central1",
			Sources: cli.EnvVars("UISYNTH_GEMINI_LOCATION"),
			Usage:   "Google Cloud location for Vertex AI",
		},
		&cli.Float64Flag{
			Name:    "rps",
			Sources: cli.EnvVars("UISYNTH_RPS"),
			Usage:   "Maximum LLM requests per second; zero disables limiting",
		},
	}
}

func providerConfigFrom(cmd *cli.Command) providerConfig {
	return providerConfig{
		provider:        cmd.String("provider"),
		model:           cmd.String("model"),
		openaiAPIKey:    cmd.String("openai-api-key"),
		openaiBaseURL:   cmd.String("openai-base-url"),
		claudeAPIKey:    cmd.String("claude-api-key"),
		geminiProjectID: cmd.String("gemini-project-id"),
		geminiLocation:  cmd.String("gemini-location"),
		rps:             cmd.Float64("rps"),
	}
}

// newLLMClient builds the client for the configured provider. Clients are not contacted here.
func newLLMClient(ctx context.Context, cfg providerConfig) (uisynth.LLMClient, error) {
	var (
		client uisynth.LLMClient
		err    error
	)

	switch cfg.provider {
	case "openai":
		var opts []openai.Option
		if cfg.model != "" {
			opts = append(opts, openai.WithModel(cfg.model))
		}
		if cfg.openaiBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.openaiBaseURL))
		}
		client, err = openai.New(ctx, cfg.openaiAPIKey, opts...)

	case "claude":
		var opts []claude.Option
		if cfg.model != "" {
			opts = append(opts, claude.WithModel(cfg.model))
		}
		client, err = claude.New(ctx, cfg.claudeAPIKey, opts...)

	case "gemini":
		if cfg.geminiProjectID == "" {
			return nil, goerr.New("gemini project id is required")
		}
		var opts []gemini.Option
		if cfg.model != "" {
			opts = append(opts, gemini.WithModel(cfg.model))
		}
		client, err = gemini.New(ctx, cfg.geminiProjectID, cfg.geminiLocation, opts...)

	default:
		return nil, goerr.New("unknown provider", goerr.V("provider", cfg.provider))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM client", goerr.V("provider", cfg.provider))
	}

	if cfg.rps > 0 {
		burst := int(cfg.rps)
		if burst < 1 {
			burst = 1
		}
		client = uisynth.NewRateLimitedClient(client, rate.NewLimiter(rate.Limit(cfg.rps), burst))
	}
	return client, nil
}
