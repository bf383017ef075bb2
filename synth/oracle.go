package synth

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/program"
	"github.com/m-mizutani/uisynth/trace"
)

// ActionRequest is the context payload given to the action oracle.
type ActionRequest struct {
	Problem *Problem
	Focus   string
	Source  string
	// Window holds recent steps, most recent first.
	Window []*Step
}

// ActionOracle chooses exactly one next action. Returning an error wrapping
// uisynth.ErrNoAction means the oracle answered without a choice.
type ActionOracle func(ctx context.Context, req *ActionRequest) (program.Action, error)

// CriticRequest is the context payload given to the critic oracle.
type CriticRequest struct {
	Problem *Problem
	// Last is the step being rated.
	Last *Step
	// Window holds the steps before Last, most recent first.
	Window []*Step
}

// Rating is a raw critic answer on the [-10, 10] scale.
type Rating struct {
	Score         int
	Justification string
}

// CriticOracle rates the last step of a trace.
type CriticOracle func(ctx context.Context, req *CriticRequest) (*Rating, error)

type oracleConfig struct {
	tokenBudget  int
	tokenCounter TokenCounter
	temperature  *float32
}

type OracleOption func(*oracleConfig)

// WithTokenBudget caps the prompt size. Older steps are dropped to fit. Zero disables trimming.
func WithTokenBudget(tokens int) OracleOption {
	return func(c *oracleConfig) {
		c.tokenBudget = tokens
	}
}

// WithTokenCounter replaces the tiktoken based counter.
func WithTokenCounter(fn TokenCounter) OracleOption {
	return func(c *oracleConfig) {
		c.tokenCounter = fn
	}
}

func WithTemperature(temp float32) OracleOption {
	return func(c *oracleConfig) {
		c.temperature = &temp
	}
}

func newOracleConfig(options []OracleOption) *oracleConfig {
	cfg := &oracleConfig{
		tokenBudget:  DefaultTokenBudget,
		tokenCounter: DefaultTokenCounter,
	}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

func (c *oracleConfig) sessionOptions(system string, tool ...*uisynth.ToolSpec) []uisynth.SessionOption {
	opts := []uisynth.SessionOption{
		uisynth.WithSessionSystemPrompt(system),
		uisynth.WithSessionTools(tool...),
		uisynth.WithSessionToolRequired(),
	}
	if c.temperature != nil {
		opts = append(opts, uisynth.WithSessionTemperature(*c.temperature))
	}
	return opts
}

// NewLLMActionOracle returns an ActionOracle that asks client to call one action tool.
func NewLLMActionOracle(client uisynth.LLMClient, options ...OracleOption) ActionOracle {
	cfg := newOracleConfig(options)
	tools := ActionTools()

	return func(ctx context.Context, req *ActionRequest) (program.Action, error) {
		prompt, err := buildActionPrompt(req, cfg.tokenBudget, cfg.tokenCounter)
		if err != nil {
			return nil, err
		}

		resp, err := generate(ctx, client, "action", cfg.sessionOptions(actionSystemPrompt, tools...), actionSystemPrompt, prompt, tools)
		if err != nil {
			return nil, err
		}

		if len(resp.FunctionCalls) == 0 {
			return nil, goerr.Wrap(uisynth.ErrNoAction, "action oracle returned no tool call", goerr.V("texts", resp.Texts))
		}
		if len(resp.FunctionCalls) > 1 {
			ctxlog.From(ctx).Warn("action oracle returned several tool calls, using the first",
				"count", len(resp.FunctionCalls),
				"first", resp.FunctionCalls[0].Name,
			)
		}
		return DecodeAction(resp.FunctionCalls[0])
	}
}

// NewLLMCriticOracle returns a CriticOracle that asks client to call the rate_action tool.
func NewLLMCriticOracle(client uisynth.LLMClient, options ...OracleOption) CriticOracle {
	cfg := newOracleConfig(options)
	tool := RateTool()

	return func(ctx context.Context, req *CriticRequest) (*Rating, error) {
		prompt, err := buildCriticPrompt(req, cfg.tokenBudget, cfg.tokenCounter)
		if err != nil {
			return nil, err
		}

		resp, err := generate(ctx, client, "critic", cfg.sessionOptions(criticSystemPrompt, tool), criticSystemPrompt, prompt, []*uisynth.ToolSpec{tool})
		if err != nil {
			return nil, err
		}

		for _, call := range resp.FunctionCalls {
			if call.Name == RateToolName {
				return DecodeRating(call)
			}
		}
		return nil, goerr.New("critic oracle returned no rating", goerr.V("texts", resp.Texts))
	}
}

// generate runs one single-turn session and records it as an llm_call span.
func generate(ctx context.Context, client uisynth.LLMClient, oracle string, opts []uisynth.SessionOption, system, prompt string, tools []*uisynth.ToolSpec) (resp *uisynth.Response, err error) {
	if h := trace.HandlerFrom(ctx); h != nil {
		ctx = h.StartLLMCall(ctx)
		data := &trace.LLMCallData{
			Oracle:  oracle,
			Request: &trace.LLMRequest{SystemPrompt: system, Prompt: prompt, Tools: toolNames(tools)},
		}
		defer func() {
			if resp != nil {
				data.InputTokens = resp.InputToken
				data.OutputTokens = resp.OutputToken
				data.Response = toTraceResponse(resp)
			}
			h.EndLLMCall(ctx, data, err)
		}()
	}

	session, err := client.NewSession(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session", goerr.V("oracle", oracle))
	}

	resp, err = session.GenerateContent(ctx, uisynth.Text(prompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("oracle", oracle))
	}
	return resp, nil
}

func toolNames(tools []*uisynth.ToolSpec) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

func toTraceResponse(resp *uisynth.Response) *trace.LLMResponse {
	out := &trace.LLMResponse{Texts: resp.Texts}
	for _, fc := range resp.FunctionCalls {
		out.FunctionCalls = append(out.FunctionCalls, &trace.FunctionCall{
			ID:        fc.ID,
			Name:      fc.Name,
			Arguments: fc.Arguments,
		})
	}
	return out
}
