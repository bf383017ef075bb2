package claude

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/internal/convert"
)

var (
	claudePromptScope   = ctxlog.NewScope("claude_prompt", ctxlog.EnabledBy("UISYNTH_LOGGING_CLAUDE_PROMPT"))
	claudeResponseScope = ctxlog.NewScope("claude_response", ctxlog.EnabledBy("UISYNTH_LOGGING_CLAUDE_RESPONSE"))
)

// statusOverloaded is returned by the Anthropic API when the service is temporarily overloaded.
const statusOverloaded = 529

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	Temperature float64

	// MaxTokens limits the number of tokens to generate. The Messages API requires it.
	MaxTokens int64
}

// Client is a client for the Claude API.
type Client struct {
	apiClient apiClient

	// defaultModel is the model to use for chat completions.
	// It can be overridden using WithModel option.
	defaultModel string
	systemPrompt string

	params generationParameters
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for chat completions.
// Default: anthropic.ModelClaude3_5SonnetLatest
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithTemperature sets the temperature parameter for text generation.
// Range: 0.0 to 1.0
// Default: 0.7
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
// Default: 4096
func WithMaxTokens(maxTokens int64) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

// WithSystemPrompt sets the system prompt used when a session does not set its own.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// New creates a new client for the Claude API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("Claude API key is required")
	}

	client := newClient(options...)
	newClient := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	client.apiClient = &realAPIClient{client: &newClient}

	return client, nil
}

func newClient(options ...Option) *Client {
	client := &Client{
		defaultModel: anthropic.ModelClaude3_5SonnetLatest,
		params: generationParameters{
			Temperature: 0.7,
			MaxTokens:   4096,
		},
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// Session is a session for the Claude chat.
// It maintains the conversation state and handles message generation.
type Session struct {
	apiClient apiClient

	model    string
	system   []anthropic.TextBlockParam
	tools    []anthropic.ToolUnionParam
	params   generationParameters
	messages []anthropic.MessageParam
}

// NewSession creates a new session for the Claude API. Claude has no "any tool" switch in the
// request used here, so a required tool is enforced by the caller's prompt and decoding.
func (c *Client) NewSession(ctx context.Context, options ...uisynth.SessionOption) (uisynth.Session, error) {
	cfg := uisynth.NewSessionConfig(options...)

	tools := make([]anthropic.ToolUnionParam, 0, len(cfg.Tools()))
	for _, spec := range cfg.Tools() {
		if err := spec.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid tool specification")
		}
		tools = append(tools, convertTool(spec))
	}

	params := c.params
	if temp := cfg.Temperature(); temp != nil {
		params.Temperature = float64(*temp)
	}

	systemPrompt := c.systemPrompt
	if cfg.SystemPrompt() != "" {
		systemPrompt = cfg.SystemPrompt()
	}

	return &Session{
		apiClient: c.apiClient,
		model:     c.defaultModel,
		system:    createSystemPrompt(systemPrompt),
		tools:     tools,
		params:    params,
	}, nil
}

// convertInputs groups consecutive text inputs and tool results into user messages.
func convertInputs(input ...uisynth.Input) ([]anthropic.MessageParam, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, in := range input {
		switch v := in.(type) {
		case uisynth.Text:
			blocks = append(blocks, anthropic.NewTextBlock(string(v)))

		case uisynth.FunctionResponse:
			content, err := convert.FunctionResponseText(v)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, anthropic.NewToolResultBlock(v.ID, content, v.Error != nil))

		default:
			return nil, goerr.Wrap(uisynth.ErrInvalidParameter, "invalid input", goerr.V("input", in))
		}
	}

	if len(blocks) == 0 {
		return nil, nil
	}
	return []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)}, nil
}

func (s *Session) createRequest() anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:       anthropic.Model(s.model),
		MaxTokens:   s.params.MaxTokens,
		Temperature: anthropic.Float(s.params.Temperature),
		System:      s.system,
		Tools:       s.tools,
		Messages:    s.messages,
	}
}

// processResponse converts Claude response to uisynth.Response
func processResponse(resp *anthropic.Message) (*uisynth.Response, error) {
	response := &uisynth.Response{
		InputToken:  int(resp.Usage.InputTokens),
		OutputToken: int(resp.Usage.OutputTokens),
	}

	for _, content := range resp.Content {
		textBlock := content.AsResponseTextBlock()
		if textBlock.Type == "text" {
			response.Texts = append(response.Texts, textBlock.Text)
		}

		toolUseBlock := content.AsResponseToolUseBlock()
		if toolUseBlock.Type == "tool_use" {
			var args map[string]any
			if err := json.Unmarshal([]byte(toolUseBlock.Input), &args); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal function arguments", goerr.V("tool", toolUseBlock.Name))
			}
			response.FunctionCalls = append(response.FunctionCalls, &uisynth.FunctionCall{
				ID:        toolUseBlock.ID,
				Name:      toolUseBlock.Name,
				Arguments: args,
			})
		}
	}

	return response, nil
}

// GenerateContent processes the input and generates a response.
func (s *Session) GenerateContent(ctx context.Context, input ...uisynth.Input) (*uisynth.Response, error) {
	messages, err := convertInputs(input...)
	if err != nil {
		return nil, err
	}
	s.messages = append(s.messages, messages...)

	params := s.createRequest()
	if logger := ctxlog.From(ctx, claudePromptScope); logger.Enabled(ctx, slog.LevelInfo) {
		texts := make([]string, 0, len(input))
		for _, in := range input {
			texts = append(texts, in.String())
		}
		logger.Info("Claude prompt", "model", s.model, "tools", len(s.tools), "inputs", texts)
	}

	resp, err := s.apiClient.MessagesNew(ctx, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create message", errorOptions(err)...)
	}

	response, err := processResponse(resp)
	if err != nil {
		return nil, err
	}

	// Add assistant's response to message history
	s.messages = append(s.messages, resp.ToParam())

	if logger := ctxlog.From(ctx, claudeResponseScope); logger.Enabled(ctx, slog.LevelInfo) {
		logger.Info("Claude response",
			"texts", response.Texts,
			"function_calls", response.FunctionCalls,
			"input_token", response.InputToken,
			"output_token", response.OutputToken,
		)
	}

	return response, nil
}

// errorOptions classifies an API error so that callers can decide on retries.
func errorOptions(err error) []goerr.Option {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return nil
	}

	switch {
	case apiErr.StatusCode == http.StatusBadRequest && strings.Contains(apiErr.Error(), "prompt is too long"):
		return []goerr.Option{goerr.Tag(uisynth.ErrTagTokenExceeded)}
	case apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode == statusOverloaded,
		apiErr.StatusCode >= http.StatusInternalServerError:
		return []goerr.Option{goerr.Tag(uisynth.ErrTagTransient), goerr.V("status", apiErr.StatusCode)}
	}
	return []goerr.Option{goerr.V("status", apiErr.StatusCode)}
}
