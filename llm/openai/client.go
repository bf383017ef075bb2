package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/internal/convert"
	"github.com/sashabaranov/go-openai"
)

var (
	openaiPromptScope   = ctxlog.NewScope("openai_prompt", ctxlog.EnabledBy("UISYNTH_LOGGING_OPENAI_PROMPT"))
	openaiResponseScope = ctxlog.NewScope("openai_response", ctxlog.EnabledBy("UISYNTH_LOGGING_OPENAI_RESPONSE"))
)

const DefaultModel = "gpt-4o"

type generationParameters struct {
	// Temperature controls randomness in the output.
	Temperature float32

	// MaxTokens limits the number of tokens to generate. Zero leaves it to the API.
	MaxTokens int
}

// Client is a client for the OpenAI chat completion API.
type Client struct {
	apiClient apiClient

	defaultModel string
	baseURL      string
	systemPrompt string
	params       generationParameters
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for chat completions.
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithTemperature sets the default sampling temperature. A session temperature overrides it.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

func WithMaxTokens(maxTokens int) Option {
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

// WithBaseURL sets the custom base URL for the OpenAI API, e.g. a compatible proxy.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// New creates a new client for the OpenAI API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("OpenAI API key is required")
	}

	client := newClient(options...)

	config := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		config.BaseURL = client.baseURL
	}
	client.apiClient = &realAPIClient{client: openai.NewClientWithConfig(config)}

	return client, nil
}

func newClient(options ...Option) *Client {
	client := &Client{
		defaultModel: DefaultModel,
		params: generationParameters{
			Temperature: 0.7,
		},
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// Session is a session for the OpenAI chat. It keeps the conversation so that function
// responses can follow the calls they answer.
type Session struct {
	apiClient apiClient

	model    string
	params   generationParameters
	tools    []openai.Tool
	required bool
	messages []openai.ChatCompletionMessage
}

// NewSession creates a new session for the OpenAI API.
func (c *Client) NewSession(ctx context.Context, options ...uisynth.SessionOption) (uisynth.Session, error) {
	cfg := uisynth.NewSessionConfig(options...)

	tools := make([]openai.Tool, 0, len(cfg.Tools()))
	for _, spec := range cfg.Tools() {
		if err := spec.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid tool specification")
		}
		tools = append(tools, convertTool(spec))
	}

	params := c.params
	if temp := cfg.Temperature(); temp != nil {
		params.Temperature = *temp
	}

	session := &Session{
		apiClient: c.apiClient,
		model:     c.defaultModel,
		params:    params,
		tools:     tools,
		required:  cfg.ToolRequired() && len(tools) > 0,
	}

	systemPrompt := c.systemPrompt
	if cfg.SystemPrompt() != "" {
		systemPrompt = cfg.SystemPrompt()
	}
	if systemPrompt != "" {
		session.messages = append(session.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	return session, nil
}

func convertInputs(input ...uisynth.Input) ([]openai.ChatCompletionMessage, error) {
	var messages []openai.ChatCompletionMessage
	for _, in := range input {
		switch v := in.(type) {
		case uisynth.Text:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: string(v),
			})

		case uisynth.FunctionResponse:
			content, err := convert.FunctionResponseText(v)
			if err != nil {
				return nil, err
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: v.ID,
			})

		default:
			return nil, goerr.Wrap(uisynth.ErrInvalidParameter, "invalid input", goerr.V("input", in))
		}
	}
	return messages, nil
}

func (s *Session) createRequest() openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    s.messages,
		Temperature: s.params.Temperature,
		MaxTokens:   s.params.MaxTokens,
	}
	if len(s.tools) > 0 {
		req.Tools = s.tools
	}
	if s.required {
		req.ToolChoice = "required"
	}
	return req
}

// GenerateContent sends the inputs and returns the model's texts and tool calls.
func (s *Session) GenerateContent(ctx context.Context, input ...uisynth.Input) (*uisynth.Response, error) {
	messages, err := convertInputs(input...)
	if err != nil {
		return nil, err
	}
	s.messages = append(s.messages, messages...)

	req := s.createRequest()
	s.logPrompt(ctx, req)

	resp, err := s.apiClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion", errorOptions(err)...)
	}

	response := &uisynth.Response{
		InputToken:  resp.Usage.PromptTokens,
		OutputToken: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return response, nil
	}

	message := resp.Choices[0].Message
	if message.Content != "" {
		response.Texts = append(response.Texts, message.Content)
	}
	for i, call := range message.ToolCalls {
		args, err := convert.ParseJSONArguments(call.Function.Arguments)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal tool arguments", goerr.V("tool", call.Function.Name))
		}
		id := call.ID
		if id == "" {
			id = convert.GenerateToolCallID(call.Function.Name, i)
		}
		response.FunctionCalls = append(response.FunctionCalls, &uisynth.FunctionCall{
			ID:        id,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   message.Content,
		ToolCalls: message.ToolCalls,
	})

	logger := ctxlog.From(ctx, openaiResponseScope)
	if logger.Enabled(ctx, slog.LevelInfo) {
		logger.Info("OpenAI response",
			"texts", response.Texts,
			"function_calls", response.FunctionCalls,
			"input_token", response.InputToken,
			"output_token", response.OutputToken,
		)
	}

	return response, nil
}

// logPrompt logs the request if UISYNTH_LOGGING_OPENAI_PROMPT is enabled
func (s *Session) logPrompt(ctx context.Context, req openai.ChatCompletionRequest) {
	logger := ctxlog.From(ctx, openaiPromptScope)
	if !logger.Enabled(ctx, slog.LevelInfo) {
		return
	}

	messages := make([]map[string]string, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, map[string]string{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}
	logger.Info("OpenAI prompt",
		"model", req.Model,
		"tools", len(req.Tools),
		"messages", messages,
	)
}

// errorOptions classifies an API error so that callers can decide on retries.
func errorOptions(err error) []goerr.Option {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && apiErr.Type == "invalid_request_error" && code == "context_length_exceeded" {
			return []goerr.Option{goerr.Tag(uisynth.ErrTagTokenExceeded)}
		}
		if isTransientStatus(apiErr.HTTPStatusCode) {
			return []goerr.Option{goerr.Tag(uisynth.ErrTagTransient), goerr.V("status", apiErr.HTTPStatusCode)}
		}
		return []goerr.Option{goerr.V("status", apiErr.HTTPStatusCode)}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && isTransientStatus(reqErr.HTTPStatusCode) {
		return []goerr.Option{goerr.Tag(uisynth.ErrTagTransient), goerr.V("status", reqErr.HTTPStatusCode)}
	}

	return nil
}

func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
