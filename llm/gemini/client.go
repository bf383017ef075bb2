package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/internal/convert"
	genai "google.golang.org/genai"
)

var (
	geminiPromptScope   = ctxlog.NewScope("gemini_prompt", ctxlog.EnabledBy("UISYNTH_LOGGING_GEMINI_PROMPT"))
	geminiResponseScope = ctxlog.NewScope("gemini_response", ctxlog.EnabledBy("UISYNTH_LOGGING_GEMINI_RESPONSE"))
)

const DefaultModel = "gemini-2.5-flash"

var (
	// ErrMalformedFunctionCall is returned when the model emits a function call the API cannot parse.
	ErrMalformedFunctionCall = errors.New("malformed function call")

	// ErrProhibitedContent is returned when the response was blocked.
	ErrProhibitedContent = errors.New("prohibited content")
)

// Client is a client for the Gemini API on Vertex AI.
type Client struct {
	apiClient apiClient

	projectID    string
	location     string
	defaultModel string
	systemPrompt string

	temperature     *float32
	maxOutputTokens int32
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for content generation.
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithTemperature sets the default sampling temperature. A session temperature overrides it.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.temperature = &temp
	}
}

func WithMaxTokens(maxTokens int32) Option {
	return func(c *Client) {
		c.maxOutputTokens = maxTokens
	}
}

// WithSystemPrompt sets the system prompt used when a session does not set its own.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// New creates a new client for the Gemini API.
// It requires a project ID and location, and can be configured with additional options.
func New(ctx context.Context, projectID, location string, options ...Option) (*Client, error) {
	if projectID == "" {
		return nil, goerr.New("projectID is required")
	}
	if location == "" {
		return nil, goerr.New("location is required")
	}

	client := newClient(options...)
	client.projectID = projectID
	client.location = location

	newClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client",
			goerr.V("project", projectID), goerr.V("location", location))
	}
	client.apiClient = &realAPIClient{client: newClient}

	return client, nil
}

func newClient(options ...Option) *Client {
	client := &Client{defaultModel: DefaultModel}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// Session is a session for the Gemini chat.
// It maintains the conversation state and handles message generation.
type Session struct {
	apiClient apiClient

	model    string
	config   *genai.GenerateContentConfig
	contents []*genai.Content
}

// NewSession creates a new session for the Gemini API.
func (c *Client) NewSession(ctx context.Context, options ...uisynth.SessionOption) (uisynth.Session, error) {
	cfg := uisynth.NewSessionConfig(options...)

	var budget int32
	config := &genai.GenerateContentConfig{
		ThinkingConfig:  &genai.ThinkingConfig{ThinkingBudget: &budget},
		Temperature:     c.temperature,
		MaxOutputTokens: c.maxOutputTokens,
	}
	if temp := cfg.Temperature(); temp != nil {
		t := *temp
		config.Temperature = &t
	}

	systemPrompt := cfg.SystemPrompt()
	if systemPrompt == "" {
		systemPrompt = c.systemPrompt
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Role:  "system",
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	if len(cfg.Tools()) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools()))
		for _, spec := range cfg.Tools() {
			if err := spec.Validate(); err != nil {
				return nil, goerr.Wrap(err, "invalid tool specification")
			}
			decls = append(decls, convertTool(spec))
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}

		if cfg.ToolRequired() {
			config.ToolConfig = &genai.ToolConfig{
				FunctionCallingConfig: &genai.FunctionCallingConfig{
					Mode: genai.FunctionCallingConfigModeAny,
				},
			}
		}
	}

	return &Session{
		apiClient: c.apiClient,
		model:     c.defaultModel,
		config:    config,
	}, nil
}

func convertInputs(input ...uisynth.Input) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(input))
	for _, in := range input {
		switch v := in.(type) {
		case uisynth.Text:
			parts = append(parts, &genai.Part{Text: string(v)})

		case uisynth.FunctionResponse:
			response := v.Data
			if v.Error != nil {
				response = map[string]any{"error_message": v.Error.Error()}
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       v.ID,
					Name:     v.Name,
					Response: response,
				},
			})

		default:
			return nil, goerr.Wrap(uisynth.ErrInvalidParameter, "invalid input", goerr.V("input", in))
		}
	}
	return parts, nil
}

// processResponse converts Gemini response to uisynth.Response
func processResponse(resp *genai.GenerateContentResponse) (*uisynth.Response, error) {
	response := &uisynth.Response{}
	if resp.UsageMetadata != nil {
		response.InputToken = int(resp.UsageMetadata.PromptTokenCount)
		response.OutputToken = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	for _, candidate := range resp.Candidates {
		reason := string(candidate.FinishReason)
		if strings.Contains(reason, "MALFORMED_FUNCTION_CALL") {
			return nil, goerr.Wrap(ErrMalformedFunctionCall, "model returned malformed function call",
				goerr.Tag(uisynth.ErrTagTransient))
		}
		if strings.Contains(reason, "PROHIBITED_CONTENT") {
			return nil, goerr.Wrap(ErrProhibitedContent, "response blocked")
		}

		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				response.Texts = append(response.Texts, part.Text)
			}
			if part.FunctionCall != nil {
				id := part.FunctionCall.ID
				if id == "" {
					id = convert.GenerateToolCallID(part.FunctionCall.Name, len(response.FunctionCalls))
				}
				response.FunctionCalls = append(response.FunctionCalls, &uisynth.FunctionCall{
					ID:        id,
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				})
			}
		}
	}

	return response, nil
}

// GenerateContent generates content based on the input.
func (s *Session) GenerateContent(ctx context.Context, input ...uisynth.Input) (*uisynth.Response, error) {
	parts, err := convertInputs(input...)
	if err != nil {
		return nil, err
	}
	s.contents = append(s.contents, &genai.Content{Role: "user", Parts: parts})

	if logger := ctxlog.From(ctx, geminiPromptScope); logger.Enabled(ctx, slog.LevelInfo) {
		texts := make([]string, 0, len(input))
		for _, in := range input {
			texts = append(texts, in.String())
		}
		logger.Info("Gemini prompt", "model", s.model, "contents", len(s.contents), "inputs", texts)
	}

	resp, err := s.apiClient.GenerateContent(ctx, s.model, s.contents, s.config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", errorOptions(err)...)
	}

	response, err := processResponse(resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		s.contents = append(s.contents, resp.Candidates[0].Content)
	}

	if logger := ctxlog.From(ctx, geminiResponseScope); logger.Enabled(ctx, slog.LevelInfo) {
		logger.Info("Gemini response",
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
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return nil
		}
		apiErr = *ptr
	}

	switch {
	case apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "exceeds the maximum number of tokens"):
		return []goerr.Option{goerr.Tag(uisynth.ErrTagTokenExceeded)}
	case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= http.StatusInternalServerError:
		return []goerr.Option{goerr.Tag(uisynth.ErrTagTransient), goerr.V("status", apiErr.Code)}
	}
	return []goerr.Option{goerr.V("status", apiErr.Code)}
}
