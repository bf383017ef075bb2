package gemini

import (
	"context"

	genai "google.golang.org/genai"
)

var (
	ConvertTool     = convertTool
	ErrorOptions    = errorOptions
	ProcessResponse = processResponse
)

// APIClientFunc adapts a function to the unexported apiClient interface.
type APIClientFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

func (f APIClientFunc) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return f(ctx, model, contents, config)
}

// NewWithAPIClient creates a client that talks to api instead of Vertex AI.
func NewWithAPIClient(api APIClientFunc, options ...Option) *Client {
	client := newClient(options...)
	client.apiClient = api
	return client
}
