package claude

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
)

var (
	ConvertTool        = convertTool
	CreateSystemPrompt = createSystemPrompt
	ErrorOptions       = errorOptions
)

// APIClientFunc adapts a function to the unexported apiClient interface.
type APIClientFunc func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)

func (f APIClientFunc) MessagesNew(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return f(ctx, params)
}

// NewWithAPIClient creates a client that talks to api instead of the Anthropic endpoint.
func NewWithAPIClient(api APIClientFunc, options ...Option) *Client {
	client := newClient(options...)
	client.apiClient = api
	return client
}
