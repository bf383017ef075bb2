package openai

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

var ErrorOptions = errorOptions

// APIClientFunc adapts a function to the unexported apiClient interface.
type APIClientFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)

func (f APIClientFunc) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return f(ctx, req)
}

// NewWithAPIClient creates a client that talks to api instead of the OpenAI endpoint.
func NewWithAPIClient(api APIClientFunc, options ...Option) *Client {
	client := newClient(options...)
	client.apiClient = api
	return client
}
