package openai

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// apiClient is the slice of the OpenAI SDK that a uisynth oracle session calls.
// Tests replace it through NewWithAPIClient to replay chat completions.
type apiClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// realAPIClient forwards to the OpenAI client
type realAPIClient struct {
	client *openai.Client
}

func (r *realAPIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return r.client.CreateChatCompletion(ctx, req)
}
