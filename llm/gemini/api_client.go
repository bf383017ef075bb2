package gemini

import (
	"context"

	genai "google.golang.org/genai"
)

// apiClient is the slice of the Gemini SDK that a uisynth oracle session calls.
// Each action or critic request is a single stateless GenerateContent call.
type apiClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// realAPIClient forwards to the Gemini client for stateless operations
type realAPIClient struct {
	client *genai.Client
}

func (r *realAPIClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return r.client.Models.GenerateContent(ctx, model, contents, config)
}
