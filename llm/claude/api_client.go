package claude

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
)

// apiClient is the slice of the Anthropic SDK that a uisynth oracle session calls.
// Tests replace it to replay Messages responses carrying tool calls.
type apiClient interface {
	MessagesNew(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// realAPIClient forwards to the Claude client
type realAPIClient struct {
	client *anthropic.Client
}

func (r *realAPIClient) MessagesNew(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return r.client.Messages.New(ctx, params)
}
