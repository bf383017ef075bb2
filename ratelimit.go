package uisynth

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"
)

type rateLimitedClient struct {
	client  LLMClient
	limiter *rate.Limiter
}

type rateLimitedSession struct {
	session Session
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps client so that every GenerateContent call waits on limiter first.
// Branches of the search share one client, so the limiter bounds the whole run.
func NewRateLimitedClient(client LLMClient, limiter *rate.Limiter) LLMClient {
	return &rateLimitedClient{client: client, limiter: limiter}
}

func (c *rateLimitedClient) NewSession(ctx context.Context, options ...SessionOption) (Session, error) {
	ssn, err := c.client.NewSession(ctx, options...)
	if err != nil {
		return nil, err
	}
	return &rateLimitedSession{session: ssn, limiter: c.limiter}, nil
}

func (s *rateLimitedSession) GenerateContent(ctx context.Context, input ...Input) (*Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter wait failed")
	}
	return s.session.GenerateContent(ctx, input...)
}
