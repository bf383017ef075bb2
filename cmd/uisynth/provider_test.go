package main_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	main "github.com/m-mizutani/uisynth/cmd/uisynth"
)

func TestNewLLMClient(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		client, err := main.NewLLMClient(t.Context(), "openai", "gpt-4o-mini", "sk-test", 0)
		gt.NoError(t, err)
		gt.NotNil(t, client)
	})

	t.Run("claude with rate limit", func(t *testing.T) {
		client, err := main.NewLLMClient(t.Context(), "claude", "", "sk-ant-test", 0.5)
		gt.NoError(t, err)
		gt.NotNil(t, client)
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := main.NewLLMClient(t.Context(), "openai", "", "", 0)
		gt.Error(t, err)
	})

	t.Run("gemini requires project", func(t *testing.T) {
		_, err := main.NewLLMClient(t.Context(), "gemini", "", "", 0)
		gt.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := main.NewLLMClient(t.Context(), "palm", "", "key", 0)
		gt.Error(t, err)
	})
}
