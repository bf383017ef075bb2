package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/llm/claude"
)

func rateTool() *uisynth.ToolSpec {
	return &uisynth.ToolSpec{
		Name:        "rate_action",
		Description: "Rate the last action",
		Parameters: map[string]*uisynth.Parameter{
			"rating": {Type: uisynth.TypeInteger, Required: true},
		},
	}
}

func message(t *testing.T, raw string) *anthropic.Message {
	t.Helper()
	var msg anthropic.Message
	gt.NoError(t, json.Unmarshal([]byte(raw), &msg)).Required()
	return &msg
}

func TestGenerateContent(t *testing.T) {
	var captured []anthropic.MessageNewParams
	api := claude.APIClientFunc(func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		captured = append(captured, params)
		return message(t, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [
				{"type": "text", "text": "Rating now."},
				{"type": "tool_use", "id": "toolu_1", "name": "rate_action", "input": {"rating": -3}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 90, "output_tokens": 12}
		}`), nil
	})

	client := claude.NewWithAPIClient(api, claude.WithModel("claude-test"))
	session, err := client.NewSession(t.Context(),
		uisynth.WithSessionSystemPrompt("You are a critic."),
		uisynth.WithSessionTools(rateTool()),
		uisynth.WithSessionToolRequired(),
	)
	gt.NoError(t, err).Required()

	resp, err := session.GenerateContent(t.Context(), uisynth.Text("rate it"))
	gt.NoError(t, err).Required()
	gt.A(t, resp.Texts).Length(1)
	gt.A(t, resp.FunctionCalls).Length(1).Required()
	gt.Equal(t, resp.FunctionCalls[0].ID, "toolu_1")
	gt.Equal(t, resp.FunctionCalls[0].Arguments["rating"], any(float64(-3)))
	gt.Equal(t, resp.InputToken, 90)
	gt.Equal(t, resp.OutputToken, 12)

	gt.A(t, captured).Length(1).Required()
	gt.A(t, captured[0].System).Length(1).Required()
	gt.Equal(t, captured[0].System[0].Text, "You are a critic.")
	gt.A(t, captured[0].Tools).Length(1)
	gt.A(t, captured[0].Messages).Length(1)

	_, err = session.GenerateContent(t.Context(), uisynth.FunctionResponse{ID: "toolu_1", Name: "rate_action", Data: map[string]any{"ok": true}})
	gt.NoError(t, err).Required()
	gt.A(t, captured).Length(2).Required()
	// user, assistant, tool result
	gt.A(t, captured[1].Messages).Length(3)
}

func TestCreateSystemPrompt(t *testing.T) {
	gt.A(t, claude.CreateSystemPrompt("")).Length(0)
	gt.A(t, claude.CreateSystemPrompt("be brief")).Length(1)
}

func TestConvertTool(t *testing.T) {
	tool := claude.ConvertTool(rateTool())
	gt.Value(t, tool.OfTool).NotNil().Required()
	gt.Equal(t, tool.OfTool.Name, "rate_action")
}

func TestNewSessionInvalidTool(t *testing.T) {
	_, err := claude.NewWithAPIClient(nil).NewSession(t.Context(), uisynth.WithSessionTools(&uisynth.ToolSpec{}))
	gt.Error(t, err)
}

func TestErrorOptions(t *testing.T) {
	type testCase struct {
		err       error
		transient bool
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			err := goerr.Wrap(errors.New("base"), "wrapped", claude.ErrorOptions(tc.err)...)
			gt.Equal(t, goerr.HasTag(err, uisynth.ErrTagTransient), tc.transient)
			gt.False(t, uisynth.IsTokenExceeded(err))
		}
	}

	t.Run("rate limited", runTest(testCase{
		err:       &anthropic.Error{StatusCode: http.StatusTooManyRequests},
		transient: true,
	}))

	t.Run("overloaded", runTest(testCase{
		err:       &anthropic.Error{StatusCode: 529},
		transient: true,
	}))

	t.Run("server error", runTest(testCase{
		err:       &anthropic.Error{StatusCode: http.StatusInternalServerError},
		transient: true,
	}))

	t.Run("unauthorized", runTest(testCase{
		err: &anthropic.Error{StatusCode: http.StatusUnauthorized},
	}))

	t.Run("not an API error", runTest(testCase{
		err: errors.New("dial tcp: connection refused"),
	}))
}

func TestClaudeContentGenerate(t *testing.T) {
	apiKey, ok := os.LookupEnv("TEST_CLAUDE_API_KEY")
	if !ok {
		t.Skip("TEST_CLAUDE_API_KEY is not set")
	}

	client, err := claude.New(t.Context(), apiKey)
	gt.NoError(t, err).Required()

	session, err := client.NewSession(t.Context(), uisynth.WithSessionTools(rateTool()))
	gt.NoError(t, err).Required()

	resp, err := session.GenerateContent(t.Context(), uisynth.Text("Rate the action 'created a Header component' by calling rate_action."))
	gt.NoError(t, err).Required()
	gt.True(t, resp.HasData())
}
