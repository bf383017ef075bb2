package openai_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/llm/openai"
	openaiapi "github.com/sashabaranov/go-openai"
)

func rateTool() *uisynth.ToolSpec {
	minRating, maxRating := -10.0, 10.0
	return &uisynth.ToolSpec{
		Name:        "rate_action",
		Description: "Rate the last action",
		Parameters: map[string]*uisynth.Parameter{
			"rating": {Type: uisynth.TypeInteger, Required: true, Minimum: &minRating, Maximum: &maxRating},
		},
	}
}

func TestGenerateContent(t *testing.T) {
	var captured []openaiapi.ChatCompletionRequest
	api := openai.APIClientFunc(func(ctx context.Context, req openaiapi.ChatCompletionRequest) (openaiapi.ChatCompletionResponse, error) {
		captured = append(captured, req)
		return openaiapi.ChatCompletionResponse{
			Choices: []openaiapi.ChatCompletionChoice{{
				Message: openaiapi.ChatCompletionMessage{
					Role: openaiapi.ChatMessageRoleAssistant,
					ToolCalls: []openaiapi.ToolCall{{
						ID:   "call_1",
						Type: openaiapi.ToolTypeFunction,
						Function: openaiapi.FunctionCall{
							Name:      "rate_action",
							Arguments: `{"rating":7}`,
						},
					}},
				},
			}},
			Usage: openaiapi.Usage{PromptTokens: 120, CompletionTokens: 8},
		}, nil
	})

	client := openai.NewWithAPIClient(api, openai.WithModel("gpt-test"))
	session, err := client.NewSession(t.Context(),
		uisynth.WithSessionSystemPrompt("You are a critic."),
		uisynth.WithSessionTools(rateTool()),
		uisynth.WithSessionToolRequired(),
		uisynth.WithSessionTemperature(0.2),
	)
	gt.NoError(t, err).Required()

	resp, err := session.GenerateContent(t.Context(), uisynth.Text("rate it"))
	gt.NoError(t, err).Required()
	gt.A(t, resp.FunctionCalls).Length(1).Required()
	gt.Equal(t, resp.FunctionCalls[0].Name, "rate_action")
	gt.Equal(t, resp.FunctionCalls[0].Arguments["rating"], any(float64(7)))
	gt.Equal(t, resp.InputToken, 120)
	gt.Equal(t, resp.OutputToken, 8)

	gt.A(t, captured).Length(1).Required()
	req := captured[0]
	gt.Equal(t, req.Model, "gpt-test")
	gt.Equal(t, req.ToolChoice, any("required"))
	gt.Equal(t, req.Temperature, float32(0.2))
	gt.A(t, req.Messages).Length(2).Required()
	gt.Equal(t, req.Messages[0].Role, openaiapi.ChatMessageRoleSystem)
	gt.Equal(t, req.Messages[1].Content, "rate it")
	gt.A(t, req.Tools).Length(1).Required()
	gt.Equal(t, req.Tools[0].Function.Name, "rate_action")

	// the function response follows the assistant turn that issued the call
	_, err = session.GenerateContent(t.Context(), uisynth.FunctionResponse{ID: "call_1", Name: "rate_action", Data: map[string]any{"ok": true}})
	gt.NoError(t, err).Required()
	gt.A(t, captured).Length(2).Required()
	msgs := captured[1].Messages
	gt.A(t, msgs).Length(4).Required()
	gt.Equal(t, msgs[2].Role, openaiapi.ChatMessageRoleAssistant)
	gt.Equal(t, msgs[3].Role, openaiapi.ChatMessageRoleTool)
	gt.Equal(t, msgs[3].ToolCallID, "call_1")
}

func TestGenerateContentText(t *testing.T) {
	api := openai.APIClientFunc(func(ctx context.Context, req openaiapi.ChatCompletionRequest) (openaiapi.ChatCompletionResponse, error) {
		gt.Value(t, req.ToolChoice).Nil()
		return openaiapi.ChatCompletionResponse{
			Choices: []openaiapi.ChatCompletionChoice{{
				Message: openaiapi.ChatCompletionMessage{Role: openaiapi.ChatMessageRoleAssistant, Content: "hello"},
			}},
		}, nil
	})

	session, err := openai.NewWithAPIClient(api).NewSession(t.Context())
	gt.NoError(t, err).Required()
	resp, err := session.GenerateContent(t.Context(), uisynth.Text("say hello"))
	gt.NoError(t, err).Required()
	gt.A(t, resp.Texts).Length(1)
	gt.A(t, resp.FunctionCalls).Length(0)
}

func TestGenerateContentBrokenArguments(t *testing.T) {
	api := openai.APIClientFunc(func(ctx context.Context, req openaiapi.ChatCompletionRequest) (openaiapi.ChatCompletionResponse, error) {
		return openaiapi.ChatCompletionResponse{
			Choices: []openaiapi.ChatCompletionChoice{{
				Message: openaiapi.ChatCompletionMessage{
					ToolCalls: []openaiapi.ToolCall{{Function: openaiapi.FunctionCall{Name: "rate_action", Arguments: "{"}}},
				},
			}},
		}, nil
	})

	session, err := openai.NewWithAPIClient(api).NewSession(t.Context())
	gt.NoError(t, err).Required()
	_, err = session.GenerateContent(t.Context(), uisynth.Text("rate it"))
	gt.Error(t, err)
}

func TestNewSessionInvalidTool(t *testing.T) {
	_, err := openai.NewWithAPIClient(nil).NewSession(t.Context(), uisynth.WithSessionTools(&uisynth.ToolSpec{}))
	gt.Error(t, err)
}

func TestErrorOptions(t *testing.T) {
	type testCase struct {
		err       error
		exceeded  bool
		transient bool
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			err := goerr.Wrap(errors.New("base"), "wrapped", openai.ErrorOptions(tc.err)...)
			gt.Equal(t, uisynth.IsTokenExceeded(err), tc.exceeded)
			gt.Equal(t, goerr.HasTag(err, uisynth.ErrTagTransient), tc.transient)
		}
	}

	t.Run("context length exceeded", runTest(testCase{
		err: &openaiapi.APIError{
			Type:    "invalid_request_error",
			Code:    "context_length_exceeded",
			Message: "This model's maximum context length is 128000 tokens.",
		},
		exceeded: true,
	}))

	t.Run("different error code", runTest(testCase{
		err: &openaiapi.APIError{Type: "invalid_request_error", Code: "invalid_model", HTTPStatusCode: http.StatusBadRequest},
	}))

	t.Run("code is not string", runTest(testCase{
		err: &openaiapi.APIError{Type: "invalid_request_error", Code: 12345},
	}))

	t.Run("rate limited", runTest(testCase{
		err:       &openaiapi.APIError{Type: "rate_limit_error", HTTPStatusCode: http.StatusTooManyRequests},
		transient: true,
	}))

	t.Run("server error on transport", runTest(testCase{
		err:       &openaiapi.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")},
		transient: true,
	}))

	t.Run("generic error", runTest(testCase{
		err: errors.New("some error"),
	}))
}

func TestOpenAIContentGenerate(t *testing.T) {
	apiKey, ok := os.LookupEnv("TEST_OPENAI_API_KEY")
	if !ok {
		t.Skip("TEST_OPENAI_API_KEY is not set")
	}

	client, err := openai.New(t.Context(), apiKey)
	gt.NoError(t, err).Required()

	session, err := client.NewSession(t.Context(), uisynth.WithSessionTools(rateTool()), uisynth.WithSessionToolRequired())
	gt.NoError(t, err).Required()

	resp, err := session.GenerateContent(t.Context(), uisynth.Text("Rate the action 'created a Header component' by calling rate_action."))
	gt.NoError(t, err).Required()
	gt.A(t, resp.FunctionCalls).Length(1)
}
