package uisynth

import (
	"context"
	"log/slog"
)

// LLMClient is a client for each LLM service. Oracles talk to a model only through this interface.
type LLMClient interface {
	NewSession(ctx context.Context, options ...SessionOption) (Session, error)
}

// Session is a single conversation with a model.
type Session interface {
	GenerateContent(ctx context.Context, input ...Input) (*Response, error)
}

type FunctionCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// LogValue returns a slog.Value for the FunctionCall
func (f *FunctionCall) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", f.ID),
		slog.String("name", f.Name),
		slog.Any("arguments", f.Arguments),
	)
}

// Response is a general response type for each provider.
type Response struct {
	Texts         []string
	FunctionCalls []*FunctionCall
	InputToken    int
	OutputToken   int
}

func (r *Response) HasData() bool {
	return len(r.Texts) > 0 || len(r.FunctionCalls) > 0
}

type Input interface {
	isInput() restrictedValue
	LogValue() slog.Value
	String() string
}

type restrictedValue struct{}

// Text is a text input as prompt.
// Usage:
// input := uisynth.Text("Hello, world!")
type Text string

func (t Text) isInput() restrictedValue {
	return restrictedValue{}
}

func (t Text) LogValue() slog.Value {
	return slog.StringValue(string(t))
}

func (t Text) String() string {
	return string(t)
}

// FunctionResponse is a result returned to the model for an earlier FunctionCall.
type FunctionResponse struct {
	ID    string
	Name  string
	Data  map[string]any
	Error error
}

func (f FunctionResponse) isInput() restrictedValue {
	return restrictedValue{}
}

// String returns a string representation of the FunctionResponse
func (f FunctionResponse) String() string {
	if f.Error != nil {
		return f.Name + " (error: " + f.Error.Error() + ")"
	}
	return f.Name + " (success)"
}

// LogValue returns a slog.Value for the FunctionResponse
func (f FunctionResponse) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", f.ID),
		slog.String("name", f.Name),
	}

	if f.Data != nil {
		attrs = append(attrs, slog.Any("data", f.Data))
	}

	if f.Error != nil {
		attrs = append(attrs, slog.String("error", f.Error.Error()))
	}

	return slog.GroupValue(attrs...)
}
