package trace

// IterationData holds data specific to an iteration span.
type IterationData struct {
	Iteration int     `json:"iteration"`
	Score     float64 `json:"score"`
	OpenSize  int     `json:"open_size"`
	TraceLen  int     `json:"trace_len"`
}

// BranchData holds the outcome of one branch.
type BranchData struct {
	Index        int     `json:"index"`
	G            float64 `json:"g"`
	H            float64 `json:"h"`
	Score        float64 `json:"score"`
	RolloutSteps int     `json:"rollout_steps"`
	Terminal     bool    `json:"terminal"`
}

// LLMCallData holds data specific to an oracle call span.
type LLMCallData struct {
	// Oracle is "action" or "critic".
	Oracle       string `json:"oracle"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Model        string `json:"model,omitempty"`

	Request  *LLMRequest  `json:"request"`
	Response *LLMResponse `json:"response"`
}

// LLMRequest represents the request sent to an LLM.
type LLMRequest struct {
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Prompt       string   `json:"prompt"`
	Tools        []string `json:"tools,omitempty"`
}

// LLMResponse represents the response from an LLM.
type LLMResponse struct {
	Texts         []string        `json:"texts,omitempty"`
	FunctionCalls []*FunctionCall `json:"function_calls,omitempty"`
}

// FunctionCall represents a function call in the trace.
type FunctionCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// EventData holds data of an event span.
// Kind is a string such as "action_rejected" or "critic_degraded".
// Data is any JSON-serializable value.
type EventData struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}
