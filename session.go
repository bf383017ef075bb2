package uisynth

// SessionConfig is the resolved set of session options. Providers read it through accessors.
type SessionConfig struct {
	systemPrompt string
	tools        []*ToolSpec
	toolRequired bool
	temperature  *float32
}

// SessionOption configures a new Session.
type SessionOption func(*SessionConfig)

// NewSessionConfig applies options on top of the zero configuration.
func NewSessionConfig(options ...SessionOption) *SessionConfig {
	cfg := &SessionConfig{}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

func (c *SessionConfig) SystemPrompt() string  { return c.systemPrompt }
func (c *SessionConfig) Tools() []*ToolSpec    { return c.tools }
func (c *SessionConfig) ToolRequired() bool    { return c.toolRequired }
func (c *SessionConfig) Temperature() *float32 { return c.temperature }

// WithSessionSystemPrompt sets the system prompt of the session. It overrides the client default.
func WithSessionSystemPrompt(prompt string) SessionOption {
	return func(c *SessionConfig) {
		c.systemPrompt = prompt
	}
}

// WithSessionTools registers tools the model may call.
func WithSessionTools(specs ...*ToolSpec) SessionOption {
	return func(c *SessionConfig) {
		c.tools = append(c.tools, specs...)
	}
}

// WithSessionToolRequired asks the provider to force the model to call one of the registered tools.
func WithSessionToolRequired() SessionOption {
	return func(c *SessionConfig) {
		c.toolRequired = true
	}
}

// WithSessionTemperature overrides the sampling temperature for this session.
func WithSessionTemperature(temp float32) SessionOption {
	return func(c *SessionConfig) {
		c.temperature = &temp
	}
}
