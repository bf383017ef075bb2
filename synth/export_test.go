package synth

// Exported for testing
var (
	BuildActionPrompt = buildActionPrompt
	BuildCriticPrompt = buildCriticPrompt
	Truncate          = truncate
)
