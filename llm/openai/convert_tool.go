package openai

import (
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/internal/schema"
	"github.com/sashabaranov/go-openai"
)

// convertTool converts uisynth.ToolSpec to openai.Tool
func convertTool(spec *uisynth.ToolSpec) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  schema.ConvertToolSpecToJSONSchema(spec),
		},
	}
}
