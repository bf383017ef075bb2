package claude

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/internal/schema"
)

// convertTool converts uisynth.ToolSpec to anthropic.ToolUnionParam
func convertTool(spec *uisynth.ToolSpec) anthropic.ToolUnionParam {
	props := schema.ConvertToolSpecToJSONSchema(spec)["properties"]

	tool := anthropic.ToolUnionParamOfTool(
		anthropic.ToolInputSchemaParam{
			Properties: props,
		},
		spec.Name,
	)
	if tool.OfTool != nil && spec.Description != "" {
		tool.OfTool.Description = anthropic.String(spec.Description)
	}
	return tool
}

// createSystemPrompt builds the system blocks of a request. Claude takes the system prompt as a
// separate field rather than a message.
func createSystemPrompt(prompt string) []anthropic.TextBlockParam {
	if prompt == "" {
		return nil
	}
	return []anthropic.TextBlockParam{{Text: prompt}}
}
