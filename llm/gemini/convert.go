package gemini

import (
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/internal/schema"
	genai "google.golang.org/genai"
)

// convertTool converts uisynth.ToolSpec to the SDK's FunctionDeclaration
func convertTool(spec *uisynth.ToolSpec) *genai.FunctionDeclaration {
	// Gemini requires an empty slice, not nil
	required := schema.CollectRequiredFields(spec.Parameters)
	if required == nil {
		required = []string{}
	}

	parameters := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(spec.Parameters)),
		Required:   required,
	}
	for name, param := range spec.Parameters {
		parameters.Properties[name] = convertParameterToSchema(param)
	}

	return &genai.FunctionDeclaration{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters:  parameters,
	}
}

func convertParameterToSchema(param *uisynth.Parameter) *genai.Schema {
	s := &genai.Schema{
		Type:        getGeminiType(param.Type),
		Description: param.Description,
		Title:       param.Title,
	}

	if len(param.Enum) > 0 {
		s.Enum = param.Enum
	}

	if param.Properties != nil {
		s.Properties = make(map[string]*genai.Schema, len(param.Properties))
		for name, prop := range param.Properties {
			s.Properties[name] = convertParameterToSchema(prop)
		}
		s.Required = schema.CollectRequiredFields(param.Properties)
		if s.Required == nil {
			s.Required = []string{}
		}
	}

	if param.Items != nil {
		s.Items = convertParameterToSchema(param.Items)
	}

	if param.Type == uisynth.TypeNumber || param.Type == uisynth.TypeInteger {
		if param.Minimum != nil {
			minVal := *param.Minimum
			s.Minimum = &minVal
		}
		if param.Maximum != nil {
			maxVal := *param.Maximum
			s.Maximum = &maxVal
		}
	}

	if param.Type == uisynth.TypeString {
		if param.MinLength != nil {
			minLen := int64(*param.MinLength)
			s.MinLength = &minLen
		}
		if param.MaxLength != nil {
			maxLen := int64(*param.MaxLength)
			s.MaxLength = &maxLen
		}
		if param.Pattern != "" {
			s.Pattern = param.Pattern
		}
	}

	return s
}

func getGeminiType(paramType uisynth.ParameterType) genai.Type {
	switch paramType {
	case uisynth.TypeString:
		return genai.TypeString
	case uisynth.TypeNumber:
		return genai.TypeNumber
	case uisynth.TypeInteger:
		return genai.TypeInteger
	case uisynth.TypeBoolean:
		return genai.TypeBoolean
	case uisynth.TypeArray:
		return genai.TypeArray
	case uisynth.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
