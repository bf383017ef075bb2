package schema

import (
	"sort"

	"github.com/m-mizutani/uisynth"
)

// CollectRequiredFields returns the sorted list of required property names
func CollectRequiredFields(properties map[string]*uisynth.Parameter) []string {
	var required []string
	for name, prop := range properties {
		if prop.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return required
}

// ConvertParameterToJSONSchema converts uisynth.Parameter to JSON Schema map
// This is the base conversion without provider-specific modifications
func ConvertParameterToJSONSchema(param *uisynth.Parameter) map[string]any {
	schema := map[string]any{
		"type": string(param.Type),
	}

	if param.Description != "" {
		schema["description"] = param.Description
	}
	if param.Title != "" {
		schema["title"] = param.Title
	}

	if param.Type == uisynth.TypeObject && param.Properties != nil {
		props := make(map[string]any)
		for name, prop := range param.Properties {
			props[name] = ConvertParameterToJSONSchema(prop)
		}
		schema["properties"] = props

		if required := CollectRequiredFields(param.Properties); len(required) > 0 {
			schema["required"] = required
		}
	}

	if param.Type == uisynth.TypeArray && param.Items != nil {
		schema["items"] = ConvertParameterToJSONSchema(param.Items)
	}

	if param.Enum != nil {
		enum := make([]any, len(param.Enum))
		for i, v := range param.Enum {
			enum[i] = v
		}
		schema["enum"] = enum
	}

	if param.Minimum != nil {
		schema["minimum"] = *param.Minimum
	}
	if param.Maximum != nil {
		schema["maximum"] = *param.Maximum
	}
	if param.MinLength != nil {
		schema["minLength"] = *param.MinLength
	}
	if param.MaxLength != nil {
		schema["maxLength"] = *param.MaxLength
	}
	if param.Pattern != "" {
		schema["pattern"] = param.Pattern
	}

	return schema
}

// ConvertToolSpecToJSONSchema builds the object schema describing a tool's arguments.
func ConvertToolSpecToJSONSchema(spec *uisynth.ToolSpec) map[string]any {
	props := make(map[string]any, len(spec.Parameters))
	for name, param := range spec.Parameters {
		props[name] = ConvertParameterToJSONSchema(param)
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if required := CollectRequiredFields(spec.Parameters); len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
