package uisynth

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// ToolSpec is the specification of a tool offered to the model. Oracles use tools as a typed
// channel for the model's choice; the tool is never executed, its call is decoded.
type ToolSpec struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description is a human-readable description of what the tool does.
	Description string

	// Parameters defines the input parameters that the tool accepts.
	Parameters map[string]*Parameter
}

// Validate validates the tool specification.
func (s *ToolSpec) Validate() error {
	eb := goerr.NewBuilder(goerr.V("tool", s.Name))
	if s.Name == "" {
		return eb.Wrap(ErrInvalidTool, "name is required")
	}

	for name, param := range s.Parameters {
		if err := param.Validate(); err != nil {
			return eb.Wrap(err, "invalid parameter", goerr.V("parameter", name))
		}
	}

	return nil
}

// ParameterType is the type of a parameter.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeInteger ParameterType = "integer"
	TypeBoolean ParameterType = "boolean"
	TypeArray   ParameterType = "array"
	TypeObject  ParameterType = "object"
)

// Parameter is a parameter of a tool.
type Parameter struct {
	// Title is the user-friendly name of the parameter.
	Title string

	// Type must be one of the predefined ParameterType values.
	Type ParameterType

	Description string

	// Required marks the parameter as mandatory in its enclosing object.
	Required bool

	// Enum is the list of allowed values for the parameter.
	Enum []string

	// Properties is used for object type parameters.
	Properties map[string]*Parameter

	// Items is used for array type parameters.
	Items *Parameter

	// Number constraints
	Minimum *float64
	Maximum *float64

	// String constraints
	MinLength *int
	MaxLength *int
	Pattern   string
}

// Validate validates the parameter.
func (p *Parameter) Validate() error {
	eb := goerr.NewBuilder(goerr.V("parameter", p.Title))

	if p.Type == "" {
		return eb.Wrap(ErrInvalidParameter, "type is required")
	}

	switch p.Type {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray, TypeObject:
	default:
		return eb.Wrap(ErrInvalidParameter, "unknown type", goerr.V("type", p.Type))
	}

	if p.Type == TypeObject {
		if p.Properties == nil {
			return eb.Wrap(ErrInvalidParameter, "properties is required for object type")
		}
		for _, prop := range p.Properties {
			if err := prop.Validate(); err != nil {
				return eb.Wrap(err, "invalid property")
			}
		}
	}

	if p.Type == TypeArray {
		if p.Items == nil {
			return eb.Wrap(ErrInvalidParameter, "items is required for array type")
		}
		if err := p.Items.Validate(); err != nil {
			return eb.Wrap(err, "invalid items")
		}
	}

	if p.Minimum != nil && p.Maximum != nil && *p.Minimum > *p.Maximum {
		return eb.Wrap(ErrInvalidParameter, "minimum must be less than or equal to maximum")
	}

	if p.MinLength != nil && p.MaxLength != nil && *p.MinLength > *p.MaxLength {
		return eb.Wrap(ErrInvalidParameter, "minLength must be less than or equal to maxLength")
	}
	if p.Pattern != "" {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return eb.Wrap(ErrInvalidParameter, "invalid pattern", goerr.V("pattern", p.Pattern))
		}
	}

	return nil
}
