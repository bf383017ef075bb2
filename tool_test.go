package uisynth_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uisynth"
)

func ptr[T any](v T) *T {
	return &v
}

func TestParameterValidation(t *testing.T) {
	t.Run("number constraints", func(t *testing.T) {
		t.Run("valid minimum and maximum", func(t *testing.T) {
			p := &uisynth.Parameter{
				Type:    uisynth.TypeInteger,
				Minimum: ptr(-10.0),
				Maximum: ptr(10.0),
			}
			gt.NoError(t, p.Validate())
		})

		t.Run("invalid minimum and maximum", func(t *testing.T) {
			p := &uisynth.Parameter{
				Type:    uisynth.TypeNumber,
				Minimum: ptr(10.0),
				Maximum: ptr(1.0),
			}
			gt.Error(t, p.Validate())
		})
	})

	t.Run("string constraints", func(t *testing.T) {
		t.Run("invalid minLength and maxLength", func(t *testing.T) {
			p := &uisynth.Parameter{
				Type:      uisynth.TypeString,
				MinLength: ptr(10),
				MaxLength: ptr(1),
			}
			gt.Error(t, p.Validate())
		})

		t.Run("invalid pattern", func(t *testing.T) {
			p := &uisynth.Parameter{
				Type:    uisynth.TypeString,
				Pattern: "[invalid",
			}
			gt.Error(t, p.Validate())
		})
	})

	t.Run("type is required", func(t *testing.T) {
		err := (&uisynth.Parameter{}).Validate()
		gt.True(t, errors.Is(err, uisynth.ErrInvalidParameter))
	})

	t.Run("unknown type", func(t *testing.T) {
		gt.Error(t, (&uisynth.Parameter{Type: "date"}).Validate())
	})

	t.Run("object needs properties", func(t *testing.T) {
		gt.Error(t, (&uisynth.Parameter{Type: uisynth.TypeObject}).Validate())
	})

	t.Run("array needs valid items", func(t *testing.T) {
		gt.Error(t, (&uisynth.Parameter{Type: uisynth.TypeArray}).Validate())
		gt.Error(t, (&uisynth.Parameter{Type: uisynth.TypeArray, Items: &uisynth.Parameter{}}).Validate())
		gt.NoError(t, (&uisynth.Parameter{Type: uisynth.TypeArray, Items: &uisynth.Parameter{Type: uisynth.TypeString}}).Validate())
	})
}

func TestToolSpecValidation(t *testing.T) {
	t.Run("name is required", func(t *testing.T) {
		spec := &uisynth.ToolSpec{}
		gt.True(t, errors.Is(spec.Validate(), uisynth.ErrInvalidTool))
	})

	t.Run("nested parameter error is reported", func(t *testing.T) {
		spec := &uisynth.ToolSpec{
			Name: "create_function",
			Parameters: map[string]*uisynth.Parameter{
				"name": {Type: uisynth.TypeString, Required: true},
				"bad":  {Type: uisynth.TypeObject},
			},
		}
		gt.True(t, errors.Is(spec.Validate(), uisynth.ErrInvalidParameter))
	})

	t.Run("valid spec", func(t *testing.T) {
		spec := &uisynth.ToolSpec{
			Name: "submit",
			Parameters: map[string]*uisynth.Parameter{
				"details": {Type: uisynth.TypeString, Required: true},
			},
		}
		gt.NoError(t, spec.Validate())
	})
}
