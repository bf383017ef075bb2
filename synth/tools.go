package synth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth"
	"github.com/m-mizutani/uisynth/internal/schema"
	"github.com/m-mizutani/uisynth/program"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	ErrUnknownAction    = errors.New("unknown action")
	ErrInvalidArguments = errors.New("invalid action arguments")
)

// RateToolName is the tool the critic oracle must call.
const RateToolName = "rate_action"

func ptr[T any](v T) *T { return &v }

func str(desc string, required bool) *uisynth.Parameter {
	return &uisynth.Parameter{Type: uisynth.TypeString, Description: desc, Required: required}
}

func identifier(desc string) *uisynth.Parameter {
	return &uisynth.Parameter{
		Type:        uisynth.TypeString,
		Description: desc,
		Required:    true,
		Pattern:     `^[A-Za-z_$][A-Za-z0-9_$]*$`,
	}
}

// ActionTools returns one tool per action kind, in program.Kinds order.
func ActionTools() []*uisynth.ToolSpec {
	return []*uisynth.ToolSpec{
		{
			Name:        string(program.KindThink),
			Description: "Record a thought about what to do next. Does not change the program.",
			Parameters: map[string]*uisynth.Parameter{
				"thought": str("The reasoning to record", true),
			},
		},
		{
			Name:        string(program.KindChangeFocus),
			Description: "Switch attention to another wireframe page.",
			Parameters: map[string]*uisynth.Parameter{
				"page_id": str("Id of the page to focus on", true),
			},
		},
		{
			Name:        string(program.KindCreateFunction),
			Description: "Add a new top-level function. Fails if a function with the same name exists.",
			Parameters: map[string]*uisynth.Parameter{
				"name":        identifier("Function name"),
				"params":      str("Parameter list without parentheses, e.g. `props: { title: string }`", false),
				"return_type": str("Optional return type annotation", false),
				"body":        str("Function body without the surrounding braces", true),
			},
		},
		{
			Name:        string(program.KindUpdateFunction),
			Description: "Replace fields of an existing function. Omitted fields are kept.",
			Parameters: map[string]*uisynth.Parameter{
				"name":        identifier("Name of the function to update"),
				"params":      str("New parameter list", false),
				"return_type": str("New return type annotation", false),
				"body":        str("New function body", false),
			},
		},
		{
			Name:        string(program.KindDeleteFunction),
			Description: "Remove a top-level function.",
			Parameters: map[string]*uisynth.Parameter{
				"name": identifier("Name of the function to delete"),
			},
		},
		{
			Name:        string(program.KindCreateType),
			Description: "Add a new type alias. Fails if a type with the same name exists.",
			Parameters: map[string]*uisynth.Parameter{
				"name":       identifier("Type name"),
				"definition": str("Right-hand side of the alias", true),
			},
		},
		{
			Name:        string(program.KindUpdateType),
			Description: "Replace the definition of an existing type alias.",
			Parameters: map[string]*uisynth.Parameter{
				"name":       identifier("Name of the type to update"),
				"definition": str("New right-hand side of the alias", false),
			},
		},
		{
			Name:        string(program.KindDeleteType),
			Description: "Remove a type alias.",
			Parameters: map[string]*uisynth.Parameter{
				"name": identifier("Name of the type to delete"),
			},
		},
		{
			Name:        string(program.KindSubmit),
			Description: "Declare the program complete for every page.",
			Parameters: map[string]*uisynth.Parameter{
				"details": str("Summary of what was built", true),
			},
		},
	}
}

// RateTool is the tool the critic oracle answers with.
func RateTool() *uisynth.ToolSpec {
	return &uisynth.ToolSpec{
		Name:        RateToolName,
		Description: "Rate how well the last action serves the goal.",
		Parameters: map[string]*uisynth.Parameter{
			"score": {
				Type:        uisynth.TypeInteger,
				Description: "Rating from -10 (harmful) through 0 (neutral) to 10 (ideal)",
				Required:    true,
				Minimum:     ptr(-10.0),
				Maximum:     ptr(10.0),
			},
			"justification": str("Short explanation of the rating", true),
		},
	}
}

var compiledSchemas = sync.OnceValues(func() (map[string]*jsonschema.Schema, error) {
	specs := append(ActionTools(), RateTool())
	compiler := jsonschema.NewCompiler()
	out := make(map[string]*jsonschema.Schema, len(specs))

	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid tool spec", goerr.V("tool", spec.Name))
		}
		doc, err := toJSONValue(schema.ConvertToolSpecToJSONSchema(spec))
		if err != nil {
			return nil, err
		}
		loc := spec.Name + ".json"
		if err := compiler.AddResource(loc, doc); err != nil {
			return nil, goerr.Wrap(err, "failed to add tool schema", goerr.V("tool", spec.Name))
		}
		sch, err := compiler.Compile(loc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to compile tool schema", goerr.V("tool", spec.Name))
		}
		out[spec.Name] = sch
	}
	return out, nil
})

// toJSONValue normalizes v into the value space jsonschema validates.
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal json value")
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal json value")
	}
	return doc, nil
}

func validateArguments(call *uisynth.FunctionCall) error {
	schemas, err := compiledSchemas()
	if err != nil {
		return err
	}
	sch, ok := schemas[call.Name]
	if !ok {
		return goerr.Wrap(ErrUnknownAction, "no such tool", goerr.V("name", call.Name))
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	inst, err := toJSONValue(args)
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return goerr.Wrap(ErrInvalidArguments, err.Error(), goerr.V("name", call.Name), goerr.V("args", call.Arguments))
	}
	return nil
}

// DecodeAction validates a function call against its tool schema and converts it into an Action.
func DecodeAction(call *uisynth.FunctionCall) (program.Action, error) {
	if call == nil {
		return nil, goerr.Wrap(ErrUnknownAction, "nil function call")
	}
	if err := validateArguments(call); err != nil {
		return nil, err
	}
	args := call.Arguments

	switch program.Kind(call.Name) {
	case program.KindThink:
		return &program.Think{Thought: getString(args, "thought")}, nil
	case program.KindChangeFocus:
		return &program.ChangeFocus{PageID: getString(args, "page_id")}, nil
	case program.KindCreateFunction:
		return &program.CreateFunction{
			Name:       getString(args, "name"),
			Params:     getString(args, "params"),
			ReturnType: getString(args, "return_type"),
			Body:       getString(args, "body"),
		}, nil
	case program.KindUpdateFunction:
		return &program.UpdateFunction{
			Name:       getString(args, "name"),
			Params:     getOptional(args, "params"),
			ReturnType: getOptional(args, "return_type"),
			Body:       getOptional(args, "body"),
		}, nil
	case program.KindDeleteFunction:
		return &program.DeleteFunction{Name: getString(args, "name")}, nil
	case program.KindCreateType:
		return &program.CreateType{Name: getString(args, "name"), Definition: getString(args, "definition")}, nil
	case program.KindUpdateType:
		return &program.UpdateType{Name: getString(args, "name"), Definition: getOptional(args, "definition")}, nil
	case program.KindDeleteType:
		return &program.DeleteType{Name: getString(args, "name")}, nil
	case program.KindSubmit:
		return &program.Submit{Details: getString(args, "details")}, nil
	}
	return nil, goerr.Wrap(ErrUnknownAction, "not an action tool", goerr.V("name", call.Name))
}

// DecodeRating converts a rate_action call into a Rating.
func DecodeRating(call *uisynth.FunctionCall) (*Rating, error) {
	if call == nil || call.Name != RateToolName {
		return nil, goerr.Wrap(ErrUnknownAction, "expected rating tool call")
	}
	if err := validateArguments(call); err != nil {
		return nil, err
	}

	var score int
	switch v := call.Arguments["score"].(type) {
	case float64:
		score = int(v)
	case int:
		score = v
	case int64:
		score = int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, goerr.Wrap(ErrInvalidArguments, "score is not an integer", goerr.V("score", v))
		}
		score = int(n)
	default:
		return nil, goerr.Wrap(ErrInvalidArguments, "score has unexpected type", goerr.V("type", fmt.Sprintf("%T", v)))
	}

	return &Rating{Score: score, Justification: getString(call.Arguments, "justification")}, nil
}

func getString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func getOptional(args map[string]any, key string) *string {
	s, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &s
}
