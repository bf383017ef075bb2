package convert

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uisynth"
)

// ParseJSONArguments attempts to parse a JSON string into a map
func ParseJSONArguments(jsonStr string) (map[string]any, error) {
	if jsonStr == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &args); err != nil {
		return nil, goerr.Wrap(err, "failed to parse JSON arguments", goerr.V("arguments", jsonStr))
	}
	return args, nil
}

// StringifyJSONArguments converts a map to a JSON string
func StringifyJSONArguments(args map[string]any) (string, error) {
	if args == nil {
		return "{}", nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", goerr.Wrap(err, "failed to stringify JSON arguments")
	}
	return string(data), nil
}

// FunctionResponseText renders a FunctionResponse as the text body providers expect for a tool result.
func FunctionResponseText(resp uisynth.FunctionResponse) (string, error) {
	if resp.Error != nil {
		return fmt.Sprintf("Error message: %+v", resp.Error), nil
	}
	return StringifyJSONArguments(resp.Data)
}

// GenerateToolCallID generates a unique ID for tool calls if not present
func GenerateToolCallID(name string, index int) string {
	return "call_" + name + "_" + strconv.Itoa(index)
}
