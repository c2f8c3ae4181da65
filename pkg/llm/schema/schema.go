// Package schema converts tool parameter declarations into JSON Schema
// values and validates tool-call arguments against them.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/papercomputeco/bridge/pkg/llm"
)

// ErrUnknownTool is returned when arguments are validated for a tool that
// was never declared.
var ErrUnknownTool = errors.New("unknown tool")

// Parse decodes a tool's parameter schema. An empty declaration becomes an
// object schema with no properties.
func Parse(raw json.RawMessage) (*jsonschema.Schema, error) {
	s := &jsonschema.Schema{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, s); err != nil {
			return nil, fmt.Errorf("parsing parameter schema: %w", err)
		}
	}

	if s.Type == "" && len(s.Types) == 0 {
		s.Type = "object"
	}
	if s.Type == "object" && s.Properties == nil {
		s.Properties = map[string]*jsonschema.Schema{}
	}

	return s, nil
}

// Normalize returns the declaration in the shape function-calling APIs
// expect: always an object schema with a properties map.
func Normalize(raw json.RawMessage) (json.RawMessage, error) {
	s, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// Set holds resolved schemas for a conversation's tools.
type Set struct {
	resolved map[string]*jsonschema.Resolved
}

// Compile resolves every tool schema. Tools whose schema cannot be resolved
// are reported in the returned error and left unchecked.
func Compile(tools []llm.ToolDefinition) (*Set, error) {
	set := &Set{resolved: make(map[string]*jsonschema.Resolved, len(tools))}

	var errs []error
	for _, tool := range tools {
		s, err := Parse(tool.Parameters)
		if err != nil {
			errs = append(errs, fmt.Errorf("tool %q: %w", tool.Name, err))
			set.resolved[tool.Name] = nil
			continue
		}

		rs, err := s.Resolve(nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("tool %q: resolving schema: %w", tool.Name, err))
			set.resolved[tool.Name] = nil
			continue
		}
		set.resolved[tool.Name] = rs
	}

	return set, errors.Join(errs...)
}

// Validate checks a tool call's arguments. Tools that failed to compile
// always validate.
func (s *Set) Validate(call llm.ContentBlock) error {
	rs, ok := s.resolved[call.ToolName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, call.ToolName)
	}
	if rs == nil {
		return nil
	}

	if call.ToolInput == nil && call.ToolInputRaw != "" {
		return fmt.Errorf("tool %q: arguments are not a JSON object", call.ToolName)
	}

	args := call.ToolInput
	if args == nil {
		args = map[string]any{}
	}

	if err := rs.Validate(args); err != nil {
		return fmt.Errorf("tool %q: %w", call.ToolName, err)
	}
	return nil
}
