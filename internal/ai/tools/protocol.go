package tools

import (
	"encoding/json"
)

// Tool describes a function the language model may select. The description is the
// routing contract: changing it changes which queries reach the tool.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema describes the expected input for a tool
type InputSchema struct {
	Type       string                    `json:"type"` // Always "object"
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema describes a property in the input schema
type PropertySchema struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Items       *PropertySchema `json:"items,omitempty"`
	Default     interface{}     `json:"default,omitempty"`
}

// ObjectSchema builds an object schema from its properties.
func ObjectSchema(properties map[string]PropertySchema, required ...string) InputSchema {
	if properties == nil {
		properties = map[string]PropertySchema{}
	}
	return InputSchema{Type: "object", Properties: properties, Required: required}
}

// StringProperty is a single string argument.
func StringProperty(description string) PropertySchema {
	return PropertySchema{Type: "string", Description: description}
}

// StringListProperty is a list of strings argument.
func StringListProperty(description string) PropertySchema {
	return PropertySchema{Type: "array", Description: description, Items: &PropertySchema{Type: "string"}}
}

// Parameters renders the schema as the generic map used by function calling APIs.
func (s InputSchema) Parameters() map[string]any {
	properties := make(map[string]any, len(s.Properties))
	for name, property := range s.Properties {
		properties[name] = property.toMap()
	}
	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(s.Required) > 0 {
		params["required"] = s.Required
	}
	return params
}

func (p PropertySchema) toMap() map[string]any {
	out := map[string]any{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Items != nil {
		out["items"] = p.Items.toMap()
	}
	if p.Default != nil {
		out["default"] = p.Default
	}
	return out
}

// Role tags how a tool is reached by the dispatcher.
type Role string

const (
	RoleNormal   Role = "normal"
	RoleFallback Role = "fallback"
	RoleInvalid  Role = "invalid"
)

// Result is the answer produced by a tool. Data is set for structured answers, which
// callers deliver as JSON rather than prose.
type Result struct {
	Text string
	Data any
}

// Structured reports whether the result carries machine readable data.
func (r Result) Structured() bool {
	return r.Data != nil
}

// NewTextResult creates a prose result
func NewTextResult(text string) Result {
	return Result{Text: text}
}

// NewJSONResult creates a structured result. Text holds the JSON encoding of data.
func NewJSONResult(data any) (Result, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: string(b), Data: data}, nil
}
