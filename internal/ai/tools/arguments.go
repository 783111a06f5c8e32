package tools

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Arguments are the values the model extracted for a tool call. They are untrusted:
// keys the tool does not declare are kept aside in Unrecognized and never cause a
// rejection.
type Arguments struct {
	values       map[string]any
	Unrecognized []string
}

// ParseArguments decodes the raw JSON argument object produced by the model and
// aligns it with the schema. A string given for a list property becomes a one item
// list; a one item list given for a string property becomes that string.
func ParseArguments(raw string, schema InputSchema) (Arguments, error) {
	values := map[string]any{}
	if trimmed := strings.TrimSpace(raw); trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal([]byte(trimmed), &values); err != nil {
			return Arguments{}, fmt.Errorf("decode arguments: %w", err)
		}
	}

	var unrecognized []string
	for key, value := range values {
		property, ok := schema.Properties[key]
		if !ok {
			unrecognized = append(unrecognized, key)
			continue
		}
		values[key] = coerce(property, value)
	}
	sort.Strings(unrecognized)

	return Arguments{values: values, Unrecognized: unrecognized}, nil
}

// NewArguments builds arguments from known values. Used when a caller fills
// arguments itself rather than through the model.
func NewArguments(values map[string]any) Arguments {
	if values == nil {
		values = map[string]any{}
	}
	return Arguments{values: values}
}

func coerce(property PropertySchema, value any) any {
	switch property.Type {
	case "array":
		if s, ok := value.(string); ok {
			if strings.TrimSpace(s) == "" {
				return []any{}
			}
			return []any{s}
		}
	case "string":
		if list, ok := value.([]any); ok && len(list) == 1 {
			if s, ok := list[0].(string); ok {
				return s
			}
		}
	}
	return value
}

// Known returns the declared values only, as validated against the schema.
func (a Arguments) Known() map[string]any {
	known := make(map[string]any, len(a.values))
	for key, value := range a.values {
		if !slices.Contains(a.Unrecognized, key) {
			known[key] = value
		}
	}
	return known
}

// String returns a string argument, or "" when absent or of another type.
func (a Arguments) String(key string) string {
	s, _ := a.values[key].(string)
	return strings.TrimSpace(s)
}

// Strings returns a list argument with blank entries removed.
func (a Arguments) Strings(key string) []string {
	list, ok := a.values[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// Decode copies the declared arguments into a typed struct.
func (a Arguments) Decode(target any) error {
	data, err := json.Marshal(a.Known())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// Empty reports whether no declared argument was supplied.
func (a Arguments) Empty() bool {
	return len(a.Known()) == 0
}
