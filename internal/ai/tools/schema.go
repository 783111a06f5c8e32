package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaValidator checks model arguments against a tool's declared schema. Compiled
// schemas are cached by tool name and schema content.
type SchemaValidator struct {
	cache sync.Map // key -> *jsonschema.Schema
}

// NewSchemaValidator creates an empty validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

func schemaCacheKey(toolName string, schema []byte) string {
	sum := sha256.Sum256(schema)
	return toolName + ":" + hex.EncodeToString(sum[:])
}

func (v *SchemaValidator) compile(tool Tool) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(tool.InputSchema.Parameters())
	if err != nil {
		return nil, err
	}
	key := schemaCacheKey(tool.Name, raw)
	if cached, ok := v.cache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	schema, err := jsonschema.CompileString(tool.Name+".json", string(raw))
	if err != nil {
		return nil, err
	}
	v.cache.Store(key, schema)
	return schema, nil
}

// Validate checks the declared arguments. Keys the schema does not declare are
// ignored.
func (v *SchemaValidator) Validate(tool Tool, args Arguments) error {
	schema, err := v.compile(tool)
	if err != nil {
		return fmt.Errorf("invalid input schema for %s: %w", tool.Name, err)
	}
	// The validator only understands decoded JSON values
	encoded, err := json.Marshal(args.Known())
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(encoded, &instance); err != nil {
		return err
	}
	if err := schema.Validate(instance); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			leaf := firstLeafValidationError(validationErr)
			location := leaf.InstanceLocation
			if location == "" {
				location = "/"
			}
			return fmt.Errorf("arguments for %s are invalid at %s: %s", tool.Name, location, leaf.Message)
		}
		return fmt.Errorf("arguments for %s are invalid: %w", tool.Name, err)
	}
	return nil
}

func firstLeafValidationError(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return err
	}
	for _, cause := range err.Causes {
		if leaf := firstLeafValidationError(cause); leaf != nil {
			return leaf
		}
	}
	return err
}
