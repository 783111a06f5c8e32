package tools

import (
	"context"
	"fmt"
)

// Call is what a handler receives: the query as sent by the user and the arguments
// the model extracted. Arguments are empty for the invalid handler.
type Call struct {
	Query     string
	Arguments Arguments
}

// Handler answers one tool call. R is the request scoped state the caller threads
// through, such as credentials and the user identity.
type Handler[R any] func(ctx context.Context, req R, call Call) (Result, error)

// RegisteredTool binds a definition to its handler.
type RegisteredTool[R any] struct {
	Definition Tool
	Handler    Handler[R]
}

// Catalog is the set of tools offered for one dispatch. It holds any number of
// normal tools plus at most one fallback and one invalid tool.
type Catalog[R any] struct {
	tools    []RegisteredTool[R]
	byName   map[string]int
	fallback *RegisteredTool[R]
	invalid  *RegisteredTool[R]
}

// NewCatalog creates an empty catalog.
func NewCatalog[R any]() *Catalog[R] {
	return &Catalog[R]{byName: make(map[string]int)}
}

// Register adds a normal tool. Names must be unique.
func (c *Catalog[R]) Register(tool RegisteredTool[R]) error {
	if tool.Definition.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %s has no handler", tool.Definition.Name)
	}
	if _, exists := c.byName[tool.Definition.Name]; exists {
		return fmt.Errorf("tool %s is already registered", tool.Definition.Name)
	}
	if tool.Definition.InputSchema.Type == "" {
		tool.Definition.InputSchema = ObjectSchema(tool.Definition.InputSchema.Properties, tool.Definition.InputSchema.Required...)
	}
	c.byName[tool.Definition.Name] = len(c.tools)
	c.tools = append(c.tools, tool)
	return nil
}

// MustRegister is Register for catalogs built from static definitions.
func (c *Catalog[R]) MustRegister(tools ...RegisteredTool[R]) *Catalog[R] {
	for _, tool := range tools {
		if err := c.Register(tool); err != nil {
			panic(err)
		}
	}
	return c
}

// SetFallback sets the tool run when the model names a tool that is not registered.
// The fallback is also offered to the model.
func (c *Catalog[R]) SetFallback(tool RegisteredTool[R]) *Catalog[R] {
	c.fallback = &tool
	return c
}

// SetInvalid sets the tool run when the model selects nothing or its arguments are
// unusable. It must be able to answer from the raw query alone.
func (c *Catalog[R]) SetInvalid(tool RegisteredTool[R]) *Catalog[R] {
	c.invalid = &tool
	return c
}

// Lookup returns the normal or fallback tool with the given name.
func (c *Catalog[R]) Lookup(name string) (RegisteredTool[R], bool) {
	if index, ok := c.byName[name]; ok {
		return c.tools[index], true
	}
	if c.fallback != nil && c.fallback.Definition.Name == name {
		return *c.fallback, true
	}
	return RegisteredTool[R]{}, false
}

// Definitions lists the tools presented to the model, in registration order with
// the fallback last.
func (c *Catalog[R]) Definitions() []Tool {
	definitions := make([]Tool, 0, len(c.tools)+1)
	for _, tool := range c.tools {
		definitions = append(definitions, tool.Definition)
	}
	if c.fallback != nil {
		if _, duplicate := c.byName[c.fallback.Definition.Name]; !duplicate {
			definitions = append(definitions, c.fallback.Definition)
		}
	}
	return definitions
}

// Len returns the number of normal tools.
func (c *Catalog[R]) Len() int {
	return len(c.tools)
}
