// Package prompts holds the message templates sent to the language model.
package prompts

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/rcourtman/octopilot/internal/ai/llm"
)

//go:embed prompts.yaml
var embedded []byte

// Prompt names
const (
	Test         = "test"
	General      = "general"
	Releases     = "releases"
	Logs         = "logs"
	Variables    = "variables"
	StepFeatures = "step_features"
	HCL          = "hcl"
	Docs         = "docs"
)

// Vars are the values available to a template.
type Vars struct {
	Input   string
	Context string
	JSON    string
	HCL     string
}

type messageTemplate struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`

	tmpl *template.Template
}

// Catalog is a parsed set of prompts.
type Catalog struct {
	prompts map[string][]messageTemplate
}

// Load parses the embedded prompt catalog.
func Load() (*Catalog, error) {
	return Parse(embedded)
}

// MustLoad is Load for package initialization; it panics on a broken catalog.
func MustLoad() *Catalog {
	catalog, err := Load()
	if err != nil {
		panic(err)
	}
	return catalog
}

// Parse reads a prompt catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string][]messageTemplate
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}

	for name, messages := range raw {
		if len(messages) == 0 {
			return nil, fmt.Errorf("prompt %s has no messages", name)
		}
		for i := range messages {
			switch messages[i].Role {
			case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
			default:
				return nil, fmt.Errorf("prompt %s message %d has unknown role %q", name, i, messages[i].Role)
			}
			tmpl, err := template.New(fmt.Sprintf("%s/%d", name, i)).Option("missingkey=error").Parse(messages[i].Content)
			if err != nil {
				return nil, fmt.Errorf("prompt %s message %d: %w", name, i, err)
			}
			messages[i].tmpl = tmpl
		}
	}
	return &Catalog{prompts: raw}, nil
}

// Names lists the prompts in the catalog.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.prompts))
	for name := range c.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render builds the messages for a prompt. Extra messages are placed before the first
// user message so they read as background to the question.
func (c *Catalog) Render(name string, vars Vars, extra ...llm.Message) ([]llm.Message, error) {
	templates, ok := c.prompts[name]
	if !ok {
		return nil, fmt.Errorf("prompt %s not found", name)
	}

	messages := make([]llm.Message, 0, len(templates)+len(extra))
	inserted := len(extra) == 0
	for _, mt := range templates {
		if !inserted && mt.Role == llm.RoleUser {
			messages = append(messages, extra...)
			inserted = true
		}
		var b strings.Builder
		if err := mt.tmpl.Execute(&b, vars); err != nil {
			return nil, fmt.Errorf("failed to render prompt %s: %w", name, err)
		}
		messages = append(messages, llm.Message{Role: mt.Role, Content: b.String()})
	}
	if !inserted {
		messages = append(messages, extra...)
	}
	return messages, nil
}
