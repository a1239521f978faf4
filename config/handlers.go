package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/autopm/core"
)

// Handler kinds. A tools handler answers like a completion handler but
// escalates to a calculator backed tool loop when the model declines.
const (
	KindCompletion = "completion"
	KindDecompose  = "decompose"
	KindTools      = "tools"
)

// Model tiers a handler can run on.
const (
	ModelPrimary = "primary"
	ModelFast    = "fast"
)

// HandlerSpec is one row of the handler table.
type HandlerSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Kind        string `yaml:"kind"`
	Model       string `yaml:"model"`
}

// HandlerTable is the registration table loaded from YAML:
//
//	handlers:
//	  - name: GPT4
//	    description: Uses GPT-4 to accomplish an issue.
//	    kind: completion
//	    model: primary
//	default: GPT4
type HandlerTable struct {
	Handlers []HandlerSpec `yaml:"handlers"`
	Default  string        `yaml:"default"`
}

// DefaultHandlerTable returns the built-in table for provider.
func DefaultHandlerTable(provider string) *HandlerTable {
	decompose := HandlerSpec{
		Name:        "issue_creator",
		Description: "Creates new sub-issues for the provided issue. Use for vague or large tasks.",
		Kind:        KindDecompose,
		Model:       ModelPrimary,
	}

	if provider == ProviderAnthropic {
		return &HandlerTable{
			Handlers: []HandlerSpec{
				{Name: "Claude", Description: "Uses Claude to accomplish an issue. Does not use any tools.", Kind: KindCompletion, Model: ModelPrimary},
				{Name: "ClaudeTools", Description: "Uses Claude and falls back to a calculator tool when it cannot answer directly. Use for math.", Kind: KindTools, Model: ModelPrimary},
				decompose,
			},
			Default: "Claude",
		}
	}

	return &HandlerTable{
		Handlers: []HandlerSpec{
			{Name: "GPT4", Description: "Uses GPT-4 to accomplish an issue. Powerful but slower. Does not use any tools.", Kind: KindCompletion, Model: ModelPrimary},
			{Name: "GPT35", Description: "Uses GPT-3.5 to accomplish an issue. Fast but less powerful. Does not use any tools.", Kind: KindCompletion, Model: ModelFast},
			{Name: "GPT35Tools", Description: "Uses GPT-3.5 and falls back to a calculator tool when it cannot answer directly. Use for math.", Kind: KindTools, Model: ModelFast},
			decompose,
		},
		Default: "GPT4",
	}
}

// LoadHandlerTable reads and validates a YAML handler table.
func LoadHandlerTable(path string) (*HandlerTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading handler table: %w", err)
	}
	return ParseHandlerTable(data)
}

// ParseHandlerTable decodes and validates a YAML handler table.
func ParseHandlerTable(data []byte) (*HandlerTable, error) {
	var t HandlerTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, core.NewConfigurationError("invalid handler table: %v", err)
	}
	for i := range t.Handlers {
		if t.Handlers[i].Model == "" {
			t.Handlers[i].Model = ModelPrimary
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks names, kinds, model tiers and the default handler.
func (t *HandlerTable) Validate() error {
	if len(t.Handlers) == 0 {
		return core.NewConfigurationError("handler table is empty")
	}

	seen := make(map[string]bool, len(t.Handlers))
	for _, h := range t.Handlers {
		if h.Name == "" {
			return core.NewConfigurationError("handler without name")
		}
		// Override tokens are normalized by stripping these characters, so a
		// name containing them could never be selected by label.
		if strings.ContainsAny(h.Name, "-. \t\r\n") {
			return core.NewConfigurationError("handler name %q must not contain hyphens, periods or whitespace", h.Name)
		}
		if seen[h.Name] {
			return core.NewConfigurationError("duplicate handler name %q", h.Name)
		}
		seen[h.Name] = true

		switch h.Kind {
		case KindCompletion, KindDecompose, KindTools:
		default:
			return core.NewConfigurationError("handler %q has unknown kind %q", h.Name, h.Kind)
		}
		switch h.Model {
		case ModelPrimary, ModelFast:
		default:
			return core.NewConfigurationError("handler %q has unknown model tier %q", h.Name, h.Model)
		}
	}

	if t.Default == "" {
		return core.NewConfigurationError("handler table has no default handler")
	}
	if !seen[t.Default] {
		return core.NewConfigurationError("default handler %q is not in the table", t.Default)
	}
	return nil
}

// DecomposeHandler returns the first decomposition handler's name, or "".
func (t *HandlerTable) DecomposeHandler() string {
	for _, h := range t.Handlers {
		if h.Kind == KindDecompose {
			return h.Name
		}
	}
	return ""
}
