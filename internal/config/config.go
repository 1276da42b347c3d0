// Package config implements layered YAML/env configuration: typed
// Config, its defaults, structural validation, and a koanf-based loader
// with optional file-watch reload. Grounded on
// kadirpekel-hector/pkg/config/koanf_loader.go (loader shape, strict
// validation before unmarshal, Watch reload loop) and
// _examples/original_source/rust/kagent/tests/config.rs (authoritative
// default values and validation error conditions).
package config

import "fmt"

// LoopControl bounds the scheduler's step/retry/ralph-iteration limits.
// Defaults and validation rules are taken verbatim from tests/config.rs.
type LoopControl struct {
	MaxStepsPerTurn      int64 `yaml:"max_steps_per_turn" json:"max_steps_per_turn"`
	MaxRetriesPerStep    int64 `yaml:"max_retries_per_step" json:"max_retries_per_step"`
	MaxRalphIterations   int64 `yaml:"max_ralph_iterations" json:"max_ralph_iterations"`
	ReservedContextSize  int64 `yaml:"reserved_context_size" json:"reserved_context_size"`
}

// DefaultLoopControl matches get_default_config()'s loop_control block.
func DefaultLoopControl() LoopControl {
	return LoopControl{
		MaxStepsPerTurn:     100,
		MaxRetriesPerStep:   3,
		MaxRalphIterations:  0,
		ReservedContextSize: 50000,
	}
}

// minReservedContextSize is the floor below which a reserved-context
// budget can't reasonably leave room for a single generation turn.
const minReservedContextSize = 1000

// MCPClientConfig configures the MCP tool-call transport.
type MCPClientConfig struct {
	ToolCallTimeoutMS int64 `yaml:"tool_call_timeout_ms" json:"tool_call_timeout_ms"`
}

// MCPConfig is the top-level MCP settings block.
type MCPConfig struct {
	Client MCPClientConfig `yaml:"client" json:"client"`
}

// DefaultMCPConfig matches get_default_config()'s mcp block.
func DefaultMCPConfig() MCPConfig {
	return MCPConfig{Client: MCPClientConfig{ToolCallTimeoutMS: 60000}}
}

// LLMProvider is one named LLM backend: base URL, credentials, and any
// custom transport headers.
type LLMProvider struct {
	ProviderType  string            `yaml:"provider_type" json:"provider_type"`
	BaseURL       string            `yaml:"base_url" json:"base_url"`
	APIKey        string            `yaml:"api_key" json:"api_key"`
	Env           map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	CustomHeaders map[string]string `yaml:"custom_headers,omitempty" json:"custom_headers,omitempty"`
}

// LLMModel names a model on a provider plus the scheduler-relevant
// limits and capability flags for it.
type LLMModel struct {
	Provider       string   `yaml:"provider" json:"provider"`
	Model          string   `yaml:"model" json:"model"`
	MaxContextSize int64    `yaml:"max_context_size" json:"max_context_size"`
	Capabilities   []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Temperature    *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	TopP           *float64 `yaml:"top_p,omitempty" json:"top_p,omitempty"`
	MaxTokens      *int64   `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// Config is the fully resolved, validated configuration tree.
type Config struct {
	IsFromDefaultLocation bool                `yaml:"-" json:"-"`
	DefaultModel          string              `yaml:"default_model" json:"default_model"`
	DefaultThinking       bool                `yaml:"default_thinking" json:"default_thinking"`
	Models                map[string]LLMModel `yaml:"models" json:"models"`
	Providers             map[string]LLMProvider `yaml:"providers" json:"providers"`
	LoopControl           LoopControl         `yaml:"loop_control" json:"loop_control"`
	Services              map[string]any      `yaml:"services" json:"services"`
	MCP                   MCPConfig           `yaml:"mcp" json:"mcp"`
}

// Default returns get_default_config()'s equivalent: every field at its
// zero/default value, nothing loaded from disk.
func Default() *Config {
	return &Config{
		Models:      map[string]LLMModel{},
		Providers:   map[string]LLMProvider{},
		LoopControl: DefaultLoopControl(),
		Services:    map[string]any{},
		MCP:         DefaultMCPConfig(),
	}
}

// Validate enforces the structural invariants tests/config.rs exercises:
// a negative ralph-iteration budget is nonsensical (0 already means
// "no ralph restarts" in the scheduler's Run loop), and a reserved
// context budget too small to leave room for a turn is rejected rather
// than silently starving every generation call.
func (c *Config) Validate() error {
	if c.LoopControl.MaxRalphIterations < 0 {
		return fmt.Errorf("config: loop_control.max_ralph_iterations must be >= 0, got %d", c.LoopControl.MaxRalphIterations)
	}
	if c.LoopControl.ReservedContextSize < minReservedContextSize {
		return fmt.Errorf("config: loop_control.reserved_context_size must be >= %d, got %d", minReservedContextSize, c.LoopControl.ReservedContextSize)
	}
	for name, model := range c.Models {
		if _, ok := c.Providers[model.Provider]; model.Provider != "" && !ok {
			return fmt.Errorf("config: models.%s references unknown provider %q", name, model.Provider)
		}
	}
	return nil
}
