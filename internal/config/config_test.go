package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesBaseline(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "", cfg.DefaultModel)
	assert.False(t, cfg.DefaultThinking)
	assert.Empty(t, cfg.Models)
	assert.Empty(t, cfg.Providers)
	assert.Equal(t, LoopControl{MaxStepsPerTurn: 100, MaxRetriesPerStep: 3, MaxRalphIterations: 0, ReservedContextSize: 50000}, cfg.LoopControl)
	assert.Equal(t, int64(60000), cfg.MCP.Client.ToolCallTimeoutMS)
	require.NoError(t, cfg.Validate())
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadInvalidRalphIterationsRejected(t *testing.T) {
	path := writeConfigFile(t, "loop_control:\n  max_ralph_iterations: -2\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_ralph_iterations")
}

func TestLoadReservedContextSizeTooLowRejected(t *testing.T) {
	path := writeConfigFile(t, "loop_control:\n  reserved_context_size: 500\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved_context_size")
}

func TestLoadReservedContextSizeOverride(t *testing.T) {
	path := writeConfigFile(t, "loop_control:\n  reserved_context_size: 30000\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), cfg.LoopControl.ReservedContextSize)
}

func TestLoadRejectsUnknownTopLevelField(t *testing.T) {
	path := writeConfigFile(t, "defualt_model: typo\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_KAGENT_MODEL_NAME", "claude-test")
	path := writeConfigFile(t, "default_model: \"${TEST_KAGENT_MODEL_NAME}\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-test", cfg.DefaultModel)
}

func TestLoadAppliesPerModelEnvOverrides(t *testing.T) {
	t.Setenv("FAST_API_KEY", "sk-test-123")
	path := writeConfigFile(t, ""+
		"models:\n"+
		"  fast:\n"+
		"    provider: anthropic\n"+
		"    model: claude-haiku\n"+
		"    max_context_size: 100000\n"+
		"providers:\n"+
		"  anthropic:\n"+
		"    provider_type: anthropic\n"+
		"    base_url: https://api.anthropic.com\n"+
		"    api_key: \"\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.Providers["anthropic"].APIKey)
}

func TestValidateRejectsModelWithUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Models["fast"] = LLMModel{Provider: "ghost"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
