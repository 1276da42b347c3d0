package agentspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kagent-go/kagent/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStandaloneSpecNoExtend(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prompt.md", "be helpful")
	specPath := writeFile(t, dir, "agent.yaml", `
version: "1"
agent:
  name: standalone
  system_prompt_path: prompt.md
  tools: ["shell", "read_file"]
`)

	resolved, err := Load(specPath)
	require.NoError(t, err)
	assert.Equal(t, "standalone", resolved.Name)
	assert.Equal(t, []string{"shell", "read_file"}, resolved.Tools)
	assert.True(t, filepath.IsAbs(resolved.SystemPromptPath))
}

func TestLoadExtendsDefaultInheritsSystemPromptPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prompt.md", "be helpful")
	specPath := writeFile(t, dir, "agent.yaml", `
agent:
  extend: default
  name: child
  tools: ["shell"]
`)

	resolved, err := Load(specPath)
	require.NoError(t, err)
	assert.Equal(t, "child", resolved.Name)
	assert.Equal(t, []string{"shell"}, resolved.Tools)
	assert.Equal(t, embeddedDefaultSentinel, resolved.SystemPromptPath)
}

func TestLoadMergesSystemPromptArgsKeyWiseChildWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prompt.md", "hi ${name}, mode=${mode}")
	writeFile(t, dir, "base.yaml", `
version: "1"
agent:
  name: base
  system_prompt_path: prompt.md
  tools: []
  system_prompt_args:
    mode: base-mode
    name: base-name
`)
	childPath := writeFile(t, dir, "child.yaml", `
agent:
  extend: base.yaml
  system_prompt_args:
    name: child-name
`)

	resolved, err := Load(childPath)
	require.NoError(t, err)
	assert.Equal(t, "base", resolved.Name)
	assert.Equal(t, "child-name", resolved.SystemPromptArgs["name"])
	assert.Equal(t, "base-mode", resolved.SystemPromptArgs["mode"])

	rendered, err := RenderSystemPrompt(resolved)
	require.NoError(t, err)
	assert.Equal(t, "hi child-name, mode=base-mode", rendered)
}

func TestLoadChildOverridesToolsEntirelyNotMerged(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prompt.md", "x")
	writeFile(t, dir, "base.yaml", `
version: "1"
agent:
  name: base
  system_prompt_path: prompt.md
  tools: ["a", "b"]
`)
	childPath := writeFile(t, dir, "child.yaml", `
agent:
  extend: base.yaml
  tools: ["c"]
`)

	resolved, err := Load(childPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, resolved.Tools)
}

func TestLoadMissingRequiredFieldErrors(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFile(t, dir, "agent.yaml", `
version: "1"
agent:
  name: incomplete
`)

	_, err := Load(specPath)
	require.Error(t, err)
	var specErr *errs.AgentSpecError
	require.ErrorAs(t, err, &specErr)
}

func TestLoadUnsupportedVersionErrors(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFile(t, dir, "agent.yaml", `
version: "99"
agent:
  name: x
  system_prompt_path: prompt.md
  tools: []
`)

	_, err := Load(specPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestLoadDetectsExtendCycle(t *testing.T) {
	dir := t.TempDir()
	aPath := writeFile(t, dir, "a.yaml", `
agent:
  extend: b.yaml
  name: a
`)
	writeFile(t, dir, "b.yaml", `
agent:
  extend: a.yaml
  name: b
`)

	_, err := Load(aPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic")
}

func TestRenderSystemPromptUnresolvedVariableErrors(t *testing.T) {
	dir := t.TempDir()
	promptPath := writeFile(t, dir, "prompt.md", "hello ${missing}")
	resolved := ResolvedAgentSpec{SystemPromptPath: promptPath, SystemPromptArgs: map[string]string{}}

	_, err := RenderSystemPrompt(resolved)
	require.Error(t, err)
	var tmplErr *errs.SystemPromptTemplateError
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, "${missing}", tmplErr.Var)
}

func TestSubagentPathsResolvedRelativeToSpecDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "subagents")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeFile(t, sub, "reviewer.yaml", `
version: "1"
agent:
  name: reviewer
  system_prompt_path: prompt.md
  tools: []
`)
	writeFile(t, dir, "prompt.md", "x")
	specPath := writeFile(t, dir, "agent.yaml", `
version: "1"
agent:
  name: parent
  system_prompt_path: prompt.md
  tools: []
  subagents:
    reviewer:
      path: subagents/reviewer.yaml
      description: reviews code
`)

	resolved, err := Load(specPath)
	require.NoError(t, err)
	require.Contains(t, resolved.Subagents, "reviewer")
	assert.True(t, filepath.IsAbs(resolved.Subagents["reviewer"].Path))
}
