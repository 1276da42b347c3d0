// Package agentspec implements the agent-spec inheritance chain
// described in SPEC_FULL.md §4.7, grounded authoritatively on
// agentspec.rs: version detection, the raw/resolved spec split, the
// Inheritable merge semantics, and relative-path canonicalization.
package agentspec

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kagent-go/kagent/internal/errs"
	"gopkg.in/yaml.v3"
)

//go:embed default/agent.yaml
var embeddedDefaultYAML []byte

//go:embed default/system.md
var embeddedDefaultSystemPrompt string

// embeddedDefaultSentinel stands in for the real filesystem path the
// original resolves default_agent_file() to (a path under the crate's
// own source tree at compile time); this module instead embeds the
// default spec directly in the binary, avoiding any dependency on the
// install layout.
const embeddedDefaultSentinel = "<embedded-default-agent-spec>"

// DefaultAgentSpecVersion is the only agent-spec version this loader
// understands.
const DefaultAgentSpecVersion = "1"

// SubagentSpec declares one statically-listed subagent's own spec file
// and a short description shown to the model.
type SubagentSpec struct {
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
}

// AgentSpec is the raw, as-parsed form of one agent-spec file. Each
// field but Extend and SystemPromptArgs is Inheritable: absent from the
// YAML means "inherit from whatever this spec extends."
type AgentSpec struct {
	Extend           *string                              `yaml:"extend"`
	Name             Inheritable[string]                  `yaml:"name"`
	SystemPromptPath Inheritable[string]                  `yaml:"system_prompt_path"`
	SystemPromptArgs map[string]string                    `yaml:"system_prompt_args"`
	Tools            Inheritable[*[]string]               `yaml:"tools"`
	ExcludeTools     Inheritable[*[]string]               `yaml:"exclude_tools"`
	Subagents        Inheritable[map[string]SubagentSpec] `yaml:"subagents"`
}

// ResolvedAgentSpec is the fixed point of the extend chain: every
// required field materialized.
type ResolvedAgentSpec struct {
	Name             string
	SystemPromptPath string
	SystemPromptArgs map[string]string
	Tools            []string
	ExcludeTools     []string
	Subagents        map[string]SubagentSpec
}

type chainEntry struct {
	spec AgentSpec
	path string
}

// Load resolves agentFile through its full extend chain and returns the
// fixed-point spec. An empty agentFile loads the embedded default spec
// directly, the same spec every other spec reaches via `extend: default`.
func Load(agentFile string) (ResolvedAgentSpec, error) {
	if agentFile == "" {
		agentFile = embeddedDefaultSentinel
	}
	spec, err := loadInner(agentFile)
	if err != nil {
		return ResolvedAgentSpec{}, err
	}

	if spec.Name.IsInherit() {
		return ResolvedAgentSpec{}, &errs.AgentSpecError{Path: agentFile, Err: fmt.Errorf("agent name is required")}
	}
	if spec.SystemPromptPath.IsInherit() {
		return ResolvedAgentSpec{}, &errs.AgentSpecError{Path: agentFile, Err: fmt.Errorf("system prompt path is required")}
	}
	if spec.Tools.IsInherit() {
		return ResolvedAgentSpec{}, &errs.AgentSpecError{Path: agentFile, Err: fmt.Errorf("tools are required")}
	}

	name, _ := spec.Name.Value()
	systemPromptPath, _ := spec.SystemPromptPath.Value()
	tools := derefOrEmpty(mustValue(spec.Tools))
	excludeTools := derefOrEmpty(mustValue(spec.ExcludeTools))
	subagents, ok := mustSubagents(spec.Subagents)
	if !ok {
		subagents = map[string]SubagentSpec{}
	}

	return ResolvedAgentSpec{
		Name:             name,
		SystemPromptPath: systemPromptPath,
		SystemPromptArgs: spec.SystemPromptArgs,
		Tools:            tools,
		ExcludeTools:     excludeTools,
		Subagents:        subagents,
	}, nil
}

func mustValue(i Inheritable[*[]string]) *[]string {
	v, _ := i.Value()
	return v
}

func mustSubagents(i Inheritable[map[string]SubagentSpec]) (map[string]SubagentSpec, bool) {
	v, set := i.Value()
	return v, set
}

func derefOrEmpty(p *[]string) []string {
	if p == nil {
		return nil
	}
	return *p
}

// RenderSystemPrompt loads the resolved spec's system prompt file and
// substitutes ${VAR} / $VAR occurrences from SystemPromptArgs. An
// unresolved variable is a SystemPromptTemplateError.
func RenderSystemPrompt(resolved ResolvedAgentSpec) (string, error) {
	var raw string
	if resolved.SystemPromptPath == embeddedDefaultSentinel {
		raw = embeddedDefaultSystemPrompt
	} else {
		b, err := os.ReadFile(resolved.SystemPromptPath)
		if err != nil {
			return "", &errs.AgentSpecError{Path: resolved.SystemPromptPath, Err: err}
		}
		raw = string(b)
	}
	return substituteVars(raw, resolved.SystemPromptArgs)
}

func loadInner(agentFile string) (AgentSpec, error) {
	var chain []chainEntry
	visited := make(map[string]bool)
	current := agentFile

	for {
		canonical := canonicalSentinel(current)
		if visited[canonical] {
			return AgentSpec{}, &errs.AgentSpecError{Path: current, Err: fmt.Errorf("cyclic extend chain detected")}
		}
		visited[canonical] = true

		spec, err := loadAgentSpecFile(current)
		if err != nil {
			return AgentSpec{}, err
		}
		chain = append(chain, chainEntry{spec: spec, path: current})
		if spec.Extend == nil {
			break
		}
		if *spec.Extend == "default" {
			current = embeddedDefaultSentinel
		} else if current == embeddedDefaultSentinel {
			return AgentSpec{}, &errs.AgentSpecError{Path: current, Err: fmt.Errorf("the embedded default spec cannot extend %q", *spec.Extend)}
		} else {
			current = filepath.Join(filepath.Dir(current), *spec.Extend)
		}
	}

	root := chain[len(chain)-1]
	chain = chain[:len(chain)-1]
	resolved := root.spec

	for i := len(chain) - 1; i >= 0; i-- {
		spec := chain[i].spec
		if !spec.Name.IsInherit() {
			resolved.Name = spec.Name
		}
		if !spec.SystemPromptPath.IsInherit() {
			resolved.SystemPromptPath = spec.SystemPromptPath
		}
		if len(spec.SystemPromptArgs) > 0 {
			if resolved.SystemPromptArgs == nil {
				resolved.SystemPromptArgs = make(map[string]string, len(spec.SystemPromptArgs))
			}
			for k, v := range spec.SystemPromptArgs {
				resolved.SystemPromptArgs[k] = v
			}
		}
		if !spec.Tools.IsInherit() {
			resolved.Tools = spec.Tools
		}
		if !spec.ExcludeTools.IsInherit() {
			resolved.ExcludeTools = spec.ExcludeTools
		}
		if !spec.Subagents.IsInherit() {
			resolved.Subagents = spec.Subagents
		}
	}

	return resolved, nil
}

func canonicalSentinel(path string) string {
	if path == embeddedDefaultSentinel {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func loadAgentSpecFile(agentFile string) (AgentSpec, error) {
	if agentFile == embeddedDefaultSentinel {
		return parseAgentSpecFile(embeddedDefaultYAML, agentFile, true)
	}

	info, err := os.Stat(agentFile)
	if err != nil {
		return AgentSpec{}, &errs.AgentSpecError{Path: agentFile, Err: fmt.Errorf("agent spec file not found: %w", err)}
	}
	if info.IsDir() {
		return AgentSpec{}, &errs.AgentSpecError{Path: agentFile, Err: fmt.Errorf("agent spec path is not a file")}
	}
	content, err := os.ReadFile(agentFile)
	if err != nil {
		return AgentSpec{}, &errs.AgentSpecError{Path: agentFile, Err: fmt.Errorf("invalid agent spec file: %w", err)}
	}
	return parseAgentSpecFile(content, agentFile, false)
}

func parseAgentSpecFile(content []byte, agentFile string, isEmbeddedDefault bool) (AgentSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return AgentSpec{}, &errs.AgentSpecError{Path: agentFile, Err: fmt.Errorf("invalid YAML in agent spec file: %w", err)}
	}
	if len(doc.Content) == 0 {
		return AgentSpec{}, &errs.AgentSpecError{Path: agentFile, Err: fmt.Errorf("empty agent spec file")}
	}
	root := doc.Content[0]

	version := DefaultAgentSpecVersion
	if versionNode := mappingValue(root, "version"); versionNode != nil {
		version = versionNode.Value
	}
	if version != DefaultAgentSpecVersion {
		return AgentSpec{}, &errs.AgentSpecError{Path: agentFile, Err: fmt.Errorf("unsupported agent spec version: %s", version)}
	}

	var spec AgentSpec
	if agentNode := mappingValue(root, "agent"); agentNode != nil {
		if err := agentNode.Decode(&spec); err != nil {
			return AgentSpec{}, &errs.AgentSpecError{Path: agentFile, Err: fmt.Errorf("invalid agent spec file: %w", err)}
		}
		// yaml.v3 does not call UnmarshalYAML for an explicit null, so a
		// key present with a null value is marked as set (nil) here.
		if n := mappingValue(agentNode, "tools"); n != nil && n.ShortTag() == "!!null" {
			spec.Tools = Set[*[]string](nil)
		}
		if n := mappingValue(agentNode, "exclude_tools"); n != nil && n.ShortTag() == "!!null" {
			spec.ExcludeTools = Set[*[]string](nil)
		}
		if n := mappingValue(agentNode, "subagents"); n != nil && n.ShortTag() == "!!null" {
			spec.Subagents = Set[map[string]SubagentSpec](nil)
		}
	}

	if isEmbeddedDefault {
		if v, set := spec.SystemPromptPath.Value(); set && v != "" {
			spec.SystemPromptPath = Set(embeddedDefaultSentinel)
		}
		return spec, nil
	}

	dir := filepath.Dir(agentFile)
	if v, set := spec.SystemPromptPath.Value(); set {
		spec.SystemPromptPath = Set(resolveRelative(dir, v))
	}
	if subagents, set := spec.Subagents.Value(); set && subagents != nil {
		resolved := make(map[string]SubagentSpec, len(subagents))
		for name, sub := range subagents {
			sub.Path = resolveRelative(dir, sub.Path)
			resolved[name] = sub
		}
		spec.Subagents = Set(resolved)
	}

	return spec, nil
}

// mappingValue returns the value node for key in a YAML mapping node, or
// nil if absent.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func resolveRelative(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	joined := filepath.Join(dir, path)
	if canon, err := filepath.EvalSymlinks(joined); err == nil {
		return canon
	}
	return joined
}

// substituteVars replaces ${VAR} and $VAR occurrences of args' keys in
// text; any remaining ${...}-shaped placeholder after substitution is a
// SystemPromptTemplateError.
func substituteVars(text string, args map[string]string) (string, error) {
	for k, v := range args {
		text = strings.ReplaceAll(text, "${"+k+"}", v)
		text = strings.ReplaceAll(text, "$"+k, v)
	}

	if idx := strings.Index(text, "${"); idx != -1 {
		end := strings.Index(text[idx:], "}")
		if end == -1 {
			return "", &errs.SystemPromptTemplateError{Var: text[idx:]}
		}
		return "", &errs.SystemPromptTemplateError{Var: text[idx : idx+end+1]}
	}
	return text, nil
}
