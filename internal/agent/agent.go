// Package agent defines the Agent type and the labor market (the
// registry of subagents, static and dynamic) described in SPEC_FULL.md
// §4.8. The generic registry shape is grounded on
// kadirpekel-hector/pkg/registry/registry.go; CreateSubagent's
// duplicate-name and sorted-listing behavior is grounded authoritatively
// on tools/multiagent/create.rs.
package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/denwarenji"
	"github.com/kagent-go/kagent/internal/toolset"
)

// RuntimeHandle is the shared-by-reference bundle a subagent needs:
// approval coordinator, D-Mail hook, and (via the labor market) the
// catalog of other subagents it can delegate to. Defined as an
// interface here, rather than depending on a concrete Runtime type, so
// this package never imports the package that embeds *LaborMarket —
// breaking what would otherwise be a cyclic ownership (market holds
// agents, agents hold a runtime, a runtime holds the market).
type RuntimeHandle interface {
	Approval() *approval.Approval
	DMail() *denwarenji.DenwaRenji
	Labor() *LaborMarket
}

// Agent binds a name, rendered system prompt, toolset, and runtime
// handle. It is the unit the labor market registers and the Task tool
// dispatches to.
type Agent struct {
	Name         string
	SystemPrompt string
	Toolset      *toolset.Toolset
	Runtime      RuntimeHandle
}

type subagentKind int

const (
	kindStatic subagentKind = iota
	kindDynamic
)

type entry struct {
	agent *Agent
	kind  subagentKind
}

// LaborMarket is the per-runtime registry of subagents, static
// (declared in an agent spec) and dynamic (created via CreateSubagent).
type LaborMarket struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewLaborMarket returns an empty LaborMarket.
func NewLaborMarket() *LaborMarket {
	return &LaborMarket{entries: make(map[string]entry)}
}

// AddStaticSubagent registers a spec-declared subagent. It errors if the
// name is already taken, by either a static or dynamic entry.
func (m *LaborMarket) AddStaticSubagent(a *Agent) error {
	return m.add(a, kindStatic)
}

// AddDynamicSubagent registers a runtime-created subagent (via
// CreateSubagent). It errors if the name is already taken.
func (m *LaborMarket) AddDynamicSubagent(a *Agent) error {
	return m.add(a, kindDynamic)
}

func (m *LaborMarket) add(a *Agent, kind subagentKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[a.Name]; exists {
		return fmt.Errorf("subagent with name '%s' already exists", a.Name)
	}
	m.entries[a.Name] = entry{agent: a, kind: kind}
	return nil
}

// Get looks up a subagent by name.
func (m *LaborMarket) Get(name string) (*Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, false
	}
	return e.agent, true
}

// AllSubagents returns the union of static and dynamic subagents keyed
// by name.
func (m *LaborMarket) AllSubagents() map[string]*Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*Agent, len(m.entries))
	for name, e := range m.entries {
		out[name] = e.agent
	}
	return out
}

// SortedNames returns all subagent names in ascending order, the exact
// listing CreateSubagent reports back to the model on success.
func (m *LaborMarket) SortedNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
