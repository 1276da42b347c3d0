// Package runtime implements the concrete RuntimeHandle shared by the
// soul and every tool: approval coordinator, D-Mail hook, and the labor
// market of subagents. Grounded on SPEC_FULL.md §4 "Ownership": "the
// soul exclusively owns context and toolset; runtime values (approval,
// labor market, D-Mail hook, configuration) are shared by reference
// among the soul and each tool." CopyForDynamicSubagent is grounded
// authoritatively on Runtime::copy_for_dynamic_subagent in
// soul/agent.rs's (absent from the retrieved pack) described contract
// in agentspec.rs and tools/multiagent/create.rs's call site.
package runtime

import (
	"github.com/kagent-go/kagent/internal/agent"
	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/denwarenji"
)

// Runtime is the concrete agent.RuntimeHandle implementation.
type Runtime struct {
	ApprovalCoord *approval.Approval
	DMailHook     *denwarenji.DenwaRenji
	LaborMarket   *agent.LaborMarket
}

// New builds a fresh top-level Runtime for the soul.
func New() *Runtime {
	return &Runtime{
		ApprovalCoord: approval.New(),
		DMailHook:     denwarenji.New(),
		LaborMarket:   agent.NewLaborMarket(),
	}
}

func (r *Runtime) Approval() *approval.Approval  { return r.ApprovalCoord }
func (r *Runtime) DMail() *denwarenji.DenwaRenji { return r.DMailHook }
func (r *Runtime) Labor() *agent.LaborMarket     { return r.LaborMarket }

// CopyForDynamicSubagent builds the runtime handle a dynamically created
// subagent receives: the same D-Mail hook and labor market (subagents
// delegate into the same market they were created from), but its own
// approval coordinator sharing the parent's yolo/allowlist state with an
// independent request queue, per approval.Approval.Share.
func (r *Runtime) CopyForDynamicSubagent() agent.RuntimeHandle {
	return &Runtime{
		ApprovalCoord: r.ApprovalCoord.Share(),
		DMailHook:     r.DMailHook,
		LaborMarket:   r.LaborMarket,
	}
}
