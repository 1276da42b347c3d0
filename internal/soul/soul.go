// Package soul binds context, toolset, runtime, and scheduler into the
// single entry point a CLI or RPC server drives: Run(ctx, userInput).
// Grounded authoritatively on soul/mod.rs's run_soul orchestration (a
// fresh Wire per run, soul_future raced against cancellation, wire
// joined and shut down on every exit path) and app.rs's KimiCLI::create
// startup flow (config -> provider -> runtime -> agent spec -> context
// restore -> soul construction), adapted from soul/mod.rs's task-local
// CURRENT_WIRE design to this package's explicit onEvent callback since
// Go's context.Context already threads per-call state through the
// scheduler without a global task-local.
package soul

import (
	"context"
	"fmt"

	"github.com/kagent-go/kagent/internal/agent"
	kctx "github.com/kagent-go/kagent/internal/context"
	"github.com/kagent-go/kagent/internal/errs"
	"github.com/kagent-go/kagent/internal/llm"
	"github.com/kagent-go/kagent/internal/runtime"
	"github.com/kagent-go/kagent/internal/scheduler"
	"github.com/kagent-go/kagent/internal/toolset"
	"github.com/kagent-go/kagent/internal/wire"
)

// StatusSnapshot mirrors soul/mod.rs's StatusSnapshot: a point-in-time
// readout for the `info` RPC method and any status line a CLI prints.
type StatusSnapshot struct {
	ContextUsage float64
	YOLOEnabled  bool
}

// Soul is one running agent: a name, a model, a persistent context and
// toolset, and the runtime (approval, D-Mail, labor market) it shares
// with its tools and subagents.
type Soul struct {
	name         string
	modelName    string
	systemPrompt string
	client       llm.Client
	ctx          *kctx.Context
	toolset      *toolset.Toolset
	runtime      *runtime.Runtime
	journal      *wire.File
	limits       scheduler.Limits
}

// Config bundles Soul's construction parameters.
type Config struct {
	Name         string
	ModelName    string
	SystemPrompt string
	Client       llm.Client
	Context      *kctx.Context
	Toolset      *toolset.Toolset
	Runtime      *runtime.Runtime
	Journal      *wire.File // may be nil: no durable event log
	Limits       scheduler.Limits
}

// New builds a Soul. The caller is responsible for having already
// called cfg.Context.Restore() if resuming a prior session.
func New(cfg Config) *Soul {
	return &Soul{
		name:         cfg.Name,
		modelName:    cfg.ModelName,
		systemPrompt: cfg.SystemPrompt,
		client:       cfg.Client,
		ctx:          cfg.Context,
		toolset:      cfg.Toolset,
		runtime:      cfg.Runtime,
		journal:      cfg.Journal,
		limits:       cfg.Limits,
	}
}

func (s *Soul) Name() string      { return s.name }
func (s *Soul) ModelName() string { return s.modelName }

// Status reports a point-in-time snapshot without running a turn.
func (s *Soul) Status() StatusSnapshot {
	return StatusSnapshot{
		ContextUsage: scheduler.EstimateContextUsage(s.ctx.Messages(), s.modelName, s.limits),
		YOLOEnabled:  s.runtime.Approval().YOLO(),
	}
}

// Labor exposes the labor market so the CreateSubagent and Task tools
// can be registered against it at startup.
func (s *Soul) Labor() *agent.LaborMarket { return s.runtime.Labor() }

// Toolset exposes the soul's own toolset for registering builtin tools
// at startup, before the first Run.
func (s *Soul) Toolset() *toolset.Toolset { return s.toolset }

// Run drives one user turn (and any chained D-Mail rewinds or
// ralph-iteration restarts it triggers) to completion. onEvent, if
// non-nil, is called synchronously for every wire event emitted during
// the run, in order; callers that want a fire-and-forget run can pass
// nil. Grounded on run_soul: a fresh Wire is created per call (sharing
// the soul's durable journal file, if any), joined and shut down on
// every exit path regardless of error.
//
// Run must not be called concurrently on the same Soul: the
// specification's concurrency model is one active turn per soul.
func (s *Soul) Run(ctx context.Context, userInput string, onEvent func(wire.Message)) error {
	if s.client == nil {
		return fmt.Errorf("soul %q: %w", s.name, errs.ErrLLMNotSet)
	}

	w := wire.New(s.journal)
	ui := w.UISide()

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for {
			msg, err := ui.Receive(ctx)
			if err != nil {
				return
			}
			if onEvent != nil {
				onEvent(msg)
			}
		}
	}()

	sched := scheduler.New(
		s.client,
		s.ctx,
		s.toolset,
		s.runtime.Approval(),
		s.runtime.DMail(),
		w.SoulSide(),
		s.systemPrompt,
		s.limits,
		scheduler.WithModel(s.modelName),
	)

	err := sched.Run(ctx, userInput)
	<-drainDone
	ui.Close()
	return err
}
