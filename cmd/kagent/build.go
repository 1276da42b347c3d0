package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kagent-go/kagent/internal/agent"
	"github.com/kagent-go/kagent/internal/agentspec"
	"github.com/kagent-go/kagent/internal/approval"
	kctx "github.com/kagent-go/kagent/internal/context"
	"github.com/kagent-go/kagent/internal/config"
	"github.com/kagent-go/kagent/internal/llm"
	"github.com/kagent-go/kagent/internal/logging"
	"github.com/kagent-go/kagent/internal/mcp"
	"github.com/kagent-go/kagent/internal/runtime"
	"github.com/kagent-go/kagent/internal/scheduler"
	"github.com/kagent-go/kagent/internal/session"
	"github.com/kagent-go/kagent/internal/soul"
	"github.com/kagent-go/kagent/internal/tools/dmail"
	"github.com/kagent-go/kagent/internal/tools/file"
	"github.com/kagent-go/kagent/internal/tools/multiagent"
	"github.com/kagent-go/kagent/internal/tools/shell"
	"github.com/kagent-go/kagent/internal/tools/task"
	"github.com/kagent-go/kagent/internal/tools/think"
	"github.com/kagent-go/kagent/internal/tools/todo"
	"github.com/kagent-go/kagent/internal/tools/web"
	"github.com/kagent-go/kagent/internal/toolset"
	"github.com/kagent-go/kagent/internal/wire"
)

// environment bundles every piece build assembles from the CLI's flags
// and config file, before the caller decides to run a chat loop, serve
// JSON-RPC, or print status.
type environment struct {
	soul       *soul.Soul
	approval   *approval.Approval
	ctxStore   *kctx.Context
	session    *session.Session
	mcpClients []*mcp.Client

	closeLog func()
}

// Close releases every resource build acquired: the log file (if any)
// and every connected MCP server process.
func (e *environment) Close() {
	for _, c := range e.mcpClients {
		_ = c.Close()
	}
	if e.closeLog != nil {
		e.closeLog()
	}
}

// build wires config, agent spec, session, runtime, toolset, and soul
// together, in this order: config -> agent spec -> LLM client ->
// session -> context restore -> wire journal -> runtime -> toolset ->
// soul construction.
func build(cli *CLI) (*environment, error) {
	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil {
		return nil, err
	}

	var logOut *os.File = os.Stderr
	var closeLog func()
	if cli.LogFile != "" {
		f, cleanup, err := logging.OpenLogFile(cli.LogFile)
		if err != nil {
			return nil, err
		}
		logOut, closeLog = f, cleanup
	}
	slog.SetDefault(logging.New(level, logOut))

	cfg, err := config.NewLoader(cli.ConfigFile).Load()
	if err != nil {
		if closeLog != nil {
			closeLog()
		}
		return nil, fmt.Errorf("kagent: %w", err)
	}
	applyLoopControlOverrides(cfg, cli)

	env, err := buildFromConfig(cli, cfg)
	if err != nil {
		if closeLog != nil {
			closeLog()
		}
		return nil, err
	}
	env.closeLog = closeLog
	return env, nil
}

func applyLoopControlOverrides(cfg *config.Config, cli *CLI) {
	if cli.MaxStepsPerTurn > 0 {
		cfg.LoopControl.MaxStepsPerTurn = int64(cli.MaxStepsPerTurn)
	}
	if cli.MaxRetriesPerStep > 0 {
		cfg.LoopControl.MaxRetriesPerStep = int64(cli.MaxRetriesPerStep)
	}
	if cli.MaxRalphIterations > 0 {
		cfg.LoopControl.MaxRalphIterations = int64(cli.MaxRalphIterations)
	}
}

func buildFromConfig(cli *CLI, cfg *config.Config) (*environment, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("kagent: getwd: %w", err)
	}

	resolved, err := agentspec.Load(cli.AgentFile)
	if err != nil {
		return nil, err
	}
	systemPrompt, err := agentspec.RenderSystemPrompt(resolved)
	if err != nil {
		return nil, err
	}

	client, modelName, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}

	var sess *session.Session
	if cli.SessionID != "" {
		if s, ok := session.Find(workDir, cli.SessionID); ok {
			sess = s
		}
	}
	if sess == nil {
		if s, ok := session.Continue(workDir); ok && cli.SessionID == "" {
			sess = s
		}
	}
	if sess == nil {
		var id *string
		if cli.SessionID != "" {
			id = &cli.SessionID
		}
		s, err := session.Create(workDir, id)
		if err != nil {
			return nil, err
		}
		sess = s
	}

	ctxStore := kctx.Open(sess.ContextFile())
	if err := ctxStore.Restore(); err != nil {
		return nil, err
	}

	journal, err := wire.Open(sess.WireFile())
	if err != nil {
		return nil, err
	}

	rt := runtime.New()
	rt.Approval().SetYOLO(cli.YOLO)

	limits := scheduler.Limits{
		MaxStepsPerTurn:     int(cfg.LoopControl.MaxStepsPerTurn),
		MaxRetriesPerStep:   int(cfg.LoopControl.MaxRetriesPerStep),
		MaxRalphIterations:  int(cfg.LoopControl.MaxRalphIterations),
		MaxContextSize:      128_000,
		ReservedContextSize: cfg.LoopControl.ReservedContextSize,
	}
	if m, ok := cfg.Models[cfg.DefaultModel]; ok && m.MaxContextSize > 0 {
		limits.MaxContextSize = m.MaxContextSize
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	ts := toolset.New()
	mcpClients, err := registerBuiltinTools(ts, rt, workDir, sess.Dir(), client, limits, cfg, cli)
	if err != nil {
		return nil, err
	}

	applyToolFilters(ts, resolved)

	if err := registerStaticSubagents(rt.Labor(), ts, rt, resolved.Subagents); err != nil {
		return nil, err
	}

	s := soul.New(soul.Config{
		Name:         resolved.Name,
		ModelName:    modelName,
		SystemPrompt: systemPrompt,
		Client:       client,
		Context:      ctxStore,
		Toolset:      ts,
		Runtime:      rt,
		Journal:      journal,
		Limits:       limits,
	})

	return &environment{soul: s, approval: rt.Approval(), ctxStore: ctxStore, session: sess, mcpClients: mcpClients}, nil
}

// buildClient resolves the config's default model/provider pair into a
// concrete llm.Client. A missing default_model is valid (info/serve can
// still start; run/serve's first generation call reports llm not set).
func buildClient(cfg *config.Config) (llm.Client, string, error) {
	if cfg.DefaultModel == "" {
		return nil, "", nil
	}
	model, ok := cfg.Models[cfg.DefaultModel]
	if !ok {
		return nil, "", fmt.Errorf("kagent: default_model %q not found in models", cfg.DefaultModel)
	}
	provider, ok := cfg.Providers[model.Provider]
	if !ok {
		return nil, "", fmt.Errorf("kagent: model %q references unknown provider %q", cfg.DefaultModel, model.Provider)
	}

	return llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:       provider.BaseURL,
		APIKey:        provider.APIKey,
		Model:         model.Model,
		Temperature:   model.Temperature,
		TopP:          model.TopP,
		MaxTokens:     model.MaxTokens,
		CustomHeaders: provider.CustomHeaders,
	}), model.Model, nil
}

// registerBuiltinTools adds every builtin tool plus any configured MCP
// bridge tools to ts, returning the connected MCP clients so the caller
// can close them on shutdown.
func registerBuiltinTools(ts *toolset.Toolset, rt *runtime.Runtime, workDir, sessionDir string, client llm.Client, limits scheduler.Limits, cfg *config.Config, cli *CLI) ([]*mcp.Client, error) {
	appr := rt.Approval()

	builtins := []toolset.Tool{
		shell.New(appr),
		file.NewReadFile(workDir),
		file.NewWriteFile(workDir, appr),
		file.NewStrReplaceFile(workDir, appr),
		file.NewGlob(workDir),
		think.New(),
		todo.New(),
		dmail.New(rt.DMail()),
		multiagent.New(ts, rt),
		task.New(rt.Labor(), client, filepath.Join(sessionDir, "subagents"), limits),
	}
	for _, t := range builtins {
		if err := ts.Add(t); err != nil {
			return nil, err
		}
	}

	if webCfg, ok := webConfigFromServices(cfg.Services); ok {
		if err := ts.Add(web.New(webCfg)); err != nil {
			return nil, err
		}
	}

	servers, err := loadMCPServers(cli.MCPConfig)
	if err != nil {
		return nil, fmt.Errorf("kagent: load mcp config: %w", err)
	}

	var clients []*mcp.Client
	for _, sc := range servers {
		c, err := mcp.Connect(context.Background(), sc)
		if err != nil {
			slog.Warn("kagent: mcp server failed to connect, skipping", "server", sc.Name, "error", err)
			continue
		}
		clients = append(clients, c)

		mcpTools, err := c.Tools(context.Background())
		if err != nil {
			slog.Warn("kagent: mcp server tool listing failed", "server", sc.Name, "error", err)
			continue
		}
		for _, t := range mcpTools {
			if err := ts.Add(t); err != nil {
				slog.Warn("kagent: mcp tool registration failed", "tool", t.Name(), "error", err)
			}
		}
	}

	return clients, nil
}

// webConfigFromServices extracts internal/tools/web.Config from the
// config file's free-form services.web block, if present.
func webConfigFromServices(services map[string]any) (web.Config, bool) {
	raw, ok := services["web"]
	if !ok {
		return web.Config{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return web.Config{}, false
	}

	cfg := web.Config{}
	if v, ok := m["base_url"].(string); ok {
		cfg.BaseURL = v
	}
	if v, ok := m["api_key"].(string); ok {
		cfg.APIKey = v
	}
	if headers, ok := m["custom_headers"].(map[string]any); ok {
		cfg.CustomHeaders = make(map[string]string, len(headers))
		for k, v := range headers {
			if s, ok := v.(string); ok {
				cfg.CustomHeaders[k] = s
			}
		}
	}
	return cfg, cfg.BaseURL != ""
}

// applyToolFilters narrows ts to resolved's allow-list, if any, then
// removes its exclude-list. An empty/nil Tools list means no
// allow-list restriction: the embedded default agent spec resolves
// tools to nil and must still see every builtin tool.
func applyToolFilters(ts *toolset.Toolset, resolved agentspec.ResolvedAgentSpec) {
	if len(resolved.Tools) > 0 {
		allow := make(map[string]bool, len(resolved.Tools))
		for _, name := range resolved.Tools {
			allow[name] = true
		}
		var exclude []string
		for _, td := range ts.List() {
			if !allow[td.Name] {
				exclude = append(exclude, td.Name)
			}
		}
		ts.Filter(exclude)
	}
	if len(resolved.ExcludeTools) > 0 {
		ts.Filter(resolved.ExcludeTools)
	}
}

// registerStaticSubagents loads each spec-declared subagent's own agent
// spec and registers it in market, sharing the parent toolset and
// giving each its own approval queue via CopyForDynamicSubagent, the
// same isolation CreateSubagent gives a runtime-created one.
func registerStaticSubagents(market *agent.LaborMarket, ts *toolset.Toolset, rt *runtime.Runtime, subagents map[string]agentspec.SubagentSpec) error {
	for name, sub := range subagents {
		resolved, err := agentspec.Load(sub.Path)
		if err != nil {
			return fmt.Errorf("kagent: subagent %q: %w", name, err)
		}
		systemPrompt, err := agentspec.RenderSystemPrompt(resolved)
		if err != nil {
			return fmt.Errorf("kagent: subagent %q: %w", name, err)
		}
		a := &agent.Agent{
			Name:         name,
			SystemPrompt: systemPrompt,
			Toolset:      ts,
			Runtime:      rt.CopyForDynamicSubagent(),
		}
		if err := market.AddStaticSubagent(a); err != nil {
			return fmt.Errorf("kagent: subagent %q: %w", name, err)
		}
	}
	return nil
}
