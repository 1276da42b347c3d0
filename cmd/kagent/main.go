// Command kagent is the CLI entry point: interactive stdin chat by
// default, a JSON-RPC server over stdio/TCP-free pipes for editor
// integrations, or a one-shot agent/tool status dump. Grounded on
// _examples/kadirpekel-hector/cmd/hector/main.go's kong CLI/ServeCmd
// shape and signal-handling idiom, generalized from hector's A2A server
// command to this module's run/serve/info surface.
package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kagent-go/kagent/internal/config"
)

// CLI is kagent's top-level command tree and global flags, per
// SPEC_FULL.md §6.6.
type CLI struct {
	Run   RunCmd   `cmd:"" default:"1" help:"Start an interactive chat session."`
	Serve ServeCmd `cmd:"" help:"Serve a JSON-RPC session over stdin/stdout."`
	Info  InfoCmd  `cmd:"" help:"Print agent, tool, and session status."`

	AgentFile          string `name:"agent-file" type:"path" help:"Path to an agent spec YAML file. Defaults to the embedded default agent."`
	ConfigFile         string `name:"config" type:"path" default:"kagent.yaml" help:"Path to the configuration file."`
	MCPConfig          string `name:"mcp-config" type:"path" help:"Path to an MCP servers config file."`
	SkillsDir          string `name:"skills-dir" type:"path" help:"Skills directory. Accepted but not read by any command."`
	MaxStepsPerTurn    int    `name:"max-steps-per-turn" help:"Override loop_control.max_steps_per_turn."`
	MaxRetriesPerStep  int    `name:"max-retries-per-step" help:"Override loop_control.max_retries_per_step."`
	MaxRalphIterations int    `name:"max-ralph-iterations" help:"Override loop_control.max_ralph_iterations."`
	YOLO               bool   `name:"yolo" help:"Auto-approve every tool call requiring approval."`
	ShareDir           string `name:"share-dir" type:"path" help:"Override the session data directory (KIMI_SHARE_DIR)."`
	SessionID          string `name:"session-id" help:"Resume a specific session id instead of the workspace's most recent one."`
	LogLevel           string `name:"log-level" default:"info" help:"Log level: debug, info, warn, error."`
	LogFile            string `name:"log-file" type:"path" help:"Log file path (empty = stderr)."`
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		slog.Warn("kagent: loading .env files", "error", err)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("kagent"),
		kong.Description("A coding agent CLI: turn scheduler, tool dispatch, and a labor market of subagents."),
		kong.UsageOnError(),
	)

	if cli.ShareDir != "" {
		os.Setenv("KIMI_SHARE_DIR", cli.ShareDir)
	}

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
