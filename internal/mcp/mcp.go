// Package mcp is the config/interface boundary to MCP tool servers named
// in SPEC_FULL.md's purpose statement ("MCP client internals beyond a
// config/interface boundary" are out of scope): connect to a server over
// stdio, list its tools, and wrap each as a toolset.Tool. Grounded
// authoritatively on
// _examples/kadirpekel-hector/pkg/tool/mcptoolset/mcptoolset.go's stdio
// connect/list/call flow (connectStdio, mcpToolWrapper.Call,
// parseToolResponse, convertSchema), trimmed to the stdio transport only
// — hector's sse/streamable-http branches reimplement JSON-RPC by hand
// over net/http rather than exercising mcp-go, which this module has no
// other reason to avoid; see DESIGN.md for that scope decision.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/kagent-go/kagent/internal/toolset"
)

// ServerConfig names one stdio MCP server to launch and connect to.
type ServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// Client wraps one connected MCP server's mcp-go client.
type Client struct {
	serverName string
	raw        *mcpclient.Client
}

// Connect launches cfg's command, performs the MCP initialize handshake,
// and returns a Client ready for ListTools/CallTool.
func Connect(ctx context.Context, cfg ServerConfig) (*Client, error) {
	raw, err := mcpclient.NewStdioMCPClient(cfg.Command, envSlice(cfg.Env), cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("mcp: create client for %q: %w", cfg.Name, err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "kagent", Version: "0.1.0"}

	if _, err := raw.Initialize(ctx, initReq); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("mcp: initialize %q: %w", cfg.Name, err)
	}

	return &Client{serverName: cfg.Name, raw: raw}, nil
}

// Close shuts down the underlying server process.
func (c *Client) Close() error { return c.raw.Close() }

// Tools discovers the server's tool catalog and wraps each as a
// toolset.Tool, name-prefixed by the server name to avoid collisions
// between servers exposing the same tool name.
func (c *Client) Tools(ctx context.Context) ([]toolset.Tool, error) {
	resp, err := c.raw.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools on %q: %w", c.serverName, err)
	}

	tools := make([]toolset.Tool, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		tools = append(tools, &bridgeTool{
			client:      c,
			name:        fmt.Sprintf("mcp_%s_%s", c.serverName, t.Name),
			remoteName:  t.Name,
			description: fmt.Sprintf("[MCP %s] %s", c.serverName, t.Description),
			parameters:  convertSchema(t.InputSchema),
		})
	}
	return tools, nil
}

// bridgeTool adapts one MCP-provided tool to toolset.Tool.
type bridgeTool struct {
	client      *Client
	name        string
	remoteName  string
	description string
	parameters  map[string]any
}

func (b *bridgeTool) Name() string               { return b.name }
func (b *bridgeTool) Description() string        { return b.description }
func (b *bridgeTool) Parameters() map[string]any { return b.parameters }

func (b *bridgeTool) Call(ctx context.Context, args json.RawMessage) toolset.ReturnValue {
	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
		}
	}

	req := mcpgo.CallToolRequest{}
	req.Params.Name = b.remoteName
	req.Params.Arguments = arguments

	resp, err := b.client.raw.CallTool(ctx, req)
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("MCP call to %s failed: %v", b.remoteName, err), "MCP call failed")
	}

	text := textContent(resp)
	if resp.IsError {
		return toolset.ErrorReturn(text, text, "MCP tool error")
	}
	return toolset.TextReturn(text, "", "")
}

// textContent concatenates every TextContent block in a tool result,
// matching parseToolResponse's "join text parts" convention.
func textContent(resp *mcpgo.CallToolResult) string {
	var out string
	for i, c := range resp.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			if i > 0 {
				out += "\n"
			}
			out += tc.Text
		}
	}
	return out
}

// convertSchema round-trips an MCP input schema through JSON to get a
// plain map, matching convertSchema's marshal/unmarshal approach.
func convertSchema(schema mcpgo.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
