package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kagent-go/kagent/internal/mcp"
)

// mcpServersFile is the shape of the --mcp-config YAML file: a flat list
// of stdio servers to launch and connect to at startup.
type mcpServersFile struct {
	Servers []mcp.ServerConfig `yaml:"servers"`
}

func loadMCPServers(path string) ([]mcp.ServerConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f mcpServersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Servers, nil
}
