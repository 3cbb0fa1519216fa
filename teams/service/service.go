package service

import (
	mcpservice "github.com/viant/mcp-teams/teams/mcp"
)

// Service mirrors the Teams MCP service to align package layout with the other toolbox servers.
type Service = mcpservice.Service

// Config aliases the MCP service config for constructor parity.
type Config = mcpservice.Config

// NewService constructs the Teams service; delegates to teams/mcp.NewService.
func NewService(cfg *Config) *Service { return mcpservice.NewService(cfg) }
