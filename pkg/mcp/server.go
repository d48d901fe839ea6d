// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the tool registry over the Model Context Protocol and
// lets an agent use tools served by a remote policyagent process.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/policyagent/pkg/audit"
	"github.com/jllopis/policyagent/pkg/core"
	"github.com/jllopis/policyagent/pkg/tools"
)

// Server publishes every registry tool as an MCP tool named category.name.
// Calls go through the registry, so rules, filters and the audit trail
// apply exactly as they do inside the loop.
type Server struct {
	mcpServer *server.MCPServer
	registry  *tools.Registry
	logger    *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger used for call diagnostics.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new MCP server backed by reg.
func NewServer(name, version string, reg *tools.Registry, opts ...ServerOption) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		registry:  reg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, t := range reg.Tools() {
		s.mcpServer.AddTool(ToolDefinition(t), s.handler(tools.FullName(t)))
	}
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ToolDefinition describes t as an MCP tool with a string property per
// declared parameter.
func ToolDefinition(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description())}
	if p, ok := t.(tools.Parameterized); ok {
		for _, param := range p.Parameters() {
			propOpts := []mcp.PropertyOption{mcp.Description(param.Description)}
			if param.Required {
				propOpts = append(propOpts, mcp.Required())
			}
			opts = append(opts, mcp.WithString(param.Name, propOpts...))
		}
	}
	return mcp.NewTool(tools.FullName(t), opts...)
}

// handler invokes the named tool. Denials and input errors are returned as
// tool results flagged IsError; only registry failures become protocol
// errors.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		ctx, runID := core.EnsureRunID(ctx)

		obs, err := s.registry.Invoke(ctx, name, args)
		if err != nil {
			s.logger.WarnContext(ctx, "mcp.tool.error",
				slog.String("tool", name),
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.logger.DebugContext(ctx, "mcp.tool.call",
			slog.String("tool", name),
			slog.String("run_id", runID),
			slog.String("outcome", string(obs.Outcome)),
		)

		result := mcp.NewToolResultText(obs.Text)
		result.IsError = obs.Outcome != audit.OutcomeSuccess
		return result, nil
	}
}
