// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/policyagent/pkg/errors"
	"github.com/jllopis/policyagent/pkg/tools"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolAdapter wraps a remote MCP tool to satisfy tools.Tool. A remote name
// of the form category.name keeps its category locally.
type ToolAdapter struct {
	tool     mcp.Tool
	caller   ToolCaller
	category string
	name     string
}

// NewToolAdapter builds a tools.Tool backed by an MCP tool definition and caller.
func NewToolAdapter(tool mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if tool.Name == "" {
		return nil, errors.New(errors.CodeInvalidInput, "mcp tool name is required", nil)
	}
	if caller == nil {
		return nil, errors.New(errors.CodeInvalidInput, "tool caller is required", nil)
	}
	a := &ToolAdapter{tool: tool, caller: caller, category: "mcp", name: tool.Name}
	if category, name, ok := strings.Cut(tool.Name, "."); ok && category != "" && name != "" {
		a.category, a.name = category, name
	}
	return a, nil
}

// RemoteTools lists the server's tools and wraps each one.
func RemoteTools(ctx context.Context, c *Client) ([]tools.Tool, error) {
	defs, err := c.ListTools(ctx)
	if err != nil {
		return nil, errors.New(errors.CodeToolFailure, "failed to list MCP tools", err)
	}
	out := make([]tools.Tool, 0, len(defs))
	for _, def := range defs {
		a, err := NewToolAdapter(def, c)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Name returns the short tool name.
func (t *ToolAdapter) Name() string { return t.name }

// Category returns the namespace of the remote tool.
func (t *ToolAdapter) Category() string { return t.category }

// Description returns the remote description.
func (t *ToolAdapter) Description() string { return t.tool.Description }

// Parameters lists the properties of the remote input schema.
func (t *ToolAdapter) Parameters() []tools.Parameter {
	required := map[string]bool{}
	for _, key := range t.tool.InputSchema.Required {
		required[key] = true
	}
	names := make([]string, 0, len(t.tool.InputSchema.Properties))
	for name := range t.tool.InputSchema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]tools.Parameter, 0, len(names))
	for _, name := range names {
		p := tools.Parameter{Name: name, Required: required[name]}
		if prop, ok := t.tool.InputSchema.Properties[name].(map[string]any); ok {
			p.Description, _ = prop["description"].(string)
		}
		params = append(params, p)
	}
	return params
}

// Execute calls the remote tool. Results flagged IsError still carry an
// observation for the model, so only transport failures become errors.
func (t *ToolAdapter) Execute(ctx context.Context, params map[string]any) (string, error) {
	args := params
	if args == nil {
		args = map[string]any{}
	}
	result, err := t.caller.CallTool(ctx, t.tool.Name, args)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", errors.New(errors.CodeToolFailure, "mcp tool result is nil", nil)
	}
	text := extractTextContent(result.Content)
	if result.IsError && !strings.HasPrefix(text, tools.ErrorMarker) {
		text = tools.ErrorMarker + text
	}
	return text, nil
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var (
	_ tools.Tool          = (*ToolAdapter)(nil)
	_ tools.Parameterized = (*ToolAdapter)(nil)
	_ ToolCaller          = (*Client)(nil)
)
