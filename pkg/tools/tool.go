// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools implements the registry of deterministic operations the
// agent may call. Tools are the only code allowed to mutate world state and
// they consult the rule engine before every write.
package tools

import (
	"context"

	"github.com/jllopis/policyagent/pkg/audit"
)

// Tool is a named operation invoked with JSON-like parameters. It always
// returns a single observation string; errors are reserved for failures
// that should abort the run.
type Tool interface {
	Name() string
	Category() string
	Description() string
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// FullName returns category.name.
func FullName(t Tool) string {
	if t.Category() == "" {
		return t.Name()
	}
	return t.Category() + "." + t.Name()
}

// Observation is a tool result annotated with how it came about.
type Observation struct {
	Text    string
	Outcome audit.Outcome
	RuleID  string
}

// Observer is implemented by tools that can classify their own results.
// The registry falls back to Execute for tools that do not.
type Observer interface {
	Observe(ctx context.Context, params map[string]any) (Observation, error)
}

// Parameter describes one tool input for prompts and MCP schemas.
type Parameter struct {
	Name        string
	Description string
	Required    bool
}

// Parameterized is implemented by tools that accept inputs.
type Parameterized interface {
	Parameters() []Parameter
}

// Marker prefixes shared by observations.
const (
	ViolationPrefix = "❌ Rule violation: "
	ErrorMarker     = "❌ "
	StateMarker     = "📊 "
)

func violation(reason string) string { return ViolationPrefix + reason }
