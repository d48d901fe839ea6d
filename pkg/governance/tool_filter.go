// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"path"
	"strings"
)

// Effect is what a tool policy does when it matches.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// ToolPolicy is a configurable tool-level rule. Tool is a glob matched with
// path.Match against the full tool name (weather.check_weather) and the
// short name (check_weather).
type ToolPolicy struct {
	ID     string
	Effect Effect
	Tool   string
	Reason string
}

// Evaluate reports whether the policy matches tool and, if so, its decision.
func (p ToolPolicy) Evaluate(tool string) (Decision, bool) {
	if !matchTool(p.Tool, tool) {
		return Decision{}, false
	}
	if p.Effect == EffectAllow {
		return Allow(), true
	}
	reason := p.Reason
	if reason == "" {
		reason = "Tool " + tool + " is blocked by policy"
	}
	return Deny(p.ID, reason), true
}

// ToolFilter decides which tools are exposed at all, based on allowlists
// and denylists of glob patterns.
type ToolFilter struct {
	allowlist map[string]bool
	denylist  map[string]bool
}

// ToolFilterOption configures a ToolFilter.
type ToolFilterOption func(*ToolFilter)

// NewToolFilter creates a new ToolFilter with the given options.
func NewToolFilter(opts ...ToolFilterOption) *ToolFilter {
	tf := &ToolFilter{
		allowlist: make(map[string]bool),
		denylist:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

// WithAllowlist sets the allowlist of permitted tool names/patterns.
func WithAllowlist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) { addAll(tf.allowlist, tools) }
}

// WithDenylist sets the denylist of forbidden tool names/patterns.
func WithDenylist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) { addAll(tf.denylist, tools) }
}

// IsAllowed checks if a tool name is exposed by the filter.
// Denylist entries win; a non-empty allowlist must then match.
func (tf *ToolFilter) IsAllowed(toolName string) Decision {
	if tf == nil {
		return Allow()
	}
	if tf.matchesList(toolName, tf.denylist) {
		return Deny("tool-denylist", "tool is in denylist")
	}
	if len(tf.allowlist) > 0 && !tf.matchesList(toolName, tf.allowlist) {
		return Deny("tool-allowlist", "tool is not in allowlist")
	}
	return Allow()
}

// FilterTools returns only the tool names that pass the filter.
func (tf *ToolFilter) FilterTools(toolNames []string) []string {
	if tf == nil || (len(tf.allowlist) == 0 && len(tf.denylist) == 0) {
		return toolNames
	}
	filtered := make([]string, 0, len(toolNames))
	for _, name := range toolNames {
		if tf.IsAllowed(name).IsAllowed() {
			filtered = append(filtered, name)
		}
	}
	return filtered
}

func (tf *ToolFilter) matchesList(toolName string, list map[string]bool) bool {
	for pattern := range list {
		if matchTool(pattern, toolName) {
			return true
		}
	}
	return false
}

func addAll(set map[string]bool, tools []string) {
	for _, tool := range tools {
		tool = strings.TrimSpace(tool)
		if tool != "" {
			set[tool] = true
		}
	}
}

func matchTool(pattern, tool string) bool {
	if pattern == "" {
		return false
	}
	return matchPattern(pattern, tool) || matchPattern(pattern, ShortName(tool))
}

func matchPattern(pattern, value string) bool {
	ok, err := path.Match(pattern, value)
	if err == nil && ok {
		return true
	}
	return pattern == value
}
