// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration with rich attributes
// for agent observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for agent telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Agent attributes
	AttrAgentID        = "policyagent.agent.id"
	AttrAgentModel     = "policyagent.agent.model"
	AttrAgentRunID     = "policyagent.agent.run_id"
	AttrAgentIteration = "policyagent.agent.iteration"
	AttrAgentMaxIter   = "policyagent.agent.max_iterations"
	AttrAgentRules     = "policyagent.agent.rules_disclosed"
	AttrRunOutcome     = "policyagent.run.outcome"

	// Tool attributes
	AttrToolName       = "policyagent.tool.name"
	AttrToolOutcome    = "policyagent.tool.outcome"
	AttrToolArgs       = "policyagent.tool.arguments"
	AttrToolResult     = "policyagent.tool.result"
	AttrToolDurationMs = "policyagent.tool.duration_ms"

	// LLM attributes (extending standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMFragments    = "gen_ai.response.fragments"

	// Governance attributes
	AttrPolicyAllowed = "policyagent.policy.allowed"
	AttrPolicyRuleID  = "policyagent.policy.rule_id"
	AttrPolicyReason  = "policyagent.policy.reason"

	// World attributes
	AttrWorldWeather   = "policyagent.world.weather"
	AttrWorldActivity  = "policyagent.world.activity"
	AttrWorldInventory = "policyagent.world.inventory_count"

	// Error attributes
	AttrErrorCode        = "error.code"
	AttrErrorRecoverable = "error.recoverable"
)

// AgentAttributes returns common attributes for agent spans.
func AgentAttributes(agentID, model, runID string, iteration, maxIter int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrAgentRunID, runID),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, model))
	}
	if iteration > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentIteration, iteration))
	}
	if maxIter > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentMaxIter, maxIter))
	}
	return attrs
}

// ToolCallAttributes returns attributes for a tool call span.
func ToolCallAttributes(name, outcome string, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.Float64(AttrToolDurationMs, durationMs),
	}
	if outcome != "" {
		attrs = append(attrs, attribute.String(AttrToolOutcome, outcome))
	}
	return attrs
}

// ToolCallArgsResult returns attributes with tool arguments and result (truncated for safety).
func ToolCallArgsResult(args, result string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 500
	}
	attrs := []attribute.KeyValue{}
	if args != "" {
		attrs = append(attrs, attribute.String(AttrToolArgs, truncate(args, maxLen)))
	}
	if result != "" {
		attrs = append(attrs, attribute.String(AttrToolResult, truncate(result, maxLen)))
	}
	return attrs
}

// LLMAttributes returns attributes for completion call spans.
func LLMAttributes(model string, msgCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
	}
}

// LLMUsageAttributes returns token usage and fragment count attributes.
func LLMUsageAttributes(inputTokens, outputTokens, fragments int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	if fragments > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMFragments, fragments))
	}
	return attrs
}

// PolicyAttributes returns attributes for a rule engine decision.
func PolicyAttributes(allowed bool, ruleID, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrPolicyAllowed, allowed),
	}
	if !allowed {
		if ruleID != "" {
			attrs = append(attrs, attribute.String(AttrPolicyRuleID, ruleID))
		}
		if reason != "" {
			attrs = append(attrs, attribute.String(AttrPolicyReason, reason))
		}
	}
	return attrs
}

// WorldAttributes summarises the world state after a step.
func WorldAttributes(weather, activity string, inventory int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrWorldWeather, weather),
		attribute.Int(AttrWorldInventory, inventory),
	}
	if activity != "" {
		attrs = append(attrs, attribute.String(AttrWorldActivity, activity))
	}
	return attrs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
