// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/jllopis/policyagent/pkg/audit"
	"github.com/jllopis/policyagent/pkg/llm"
)

// Outcome is how a run terminated without error.
type Outcome string

const (
	// OutcomeFinalAnswer means the model produced a "Final Answer:" line.
	OutcomeFinalAnswer Outcome = "final_answer"
	// OutcomeMaxIterations means the turn budget ran out first. It is not
	// an error.
	OutcomeMaxIterations Outcome = "max_iterations"
)

// MaxIterationsMessage is the answer reported when the budget runs out.
const MaxIterationsMessage = "❌ Maximum iterations reached without finding a final answer."

// Turn records one reasoning turn.
type Turn struct {
	Iteration   int            `json:"iteration" yaml:"iteration"`
	Thought     string         `json:"thought,omitempty" yaml:"thought,omitempty"`
	Action      string         `json:"action,omitempty" yaml:"action,omitempty"`
	ActionInput map[string]any `json:"action_input,omitempty" yaml:"action_input,omitempty"`
	Degraded    bool           `json:"degraded_input,omitempty" yaml:"degraded_input,omitempty"`
	Observation string         `json:"observation,omitempty" yaml:"observation,omitempty"`
	Outcome     audit.Outcome  `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	RuleID      string         `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	// Stalled is set when the response held neither an action nor an answer.
	Stalled bool `json:"stalled,omitempty" yaml:"stalled,omitempty"`
}

// Result is the outcome of Agent.Run.
type Result struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	Outcome     Outcome   `json:"outcome" yaml:"outcome"`
	FinalAnswer string    `json:"final_answer,omitempty" yaml:"final_answer,omitempty"`
	Iterations  int       `json:"iterations" yaml:"iterations"`
	ToolCalls   int       `json:"tool_calls" yaml:"tool_calls"`
	Turns       []Turn    `json:"turns" yaml:"turns"`
	Usage       llm.Usage `json:"usage" yaml:"usage"`
	Transcript  []Entry   `json:"-" yaml:"-"`
}

// Answer returns the final answer, or MaxIterationsMessage when the run
// gave up.
func (r *Result) Answer() string {
	if r == nil {
		return ""
	}
	if r.Outcome == OutcomeMaxIterations {
		return MaxIterationsMessage
	}
	return r.FinalAnswer
}

// PolicyViolations counts turns denied by the rule engine.
func (r *Result) PolicyViolations() int {
	n := 0
	for _, t := range r.Turns {
		if t.Outcome == audit.OutcomePolicyViolation {
			n++
		}
	}
	return n
}
