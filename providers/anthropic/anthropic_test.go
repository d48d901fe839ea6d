// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/jllopis/policyagent/pkg/llm"
)

func TestNewProvider(t *testing.T) {
	p := New()
	if p.model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, p.model)
	}
	if p.maxTokens != DefaultMaxTokens {
		t.Errorf("expected maxTokens %d, got %d", DefaultMaxTokens, p.maxTokens)
	}
}

func TestOptions(t *testing.T) {
	p := New(WithModel("claude-opus-4-20250514"), WithMaxTokens(8192), WithAPIKey("test-key"))
	if p.Model() != "claude-opus-4-20250514" {
		t.Errorf("expected model claude-opus-4-20250514, got %s", p.Model())
	}
	if p.maxTokens != 8192 {
		t.Errorf("expected maxTokens 8192, got %d", p.maxTokens)
	}

	p = New(WithModel(""), WithMaxTokens(0))
	if p.model != DefaultModel || p.maxTokens != DefaultMaxTokens {
		t.Errorf("zero values must not override defaults, got %s/%d", p.model, p.maxTokens)
	}
}

func TestConvertMessagesLiftsSystem(t *testing.T) {
	system, messages := convertMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: "You are helpful"},
		{Role: llm.RoleUser, Content: "Question: Hello"},
		{Role: llm.RoleAssistant, Content: "Thought: hi"},
		{Role: llm.RoleUser, Content: "Observation: ok"},
	})
	if system != "You are helpful" {
		t.Errorf("system = %q", system)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(messages))
	}
	if messages[0].Role != anthropic.MessageParamRoleUser || messages[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("unexpected roles %s, %s", messages[0].Role, messages[1].Role)
	}
}

func TestParamsCarryStopSequences(t *testing.T) {
	p := New()
	params := p.params(llm.ChatRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "Question: hi"}},
		Stop:        []string{"\nObservation:"},
		Temperature: 0.1,
	})
	if params.Model != DefaultModel {
		t.Errorf("model = %s", params.Model)
	}
	if len(params.StopSequences) != 1 || params.StopSequences[0] != "\nObservation:" {
		t.Errorf("stop sequences = %v", params.StopSequences)
	}
	if len(params.System) != 0 {
		t.Errorf("no system message should leave System empty, got %v", params.System)
	}
}

func TestConvertResponse(t *testing.T) {
	resp := convertResponse(&anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "Thought: done\n"},
			{Type: "text", Text: "Final Answer: ok"},
		},
		Usage: anthropic.Usage{InputTokens: 12, OutputTokens: 8},
	})
	if resp.Content != "Thought: done\nFinal Answer: ok" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
}
