// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/jllopis/policyagent/pkg/llm"
)

func TestRenderSystemPrompt(t *testing.T) {
	data := PromptData{
		Instructions: "Prefer outdoor activities.",
		IncludeRules: true,
		Rules:        "1. Camping requires hiking boots.",
		Tools:        "weather.check_weather: Check the weather.",
		ToolNames:    "weather.check_weather",
	}
	got, err := RenderSystemPrompt(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"Prefer outdoor activities.",
		"1. Camping requires hiking boots.",
		"weather.check_weather: Check the weather.",
		"Tool Names: weather.check_weather",
		MarkerThought,
		MarkerActionInput,
		MarkerFinalAnswer,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.HasSuffix(got, "Begin!") {
		t.Errorf("prompt should end with Begin!, got %q", got[len(got)-20:])
	}
}

func TestRenderSystemPromptLearningMode(t *testing.T) {
	got, err := RenderSystemPrompt(PromptData{
		Rules: "secret rule",
		Tools: "state.check_state: Check state.",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(got, "secret rule") {
		t.Fatal("rules must not be disclosed in learning mode")
	}
	if !strings.Contains(got, "Learn from these failures") {
		t.Fatal("learning mode should ask the model to infer rules")
	}
}

func TestTranscriptAppendsInOrder(t *testing.T) {
	tr := NewTranscript()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	tr.System("sys")
	tr.User("question")
	tr.Assistant("Thought: x")

	msgs := tr.Messages()
	want := []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "question"},
		{Role: llm.RoleAssistant, Content: "Thought: x"},
	}
	if len(msgs) != len(want) || tr.Len() != 3 {
		t.Fatalf("messages = %+v", msgs)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, msgs[i], want[i])
		}
	}

	entries := tr.Entries()
	seen := map[string]bool{}
	for _, e := range entries {
		if e.ID == "" || seen[e.ID] {
			t.Fatalf("entry ids must be unique and set: %+v", entries)
		}
		seen[e.ID] = true
		if !e.At.Equal(fixed) {
			t.Errorf("timestamp = %v", e.At)
		}
	}

	entries[0].Message.Content = "edited"
	if tr.Messages()[0].Content != "sys" {
		t.Fatal("Entries must return a copy")
	}
}
