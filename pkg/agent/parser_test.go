// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jllopis/policyagent/pkg/llm"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Step
	}{
		{
			name: "action with json input",
			text: "Thought: I should check the weather\nAction: weather.check_weather\nAction Input: {}",
			want: Step{
				Thought:     "I should check the weather",
				Action:      "weather.check_weather",
				ActionInput: map[string]any{},
				RawInput:    "{}",
			},
		},
		{
			name: "object input",
			text: "Thought: buy\nAction: shopping\nAction Input: {\"item\": \"TV\"}\n",
			want: Step{
				Thought:     "buy",
				Action:      "shopping",
				ActionInput: map[string]any{"item": "TV"},
				RawInput:    `{"item": "TV"}`,
			},
		},
		{
			name: "multi-line json input",
			text: "Action: shopping\nAction Input: {\n  \"item\": \"Goggles\"\n}",
			want: Step{
				Action:      "shopping",
				ActionInput: map[string]any{"item": "Goggles"},
				RawInput:    "{\n\"item\": \"Goggles\"\n}",
			},
		},
		{
			name: "malformed input degrades",
			text: "Action: shopping\nAction Input: {item: TV",
			want: Step{
				Action:      "shopping",
				ActionInput: map[string]any{RawInputKey: "{item: TV"},
				RawInput:    "{item: TV",
				Degraded:    true,
			},
		},
		{
			name: "text after the input object is ignored",
			text: "Action: shopping.shopping\nAction Input: {\"item\": \"TV\"}\nI will wait for the result.",
			want: Step{
				Action:      "shopping.shopping",
				ActionInput: map[string]any{"item": "TV"},
				RawInput:    "{\"item\": \"TV\"}\nI will wait for the result.",
			},
		},
		{
			name: "array input degrades",
			text: "Action: shopping\nAction Input: [\"TV\"]",
			want: Step{
				Action:      "shopping",
				ActionInput: map[string]any{RawInputKey: `["TV"]`},
				RawInput:    `["TV"]`,
				Degraded:    true,
			},
		},
		{
			name: "degraded input keeps only the input line",
			text: "Action: shopping\nAction Input: Goggles\nthen I will swim",
			want: Step{
				Action:      "shopping",
				ActionInput: map[string]any{RawInputKey: "Goggles"},
				RawInput:    "Goggles\nthen I will swim",
				Degraded:    true,
			},
		},
		{
			name: "bare string input degrades",
			text: "Action: shopping\nAction Input: Sunscreen",
			want: Step{
				Action:      "shopping",
				ActionInput: map[string]any{RawInputKey: "Sunscreen"},
				RawInput:    "Sunscreen",
				Degraded:    true,
			},
		},
		{
			name: "fenced input",
			text: "Action: shopping\nAction Input: ```json\n{\"item\": \"Xbox\"}\n```",
			want: Step{
				Action:      "shopping",
				ActionInput: map[string]any{"item": "Xbox"},
				RawInput:    "```json\n{\"item\": \"Xbox\"}\n```",
			},
		},
		{
			name: "empty input is an empty object",
			text: "Action: state.check_state\nAction Input:",
			want: Step{
				Action:      "state.check_state",
				ActionInput: map[string]any{},
			},
		},
		{
			name: "action without input line",
			text: "Thought: hmm\nAction: weather.check_weather",
			want: Step{Thought: "hmm", Action: "weather.check_weather"},
		},
		{
			name: "final answer",
			text: "Thought: I know\nFinal Answer: Done",
			want: Step{Thought: "I know", FinalAnswer: "Done", HasFinal: true},
		},
		{
			name: "final answer is the marker line only",
			text: "Thought: ok\nFinal Answer: Done\nHope that helps!",
			want: Step{Thought: "ok", FinalAnswer: "Done", HasFinal: true},
		},
		{
			name: "empty final answer line takes the next line",
			text: "Final Answer:\n\nGo swimming.\nBring goggles.",
			want: Step{FinalAnswer: "Go swimming.", HasFinal: true},
		},
		{
			name: "scanning stops at the first final answer",
			text: "Final Answer: first\nThought: more\nAction: shopping\nFinal Answer: second",
			want: Step{FinalAnswer: "first", HasFinal: true},
		},
		{
			name: "invented observation is ignored",
			text: "Action: weather.check_weather\nAction Input: {}\nObservation: sunny\nFinal Answer: Done",
			want: Step{
				Action:      "weather.check_weather",
				ActionInput: map[string]any{},
				RawInput:    "{}",
			},
		},
		{
			name: "markers are case-sensitive",
			text: "thought: lower\naction: shopping\nfinal answer: x",
			want: Step{},
		},
		{
			name: "indented markers",
			text: "  Thought: spaced  \n\tAction: shopping\n  Action Input: {\"item\":\"TV\"}  ",
			want: Step{
				Thought:     "spaced",
				Action:      "shopping",
				ActionInput: map[string]any{"item": "TV"},
				RawInput:    `{"item":"TV"}`,
			},
		},
		{
			name: "later action resets input",
			text: "Action: shopping\nAction Input: {\"item\":\"TV\"}\nAction: weather.check_weather",
			want: Step{Action: "weather.check_weather"},
		},
		{
			name: "no markers",
			text: "I am not sure what to do.",
			want: Step{},
		},
		{
			name: "crlf line endings",
			text: "Thought: x\r\nFinal Answer: y\r\n",
			want: Step{Thought: "x", FinalAnswer: "y", HasFinal: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Parse (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParserFragmentInvariance(t *testing.T) {
	texts := []string{
		"Thought: I should check the weather\nAction: weather.check_weather\nAction Input: {}",
		"Thought: buy both\nAction: shopping\nAction Input: {\"item\": \"Xbox\"}\n",
		"Thought: done\nFinal Answer: Play games with the TV and Xbox.",
		"Action: shopping\nAction Input: not json at all",
		"Action: shopping\nAction Input: {\"item\": \"TV\"}\nI will wait.",
		"Final Answer: Done\nHope that helps!",
		"Thought: ünïcödé 🎮\nFinal Answer: 🏊",
	}
	for _, text := range texts {
		want := Parse(text)
		for _, size := range []int{1, 2, 3, 7, 64} {
			p := NewParser()
			for _, frag := range llm.Fragments(text, size) {
				p.Feed(frag)
			}
			if diff := cmp.Diff(want, p.Finish()); diff != "" {
				t.Fatalf("fragment size %d changed the parse of %q (-want +got):\n%s", size, text, diff)
			}
		}
	}
}

func TestParserPartialLineNotClassified(t *testing.T) {
	p := NewParser()
	p.Feed("Final Ans")
	p.Feed("wer: Done")
	got := p.Finish()
	if !got.HasFinal || got.FinalAnswer != "Done" {
		t.Fatalf("split marker misparsed: %+v", got)
	}
}

func TestStepHasAction(t *testing.T) {
	tests := []struct {
		step Step
		want bool
	}{
		{Step{Action: "a", ActionInput: map[string]any{}}, true},
		{Step{Action: "a"}, false},
		{Step{ActionInput: map[string]any{}}, false},
	}
	for _, tt := range tests {
		if got := tt.step.HasAction(); got != tt.want {
			t.Errorf("HasAction(%+v) = %v, want %v", tt.step, got, tt.want)
		}
	}
}
