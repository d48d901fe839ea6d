// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"encoding/json"
	"strings"
)

// Line markers of the ReAct text protocol. Matching is case-sensitive and
// applies to lines with surrounding whitespace removed.
const (
	MarkerThought     = "Thought:"
	MarkerAction      = "Action:"
	MarkerActionInput = "Action Input:"
	MarkerObservation = "Observation:"
	MarkerFinalAnswer = "Final Answer:"
)

// RawInputKey holds action input that was not a JSON object.
const RawInputKey = "input"

// Step is what the parser extracted from one model response.
type Step struct {
	Thought string
	Action  string
	// ActionInput is the decoded input. It is non-nil whenever an
	// "Action Input:" line was seen.
	ActionInput map[string]any
	// RawInput is the input text as written by the model.
	RawInput string
	// Degraded reports that RawInput was not a JSON object and was wrapped
	// under RawInputKey.
	Degraded    bool
	FinalAnswer string
	HasFinal    bool
}

// HasAction reports whether the step names an action and carries an input.
func (s Step) HasAction() bool {
	return s.Action != "" && s.ActionInput != nil
}

type parserField int

const (
	fieldNone parserField = iota
	fieldThought
	fieldAction
	fieldInput
	fieldFinal
)

// Parser incrementally parses a streamed model response. Fragments of any
// size are buffered until a full line is available; Finish flushes the
// trailing partial line. A Parser is not safe for concurrent use.
type Parser struct {
	pending strings.Builder
	field   parserField
	stopped bool

	thought  []string
	action   string
	input    []string
	hasInput bool
	final    []string
	hasFinal bool
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes a fragment of the response.
func (p *Parser) Feed(fragment string) {
	for fragment != "" {
		i := strings.IndexByte(fragment, '\n')
		if i < 0 {
			p.pending.WriteString(fragment)
			return
		}
		p.pending.WriteString(fragment[:i])
		p.line(p.pending.String())
		p.pending.Reset()
		fragment = fragment[i+1:]
	}
}

// Finish flushes the trailing partial line and returns the parsed step.
// The parser must not be fed after Finish.
func (p *Parser) Finish() Step {
	if p.pending.Len() > 0 {
		p.line(p.pending.String())
		p.pending.Reset()
	}

	step := Step{
		Thought: joinLines(p.thought),
		Action:  p.action,
	}
	if p.hasInput {
		step.RawInput = joinLines(p.input)
		step.ActionInput, step.Degraded = decodeInput(step.RawInput)
	}
	if p.hasFinal {
		step.HasFinal = true
		step.FinalAnswer = joinLines(p.final)
	}
	return step
}

// Parse parses a complete response.
func Parse(text string) Step {
	p := NewParser()
	p.Feed(text)
	return p.Finish()
}

func (p *Parser) line(raw string) {
	if p.stopped {
		return
	}
	line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))

	// Action Input must be tested before Action: both share a prefix.
	switch {
	case strings.HasPrefix(line, MarkerFinalAnswer):
		if p.hasFinal {
			p.stopped = true
			return
		}
		p.field = fieldFinal
		p.hasFinal = true
		p.final = appendText(nil, line[len(MarkerFinalAnswer):])
		// The answer is the marker line; an empty marker line takes the
		// next non-empty line instead.
		p.stopped = len(p.final) > 0
	case p.field == fieldFinal && isMarker(line):
		p.stopped = true
	case strings.HasPrefix(line, MarkerObservation):
		// Anything after a model-written observation is invented.
		p.stopped = true
	case strings.HasPrefix(line, MarkerThought):
		p.field = fieldThought
		p.thought = appendText(p.thought, line[len(MarkerThought):])
	case strings.HasPrefix(line, MarkerActionInput):
		p.field = fieldInput
		p.hasInput = true
		p.input = appendText(nil, line[len(MarkerActionInput):])
	case strings.HasPrefix(line, MarkerAction):
		p.field = fieldAction
		p.action = strings.TrimSpace(line[len(MarkerAction):])
		p.input, p.hasInput = nil, false
	default:
		p.continuation(line)
	}
}

func (p *Parser) continuation(line string) {
	switch p.field {
	case fieldThought:
		p.thought = appendText(p.thought, line)
	case fieldInput:
		p.input = append(p.input, line)
	case fieldFinal:
		if line != "" {
			p.final = append(p.final, line)
			p.stopped = true
		}
	}
}

func isMarker(line string) bool {
	for _, m := range []string{MarkerThought, MarkerAction, MarkerObservation} {
		if strings.HasPrefix(line, m) {
			return true
		}
	}
	return false
}

func appendText(lines []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return lines
	}
	return append(lines, s)
}

func joinLines(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// decodeInput parses the first JSON object in raw and ignores any text after
// it. Empty input is an empty object. Input that does not start with an object
// is wrapped under RawInputKey: the whole buffer when it looks structured,
// otherwise only the text of the Action Input line.
func decodeInput(raw string) (map[string]any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, false
	}
	if obj, ok := firstObject(raw); ok {
		return obj, false
	}
	text := strings.TrimSpace(stripCodeFence(raw))
	if first, _, multi := strings.Cut(raw, "\n"); multi && !strings.HasPrefix(first, "{") && !strings.HasPrefix(first, "```") {
		text = strings.TrimSpace(first)
	}
	return map[string]any{RawInputKey: text}, true
}

func firstObject(raw string) (map[string]any, bool) {
	body := raw
	if rest, ok := strings.CutPrefix(body, "```"); ok {
		body = rest
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[\"") {
			body = body[nl+1:]
		}
	}
	var obj map[string]any
	if err := json.NewDecoder(strings.NewReader(body)).Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// stripCodeFence removes a surrounding ``` fence, with or without a
// language tag.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.ContainsAny(t[:nl], "{[\"") {
		t = t[nl+1:]
	}
	return t
}
