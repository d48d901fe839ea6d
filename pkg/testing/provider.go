// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jllopis/policyagent/pkg/llm"
)

// ScenarioProvider is a scripted completion client for scenario tests.
// It streams each response in fragments and captures every request.
type ScenarioProvider struct {
	mu           sync.Mutex
	responses    []ScriptedResponse
	currentIndex int
	requests     []llm.ChatRequest
	defaultError error
	chunkSize    int
}

// ScriptedResponse defines a response for the scenario provider.
type ScriptedResponse struct {
	Content string
	// Error fails the request before any fragment is sent.
	Error error
	// StreamError is sent after the content, ending the stream.
	StreamError error
	Usage       llm.Usage
	// Delay is waited before each fragment.
	Delay time.Duration
	// Condition allows conditional responses based on request
	Condition func(req llm.ChatRequest) bool
}

// NewScenarioProvider creates a new scenario provider.
func NewScenarioProvider() *ScenarioProvider {
	return &ScenarioProvider{
		responses: make([]ScriptedResponse, 0),
		requests:  make([]llm.ChatRequest, 0),
	}
}

// AddResponse queues a response to be returned.
func (p *ScenarioProvider) AddResponse(content string) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{Content: content})
}

// AddStep queues a response built from a step.
func (p *ScenarioProvider) AddStep(step *StepBuilder) *ScenarioProvider {
	return p.AddResponse(step.String())
}

// AddErrorResponse queues an error response.
func (p *ScenarioProvider) AddErrorResponse(err error) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{Error: err})
}

// AddScriptedResponse adds a fully configured response.
func (p *ScenarioProvider) AddScriptedResponse(resp ScriptedResponse) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
	return p
}

// WithDefaultError sets the error to return when no responses are queued.
func (p *ScenarioProvider) WithDefaultError(err error) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultError = err
	return p
}

// WithChunkSize sets the fragment size in runes. Zero sends each response
// as one fragment.
func (p *ScenarioProvider) WithChunkSize(n int) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunkSize = n
	return p
}

// Chat implements llm.Provider.
func (p *ScenarioProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, _, err := p.next(req)
	if err != nil {
		return nil, err
	}
	if resp.StreamError != nil {
		return nil, resp.StreamError
	}
	return &llm.ChatResponse{Content: resp.Content, Usage: resp.Usage}, nil
}

// ChatStream implements llm.StreamingProvider.
func (p *ScenarioProvider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, size, err := p.next(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		send := func(chunk llm.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- chunk:
				return true
			}
		}
		for _, frag := range llm.Fragments(resp.Content, size) {
			if resp.Delay > 0 {
				timer := time.NewTimer(resp.Delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			if !send(llm.StreamChunk{Content: frag}) {
				return
			}
		}
		if resp.StreamError != nil {
			send(llm.StreamChunk{Error: resp.StreamError})
			return
		}
		usage := resp.Usage
		send(llm.StreamChunk{Done: true, Usage: &usage})
	}()
	return ch, nil
}

func (p *ScenarioProvider) next(req llm.ChatRequest) (ScriptedResponse, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	for p.currentIndex < len(p.responses) {
		resp := p.responses[p.currentIndex]
		p.currentIndex++
		if resp.Condition != nil && !resp.Condition(req) {
			continue
		}
		if resp.Error != nil {
			return ScriptedResponse{}, 0, resp.Error
		}
		return resp, p.chunkSize, nil
	}
	if p.defaultError != nil {
		return ScriptedResponse{}, 0, p.defaultError
	}
	return ScriptedResponse{}, 0, fmt.Errorf("no more scripted responses (call %d)", len(p.requests))
}

// Requests returns all captured requests.
func (p *ScenarioProvider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]llm.ChatRequest, len(p.requests))
	copy(result, p.requests)
	return result
}

// LastRequest returns the most recent request.
func (p *ScenarioProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}

// CallCount returns the number of requests made.
func (p *ScenarioProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Remaining returns how many scripted responses were not consumed.
func (p *ScenarioProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.responses) - p.currentIndex
}

// Reset clears all state.
func (p *ScenarioProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentIndex = 0
	p.requests = p.requests[:0]
}

// StepBuilder writes a model response in the ReAct text format.
type StepBuilder struct {
	thought  string
	action   string
	input    string
	hasInput bool
	final    string
	hasFinal bool
}

// NewStep creates a new step builder.
func NewStep() *StepBuilder {
	return &StepBuilder{}
}

// Thought sets the reasoning line.
func (b *StepBuilder) Thought(text string) *StepBuilder {
	b.thought = text
	return b
}

// Action names the tool to call with args encoded as a JSON object.
func (b *StepBuilder) Action(name string, args map[string]any) *StepBuilder {
	if args == nil {
		args = map[string]any{}
	}
	raw, _ := json.Marshal(args)
	return b.RawAction(name, string(raw))
}

// RawAction names the tool to call with input written verbatim.
func (b *StepBuilder) RawAction(name, input string) *StepBuilder {
	b.action = name
	b.input = input
	b.hasInput = true
	return b
}

// FinalAnswer sets the answer line.
func (b *StepBuilder) FinalAnswer(text string) *StepBuilder {
	b.final = text
	b.hasFinal = true
	return b
}

// String renders the response text.
func (b *StepBuilder) String() string {
	var lines []string
	if b.thought != "" {
		lines = append(lines, "Thought: "+b.thought)
	}
	if b.action != "" {
		lines = append(lines, "Action: "+b.action)
		if b.hasInput {
			lines = append(lines, "Action Input: "+b.input)
		}
	}
	if b.hasFinal {
		lines = append(lines, "Final Answer: "+b.final)
	}
	return strings.Join(lines, "\n")
}
