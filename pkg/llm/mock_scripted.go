// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedMockProvider returns a pre-defined sequence of responses.
// Useful for testing multi-turn interactions (e.g. the ReAct loop).
// ChatStream delivers each response in ChunkSize-rune fragments.
type ScriptedMockProvider struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	// ChunkSize is the fragment length in runes; zero sends the whole
	// response as one fragment.
	ChunkSize int
	// CallCount tracks how many requests have been served.
	CallCount int
	// Requests holds every request received, in order.
	Requests []ChatRequest
}

// NewScriptedMockProvider creates a new ScriptedMockProvider.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	return &ScriptedMockProvider{
		Responses: responses,
	}
}

// Chat pops the next scripted response or returns the configured error.
func (s *ScriptedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	content, err := s.next(req)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Content: content,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}, nil
}

// ChatStream pops the next scripted response and streams it in fragments.
func (s *ScriptedMockProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	content, err := s.next(req)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	size := s.ChunkSize
	s.mu.Unlock()

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)
		for _, frag := range Fragments(content, size) {
			select {
			case <-ctx.Done():
				return
			case chunks <- StreamChunk{Content: frag}:
			}
		}
		select {
		case <-ctx.Done():
		case chunks <- StreamChunk{Done: true, Usage: &Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}}:
		}
	}()
	return chunks, nil
}

func (s *ScriptedMockProvider) next(req ChatRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	s.Requests = append(s.Requests, req)

	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", errors.New("scripted mock: no more responses available")
	}

	content := s.Responses[0]
	s.Responses = s.Responses[1:]
	return content, nil
}

// AddResponse appends a response to the queue.
func (s *ScriptedMockProvider) AddResponse(response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, response)
}

// PeekNext returns the next response to be returned, or empty string.
func (s *ScriptedMockProvider) PeekNext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Responses) == 0 {
		return ""
	}
	return s.Responses[0]
}

// Calls returns the number of requests served so far.
func (s *ScriptedMockProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCount
}

// Fragments splits text into pieces of at most size runes. A size below one
// returns text as a single fragment.
func Fragments(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size < 1 {
		return []string{text}
	}
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

var _ StreamingProvider = (*ScriptedMockProvider)(nil)
