// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm defines the completion client boundary used by the agent loop.
package llm

import (
	"context"
	"strings"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest encapsulates the input for the LLM.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	// Stop lists sequences at which the backend should stop generating.
	Stop []string `json:"stop,omitempty"`
}

// ChatResponse encapsulates the output from the LLM.
type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for non-streaming LLM backends.
type Provider interface {
	// Chat sends a chat request to the LLM and returns the response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// StreamChunk is one fragment of a streamed response. The final chunk has
// Done set and may carry Usage. A chunk with Error ends the stream.
type StreamChunk struct {
	Content string
	Done    bool
	Usage   *Usage
	Error   error
}

// StreamingProvider returns a response as a stream of text fragments.
// Fragments may have any size, down to a single character. The channel is
// closed when the stream ends.
type StreamingProvider interface {
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// Stream adapts p to a StreamingProvider. When p already streams it is
// returned unchanged; otherwise each response becomes a single fragment.
func Stream(p Provider) StreamingProvider {
	if sp, ok := p.(StreamingProvider); ok {
		return sp
	}
	return chatStreamer{p}
}

type chatStreamer struct {
	Provider
}

func (c chatStreamer) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	resp, err := c.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 2)
	if resp.Content != "" {
		ch <- StreamChunk{Content: resp.Content}
	}
	usage := resp.Usage
	ch <- StreamChunk{Done: true, Usage: &usage}
	close(ch)
	return ch, nil
}

// Collect drains a stream and returns the concatenated content.
func Collect(ctx context.Context, ch <-chan StreamChunk) (string, *Usage, error) {
	var b strings.Builder
	var usage *Usage
	for {
		select {
		case <-ctx.Done():
			return b.String(), usage, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return b.String(), usage, nil
			}
			if chunk.Error != nil {
				return b.String(), usage, chunk.Error
			}
			b.WriteString(chunk.Content)
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
			if chunk.Done {
				return b.String(), usage, nil
			}
		}
	}
}
