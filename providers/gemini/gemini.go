// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package gemini provides a streaming Google Gemini completion client.
package gemini

import (
	"context"
	"os"

	"google.golang.org/genai"

	"github.com/jllopis/policyagent/pkg/errors"
	"github.com/jllopis/policyagent/pkg/llm"
)

// DefaultModel is used when neither the request nor the provider name one.
const DefaultModel = "gemini-2.0-flash"

// Provider implements llm.Provider and llm.StreamingProvider for the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// New creates a Gemini provider. An empty apiKey falls back to the
// GOOGLE_API_KEY and GEMINI_API_KEY environment variables.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New(errors.CodeInvalidInput, "gemini: no API key configured (set llm.api_key or GOOGLE_API_KEY)", nil).
			WithRecoverable(false)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "failed to create Gemini client", err)
	}

	p := &Provider{
		client: client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Model returns the default model name.
func (p *Provider) Model() string { return p.model }

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	model, contents, config := p.prepare(req)
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "gemini generate content failed", err).WithRecoverable(true)
	}
	chunk := convertResponse(resp)
	out := &llm.ChatResponse{Content: chunk.Content}
	if chunk.Usage != nil {
		out.Usage = *chunk.Usage
	}
	return out, nil
}

// ChatStream implements llm.StreamingProvider. Each streamed response
// becomes one fragment; the last chunk carries the usage totals.
func (p *Provider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	model, contents, config := p.prepare(req)

	chunks := make(chan llm.StreamChunk, 100)
	go func() {
		defer close(chunks)

		send := func(c llm.StreamChunk) bool {
			select {
			case chunks <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var usage *llm.Usage
		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				send(llm.StreamChunk{Error: errors.New(errors.CodeLLMError, "gemini stream failed", err)})
				return
			}
			chunk := convertResponse(resp)
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
			if chunk.Content != "" && !send(llm.StreamChunk{Content: chunk.Content}) {
				return
			}
		}
		send(llm.StreamChunk{Done: true, Usage: usage})
	}()

	return chunks, nil
}

// Close is a no-op as the Gemini client doesn't require explicit closing.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) prepare(req llm.ChatRequest) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	contents, systemInstruction := convertMessages(req.Messages)

	config := &genai.GenerateContentConfig{}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if len(req.Stop) > 0 {
		config.StopSequences = req.Stop
	}
	return model, contents, config
}

// convertMessages maps transcript messages to Gemini contents. System
// messages are joined into the system instruction.
func convertMessages(messages []llm.Message) ([]*genai.Content, string) {
	var systemInstruction string
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			if systemInstruction != "" {
				systemInstruction += "\n\n"
			}
			systemInstruction += msg.Content
		case llm.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	return contents, systemInstruction
}

// convertResponse extracts the visible text and usage of one response.
// Thought parts are skipped.
func convertResponse(resp *genai.GenerateContentResponse) llm.StreamChunk {
	var chunk llm.StreamChunk
	if resp == nil {
		return chunk
	}
	if resp.UsageMetadata != nil {
		chunk.Usage = &llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			chunk.Content += part.Text
		}
	}
	return chunk
}

var (
	_ llm.Provider          = (*Provider)(nil)
	_ llm.StreamingProvider = (*Provider)(nil)
)
