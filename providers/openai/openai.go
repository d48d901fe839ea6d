// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai provides an OpenAI chat completions Completion Client.
package openai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jllopis/policyagent/pkg/errors"
	"github.com/jllopis/policyagent/pkg/llm"
)

// DefaultModel is used when neither the provider nor the request names one.
const DefaultModel = "gpt-5-mini"

// Provider implements llm.Provider and llm.StreamingProvider for OpenAI and
// OpenAI-compatible endpoints.
type Provider struct {
	client openai.Client
	model  string
}

type settings struct {
	model   string
	apiKey  string
	baseURL string
}

// Option configures the Provider.
type Option func(*settings)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(s *settings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithBaseURL points the client at a proxy or compatible server.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithAPIKey sets the API key. Without it the client reads OPENAI_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(s *settings) { s.apiKey = apiKey }
}

// New creates a new OpenAI provider.
func New(opts ...Option) *Provider {
	s := settings{model: DefaultModel}
	for _, opt := range opts {
		opt(&s)
	}
	var reqOpts []option.RequestOption
	if s.apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(s.apiKey))
	}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	return &Provider{client: openai.NewClient(reqOpts...), model: s.model}
}

// Model returns the default model name.
func (p *Provider) Model() string { return p.model }

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.params(req))
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "openai chat completion failed", err).WithRecoverable(true)
	}
	return convertResponse(completion), nil
}

// ChatStream implements llm.StreamingProvider.
func (p *Provider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(req))

	chunks := make(chan llm.StreamChunk, 100)
	go func() {
		defer close(chunks)
		defer stream.Close()

		send := func(c llm.StreamChunk) bool {
			select {
			case chunks <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var usage *llm.Usage
		for stream.Next() {
			event := stream.Current()
			if event.Usage.TotalTokens > 0 {
				usage = &llm.Usage{
					PromptTokens:     int(event.Usage.PromptTokens),
					CompletionTokens: int(event.Usage.CompletionTokens),
					TotalTokens:      int(event.Usage.TotalTokens),
				}
			}
			if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(llm.StreamChunk{Content: event.Choices[0].Delta.Content}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(llm.StreamChunk{Error: errors.New(errors.CodeLLMError, "openai stream failed", err)})
			return
		}
		send(llm.StreamChunk{Done: true, Usage: usage})
	}()

	return chunks, nil
}

func (p *Provider) params(req llm.ChatRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	return params
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func convertResponse(completion *openai.ChatCompletion) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		Usage: llm.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) > 0 {
		resp.Content = completion.Choices[0].Message.Content
	}
	return resp
}

var (
	_ llm.Provider          = (*Provider)(nil)
	_ llm.StreamingProvider = (*Provider)(nil)
)
