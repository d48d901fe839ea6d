// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package anthropic provides an Anthropic Messages API Completion Client.
// Responses arrive whole; wrap the provider with llm.Stream to feed the
// agent loop.
package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jllopis/policyagent/pkg/errors"
	"github.com/jllopis/policyagent/pkg/llm"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096
)

// Provider implements llm.Provider for the Anthropic Messages API.
type Provider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

type settings struct {
	model     string
	maxTokens int64
	apiKey    string
	baseURL   string
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

// WithMaxTokens sets the maximum tokens for responses.
func WithMaxTokens(tokens int64) Option {
	return func(s *settings) {
		if tokens > 0 {
			s.maxTokens = tokens
		}
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithAPIKey sets the API key. Without it the client reads ANTHROPIC_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(s *settings) { s.apiKey = apiKey }
}

// New creates a new Anthropic provider.
func New(opts ...Option) *Provider {
	s := settings{model: DefaultModel, maxTokens: DefaultMaxTokens}
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
	return &Provider{
		client:    anthropic.NewClient(reqOpts...),
		model:     s.model,
		maxTokens: s.maxTokens,
	}
}

// Model returns the default model name.
func (p *Provider) Model() string { return p.model }

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	message, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "anthropic message failed", err).WithRecoverable(true)
	}
	return convertResponse(message), nil
}

func (p *Provider) params(req llm.ChatRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}
	system, messages := convertMessages(req.Messages)
	params := anthropic.MessageNewParams{
		Model:         model,
		MaxTokens:     p.maxTokens,
		Messages:      messages,
		StopSequences: req.Stop,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params
}

// convertMessages lifts system messages into the system prompt. The API
// takes only user and assistant turns in the message list.
func convertMessages(messages []llm.Message) (string, []anthropic.MessageParam) {
	var system []string
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
		case llm.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return strings.Join(system, "\n\n"), out
}

func convertResponse(message *anthropic.Message) *llm.ChatResponse {
	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return &llm.ChatResponse{
		Content: b.String(),
		Usage: llm.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}
}

var _ llm.Provider = (*Provider)(nil)
