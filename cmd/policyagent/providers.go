// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jllopis/policyagent/pkg/agent"
	"github.com/jllopis/policyagent/pkg/config"
	"github.com/jllopis/policyagent/pkg/llm"
	"github.com/jllopis/policyagent/providers/anthropic"
	"github.com/jllopis/policyagent/providers/gemini"
	"github.com/jllopis/policyagent/providers/openai"
)

func newGemini(ctx context.Context, cfg config.LLMConfig) (llm.StreamingProvider, error) {
	p, err := gemini.New(ctx, cfg.APIKey, gemini.WithModel(cfg.Model))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newOpenAI(cfg config.LLMConfig) llm.StreamingProvider {
	opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithAPIKey(cfg.APIKey)}
	if url := customBaseURL(cfg); url != "" {
		opts = append(opts, openai.WithBaseURL(url))
	}
	return openai.New(opts...)
}

func newAnthropic(cfg config.LLMConfig) llm.StreamingProvider {
	opts := []anthropic.Option{anthropic.WithModel(cfg.Model), anthropic.WithAPIKey(cfg.APIKey)}
	if url := customBaseURL(cfg); url != "" {
		opts = append(opts, anthropic.WithBaseURL(url))
	}
	return llm.Stream(anthropic.New(opts...))
}

// defaultModel returns the model a provider uses when none is configured.
func defaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case "gemini":
		return gemini.DefaultModel
	case "openai":
		return openai.DefaultModel
	case "anthropic":
		return anthropic.DefaultModel
	case "ollama":
		return "llama3.2"
	case "mock":
		return "mock"
	default:
		return ""
	}
}

// customBaseURL returns llm.base_url unless it is still the Ollama default,
// which hosted providers must not inherit.
func customBaseURL(cfg config.LLMConfig) string {
	if cfg.BaseURL == llm.DefaultOllamaURL {
		return ""
	}
	return cfg.BaseURL
}

// demoProvider stands in for a model when llm.provider is mock: it inspects
// the state once and answers with what it saw. It needs no network and is
// deterministic, which makes it useful for smoke runs.
func demoProvider() llm.Provider {
	return &llm.MockProvider{
		ChatFunc: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			if len(req.Messages) == 0 {
				return nil, fmt.Errorf("mock: empty transcript")
			}
			last := req.Messages[len(req.Messages)-1]
			if after, ok := strings.CutPrefix(last.Content, agent.MarkerObservation); ok {
				obs, _, _ := strings.Cut(strings.TrimSpace(after), "\n\n")
				seen := strings.Join(strings.Fields(obs), " ")
				return &llm.ChatResponse{
					Content: "Thought: I have looked at the state.\n" + agent.MarkerFinalAnswer + " " + seen,
				}, nil
			}
			return &llm.ChatResponse{
				Content: "Thought: I should inspect the current state first.\n" +
					agent.MarkerAction + " check_state\n" +
					agent.MarkerActionInput + " {}",
			}, nil
		},
	}
}
