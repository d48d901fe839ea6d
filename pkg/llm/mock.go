// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"sync"

	"github.com/jllopis/policyagent/pkg/errors"
)

// MockProvider is a testing implementation of Provider.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}, nil
}

// FlakyProvider fails the first Failures stream opens with Err and then
// delegates to Next. A negative Failures fails every call. Err defaults to a
// recoverable LLM_ERROR, so FlakyProvider pairs with WithRetry.
type FlakyProvider struct {
	Next     StreamingProvider
	Failures int
	Err      error

	mu    sync.Mutex
	calls int
}

func (f *FlakyProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	f.mu.Lock()
	f.calls++
	fail := f.Failures < 0 || f.calls <= f.Failures
	f.mu.Unlock()

	if fail {
		if f.Err != nil {
			return nil, f.Err
		}
		return nil, errors.New(errors.CodeLLMError, "provider unavailable", nil).WithRecoverable(true)
	}
	if f.Next == nil {
		return Stream(&MockProvider{}).ChatStream(ctx, req)
	}
	return f.Next.ChatStream(ctx, req)
}

// Calls returns how many streams were requested.
func (f *FlakyProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var _ StreamingProvider = (*FlakyProvider)(nil)
