// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"

	"github.com/jllopis/policyagent/pkg/resilience"
)

// WithRetry wraps p so that opening a stream is retried with backoff.
// Fragments already delivered are never replayed; a failure after the
// stream opened is returned to the caller as is. A config allowing a
// single attempt returns p unchanged.
func WithRetry(p StreamingProvider, cfg resilience.RetryConfig) StreamingProvider {
	if !cfg.Enabled() {
		return p
	}
	return &retryingProvider{next: p, cfg: cfg}
}

type retryingProvider struct {
	next StreamingProvider
	cfg  resilience.RetryConfig
}

func (r *retryingProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	return resilience.Retry(ctx, r.cfg, func(ctx context.Context) (<-chan StreamChunk, error) {
		return r.next.ChatStream(ctx, req)
	})
}
