// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package core holds small cross-cutting types shared by the agent, its
// tools and telemetry: run identifiers carried in contexts and semantic events.
package core

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}

// WithRunID attaches a run id to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id if present.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// EnsureRunID ensures a run id exists in the context.
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunID(ctx); ok {
		return ctx, id
	}
	id := NewRunID()
	return WithRunID(ctx, id), id
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run-" + uuid.NewString()
}
