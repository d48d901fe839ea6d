// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jllopis/policyagent/pkg/errors"
)

// TimeoutConfig controls timeout behavior.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the operation. Zero disables
	// the limit.
	Duration time.Duration

	// Operation names the guarded call in the returned error.
	Operation string
}

// WithTimeout runs fn under a deadline derived from ctx. fn must honour the
// context it is given. When the deadline fires, the error is replaced by a
// CodeTimeout AgentError; parent cancellation is returned unchanged.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func(context.Context) error) error {
	_, err := WithTimeoutResult(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// WithTimeoutResult is WithTimeout for functions that return a value.
func WithTimeoutResult[T any](ctx context.Context, config TimeoutConfig, fn func(context.Context) (T, error)) (T, error) {
	if config.Duration <= 0 {
		return fn(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	v, err := fn(tctx)
	if err != nil && ctx.Err() == nil && stderrors.Is(tctx.Err(), context.DeadlineExceeded) {
		op := config.Operation
		if op == "" {
			op = "operation"
		}
		var zero T
		return zero, errors.New(errors.CodeTimeout, op+" exceeded timeout", err).
			WithContext("timeout", config.Duration.String()).
			WithRecoverable(true)
	}
	return v, err
}
