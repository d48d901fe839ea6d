// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/jllopis/policyagent/pkg/errors"
)

// WrapLLMError wraps a completion client error with appropriate context.
// Timeouts and cancellations keep their code.
func WrapLLMError(err error, model string, iteration int) *errors.AgentError {
	if err == nil {
		return nil
	}
	if errors.HasCode(err, errors.CodeTimeout) || errors.HasCode(err, errors.CodeCanceled) {
		ae := errors.AsAgentError(err)
		return ae.WithContext("model", model).WithContext("iteration", iteration)
	}
	return errors.New(errors.CodeLLMError, "completion request failed", err).
		WithContext("model", model).
		WithContext("iteration", iteration).
		WithRecoverable(false)
}

// WrapToolError wraps a tool execution error with appropriate context.
func WrapToolError(err error, toolName string, iteration int) *errors.AgentError {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeToolFailure, "tool execution failed", err).
		WithContext("tool_name", toolName).
		WithContext("iteration", iteration).
		WithRecoverable(false)
}

// WrapCanceledError reports a run stopped by its caller between turns.
func WrapCanceledError(err error, iteration int) *errors.AgentError {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeCanceled, "run canceled", err).
		WithContext("iteration", iteration).
		WithRecoverable(false)
}

// NewInvalidInputError creates a new invalid input error.
func NewInvalidInputError(msg string) *errors.AgentError {
	return errors.New(errors.CodeInvalidInput, msg, nil).
		WithRecoverable(false)
}
