// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed errors for the policy agent.
//
// Codes split into two families. Recoverable codes (invalid input, policy
// violations, degraded parses, unknown actions) are turned into observations
// and fed back to the model. Fatal codes (LLM transport failures, timeouts,
// cancellation) abort the current run and reach the caller.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies agent errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates a malformed tool request (unknown item,
	// unknown activity, missing field).
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodePolicyViolation indicates a rule engine denial.
	CodePolicyViolation ErrorCode = "POLICY_VIOLATION"

	// CodeParseDegraded indicates model output that had to be recovered
	// locally (e.g. non-JSON action input).
	CodeParseDegraded ErrorCode = "PARSE_DEGRADED"

	// CodeUnknownAction indicates an action name that resolved to zero or
	// several registered tools.
	CodeUnknownAction ErrorCode = "UNKNOWN_ACTION"

	// CodeToolFailure indicates a tool returned an error instead of an observation.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeLLMError indicates the completion client failed.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeCanceled indicates the caller canceled the run.
	CodeCanceled ErrorCode = "CANCELED"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// AgentError is a typed error with context for logging and tracing.
// It implements the error interface and can be unwrapped with errors.As().
type AgentError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *AgentError) MarshalJSON() ([]byte, error) {
	payload := struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		payload.Err = e.Err.Error()
	}
	return json.Marshal(payload)
}

// New creates a new AgentError with the given code, message, and cause.
// Recoverability defaults from the code family.
func New(code ErrorCode, msg string, cause error) *AgentError {
	return &AgentError{
		Code:        code,
		Message:     msg,
		Err:         cause,
		Context:     make(map[string]interface{}),
		Recoverable: recoverableByDefault(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *AgentError) WithContext(key string, value interface{}) *AgentError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable overrides whether the error can be recovered from.
func (e *AgentError) WithRecoverable(recoverable bool) *AgentError {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" for metric attributes.
func (e *AgentError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// AsAgentError returns err as an AgentError, wrapping foreign errors as internal.
func AsAgentError(err error) *AgentError {
	if err == nil {
		return nil
	}
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the first AgentError in the chain, or "" when
// err carries none.
func CodeOf(err error) ErrorCode {
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func recoverableByDefault(code ErrorCode) bool {
	switch code {
	case CodeInvalidInput, CodePolicyViolation, CodeParseDegraded, CodeUnknownAction:
		return true
	default:
		return false
	}
}
