// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/policyagent/pkg/errors"
)

// Exit codes.
const (
	exitOK            = 0
	exitFailure       = 1
	exitMaxIterations = 2
)

// CLIError wraps AgentError with CLI-specific formatting and hints.
type CLIError struct {
	*errors.AgentError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(ae *errors.AgentError, hint string) *CLIError {
	return &CLIError{
		AgentError: ae,
		Hint:       hint,
	}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.AgentError == nil {
		return "unknown error"
	}

	msg := e.AgentError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the AgentError to errors.As and errors.Is.
func (e *CLIError) Unwrap() error {
	if e.AgentError == nil {
		return nil
	}
	return e.AgentError
}

// PrintError prints the error with appropriate formatting.
func (e *CLIError) PrintError(w io.Writer, asJSON bool) {
	if asJSON {
		payload := map[string]map[string]string{
			"error": {
				"code":    string(e.AgentError.Code),
				"message": e.AgentError.Message,
				"hint":    e.Hint,
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
		return
	}

	fmt.Fprintf(w, "Error [%s]: %s\n", FormatErrorCode(e.AgentError.Code), e.AgentError.Message)
	if e.AgentError.Err != nil {
		fmt.Fprintf(w, "  Cause: %v\n", e.AgentError.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	ae := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg).
		WithContext("reason", reason).
		WithRecoverable(false)
	return NewCLIError(ae, "run 'policyagent help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	ae := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath).
		WithRecoverable(false)

	hint := "check your configuration file syntax and --set overrides"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(ae, hint)
}

// WrapRunError attaches a hint matching the failure of an agent run.
func WrapRunError(err error) *CLIError {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		return cliErr
	}
	ae := errors.AsAgentError(err)
	if ae == nil {
		ae = errors.New(errors.CodeInternal, "run failed", err)
	}

	var hint string
	switch ae.Code {
	case errors.CodeLLMError:
		hint = "check llm.provider, llm.model and the provider credentials"
	case errors.CodeTimeout:
		hint = "raise agent.turn_timeout or check the model server health"
	case errors.CodeCanceled:
		hint = "the run was interrupted before it finished"
	case errors.CodeToolFailure:
		hint = "a tool failed outside of policy; check the tool server logs"
	case errors.CodeInvalidInput:
		hint = "run 'policyagent help' for usage information"
	}
	return NewCLIError(ae, hint)
}

// PrintSimpleError prints a simple error message (for non-AgentError cases).
func PrintSimpleError(w io.Writer, err error, asJSON bool) {
	if asJSON {
		payload := map[string]map[string]string{
			"error": {"code": "UNKNOWN", "message": err.Error()},
		}
		_ = json.NewEncoder(w).Encode(payload)
		return
	}
	fmt.Fprintf(w, "Error: %s\n", err.Error())
}

// FormatErrorCode returns a user-friendly name for error codes.
func FormatErrorCode(code errors.ErrorCode) string {
	switch code {
	case errors.CodeInternal:
		return "Internal Error"
	case errors.CodeInvalidInput:
		return "Invalid Input"
	case errors.CodePolicyViolation:
		return "Policy Violation"
	case errors.CodeParseDegraded:
		return "Degraded Input"
	case errors.CodeUnknownAction:
		return "Unknown Action"
	case errors.CodeToolFailure:
		return "Tool Failure"
	case errors.CodeLLMError:
		return "LLM Error"
	case errors.CodeTimeout:
		return "Timeout"
	case errors.CodeCanceled:
		return "Canceled"
	case errors.CodeNotFound:
		return "Not Found"
	default:
		return string(code)
	}
}

// exitError carries a non-zero exit code for an outcome that is not an
// error, such as a run that ran out of iterations.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if stderrors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}
