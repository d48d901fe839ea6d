// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	stderrors "errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/policyagent/pkg/errors"
)

// MeterName is the instrumentation scope of the loop metrics.
const MeterName = "policyagent/agent"

// LoopMetrics counts what the ReAct loop does. A nil *LoopMetrics is valid
// and records nothing.
type LoopMetrics struct {
	runs        metric.Int64Counter
	turns       metric.Int64Counter
	toolCalls   metric.Int64Counter
	denials     metric.Int64Counter
	errorsTotal metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewLoopMetrics creates the instruments on meter. A nil meter uses the
// global provider.
func NewLoopMetrics(meter metric.Meter) (*LoopMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}
	var m LoopMetrics
	var errs []error
	var err error

	m.runs, err = meter.Int64Counter("policyagent.runs.total",
		metric.WithDescription("Completed agent runs by outcome"))
	errs = append(errs, err)
	m.turns, err = meter.Int64Counter("policyagent.turns.total",
		metric.WithDescription("Reasoning turns sent to the completion client"))
	errs = append(errs, err)
	m.toolCalls, err = meter.Int64Counter("policyagent.tool.calls",
		metric.WithDescription("Tool invocations by tool and outcome"))
	errs = append(errs, err)
	m.denials, err = meter.Int64Counter("policyagent.policy.denials",
		metric.WithDescription("Rule engine denials by rule"))
	errs = append(errs, err)
	m.errorsTotal, err = meter.Int64Counter("policyagent.errors.total",
		metric.WithDescription("Run-aborting errors by code"))
	errs = append(errs, err)
	m.runDuration, err = meter.Float64Histogram("policyagent.run.duration",
		metric.WithDescription("Wall time of agent runs"),
		metric.WithUnit("ms"))
	errs = append(errs, err)

	if err := stderrors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordTurn counts one reasoning turn.
func (m *LoopMetrics) RecordTurn(ctx context.Context, agentID string) {
	if m == nil {
		return
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrAgentID, agentID)))
}

// RecordToolCall counts a tool invocation. Policy violations also count
// as a denial of ruleID.
func (m *LoopMetrics) RecordToolCall(ctx context.Context, tool, outcome, ruleID string) {
	if m == nil {
		return
	}
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrToolName, tool),
		attribute.String(AttrToolOutcome, outcome),
	))
	if ruleID != "" {
		m.denials.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrToolName, tool),
			attribute.String(AttrPolicyRuleID, ruleID),
		))
	}
}

// RecordRun counts a finished run and its duration.
func (m *LoopMetrics) RecordRun(ctx context.Context, agentID, outcome string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrRunOutcome, outcome),
	)
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, durationMs, attrs)
}

// RecordError counts a run-aborting error.
func (m *LoopMetrics) RecordError(ctx context.Context, err error) {
	if m == nil || err == nil {
		return
	}
	code, recoverable := "UNKNOWN", "unknown"
	var ae *errors.AgentError
	if stderrors.As(err, &ae) {
		code, recoverable = string(ae.Code), ae.RecoverableString()
	}
	m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, code),
		attribute.String(AttrErrorRecoverable, recoverable),
	))
}
