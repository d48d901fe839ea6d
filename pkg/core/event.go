// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// EventType identifies a semantic event emitted by the agent loop.
type EventType string

const (
	EventRunStarted   EventType = "agent.run.started"
	EventTurnStarted  EventType = "agent.turn.started"
	EventToolExecuted EventType = "agent.tool.executed"
	EventPolicyDenied EventType = "agent.policy.denied"
	EventRunCompleted EventType = "agent.run.completed"
	EventAgentError   EventType = "agent.error"
)

// Event captures a semantic streaming/logging event.
type Event struct {
	Type      EventType
	Agent     string
	RunID     string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(ctx context.Context, event Event)

// Emit implements EventEmitter.
func (f EmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// LogEventEmitter writes events to a slog logger at debug level.
type LogEventEmitter struct {
	Logger *slog.Logger
}

// Emit implements EventEmitter.
func (e LogEventEmitter) Emit(ctx context.Context, event Event) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []slog.Attr{
		slog.String("agent_id", event.Agent),
		slog.String("run_id", event.RunID),
	}
	keys := make([]string, 0, len(event.Payload))
	for k := range event.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, event.Payload[k]))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, string(event.Type), attrs...)
}

// RecordingEmitter keeps every event in memory.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements EventEmitter.
func (r *RecordingEmitter) Emit(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *RecordingEmitter) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *RecordingEmitter) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, agent string, runID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Agent:     agent,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
