// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnsureRunID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if !strings.HasPrefix(id, "run-") {
		t.Fatalf("unexpected run id %q", id)
	}
	got, ok := RunID(ctx)
	if !ok || got != id {
		t.Fatalf("RunID = %q,%v want %q", got, ok, id)
	}

	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id || ctx2 != ctx {
		t.Fatalf("EnsureRunID must keep an existing id")
	}
}

func TestRunIDEmpty(t *testing.T) {
	if _, ok := RunID(WithRunID(context.Background(), "")); ok {
		t.Fatal("empty run id should not count as present")
	}
	if NewRunID() == NewRunID() {
		t.Fatal("run ids must be unique")
	}
}

func TestRecordingEmitter(t *testing.T) {
	rec := &RecordingEmitter{}
	var emitter EventEmitter = rec
	emitter.Emit(context.Background(), NewEvent(EventRunStarted, "a", "run-1", nil))
	emitter.Emit(context.Background(), NewEvent(EventRunCompleted, "a", "run-1", map[string]any{"outcome": "final_answer"}))

	want := []EventType{EventRunStarted, EventRunCompleted}
	if diff := cmp.Diff(want, rec.Types()); diff != "" {
		t.Fatalf("event types (-want +got):\n%s", diff)
	}
	if rec.Events()[1].Payload["outcome"] != "final_answer" {
		t.Fatalf("payload lost")
	}
}

func TestLogEventEmitter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	LogEventEmitter{Logger: logger}.Emit(context.Background(), NewEvent(EventToolExecuted, "agent-1", "run-9", map[string]any{"tool": "state.check_state"}))

	out := buf.String()
	for _, want := range []string{"agent.tool.executed", "agent_id=agent-1", "run_id=run-9", "tool=state.check_state"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestEmitterFunc(t *testing.T) {
	var got EventType
	EmitterFunc(func(_ context.Context, ev Event) { got = ev.Type }).Emit(context.Background(), Event{Type: EventAgentError})
	if got != EventAgentError {
		t.Fatalf("got %q", got)
	}
	NoopEventEmitter{}.Emit(context.Background(), Event{})
}
