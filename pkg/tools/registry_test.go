// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jllopis/policyagent/pkg/audit"
	"github.com/jllopis/policyagent/pkg/core"
	"github.com/jllopis/policyagent/pkg/errors"
	"github.com/jllopis/policyagent/pkg/governance"
	"github.com/jllopis/policyagent/pkg/world"
)

type stubTool struct {
	name, category string
	text           string
	err            error
	calls          int
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Category() string    { return s.category }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Execute(context.Context, map[string]any) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestResolve(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Builtin(world.New(), nil, NewFixedWeather())...); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		action string
		want   string
	}{
		{"weather.check_weather", "weather.check_weather"},
		{"check_weather", "weather.check_weather"},
		{"  shopping  ", "shopping.shopping"},
		{"state.check_state", "state.check_state"},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			tool, err := reg.Resolve(tt.action)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if FullName(tool) != tt.want {
				t.Fatalf("resolved %s, want %s", FullName(tool), tt.want)
			}
		})
	}
}

func TestResolveFailures(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(Builtin(world.New(), nil, NewFixedWeather())...)
	_ = reg.Register(&stubTool{name: "check_state", category: "debug"})

	for _, action := range []string{"", "fly", "weather.fly", "activity.check_weather", "check_state", ".check_state"} {
		t.Run(action, func(t *testing.T) {
			_, err := reg.Resolve(action)
			if !errors.HasCode(err, errors.CodeUnknownAction) {
				t.Fatalf("expected UNKNOWN_ACTION, got %v", err)
			}
		})
	}

	var ae *errors.AgentError
	_, err := reg.Resolve("check_state")
	if !stderrors.As(err, &ae) {
		t.Fatalf("expected AgentError")
	}
	if diff := cmp.Diff([]string{"debug.check_state", "state.check_state"}, ae.Context["candidates"]); diff != "" {
		t.Fatalf("candidates (-want +got):\n%s", diff)
	}
	if !ae.Recoverable {
		t.Fatalf("unknown actions are recoverable")
	}
}

func TestStrictNamespaces(t *testing.T) {
	reg := NewRegistry(WithStrictNamespaces())
	_ = reg.Register(Builtin(world.New(), nil, NewFixedWeather())...)

	if _, err := reg.Resolve("check_weather"); !errors.HasCode(err, errors.CodeUnknownAction) {
		t.Fatalf("bare names must fail in strict mode, got %v", err)
	}
	if _, err := reg.Resolve("weather.check_weather"); err != nil {
		t.Fatalf("namespaced name should resolve: %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&stubTool{name: "a", category: "x"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(&stubTool{name: "a", category: "x"}); err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestToolFilterHidesTools(t *testing.T) {
	filter := governance.NewToolFilter(governance.WithDenylist([]string{"shopping.*"}))
	reg, err := NewWorldRegistry(world.New(), nil, NewFixedWeather(), WithToolFilter(filter))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	want := []string{"weather.check_weather", "activity.choose_activity", "state.check_state"}
	if diff := cmp.Diff(want, reg.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	if _, err := reg.Resolve("shopping.shopping"); err == nil {
		t.Fatal("filtered tool should not resolve")
	}
}

func TestDescribe(t *testing.T) {
	_, reg := newWorld(t)
	want := "weather.check_weather: Check the current weather condition. Returns a random weather condition.\n" +
		"shopping.shopping: Purchase an item and add it to your inventory. Available items: TV, Xbox, Hiking Boots, Goggles, Sunscreen\n" +
		"activity.choose_activity: Choose an activity from: 'Play games', 'Go Camping', or 'Swimming'. The choice will be validated against business rules.\n" +
		"state.check_state: Check the current state including inventory, weather, and chosen activity."
	if diff := cmp.Diff(want, reg.Describe()); diff != "" {
		t.Fatalf("describe (-want +got):\n%s", diff)
	}
}

func TestInvokeToolFailure(t *testing.T) {
	boom := stderrors.New("disk on fire")
	reg := NewRegistry()
	_ = reg.Register(&stubTool{name: "broken", category: "debug", err: boom})

	_, err := reg.Invoke(context.Background(), "debug.broken", nil)
	if !errors.HasCode(err, errors.CodeToolFailure) || !stderrors.Is(err, boom) {
		t.Fatalf("expected TOOL_FAILURE wrapping cause, got %v", err)
	}
}

func TestInvokeClassifiesPlainTools(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(
		&stubTool{name: "ok", category: "t", text: "fine"},
		&stubTool{name: "deny", category: "t", text: ViolationPrefix + "nope"},
		&stubTool{name: "bad", category: "t", text: "❌ Invalid thing"},
	)
	want := map[string]audit.Outcome{
		"t.ok":   audit.OutcomeSuccess,
		"t.deny": audit.OutcomePolicyViolation,
		"t.bad":  audit.OutcomeInvalidInput,
	}
	for action, outcome := range want {
		obs, err := reg.Invoke(context.Background(), action, nil)
		if err != nil {
			t.Fatalf("%s: %v", action, err)
		}
		if obs.Outcome != outcome {
			t.Errorf("%s outcome = %q, want %q", action, obs.Outcome, outcome)
		}
	}
}

func TestInvokeRecordsAudit(t *testing.T) {
	store := audit.NewMemoryStore()
	state := world.New()
	reg, err := NewWorldRegistry(state, nil, NewFixedWeather(world.WeatherSunny), WithAuditStore(store))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	ctx := core.WithRunID(context.Background(), "run-audit")

	_, _ = reg.Invoke(ctx, "weather.check_weather", nil)
	_, _ = reg.Invoke(ctx, "weather.check_weather", nil)
	_, _ = reg.Invoke(ctx, "teleport", nil)

	recs, err := store.List(context.Background(), audit.Filter{RunID: "run-audit"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := make([]audit.Outcome, len(recs))
	for i, r := range recs {
		got[i] = r.Outcome
	}
	want := []audit.Outcome{audit.OutcomeSuccess, audit.OutcomePolicyViolation, audit.OutcomeUnknownAction}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("outcomes (-want +got):\n%s", diff)
	}
	if recs[1].RuleID != governance.RuleWeatherRecheck {
		t.Fatalf("rule id = %q", recs[1].RuleID)
	}
}

func TestWeatherSources(t *testing.T) {
	fixed := NewFixedWeather(world.WeatherRaining, world.WeatherSnowing)
	got := []world.Weather{fixed.Next(), fixed.Next(), fixed.Next()}
	if diff := cmp.Diff([]world.Weather{world.WeatherRaining, world.WeatherSnowing, world.WeatherRaining}, got); diff != "" {
		t.Fatalf("fixed sequence (-want +got):\n%s", diff)
	}
	if NewFixedWeather().Next() != world.WeatherSunny {
		t.Fatal("empty fixed source should yield sunny")
	}

	a, b := NewRandomWeather(7), NewRandomWeather(7)
	seen := map[world.Weather]bool{}
	for i := 0; i < 50; i++ {
		wa, wb := a.Next(), b.Next()
		if wa != wb {
			t.Fatalf("same seed diverged at draw %d: %s vs %s", i, wa, wb)
		}
		if wa == world.WeatherUnknown {
			t.Fatal("random weather must be a known condition")
		}
		seen[wa] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all three conditions over 50 draws, saw %v", seen)
	}
}
