// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/jllopis/policyagent/pkg/audit"
	"github.com/jllopis/policyagent/pkg/governance"
	"github.com/jllopis/policyagent/pkg/world"
)

func newWorld(t *testing.T, weather ...world.Weather) (*world.State, *Registry) {
	t.Helper()
	state := world.New()
	reg, err := NewWorldRegistry(state, governance.NewRuleSet(), NewFixedWeather(weather...))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return state, reg
}

func invoke(t *testing.T, reg *Registry, action string, params map[string]any) Observation {
	t.Helper()
	obs, err := reg.Invoke(context.Background(), action, params)
	if err != nil {
		t.Fatalf("%s: %v", action, err)
	}
	return obs
}

func TestScenarioGamingEquipment(t *testing.T) {
	state, reg := newWorld(t)

	obs := invoke(t, reg, "activity.choose_activity", map[string]any{"activity": "Play games"})
	if obs.Outcome != audit.OutcomePolicyViolation {
		t.Fatalf("expected violation, got %+v", obs)
	}
	if !strings.HasPrefix(obs.Text, ViolationPrefix) || !strings.Contains(obs.Text, "TV") || !strings.Contains(obs.Text, "Xbox") {
		t.Fatalf("denial should name both items: %q", obs.Text)
	}

	invoke(t, reg, "shopping.shopping", map[string]any{"item": "tv"})
	invoke(t, reg, "shopping.shopping", map[string]any{"item": "XBOX"})

	obs = invoke(t, reg, "activity.choose_activity", map[string]any{"activity": "Play games"})
	if obs.Outcome != audit.OutcomeSuccess {
		t.Fatalf("expected success, got %q", obs.Text)
	}
	if state.Activity() != world.ActivityPlayGames {
		t.Fatalf("activity = %q", state.Activity())
	}
}

func TestScenarioWeatherOnce(t *testing.T) {
	state, reg := newWorld(t, world.WeatherRaining)

	obs := invoke(t, reg, "weather.check_weather", map[string]any{})
	found := false
	for _, w := range world.KnownWeather() {
		if strings.Contains(obs.Text, string(w)) {
			found = true
		}
	}
	if !found || !strings.Contains(obs.Text, "Known and checked") {
		t.Fatalf("unexpected weather observation %q", obs.Text)
	}
	if state.Weather() != world.WeatherRaining || !state.WeatherChecked() {
		t.Fatalf("state not updated: %s", state.Weather())
	}

	obs = invoke(t, reg, "weather.check_weather", map[string]any{})
	if obs.Outcome != audit.OutcomePolicyViolation || !strings.Contains(obs.Text, "already been checked") {
		t.Fatalf("second check should be denied, got %q", obs.Text)
	}
	if obs.RuleID != governance.RuleWeatherRecheck {
		t.Fatalf("rule id = %q", obs.RuleID)
	}
}

func TestScenarioCampingWeather(t *testing.T) {
	state, reg := newWorld(t)

	invoke(t, reg, "shopping.shopping", map[string]any{"item": "Hiking Boots"})
	state.SetWeather(world.WeatherRaining)

	obs := invoke(t, reg, "activity.choose_activity", map[string]any{"activity": "Go Camping"})
	if obs.Outcome != audit.OutcomePolicyViolation || !strings.Contains(obs.Text, "raining") {
		t.Fatalf("expected raining denial, got %q", obs.Text)
	}
	if state.Activity() != world.ActivityNone {
		t.Fatalf("denied choice must not mutate state")
	}

	state.SetWeather(world.WeatherSunny)
	obs = invoke(t, reg, "activity.choose_activity", map[string]any{"activity": "Go Camping"})
	if obs.Outcome != audit.OutcomeSuccess {
		t.Fatalf("expected success, got %q", obs.Text)
	}
	if state.Activity() != world.ActivityGoCamping {
		t.Fatalf("activity = %q", state.Activity())
	}
}

func TestShoppingInputErrors(t *testing.T) {
	state, reg := newWorld(t)

	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"missing item", map[string]any{}, "❌ No item specified for purchase."},
		{"blank item", map[string]any{"item": "  "}, "❌ No item specified for purchase."},
		{"unknown item", map[string]any{"item": "Laptop"}, "❌ Invalid item 'Laptop'. Available items: TV, Xbox, Hiking Boots, Goggles, Sunscreen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := invoke(t, reg, "shopping.shopping", tt.params)
			if obs.Text != tt.want {
				t.Fatalf("got %q, want %q", obs.Text, tt.want)
			}
			if obs.Outcome != audit.OutcomeInvalidInput {
				t.Fatalf("outcome = %q", obs.Outcome)
			}
		})
	}
	if len(state.History()) != 0 {
		t.Fatalf("failed purchases must not be recorded")
	}
}

func TestShoppingListsInventory(t *testing.T) {
	_, reg := newWorld(t)
	invoke(t, reg, "shopping.shopping", map[string]any{"item": "xbox"})
	obs := invoke(t, reg, "shopping.shopping", map[string]any{"item": "goggles"})
	want := "🛒 Successfully purchased: Goggles. Added to inventory!\n📊 Current inventory: Goggles, Xbox"
	if obs.Text != want {
		t.Fatalf("got %q, want %q", obs.Text, want)
	}
}

func TestShoppingAcceptsDegradedInput(t *testing.T) {
	state, reg := newWorld(t)
	invoke(t, reg, "shopping.shopping", map[string]any{"input": `"Sunscreen"`})
	if !state.HasItem("sunscreen") {
		t.Fatalf("raw input fallback should purchase the item")
	}
}

func TestChooseActivityValidatesBeforeRules(t *testing.T) {
	_, reg := newWorld(t)

	obs := invoke(t, reg, "activity.choose_activity", map[string]any{"activity": "Skiing"})
	if obs.Outcome != audit.OutcomeInvalidInput {
		t.Fatalf("invalid activity must be an input error, got %+v", obs)
	}
	if obs.Text != "❌ Invalid activity. Choose from: Play games, Go Camping, Swimming" {
		t.Fatalf("unexpected text %q", obs.Text)
	}

	obs = invoke(t, reg, "activity.choose_activity", map[string]any{})
	if obs.Text != "❌ No activity specified." {
		t.Fatalf("unexpected text %q", obs.Text)
	}
}

func TestChooseActivitySuccessMessage(t *testing.T) {
	state, reg := newWorld(t)
	_, _ = state.AddToInventory("goggles")
	state.SetWeather(world.WeatherSunny)

	obs := invoke(t, reg, "activity.choose_activity", map[string]any{"activity": "swimming"})
	want := "🎯 Activity chosen: Swimming! Have fun!\n📊 Current activity: Swimming\n📊 Current inventory: Goggles"
	if obs.Text != want {
		t.Fatalf("got %q, want %q", obs.Text, want)
	}
}

func TestChosenActivityOnlyReplacedBySuccess(t *testing.T) {
	state, reg := newWorld(t)
	_, _ = state.AddToInventory("tv")
	_, _ = state.AddToInventory("xbox")
	invoke(t, reg, "activity.choose_activity", map[string]any{"activity": "Play games"})

	invoke(t, reg, "activity.choose_activity", map[string]any{"activity": "Swimming"})
	if state.Activity() != world.ActivityPlayGames {
		t.Fatalf("denied choice replaced the activity: %q", state.Activity())
	}
}

func TestCheckStateIsReadOnlyAndIdempotent(t *testing.T) {
	state, reg := newWorld(t)
	_, _ = state.AddToInventory("tv")
	first := invoke(t, reg, "state.check_state", nil)
	for i := 0; i < 3; i++ {
		if got := invoke(t, reg, "check_state", nil); got.Text != first.Text {
			t.Fatalf("inspection %d differs:\n%s\n---\n%s", i, first.Text, got.Text)
		}
	}
	if !strings.HasPrefix(first.Text, "📊 **Current Agent State:**") {
		t.Fatalf("unexpected state text %q", first.Text)
	}
}

func TestConfiguredPolicyBlocksPurchase(t *testing.T) {
	state := world.New()
	engine := governance.NewRuleSet(governance.WithToolPolicies(governance.ToolPolicy{
		ID: "closed", Effect: governance.EffectDeny, Tool: "shopping.*", Reason: "The shop is closed",
	}))
	reg, err := NewWorldRegistry(state, engine, NewFixedWeather())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	obs := invoke(t, reg, "shopping", map[string]any{"item": "tv"})
	if obs.Text != ViolationPrefix+"The shop is closed" || obs.RuleID != "closed" {
		t.Fatalf("unexpected observation %+v", obs)
	}
	if state.HasItem("tv") {
		t.Fatalf("blocked purchase mutated state")
	}
}

func TestExecuteMatchesObserve(t *testing.T) {
	state := world.New()
	for _, tool := range Builtin(state, nil, NewFixedWeather(world.WeatherSnowing)) {
		if FullName(tool) != "weather.check_weather" {
			continue
		}
		text, err := tool.Execute(context.Background(), nil)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if !strings.Contains(text, "snowing") {
			t.Fatalf("unexpected text %q", text)
		}
	}
}
