// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"strings"
	"testing"

	"github.com/jllopis/policyagent/pkg/config"
	"github.com/jllopis/policyagent/pkg/world"
)

func TestRuleSetFromConfig(t *testing.T) {
	cfg := config.GovernanceConfig{
		Policies: []config.PolicyRuleConfig{
			{ID: "deny-shopping", Effect: "deny", Tool: "shopping.*", Reason: "Purchases are disabled"},
			{Effect: "deny", Tool: "check_state"},
			{ID: "empty-tool"},
		},
	}
	engine := RuleSetFromConfig(cfg)
	if got := len(engine.Policies()); got != 2 {
		t.Fatalf("expected 2 policies, got %d", got)
	}

	s := world.New()
	decision := engine.CheckToolRules(s, "shopping.shopping")
	if decision.Allowed {
		t.Fatalf("expected denied decision")
	}
	if decision.RuleID != "deny-shopping" {
		t.Fatalf("unexpected rule id: %s", decision.RuleID)
	}

	decision = engine.CheckToolRules(s, "state.check_state")
	if decision.Allowed || decision.RuleID != "policy-2" {
		t.Fatalf("expected generated policy id, got %+v", decision)
	}

	if !strings.Contains(engine.Describe(), "Purchases are disabled") {
		t.Fatalf("configured deny reasons should be disclosed:\n%s", engine.Describe())
	}
}

func TestRuleSetFromConfig_BuiltinRuleRunsFirst(t *testing.T) {
	cfg := config.GovernanceConfig{
		Policies: []config.PolicyRuleConfig{
			{ID: "allow-all", Effect: "allow", Tool: "*"},
		},
	}
	engine := RuleSetFromConfig(cfg)
	s := world.New()
	s.SetWeather(world.WeatherSunny)

	decision := engine.CheckToolRules(s, "weather.check_weather")
	if decision.Allowed || decision.RuleID != RuleWeatherRecheck {
		t.Fatalf("allow policy must not override the weather-recheck rule: %+v", decision)
	}
}

func TestToolFilterFromConfig(t *testing.T) {
	filter := ToolFilterFromConfig(config.GovernanceConfig{DeniedTools: []string{"shopping.*"}})
	if filter.IsAllowed("shopping.shopping").IsAllowed() {
		t.Fatal("expected shopping to be filtered")
	}
}
