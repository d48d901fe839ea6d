// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("expected default max iterations 10, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.TurnTimeout != 60*time.Second {
		t.Errorf("expected default turn timeout 60s, got %s", cfg.Agent.TurnTimeout)
	}
	if !cfg.Agent.IncludeRules {
		t.Errorf("rules should be disclosed by default")
	}
	if cfg.LLM.Retry.MaxAttempts != 1 {
		t.Errorf("retries should be off by default, got %d attempts", cfg.LLM.Retry.MaxAttempts)
	}
	if cfg.Telemetry.Exporter != "none" {
		t.Errorf("expected telemetry exporter none, got %s", cfg.Telemetry.Exporter)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("POLICYAGENT_LLM_PROVIDER", "ollama")
	t.Setenv("POLICYAGENT_AGENT_MAX_ITERATIONS", "4")
	t.Setenv("POLICYAGENT_AGENT_INCLUDE_RULES", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider ollama from env, got %s", cfg.LLM.Provider)
	}
	if cfg.Agent.MaxIterations != 4 {
		t.Errorf("expected max iterations 4 from env, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.IncludeRules {
		t.Errorf("expected include_rules=false from env")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policyagent.yaml")
	content := `
llm:
  provider: mock
agent:
  max_iterations: 3
  turn_timeout: 5s
  strict_actions: true
governance:
  denied_tools: ["shopping.*"]
  policies:
    - id: no-state
      tool: check_state
      reason: State inspection is disabled
weather:
  seed: 42
  sequence: [raining, sunny]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "mock" || cfg.Agent.MaxIterations != 3 || !cfg.Agent.StrictActions {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Agent.TurnTimeout != 5*time.Second {
		t.Fatalf("turn timeout = %s", cfg.Agent.TurnTimeout)
	}
	want := []PolicyRuleConfig{{ID: "no-state", Tool: "check_state", Reason: "State inspection is disabled"}}
	if diff := cmp.Diff(want, cfg.Governance.Policies); diff != "" {
		t.Fatalf("policies (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"shopping.*"}, cfg.Governance.DeniedTools); diff != "" {
		t.Fatalf("denied tools (-want +got):\n%s", diff)
	}
	if cfg.Weather.Seed != 42 {
		t.Fatalf("weather seed = %d", cfg.Weather.Seed)
	}
	if diff := cmp.Diff([]string{"raining", "sunny"}, cfg.Weather.Sequence); diff != "" {
		t.Fatalf("weather sequence (-want +got):\n%s", diff)
	}
	// Untouched keys keep their defaults.
	if cfg.Log.Level != "info" {
		t.Fatalf("log level = %s", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWithOverrides(t *testing.T) {
	t.Setenv("POLICYAGENT_LLM_PROVIDER", "ollama")

	cfg, err := LoadWithOverrides("", []string{
		"llm.provider=mock",
		"agent.max_iterations=7",
		"audit.enabled=true",
		"governance.allowed_tools=weather.*,state.*",
	})
	if err != nil {
		t.Fatalf("LoadWithOverrides failed: %v", err)
	}
	if cfg.LLM.Provider != "mock" {
		t.Fatalf("overrides must win over env, got %s", cfg.LLM.Provider)
	}
	if cfg.Agent.MaxIterations != 7 || !cfg.Audit.Enabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"weather.*", "state.*"}, cfg.Governance.AllowedTools); diff != "" {
		t.Fatalf("allowed tools (-want +got):\n%s", diff)
	}
}

func TestParseOverrideErrors(t *testing.T) {
	for _, raw := range []string{"invalid", "=value", ""} {
		if _, _, err := parseOverride(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"POLICYAGENT_LLM_PROVIDER":             "llm.provider",
		"POLICYAGENT_AGENT_MAX_ITERATIONS":     "agent.max_iterations",
		"POLICYAGENT_LOG":                      "log",
		"POLICYAGENT_LLM_RETRY_MAX_ATTEMPTS":   "llm.retry.max_attempts",
		"POLICYAGENT_TELEMETRY_OTLP_ENDPOINT":  "telemetry.otlp_endpoint",
		"POLICYAGENT_GOVERNANCE_ALLOWED_TOOLS": "governance.allowed_tools",
		"POLICYAGENT_LLM_API_KEY":              "llm.api_key",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadEnvNestedAndLists(t *testing.T) {
	t.Setenv("POLICYAGENT_LLM_RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("POLICYAGENT_TELEMETRY_OTLP_INSECURE", "false")
	t.Setenv("POLICYAGENT_GOVERNANCE_ALLOWED_TOOLS", "weather.*, state.*")
	t.Setenv("POLICYAGENT_WEATHER_SEQUENCE", "snowing")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 retry attempts from env, got %d", cfg.LLM.Retry.MaxAttempts)
	}
	if cfg.Telemetry.OTLPInsecure {
		t.Errorf("expected otlp_insecure=false from env")
	}
	if diff := cmp.Diff([]string{"weather.*", "state.*"}, cfg.Governance.AllowedTools); diff != "" {
		t.Errorf("allowed tools (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"snowing"}, cfg.Weather.Sequence); diff != "" {
		t.Errorf("weather sequence (-want +got):\n%s", diff)
	}
}

func TestTypedValue(t *testing.T) {
	tests := []struct {
		key, value string
		want       any
	}{
		{"governance.denied_tools", "a, b,,c", []string{"a", "b", "c"}},
		{"weather.sequence", "sunny", []string{"sunny"}},
		{"llm.model", "a,b", "a,b"},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, typedValue(tt.key, tt.value)); diff != "" {
			t.Errorf("typedValue(%q, %q) (-want +got):\n%s", tt.key, tt.value, diff)
		}
	}
}
