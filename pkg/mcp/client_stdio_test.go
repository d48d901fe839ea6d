// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/policyagent/pkg/audit"
	"github.com/jllopis/policyagent/pkg/governance"
	"github.com/jllopis/policyagent/pkg/tools"
	"github.com/jllopis/policyagent/pkg/world"
)

const mcpStdioHelperEnv = "POLICYAGENT_MCP_STDIO_HELPER"

func TestHelperMCPStdioServer(t *testing.T) {
	if os.Getenv(mcpStdioHelperEnv) != "1" {
		return
	}

	state := world.New()
	reg, err := tools.NewWorldRegistry(state, governance.NewRuleSet(), tools.NewFixedWeather(world.WeatherRaining))
	if err != nil {
		os.Exit(1)
	}
	if err := NewServer("test-stdio", "1.0.0", reg).ServeStdio(); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func TestClientStdioRemoteTools(t *testing.T) {
	t.Setenv(mcpStdioHelperEnv, "1")

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := NewClientWithStdio(ctx, exe, []string{"-test.run", "TestHelperMCPStdioServer"})
	if err != nil {
		t.Fatalf("NewClientWithStdio error: %v", err)
	}
	defer client.Close()

	remote, err := RemoteTools(ctx, client)
	if err != nil {
		t.Fatalf("RemoteTools error: %v", err)
	}
	reg := tools.NewRegistry()
	if err := reg.Register(remote...); err != nil {
		t.Fatalf("register: %v", err)
	}
	names := strings.Join(reg.Names(), ",")
	for _, want := range []string{"weather.check_weather", "shopping.shopping", "activity.choose_activity", "state.check_state"} {
		if !strings.Contains(names, want) {
			t.Fatalf("remote tool %s missing from %s", want, names)
		}
	}

	obs, err := reg.Invoke(ctx, "shopping", map[string]any{"item": "Hiking Boots"})
	if err != nil || obs.Outcome != audit.OutcomeSuccess {
		t.Fatalf("remote purchase: %+v, %v", obs, err)
	}
	_, _ = reg.Invoke(ctx, "check_weather", nil)
	obs, err = reg.Invoke(ctx, "choose_activity", map[string]any{"activity": "Go Camping"})
	if err != nil {
		t.Fatalf("remote choose: %v", err)
	}
	if obs.Outcome != audit.OutcomePolicyViolation || !strings.Contains(obs.Text, "raining") {
		t.Fatalf("expected remote raining denial, got %+v", obs)
	}

	obs, err = reg.Invoke(ctx, "check_state", nil)
	if err != nil || !strings.Contains(obs.Text, "Hiking Boots") {
		t.Fatalf("remote state should hold the purchase: %+v, %v", obs, err)
	}
}
