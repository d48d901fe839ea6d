// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads agent configuration from defaults, an optional YAML
// file, POLICYAGENT_ environment variables and explicit key=value overrides,
// in that order of precedence (later wins).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. The rest of the name is
// matched against the known keys with dots written as underscores:
// POLICYAGENT_AGENT_MAX_ITERATIONS -> agent.max_iterations,
// POLICYAGENT_LLM_RETRY_MAX_ATTEMPTS -> llm.retry.max_attempts.
const EnvPrefix = "POLICYAGENT_"

// listKeys hold string lists. Environment and --set values for them are
// comma-separated.
var listKeys = map[string]bool{
	"governance.allowed_tools": true,
	"governance.denied_tools":  true,
	"weather.sequence":         true,
}

// knownKeys are the scalar and list keys reachable from the environment.
var knownKeys = func() map[string]string {
	keys := map[string]string{}
	add := func(k string) { keys[strings.ReplaceAll(k, ".", "_")] = k }
	for k := range defaults() {
		add(k)
	}
	for k := range listKeys {
		add(k)
	}
	add("llm.api_key")
	add("agent.instructions")
	return keys
}()

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	LLM        LLMConfig        `koanf:"llm"`
	Agent      AgentConfig      `koanf:"agent"`
	Governance GovernanceConfig `koanf:"governance"`
	Audit      AuditConfig      `koanf:"audit"`
	Weather    WeatherConfig    `koanf:"weather"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type LLMConfig struct {
	Provider    string        `koanf:"provider"` // mock, ollama, gemini, openai, anthropic
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
	Retry       RetryConfig   `koanf:"retry"`
	Timeout     time.Duration `koanf:"timeout"`
}

// RetryConfig controls the opt-in retry around opening a completion stream.
// MaxAttempts of 1 disables retries.
type RetryConfig struct {
	MaxAttempts  int           `koanf:"max_attempts"`
	InitialDelay time.Duration `koanf:"initial_delay"`
	MaxDelay     time.Duration `koanf:"max_delay"`
}

type AgentConfig struct {
	Name          string        `koanf:"name"`
	MaxIterations int           `koanf:"max_iterations"`
	TurnTimeout   time.Duration `koanf:"turn_timeout"`
	IncludeRules  bool          `koanf:"include_rules"`
	StrictActions bool          `koanf:"strict_actions"`
	Instructions  string        `koanf:"instructions"`
}

type GovernanceConfig struct {
	Policies     []PolicyRuleConfig `koanf:"policies"`
	AllowedTools []string           `koanf:"allowed_tools"`
	DeniedTools  []string           `koanf:"denied_tools"`
}

// PolicyRuleConfig is a tool-level policy. Tool is a glob over the full or
// short tool name; Effect is deny (default) or allow.
type PolicyRuleConfig struct {
	ID     string `koanf:"id"`
	Effect string `koanf:"effect"`
	Tool   string `koanf:"tool"`
	Reason string `koanf:"reason"`
}

type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	Backend string `koanf:"backend"` // memory, sqlite
}

type WeatherConfig struct {
	// Seed fixes the weather sequence; 0 seeds from the clock.
	Seed uint64 `koanf:"seed"`
	// Sequence, when set, replaces random draws with a fixed cycle.
	Sequence []string `koanf:"sequence"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":               "info",
		"log.format":              "text",
		"telemetry.exporter":      "none",
		"telemetry.otlp_endpoint": "localhost:4317",
		"telemetry.otlp_insecure": true,
		"llm.provider":            "gemini",
		"llm.model":               "gemini-2.0-flash",
		"llm.base_url":            "http://localhost:11434",
		"llm.temperature":         0.1,
		"llm.timeout":             "60s",
		"llm.retry.max_attempts":  1,
		"llm.retry.initial_delay": "500ms",
		"llm.retry.max_delay":     "5s",
		"agent.name":              "policy-enforcer",
		"agent.max_iterations":    10,
		"agent.turn_timeout":      "60s",
		"agent.include_rules":     true,
		"agent.strict_actions":    false,
		"audit.enabled":           false,
		"audit.backend":           "memory",
		"weather.seed":            0,
	}
}

// Load reads configuration from defaults, the YAML file at path (if any)
// and the environment.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load followed by explicit key=value overrides, as
// given to the CLI --set flag.
func LoadWithOverrides(path string, overrides []string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// 2. Load from ENV (POLICYAGENT_LLM_PROVIDER -> llm.provider)
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, err
	}

	// 3. Explicit overrides
	for _, raw := range overrides {
		key, value, err := parseOverride(raw)
		if err != nil {
			return nil, err
		}
		if err := k.Set(key, typedValue(key, value)); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if key, ok := knownKeys[s]; ok {
		return key
	}
	section, rest, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + rest
}

func envValue(name, value string) (string, any) {
	key := envKey(name)
	return key, typedValue(key, value)
}

// typedValue splits comma-separated values of list keys.
func typedValue(key, value string) any {
	if !listKeys[key] {
		return value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseOverride(raw string) (string, string, error) {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid override %q, expected key=value", raw)
	}
	return key, strings.TrimSpace(value), nil
}
