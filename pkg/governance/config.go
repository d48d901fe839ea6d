// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"fmt"
	"strings"

	"github.com/jllopis/policyagent/pkg/config"
)

// RuleSetFromConfig builds the default rule set extended with the configured
// tool policies.
func RuleSetFromConfig(cfg config.GovernanceConfig) *RuleSet {
	policies := make([]ToolPolicy, 0, len(cfg.Policies))
	for i, p := range cfg.Policies {
		if strings.TrimSpace(p.Tool) == "" {
			continue
		}
		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = fmt.Sprintf("policy-%d", i+1)
		}
		effect := EffectDeny
		if strings.EqualFold(p.Effect, string(EffectAllow)) {
			effect = EffectAllow
		}
		policies = append(policies, ToolPolicy{
			ID:     id,
			Effect: effect,
			Tool:   p.Tool,
			Reason: p.Reason,
		})
	}
	return NewRuleSet(WithToolPolicies(policies...))
}

// ToolFilterFromConfig builds the exposure filter from config lists.
func ToolFilterFromConfig(cfg config.GovernanceConfig) *ToolFilter {
	return NewToolFilter(WithAllowlist(cfg.AllowedTools), WithDenylist(cfg.DeniedTools))
}
