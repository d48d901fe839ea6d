// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"fmt"
	"strings"

	"github.com/jllopis/policyagent/pkg/world"
)

// IntentKind tags the variant of an ActionIntent.
type IntentKind string

const (
	IntentCheckWeather   IntentKind = "check_weather"
	IntentPurchase       IntentKind = "purchase"
	IntentChooseActivity IntentKind = "choose_activity"
	IntentInspectState   IntentKind = "inspect_state"
	// IntentTool is any other registered tool.
	IntentTool IntentKind = "tool"
)

// ActionIntent describes what the agent is about to do. Only the fields
// relevant to Kind are set.
type ActionIntent struct {
	Kind     IntentKind
	Activity world.Activity
	// Tool is the full tool name (category.name) when the intent comes from a
	// tool call.
	Tool string
}

// ChooseActivity is the intent evaluated by CheckActivityRules.
func ChooseActivity(a world.Activity) ActionIntent {
	return ActionIntent{Kind: IntentChooseActivity, Activity: a}
}

// Decision captures the outcome of a policy evaluation. Build one with
// Allow or Deny so that a reason is present exactly when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  string
	RuleID  string
}

// Allow returns a permitting decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a denial attributed to ruleID.
func Deny(ruleID, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, RuleID: ruleID}
}

// IsAllowed returns true when the decision permits the action.
func (d Decision) IsAllowed() bool { return d.Allowed }

// IsDenied returns true when the decision forbids the action.
func (d Decision) IsDenied() bool { return !d.Allowed }

// View is the read-only slice of world state rules may inspect.
type View interface {
	HasItem(name string) bool
	Missing(want ...world.Item) []world.Item
	Weather() world.Weather
	WeatherChecked() bool
}

// Concern groups rules by the contract that evaluates them.
type Concern string

const (
	ConcernActivity Concern = "activity"
	ConcernTool     Concern = "tool"
)

// Rule is a named pure predicate over world state and an intent. Rules that
// do not care about an intent variant return Allow.
type Rule struct {
	ID          string
	Name        string
	Description string
	Concern     Concern
	Check       func(View, ActionIntent) Decision
}

// Evaluate runs the rule, stamping its ID on denials.
func (r Rule) Evaluate(v View, intent ActionIntent) Decision {
	d := r.Check(v, intent)
	if d.Allowed {
		return Allow()
	}
	if d.RuleID == "" {
		d.RuleID = r.ID
	}
	return d
}

// Engine is what the tool registry consults before mutating state.
type Engine interface {
	CheckActivityRules(v View, activity world.Activity) Decision
	CheckToolRules(v View, tool string) Decision
}

// RuleSet evaluates rules in order and surfaces the first denial.
// It is immutable after construction and safe for concurrent use.
type RuleSet struct {
	rules    []Rule
	policies []ToolPolicy
}

// RuleSetOption configures a RuleSet.
type RuleSetOption func(*RuleSet)

// WithRules replaces the built-in rules.
func WithRules(rules ...Rule) RuleSetOption {
	return func(r *RuleSet) {
		r.rules = append([]Rule(nil), rules...)
	}
}

// WithToolPolicies appends glob-based tool policies evaluated after the
// built-in tool rules.
func WithToolPolicies(policies ...ToolPolicy) RuleSetOption {
	return func(r *RuleSet) {
		r.policies = append(r.policies, policies...)
	}
}

// NewRuleSet creates a rule set holding the default business rules.
func NewRuleSet(opts ...RuleSetOption) *RuleSet {
	r := &RuleSet{rules: DefaultRules()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckActivityRules runs the activity rules in order for choosing activity.
func (r *RuleSet) CheckActivityRules(v View, activity world.Activity) Decision {
	return r.evaluate(v, ChooseActivity(activity), ConcernActivity)
}

// CheckToolRules runs the tool-level rules, then configured tool policies,
// for a call to tool. tool may be a full (category.name) or short name.
func (r *RuleSet) CheckToolRules(v View, tool string) Decision {
	intent := IntentForTool(tool)
	if d := r.evaluate(v, intent, ConcernTool); d.IsDenied() {
		return d
	}
	for _, p := range r.policies {
		if d, matched := p.Evaluate(tool); matched {
			return d
		}
	}
	return Allow()
}

func (r *RuleSet) evaluate(v View, intent ActionIntent, concern Concern) Decision {
	for _, rule := range r.rules {
		if rule.Concern != concern {
			continue
		}
		if d := rule.Evaluate(v, intent); d.IsDenied() {
			return d
		}
	}
	return Allow()
}

// Rules returns the rule metadata in evaluation order.
func (r *RuleSet) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Policies returns the configured tool policies.
func (r *RuleSet) Policies() []ToolPolicy {
	return append([]ToolPolicy(nil), r.policies...)
}

// Describe renders the numbered business rules disclosed to the model.
func (r *RuleSet) Describe() string {
	var b strings.Builder
	b.WriteString("Business Rules:\n")
	n := 0
	for _, rule := range r.rules {
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, rule.Description)
	}
	for _, p := range r.policies {
		if p.Effect == EffectAllow || p.Reason == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, p.Reason)
	}
	return b.String()
}

var toolIntents = map[string]IntentKind{
	"check_weather":   IntentCheckWeather,
	"shopping":        IntentPurchase,
	"choose_activity": IntentChooseActivity,
	"check_state":     IntentInspectState,
}

// IntentForTool maps a tool name to the intent variant it performs.
func IntentForTool(tool string) ActionIntent {
	kind, ok := toolIntents[ShortName(tool)]
	if !ok {
		kind = IntentTool
	}
	return ActionIntent{Kind: kind, Tool: tool}
}

// ShortName strips the category from a category.name tool name.
func ShortName(tool string) string {
	if _, short, ok := strings.Cut(tool, "."); ok {
		return short
	}
	return tool
}
