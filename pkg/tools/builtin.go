// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/jllopis/policyagent/pkg/audit"
	"github.com/jllopis/policyagent/pkg/governance"
	"github.com/jllopis/policyagent/pkg/world"
)

// Builtin returns the four world tools bound to state. engine guards every
// mutation; weather supplies check_weather results.
func Builtin(state *world.State, engine governance.Engine, weather WeatherSource) []Tool {
	if engine == nil {
		engine = governance.NewRuleSet()
	}
	if weather == nil {
		weather = NewRandomWeather(0)
	}
	b := binding{state: state, engine: engine}
	return []Tool{
		&CheckWeatherTool{binding: b, source: weather},
		&ShoppingTool{binding: b},
		&ChooseActivityTool{binding: b},
		&CheckStateTool{binding: b},
	}
}

// NewWorldRegistry returns a registry holding the built-in tools.
func NewWorldRegistry(state *world.State, engine governance.Engine, weather WeatherSource, opts ...Option) (*Registry, error) {
	r := NewRegistry(opts...)
	if err := r.Register(Builtin(state, engine, weather)...); err != nil {
		return nil, err
	}
	return r, nil
}

type binding struct {
	state  *world.State
	engine governance.Engine
}

func (b binding) execute(ctx context.Context, o Observer, params map[string]any) (string, error) {
	obs, err := o.Observe(ctx, params)
	return obs.Text, err
}

// CheckWeatherTool reveals the weather once.
type CheckWeatherTool struct {
	binding
	source WeatherSource
}

func (t *CheckWeatherTool) Name() string     { return "check_weather" }
func (t *CheckWeatherTool) Category() string { return "weather" }
func (t *CheckWeatherTool) Description() string {
	return "Check the current weather condition. Returns a random weather condition."
}

func (t *CheckWeatherTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	return t.execute(ctx, t, params)
}

func (t *CheckWeatherTool) Observe(_ context.Context, _ map[string]any) (Observation, error) {
	if d := t.engine.CheckToolRules(t.state, FullName(t)); d.IsDenied() {
		return denied(d), nil
	}
	if t.state.WeatherChecked() && t.state.Weather() != world.WeatherUnknown {
		return Observation{
			Text:    fmt.Sprintf("🌤️ Weather already checked! Current weather: %s\n📊 Weather status: Known and checked", t.state.Weather()),
			Outcome: audit.OutcomeSuccess,
		}, nil
	}
	w := t.source.Next()
	t.state.SetWeather(w)
	return Observation{
		Text:    fmt.Sprintf("🌤️ Weather check complete! Current weather: %s\n📊 Weather status: Known and checked", w),
		Outcome: audit.OutcomeSuccess,
	}, nil
}

// ShoppingTool adds a catalog item to the inventory.
type ShoppingTool struct {
	binding
}

func (t *ShoppingTool) Name() string     { return "shopping" }
func (t *ShoppingTool) Category() string { return "shopping" }
func (t *ShoppingTool) Description() string {
	return "Purchase an item and add it to your inventory. Available items: " + catalogList()
}

func (t *ShoppingTool) Parameters() []Parameter {
	return []Parameter{{Name: "item", Description: "The item to purchase: " + catalogList(), Required: true}}
}

func (t *ShoppingTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	return t.execute(ctx, t, params)
}

func (t *ShoppingTool) Observe(_ context.Context, params map[string]any) (Observation, error) {
	raw := stringParam(params, "item")
	if raw == "" {
		return invalid("❌ No item specified for purchase."), nil
	}
	item, ok := world.CanonicalItem(raw)
	if !ok {
		return invalid(fmt.Sprintf("❌ Invalid item '%s'. Available items: %s", raw, catalogList())), nil
	}
	if d := t.engine.CheckToolRules(t.state, FullName(t)); d.IsDenied() {
		return denied(d), nil
	}
	if _, err := t.state.AddToInventory(string(item)); err != nil {
		return Observation{}, err
	}
	return Observation{
		Text: fmt.Sprintf("🛒 Successfully purchased: %s. Added to inventory!\n📊 Current inventory: %s",
			item, t.state.Snapshot().InventoryString()),
		Outcome: audit.OutcomeSuccess,
	}, nil
}

// ChooseActivityTool sets the chosen activity when the rules allow it.
type ChooseActivityTool struct {
	binding
}

func (t *ChooseActivityTool) Name() string     { return "choose_activity" }
func (t *ChooseActivityTool) Category() string { return "activity" }
func (t *ChooseActivityTool) Description() string {
	return "Choose an activity from: 'Play games', 'Go Camping', or 'Swimming'. The choice will be validated against business rules."
}

func (t *ChooseActivityTool) Parameters() []Parameter {
	return []Parameter{{Name: "activity", Description: "The activity to choose: 'Play games', 'Go Camping', or 'Swimming'", Required: true}}
}

func (t *ChooseActivityTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	return t.execute(ctx, t, params)
}

func (t *ChooseActivityTool) Observe(_ context.Context, params map[string]any) (Observation, error) {
	raw := stringParam(params, "activity")
	if raw == "" {
		return invalid("❌ No activity specified."), nil
	}
	activity, ok := world.ParseActivity(raw)
	if !ok {
		return invalid("❌ Invalid activity. Choose from: " + activityList()), nil
	}
	if d := t.engine.CheckActivityRules(t.state, activity); d.IsDenied() {
		return denied(d), nil
	}
	if d := t.engine.CheckToolRules(t.state, FullName(t)); d.IsDenied() {
		return denied(d), nil
	}
	t.state.SetActivity(activity)
	return Observation{
		Text: fmt.Sprintf("🎯 Activity chosen: %s! Have fun!\n📊 Current activity: %s\n📊 Current inventory: %s",
			activity, activity, t.state.Snapshot().InventoryString()),
		Outcome: audit.OutcomeSuccess,
	}, nil
}

// CheckStateTool reports the state. It never consults the rules.
type CheckStateTool struct {
	binding
}

func (t *CheckStateTool) Name() string     { return "check_state" }
func (t *CheckStateTool) Category() string { return "state" }
func (t *CheckStateTool) Description() string {
	return "Check the current state including inventory, weather, and chosen activity."
}

func (t *CheckStateTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	return t.execute(ctx, t, params)
}

func (t *CheckStateTool) Observe(_ context.Context, _ map[string]any) (Observation, error) {
	return Observation{Text: t.state.Snapshot().String(), Outcome: audit.OutcomeSuccess}, nil
}

func denied(d governance.Decision) Observation {
	return Observation{Text: violation(d.Reason), Outcome: audit.OutcomePolicyViolation, RuleID: d.RuleID}
}

func invalid(text string) Observation {
	return Observation{Text: text, Outcome: audit.OutcomeInvalidInput}
}

// stringParam reads key, falling back to the synthetic "input" key produced
// when the model sent non-JSON action input.
func stringParam(params map[string]any, key string) string {
	for _, k := range []string{key, "input"} {
		v, ok := params[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		default:
			s = fmt.Sprint(tv)
		}
		if s = strings.TrimSpace(s); s != "" {
			return strings.Trim(s, `"'`)
		}
	}
	return ""
}

func catalogList() string {
	names := make([]string, 0, 5)
	for _, it := range world.Catalog() {
		names = append(names, string(it))
	}
	return strings.Join(names, ", ")
}

func activityList() string {
	names := make([]string, 0, 3)
	for _, a := range world.Activities() {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}
