// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"fmt"
	"strings"

	"github.com/jllopis/policyagent/pkg/world"
)

// Built-in rule IDs.
const (
	RuleGamingEquipment   = "gaming-equipment"
	RuleCampingEquipment  = "camping-equipment"
	RuleSwimmingEquipment = "swimming-equipment"
	RuleCampingWeather    = "camping-weather"
	RuleSwimmingWeather   = "swimming-weather"
	RuleUnknownWeather    = "unknown-weather"
	RuleWeatherRecheck    = "weather-recheck"
)

// DefaultRules returns the business rules in evaluation order. Activity
// rules come first; the first failing one determines the surfaced reason.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          RuleGamingEquipment,
			Name:        "Play Games Equipment Rule",
			Description: fmt.Sprintf("The user must have a %s and an %s before they can play games", world.ItemTV, world.ItemXbox),
			Concern:     ConcernActivity,
			Check:       requireItems(world.ActivityPlayGames, "Cannot play games", world.ItemTV, world.ItemXbox),
		},
		{
			ID:          RuleCampingEquipment,
			Name:        "Camping Equipment Rule",
			Description: fmt.Sprintf("The user must have %s before they can go camping", world.ItemHikingBoots),
			Concern:     ConcernActivity,
			Check:       requireItems(world.ActivityGoCamping, "Cannot go camping", world.ItemHikingBoots),
		},
		{
			ID:          RuleSwimmingEquipment,
			Name:        "Swimming Equipment Rule",
			Description: fmt.Sprintf("The user must have %s before they can go swimming", world.ItemGoggles),
			Concern:     ConcernActivity,
			Check:       requireItems(world.ActivitySwimming, "Cannot go swimming", world.ItemGoggles),
		},
		{
			ID:          RuleCampingWeather,
			Name:        "Camping Weather Rule",
			Description: "If the weather is raining, the user cannot go camping",
			Concern:     ConcernActivity,
			Check:       forbidWeather(world.ActivityGoCamping, world.WeatherRaining, "Cannot go camping because it's raining"),
		},
		{
			ID:          RuleSwimmingWeather,
			Name:        "Swimming Weather Rule",
			Description: "If the weather is snowing, the user cannot go swimming",
			Concern:     ConcernActivity,
			Check:       forbidWeather(world.ActivitySwimming, world.WeatherSnowing, "Cannot go swimming because it's snowing"),
		},
		{
			ID:          RuleUnknownWeather,
			Name:        "Unknown Weather Rule",
			Description: "If the weather is unknown, the user can only play games",
			Concern:     ConcernActivity,
			Check: func(v View, intent ActionIntent) Decision {
				if intent.Kind != IntentChooseActivity || intent.Activity == world.ActivityPlayGames {
					return Allow()
				}
				if v.Weather() == world.WeatherUnknown {
					return Deny(RuleUnknownWeather, "Weather is unknown. You can only play games until weather is checked")
				}
				return Allow()
			},
		},
		{
			ID:          RuleWeatherRecheck,
			Name:        "Weather Check Rule",
			Description: "If the weather is already known, the weather tool cannot be called again. Do not call weather tool twice.",
			Concern:     ConcernTool,
			Check: func(v View, intent ActionIntent) Decision {
				if intent.Kind != IntentCheckWeather {
					return Allow()
				}
				if v.WeatherChecked() && v.Weather() != world.WeatherUnknown {
					return Deny(RuleWeatherRecheck, "Weather has already been checked and is known. Cannot check weather again")
				}
				return Allow()
			},
		},
	}
}

func requireItems(activity world.Activity, prefix string, items ...world.Item) func(View, ActionIntent) Decision {
	return func(v View, intent ActionIntent) Decision {
		if intent.Kind != IntentChooseActivity || intent.Activity != activity {
			return Allow()
		}
		missing := v.Missing(items...)
		if len(missing) == 0 {
			return Allow()
		}
		names := make([]string, len(missing))
		for i, it := range missing {
			names[i] = string(it)
		}
		label := "item"
		if len(items) > 1 {
			label = "items"
		}
		return Deny("", fmt.Sprintf("%s. Missing required %s: %s", prefix, label, strings.Join(names, ", ")))
	}
}

func forbidWeather(activity world.Activity, weather world.Weather, reason string) func(View, ActionIntent) Decision {
	return func(v View, intent ActionIntent) Decision {
		if intent.Kind != IntentChooseActivity || intent.Activity != activity {
			return Allow()
		}
		if v.Weather() == weather {
			return Deny("", reason)
		}
		return Allow()
	}
}
