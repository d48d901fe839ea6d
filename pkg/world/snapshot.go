// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package world

import (
	"fmt"
	"strings"
)

// Snapshot is a point-in-time copy of a State.
type Snapshot struct {
	Inventory      []Item     `json:"inventory" yaml:"inventory"`
	Weather        Weather    `json:"weather" yaml:"weather"`
	WeatherChecked bool       `json:"weather_checked" yaml:"weather_checked"`
	Activity       Activity   `json:"activity,omitempty" yaml:"activity,omitempty"`
	History        []Purchase `json:"history,omitempty" yaml:"history,omitempty"`
}

// InventoryString renders the inventory as a comma list, or "Empty".
func (s Snapshot) InventoryString() string {
	if len(s.Inventory) == 0 {
		return "Empty"
	}
	names := make([]string, len(s.Inventory))
	for i, it := range s.Inventory {
		names[i] = string(it)
	}
	return strings.Join(names, ", ")
}

// ActivityString renders the activity, or "None chosen".
func (s Snapshot) ActivityString() string {
	if s.Activity == ActivityNone {
		return "None chosen"
	}
	return string(s.Activity)
}

// WeatherString renders the weather with its known/unknown marker.
func (s Snapshot) WeatherString() string {
	status := "Unknown"
	if s.WeatherChecked {
		status = "Known"
	}
	return fmt.Sprintf("%s (%s)", s.Weather, status)
}

// String is the summary shown to the model and on the CLI.
func (s Snapshot) String() string {
	var b strings.Builder
	b.WriteString("📊 **Current Agent State:**\n")
	fmt.Fprintf(&b, "🎒 Inventory: %s\n", s.InventoryString())
	fmt.Fprintf(&b, "🌤️ Weather: %s\n", s.WeatherString())
	fmt.Fprintf(&b, "🎯 Current Activity: %s", s.ActivityString())
	return b.String()
}
