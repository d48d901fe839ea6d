// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package world holds the simulated environment the agent acts on:
// inventory, weather, and the chosen activity.
//
// A State has a single owner. It carries no locks; hosts running several
// agents concurrently give each one its own State or call Reset between runs.
package world

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jllopis/policyagent/pkg/errors"
)

// Item is a canonical catalog item name.
type Item string

// Catalog items, in display order.
const (
	ItemTV          Item = "TV"
	ItemXbox        Item = "Xbox"
	ItemHikingBoots Item = "Hiking Boots"
	ItemGoggles     Item = "Goggles"
	ItemSunscreen   Item = "Sunscreen"
)

// Catalog lists every purchasable item in display order.
func Catalog() []Item {
	return []Item{ItemTV, ItemXbox, ItemHikingBoots, ItemGoggles, ItemSunscreen}
}

// CanonicalItem maps any casing of a catalog name to its canonical form.
func CanonicalItem(name string) (Item, bool) {
	needle := strings.TrimSpace(name)
	for _, it := range Catalog() {
		if strings.EqualFold(string(it), needle) {
			return it, true
		}
	}
	return "", false
}

// Weather is the observed weather condition.
type Weather string

const (
	WeatherUnknown Weather = "unknown"
	WeatherSunny   Weather = "sunny"
	WeatherRaining Weather = "raining"
	WeatherSnowing Weather = "snowing"
)

// KnownWeather lists the conditions a weather check can produce.
func KnownWeather() []Weather {
	return []Weather{WeatherSunny, WeatherRaining, WeatherSnowing}
}

// ParseWeather accepts any casing of a weather name.
func ParseWeather(s string) (Weather, bool) {
	needle := strings.TrimSpace(s)
	for _, w := range append([]Weather{WeatherUnknown}, KnownWeather()...) {
		if strings.EqualFold(string(w), needle) {
			return w, true
		}
	}
	return "", false
}

// Activity is something the agent can choose to do.
type Activity string

const (
	ActivityNone      Activity = ""
	ActivityPlayGames Activity = "Play games"
	ActivityGoCamping Activity = "Go Camping"
	ActivitySwimming  Activity = "Swimming"
)

// Activities lists the choosable activities in display order.
func Activities() []Activity {
	return []Activity{ActivityPlayGames, ActivityGoCamping, ActivitySwimming}
}

var activityAliases = map[string]Activity{
	"play_games": ActivityPlayGames,
	"playgames":  ActivityPlayGames,
	"go_camping": ActivityGoCamping,
	"gocamping":  ActivityGoCamping,
	"swimming":   ActivitySwimming,
}

// ParseActivity accepts any casing of the display string or the identifier
// form (play_games, PlayGames).
func ParseActivity(s string) (Activity, bool) {
	needle := strings.TrimSpace(s)
	for _, a := range Activities() {
		if strings.EqualFold(string(a), needle) {
			return a, true
		}
	}
	if a, ok := activityAliases[strings.ToLower(needle)]; ok {
		return a, true
	}
	return ActivityNone, false
}

// Purchase records one AddToInventory call.
type Purchase struct {
	Item Item      `json:"item" yaml:"item"`
	At   time.Time `json:"at" yaml:"at"`
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the clock used to timestamp purchases.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// State is the mutable world record. The zero value is not usable; call New.
type State struct {
	inventory      map[Item]struct{}
	weather        Weather
	weatherChecked bool
	activity       Activity
	history        []Purchase
	now            func() time.Time
}

// New creates an empty State: no items, unknown weather, no activity.
func New(opts ...Option) *State {
	s := &State{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Reset returns the state to its initial condition.
func (s *State) Reset() {
	s.inventory = make(map[Item]struct{})
	s.weather = WeatherUnknown
	s.weatherChecked = false
	s.activity = ActivityNone
	s.history = nil
}

// AddToInventory normalizes name and adds it. Adding an owned item is a
// no-op for the set but is still recorded in the purchase history.
func (s *State) AddToInventory(name string) (Item, error) {
	it, ok := CanonicalItem(name)
	if !ok {
		return "", errors.New(errors.CodeInvalidInput, fmt.Sprintf("unknown item %q", name), nil).
			WithContext("item", name)
	}
	s.inventory[it] = struct{}{}
	s.history = append(s.history, Purchase{Item: it, At: s.now()})
	return it, nil
}

// HasItem reports whether the inventory holds name, ignoring case.
func (s *State) HasItem(name string) bool {
	it, ok := CanonicalItem(name)
	if !ok {
		return false
	}
	_, held := s.inventory[it]
	return held
}

// HasAll reports whether every name is held.
func (s *State) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.HasItem(n) {
			return false
		}
	}
	return true
}

// Missing returns the items from want that are not held, keeping want's order.
func (s *State) Missing(want ...Item) []Item {
	var out []Item
	for _, it := range want {
		if _, held := s.inventory[it]; !held {
			out = append(out, it)
		}
	}
	return out
}

// Inventory returns the held items sorted by name.
func (s *State) Inventory() []Item {
	out := make([]Item, 0, len(s.inventory))
	for it := range s.inventory {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Weather returns the current condition.
func (s *State) Weather() Weather { return s.weather }

// WeatherChecked reports whether a weather value has been set.
func (s *State) WeatherChecked() bool { return s.weatherChecked }

// SetWeather sets the weather and marks it checked. Legality is decided
// by the rule engine before this is called.
func (s *State) SetWeather(w Weather) {
	s.weather = w
	s.weatherChecked = true
}

// Activity returns the chosen activity, or ActivityNone.
func (s *State) Activity() Activity { return s.activity }

// SetActivity records the chosen activity.
func (s *State) SetActivity(a Activity) { s.activity = a }

// History returns a copy of the purchase events.
func (s *State) History() []Purchase {
	out := make([]Purchase, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot captures the current state as an immutable value.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Inventory:      s.Inventory(),
		Weather:        s.weather,
		WeatherChecked: s.weatherChecked,
		Activity:       s.activity,
		History:        s.History(),
	}
}
