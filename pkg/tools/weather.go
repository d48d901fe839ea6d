// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jllopis/policyagent/pkg/world"
)

// WeatherSource picks the outcome of a weather check.
type WeatherSource interface {
	Next() world.Weather
}

// RandomWeather draws uniformly from the known conditions.
type RandomWeather struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomWeather returns a seeded source. A zero seed uses the clock.
func NewRandomWeather(seed uint64) *RandomWeather {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomWeather{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next implements WeatherSource.
func (r *RandomWeather) Next() world.Weather {
	options := world.KnownWeather()
	r.mu.Lock()
	defer r.mu.Unlock()
	return options[r.rng.IntN(len(options))]
}

// FixedWeather cycles through a fixed sequence.
type FixedWeather struct {
	mu   sync.Mutex
	seq  []world.Weather
	next int
}

// NewFixedWeather returns a source that yields seq in order, wrapping
// around. An empty seq always yields sunny.
func NewFixedWeather(seq ...world.Weather) *FixedWeather {
	if len(seq) == 0 {
		seq = []world.Weather{world.WeatherSunny}
	}
	return &FixedWeather{seq: append([]world.Weather(nil), seq...)}
}

// Next implements WeatherSource.
func (f *FixedWeather) Next() world.Weather {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.seq[f.next%len(f.seq)]
	f.next++
	return w
}
