// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit records every tool invocation and its policy outcome for
// later inspection. Records live only as long as the process.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies a recorded tool call.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeInvalidInput    Outcome = "invalid_input"
	OutcomePolicyViolation Outcome = "policy_violation"
	OutcomeUnknownAction   Outcome = "unknown_action"
	OutcomeError           Outcome = "error"
)

// Record is one audited tool call.
type Record struct {
	ID          string
	RunID       string
	Tool        string
	Params      map[string]any
	Observation string
	Outcome     Outcome
	RuleID      string
	At          time.Time
}

// Store persists audit records.
type Store interface {
	Record(ctx context.Context, rec Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// Filter limits audit queries.
type Filter struct {
	RunID   string
	Tool    string
	Outcome Outcome
	Limit   int
}

func (f Filter) match(rec Record) bool {
	if f.RunID != "" && rec.RunID != f.RunID {
		return false
	}
	if f.Tool != "" && rec.Tool != f.Tool {
		return false
	}
	if f.Outcome != "" && rec.Outcome != f.Outcome {
		return false
	}
	return true
}

// MemoryStore keeps audit records in memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore returns an in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends a record, assigning an ID and timestamp when missing.
func (s *MemoryStore) Record(_ context.Context, rec Record) error {
	rec = normalize(rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// List returns filtered records in insertion order.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if !filter.match(rec) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func normalize(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	rec.At = rec.At.UTC()
	return rec
}

func encodeParams(params map[string]any) ([]byte, error) {
	if params == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(params)
}

func decodeParams(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
