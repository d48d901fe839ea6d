// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/jllopis/policyagent/pkg/llm"
)

// Entry is one transcript message with its bookkeeping.
type Entry struct {
	ID      string      `json:"id" yaml:"id"`
	Message llm.Message `json:"message" yaml:"message"`
	At      time.Time   `json:"at" yaml:"at"`
}

// Transcript is the append-only conversation of a single run.
type Transcript struct {
	entries []Entry
	now     func() time.Time
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

func (t *Transcript) append(role llm.Role, content string) {
	t.entries = append(t.entries, Entry{
		ID:      uuid.NewString(),
		Message: llm.Message{Role: role, Content: content},
		At:      t.now().UTC(),
	})
}

// System appends the system instructions.
func (t *Transcript) System(content string) { t.append(llm.RoleSystem, content) }

// User appends a user message.
func (t *Transcript) User(content string) { t.append(llm.RoleUser, content) }

// Assistant appends raw model output.
func (t *Transcript) Assistant(content string) { t.append(llm.RoleAssistant, content) }

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.entries) }

// Messages returns the messages in order, ready for a ChatRequest.
func (t *Transcript) Messages() []llm.Message {
	out := make([]llm.Message, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Message
	}
	return out
}

// Entries returns a copy of the entries.
func (t *Transcript) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}
