// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jllopis/policyagent/pkg/audit"
	"github.com/jllopis/policyagent/pkg/core"
	"github.com/jllopis/policyagent/pkg/errors"
	"github.com/jllopis/policyagent/pkg/governance"
)

// Registry maps action names to tools.
type Registry struct {
	tools  map[string]Tool
	order  []string
	strict bool
	filter *governance.ToolFilter
	store  audit.Store
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrictNamespaces rejects bare tool names; actions must be category.name.
func WithStrictNamespaces() Option {
	return func(r *Registry) { r.strict = true }
}

// WithToolFilter hides tools the filter rejects from resolution and listings.
func WithToolFilter(f *governance.ToolFilter) Option {
	return func(r *Registry) { r.filter = f }
}

// WithAuditStore records every invocation.
func WithAuditStore(s audit.Store) Option {
	return func(r *Registry) { r.store = s }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:  make(map[string]Tool),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds tools. Full names must be unique.
func (r *Registry) Register(tools ...Tool) error {
	for _, t := range tools {
		name := FullName(t)
		if _, exists := r.tools[name]; exists {
			return errors.New(errors.CodeInvalidInput, fmt.Sprintf("tool %s already registered", name), nil)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return nil
}

// Tools returns the exposed tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		if r.exposed(name) {
			out = append(out, r.tools[name])
		}
	}
	return out
}

// Names returns the exposed full tool names in registration order.
func (r *Registry) Names() []string {
	var out []string
	for _, t := range r.Tools() {
		out = append(out, FullName(t))
	}
	return out
}

// Resolve maps an action name to a tool. A namespaced name is split on the
// first "." and must match exactly. A bare name must match exactly one
// tool's short name; zero or several matches are an UNKNOWN_ACTION error.
func (r *Registry) Resolve(action string) (Tool, error) {
	name := strings.TrimSpace(action)
	if name == "" {
		return nil, unknownAction(action, "no action name given")
	}
	if category, short, ok := strings.Cut(name, "."); ok {
		full := category + "." + short
		if t, found := r.tools[full]; found && r.exposed(full) {
			return t, nil
		}
		return nil, unknownAction(action, "no tool with that name")
	}
	if r.strict {
		return nil, unknownAction(action, "tool names must be namespaced as category.tool")
	}
	var matches []string
	for _, full := range r.order {
		if r.exposed(full) && r.tools[full].Name() == name {
			matches = append(matches, full)
		}
	}
	switch len(matches) {
	case 1:
		return r.tools[matches[0]], nil
	case 0:
		return nil, unknownAction(action, "no tool with that name")
	default:
		sort.Strings(matches)
		return nil, unknownAction(action, "ambiguous, use one of "+strings.Join(matches, ", ")).
			WithContext("candidates", matches)
	}
}

// Invoke resolves action, runs the tool and records the result. Resolution
// failures come back as UNKNOWN_ACTION errors; tool failures as TOOL_FAILURE.
func (r *Registry) Invoke(ctx context.Context, action string, params map[string]any) (Observation, error) {
	t, err := r.Resolve(action)
	if err != nil {
		r.record(ctx, action, params, Observation{Text: err.Error(), Outcome: audit.OutcomeUnknownAction})
		return Observation{}, err
	}
	full := FullName(t)

	var obs Observation
	if o, ok := t.(Observer); ok {
		obs, err = o.Observe(ctx, params)
	} else {
		obs.Text, err = t.Execute(ctx, params)
		obs.Outcome = classify(obs.Text)
	}
	if err != nil {
		r.record(ctx, full, params, Observation{Text: err.Error(), Outcome: audit.OutcomeError})
		return Observation{}, errors.New(errors.CodeToolFailure, "tool "+full+" failed", err).
			WithContext("tool", full)
	}

	r.logger.Debug("tool.invoke",
		slog.String("tool", full),
		slog.String("outcome", string(obs.Outcome)),
		slog.String("rule_id", obs.RuleID),
	)
	r.record(ctx, full, params, obs)
	return obs, nil
}

// Describe lists "full_name: description" lines for the prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for i, t := range r.Tools() {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", FullName(t), t.Description())
	}
	return b.String()
}

func (r *Registry) exposed(full string) bool {
	return r.filter.IsAllowed(full).IsAllowed()
}

func (r *Registry) record(ctx context.Context, tool string, params map[string]any, obs Observation) {
	if r.store == nil {
		return
	}
	runID, _ := core.RunID(ctx)
	rec := audit.Record{
		RunID:       runID,
		Tool:        tool,
		Params:      params,
		Observation: obs.Text,
		Outcome:     obs.Outcome,
		RuleID:      obs.RuleID,
	}
	if err := r.store.Record(ctx, rec); err != nil {
		r.logger.Warn("tool.audit.failed", slog.String("tool", tool), slog.String("error", err.Error()))
	}
}

func unknownAction(action, detail string) *errors.AgentError {
	return errors.New(errors.CodeUnknownAction, fmt.Sprintf("Unknown action %q: %s", action, detail), nil).
		WithContext("action", action)
}

func classify(text string) audit.Outcome {
	switch {
	case strings.HasPrefix(text, ViolationPrefix):
		return audit.OutcomePolicyViolation
	case strings.HasPrefix(text, ErrorMarker):
		return audit.OutcomeInvalidInput
	default:
		return audit.OutcomeSuccess
	}
}
