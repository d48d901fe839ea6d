// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the ReAct loop: it asks a completion client for
// the next step, parses the streamed text, runs the named tool and feeds the
// observation back until the model answers or the turn budget runs out.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/policyagent/pkg/audit"
	"github.com/jllopis/policyagent/pkg/core"
	"github.com/jllopis/policyagent/pkg/errors"
	"github.com/jllopis/policyagent/pkg/llm"
	"github.com/jllopis/policyagent/pkg/resilience"
	"github.com/jllopis/policyagent/pkg/telemetry"
	"github.com/jllopis/policyagent/pkg/tools"
	"github.com/jllopis/policyagent/pkg/world"
)

const (
	DefaultMaxIterations = 10
	DefaultTurnTimeout   = 60 * time.Second
	DefaultTemperature   = 0.1
)

// ToolInvoker runs actions by name. *tools.Registry implements it.
type ToolInvoker interface {
	Invoke(ctx context.Context, action string, params map[string]any) (tools.Observation, error)
	Describe() string
	Names() []string
}

// RuleDescriber renders the business rules for disclosure in the prompt.
type RuleDescriber interface {
	Describe() string
}

// StateView exposes the world snapshot shown to the model.
type StateView interface {
	Snapshot() world.Snapshot
}

// Agent drives a ReAct loop over a tool registry. Runs on the same Agent
// are serialized.
type Agent struct {
	id            string
	model         string
	provider      llm.StreamingProvider
	tools         ToolInvoker
	world         StateView
	rules         RuleDescriber
	maxIterations int
	turnTimeout   time.Duration
	instructions  string
	includeRules  bool
	temperature   float64
	emitter       core.EventEmitter
	logger        *slog.Logger
	tracer        trace.Tracer
	metrics       *telemetry.LoopMetrics

	mu sync.Mutex
}

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates a new Agent with a required id and options.
func New(id string, opts ...Option) (*Agent, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewInvalidInputError("agent id is required")
	}
	a := &Agent{
		id:            id,
		maxIterations: DefaultMaxIterations,
		turnTimeout:   DefaultTurnTimeout,
		includeRules:  true,
		temperature:   DefaultTemperature,
		emitter:       core.NoopEventEmitter{},
		logger:        slog.Default(),
		tracer:        otel.Tracer("policyagent/agent"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.provider == nil {
		return nil, NewInvalidInputError("a completion provider is required")
	}
	if a.tools == nil {
		return nil, NewInvalidInputError("a tool registry is required")
	}
	if a.metrics == nil {
		m, err := telemetry.NewLoopMetrics(nil)
		if err != nil {
			a.logger.Warn("agent.metrics.disabled", slog.String("error", err.Error()))
		}
		a.metrics = m
	}
	return a, nil
}

// WithModel sets the model name sent with every request.
func WithModel(model string) Option {
	return func(a *Agent) error {
		a.model = model
		return nil
	}
}

// WithProvider sets the completion client.
func WithProvider(p llm.StreamingProvider) Option {
	return func(a *Agent) error {
		a.provider = p
		return nil
	}
}

// WithRegistry sets the tools the model may call.
func WithRegistry(r ToolInvoker) Option {
	return func(a *Agent) error {
		a.tools = r
		return nil
	}
}

// WithWorld appends a state snapshot to the question and to every
// observation.
func WithWorld(w StateView) Option {
	return func(a *Agent) error {
		a.world = w
		return nil
	}
}

// WithRuleSet sets the rules disclosed in the prompt when rules are included.
func WithRuleSet(r RuleDescriber) Option {
	return func(a *Agent) error {
		a.rules = r
		return nil
	}
}

// WithMaxIterations caps the number of reasoning turns.
func WithMaxIterations(n int) Option {
	return func(a *Agent) error {
		if n <= 0 {
			return NewInvalidInputError("max iterations must be positive")
		}
		a.maxIterations = n
		return nil
	}
}

// WithTurnTimeout bounds each completion call. Zero disables the bound.
func WithTurnTimeout(d time.Duration) Option {
	return func(a *Agent) error {
		if d < 0 {
			return NewInvalidInputError("turn timeout must not be negative")
		}
		a.turnTimeout = d
		return nil
	}
}

// WithInstructions sets free text placed at the top of the system prompt.
func WithInstructions(text string) Option {
	return func(a *Agent) error {
		a.instructions = text
		return nil
	}
}

// WithIncludeRules selects between disclosing the rules up front and
// letting the model learn them from denials.
func WithIncludeRules(include bool) Option {
	return func(a *Agent) error {
		a.includeRules = include
		return nil
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) error {
		if t < 0 {
			return NewInvalidInputError("temperature must not be negative")
		}
		a.temperature = t
		return nil
	}
}

// WithEventEmitter sets the receiver of loop events.
func WithEventEmitter(e core.EventEmitter) Option {
	return func(a *Agent) error {
		if e == nil {
			e = core.NoopEventEmitter{}
		}
		a.emitter = e
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) error {
		if l != nil {
			a.logger = l
		}
		return nil
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) error {
		if t != nil {
			a.tracer = t
		}
		return nil
	}
}

// WithMetrics overrides the loop instruments.
func WithMetrics(m *telemetry.LoopMetrics) Option {
	return func(a *Agent) error {
		a.metrics = m
		return nil
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Model returns the configured model name.
func (a *Agent) Model() string { return a.model }

// MaxIterations returns the turn budget.
func (a *Agent) MaxIterations() int { return a.maxIterations }

// SystemPrompt renders the instructions sent as the first message.
func (a *Agent) SystemPrompt() (string, error) {
	data := PromptData{
		Instructions: a.instructions,
		IncludeRules: a.includeRules,
		Tools:        a.tools.Describe(),
		ToolNames:    strings.Join(a.tools.Names(), ", "),
	}
	if a.includeRules && a.rules != nil {
		data.Rules = a.rules.Describe()
	}
	return RenderSystemPrompt(data)
}

// Run answers question. It returns a Result with OutcomeFinalAnswer or
// OutcomeMaxIterations; completion failures, tool failures, timeouts and
// cancellation end the run with an error and no result.
func (a *Agent) Run(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, NewInvalidInputError("question is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := a.tracer.Start(ctx, "Agent.Run")
	defer span.End()
	span.SetAttributes(telemetry.AgentAttributes(a.id, a.model, runID, 0, a.maxIterations)...)
	span.SetAttributes(attribute.Bool(telemetry.AttrAgentRules, a.includeRules))

	start := time.Now()
	res := &Result{RunID: runID}

	system, err := a.SystemPrompt()
	if err != nil {
		return nil, a.fail(ctx, span, start, err, 0)
	}
	tr := NewTranscript()
	tr.System(system)
	tr.User(a.withState("Question: "+question, true))

	a.logger.InfoContext(ctx, "agent.run.start",
		slog.String("agent_id", a.id),
		slog.String("run_id", runID),
		slog.String("model", a.model),
		slog.Int("max_iterations", a.maxIterations),
		slog.Bool("rules_disclosed", a.includeRules),
	)
	a.emit(ctx, core.EventRunStarted, runID, map[string]any{
		"question":       question,
		"max_iterations": a.maxIterations,
	})

	for iter := 1; iter <= a.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, a.fail(ctx, span, start, WrapCanceledError(err, iter), iter)
		}
		res.Iterations = iter
		a.metrics.RecordTurn(ctx, a.id)
		a.emit(ctx, core.EventTurnStarted, runID, map[string]any{"iteration": iter})

		out, err := a.complete(ctx, tr, iter)
		if err != nil {
			if ctx.Err() != nil && !errors.HasCode(err, errors.CodeTimeout) {
				err = WrapCanceledError(ctx.Err(), iter)
			} else {
				err = WrapLLMError(err, a.model, iter)
			}
			return nil, a.fail(ctx, span, start, err, iter)
		}
		res.Usage = addUsage(res.Usage, out.usage)
		tr.Assistant(out.raw)

		step := out.step
		turn := Turn{Iteration: iter, Thought: step.Thought}

		if step.HasFinal {
			res.Turns = append(res.Turns, turn)
			res.Outcome = OutcomeFinalAnswer
			res.FinalAnswer = step.FinalAnswer
			return a.finish(ctx, span, start, res, tr), nil
		}

		if !step.HasAction() {
			turn.Stalled = true
			turn.Action = step.Action
			res.Turns = append(res.Turns, turn)
			a.logger.WarnContext(ctx, "agent.turn.stalled",
				slog.String("agent_id", a.id),
				slog.String("run_id", runID),
				slog.Int("iteration", iter),
				slog.Bool("missing_input", step.Action != ""),
			)
			continue
		}

		turn.Action = step.Action
		turn.ActionInput = step.ActionInput
		turn.Degraded = step.Degraded
		if step.Degraded {
			a.logger.DebugContext(ctx, "agent.action_input.degraded",
				slog.String("run_id", runID),
				slog.String("action", step.Action),
				slog.String("raw", step.RawInput),
			)
		}

		obs, err := a.act(ctx, runID, step, iter)
		if err != nil {
			return nil, a.fail(ctx, span, start, err, iter)
		}
		res.ToolCalls++
		turn.Observation = obs.Text
		turn.Outcome = obs.Outcome
		turn.RuleID = obs.RuleID
		res.Turns = append(res.Turns, turn)

		tr.User(a.withState(MarkerObservation+" "+obs.Text, false))
	}

	res.Outcome = OutcomeMaxIterations
	return a.finish(ctx, span, start, res, tr), nil
}

type completion struct {
	raw       string
	step      Step
	usage     *llm.Usage
	fragments int
}

// complete sends the transcript and parses the streamed response line by
// line as fragments arrive.
func (a *Agent) complete(ctx context.Context, tr *Transcript, iter int) (completion, error) {
	ctx, span := a.tracer.Start(ctx, "Agent.LLM.Stream")
	defer span.End()
	span.SetAttributes(telemetry.LLMAttributes(a.model, tr.Len())...)
	span.SetAttributes(attribute.Int(telemetry.AttrAgentIteration, iter))

	req := llm.ChatRequest{
		Model:       a.model,
		Messages:    tr.Messages(),
		Temperature: a.temperature,
		Stop:        []string{"\n" + MarkerObservation},
	}
	cfg := resilience.TimeoutConfig{Duration: a.turnTimeout, Operation: "completion"}

	out, err := resilience.WithTimeoutResult(ctx, cfg, func(ctx context.Context) (completion, error) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		ch, err := a.provider.ChatStream(ctx, req)
		if err != nil {
			return completion{}, err
		}
		return consume(ctx, ch)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return completion{}, err
	}

	in, outTokens := 0, 0
	if out.usage != nil {
		in, outTokens = out.usage.PromptTokens, out.usage.CompletionTokens
	}
	span.SetAttributes(telemetry.LLMUsageAttributes(in, outTokens, out.fragments)...)
	return out, nil
}

func consume(ctx context.Context, ch <-chan llm.StreamChunk) (completion, error) {
	var (
		out    completion
		raw    strings.Builder
		parser = NewParser()
	)
	for {
		select {
		case <-ctx.Done():
			return completion{}, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				out.raw, out.step = raw.String(), parser.Finish()
				return out, nil
			}
			if chunk.Error != nil {
				return completion{}, chunk.Error
			}
			if chunk.Content != "" {
				out.fragments++
				raw.WriteString(chunk.Content)
				parser.Feed(chunk.Content)
			}
			if chunk.Usage != nil {
				out.usage = chunk.Usage
			}
			if chunk.Done {
				out.raw, out.step = raw.String(), parser.Finish()
				return out, nil
			}
		}
	}
}

// act invokes the parsed action. The invocation is detached from
// cancellation so a started tool always completes. Unknown actions become
// an observation; tool failures end the run.
func (a *Agent) act(ctx context.Context, runID string, step Step, iter int) (tools.Observation, error) {
	toolStart := time.Now()
	toolCtx, span := a.tracer.Start(ctx, "Agent.Tool.Call")
	defer span.End()

	obs, err := a.tools.Invoke(context.WithoutCancel(toolCtx), step.Action, step.ActionInput)
	durationMs := time.Since(toolStart).Seconds() * 1000

	if errors.HasCode(err, errors.CodeUnknownAction) {
		msg := err.Error()
		if ae := errors.AsAgentError(err); ae != nil {
			msg = ae.Message
		}
		obs = tools.Observation{
			Text:    tools.ErrorMarker + msg + ". Available actions: " + strings.Join(a.tools.Names(), ", "),
			Outcome: audit.OutcomeUnknownAction,
		}
		err = nil
	}
	if err != nil {
		wrapped := WrapToolError(err, step.Action, iter)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		span.SetAttributes(telemetry.ToolCallAttributes(step.Action, string(audit.OutcomeError), durationMs)...)
		a.metrics.RecordToolCall(ctx, step.Action, string(audit.OutcomeError), "")
		return tools.Observation{}, wrapped
	}

	args, _ := json.Marshal(step.ActionInput)
	span.SetAttributes(telemetry.ToolCallAttributes(step.Action, string(obs.Outcome), durationMs)...)
	span.SetAttributes(telemetry.ToolCallArgsResult(string(args), obs.Text, 500)...)
	if obs.Outcome == audit.OutcomePolicyViolation {
		span.SetAttributes(telemetry.PolicyAttributes(false, obs.RuleID, strings.TrimPrefix(obs.Text, tools.ViolationPrefix))...)
	}
	a.metrics.RecordToolCall(ctx, step.Action, string(obs.Outcome), obs.RuleID)

	a.logger.InfoContext(ctx, "agent.tool.executed",
		slog.String("agent_id", a.id),
		slog.String("run_id", runID),
		slog.Int("iteration", iter),
		slog.String("action", step.Action),
		slog.String("outcome", string(obs.Outcome)),
		slog.Float64("duration_ms", durationMs),
	)
	a.emit(ctx, core.EventToolExecuted, runID, map[string]any{
		"iteration": iter,
		"action":    step.Action,
		"outcome":   string(obs.Outcome),
	})
	if obs.Outcome == audit.OutcomePolicyViolation {
		a.emit(ctx, core.EventPolicyDenied, runID, map[string]any{
			"iteration": iter,
			"action":    step.Action,
			"rule_id":   obs.RuleID,
			"reason":    strings.TrimPrefix(obs.Text, tools.ViolationPrefix),
		})
	}
	return obs, nil
}

// withState appends the current world snapshot to text. The opening
// message carries the snapshot before the question.
func (a *Agent) withState(text string, leading bool) string {
	if a.world == nil {
		return text
	}
	snap := a.world.Snapshot().String()
	if leading {
		return snap + "\n\n" + text
	}
	return text + "\n\n" + snap
}

func (a *Agent) finish(ctx context.Context, span trace.Span, start time.Time, res *Result, tr *Transcript) *Result {
	res.Transcript = tr.Entries()
	durationMs := time.Since(start).Seconds() * 1000

	span.SetAttributes(
		attribute.String(telemetry.AttrRunOutcome, string(res.Outcome)),
		attribute.Int(telemetry.AttrAgentIteration, res.Iterations),
	)
	if a.world != nil {
		snap := a.world.Snapshot()
		span.SetAttributes(telemetry.WorldAttributes(string(snap.Weather), string(snap.Activity), len(snap.Inventory))...)
	}
	a.metrics.RecordRun(ctx, a.id, string(res.Outcome), durationMs)

	a.logger.InfoContext(ctx, "agent.run.complete",
		slog.String("agent_id", a.id),
		slog.String("run_id", res.RunID),
		slog.String("outcome", string(res.Outcome)),
		slog.Int("iterations", res.Iterations),
		slog.Int("tool_calls", res.ToolCalls),
		slog.Float64("duration_ms", durationMs),
	)
	a.emit(ctx, core.EventRunCompleted, res.RunID, map[string]any{
		"outcome":    string(res.Outcome),
		"iterations": res.Iterations,
		"tool_calls": res.ToolCalls,
	})
	return res
}

func (a *Agent) fail(ctx context.Context, span trace.Span, start time.Time, err error, iter int) error {
	runID, _ := core.RunID(ctx)
	durationMs := time.Since(start).Seconds() * 1000
	code := errors.CodeOf(err)

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.String(telemetry.AttrRunOutcome, "error"),
		attribute.String(telemetry.AttrErrorCode, string(code)),
	)
	a.metrics.RecordError(ctx, err)
	a.metrics.RecordRun(ctx, a.id, "error", durationMs)

	a.logger.ErrorContext(ctx, "agent.run.error",
		slog.String("agent_id", a.id),
		slog.String("run_id", runID),
		slog.Int("iteration", iter),
		slog.String("error", err.Error()),
		slog.String("error_code", string(code)),
	)
	a.emit(ctx, core.EventAgentError, runID, map[string]any{
		"iteration":  iter,
		"error":      err.Error(),
		"error_code": string(code),
	})
	return err
}

func (a *Agent) emit(ctx context.Context, t core.EventType, runID string, payload map[string]any) {
	a.emitter.Emit(ctx, core.NewEvent(t, a.id, runID, payload))
}

func addUsage(total llm.Usage, u *llm.Usage) llm.Usage {
	if u == nil {
		return total
	}
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
	return total
}
