// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/jllopis/policyagent/pkg/agent"
	"github.com/jllopis/policyagent/pkg/audit"
	"github.com/jllopis/policyagent/pkg/config"
	"github.com/jllopis/policyagent/pkg/core"
	"github.com/jllopis/policyagent/pkg/governance"
	"github.com/jllopis/policyagent/pkg/llm"
	"github.com/jllopis/policyagent/pkg/mcp"
	"github.com/jllopis/policyagent/pkg/resilience"
	"github.com/jllopis/policyagent/pkg/telemetry"
	"github.com/jllopis/policyagent/pkg/tools"
	"github.com/jllopis/policyagent/pkg/world"
)

const serviceName = "policyagent"

// app holds everything a command needs to run the agent: one world, the
// rules guarding it, the tool registry bound to both and the ambient
// logging, telemetry and audit plumbing.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	state    *world.State
	rules    *governance.RuleSet
	registry *tools.Registry
	audit    audit.Store
	// remote is true when the tools come from an MCP server; the local
	// world is then unused.
	remote bool

	closers []func(context.Context) error
}

type appOptions struct {
	// mcpCommand, when set, replaces the built-in tools with the tools of
	// the MCP server started by this command line. mcpArgs are appended
	// unsplit.
	mcpCommand string
	mcpArgs    []string
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer, opts appOptions) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: telemetry.ConfigureSlog(logOut, cfg.Log.Level, cfg.Log.Format),
		state:  world.New(),
		rules:  governance.RuleSetFromConfig(cfg.Governance),
	}

	shutdown, err := telemetry.InitWithConfig(serviceName, Version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		Writer:       logOut,
	})
	if err != nil {
		return nil, NewConfigError(err, cfgFile)
	}
	a.closers = append(a.closers, shutdown)

	if err := a.openAudit(); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	regOpts := []tools.Option{
		tools.WithToolFilter(governance.ToolFilterFromConfig(cfg.Governance)),
		tools.WithLogger(a.logger),
	}
	if a.audit != nil {
		regOpts = append(regOpts, tools.WithAuditStore(a.audit))
	}
	if cfg.Agent.StrictActions {
		regOpts = append(regOpts, tools.WithStrictNamespaces())
	}

	if opts.mcpCommand != "" {
		err = a.bindRemote(ctx, opts.mcpCommand, opts.mcpArgs, regOpts)
	} else {
		err = a.bindLocal(regOpts)
	}
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) openAudit() error {
	if !a.cfg.Audit.Enabled {
		return nil
	}
	switch a.cfg.Audit.Backend {
	case "", "memory":
		a.audit = audit.NewMemoryStore()
	case "sqlite":
		store, db, err := audit.OpenInMemory(serviceName + "-" + core.NewRunID())
		if err != nil {
			return NewConfigError(fmt.Errorf("open audit store: %w", err), cfgFile)
		}
		a.audit = store
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
	default:
		return NewInvalidArgumentError("audit.backend", fmt.Sprintf("unknown audit backend %q", a.cfg.Audit.Backend))
	}
	return nil
}

func (a *app) bindLocal(opts []tools.Option) error {
	weather, err := weatherSource(a.cfg.Weather)
	if err != nil {
		return err
	}
	reg, err := tools.NewWorldRegistry(a.state, a.rules, weather, opts...)
	if err != nil {
		return err
	}
	a.registry = reg
	return nil
}

func (a *app) bindRemote(ctx context.Context, commandLine string, extraArgs []string, opts []tools.Option) error {
	name, args, err := mcpCommandLine(commandLine, extraArgs)
	if err != nil {
		return err
	}
	client, err := mcp.NewClientWithStdio(ctx, name, args)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })

	remote, err := mcp.RemoteTools(ctx, client)
	if err != nil {
		return err
	}
	reg := tools.NewRegistry(opts...)
	if err := reg.Register(remote...); err != nil {
		return err
	}
	a.registry = reg
	a.remote = true
	a.logger.Info("mcp.tools.bound", slog.String("command", name), slog.Int("tools", len(remote)))
	return nil
}

// mcpCommandLine splits commandLine on whitespace and appends extraArgs
// as given, so arguments containing spaces go through --mcp-arg.
func mcpCommandLine(commandLine string, extraArgs []string) (string, []string, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return "", nil, NewInvalidArgumentError("mcp-command", "empty command")
	}
	return fields[0], append(fields[1:], extraArgs...), nil
}

func weatherSource(cfg config.WeatherConfig) (tools.WeatherSource, error) {
	if len(cfg.Sequence) == 0 {
		return tools.NewRandomWeather(cfg.Seed), nil
	}
	seq := make([]world.Weather, 0, len(cfg.Sequence))
	for _, raw := range cfg.Sequence {
		w, ok := world.ParseWeather(raw)
		if !ok {
			return nil, NewInvalidArgumentError("weather.sequence", fmt.Sprintf("unknown weather %q", raw))
		}
		seq = append(seq, w)
	}
	return tools.NewFixedWeather(seq...), nil
}

// newProvider builds the configured completion client.
func newProvider(ctx context.Context, cfg config.LLMConfig) (llm.StreamingProvider, error) {
	var p llm.StreamingProvider
	switch strings.ToLower(cfg.Provider) {
	case "mock":
		p = llm.Stream(demoProvider())
	case "ollama":
		p = llm.NewOllama(cfg.BaseURL, llm.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	case "gemini":
		gp, err := newGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p = gp
	case "openai":
		p = newOpenAI(cfg)
	case "anthropic":
		p = newAnthropic(cfg)
	default:
		return nil, NewInvalidArgumentError("llm.provider", fmt.Sprintf("unknown provider %q (want mock, ollama, gemini, openai or anthropic)", cfg.Provider))
	}

	retry := resilience.DefaultRetryConfig().
		WithMaxAttempts(cfg.Retry.MaxAttempts).
		WithInitialDelay(cfg.Retry.InitialDelay).
		WithMaxDelay(cfg.Retry.MaxDelay)
	return llm.WithRetry(p, retry), nil
}

// newAgent builds an agent over the app's registry, talking to provider.
func (a *app) newAgent(provider llm.StreamingProvider) (*agent.Agent, error) {
	metrics, err := telemetry.NewLoopMetrics(otel.Meter(telemetry.MeterName))
	if err != nil {
		return nil, err
	}
	opts := []agent.Option{
		agent.WithModel(a.cfg.LLM.Model),
		agent.WithProvider(provider),
		agent.WithRegistry(a.registry),
		agent.WithRuleSet(a.rules),
		agent.WithMaxIterations(a.cfg.Agent.MaxIterations),
		agent.WithTurnTimeout(a.cfg.Agent.TurnTimeout),
		agent.WithInstructions(a.cfg.Agent.Instructions),
		agent.WithIncludeRules(a.cfg.Agent.IncludeRules),
		agent.WithTemperature(a.cfg.LLM.Temperature),
		agent.WithEventEmitter(core.LogEventEmitter{Logger: a.logger}),
		agent.WithLogger(a.logger),
		agent.WithMetrics(metrics),
	}
	if !a.remote {
		opts = append(opts, agent.WithWorld(a.state))
	}
	return agent.New(a.cfg.Agent.Name, opts...)
}

// auditTrail returns the audited tool calls of runID, or nil when auditing
// is off.
func (a *app) auditTrail(ctx context.Context, runID string) ([]audit.Record, error) {
	if a.audit == nil {
		return nil, nil
	}
	return a.audit.List(ctx, audit.Filter{RunID: runID})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return stderrors.Join(errs...)
}
