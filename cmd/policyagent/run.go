// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/policyagent/pkg/agent"
	"github.com/jllopis/policyagent/pkg/audit"
	"github.com/jllopis/policyagent/pkg/config"
	"github.com/jllopis/policyagent/pkg/world"
)

// agentFlags are the flags shared by commands that run the agent.
type agentFlags struct {
	noRules       bool
	maxIterations int
	model         string
	provider      string
	mcpCommand    string
	mcpArgs       []string
}

func (f *agentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noRules, "no-rules", false, "do not disclose the rules; the model learns them from denials")
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 0, "override agent.max_iterations")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "override llm.model")
	cmd.Flags().StringVarP(&f.provider, "provider", "p", "", "override llm.provider (mock, ollama, gemini, openai, anthropic)")
	cmd.Flags().StringVar(&f.mcpCommand, "mcp-command", "", "use the tools of the MCP server started by this command line (split on whitespace, no quoting)")
	cmd.Flags().StringArrayVar(&f.mcpArgs, "mcp-arg", nil, "extra argument for the --mcp-command server, passed verbatim (repeatable)")
}

// apply copies the flags the user set onto cfg.
func (f *agentFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if f.noRules {
		cfg.Agent.IncludeRules = false
	}
	if cmd.Flags().Changed("max-iterations") {
		if f.maxIterations <= 0 {
			return NewInvalidArgumentError("max-iterations", "must be positive")
		}
		cfg.Agent.MaxIterations = f.maxIterations
	}
	if f.provider != "" && !strings.EqualFold(f.provider, cfg.LLM.Provider) {
		cfg.LLM.Provider = f.provider
		// The configured model belongs to the previous provider.
		cfg.LLM.Model = defaultModel(f.provider)
	}
	if f.model != "" {
		cfg.LLM.Model = f.model
	}
	return nil
}

// setup loads config, applies flags and builds the app and its agent.
func (f *agentFlags) setup(cmd *cobra.Command) (*app, *agent.Agent, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := f.apply(cmd, cfg); err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, cmd.ErrOrStderr(), appOptions{mcpCommand: f.mcpCommand, mcpArgs: f.mcpArgs})
	if err != nil {
		return nil, nil, err
	}
	provider, err := newProvider(ctx, cfg.LLM)
	if err != nil {
		_ = a.Close(ctx)
		return nil, nil, err
	}
	ag, err := a.newAgent(provider)
	if err != nil {
		_ = a.Close(ctx)
		return nil, nil, err
	}
	return a, ag, nil
}

var runFlags struct {
	agentFlags
	format string
}

var runCmd = &cobra.Command{
	Use:   "run <question>",
	Short: "Answer one question",
	Long: `Run the agent once on a fresh world and print its answer.

The process exits with status 2 when the agent runs out of iterations
without a final answer.

Examples:
  # Answer with the configured provider
  policyagent run "Plan a camping trip for today"

  # Offline smoke run
  policyagent run --provider mock "What do I have?"

  # Full result with turns and audit trail
  policyagent run --format yaml --set audit.enabled=true "Plan a hike"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuestion,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runFlags.bind(runCmd)
	runCmd.Flags().StringVarP(&runFlags.format, "format", "f", "text", "output format: text, yaml, json")
}

// runReport is the structured output of run.
type runReport struct {
	Result *agent.Result    `json:"result" yaml:"result"`
	State  *world.Snapshot  `json:"state,omitempty" yaml:"state,omitempty"`
	Audit  []auditEntryView `json:"audit,omitempty" yaml:"audit,omitempty"`
}

type auditEntryView struct {
	Tool        string         `json:"tool" yaml:"tool"`
	Params      map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Outcome     audit.Outcome  `json:"outcome" yaml:"outcome"`
	RuleID      string         `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	Observation string         `json:"observation" yaml:"observation"`
}

func runQuestion(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(runFlags.format)
	if format != "text" && format != "yaml" && format != "json" {
		return NewInvalidArgumentError("format", fmt.Sprintf("unknown format %q", runFlags.format))
	}

	a, ag, err := runFlags.setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(cmd.Context())) }()

	res, err := ag.Run(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "text" {
		fmt.Fprintln(out, res.Answer())
	} else {
		report := runReport{Result: res}
		if !a.remote {
			snap := a.state.Snapshot()
			report.State = &snap
		}
		records, err := a.auditTrail(cmd.Context(), res.RunID)
		if err != nil {
			return err
		}
		report.Audit = auditViews(records)
		if err := encode(out, format, report); err != nil {
			return err
		}
	}

	if res.Outcome == agent.OutcomeMaxIterations {
		return &exitError{code: exitMaxIterations}
	}
	return nil
}

func auditViews(records []audit.Record) []auditEntryView {
	if len(records) == 0 {
		return nil
	}
	out := make([]auditEntryView, 0, len(records))
	for _, r := range records {
		out = append(out, auditEntryView{
			Tool:        r.Tool,
			Params:      r.Params,
			Outcome:     r.Outcome,
			RuleID:      r.RuleID,
			Observation: r.Observation,
		})
	}
	return out
}

// encode writes v as YAML or indented JSON.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}
