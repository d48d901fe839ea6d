// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllopis/policyagent/pkg/governance"
)

var rulesFlags struct {
	format string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the policy rules",
	Long: `List the business rules and configured tool policies the rule engine
enforces.

Examples:
  # Numbered list, as disclosed to the model
  policyagent rules

  # Structured output
  policyagent rules --format yaml`,
	Args: cobra.NoArgs,
	RunE: listRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.Flags().StringVarP(&rulesFlags.format, "format", "f", "text", "output format: text, yaml, json")
}

type ruleView struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Concern     string `json:"concern" yaml:"concern"`
	Description string `json:"description" yaml:"description"`
}

type policyView struct {
	ID     string `json:"id" yaml:"id"`
	Effect string `json:"effect" yaml:"effect"`
	Tool   string `json:"tool" yaml:"tool"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

type rulesReport struct {
	Rules    []ruleView   `json:"rules" yaml:"rules"`
	Policies []policyView `json:"policies,omitempty" yaml:"policies,omitempty"`
}

func listRules(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rules := governance.RuleSetFromConfig(cfg.Governance)

	switch format := strings.ToLower(rulesFlags.format); format {
	case "text":
		fmt.Fprint(cmd.OutOrStdout(), rules.Describe())
		return nil
	case "yaml", "json":
		return encode(cmd.OutOrStdout(), format, newRulesReport(rules))
	default:
		return NewInvalidArgumentError("format", fmt.Sprintf("unknown format %q", rulesFlags.format))
	}
}

func newRulesReport(rules *governance.RuleSet) rulesReport {
	var report rulesReport
	for _, r := range rules.Rules() {
		report.Rules = append(report.Rules, ruleView{
			ID:          r.ID,
			Name:        r.Name,
			Concern:     string(r.Concern),
			Description: r.Description,
		})
	}
	for _, p := range rules.Policies() {
		report.Policies = append(report.Policies, policyView{
			ID:     p.ID,
			Effect: string(p.Effect),
			Tool:   p.Tool,
			Reason: p.Reason,
		})
	}
	return report
}
