// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jllopis/policyagent/pkg/llm"
)

var promptFlags struct {
	noRules bool
	all     bool
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the system instructions sent to the model",
	Long: `Print the rendered system instructions. With --no-rules the rules are
withheld and the model is told to learn them from denials; --all prints
both variants one after the other.`,
	Args: cobra.NoArgs,
	RunE: printPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)

	promptCmd.Flags().BoolVar(&promptFlags.noRules, "no-rules", false, "render the variant without disclosed rules")
	promptCmd.Flags().BoolVar(&promptFlags.all, "all", false, "render both variants")
}

func printPrompt(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if promptFlags.noRules {
		cfg.Agent.IncludeRules = false
	}
	// Rendering needs no model and no exporters.
	cfg.Telemetry.Exporter = "none"

	a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr(), appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(cmd.Context())) }()

	variants := []bool{cfg.Agent.IncludeRules}
	if promptFlags.all {
		variants = []bool{true, false}
	}
	out := cmd.OutOrStdout()
	for i, include := range variants {
		cfg.Agent.IncludeRules = include
		ag, err := a.newAgent(llm.Stream(demoProvider()))
		if err != nil {
			return err
		}
		text, err := ag.SystemPrompt()
		if err != nil {
			return err
		}
		if promptFlags.all {
			if i > 0 {
				fmt.Fprintln(out)
			}
			label := "rules disclosed"
			if !include {
				label = "rules learned from denials"
			}
			fmt.Fprintf(out, "=== %s ===\n", label)
		}
		fmt.Fprintln(out, text)
	}
	return nil
}
