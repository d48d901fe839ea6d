// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"

	"github.com/spf13/cobra"

	"github.com/jllopis/policyagent/pkg/config"
	"github.com/jllopis/policyagent/pkg/errors"
)

var (
	// Global flags
	cfgFile   string
	overrides []string
	jsonErrs  bool
)

var rootCmd = &cobra.Command{
	Use:   "policyagent",
	Short: "Policy-constrained ReAct agent",
	Long: `Policyagent answers questions by interleaving reasoning with calls to a
small set of tools. Every tool call passes through a rule engine that can
veto it; denials are returned to the model as observations so it can
adjust its plan.

Configuration is read from defaults, an optional YAML file (--config),
POLICYAGENT_* environment variables and --set key=value overrides, in that
order.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, "override a config key, e.g. --set agent.max_iterations=5")
	rootCmd.PersistentFlags().BoolVar(&jsonErrs, "json-errors", false, "print errors as JSON on stderr")
}

// Execute runs the root command with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	if code := exitCode(err); code != exitFailure {
		return code
	}
	var ae *errors.AgentError
	if !stderrors.As(err, &ae) {
		PrintSimpleError(rootCmd.ErrOrStderr(), err, jsonErrs)
		return exitFailure
	}
	WrapRunError(err).PrintError(rootCmd.ErrOrStderr(), jsonErrs)
	return exitFailure
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithOverrides(cfgFile, overrides)
	if err != nil {
		return nil, NewConfigError(err, cfgFile)
	}
	return cfg, nil
}
