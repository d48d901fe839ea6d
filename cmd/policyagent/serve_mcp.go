// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jllopis/policyagent/pkg/mcp"
)

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the tools over MCP stdio",
	Long: `Serve check_weather, shopping, choose_activity and check_state to an MCP
client over stdin/stdout. All calls share one world and pass through the
rule engine; denials come back as tool errors carrying the reason.

Logs go to stderr so they never mix with the protocol stream.`,
	Args: cobra.NoArgs,
	RunE: serveMCP,
}

func init() {
	rootCmd.AddCommand(serveMCPCmd)
}

func serveMCP(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr(), appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(cmd.Context())) }()

	a.logger.Info("mcp.serve.start", slog.Int("tools", len(a.registry.Names())))
	return mcp.NewServer(serviceName, Version, a.registry, mcp.WithServerLogger(a.logger)).ServeStdio()
}
