// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

// Policyagent runs a ReAct agent whose tool calls are vetted by a policy
// rule engine over a small shared world (inventory, weather, activity).
//
// Usage:
//
//	# Answer one question
//	policyagent run "Plan a camping trip for today"
//
//	# Hide the rules from the model so it learns them from denials
//	policyagent run --no-rules "Plan a camping trip for today"
//
//	# Interactive session sharing one world across questions
//	policyagent chat
//
//	# Inspect the rules and the system instructions
//	policyagent rules --format yaml
//	policyagent prompt --all
//
//	# Serve the tools to an MCP client over stdio
//	policyagent serve-mcp
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
