// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllopis/policyagent/pkg/agent"
	"github.com/jllopis/policyagent/pkg/errors"
)

const chatHelp = `Commands:
  help         show this help
  rules        list the policy rules
  state        show the current state
  reset        start over with an empty world
  quit, exit   leave
Anything else is sent to the agent as a question.`

var chatFlags agentFlags

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively against one world",
	Long: `Start an interactive session. Every question runs the agent against the
same world, so purchases and the chosen activity carry over between
questions until you type reset.

` + chatHelp,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatFlags.bind(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, ag, err := chatFlags.setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(cmd.Context())) }()

	s := &chatSession{app: a, agent: ag, out: cmd.OutOrStdout()}
	return s.loop(cmd.Context(), cmd.InOrStdin())
}

type chatSession struct {
	app   *app
	agent *agent.Agent
	out   io.Writer
}

func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(s.out, "policyagent %s, type help for commands.\n", Version)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if done := s.handle(ctx, strings.TrimSpace(scanner.Text())); done {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle processes one input line and reports whether the session is over.
func (s *chatSession) handle(ctx context.Context, line string) bool {
	switch strings.ToLower(line) {
	case "":
		return false
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(s.out, chatHelp)
	case "rules":
		fmt.Fprintln(s.out, s.app.rules.Describe())
	case "state":
		if s.app.remote {
			fmt.Fprintln(s.out, "state lives on the MCP server; ask the agent to check it")
			return false
		}
		fmt.Fprintln(s.out, s.app.state.Snapshot().String())
	case "reset":
		s.app.state.Reset()
		fmt.Fprintln(s.out, "World reset.")
	default:
		res, err := s.agent.Run(ctx, line)
		if err != nil {
			if errors.HasCode(err, errors.CodeCanceled) {
				return true
			}
			WrapRunError(err).PrintError(s.out, false)
			return false
		}
		fmt.Fprintln(s.out, res.Answer())
	}
	return false
}
