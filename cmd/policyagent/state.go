// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllopis/policyagent/pkg/world"
)

var stateFlags struct {
	format string
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the initial world state and catalog",
	Long: `Show the state a new run starts from, together with the items the shop
sells and the activities the agent can choose.`,
	Args: cobra.NoArgs,
	RunE: showState,
}

func init() {
	rootCmd.AddCommand(stateCmd)

	stateCmd.Flags().StringVarP(&stateFlags.format, "format", "f", "text", "output format: text, yaml, json")
}

type stateReport struct {
	State      world.Snapshot   `json:"state" yaml:"state"`
	Catalog    []world.Item     `json:"catalog" yaml:"catalog"`
	Activities []world.Activity `json:"activities" yaml:"activities"`
	Weather    []world.Weather  `json:"weather" yaml:"weather"`
}

func showState(cmd *cobra.Command, _ []string) error {
	report := stateReport{
		State:      world.New().Snapshot(),
		Catalog:    world.Catalog(),
		Activities: world.Activities(),
		Weather:    world.KnownWeather(),
	}

	out := cmd.OutOrStdout()
	switch format := strings.ToLower(stateFlags.format); format {
	case "text":
		fmt.Fprintln(out, report.State.String())
		fmt.Fprintf(out, "\nCatalog: %s\n", joinNames(report.Catalog))
		fmt.Fprintf(out, "Activities: %s\n", joinNames(report.Activities))
		fmt.Fprintf(out, "Weather: %s\n", joinNames(report.Weather))
		return nil
	case "yaml", "json":
		return encode(out, format, report)
	default:
		return NewInvalidArgumentError("format", fmt.Sprintf("unknown format %q", stateFlags.format))
	}
}

func joinNames[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
