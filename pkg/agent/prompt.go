// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"embed"
	"strings"
	"text/template"

	"github.com/jllopis/policyagent/pkg/errors"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var systemTemplate = template.Must(template.ParseFS(promptFS, "prompts/system.tmpl"))

// PromptData fills the system prompt template.
type PromptData struct {
	// Instructions is free text placed after the role statement.
	Instructions string
	// IncludeRules discloses Rules up front; otherwise the prompt asks the
	// model to learn the rules from denials.
	IncludeRules bool
	Rules        string
	// Tools lists "name: description" lines.
	Tools     string
	ToolNames string
}

// RenderSystemPrompt renders the system instructions.
func RenderSystemPrompt(data PromptData) (string, error) {
	var b strings.Builder
	if err := systemTemplate.Execute(&b, data); err != nil {
		return "", errors.New(errors.CodeInternal, "failed to render system prompt", err)
	}
	return strings.TrimSpace(b.String()), nil
}
