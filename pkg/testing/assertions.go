// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jllopis/policyagent/pkg/errors"
	"github.com/jllopis/policyagent/pkg/llm"
)

// Assertions provides assertion helpers for testing.
type Assertions struct {
	t      testing.TB
	failed bool
}

// NewAssertions creates a new assertions helper.
func NewAssertions(t testing.TB) *Assertions {
	return &Assertions{t: t}
}

// Failed returns true if any assertion has failed.
func (a *Assertions) Failed() bool {
	return a.failed
}

// AssertEqual asserts that two values are deeply equal.
func (a *Assertions) AssertEqual(expected, actual any, msg string) {
	a.t.Helper()
	if diff := cmp.Diff(expected, actual); diff != "" {
		a.t.Errorf("%s (-want +got):\n%s", msg, diff)
		a.failed = true
	}
}

// AssertTrue asserts that the value is true.
func (a *Assertions) AssertTrue(value bool, msg string) {
	a.t.Helper()
	if !value {
		a.t.Errorf("%s: expected true", msg)
		a.failed = true
	}
}

// AssertContains asserts that the string contains the substring.
func (a *Assertions) AssertContains(s, substr, msg string) {
	a.t.Helper()
	if !strings.Contains(s, substr) {
		a.t.Errorf("%s: %q does not contain %q", msg, s, substr)
		a.failed = true
	}
}

// AssertNotContains asserts that the string does not contain the substring.
func (a *Assertions) AssertNotContains(s, substr, msg string) {
	a.t.Helper()
	if strings.Contains(s, substr) {
		a.t.Errorf("%s: %q should not contain %q", msg, s, substr)
		a.failed = true
	}
}

// AssertNoError asserts that the error is nil.
func (a *Assertions) AssertNoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.t.Errorf("%s: unexpected error: %v", msg, err)
		a.failed = true
	}
}

// AssertErrorCode asserts that err carries code.
func (a *Assertions) AssertErrorCode(err error, code errors.ErrorCode, msg string) {
	a.t.Helper()
	if !errors.HasCode(err, code) {
		a.t.Errorf("%s: expected error code %s, got %v", msg, code, err)
		a.failed = true
	}
}

// RequestAssertions provides assertion helpers for completion requests.
type RequestAssertions struct {
	a   *Assertions
	req *llm.ChatRequest
}

// AssertRequest creates request assertions for the given request.
func (a *Assertions) AssertRequest(req *llm.ChatRequest) *RequestAssertions {
	a.t.Helper()
	if req == nil {
		a.t.Errorf("request is nil")
		a.failed = true
		req = &llm.ChatRequest{}
	}
	return &RequestAssertions{a: a, req: req}
}

// HasModel asserts the request uses the given model.
func (r *RequestAssertions) HasModel(model string) *RequestAssertions {
	r.a.t.Helper()
	if r.req.Model != model {
		r.a.t.Errorf("model: expected %q, got %q", model, r.req.Model)
		r.a.failed = true
	}
	return r
}

// HasMessageCount asserts the number of messages in the request.
func (r *RequestAssertions) HasMessageCount(count int) *RequestAssertions {
	r.a.t.Helper()
	if len(r.req.Messages) != count {
		r.a.t.Errorf("message count: expected %d, got %d", count, len(r.req.Messages))
		r.a.failed = true
	}
	return r
}

// HasSystemMessage asserts a system message exists with the given content.
func (r *RequestAssertions) HasSystemMessage(contains string) *RequestAssertions {
	r.a.t.Helper()
	return r.hasMessage(llm.RoleSystem, contains)
}

// HasUserMessage asserts a user message exists with the given content.
func (r *RequestAssertions) HasUserMessage(contains string) *RequestAssertions {
	r.a.t.Helper()
	return r.hasMessage(llm.RoleUser, contains)
}

// LastMessageHasPrefix asserts the newest message starts with prefix.
func (r *RequestAssertions) LastMessageHasPrefix(prefix string) *RequestAssertions {
	r.a.t.Helper()
	n := len(r.req.Messages)
	if n == 0 || !strings.HasPrefix(r.req.Messages[n-1].Content, prefix) {
		r.a.t.Errorf("last message does not start with %q", prefix)
		r.a.failed = true
	}
	return r
}

// HasStop asserts the request carries a stop sequence.
func (r *RequestAssertions) HasStop(stop string) *RequestAssertions {
	r.a.t.Helper()
	if !slices.Contains(r.req.Stop, stop) {
		r.a.t.Errorf("stop sequences %q do not include %q", r.req.Stop, stop)
		r.a.failed = true
	}
	return r
}

func (r *RequestAssertions) hasMessage(role llm.Role, contains string) *RequestAssertions {
	r.a.t.Helper()
	for _, m := range r.req.Messages {
		if m.Role == role && strings.Contains(m.Content, contains) {
			return r
		}
	}
	r.a.t.Errorf("no %s message containing %q", role, contains)
	r.a.failed = true
	return r
}

// RequireNoError fails the test immediately if err is not nil.
func RequireNoError(t testing.TB, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}
