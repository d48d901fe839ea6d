// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jllopis/policyagent/pkg/errors"
	"github.com/jllopis/policyagent/pkg/resilience"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
}

func TestStreamAdaptsChatProvider(t *testing.T) {
	sp := Stream(&MockProvider{Response: "Final Answer: ok"})
	ch, err := sp.ChatStream(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	text, usage, err := Collect(context.Background(), ch)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "Final Answer: ok" {
		t.Errorf("text = %q", text)
	}
	if usage == nil || usage.TotalTokens != 20 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestStreamKeepsStreamingProvider(t *testing.T) {
	scripted := NewScriptedMockProvider("x")
	if Stream(scripted) != StreamingProvider(scripted) {
		t.Fatal("streaming providers must be returned unchanged")
	}
}

func TestFragments(t *testing.T) {
	tests := []struct {
		text string
		size int
		want []string
	}{
		{"", 3, nil},
		{"abc", 0, []string{"abc"}},
		{"abcdefg", 3, []string{"abc", "def", "g"}},
		{"☀️ok", 1, []string{"☀", "️", "o", "k"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Fragments(tt.text, tt.size)); diff != "" {
			t.Errorf("Fragments(%q, %d) (-want +got):\n%s", tt.text, tt.size, diff)
		}
	}
}

func TestScriptedMockStreamsFragments(t *testing.T) {
	p := NewScriptedMockProvider("Thought: hi\nFinal Answer: done", "second")
	p.ChunkSize = 1

	ch, err := p.ChatStream(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	fragments := 0
	var b strings.Builder
	for c := range ch {
		if c.Done {
			break
		}
		fragments++
		b.WriteString(c.Content)
	}
	if b.String() != "Thought: hi\nFinal Answer: done" {
		t.Errorf("reassembled %q", b.String())
	}
	if fragments != len("Thought: hi\nFinal Answer: done") {
		t.Errorf("fragments = %d", fragments)
	}
	if p.PeekNext() != "second" || p.Calls() != 1 || p.Requests[0].Model != "m" {
		t.Errorf("unexpected provider state: next=%q calls=%d", p.PeekNext(), p.Calls())
	}
}

func TestScriptedMockExhausted(t *testing.T) {
	p := NewScriptedMockProvider()
	if _, err := p.ChatStream(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error when script is exhausted")
	}
}

func TestScriptedMockStopsOnCancel(t *testing.T) {
	p := NewScriptedMockProvider(strings.Repeat("x", 100))
	p.ChunkSize = 1
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.ChatStream(ctx, ChatRequest{})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	<-ch
	cancel()
	for range ch {
	}
}

func TestWithRetry(t *testing.T) {
	cfg := resilience.DefaultRetryConfig().WithInitialDelay(time.Millisecond)

	flaky := &FlakyProvider{Failures: 2, Next: Stream(&MockProvider{Response: "ok"})}
	ch, err := WithRetry(flaky, cfg).ChatStream(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if text, _, _ := Collect(context.Background(), ch); text != "ok" || flaky.Calls() != 3 {
		t.Errorf("text=%q calls=%d", text, flaky.Calls())
	}

	fatal := &FlakyProvider{Failures: -1, Err: errors.New(errors.CodeLLMError, "bad key", nil)}
	if _, err := WithRetry(fatal, cfg).ChatStream(context.Background(), ChatRequest{}); err == nil || fatal.Calls() != 1 {
		t.Errorf("fatal errors must not retry: err=%v calls=%d", err, fatal.Calls())
	}

	down := &FlakyProvider{Failures: -1}
	if _, err := WithRetry(down, cfg.WithMaxAttempts(2)).ChatStream(context.Background(), ChatRequest{}); !errors.HasCode(err, errors.CodeLLMError) || down.Calls() != 2 {
		t.Errorf("expected LLM_ERROR after 2 attempts: err=%v calls=%d", err, down.Calls())
	}

	if WithRetry(fatal, cfg.WithMaxAttempts(1)) != StreamingProvider(fatal) {
		t.Error("single attempt config should not wrap")
	}
}

func TestOllamaChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		for _, part := range []string{"Thought: ", "checking\n", "Final Answer: sunny"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":7,"eval_count":5}`)
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	ch, err := p.ChatStream(context.Background(), ChatRequest{Model: "llama3", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	text, usage, err := Collect(context.Background(), ch)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "Thought: checking\nFinal Answer: sunny" {
		t.Errorf("text = %q", text)
	}
	if usage == nil || usage.TotalTokens != 12 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestOllamaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL).ChatStream(context.Background(), ChatRequest{Model: "nope"})
	if !errors.HasCode(err, errors.CodeLLMError) {
		t.Fatalf("expected LLM_ERROR, got %v", err)
	}
	var ae *errors.AgentError
	if !stderrors.As(err, &ae) || ae.Recoverable {
		t.Errorf("a 404 should not be recoverable: %+v", ae)
	}
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Final Answer: hi"},"done":true,"prompt_eval_count":1,"eval_count":2}`)
	}))
	defer srv.Close()

	resp, err := NewOllama(srv.URL, WithHTTPClient(srv.Client())).Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "Final Answer: hi" || resp.Usage.TotalTokens != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
}
