// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jllopis/policyagent/pkg/errors"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaProvider implements Provider and StreamingProvider for Ollama.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(p *OllamaProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// NewOllama creates a new OllamaProvider.
func NewOllama(baseURL string, opts ...OllamaOption) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	p := &OllamaProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// ollamaEvent is both the unary response and one NDJSON line of a stream.
type ollamaEvent struct {
	Model           string  `json:"model"`
	CreatedAt       string  `json:"created_at"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	TotalDuration   int64   `json:"total_duration,omitempty"`
	PromptEvalCount int     `json:"prompt_eval_count,omitempty"`
	EvalCount       int     `json:"eval_count,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func (e ollamaEvent) usage() Usage {
	return Usage{
		PromptTokens:     e.PromptEvalCount,
		CompletionTokens: e.EvalCount,
		TotalTokens:      e.PromptEvalCount + e.EvalCount,
	}
}

// Chat sends a chat request to Ollama and maps the response to ChatResponse.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := p.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ev ollamaEvent
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		return nil, errors.New(errors.CodeLLMError, "failed to decode ollama response", err)
	}
	if ev.Error != "" {
		return nil, errors.New(errors.CodeLLMError, "ollama: "+ev.Error, nil)
	}
	return &ChatResponse{Content: ev.Message.Content, Usage: ev.usage()}, nil
}

// ChatStream implements StreamingProvider over Ollama's NDJSON stream.
func (p *OllamaProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	resp, err := p.post(ctx, req, true)
	if err != nil {
		return nil, err
	}

	chunks := make(chan StreamChunk, 100)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		send := func(c StreamChunk) bool {
			select {
			case chunks <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				var ev ollamaEvent
				if jerr := json.Unmarshal(line, &ev); jerr == nil {
					if ev.Error != "" {
						send(StreamChunk{Error: errors.New(errors.CodeLLMError, "ollama: "+ev.Error, nil)})
						return
					}
					if ev.Message.Content != "" && !send(StreamChunk{Content: ev.Message.Content}) {
						return
					}
					if ev.Done {
						u := ev.usage()
						send(StreamChunk{Done: true, Usage: &u})
						return
					}
				}
			}
			if err != nil {
				if err != io.EOF {
					send(StreamChunk{Error: errors.New(errors.CodeLLMError, "ollama stream read failed", err)})
				}
				return
			}
		}
	}()

	return chunks, nil
}

func (p *OllamaProvider) post(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	oReq := ollamaRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   stream,
	}
	if req.Temperature != 0 || len(req.Stop) > 0 {
		oReq.Options = map[string]any{}
		if req.Temperature != 0 {
			oReq.Options["temperature"] = req.Temperature
		}
		if len(req.Stop) > 0 {
			oReq.Options["stop"] = req.Stop
		}
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to marshal ollama request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to create http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "ollama api call failed", err).WithRecoverable(true)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.New(errors.CodeLLMError,
			fmt.Sprintf("ollama api returned status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody)), nil).
			WithContext("status", resp.StatusCode).
			WithRecoverable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}
	return resp, nil
}

var (
	_ Provider          = (*OllamaProvider)(nil)
	_ StreamingProvider = (*OllamaProvider)(nil)
)
