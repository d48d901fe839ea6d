// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/policyagent/pkg/errors"
	"github.com/jllopis/policyagent/pkg/resilience"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 30 * time.Second
)

// ClientOption customizes the MCP client wrapper behavior.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry configures retries of failed requests. Cancellation and
// deadlines are never retried.
func WithRetry(cfg resilience.RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithToolCacheTTL sets the tool discovery cache TTL. Use 0 to disable caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client wraps an mcp-go client with timeouts, retries and a tool cache.
type Client struct {
	mcpClient client.MCPClient
	timeout   time.Duration
	retry     resilience.RetryConfig
	cacheTTL  time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewClient creates a new Client with the given MCP client implementation.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	cl := &Client{
		mcpClient: c,
		timeout:   defaultTimeout,
		retry:     resilience.DefaultRetryConfig().WithMaxAttempts(3).WithIsRecoverable(retryable),
		cacheTTL:  defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// NewClientWithStdio starts command and connects to it over Stdio.
func NewClientWithStdio(ctx context.Context, command string, args []string, opts ...ClientOption) (*Client, error) {
	stdioClient, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, errors.New(errors.CodeToolFailure, "failed to start MCP server", err).
			WithContext("command", command)
	}
	if err := stdioClient.Start(ctx); err != nil {
		_ = stdioClient.Close()
		return nil, errors.New(errors.CodeToolFailure, "failed to start MCP transport", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "policyagent-client",
		Version: "0.1.0",
	}
	if _, err := stdioClient.Initialize(initCtx, initRequest); err != nil {
		_ = stdioClient.Close()
		return nil, errors.New(errors.CodeToolFailure, "MCP initialize failed", err)
	}

	return NewClient(stdioClient, opts...), nil
}

// ListTools retrieves the list of tools available on the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	resp, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) (*mcp.ListToolsResult, error) {
		reqCtx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.mcpClient.ListTools(reqCtx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}
	c.storeTools(resp.Tools)
	return resp.Tools, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	return resilience.Retry(ctx, c.retry, func(ctx context.Context) (*mcp.CallToolResult, error) {
		reqCtx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.mcpClient.CallTool(reqCtx, req)
	})
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func (c *Client) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || time.Now().After(c.cacheExpiry) {
		return nil
	}
	out := make([]mcp.Tool, len(c.toolsCache))
	copy(out, c.toolsCache)
	return out
}

func (c *Client) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = make([]mcp.Tool, len(tools))
	copy(c.toolsCache, tools)
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func retryable(err error) bool {
	return !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
}
