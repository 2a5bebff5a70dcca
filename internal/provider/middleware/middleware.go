// Package middleware provides a chain of interceptors between the agent
// loop and the LLM provider. Middleware can inspect or transform requests
// and responses around the completion call.
package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/chronoscribe/chronoscribe/internal/provider"
)

// ChatMiddleware intercepts LLM requests and/or responses.
type ChatMiddleware interface {
	// Name returns a short identifier for logging/metrics.
	Name() string
	// ProcessRequest is called before the LLM call. It may modify the
	// request or return an error to abort.
	ProcessRequest(ctx context.Context, req *provider.ChatRequest, meta *RequestMeta) error
	// ProcessResponse is called after the LLM call. It may modify the
	// response or record bookkeeping.
	ProcessResponse(ctx context.Context, req *provider.ChatRequest, resp *provider.ChatResponse, meta *RequestMeta) error
}

// RequestMeta carries mutable context through the chain. A fresh meta is
// created per round, so middleware may stash per-call state on it.
type RequestMeta struct {
	TraceID   string
	ModelName string
	Round     int

	start time.Time // set by LoggingMiddleware's pre-hook
}

// NewRequestMeta creates a RequestMeta for one loop round.
func NewRequestMeta(traceID, modelName string, round int) *RequestMeta {
	return &RequestMeta{TraceID: traceID, ModelName: modelName, Round: round}
}

// Chain holds an ordered list of middleware and the underlying provider.
// It runs pre-hooks in order, calls the provider, then runs post-hooks.
type Chain struct {
	Middlewares []ChatMiddleware
	Provider    provider.LLMProvider
}

// NewChain creates a chain with the given provider and no middleware.
func NewChain(prov provider.LLMProvider) *Chain {
	return &Chain{Provider: prov}
}

// Use appends middleware to the chain.
func (c *Chain) Use(mw ...ChatMiddleware) {
	c.Middlewares = append(c.Middlewares, mw...)
}

// Process runs pre-hooks, the LLM call, then post-hooks. With no middleware
// configured it is a passthrough. Provider errors are returned unwrapped so
// *provider.EndpointError survives for the caller's errors.As checks.
func (c *Chain) Process(ctx context.Context, req *provider.ChatRequest, meta *RequestMeta) (*provider.ChatResponse, error) {
	if meta == nil {
		meta = NewRequestMeta("", req.Model, 0)
	}

	for _, mw := range c.Middlewares {
		if err := mw.ProcessRequest(ctx, req, meta); err != nil {
			return nil, fmt.Errorf("middleware %s pre-hook: %w", mw.Name(), err)
		}
	}

	resp, err := c.Provider.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, mw := range c.Middlewares {
		if err := mw.ProcessResponse(ctx, req, resp, meta); err != nil {
			return nil, fmt.Errorf("middleware %s post-hook: %w", mw.Name(), err)
		}
	}
	return resp, nil
}
