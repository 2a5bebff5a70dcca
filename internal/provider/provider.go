// Package provider implements the completion endpoint capability the agent
// loop depends on, plus an OpenAI-compatible client.
package provider

import (
	"context"
	"fmt"
	"net/http"
)

// LLMProvider is the interface for LLM API clients.
type LLMProvider interface {
	// Chat sends a completion request and returns the response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	Tools       []map[string]any
	Model       string
	MaxTokens   int
	Temperature float64
	// ForceJSON asks the endpoint for a single JSON object response.
	ForceJSON bool
}

// ChatResponse contains the response from a chat completion request.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// Message represents one conversation turn.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FailureKind classifies endpoint failures so the transport layer can map
// them to response codes.
type FailureKind string

const (
	FailureAuth      FailureKind = "auth"
	FailureQuota     FailureKind = "quota"
	FailureTransport FailureKind = "transport"
	FailureProtocol  FailureKind = "protocol"
)

// EndpointError is the single fatal error kind the core surfaces: the
// completion endpoint itself failed. Everything below it is absorbed.
type EndpointError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *EndpointError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion endpoint failure (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion endpoint failure (%s): %v", e.Kind, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status to a failure kind.
func classifyStatus(status int) FailureKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureAuth
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return FailureQuota
	default:
		return FailureProtocol
	}
}
