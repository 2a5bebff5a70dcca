package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/chronoscribe/chronoscribe/internal/metrics"
	"github.com/chronoscribe/chronoscribe/internal/provider"
)

// LoggingMiddleware logs each completion call and records latency and token
// usage metrics. It keeps no state of its own (the start time rides on the
// per-round RequestMeta), so one instance serves all concurrent runs.
type LoggingMiddleware struct{}

// NewLoggingMiddleware creates the logging/usage middleware.
func NewLoggingMiddleware() *LoggingMiddleware {
	return &LoggingMiddleware{}
}

func (m *LoggingMiddleware) Name() string { return "logging" }

func (m *LoggingMiddleware) ProcessRequest(ctx context.Context, req *provider.ChatRequest, meta *RequestMeta) error {
	meta.start = time.Now()
	slog.Debug("LLM request",
		"trace_id", meta.TraceID,
		"model", meta.ModelName,
		"round", meta.Round,
		"messages", len(req.Messages),
		"tools", len(req.Tools))
	return nil
}

func (m *LoggingMiddleware) ProcessResponse(ctx context.Context, req *provider.ChatRequest, resp *provider.ChatResponse, meta *RequestMeta) error {
	var elapsed time.Duration
	if !meta.start.IsZero() {
		elapsed = time.Since(meta.start)
	}

	model := meta.ModelName
	if model == "" {
		model = req.Model
	}
	metrics.LLMLatency.WithLabelValues(model).Observe(elapsed.Seconds())
	metrics.LLMTokens.WithLabelValues(model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokens.WithLabelValues(model, "completion").Add(float64(resp.Usage.CompletionTokens))

	slog.Info("LLM response",
		"trace_id", meta.TraceID,
		"model", model,
		"round", meta.Round,
		"duration_ms", elapsed.Milliseconds(),
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls),
		"total_tokens", resp.Usage.TotalTokens)
	return nil
}
