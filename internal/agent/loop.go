// Package agent implements the policy-driven tool-calling loop that turns a
// what-if premise into a structured forecast.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chronoscribe/chronoscribe/internal/forecast"
	"github.com/chronoscribe/chronoscribe/internal/metrics"
	"github.com/chronoscribe/chronoscribe/internal/provider"
	"github.com/chronoscribe/chronoscribe/internal/provider/middleware"
	"github.com/chronoscribe/chronoscribe/internal/tools"
	"github.com/google/uuid"
)

const (
	defaultMaxRounds = 4
	defaultMaxTokens = 4096
)

// Options configures a Loop.
type Options struct {
	Provider provider.LLMProvider
	// Registry supplies the tools advertised to the model. A nil registry
	// gets the default wiki_summary + make_timeline_anchors pair.
	Registry *tools.Registry
	// Middlewares are installed between the loop and the provider.
	Middlewares []middleware.ChatMiddleware
	Model       string
	MaxRounds   int
	MaxTokens   int
	// Temperature is the fallback when neither the request nor its preset
	// supplies one.
	Temperature float64
	// ToolsEnabled is the global switch; a run's request can only narrow it.
	ToolsEnabled bool
	// ReferenceYear pins T+0 for every run (0 = current year per run).
	ReferenceYear int
}

// Loop drives bounded model/tool round-trips for one simulation at a time.
// A single Loop is safe for concurrent use: all per-run state lives on the
// goroutine's stack.
type Loop struct {
	chain         *middleware.Chain
	registry      *tools.Registry
	model         string
	maxRounds     int
	maxTokens     int
	temperature   float64
	toolsEnabled  bool
	referenceYear int
}

// New creates a Loop.
func New(opts Options) *Loop {
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	registry := opts.Registry
	if registry == nil {
		registry = tools.NewRegistry()
		registry.Register(tools.NewAnchorsTool())
		registry.Register(tools.NewWikiTool())
	}

	chain := middleware.NewChain(opts.Provider)
	chain.Use(opts.Middlewares...)

	model := opts.Model
	if model == "" && opts.Provider != nil {
		model = opts.Provider.DefaultModel()
	}

	return &Loop{
		chain:         chain,
		registry:      registry,
		model:         model,
		maxRounds:     maxRounds,
		maxTokens:     maxTokens,
		temperature:   opts.Temperature,
		toolsEnabled:  opts.ToolsEnabled,
		referenceYear: opts.ReferenceYear,
	}
}

// Registry exposes the loop's tool registry.
func (l *Loop) Registry() *tools.Registry { return l.registry }

// Simulate runs one simulation to a terminal state. It returns a normalized
// Forecast (possibly flagged incomplete) or a *provider.EndpointError; no
// other error kind escapes.
func (l *Loop) Simulate(ctx context.Context, req SimulationRequest) (*forecast.Forecast, error) {
	req = ApplyPreset(req)
	if req.Temperature == 0 {
		req.Temperature = l.temperature
	}
	referenceYear := l.resolveReferenceYear(req)
	toolsOn := l.toolsEnabled && req.ToolsEnabled
	traceID := uuid.NewString()[:8]

	messages := BuildConversation(req, referenceYear, toolsOn)

	var toolDefs []map[string]any
	if toolsOn {
		toolDefs = l.registry.Definitions()
	}

	slog.Info("simulation started",
		"trace_id", traceID,
		"premise", truncateForLog(req.Premise, 120),
		"horizon", req.Horizon,
		"reference_year", referenceYear,
		"tools_enabled", toolsOn)

	var (
		lastContent string
		retried     bool
		rounds      int
		toolCalls   int
	)

	for round := 0; round < l.maxRounds; round++ {
		rounds = round + 1

		resp, err := l.chain.Process(ctx, &provider.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Model:       l.model,
			MaxTokens:   l.maxTokens,
			Temperature: req.Temperature,
			ForceJSON:   true,
		}, middleware.NewRequestMeta(traceID, l.model, round))
		if err != nil {
			metrics.SimulateRequests.WithLabelValues("endpoint_failure").Inc()
			return nil, asEndpointError(err)
		}

		// Content arriving alongside tool calls still counts as the last
		// available raw answer for the Exhausted fallback.
		if resp.Content != "" {
			lastContent = resp.Content
		}

		// Dispatch: execute requested tools in request order, no dedup.
		if toolsOn && len(resp.ToolCalls) > 0 {
			messages = append(messages, provider.Message{
				Role:      "assistant",
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})
			for _, tc := range resp.ToolCalls {
				messages = append(messages, l.dispatch(ctx, traceID, tc))
				toolCalls++
			}
			continue
		}

		raw, decodeErr := forecast.Decode(resp.Content)
		if decodeErr == nil {
			f := l.finalize(raw, req, false, rounds, toolCalls)
			metrics.SimulateRequests.WithLabelValues("done").Inc()
			metrics.LoopRounds.Observe(float64(rounds))
			slog.Info("simulation done", "trace_id", traceID, "rounds", rounds)
			return f, nil
		}

		// Malformed: one corrective re-prompt, counted against the bound.
		if !retried && round+1 < l.maxRounds {
			retried = true
			slog.Warn("malformed model output, re-prompting",
				"trace_id", traceID, "round", round, "error", decodeErr)
			messages = append(messages,
				provider.Message{Role: "assistant", Content: resp.Content},
				provider.Message{Role: "user", Content: correctivePrompt},
			)
			continue
		}
		break
	}

	// Exhausted: best-effort answer from the last raw content, flagged
	// incomplete. Never fatal.
	var raw forecast.RawForecast
	if lastContent != "" {
		if salvaged, err := forecast.Decode(lastContent); err == nil {
			raw = salvaged
		}
	}
	f := l.finalize(raw, req, true, rounds, toolCalls)
	metrics.SimulateRequests.WithLabelValues("exhausted").Inc()
	metrics.LoopRounds.Observe(float64(rounds))
	slog.Warn("simulation exhausted", "trace_id", traceID, "rounds", rounds)
	return f, nil
}

// dispatch executes one requested tool call and wraps the outcome as a tool
// turn. Tool failures degrade to readable results; they never abort the run.
func (l *Loop) dispatch(ctx context.Context, traceID string, tc provider.ToolCall) provider.Message {
	start := time.Now()
	result, err := l.registry.Execute(ctx, tc.Name, tc.Arguments)
	status := "ok"
	if err != nil {
		result = fmt.Sprintf("Error: %v", err)
		status = "degraded"
	} else if strings.HasPrefix(result, "Error:") {
		status = "degraded"
	}
	metrics.ToolExecutions.WithLabelValues(tc.Name, status).Inc()

	slog.Debug("tool executed",
		"trace_id", traceID,
		"tool", tc.Name,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
		"result_length", len(result))

	return provider.Message{
		Role:       "tool",
		Content:    result,
		ToolCallID: tc.ID,
	}
}

// finalize applies request-level defaults the model may have omitted,
// normalizes, and stamps the run statistics.
func (l *Loop) finalize(raw forecast.RawForecast, req SimulationRequest, incomplete bool, rounds, toolCalls int) *forecast.Forecast {
	if raw.Premise == "" {
		raw.Premise = req.Premise
	}
	if raw.TimeHorizon == "" {
		raw.TimeHorizon = fmt.Sprintf("%dy", req.Horizon)
	}
	if raw.Style == "" {
		raw.Style = req.Style
	}
	f := forecast.Normalize(raw)
	f.Incomplete = incomplete
	f.Rounds = rounds
	f.ToolCalls = toolCalls
	return &f
}

func (l *Loop) resolveReferenceYear(req SimulationRequest) int {
	if req.ReferenceYear != 0 {
		return req.ReferenceYear
	}
	if l.referenceYear != 0 {
		return l.referenceYear
	}
	return time.Now().UTC().Year()
}

// asEndpointError guarantees the fatal path always carries the single
// well-defined error kind, whatever the provider implementation returned.
func asEndpointError(err error) error {
	var ee *provider.EndpointError
	if errors.As(err, &ee) {
		return ee
	}
	return &provider.EndpointError{Kind: provider.FailureTransport, Err: err}
}

// truncateForLog shortens s to at most maxLen bytes without splitting a
// UTF-8 sequence.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
