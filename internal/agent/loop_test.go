package agent

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/chronoscribe/chronoscribe/internal/forecast"
	"github.com/chronoscribe/chronoscribe/internal/provider"
)

// scriptedProvider replays a fixed sequence of responses (or errors) and
// records every request it receives.
type scriptedProvider struct {
	steps    []scriptStep
	requests []*provider.ChatRequest
}

type scriptStep struct {
	resp *provider.ChatResponse
	err  error
}

func (p *scriptedProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	// Snapshot messages so later appends don't alias.
	cp := *req
	cp.Messages = append([]provider.Message{}, req.Messages...)
	p.requests = append(p.requests, &cp)

	i := len(p.requests) - 1
	if i >= len(p.steps) {
		i = len(p.steps) - 1 // repeat the last step forever
	}
	step := p.steps[i]
	return step.resp, step.err
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }

const validForecastJSON = `{
	"premise": "What if the printing press was never invented?",
	"assumptions": ["literacy stays scarce"],
	"time_horizon": "3y",
	"scenarios": [
		{"name": "Baseline", "probability": 0.5, "summary": "slow drift",
		 "timeline": [
			{"year_or_period": "T+0", "event": "scribes dominate"},
			{"year_or_period": "T+1y", "event": "manuscript demand grows"},
			{"year_or_period": "T+2y", "event": "guilds consolidate"},
			{"year_or_period": "T+3y", "event": "knowledge stays local"}
		 ],
		 "second_order_effects": ["church retains interpretive monopoly"]},
		{"name": "Best Case", "probability": 0.25, "summary": "alternate copying tech",
		 "timeline": [], "second_order_effects": []},
		{"name": "Worst Case", "probability": 0.25, "summary": "stagnation",
		 "timeline": [], "second_order_effects": []}
	],
	"tradeoffs": ["slower science, richer oral tradition"],
	"red_team": ["woodblock printing may fill the gap"],
	"speculative_realism_score": 0.7,
	"style": "brief",
	"disclaimer": "Speculative."
}`

func baseRequest() SimulationRequest {
	return SimulationRequest{
		Premise:       "What if the printing press was never invented?",
		Horizon:       3,
		ToolsEnabled:  true,
		ReferenceYear: 1450,
		Temperature:   0.7,
	}
}

func newTestLoop(p provider.LLMProvider, maxRounds int) *Loop {
	return New(Options{
		Provider:     p,
		MaxRounds:    maxRounds,
		ToolsEnabled: true,
	})
}

func TestRoundZeroDoneWithoutDispatch(t *testing.T) {
	p := &scriptedProvider{steps: []scriptStep{
		{resp: &provider.ChatResponse{Content: validForecastJSON}},
	}}
	loop := newTestLoop(p, 4)

	f, err := loop.Simulate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Simulate() error: %v", err)
	}
	if len(p.requests) != 1 {
		t.Errorf("expected 1 model invocation, got %d", len(p.requests))
	}
	if f.Incomplete {
		t.Error("expected complete forecast")
	}
	sum := 0.0
	for _, b := range f.Branches {
		sum += b.Probability
	}
	if math.Abs(sum-1) > forecast.ProbabilityTolerance {
		t.Errorf("probabilities sum to %v", sum)
	}
}

func TestAdversarialToolLoopBounded(t *testing.T) {
	maxRounds := 4
	p := &scriptedProvider{steps: []scriptStep{
		{resp: &provider.ChatResponse{ToolCalls: []provider.ToolCall{{
			ID:   "call_1",
			Name: "make_timeline_anchors",
			Arguments: map[string]any{
				"reference_year": float64(1450), "horizon": float64(3),
			},
		}}}},
	}}
	loop := newTestLoop(p, maxRounds)

	f, err := loop.Simulate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("exhaustion must not be fatal: %v", err)
	}
	if len(p.requests) != maxRounds {
		t.Errorf("expected exactly %d model invocations, got %d", maxRounds, len(p.requests))
	}
	if !f.Incomplete {
		t.Error("expected forecast flagged incomplete")
	}
	if len(f.Branches) != 3 {
		t.Errorf("degraded forecast still needs 3 branches, got %d", len(f.Branches))
	}
}

func TestToolResultsAppendedInOrder(t *testing.T) {
	anchorsCall := provider.ToolCall{
		ID:   "call_a",
		Name: "make_timeline_anchors",
		Arguments: map[string]any{
			"reference_year": float64(1450), "horizon": float64(3),
		},
	}
	// Same call twice: no deduplication, both get results.
	p := &scriptedProvider{steps: []scriptStep{
		{resp: &provider.ChatResponse{ToolCalls: []provider.ToolCall{anchorsCall, anchorsCall}}},
		{resp: &provider.ChatResponse{Content: validForecastJSON}},
	}}
	loop := newTestLoop(p, 4)

	if _, err := loop.Simulate(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Simulate() error: %v", err)
	}
	if len(p.requests) != 2 {
		t.Fatalf("expected 2 model invocations, got %d", len(p.requests))
	}

	msgs := p.requests[1].Messages
	var toolTurns []provider.Message
	for _, m := range msgs {
		if m.Role == "tool" {
			toolTurns = append(toolTurns, m)
		}
	}
	if len(toolTurns) != 2 {
		t.Fatalf("expected 2 tool turns, got %d", len(toolTurns))
	}
	for _, turn := range toolTurns {
		if !strings.Contains(turn.Content, "T+3y") {
			t.Errorf("tool turn missing anchors: %q", turn.Content)
		}
	}
	// Assistant turn carrying the tool calls precedes the results.
	if msgs[2].Role != "assistant" || len(msgs[2].ToolCalls) != 2 {
		t.Errorf("assistant tool-call turn missing: %+v", msgs[2])
	}
}

func TestMalformedOutputSingleRetryThenDegraded(t *testing.T) {
	p := &scriptedProvider{steps: []scriptStep{
		{resp: &provider.ChatResponse{Content: "I would rather chat about the weather."}},
	}}
	loop := newTestLoop(p, 4)

	f, err := loop.Simulate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("persistent malformed output must degrade, not fail: %v", err)
	}
	// One initial invoke + exactly one corrective retry.
	if len(p.requests) != 2 {
		t.Fatalf("expected 2 model invocations, got %d", len(p.requests))
	}
	last := p.requests[1].Messages
	corrective := last[len(last)-1]
	if corrective.Role != "user" || !strings.Contains(corrective.Content, "valid JSON") {
		t.Errorf("corrective turn wrong: %+v", corrective)
	}
	if !f.Incomplete {
		t.Error("expected incomplete forecast")
	}
	if f.Premise != baseRequest().Premise {
		t.Errorf("premise not defaulted from request: %q", f.Premise)
	}
}

func TestEndpointFailurePropagatesWithoutRetry(t *testing.T) {
	authErr := &provider.EndpointError{
		Kind:       provider.FailureAuth,
		StatusCode: 401,
		Err:        errors.New("invalid api key"),
	}
	p := &scriptedProvider{steps: []scriptStep{{err: authErr}}}
	loop := newTestLoop(p, 4)

	_, err := loop.Simulate(context.Background(), baseRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	var ee *provider.EndpointError
	if !errors.As(err, &ee) {
		t.Fatalf("error kind = %T, want *provider.EndpointError", err)
	}
	if ee.Kind != provider.FailureAuth {
		t.Errorf("Kind = %v, want auth", ee.Kind)
	}
	if len(p.requests) != 1 {
		t.Errorf("expected no retry after endpoint failure, got %d invocations", len(p.requests))
	}
}

func TestToolsDisabledSkipsDispatch(t *testing.T) {
	p := &scriptedProvider{steps: []scriptStep{
		{resp: &provider.ChatResponse{Content: validForecastJSON}},
	}}
	loop := New(Options{Provider: p, MaxRounds: 4, ToolsEnabled: true})

	req := baseRequest()
	req.ToolsEnabled = false
	if _, err := loop.Simulate(context.Background(), req); err != nil {
		t.Fatalf("Simulate() error: %v", err)
	}
	if len(p.requests[0].Tools) != 0 {
		t.Errorf("tool definitions sent despite tools disabled: %d", len(p.requests[0].Tools))
	}
}

func TestDegradedToolFailureDoesNotAbort(t *testing.T) {
	p := &scriptedProvider{steps: []scriptStep{
		{resp: &provider.ChatResponse{ToolCalls: []provider.ToolCall{{
			ID:        "call_bad",
			Name:      "make_timeline_anchors",
			Arguments: map[string]any{"horizon": float64(-5)},
		}}}},
		{resp: &provider.ChatResponse{Content: validForecastJSON}},
	}}
	loop := newTestLoop(p, 4)

	f, err := loop.Simulate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("tool failure must not abort the loop: %v", err)
	}
	if f.Incomplete {
		t.Error("expected complete forecast after degraded tool call")
	}

	msgs := p.requests[1].Messages
	found := false
	for _, m := range msgs {
		if m.Role == "tool" && strings.Contains(m.Content, "Error:") {
			found = true
		}
	}
	if !found {
		t.Error("expected degraded tool result turn")
	}
}

func TestPrintingPressEndToEnd(t *testing.T) {
	p := &scriptedProvider{steps: []scriptStep{
		{resp: &provider.ChatResponse{ToolCalls: []provider.ToolCall{{
			ID:   "call_anchors",
			Name: "make_timeline_anchors",
			Arguments: map[string]any{
				"reference_year": float64(1450), "horizon": float64(3),
			},
		}}}},
		{resp: &provider.ChatResponse{Content: validForecastJSON}},
	}}
	loop := newTestLoop(p, 4)

	f, err := loop.Simulate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Simulate() error: %v", err)
	}

	sum := 0.0
	for _, b := range f.Branches {
		sum += b.Probability
	}
	if math.Abs(sum-1) > forecast.ProbabilityTolerance {
		t.Errorf("probabilities sum to %v", sum)
	}

	baseline := f.Branches[0]
	if len(baseline.Timeline) != 4 {
		t.Fatalf("expected 4 timeline entries, got %d", len(baseline.Timeline))
	}
	for i, want := range []string{"T+0", "T+1y", "T+2y", "T+3y"} {
		if baseline.Timeline[i].Anchor != want {
			t.Errorf("timeline[%d] = %q, want %q", i, baseline.Timeline[i].Anchor, want)
		}
	}
	if len(f.Tradeoffs) == 0 || len(f.RedTeam) == 0 || len(f.Assumptions) == 0 {
		t.Error("expected non-empty rationale fields")
	}
	if f.Incomplete {
		t.Error("expected complete forecast")
	}
	if f.Rounds != 2 || f.ToolCalls != 1 {
		t.Errorf("run stats = %d rounds / %d tool calls, want 2 / 1", f.Rounds, f.ToolCalls)
	}
}

// cancelAwareProvider honors context cancellation the way a real HTTP client
// does. When cancel is set it fires after the first successful response.
type cancelAwareProvider struct {
	calls  int
	cancel context.CancelFunc
}

func (p *cancelAwareProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	p.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.cancel != nil {
		p.cancel()
	}
	return &provider.ChatResponse{ToolCalls: []provider.ToolCall{{
		ID:   "call_c",
		Name: "make_timeline_anchors",
		Arguments: map[string]any{
			"reference_year": float64(2024), "horizon": float64(1),
		},
	}}}, nil
}

func (p *cancelAwareProvider) DefaultModel() string { return "test-model" }

func TestCancelledContextStopsBeforeFirstCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &cancelAwareProvider{}
	loop := newTestLoop(p, 4)

	f, err := loop.Simulate(ctx, baseRequest())
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if f != nil {
		t.Errorf("expected no forecast, got %+v", f)
	}
	var ee *provider.EndpointError
	if !errors.As(err, &ee) {
		t.Fatalf("error kind = %T, want *provider.EndpointError", err)
	}
	if ee.Kind != provider.FailureTransport {
		t.Errorf("Kind = %v, want transport", ee.Kind)
	}
	if p.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", p.calls)
	}
}

func TestCancelledContextStopsMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &cancelAwareProvider{cancel: cancel}
	loop := newTestLoop(p, 4)

	f, err := loop.Simulate(ctx, baseRequest())
	if err == nil {
		t.Fatal("expected error after mid-run cancellation")
	}
	if f != nil {
		t.Errorf("expected no forecast, got %+v", f)
	}
	var ee *provider.EndpointError
	if !errors.As(err, &ee) {
		t.Fatalf("error kind = %T, want *provider.EndpointError", err)
	}
	if p.calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", p.calls)
	}
}

func TestExhaustedSalvagesContentAlongsideToolCalls(t *testing.T) {
	anchorsCall := provider.ToolCall{
		ID:   "call_s",
		Name: "make_timeline_anchors",
		Arguments: map[string]any{
			"reference_year": float64(1450), "horizon": float64(3),
		},
	}
	// The model keeps asking for tools past the bound, but its last turn
	// carries a complete answer next to the calls.
	p := &scriptedProvider{steps: []scriptStep{
		{resp: &provider.ChatResponse{ToolCalls: []provider.ToolCall{anchorsCall}}},
		{resp: &provider.ChatResponse{ToolCalls: []provider.ToolCall{anchorsCall}, Content: validForecastJSON}},
	}}
	loop := newTestLoop(p, 2)

	f, err := loop.Simulate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Simulate() error: %v", err)
	}
	if !f.Incomplete {
		t.Error("expected incomplete forecast at exhaustion")
	}
	if f.Branches[0].Summary != "slow drift" {
		t.Errorf("last content not salvaged, Baseline summary = %q", f.Branches[0].Summary)
	}
	if len(f.Assumptions) == 0 {
		t.Error("salvaged assumptions missing")
	}
}

func TestTruncateForLogRuneSafe(t *testing.T) {
	if got := truncateForLog("short", 120); got != "short" {
		t.Errorf("short string altered: %q", got)
	}

	s := strings.Repeat("é", 10) // 2 bytes per rune
	got := truncateForLog(s, 5)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("missing ellipsis: %q", got)
	}
	trimmed := strings.TrimSuffix(got, "...")
	if len(trimmed) > 5 {
		t.Errorf("kept %d bytes, want at most 5", len(trimmed))
	}
	if !utf8.ValidString(trimmed) {
		t.Errorf("truncation split a rune: %q", trimmed)
	}
}

func TestHorizonFromWord(t *testing.T) {
	cases := map[string]int{"short": 5, "Medium": 25, " LONG ": 50}
	for word, want := range cases {
		got, ok := HorizonFromWord(word)
		if !ok || got != want {
			t.Errorf("HorizonFromWord(%q) = %d, %v, want %d", word, got, ok, want)
		}
	}
	if _, ok := HorizonFromWord("eventually"); ok {
		t.Error("unknown word should not map")
	}
	if _, ok := HorizonFromWord(""); ok {
		t.Error("empty word should not map")
	}
}

func TestExhaustedStillProducesForecast(t *testing.T) {
	// Tool ping-pong until a tight bound: the run exhausts without ever
	// reaching a final answer, yet a well-formed degraded forecast comes back.
	steps := []scriptStep{
		{resp: &provider.ChatResponse{ToolCalls: []provider.ToolCall{{
			ID: "c1", Name: "make_timeline_anchors",
			Arguments: map[string]any{"reference_year": float64(2024), "horizon": float64(1)},
		}}}},
		{resp: &provider.ChatResponse{ToolCalls: []provider.ToolCall{{
			ID: "c2", Name: "make_timeline_anchors",
			Arguments: map[string]any{"reference_year": float64(2024), "horizon": float64(1)},
		}}, Content: "working on it"}},
	}
	p := &scriptedProvider{steps: steps}
	loop := newTestLoop(p, 2)

	f, err := loop.Simulate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Simulate() error: %v", err)
	}
	if !f.Incomplete {
		t.Error("expected incomplete forecast at exhaustion")
	}
	if f.Premise == "" || len(f.Branches) != 3 {
		t.Errorf("degraded forecast malformed: %+v", f)
	}
}
