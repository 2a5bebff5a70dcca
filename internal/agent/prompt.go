package agent

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/chronoscribe/chronoscribe/internal/forecast"
	"github.com/chronoscribe/chronoscribe/internal/provider"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset bundles a style, temperature, and extra constraints under a name.
type Preset struct {
	Style       string   `yaml:"style"`
	Temperature float64  `yaml:"temperature"`
	Constraints []string `yaml:"constraints"`
}

var presets = mustLoadPresets()

func mustLoadPresets() map[string]Preset {
	m := make(map[string]Preset)
	if err := yaml.Unmarshal(presetsYAML, &m); err != nil {
		panic(fmt.Sprintf("agent: bad embedded presets: %v", err))
	}
	return m
}

// PresetNames returns the known preset names.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}

// ApplyPreset fills Style, Temperature, and Constraints from the named
// preset where the request left them unset. Unknown presets fall back to
// "default".
func ApplyPreset(req SimulationRequest) SimulationRequest {
	p, ok := presets[req.Preset]
	if !ok {
		p = presets["default"]
	}
	if req.Style == "" {
		req.Style = p.Style
	}
	if req.Temperature == 0 {
		req.Temperature = p.Temperature
	}
	if len(p.Constraints) > 0 {
		req.Constraints = append(append([]string{}, req.Constraints...), p.Constraints...)
	}
	return req
}

// systemPrompt encodes the agent's role, the output contract, and the rule
// that tool calls are optional and bounded.
func systemPrompt(referenceYear int, toolsEnabled bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are ChronoScribe, a what-if simulation agent.
The reference year (T+0) is %d.
`, referenceYear)

	if toolsEnabled {
		b.WriteString(`You may call tools to improve realism: use make_timeline_anchors to set consistent time labels, and wiki_summary to ground assumptions. Tool use is optional and bounded; prefer calling tools early, then answer.
`)
	}

	fmt.Fprintf(&b, `Respond ONLY with a single JSON object. No prose, no code fences, no markdown.

The JSON MUST match this shape exactly:
{
  "premise": "...",
  "assumptions": ["..."],
  "time_horizon": "...",
  "scenarios": [
    {
      "name": "%s",
      "probability": 0.5,
      "summary": "...",
      "timeline": [
        {"year_or_period": "T+1y", "event": "...", "rationale": "..."}
      ],
      "second_order_effects": ["..."]
    },
    {"name": "%s", "probability": 0.25, "summary": "...", "timeline": [], "second_order_effects": []},
    {"name": "%s", "probability": 0.25, "summary": "...", "timeline": [], "second_order_effects": []}
  ],
  "tradeoffs": ["..."],
  "red_team": ["Key uncertainties or failure modes..."],
  "speculative_realism_score": 0.0,
  "style": "brief|cinematic|bullet|paper",
  "disclaimer": "Short reminder that this is speculative."
}

Guidelines:
- Keep it concise and information-dense.
- Ensure scenario probabilities sum to ~1.0.
- Use year_or_period labels of the form T+0, T+1y, T+2y, in increasing order.
- Use realistic causal chains; avoid impossibilities.
- Output must be valid JSON and ONLY a JSON object.
`, forecast.BranchBaseline, forecast.BranchBest, forecast.BranchWorst)

	return b.String()
}

// userPrompt encodes the premise and the run's hints.
func userPrompt(req SimulationRequest, referenceYear int) string {
	parts := []string{
		fmt.Sprintf("Premise: %s", req.Premise),
		fmt.Sprintf("Time Horizon: %dy", req.Horizon),
		fmt.Sprintf("Style: %s", req.Style),
		fmt.Sprintf("Reference year: %d", referenceYear),
	}
	if req.Scope != "" {
		parts = append(parts, fmt.Sprintf("Scope: %s", req.Scope))
	}
	if len(req.Constraints) > 0 {
		parts = append(parts, "Constraints:\n- "+strings.Join(req.Constraints, "\n- "))
	}
	parts = append(parts, "Return only a JSON object as specified above.")
	return strings.Join(parts, "\n")
}

// BuildConversation produces the initial conversation state for a run: one
// system turn and one user turn.
func BuildConversation(req SimulationRequest, referenceYear int, toolsEnabled bool) []provider.Message {
	return []provider.Message{
		{Role: "system", Content: systemPrompt(referenceYear, toolsEnabled)},
		{Role: "user", Content: userPrompt(req, referenceYear)},
	}
}

// correctivePrompt is the single re-prompt appended after malformed output.
const correctivePrompt = "Your previous reply was not a valid JSON object. Re-emit the complete forecast as a single valid JSON object matching the required shape. No prose, no code fences."
