package agent

import (
	"strings"
	"testing"
)

func TestApplyPresetFillsUnsetFields(t *testing.T) {
	req := ApplyPreset(SimulationRequest{Premise: "p", Preset: "cinematic"})
	if req.Style != "cinematic" {
		t.Errorf("Style = %q, want cinematic", req.Style)
	}
	if req.Temperature != 0.9 {
		t.Errorf("Temperature = %v, want 0.9", req.Temperature)
	}

	req = ApplyPreset(SimulationRequest{Premise: "p", Preset: "risk"})
	if len(req.Constraints) == 0 {
		t.Error("expected risk preset constraints")
	}
}

func TestApplyPresetKeepsExplicitValues(t *testing.T) {
	req := ApplyPreset(SimulationRequest{
		Premise:     "p",
		Preset:      "cinematic",
		Style:       "bullet",
		Temperature: 0.1,
		Constraints: []string{"mine"},
	})
	if req.Style != "bullet" {
		t.Errorf("explicit style overridden: %q", req.Style)
	}
	if req.Temperature != 0.1 {
		t.Errorf("explicit temperature overridden: %v", req.Temperature)
	}
	// Preset constraints append after the caller's own.
	if req.Constraints[0] != "mine" {
		t.Errorf("constraints = %v", req.Constraints)
	}
}

func TestApplyPresetUnknownFallsBackToDefault(t *testing.T) {
	req := ApplyPreset(SimulationRequest{Premise: "p", Preset: "no-such-preset"})
	if req.Style == "" {
		t.Error("expected default preset to apply")
	}
}

func TestPresetNamesIncludesKnownPresets(t *testing.T) {
	names := PresetNames()
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	for _, want := range []string{"default", "cinematic", "academic", "risk"} {
		if !found[want] {
			t.Errorf("preset %q missing from %v", want, names)
		}
	}
}

func TestBuildConversation(t *testing.T) {
	req := SimulationRequest{
		Premise:     "What if the printing press was never invented?",
		Horizon:     3,
		Style:       "brief",
		Scope:       "tech",
		Constraints: []string{"no magic"},
	}
	msgs := BuildConversation(req, 1450, true)

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	sys, user := msgs[0], msgs[1]
	if sys.Role != "system" || user.Role != "user" {
		t.Fatalf("roles = %q, %q", sys.Role, user.Role)
	}

	for _, want := range []string{"1450", "scenarios", "Baseline", "Best Case", "Worst Case", "wiki_summary", "make_timeline_anchors"} {
		if !strings.Contains(sys.Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	for _, want := range []string{req.Premise, "3y", "brief", "tech", "no magic"} {
		if !strings.Contains(user.Content, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestBuildConversationToolsDisabled(t *testing.T) {
	msgs := BuildConversation(SimulationRequest{Premise: "p", Horizon: 1}, 2024, false)
	if strings.Contains(msgs[0].Content, "wiki_summary") {
		t.Error("system prompt mentions tools while disabled")
	}
}
