package forecast

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Decode extracts a RawForecast from free-form model output. It strips code
// fences and surrounding prose, then coerces fields one at a time so a single
// mistyped value never discards the rest of the document. It fails only when
// no JSON object can be found at all.
func Decode(content string) (RawForecast, error) {
	payload, ok := extractObject(content)
	if !ok {
		return RawForecast{}, fmt.Errorf("no JSON object in model output")
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return RawForecast{}, fmt.Errorf("parse model output: %w", err)
	}

	raw := RawForecast{
		Premise:      asString(m["premise"]),
		Assumptions:  asStrings(m["assumptions"]),
		TimeHorizon:  asString(m["time_horizon"]),
		Tradeoffs:    asStrings(m["tradeoffs"]),
		RedTeam:      asStrings(m["red_team"]),
		RealismScore: asFloat(m["speculative_realism_score"]),
		Style:        asString(m["style"]),
		Disclaimer:   asString(m["disclaimer"]),
	}

	scenarios := m["scenarios"]
	if scenarios == nil {
		scenarios = m["branches"]
	}
	if list, ok := scenarios.([]any); ok {
		for _, item := range list {
			bm, ok := item.(map[string]any)
			if !ok {
				continue
			}
			raw.Branches = append(raw.Branches, decodeBranch(bm))
		}
	}
	return raw, nil
}

func decodeBranch(m map[string]any) Branch {
	b := Branch{
		Name:               asString(m["name"]),
		Probability:        asFloat(m["probability"]),
		Summary:            asString(m["summary"]),
		SecondOrderEffects: asStrings(m["second_order_effects"]),
	}
	if list, ok := m["timeline"].([]any); ok {
		for _, item := range list {
			em, ok := item.(map[string]any)
			if !ok {
				continue
			}
			anchor := asString(em["year_or_period"])
			if anchor == "" {
				anchor = asString(em["anchor"])
			}
			b.Timeline = append(b.Timeline, TimelineEvent{
				Anchor:    anchor,
				Event:     asString(em["event"]),
				Rationale: asString(em["rationale"]),
			})
		}
	}
	return b
}

// extractObject locates the outermost JSON object in content, tolerating
// markdown fences and leading/trailing prose.
func extractObject(content string) (string, bool) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func asStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
