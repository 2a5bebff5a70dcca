package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// maxAnchorHorizon caps how many labels a single call may produce.
const maxAnchorHorizon = 200

// AnchorsTool generates consistent relative-time labels anchored to a
// reference year. It is a pure function of its inputs: the same reference
// year and horizon always produce the same labels.
type AnchorsTool struct{}

// NewAnchorsTool creates the timeline anchor generator.
func NewAnchorsTool() *AnchorsTool { return &AnchorsTool{} }

func (t *AnchorsTool) Name() string { return "make_timeline_anchors" }

func (t *AnchorsTool) Description() string {
	return "Compute consistent timeline anchor labels (T+0, T+1y, ...) and their absolute years for the given reference year and horizon."
}

func (t *AnchorsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reference_year": map[string]any{
				"type":        "integer",
				"description": "The year T+0 refers to",
			},
			"horizon": map[string]any{
				"type":        "integer",
				"description": "Number of yearly anchors after T+0",
			},
		},
		"required": []string{"reference_year", "horizon"},
	}
}

// anchorEntry pairs a relative label with its absolute year.
type anchorEntry struct {
	Label string `json:"label"`
	Year  int    `json:"year"`
}

func (t *AnchorsTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	referenceYear := GetInt(params, "reference_year", 0)
	horizon := GetInt(params, "horizon", -1)

	if horizon < 0 {
		err := &InvalidArgumentError{Tool: t.Name(), Reason: "horizon must be non-negative"}
		return fmt.Sprintf("Error: %v", err), nil
	}
	if referenceYear == 0 {
		err := &InvalidArgumentError{Tool: t.Name(), Reason: "reference_year is required"}
		return fmt.Sprintf("Error: %v", err), nil
	}
	if horizon > maxAnchorHorizon {
		horizon = maxAnchorHorizon
	}

	labels := Anchors(referenceYear, horizon)
	entries := make([]anchorEntry, len(labels))
	for i, label := range labels {
		entries[i] = anchorEntry{Label: label, Year: referenceYear + i}
	}

	out, err := json.Marshal(map[string]any{
		"reference_year": referenceYear,
		"horizon":        horizon,
		"anchors":        entries,
	})
	if err != nil {
		return "", fmt.Errorf("marshal anchors: %w", err)
	}
	return string(out), nil
}

// Anchors returns the ordered label sequence for a horizon: "T+0" followed
// by "T+1y" through "T+<horizon>y". Exported so the prompt policy and the
// normalizer tests share one labeling scheme.
func Anchors(referenceYear, horizon int) []string {
	labels := make([]string, 0, horizon+1)
	labels = append(labels, "T+0")
	for n := 1; n <= horizon; n++ {
		labels = append(labels, fmt.Sprintf("T+%dy", n))
	}
	return labels
}
