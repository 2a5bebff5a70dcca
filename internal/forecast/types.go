// Package forecast defines the structured forecast document and the
// normalization pass that makes model output safe for callers.
package forecast

// Canonical branch names. Every normalized forecast carries these three,
// in this order, regardless of what the model returned.
const (
	BranchBaseline = "Baseline"
	BranchBest     = "Best Case"
	BranchWorst    = "Worst Case"
)

// RequiredBranches lists the canonical branches in output order.
var RequiredBranches = []string{BranchBaseline, BranchBest, BranchWorst}

// ProbabilityTolerance is the maximum deviation from 1.0 allowed for the
// sum of branch probabilities after normalization.
const ProbabilityTolerance = 1e-6

// DefaultDisclaimer is substituted when the model omits a disclaimer.
const DefaultDisclaimer = "Speculative scenario generation; not factual prediction."

// TimelineEvent is one dated entry in a branch timeline. Anchor is a
// relative-time label ("T+0", "T+5y") offset from the run's reference year.
type TimelineEvent struct {
	Anchor    string `json:"year_or_period"`
	Event     string `json:"event"`
	Rationale string `json:"rationale,omitempty"`
}

// Branch is one forecast outcome (Baseline, Best Case, Worst Case, or an
// extra scenario the model volunteered).
type Branch struct {
	Name               string          `json:"name"`
	Probability        float64         `json:"probability"`
	Summary            string          `json:"summary"`
	Timeline           []TimelineEvent `json:"timeline"`
	SecondOrderEffects []string        `json:"second_order_effects"`
}

// RawForecast is the model's final answer before normalization. Any field
// may be missing, empty, or internally inconsistent.
type RawForecast struct {
	Premise      string   `json:"premise"`
	Assumptions  []string `json:"assumptions"`
	TimeHorizon  string   `json:"time_horizon"`
	Branches     []Branch `json:"scenarios"`
	Tradeoffs    []string `json:"tradeoffs"`
	RedTeam      []string `json:"red_team"`
	RealismScore float64  `json:"speculative_realism_score"`
	Style        string   `json:"style"`
	Disclaimer   string   `json:"disclaimer"`
}

// Forecast is a RawForecast after Normalize: branch probabilities are
// non-negative and sum to 1, timelines are monotone, and every field is
// present. Incomplete marks best-effort results from an exhausted loop;
// Rounds and ToolCalls are run statistics filled in by the loop.
type Forecast struct {
	Premise      string   `json:"premise"`
	Assumptions  []string `json:"assumptions"`
	TimeHorizon  string   `json:"time_horizon"`
	Branches     []Branch `json:"scenarios"`
	Tradeoffs    []string `json:"tradeoffs"`
	RedTeam      []string `json:"red_team"`
	RealismScore float64  `json:"speculative_realism_score"`
	Style        string   `json:"style"`
	Disclaimer   string   `json:"disclaimer"`
	Incomplete   bool     `json:"incomplete,omitempty"`
	Rounds       int      `json:"rounds,omitempty"`
	ToolCalls    int      `json:"tool_calls,omitempty"`
}

// Raw converts a Forecast back into a RawForecast. Normalize(f.Raw())
// returns f unchanged for any normalized f.
func (f Forecast) Raw() RawForecast {
	return RawForecast{
		Premise:      f.Premise,
		Assumptions:  f.Assumptions,
		TimeHorizon:  f.TimeHorizon,
		Branches:     f.Branches,
		Tradeoffs:    f.Tradeoffs,
		RedTeam:      f.RedTeam,
		RealismScore: f.RealismScore,
		Style:        f.Style,
		Disclaimer:   f.Disclaimer,
	}
}
