package agent

import "strings"

// SimulationRequest describes one what-if simulation. It is constructed by
// the boundary layer from a validated request body and never mutated after
// that.
type SimulationRequest struct {
	// Premise is the what-if statement to explore. Required.
	Premise string
	// Scope narrows the forecast focus (tech, economics, geopolitics, ...).
	Scope string
	// Horizon is the number of yearly anchor points after T+0.
	Horizon int
	// Style controls the output register (brief, cinematic, bullet, paper).
	Style string
	// Preset names a bundled style/temperature/constraints profile and is
	// applied before Style/Temperature are read.
	Preset string
	// Constraints are extra instructions the forecast must respect.
	Constraints []string
	// Temperature for the completion endpoint. Zero means preset default.
	Temperature float64
	// ToolsEnabled allows the model to call tools during this run.
	ToolsEnabled bool
	// ReferenceYear pins T+0. Zero means the loop's configured year (or the
	// current year).
	ReferenceYear int
}

// HorizonFromWord maps the loose horizon words callers may use instead of an
// anchor count.
func HorizonFromWord(word string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "short":
		return 5, true
	case "medium":
		return 25, true
	case "long":
		return 50, true
	}
	return 0, false
}
