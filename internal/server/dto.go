package server

import (
	"github.com/chronoscribe/chronoscribe/internal/agent"
	"github.com/go-playground/validator/v10"
)

// simulateRequest is the transport-level request body for POST /simulate.
// Defaults are filled before validation, so handlers never see zero values
// for optional knobs.
type simulateRequest struct {
	WhatIf string `json:"what_if" validate:"required,min=1"`
	Scope  string `json:"scope" default:"mixed"`
	// Horizon takes precedence over HorizonWord when both are sent.
	Horizon       *int     `json:"horizon,omitempty" validate:"omitempty,gte=0,lte=100"`
	HorizonWord   string   `json:"horizon_word,omitempty" validate:"omitempty,oneof=short medium long"`
	Style         string   `json:"style,omitempty" validate:"omitempty,oneof=brief cinematic bullet paper"`
	Preset        string   `json:"preset" default:"default" validate:"oneof=default cinematic academic risk optimistic pessimistic"`
	Constraints   []string `json:"constraints,omitempty" validate:"max=16,dive,min=1"`
	Temperature   float64  `json:"temperature,omitempty" validate:"gte=0,lte=2"`
	ToolsEnabled  *bool    `json:"tools_enabled,omitempty"`
	ReferenceYear int      `json:"reference_year,omitempty" validate:"omitempty,gte=1,lte=9999"`
}

// toAgentRequest maps the transport DTO onto the immutable core request.
func (r *simulateRequest) toAgentRequest(defaultHorizon int, globalTools bool) agent.SimulationRequest {
	horizon := defaultHorizon
	if w, ok := agent.HorizonFromWord(r.HorizonWord); ok {
		horizon = w
	}
	if r.Horizon != nil {
		horizon = *r.Horizon
	}
	toolsEnabled := globalTools
	if r.ToolsEnabled != nil {
		toolsEnabled = *r.ToolsEnabled
	}
	return agent.SimulationRequest{
		Premise:       r.WhatIf,
		Scope:         r.Scope,
		Horizon:       horizon,
		Style:         r.Style,
		Preset:        r.Preset,
		Constraints:   r.Constraints,
		Temperature:   r.Temperature,
		ToolsEnabled:  toolsEnabled,
		ReferenceYear: r.ReferenceYear,
	}
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status string `json:"status"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
