package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/chronoscribe/chronoscribe/internal/agent"
	"github.com/chronoscribe/chronoscribe/internal/config"
	"github.com/spf13/cobra"
)

var (
	simPremise     string
	simPreset      string
	simScope       string
	simHorizon     int
	simHorizonWord string
	simYear        int
	simNoTools     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one what-if simulation and print the forecast JSON",
	Run:   runSimulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&simPremise, "premise", "p", "", "What-if premise to simulate")
	simulateCmd.Flags().StringVar(&simPreset, "preset", "default", "Style preset (default, cinematic, academic, risk, optimistic, pessimistic)")
	simulateCmd.Flags().StringVar(&simScope, "scope", "mixed", "Forecast focus (mixed, tech, history, economics, culture, geopolitics, science)")
	simulateCmd.Flags().IntVar(&simHorizon, "horizon", 0, "Number of yearly anchors after T+0 (0 = config default)")
	simulateCmd.Flags().StringVar(&simHorizonWord, "horizon-word", "", "Horizon as a word (short, medium, long); ignored when --horizon is set")
	simulateCmd.Flags().IntVar(&simYear, "reference-year", 0, "Pin T+0 to this year (0 = current year)")
	simulateCmd.Flags().BoolVar(&simNoTools, "no-tools", false, "Disable tool use for this run")
}

func runSimulate(cmd *cobra.Command, args []string) {
	if simPremise == "" {
		fmt.Println("Error: --premise is required")
		os.Exit(1)
	}

	printHeader("ChronoScribe Simulation")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	if cfg.Provider.APIKey == "" {
		fmt.Println("Error: API key not found. Set CHRONOSCRIBE_API_KEY or add provider.apiKey to config.json")
		os.Exit(1)
	}

	horizon := simHorizon
	if horizon == 0 {
		if w, ok := agent.HorizonFromWord(simHorizonWord); ok {
			horizon = w
		} else {
			horizon = cfg.Agent.DefaultHorizon
		}
	}
	referenceYear := simYear
	if referenceYear == 0 {
		referenceYear = cfg.Agent.ReferenceYear
	}

	loop := newLoop(cfg)
	result, err := loop.Simulate(context.Background(), agent.SimulationRequest{
		Premise:       simPremise,
		Scope:         simScope,
		Horizon:       horizon,
		Preset:        simPreset,
		ToolsEnabled:  !simNoTools,
		ReferenceYear: referenceYear,
	})
	if err != nil {
		fmt.Printf("Simulation error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf("Encode error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
