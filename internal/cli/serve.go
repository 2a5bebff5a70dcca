package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chronoscribe/chronoscribe/internal/config"
	"github.com/chronoscribe/chronoscribe/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulation HTTP service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("ChronoScribe Service")

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

	loop := newLoop(cfg)
	srv := server.New(cfg, loop)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		fmt.Printf("Server error: %v\n", err)
		os.Exit(1)
	}
}
