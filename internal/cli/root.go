// Package cli implements the chronoscribe command line interface.
package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/chronoscribe/chronoscribe/internal/agent"
	"github.com/chronoscribe/chronoscribe/internal/config"
	"github.com/chronoscribe/chronoscribe/internal/provider"
	"github.com/chronoscribe/chronoscribe/internal/provider/middleware"
	"github.com/chronoscribe/chronoscribe/internal/tools"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/chronoscribe/chronoscribe/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"   ____ _                           ____            _ _\n" +
		"  / ___| |__  _ __ ___  _ __   ___ / ___|  ___ _ __(_) |__   ___\n" +
		" | |   | '_ \\| '__/ _ \\| '_ \\ / _ \\\\___ \\ / __| '__| | '_ \\ / _ \\\n" +
		" | |___| | | | | | (_) | | | | (_) |___) | (__| |  | | |_) |  __/\n" +
		"  \\____|_| |_|_|  \\___/|_| |_|\\___/|____/ \\___|_|  |_|_.__/ \\___|\n"
)

var rootCmd = &cobra.Command{
	Use:   "chronoscribe",
	Short: "ChronoScribe - what-if simulation agent",
	Long:  color.CyanString(logo) + "\nExplores alternate timelines with branching, probability-weighted scenarios.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
}

func printHeader(title string) {
	color.Cyan("%s", title)
}

// setupLogging configures the process-wide slog handler from config.
func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newLoop wires the agent loop from config: provider, tool registry, and
// the middleware chain.
func newLoop(cfg *config.Config) *agent.Loop {
	prov := provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)

	wikiOpts := []tools.WikiOption{
		tools.WithWikiTimeout(cfg.Tools.WikiTimeout),
		tools.WithWikiCacheTTL(cfg.Tools.WikiCacheTTL),
	}
	if cfg.Tools.WikiBaseURL != "" {
		wikiOpts = append(wikiOpts, tools.WithWikiBaseURL(cfg.Tools.WikiBaseURL))
	}
	registry := tools.NewRegistry()
	registry.Register(tools.NewAnchorsTool())
	registry.Register(tools.NewWikiTool(wikiOpts...))

	return agent.New(agent.Options{
		Provider:      prov,
		Registry:      registry,
		Middlewares:   []middleware.ChatMiddleware{middleware.NewLoggingMiddleware()},
		Model:         cfg.Provider.Model,
		MaxRounds:     cfg.Agent.MaxRounds,
		MaxTokens:     cfg.Agent.MaxTokens,
		Temperature:   cfg.Agent.Temperature,
		ToolsEnabled:  cfg.ToolsEnabled(),
		ReferenceYear: cfg.Agent.ReferenceYear,
	})
}
