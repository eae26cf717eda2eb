// Package main provides the CLI entry point for agentrouter, the
// interface-agnostic agent orchestrator.
//
// agentrouter routes natural-language requests from any calling surface
// (CLI, web, Telegram, Slack, a raw API client) to a pool of LLM backends,
// executes tools on the model's behalf, gates high-risk tool calls behind
// an approve/deny handshake, and preserves per-conversation context
// across turns.
//
// # Basic Usage
//
// Start the server:
//
//	agentrouter serve --config agentrouter.yaml
//
// Check backend and circuit breaker health:
//
//	agentrouter status --config agentrouter.yaml
//
// # Environment Variables
//
//   - AGENTROUTER_CONFIG: path to configuration file (default: agentrouter.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key, read directly by the cloud adapter
//   - OPENAI_API_KEY: OpenAI API key, read directly by the cloud adapter
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() so tests can exercise it directly.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentrouter",
		Short: "agentrouter - interface-agnostic agent orchestrator",
		Long: `agentrouter routes natural-language requests to a pool of LLM backends,
executes tools on the model's behalf, and preserves per-conversation
context across any calling surface.

Supported backends: Anthropic (Claude), OpenAI (GPT), local OpenAI/Ollama-
compatible servers.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCmd())
	rootCmd.AddCommand(buildStatusCmd())

	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("AGENTROUTER_CONFIG"); env != "" {
		return env
	}
	return "agentrouter.yaml"
}
