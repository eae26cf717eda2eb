package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentrouter/internal/config"
)

func buildStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report backend availability and circuit breaker state",
		Long: `Connect every configured backend, probe its availability, and print a
health report covering circuit breaker state, registered models and
tools, and tracked conversations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runStatus(cmd.Context(), cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sys, err := buildSystem(cfg)
	if err != nil {
		return fmt.Errorf("build system: %w", err)
	}
	defer sys.close()

	report := sys.orchestrator.HealthCheck(ctx, adapterAvailability(ctx, sys))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status: %s\n", report.Status)
	fmt.Fprintf(out, "registered models: %d\n", report.RegisteredModels)
	fmt.Fprintf(out, "registered tools: %d\n", report.RegisteredTools)
	fmt.Fprintf(out, "pending confirmations: %d\n", report.PendingConfirmations)
	fmt.Fprintf(out, "tracked chats: %d\n", report.TrackedChats)
	for backendID, snap := range report.BackendSnapshots {
		fmt.Fprintf(out, "backend %s: state=%s failures=%d\n", backendID, snap.State, snap.ConsecutiveFailures)
	}

	return nil
}
